package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("verbose"))
}

func TestWithRequestID(t *testing.T) {
	ctx, id := WithRequestID(context.Background(), "")
	assert.NotEmpty(t, id)
	assert.Equal(t, id, RequestID(ctx))

	ctx, id = WithRequestID(ctx, " abc ")
	assert.Equal(t, "abc", id)
	assert.Equal(t, "abc", RequestID(ctx))
}

func TestGinMiddlewareLogsRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	initWithWriter(Config{Level: "info", Component: "test"}, &buf)
	t.Cleanup(func() { initWithWriter(Config{Level: "info"}, &bytes.Buffer{}) })

	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "test", entry["component"])
	assert.Equal(t, float64(http.StatusTeapot), entry["status"])
	assert.Equal(t, "warn", entry["level"])
}
