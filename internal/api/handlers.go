// Package api contains the HTTP API handlers for A2S Gestion
package api

import (
	"net/http"
	"strconv"

	"github.com/a2s-dz/gestion/internal/ai"
	"github.com/a2s-dz/gestion/internal/auth"
	apperrors "github.com/a2s-dz/gestion/internal/errors"
	"github.com/a2s-dz/gestion/internal/logging"
	"github.com/a2s-dz/gestion/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Version is reported by the health endpoint; set at build time
var Version = "dev"

// Handler contains all API handlers
type Handler struct {
	svc         *services.Services
	permissions *auth.PermissionService
	jwt         *auth.JWTService
	insights    *ai.InsightService
}

// NewHandler creates a new API handler
func NewHandler(svc *services.Services, permissions *auth.PermissionService, jwt *auth.JWTService, insights *ai.InsightService) *Handler {
	if insights == nil {
		insights = ai.NewInsightService(nil)
	}
	return &Handler{
		svc:         svc,
		permissions: permissions,
		jwt:         jwt,
		insights:    insights,
	}
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// Health returns the health status
// GET /api/health
func (h *Handler) Health(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	if sqlDB, err := h.svc.Store.Conn(c.Request.Context()).DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":  status,
		"service": "a2s-gestion",
		"version": Version,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// respondError writes err as JSON. Internal errors are logged and their
// detail hidden.
func respondError(c *gin.Context, err error) {
	status, body := apperrors.ToHTTPError(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).Error().Err(err).
			Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, body)
}

// bindJSON decodes the body into dst, answering 400 on failure
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, apperrors.NewBadRequestError("corps de requête invalide: "+err.Error()))
		return false
	}
	return true
}

// paramID parses the :id path parameter
func paramID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperrors.NewValidationError("id", "identifiant invalide"))
		return uuid.Nil, false
	}
	return id, true
}

// queryID parses an optional UUID query parameter
func queryID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(c, apperrors.NewValidationError(name, "identifiant invalide"))
		return nil, false
	}
	return &id, true
}

func parseIntParam(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}
