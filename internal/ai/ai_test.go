package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/a2s-dz/gestion/internal/config"
	"github.com/a2s-dz/gestion/internal/models"
	"github.com/a2s-dz/gestion/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const insightsJSON = `{"opportunites":["a"],"risques":["b"],"tendances":["c"],"recommandations":["d"]}`

func sampleStats() *services.Stats {
	return &services.Stats{
		Prospects:            map[models.ProspectStatus]int64{models.ProspectStatusProspect: 3},
		Clients:              2,
		Installations:        4,
		InstallationsParType: map[models.InstallationType]int64{models.InstallationTypeAcquisition: 1},
		MontantTotal:         decimal.NewFromInt(20000),
		MontantPaye:          decimal.NewFromInt(15000),
		Reste:                decimal.NewFromInt(5000),
		Abonnements: map[models.SubscriptionStatus]int64{
			models.SubscriptionStatusEnAlerte: 1,
			models.SubscriptionStatusExpire:   2,
		},
		InterventionsOuvertes: 1,
	}
}

func TestAnthropicProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-test", req.Model)
		assert.NotEmpty(t, req.System)
		require.Len(t, req.Messages, 1)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": "```json\n" + insightsJSON + "\n```"}},
		})
	}))
	defer srv.Close()

	p, err := NewProvider(config.AIConfig{Provider: "Anthropic", APIKey: "secret", Model: "claude-test", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, p.Name())

	in := NewInsightService(p).Generate(context.Background(), sampleStats())
	assert.Equal(t, ProviderAnthropic, in.Source)
	assert.Equal(t, []string{"a"}, in.Opportunites)
	assert.Equal(t, []string{"d"}, in.Recommandations)
}

func TestChatCompletionsProvider(t *testing.T) {
	for _, name := range []string{ProviderOpenAI, ProviderMistral} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

				var req chatRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				require.Len(t, req.Messages, 2)
				assert.Equal(t, "system", req.Messages[0].Role)
				assert.Equal(t, defaults[name].model, req.Model)

				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"choices": []map[string]interface{}{{"message": map[string]string{"role": "assistant", "content": insightsJSON}}},
				})
			}))
			defer srv.Close()

			p, err := NewProvider(config.AIConfig{Provider: name, APIKey: "k", BaseURL: srv.URL + "/"})
			require.NoError(t, err)
			in := NewInsightService(p).Generate(context.Background(), sampleStats())
			assert.Equal(t, name, in.Source)
			assert.Equal(t, []string{"c"}, in.Tendances)
		})
	}
}

func TestGenerateFallsBack(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"http error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		},
		"not json": func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"choices": []map[string]interface{}{{"message": map[string]string{"content": "désolé, je ne peux pas"}}},
			})
		},
		"empty insights": func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"choices": []map[string]interface{}{{"message": map[string]string{"content": "{}"}}},
			})
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			p, err := NewProvider(config.AIConfig{Provider: ProviderOpenAI, APIKey: "k", BaseURL: srv.URL, Timeout: time.Second})
			require.NoError(t, err)
			in := NewInsightService(p).Generate(context.Background(), sampleStats())
			assert.Equal(t, "local", in.Source)
			assert.NotEmpty(t, in.Risques)
		})
	}
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(config.AIConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewProvider(config.AIConfig{Provider: "openai"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewProvider(config.AIConfig{Provider: "gemini", APIKey: "k"})
	assert.Error(t, err)
}

func TestFallback(t *testing.T) {
	in := NewInsightService(nil).Generate(context.Background(), sampleStats())
	assert.Equal(t, "local", in.Source)
	assert.Contains(t, in.Opportunites, "3 prospect(s) en attente de conversion")
	assert.Contains(t, in.Risques, "1 abonnement(s) arrivent à échéance sous 30 jours")
	assert.Contains(t, in.Risques, "5000.00 DA restent à encaisser")
	assert.Contains(t, in.Tendances, "Taux d'encaissement: 75%")
	assert.Contains(t, in.Recommandations, "Clôturer les 1 intervention(s) en cours")

	empty := Fallback(nil)
	assert.NotEmpty(t, empty.Opportunites)
	assert.NotEmpty(t, empty.Risques)
	assert.NotEmpty(t, empty.Tendances)
	assert.NotEmpty(t, empty.Recommandations)
}
