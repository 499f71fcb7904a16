package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/a2s-dz/gestion/internal/logging"
	"github.com/a2s-dz/gestion/internal/metrics"
	"github.com/a2s-dz/gestion/internal/models"
	"github.com/a2s-dz/gestion/internal/services"
	"github.com/shopspring/decimal"
)

// Insights are the four categories shown on the dashboard
type Insights struct {
	Opportunites    []string `json:"opportunites"`
	Risques         []string `json:"risques"`
	Tendances       []string `json:"tendances"`
	Recommandations []string `json:"recommandations"`
	// Source is the provider name, or "local" for the computed fallback
	Source string `json:"source"`
}

const systemPrompt = `Tu es analyste commercial pour un éditeur de logiciels de gestion en Algérie.
On te donne les statistiques de l'entreprise au format JSON (montants en DA).
Réponds UNIQUEMENT avec un objet JSON de la forme
{"opportunites": [...], "risques": [...], "tendances": [...], "recommandations": [...]}
où chaque liste contient deux à quatre phrases courtes en français.`

// InsightService turns dashboard stats into insights. It never fails: any
// provider problem degrades to insights computed locally from the stats.
type InsightService struct {
	provider Provider
}

// NewInsightService wraps provider, which may be nil
func NewInsightService(provider Provider) *InsightService {
	return &InsightService{provider: provider}
}

// Generate asks the provider for insights about stats
func (s *InsightService) Generate(ctx context.Context, stats *services.Stats) *Insights {
	logger := logging.FromContext(ctx)
	if s.provider == nil {
		metrics.InsightRequestsTotal.WithLabelValues("none", "fallback").Inc()
		return Fallback(stats)
	}

	insights, err := s.ask(ctx, stats)
	if err != nil {
		logger.Warn().Err(err).Str("provider", s.provider.Name()).Msg("ai insights unavailable, using local fallback")
		metrics.InsightRequestsTotal.WithLabelValues(s.provider.Name(), "fallback").Inc()
		return Fallback(stats)
	}
	metrics.InsightRequestsTotal.WithLabelValues(s.provider.Name(), "ok").Inc()
	return insights
}

func (s *InsightService) ask(ctx context.Context, stats *services.Stats) (*Insights, error) {
	payload, err := json.Marshal(stats)
	if err != nil {
		return nil, err
	}
	reply, err := s.provider.Complete(ctx, systemPrompt, "Statistiques:\n"+string(payload))
	if err != nil {
		return nil, err
	}
	insights, err := parseInsights(reply)
	if err != nil {
		return nil, err
	}
	insights.Source = s.provider.Name()
	return insights, nil
}

// parseInsights extracts the JSON object from reply, tolerating code fences
// and surrounding prose
func parseInsights(reply string) (*Insights, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, errors.New("no JSON object in reply")
	}
	var out Insights
	if err := json.Unmarshal([]byte(reply[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("invalid insights JSON: %w", err)
	}
	if len(out.Opportunites) == 0 && len(out.Risques) == 0 && len(out.Tendances) == 0 && len(out.Recommandations) == 0 {
		return nil, errors.New("insights reply has no content")
	}
	return &out, nil
}

// Fallback computes insights from the stats alone
func Fallback(stats *services.Stats) *Insights {
	in := &Insights{Source: "local"}
	if stats == nil {
		stats = &services.Stats{}
	}

	prospects := stats.Prospects[models.ProspectStatusProspect]
	if prospects > 0 {
		in.Opportunites = append(in.Opportunites,
			fmt.Sprintf("%d prospect(s) en attente de conversion", prospects))
	}
	if n := stats.InstallationsParType[models.InstallationTypeAcquisition]; n > 0 {
		in.Opportunites = append(in.Opportunites,
			fmt.Sprintf("%d installation(s) en acquisition pourraient passer en abonnement", n))
	}
	if len(in.Opportunites) == 0 {
		in.Opportunites = append(in.Opportunites, "Prospecter de nouveaux secteurs pour élargir la base clients")
	}

	if n := stats.Abonnements[models.SubscriptionStatusEnAlerte]; n > 0 {
		in.Risques = append(in.Risques, fmt.Sprintf("%d abonnement(s) arrivent à échéance sous 30 jours", n))
	}
	if n := stats.Abonnements[models.SubscriptionStatusExpire]; n > 0 {
		in.Risques = append(in.Risques, fmt.Sprintf("%d abonnement(s) expiré(s) non renouvelé(s)", n))
	}
	if stats.Reste.IsPositive() {
		in.Risques = append(in.Risques, fmt.Sprintf("%s DA restent à encaisser", stats.Reste.StringFixed(2)))
	}
	if len(in.Risques) == 0 {
		in.Risques = append(in.Risques, "Aucun risque majeur détecté")
	}

	in.Tendances = append(in.Tendances,
		fmt.Sprintf("%d client(s) pour %d installation(s)", stats.Clients, stats.Installations))
	if stats.MontantTotal.IsPositive() {
		rate := stats.MontantPaye.Div(stats.MontantTotal).Mul(decimal.NewFromInt(100))
		in.Tendances = append(in.Tendances, fmt.Sprintf("Taux d'encaissement: %s%%", rate.StringFixed(0)))
	}
	if stats.PaiementsDuMois.IsPositive() {
		in.Tendances = append(in.Tendances,
			fmt.Sprintf("%s DA encaissés ce mois-ci", stats.PaiementsDuMois.StringFixed(2)))
	}

	if stats.Abonnements[models.SubscriptionStatusEnAlerte] > 0 {
		in.Recommandations = append(in.Recommandations, "Contacter les clients dont l'abonnement est en alerte")
	}
	if stats.Reste.IsPositive() {
		in.Recommandations = append(in.Recommandations, "Relancer les clients ayant un reste à payer")
	}
	if stats.InterventionsOuvertes > 0 {
		in.Recommandations = append(in.Recommandations,
			fmt.Sprintf("Clôturer les %d intervention(s) en cours", stats.InterventionsOuvertes))
	}
	if len(in.Recommandations) == 0 {
		in.Recommandations = append(in.Recommandations, "Maintenir le suivi régulier des clients")
	}
	return in
}
