// Package services implements the A2S Gestion business operations on top of
// the store gateway
package services

import (
	"context"
	"strings"
	"time"

	"github.com/a2s-dz/gestion/internal/auth"
	"github.com/a2s-dz/gestion/internal/billing"
	apperrors "github.com/a2s-dz/gestion/internal/errors"
	"github.com/a2s-dz/gestion/internal/models"
	"github.com/a2s-dz/gestion/internal/store"
)

// Services groups every business service sharing one store
type Services struct {
	Store         *store.Store
	History       *HistoryService
	Prospects     *ProspectService
	Installations *InstallationService
	Subscriptions *SubscriptionService
	Payments      *PaymentService
	Interventions *InterventionService
	Missions      *MissionService
	Users         *UserService
	Dashboard     *DashboardService
}

// Option customises New
type Option func(*env)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(e *env) { e.now = now }
}

// New wires every service
func New(st *store.Store, rules billing.Rules, opts ...Option) *Services {
	e := &env{
		store:         st,
		rules:         rules,
		now:           time.Now,
		prospects:     store.NewTable[models.Prospect](st, "prospect"),
		activities:    store.NewTable[models.ActivityEvent](st, "historique"),
		installations: store.NewTable[models.Installation](st, "installation"),
		subscriptions: store.NewTable[models.Subscription](st, "abonnement"),
		payments:      store.NewTable[models.Payment](st, "paiement"),
		interventions: store.NewTable[models.Intervention](st, "intervention"),
		missions:      store.NewTable[models.Mission](st, "mission"),
		users:         store.NewTable[models.User](st, "utilisateur"),
	}
	for _, opt := range opts {
		opt(e)
	}

	s := &Services{Store: st}
	s.History = &HistoryService{env: e}
	s.Subscriptions = &SubscriptionService{env: e, history: s.History}
	s.Prospects = &ProspectService{env: e, history: s.History}
	s.Installations = &InstallationService{env: e, history: s.History, subscriptions: s.Subscriptions}
	s.Payments = &PaymentService{env: e, history: s.History, subscriptions: s.Subscriptions}
	s.Interventions = &InterventionService{env: e, history: s.History}
	s.Missions = &MissionService{env: e, history: s.History}
	s.Users = &UserService{env: e}
	s.Dashboard = &DashboardService{env: e}
	return s
}

// env is the state shared by the services
type env struct {
	store *store.Store
	rules billing.Rules
	now   func() time.Time

	prospects     *store.Table[models.Prospect]
	activities    *store.Table[models.ActivityEvent]
	installations *store.Table[models.Installation]
	subscriptions *store.Table[models.Subscription]
	payments      *store.Table[models.Payment]
	interventions *store.Table[models.Intervention]
	missions      *store.Table[models.Mission]
	users         *store.Table[models.User]
}

// today returns the current business date
func (e *env) today() time.Time {
	return e.rules.Today(e.now())
}

// =============================================================================
// INPUT HELPERS
// =============================================================================

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05", "02/01/2006"}

// parseDate accepts ISO dates, RFC 3339 timestamps and dd/mm/yyyy
func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return billing.Day(t), nil
		}
	}
	return time.Time{}, apperrors.NewValidationError(field, "date invalide: "+value)
}

// parseOptionalDate returns fallback when value is empty
func parseOptionalDate(field, value string, fallback time.Time) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	return parseDate(field, value)
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperrors.NewValidationError(field, field+" est obligatoire")
	}
	return nil
}

func actor(ctx context.Context) *models.User {
	return auth.UserFromContext(ctx)
}
