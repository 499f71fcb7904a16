package services

import (
	"context"
	"sort"
	"time"

	"github.com/a2s-dz/gestion/internal/billing"
	apperrors "github.com/a2s-dz/gestion/internal/errors"
	"github.com/a2s-dz/gestion/internal/metrics"
	"github.com/a2s-dz/gestion/internal/models"
	"github.com/a2s-dz/gestion/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const liveConflictMessage = "Un abonnement actif ou en alerte existe déjà pour cette installation"

// SubscriptionService manages abonnements
type SubscriptionService struct {
	*env
	history *HistoryService
}

// SubscriptionView is a subscription with its status derived at read time
type SubscriptionView struct {
	models.Subscription
	StatutEnregistre models.SubscriptionStatus `json:"statut_enregistre"`
	JoursRestants    int                       `json:"jours_restants"`
}

// SubscriptionQuery filters List. Statut applies to the derived status.
type SubscriptionQuery struct {
	InstallationID *uuid.UUID
	ClientID       *uuid.UUID
	Statut         models.SubscriptionStatus
}

// ReconcileReport summarises a reconcile run
type ReconcileReport struct {
	Checked  int                               `json:"checked"`
	Changed  int                               `json:"changed"`
	Failed   int                               `json:"failed"`
	ByStatus map[models.SubscriptionStatus]int `json:"by_status"`
	RanAt    time.Time                         `json:"ran_at"`
}

// View derives the current status of sub
func (s *SubscriptionService) View(sub models.Subscription) SubscriptionView {
	now := s.now()
	v := SubscriptionView{Subscription: sub, StatutEnregistre: sub.Statut}
	v.Statut = s.rules.StatusAt(sub.DateFin, now)
	v.JoursRestants = int(billing.Day(sub.DateFin).Sub(s.rules.Today(now)).Hours() / 24)
	return v
}

// Get returns one subscription with its derived status
func (s *SubscriptionService) Get(ctx context.Context, id uuid.UUID) (*SubscriptionView, error) {
	sub, err := s.subscriptions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	v := s.View(*sub)
	return &v, nil
}

// List returns subscriptions with derived statuses, soonest end date first
func (s *SubscriptionService) List(ctx context.Context, q SubscriptionQuery) ([]SubscriptionView, error) {
	opts := []store.Option{store.Asc("date_fin"), store.Preload("Installation.Client")}
	if q.InstallationID != nil {
		opts = append(opts, store.Eq("installation_id", *q.InstallationID))
	}
	if q.ClientID != nil {
		installs, err := s.installations.Find(ctx, store.Eq("client_id", *q.ClientID))
		if err != nil {
			return nil, err
		}
		if len(installs) == 0 {
			return []SubscriptionView{}, nil
		}
		ids := make([]uuid.UUID, len(installs))
		for i, inst := range installs {
			ids[i] = inst.ID
		}
		opts = append(opts, store.In("installation_id", ids...))
	}

	subs, err := s.subscriptions.Find(ctx, opts...)
	if err != nil {
		return nil, err
	}

	views := make([]SubscriptionView, 0, len(subs))
	for _, sub := range subs {
		v := s.View(sub)
		if q.Statut != "" && v.Statut != q.Statut {
			continue
		}
		views = append(views, v)
	}
	return views, nil
}

// Expiring lists the subscriptions currently en_alerte
func (s *SubscriptionService) Expiring(ctx context.Context) ([]SubscriptionView, error) {
	return s.List(ctx, SubscriptionQuery{Statut: models.SubscriptionStatusEnAlerte})
}

// Create opens a one-year subscription for an installation starting on its
// installation date
func (s *SubscriptionService) Create(ctx context.Context, installationID uuid.UUID) (*SubscriptionView, error) {
	var sub *models.Subscription
	err := s.store.Transaction(ctx, func(ctx context.Context) error {
		inst, err := s.installations.Get(ctx, installationID)
		if err != nil {
			return err
		}
		sub, err = s.createFor(ctx, inst)
		return err
	})
	if err != nil {
		return nil, err
	}
	v := s.View(*sub)
	return &v, nil
}

// createFor inserts the first-term subscription of inst; must run in a
// transaction
func (s *SubscriptionService) createFor(ctx context.Context, inst *models.Installation) (*models.Subscription, error) {
	live, err := s.liveRows(ctx, inst.ID, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if len(live) > 0 {
		return nil, apperrors.NewConflictErrorf("abonnement", liveConflictMessage)
	}

	debut, fin := billing.Term(inst.DateInstallation)
	sub := &models.Subscription{
		InstallationID: inst.ID,
		DateDebut:      debut,
		DateFin:        fin,
		Statut:         s.rules.StatusAt(fin, s.now()),
	}
	if err := s.subscriptions.Insert(ctx, sub); err != nil {
		return nil, err
	}
	metrics.SubscriptionsCreatedTotal.Inc()
	return sub, nil
}

// Renew closes the subscription and opens the next one-year term starting at
// its end date. Only the installation's latest subscription can be renewed.
func (s *SubscriptionService) Renew(ctx context.Context, id uuid.UUID) (*SubscriptionView, error) {
	var next *models.Subscription
	err := s.store.Transaction(ctx, func(ctx context.Context) error {
		current, err := s.subscriptions.Get(ctx, id)
		if err != nil {
			return err
		}
		inst, err := s.installations.Get(ctx, current.InstallationID)
		if err != nil {
			return err
		}

		others, err := s.liveRows(ctx, inst.ID, current.ID)
		if err != nil {
			return err
		}
		if len(others) > 0 {
			return apperrors.NewConflictErrorf("abonnement", liveConflictMessage)
		}
		latest, err := s.subscriptions.First(ctx, store.Eq("installation_id", inst.ID), store.Desc("date_fin"))
		if err != nil {
			return err
		}
		if latest.ID != current.ID {
			return apperrors.NewInvalidStateError("abonnement", string(current.Statut), "renouvele")
		}

		if err := s.subscriptions.UpdateFields(ctx, current.ID, map[string]interface{}{"statut": models.SubscriptionStatusExpire}); err != nil {
			return err
		}

		debut, fin := billing.Term(current.DateFin)
		next = &models.Subscription{
			InstallationID: inst.ID,
			DateDebut:      debut,
			DateFin:        fin,
			Statut:         models.SubscriptionStatusActif,
		}
		if err := s.subscriptions.Insert(ctx, next); err != nil {
			return err
		}

		return s.history.Record(ctx, inst.ClientID, models.ActionAbonnementRenew, map[string]interface{}{
			"installation_id":   inst.ID.String(),
			"application":       inst.ApplicationInstallee,
			"ancien_abonnement": current.ID.String(),
			"nouvel_abonnement": next.ID.String(),
			"date_debut":        debut.Format("2006-01-02"),
			"date_fin":          fin.Format("2006-01-02"),
		})
	})
	if err != nil {
		return nil, err
	}
	metrics.SubscriptionsRenewedTotal.WithLabelValues("manual").Inc()
	v := s.View(*next)
	return &v, nil
}

// autoRenew renews the latest subscription of inst when it has expired and
// the installation's payments cover its price. Must run in a transaction.
// It returns the new subscription, or nil when nothing was renewed.
func (s *SubscriptionService) autoRenew(ctx context.Context, inst *models.Installation) (*models.Subscription, error) {
	subs, err := s.syncInstallation(ctx, inst.ID)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, nil
	}
	latest := subs[0]
	if s.rules.StatusAt(latest.DateFin, s.now()) != models.SubscriptionStatusExpire {
		return nil, nil
	}

	total, err := s.payments.Sum(ctx, "montant", store.Eq("installation_id", inst.ID))
	if err != nil {
		return nil, err
	}
	if total.LessThan(inst.Montant) {
		return nil, nil
	}

	if err := s.subscriptions.Delete(ctx, latest.ID); err != nil {
		return nil, err
	}
	debut, fin := billing.Term(latest.DateFin)
	next := &models.Subscription{
		InstallationID: inst.ID,
		DateDebut:      debut,
		DateFin:        fin,
		Statut:         models.SubscriptionStatusActif,
	}
	if err := s.subscriptions.Insert(ctx, next); err != nil {
		return nil, err
	}

	err = s.history.Record(ctx, inst.ClientID, models.ActionAbonnementAutoRenew, map[string]interface{}{
		"installation_id": inst.ID.String(),
		"application":     inst.ApplicationInstallee,
		"montant":         total.String(),
		"date_debut":      debut.Format("2006-01-02"),
		"date_fin":        fin.Format("2006-01-02"),
	})
	if err != nil {
		return nil, err
	}
	metrics.SubscriptionsRenewedTotal.WithLabelValues("payment").Inc()
	return next, nil
}

// Delete removes a subscription unless abonnement payments exist for its
// installation
func (s *SubscriptionService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.Transaction(ctx, func(ctx context.Context) error {
		sub, err := s.subscriptions.Get(ctx, id)
		if err != nil {
			return err
		}
		paid, err := s.payments.Exists(ctx,
			store.Eq("installation_id", sub.InstallationID),
			store.Eq("type", models.PaymentTypeAbonnement))
		if err != nil {
			return err
		}
		if paid {
			return apperrors.NewReferentialError(apperrors.CodeSubscriptionHasPayments, "abonnement",
				"Impossible de supprimer un abonnement ayant des paiements")
		}
		return s.subscriptions.Delete(ctx, id)
	})
}

// Reconcile persists the derived status of every subscription whose stored
// status is stale. Rows leaving the live set are written first so a row
// returning to it never collides with the unique live index.
func (s *SubscriptionService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	now := s.now()
	report := &ReconcileReport{ByStatus: map[models.SubscriptionStatus]int{}, RanAt: now}

	subs, err := s.subscriptions.Find(ctx)
	if err != nil {
		metrics.ReconcileRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	type change struct {
		sub    models.Subscription
		status models.SubscriptionStatus
	}
	var changes []change
	for _, sub := range subs {
		status, changed := s.rules.Reconcile(sub, now)
		report.Checked++
		report.ByStatus[status]++
		if changed {
			changes = append(changes, change{sub, status})
		}
	}
	sort.SliceStable(changes, func(i, j int) bool {
		return !changes[i].status.IsLive() && changes[j].status.IsLive()
	})

	for _, c := range changes {
		if err := s.subscriptions.UpdateFields(ctx, c.sub.ID, map[string]interface{}{"statut": c.status}); err != nil {
			report.Failed++
			log.Warn().Err(err).Str("abonnement_id", c.sub.ID.String()).
				Str("from", string(c.sub.Statut)).Str("to", string(c.status)).
				Msg("reconcile: status update failed")
			continue
		}
		report.Changed++
		metrics.ReconcileChangesTotal.WithLabelValues(string(c.status)).Inc()
	}

	for _, status := range []models.SubscriptionStatus{models.SubscriptionStatusActif, models.SubscriptionStatusEnAlerte, models.SubscriptionStatusExpire} {
		metrics.SubscriptionsByStatus.WithLabelValues(string(status)).Set(float64(report.ByStatus[status]))
	}
	metrics.ReconcileRunsTotal.WithLabelValues("ok").Inc()
	return report, nil
}

// syncInstallation reconciles the stored statuses of one installation's
// subscriptions and returns them latest end date first
func (s *SubscriptionService) syncInstallation(ctx context.Context, installationID uuid.UUID) ([]models.Subscription, error) {
	subs, err := s.subscriptions.Find(ctx, store.Eq("installation_id", installationID), store.Desc("date_fin"))
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range subs {
		status, changed := s.rules.Reconcile(subs[i], now)
		if !changed || status.IsLive() {
			continue
		}
		if err := s.subscriptions.UpdateFields(ctx, subs[i].ID, map[string]interface{}{"statut": status}); err != nil {
			return nil, err
		}
		subs[i].Statut = status
	}
	return subs, nil
}

// liveRows returns the installation's subscriptions that are live both as
// stored and as derived, other than exclude. Stale rows that have expired
// are written back first.
func (s *SubscriptionService) liveRows(ctx context.Context, installationID, exclude uuid.UUID) ([]models.Subscription, error) {
	subs, err := s.syncInstallation(ctx, installationID)
	if err != nil {
		return nil, err
	}
	var live []models.Subscription
	for _, sub := range subs {
		if sub.ID != exclude && sub.IsLive() {
			live = append(live, sub)
		}
	}
	return live, nil
}
