package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/a2s-dz/gestion/internal/billing"
	apperrors "github.com/a2s-dz/gestion/internal/errors"
	"github.com/a2s-dz/gestion/internal/models"
	"github.com/a2s-dz/gestion/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InstallationService manages installations and keeps their subscription
// and client in step
type InstallationService struct {
	*env
	history       *HistoryService
	subscriptions *SubscriptionService
}

// InstallationInput is the payload to create an installation
type InstallationInput struct {
	ClientID             uuid.UUID                 `json:"client_id" binding:"required"`
	ApplicationInstallee string                    `json:"application_installee" binding:"required"`
	Montant              decimal.Decimal           `json:"montant"`
	Type                 models.InstallationType   `json:"type" binding:"required"`
	Statut               models.InstallationStatus `json:"statut"`
	DateInstallation     string                    `json:"date_installation" binding:"required"`
	Notes                string                    `json:"notes"`
}

// InstallationPatch updates the provided fields only. The amount is fixed
// at creation.
type InstallationPatch struct {
	ApplicationInstallee *string                    `json:"application_installee"`
	Type                 *models.InstallationType   `json:"type"`
	Statut               *models.InstallationStatus `json:"statut"`
	DateInstallation     *string                    `json:"date_installation"`
	Notes                *string                    `json:"notes"`
}

// InstallationQuery filters List
type InstallationQuery struct {
	ClientID *uuid.UUID
	Type     models.InstallationType
	Statut   models.InstallationStatus
}

// InstallationView is an installation with its payment position and its
// current subscription
type InstallationView struct {
	models.Installation
	MontantPaye    decimal.Decimal       `json:"montant_paye"`
	Reste          decimal.Decimal       `json:"reste"`
	StatutPaiement billing.PaymentStatus `json:"statut_paiement"`
	Abonnement     *SubscriptionView     `json:"abonnement,omitempty"`
}

// Create records an installation. In one transaction it opens the first
// subscription, converts the prospect into a client and logs both events.
func (s *InstallationService) Create(ctx context.Context, in InstallationInput) (*InstallationView, error) {
	if in.ClientID == uuid.Nil {
		return nil, apperrors.NewValidationError("client_id", "client_id est obligatoire")
	}
	if err := required("application_installee", in.ApplicationInstallee); err != nil {
		return nil, err
	}
	if in.Montant.IsNegative() {
		return nil, apperrors.NewValidationError("montant", "le montant ne peut pas être négatif")
	}
	if !in.Type.Valid() {
		return nil, apperrors.NewValidationError("type", fmt.Sprintf("type inconnu: %s", in.Type))
	}
	if in.Statut == "" {
		in.Statut = models.InstallationStatusEnCours
	}
	if !in.Statut.Valid() {
		return nil, apperrors.NewValidationError("statut", fmt.Sprintf("statut inconnu: %s", in.Statut))
	}
	date, err := parseDate("date_installation", in.DateInstallation)
	if err != nil {
		return nil, err
	}

	inst := &models.Installation{
		ClientID:             in.ClientID,
		ApplicationInstallee: strings.TrimSpace(in.ApplicationInstallee),
		Montant:              in.Montant,
		Type:                 in.Type,
		Statut:               in.Statut,
		DateInstallation:     date,
		Notes:                in.Notes,
	}

	prospects := &ProspectService{env: s.env, history: s.history}
	err = s.store.Transaction(ctx, func(ctx context.Context) error {
		client, err := s.prospects.Get(ctx, in.ClientID)
		if err != nil {
			return err
		}
		if err := s.installations.Insert(ctx, inst); err != nil {
			return err
		}
		if _, err := s.subscriptions.createFor(ctx, inst); err != nil {
			return err
		}
		if _, err := prospects.convert(ctx, client, inst.ID); err != nil {
			return err
		}
		return s.history.Record(ctx, client.ID, models.ActionInstallation, map[string]interface{}{
			"installation_id":   inst.ID.String(),
			"application":       inst.ApplicationInstallee,
			"montant":           inst.Montant.String(),
			"type":              inst.Type,
			"date_installation": inst.DateInstallation.Format("2006-01-02"),
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, inst.ID)
}

// Get returns one installation with its derived payment position
func (s *InstallationService) Get(ctx context.Context, id uuid.UUID) (*InstallationView, error) {
	inst, err := s.installations.Get(ctx, id, store.Preload("Client"))
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, []models.Installation{*inst})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// List returns installations matching q, most recent first
func (s *InstallationService) List(ctx context.Context, q InstallationQuery) ([]InstallationView, error) {
	opts := []store.Option{store.Desc("date_installation"), store.Preload("Client")}
	if q.ClientID != nil {
		opts = append(opts, store.Eq("client_id", *q.ClientID))
	}
	if q.Type != "" {
		opts = append(opts, store.Eq("type", q.Type))
	}
	if q.Statut != "" {
		opts = append(opts, store.Eq("statut", q.Statut))
	}
	installs, err := s.installations.Find(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, installs)
}

// Update applies patch. A new installation date moves the live
// subscription's term to start on it, or the first term when it is the
// only one and has already expired.
func (s *InstallationService) Update(ctx context.Context, id uuid.UUID, patch InstallationPatch) (*InstallationView, error) {
	err := s.store.Transaction(ctx, func(ctx context.Context) error {
		inst, err := s.installations.Get(ctx, id)
		if err != nil {
			return err
		}

		changed := map[string]interface{}{}
		if patch.ApplicationInstallee != nil && *patch.ApplicationInstallee != inst.ApplicationInstallee {
			if err := required("application_installee", *patch.ApplicationInstallee); err != nil {
				return err
			}
			inst.ApplicationInstallee = strings.TrimSpace(*patch.ApplicationInstallee)
			changed["application_installee"] = inst.ApplicationInstallee
		}
		if patch.Type != nil && *patch.Type != inst.Type {
			if !patch.Type.Valid() {
				return apperrors.NewValidationError("type", fmt.Sprintf("type inconnu: %s", *patch.Type))
			}
			inst.Type = *patch.Type
			changed["type"] = inst.Type
		}
		if patch.Statut != nil && *patch.Statut != inst.Statut {
			if !patch.Statut.Valid() {
				return apperrors.NewValidationError("statut", fmt.Sprintf("statut inconnu: %s", *patch.Statut))
			}
			inst.Statut = *patch.Statut
			changed["statut"] = inst.Statut
		}
		if patch.Notes != nil && *patch.Notes != inst.Notes {
			inst.Notes = *patch.Notes
			changed["notes"] = inst.Notes
		}

		dateChanged := false
		oldDate := inst.DateInstallation
		if patch.DateInstallation != nil {
			date, err := parseDate("date_installation", *patch.DateInstallation)
			if err != nil {
				return err
			}
			if !date.Equal(billing.Day(inst.DateInstallation)) {
				inst.DateInstallation = date
				changed["date_installation"] = date.Format("2006-01-02")
				dateChanged = true
			}
		}

		if len(changed) == 0 {
			return nil
		}
		if err := s.installations.Update(ctx, inst); err != nil {
			return err
		}
		if dateChanged {
			if err := s.moveTerm(ctx, inst, oldDate); err != nil {
				return err
			}
		}
		changed["installation_id"] = inst.ID.String()
		return s.history.Record(ctx, inst.ClientID, models.ActionUpdate, changed)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// moveTerm restarts the term of the installation's live subscriptions on
// its new date. Without a live row, the latest subscription moves when it
// is still the first term, which started on oldDate.
func (s *InstallationService) moveTerm(ctx context.Context, inst *models.Installation, oldDate time.Time) error {
	subs, err := s.subscriptions.syncInstallation(ctx, inst.ID)
	if err != nil {
		return err
	}
	var moved []models.Subscription
	for _, sub := range subs {
		if sub.IsLive() {
			moved = append(moved, sub)
		}
	}
	if len(moved) == 0 && len(subs) > 0 && billing.Day(subs[0].DateDebut).Equal(billing.Day(oldDate)) {
		moved = subs[:1]
	}

	debut, fin := billing.Term(inst.DateInstallation)
	for _, sub := range moved {
		err := s.subscriptions.subscriptions.UpdateFields(ctx, sub.ID, map[string]interface{}{
			"date_debut": debut,
			"date_fin":   fin,
			"statut":     s.rules.StatusAt(fin, s.now()),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Delete removes an installation and its subscriptions. Installations with
// payments cannot be deleted.
func (s *InstallationService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.installations.Get(ctx, id); err != nil {
			return err
		}
		paid, err := s.payments.Exists(ctx, store.Eq("installation_id", id))
		if err != nil {
			return err
		}
		if paid {
			return apperrors.NewReferentialError(apperrors.CodeInstallationHasPayments, "installation",
				"Impossible de supprimer une installation ayant des paiements")
		}
		if _, err := s.subscriptions.subscriptions.DeleteWhere(ctx, store.Eq("installation_id", id)); err != nil {
			return err
		}
		return s.installations.Delete(ctx, id)
	})
}

// Summary returns the payment position of one installation
func (s *InstallationService) Summary(ctx context.Context, id uuid.UUID) (*billing.Summary, error) {
	inst, err := s.installations.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	paid, err := s.payments.Sum(ctx, "montant", store.Eq("installation_id", id))
	if err != nil {
		return nil, err
	}
	summary := billing.Summarize(inst.Montant, paid)
	return &summary, nil
}

// views attaches payment totals and the current subscription to installs
func (s *InstallationService) views(ctx context.Context, installs []models.Installation) ([]InstallationView, error) {
	if len(installs) == 0 {
		return []InstallationView{}, nil
	}
	ids := make([]uuid.UUID, len(installs))
	for i, inst := range installs {
		ids[i] = inst.ID
	}

	payments, err := s.payments.Find(ctx, store.In("installation_id", ids...))
	if err != nil {
		return nil, err
	}
	paid := map[uuid.UUID]decimal.Decimal{}
	for _, p := range payments {
		if p.InstallationID != nil {
			paid[*p.InstallationID] = paid[*p.InstallationID].Add(p.Montant)
		}
	}

	subs, err := s.subscriptions.subscriptions.Find(ctx, store.In("installation_id", ids...), store.Desc("date_fin"))
	if err != nil {
		return nil, err
	}
	current := map[uuid.UUID]models.Subscription{}
	for _, sub := range subs {
		if _, seen := current[sub.InstallationID]; !seen {
			current[sub.InstallationID] = sub
		}
	}

	views := make([]InstallationView, 0, len(installs))
	for _, inst := range installs {
		summary := billing.Summarize(inst.Montant, paid[inst.ID])
		v := InstallationView{
			Installation:   inst,
			MontantPaye:    summary.MontantPaye,
			Reste:          summary.Reste,
			StatutPaiement: summary.StatutPaiement,
		}
		if sub, ok := current[inst.ID]; ok {
			sv := s.subscriptions.View(sub)
			v.Abonnement = &sv
		}
		views = append(views, v)
	}
	return views, nil
}

func sumInstallations(installs []models.Installation) decimal.Decimal {
	total := decimal.Zero
	for _, inst := range installs {
		total = total.Add(inst.Montant)
	}
	return total
}
