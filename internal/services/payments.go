package services

import (
	"context"
	"fmt"

	"github.com/a2s-dz/gestion/internal/auth"
	"github.com/a2s-dz/gestion/internal/billing"
	apperrors "github.com/a2s-dz/gestion/internal/errors"
	"github.com/a2s-dz/gestion/internal/metrics"
	"github.com/a2s-dz/gestion/internal/models"
	"github.com/a2s-dz/gestion/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentService records payments and triggers subscription auto-renewal
type PaymentService struct {
	*env
	history       *HistoryService
	subscriptions *SubscriptionService
}

// PaymentInput is the payload to record a payment
type PaymentInput struct {
	ClientID       uuid.UUID          `json:"client_id" binding:"required"`
	InstallationID *uuid.UUID         `json:"installation_id"`
	Montant        decimal.Decimal    `json:"montant"`
	ModePaiement   models.PaymentMode `json:"mode_paiement" binding:"required"`
	Type           models.PaymentType `json:"type" binding:"required"`
	DatePaiement   string             `json:"date_paiement"`
	Reference      string             `json:"reference"`
	Notes          string             `json:"notes"`
}

// PaymentPatch updates the provided fields only
type PaymentPatch struct {
	Montant      *decimal.Decimal    `json:"montant"`
	ModePaiement *models.PaymentMode `json:"mode_paiement"`
	Type         *models.PaymentType `json:"type"`
	DatePaiement *string             `json:"date_paiement"`
	Reference    *string             `json:"reference"`
	Notes        *string             `json:"notes"`
}

// PaymentQuery filters List
type PaymentQuery struct {
	ClientID       *uuid.UUID
	InstallationID *uuid.UUID
	Type           models.PaymentType
	From, To       string
}

// PaymentView is a payment with the position of its installation after all
// of the installation's payments
type PaymentView struct {
	models.Payment
	MontantInstallation *decimal.Decimal       `json:"montant_installation,omitempty"`
	Reste               *decimal.Decimal       `json:"reste,omitempty"`
	StatutPaiement      *billing.PaymentStatus `json:"statut_paiement,omitempty"`
}

// PaymentResult is returned by Create
type PaymentResult struct {
	Paiement   PaymentView       `json:"paiement"`
	Renouvele  bool              `json:"renouvele"`
	Abonnement *SubscriptionView `json:"abonnement,omitempty"`
}

// Create records a payment. When it settles an installation whose latest
// subscription has expired the subscription is renewed in the same
// transaction.
func (s *PaymentService) Create(ctx context.Context, in PaymentInput) (*PaymentResult, error) {
	if in.ClientID == uuid.Nil {
		return nil, apperrors.NewValidationError("client_id", "client_id est obligatoire")
	}
	if err := validatePaymentFields(in.Montant, in.ModePaiement, in.Type); err != nil {
		return nil, err
	}
	date, err := parseOptionalDate("date_paiement", in.DatePaiement, s.today())
	if err != nil {
		return nil, err
	}
	if in.InstallationID != nil && *in.InstallationID == uuid.Nil {
		in.InstallationID = nil
	}

	p := &models.Payment{
		ClientID:       in.ClientID,
		InstallationID: in.InstallationID,
		Montant:        in.Montant,
		ModePaiement:   in.ModePaiement,
		Type:           in.Type,
		DatePaiement:   date,
		Reference:      in.Reference,
		Notes:          in.Notes,
		CreatedBy:      auth.ActorID(ctx),
	}

	var renewed *models.Subscription
	err = s.store.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.prospects.Get(ctx, in.ClientID); err != nil {
			return err
		}
		var inst *models.Installation
		if p.InstallationID != nil {
			if inst, err = s.installationOf(ctx, p.ClientID, *p.InstallationID); err != nil {
				return err
			}
		}
		if err := s.payments.Insert(ctx, p); err != nil {
			return err
		}

		details := map[string]interface{}{
			"paiement_id":   p.ID.String(),
			"montant":       p.Montant.String(),
			"mode_paiement": p.ModePaiement,
			"type":          p.Type,
		}
		if inst != nil {
			details["installation_id"] = inst.ID.String()
		}
		if err := s.history.Record(ctx, p.ClientID, models.ActionPaiement, details); err != nil {
			return err
		}

		if inst != nil {
			if renewed, err = s.subscriptions.autoRenew(ctx, inst); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.PaymentsRecordedTotal.WithLabelValues(string(p.Type), string(p.ModePaiement)).Inc()

	view, err := s.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	result := &PaymentResult{Paiement: *view, Renouvele: renewed != nil}
	if renewed != nil {
		sv := s.subscriptions.View(*renewed)
		result.Abonnement = &sv
	}
	return result, nil
}

// Get returns one payment
func (s *PaymentService) Get(ctx context.Context, id uuid.UUID) (*PaymentView, error) {
	p, err := s.payments.Get(ctx, id, store.Preload("Client"), store.Preload("Installation"))
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, []models.Payment{*p})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// List returns payments matching q, most recent first
func (s *PaymentService) List(ctx context.Context, q PaymentQuery) ([]PaymentView, error) {
	opts := []store.Option{
		store.Desc("date_paiement"),
		store.Desc("created_at"),
		store.Preload("Client"),
		store.Preload("Installation"),
	}
	if q.ClientID != nil {
		opts = append(opts, store.Eq("client_id", *q.ClientID))
	}
	if q.InstallationID != nil {
		opts = append(opts, store.Eq("installation_id", *q.InstallationID))
	}
	if q.Type != "" {
		opts = append(opts, store.Eq("type", q.Type))
	}
	if q.From != "" {
		from, err := parseDate("from", q.From)
		if err != nil {
			return nil, err
		}
		opts = append(opts, store.Gte("date_paiement", from))
	}
	if q.To != "" {
		to, err := parseDate("to", q.To)
		if err != nil {
			return nil, err
		}
		opts = append(opts, store.Lte("date_paiement", to))
	}
	payments, err := s.payments.Find(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, payments)
}

// Update applies patch. The client and installation of a payment are fixed.
// A new amount that settles the installation renews its expired
// subscription as Create does.
func (s *PaymentService) Update(ctx context.Context, id uuid.UUID, patch PaymentPatch) (*PaymentView, error) {
	err := s.store.Transaction(ctx, func(ctx context.Context) error {
		p, err := s.payments.Get(ctx, id)
		if err != nil {
			return err
		}
		if patch.Montant != nil {
			p.Montant = *patch.Montant
		}
		if patch.ModePaiement != nil {
			p.ModePaiement = *patch.ModePaiement
		}
		if patch.Type != nil {
			p.Type = *patch.Type
		}
		if err := validatePaymentFields(p.Montant, p.ModePaiement, p.Type); err != nil {
			return err
		}
		if patch.DatePaiement != nil {
			if p.DatePaiement, err = parseDate("date_paiement", *patch.DatePaiement); err != nil {
				return err
			}
		}
		if patch.Reference != nil {
			p.Reference = *patch.Reference
		}
		if patch.Notes != nil {
			p.Notes = *patch.Notes
		}
		if err := s.payments.Update(ctx, p); err != nil {
			return err
		}
		if p.InstallationID == nil {
			return nil
		}
		inst, err := s.installations.Get(ctx, *p.InstallationID)
		if err != nil {
			return err
		}
		_, err = s.subscriptions.autoRenew(ctx, inst)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes a payment
func (s *PaymentService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.payments.Delete(ctx, id)
}

// ClientSummary returns what a client owes across all its installations
func (s *PaymentService) ClientSummary(ctx context.Context, clientID uuid.UUID) (*billing.Summary, error) {
	if _, err := s.prospects.Get(ctx, clientID); err != nil {
		return nil, err
	}
	installs, err := s.installations.Find(ctx, store.Eq("client_id", clientID))
	if err != nil {
		return nil, err
	}
	paid, err := s.payments.Sum(ctx, "montant", store.Eq("client_id", clientID))
	if err != nil {
		return nil, err
	}
	summary := billing.Summarize(sumInstallations(installs), paid)
	return &summary, nil
}

// installationOf loads the installation and checks it belongs to the client
func (s *PaymentService) installationOf(ctx context.Context, clientID, installationID uuid.UUID) (*models.Installation, error) {
	inst, err := s.installations.Get(ctx, installationID)
	if err != nil {
		return nil, err
	}
	if inst.ClientID != clientID {
		return nil, apperrors.NewValidationError("installation_id", "l'installation n'appartient pas à ce client")
	}
	return inst, nil
}

// views adds the cumulative remainder of each payment's installation
func (s *PaymentService) views(ctx context.Context, payments []models.Payment) ([]PaymentView, error) {
	if len(payments) == 0 {
		return []PaymentView{}, nil
	}
	var ids []uuid.UUID
	seen := map[uuid.UUID]bool{}
	for _, p := range payments {
		if p.InstallationID != nil && !seen[*p.InstallationID] {
			seen[*p.InstallationID] = true
			ids = append(ids, *p.InstallationID)
		}
	}

	summaries := map[uuid.UUID]billing.Summary{}
	if len(ids) > 0 {
		installs, err := s.installations.Find(ctx, store.In("id", ids...))
		if err != nil {
			return nil, err
		}
		all, err := s.payments.Find(ctx, store.In("installation_id", ids...))
		if err != nil {
			return nil, err
		}
		paid := map[uuid.UUID]decimal.Decimal{}
		for _, p := range all {
			paid[*p.InstallationID] = paid[*p.InstallationID].Add(p.Montant)
		}
		for _, inst := range installs {
			summaries[inst.ID] = billing.Summarize(inst.Montant, paid[inst.ID])
		}
	}

	views := make([]PaymentView, 0, len(payments))
	for _, p := range payments {
		v := PaymentView{Payment: p}
		if p.InstallationID != nil {
			if sum, ok := summaries[*p.InstallationID]; ok {
				v.MontantInstallation = &sum.MontantTotal
				v.Reste = &sum.Reste
				v.StatutPaiement = &sum.StatutPaiement
			}
		}
		views = append(views, v)
	}
	return views, nil
}

func validatePaymentFields(montant decimal.Decimal, mode models.PaymentMode, typ models.PaymentType) error {
	if !montant.IsPositive() {
		return apperrors.NewValidationError("montant", "le montant doit être supérieur à 0")
	}
	if !mode.Valid() {
		return apperrors.NewValidationError("mode_paiement", fmt.Sprintf("mode de paiement inconnu: %s", mode))
	}
	if !typ.Valid() {
		return apperrors.NewValidationError("type", fmt.Sprintf("type inconnu: %s", typ))
	}
	return nil
}
