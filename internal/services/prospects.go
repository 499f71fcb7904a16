package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/a2s-dz/gestion/internal/auth"
	"github.com/a2s-dz/gestion/internal/billing"
	apperrors "github.com/a2s-dz/gestion/internal/errors"
	"github.com/a2s-dz/gestion/internal/models"
	"github.com/a2s-dz/gestion/internal/store"
	"github.com/google/uuid"
)

// ProspectService manages prospects and clients
type ProspectService struct {
	*env
	history *HistoryService
}

// ProspectInput is the payload to create a prospect
type ProspectInput struct {
	Nom        string                `json:"nom" binding:"required"`
	Entreprise string                `json:"entreprise"`
	Email      string                `json:"email" binding:"omitempty,email"`
	Telephone  string                `json:"telephone"`
	Adresse    string                `json:"adresse"`
	Wilaya     string                `json:"wilaya"`
	Secteur    models.Secteur        `json:"secteur"`
	Statut     models.ProspectStatus `json:"statut"`
	Notes      string                `json:"notes"`
}

// ProspectPatch updates the provided fields only
type ProspectPatch struct {
	Nom        *string                `json:"nom"`
	Entreprise *string                `json:"entreprise"`
	Email      *string                `json:"email" binding:"omitempty,email"`
	Telephone  *string                `json:"telephone"`
	Adresse    *string                `json:"adresse"`
	Wilaya     *string                `json:"wilaya"`
	Secteur    *models.Secteur        `json:"secteur"`
	Statut     *models.ProspectStatus `json:"statut"`
	Notes      *string                `json:"notes"`
}

// ProspectQuery filters List
type ProspectQuery struct {
	Statut  models.ProspectStatus
	Secteur models.Secteur
	Wilaya  string
	Search  string
	Filters []store.Filter
	Page    store.Page
}

// ClientView is a converted prospect with its payment position
type ClientView struct {
	models.Prospect
	NombreInstallations int64           `json:"nombre_installations"`
	Paiement            billing.Summary `json:"paiement"`
}

// Create validates and inserts a prospect and records the create event
func (s *ProspectService) Create(ctx context.Context, in ProspectInput) (*models.Prospect, error) {
	if err := required("nom", in.Nom); err != nil {
		return nil, err
	}
	if in.Secteur != "" && !in.Secteur.Valid() {
		return nil, apperrors.NewValidationError("secteur", fmt.Sprintf("secteur inconnu: %s", in.Secteur))
	}
	if in.Statut == "" {
		in.Statut = models.ProspectStatusProspect
	}
	if !in.Statut.Valid() {
		return nil, apperrors.NewValidationError("statut", fmt.Sprintf("statut inconnu: %s", in.Statut))
	}

	p := &models.Prospect{
		Nom:        strings.TrimSpace(in.Nom),
		Entreprise: in.Entreprise,
		Email:      strings.TrimSpace(in.Email),
		Telephone:  in.Telephone,
		Adresse:    in.Adresse,
		Wilaya:     in.Wilaya,
		Secteur:    in.Secteur,
		Statut:     in.Statut,
		Notes:      in.Notes,
		CreatedBy:  auth.ActorID(ctx),
	}

	err := s.store.Transaction(ctx, func(ctx context.Context) error {
		if err := s.prospects.Insert(ctx, p); err != nil {
			return err
		}
		return s.history.Record(ctx, p.ID, models.ActionCreate, map[string]interface{}{
			"nom":    p.Nom,
			"statut": p.Statut,
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns one prospect
func (s *ProspectService) Get(ctx context.Context, id uuid.UUID) (*models.Prospect, error) {
	return s.prospects.Get(ctx, id)
}

// List returns prospects matching q, newest first
func (s *ProspectService) List(ctx context.Context, q ProspectQuery) ([]models.Prospect, error) {
	opts := []store.Option{store.Desc("created_at")}
	if q.Statut != "" {
		opts = append(opts, store.Eq("statut", q.Statut))
	}
	if q.Secteur != "" {
		opts = append(opts, store.Eq("secteur", q.Secteur))
	}
	if q.Wilaya != "" {
		opts = append(opts, store.Eq("wilaya", q.Wilaya))
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		opts = append(opts, store.AnyOf{
			store.Like("nom", term),
			store.Like("entreprise", term),
			store.Like("email", term),
			store.Like("telephone", term),
		})
	}
	for _, f := range q.Filters {
		opts = append(opts, f)
	}
	opts = append(opts, q.Page)
	return s.prospects.Find(ctx, opts...)
}

// Update applies patch and records which fields changed
func (s *ProspectService) Update(ctx context.Context, id uuid.UUID, patch ProspectPatch) (*models.Prospect, error) {
	var p *models.Prospect
	err := s.store.Transaction(ctx, func(ctx context.Context) error {
		var err error
		if p, err = s.prospects.Get(ctx, id); err != nil {
			return err
		}

		changed := map[string]interface{}{}
		setString := func(field string, dst *string, src *string) {
			if src != nil && *src != *dst {
				*dst = *src
				changed[field] = *src
			}
		}
		if patch.Nom != nil {
			if err := required("nom", *patch.Nom); err != nil {
				return err
			}
		}
		setString("nom", &p.Nom, patch.Nom)
		setString("entreprise", &p.Entreprise, patch.Entreprise)
		setString("email", &p.Email, patch.Email)
		setString("telephone", &p.Telephone, patch.Telephone)
		setString("adresse", &p.Adresse, patch.Adresse)
		setString("wilaya", &p.Wilaya, patch.Wilaya)
		setString("notes", &p.Notes, patch.Notes)

		if patch.Secteur != nil && *patch.Secteur != p.Secteur {
			if *patch.Secteur != "" && !patch.Secteur.Valid() {
				return apperrors.NewValidationError("secteur", fmt.Sprintf("secteur inconnu: %s", *patch.Secteur))
			}
			p.Secteur = *patch.Secteur
			changed["secteur"] = p.Secteur
		}
		if patch.Statut != nil && *patch.Statut != p.Statut {
			if !patch.Statut.Valid() {
				return apperrors.NewValidationError("statut", fmt.Sprintf("statut inconnu: %s", *patch.Statut))
			}
			p.Statut = *patch.Statut
			changed["statut"] = p.Statut
		}

		if len(changed) == 0 {
			return nil
		}
		if err := s.prospects.Update(ctx, p); err != nil {
			return err
		}
		return s.history.Record(ctx, p.ID, models.ActionUpdate, map[string]interface{}{"champs": changed})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a prospect that nothing references, with its history
func (s *ProspectService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.prospects.Get(ctx, id); err != nil {
			return err
		}

		checks := []struct {
			what   string
			exists func() (bool, error)
		}{
			{"installations", func() (bool, error) { return s.installations.Exists(ctx, store.Eq("client_id", id)) }},
			{"paiements", func() (bool, error) { return s.payments.Exists(ctx, store.Eq("client_id", id)) }},
			{"interventions", func() (bool, error) { return s.interventions.Exists(ctx, store.Eq("client_id", id)) }},
			{"missions", func() (bool, error) { return s.missions.Exists(ctx, store.Eq("client_id", id)) }},
		}
		for _, c := range checks {
			found, err := c.exists()
			if err != nil {
				return err
			}
			if found {
				return apperrors.NewReferentialError(apperrors.CodeProspectReferenced, "prospect",
					fmt.Sprintf("Impossible de supprimer ce prospect: il est référencé par des %s", c.what))
			}
		}

		if _, err := s.activities.DeleteWhere(ctx, store.Eq("prospect_id", id)); err != nil {
			return err
		}
		return s.prospects.Delete(ctx, id)
	})
}

// convert turns a prospect into a client on its first installation.
// It reports whether a conversion happened.
func (s *ProspectService) convert(ctx context.Context, p *models.Prospect, installationID uuid.UUID) (bool, error) {
	if p.Statut != models.ProspectStatusProspect {
		return false, nil
	}
	if err := s.prospects.UpdateFields(ctx, p.ID, map[string]interface{}{"statut": models.ProspectStatusActif}); err != nil {
		return false, err
	}
	p.Statut = models.ProspectStatusActif
	return true, s.history.Record(ctx, p.ID, models.ActionConversion, map[string]interface{}{
		"ancien_statut":   models.ProspectStatusProspect,
		"nouveau_statut":  models.ProspectStatusActif,
		"installation_id": installationID.String(),
	})
}

// Clients returns converted prospects with their payment summary
func (s *ProspectService) Clients(ctx context.Context, q ProspectQuery) ([]ClientView, error) {
	if q.Statut == models.ProspectStatusProspect {
		return []ClientView{}, nil
	}
	q.Filters = append(q.Filters, store.Ne("statut", models.ProspectStatusProspect))
	clients, err := s.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(clients) == 0 {
		return []ClientView{}, nil
	}

	ids := make([]uuid.UUID, len(clients))
	for i, c := range clients {
		ids[i] = c.ID
	}
	installations, err := s.installations.Find(ctx, store.In("client_id", ids...))
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.Find(ctx, store.In("client_id", ids...))
	if err != nil {
		return nil, err
	}

	totals := map[uuid.UUID][]models.Installation{}
	for _, inst := range installations {
		totals[inst.ClientID] = append(totals[inst.ClientID], inst)
	}
	paid := map[uuid.UUID][]models.Payment{}
	for _, p := range payments {
		paid[p.ClientID] = append(paid[p.ClientID], p)
	}

	views := make([]ClientView, 0, len(clients))
	for _, c := range clients {
		views = append(views, ClientView{
			Prospect:            c,
			NombreInstallations: int64(len(totals[c.ID])),
			Paiement:            billing.Summarize(sumInstallations(totals[c.ID]), billing.SumPayments(paid[c.ID])),
		})
	}
	return views, nil
}

// ClientSummary returns the payment position of one client
func (s *ProspectService) ClientSummary(ctx context.Context, clientID uuid.UUID) (*ClientView, error) {
	c, err := s.prospects.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	installations, err := s.installations.Find(ctx, store.Eq("client_id", clientID))
	if err != nil {
		return nil, err
	}
	paid, err := s.payments.Sum(ctx, "montant", store.Eq("client_id", clientID))
	if err != nil {
		return nil, err
	}
	return &ClientView{
		Prospect:            *c,
		NombreInstallations: int64(len(installations)),
		Paiement:            billing.Summarize(sumInstallations(installations), paid),
	}, nil
}
