package services

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/a2s-dz/gestion/internal/errors"
	"github.com/a2s-dz/gestion/internal/models"
	"github.com/a2s-dz/gestion/internal/store"
	"github.com/google/uuid"
)

// InterventionService manages support interventions
type InterventionService struct {
	*env
	history *HistoryService
}

// InterventionInput is the payload to open an intervention
type InterventionInput struct {
	ClientID     uuid.UUID `json:"client_id" binding:"required"`
	TechnicienID uuid.UUID `json:"technicien_id" binding:"required"`
	Objet        string    `json:"objet" binding:"required"`
	Description  string    `json:"description"`
	DateDebut    string    `json:"date_debut"`
}

// InterventionPatch updates an open intervention
type InterventionPatch struct {
	TechnicienID *uuid.UUID `json:"technicien_id"`
	Objet        *string    `json:"objet"`
	Description  *string    `json:"description"`
	Commentaires *string    `json:"commentaires"`
}

// CloseIntervention is the payload to close an intervention
type CloseIntervention struct {
	ActionEntreprise string `json:"action_entreprise" binding:"required"`
	Commentaires     string `json:"commentaires"`
}

// InterventionQuery filters List
type InterventionQuery struct {
	ClientID     *uuid.UUID
	TechnicienID *uuid.UUID
	Statut       models.InterventionStatus
}

func (s *InterventionService) Create(ctx context.Context, in InterventionInput) (*models.Intervention, error) {
	if err := required("objet", in.Objet); err != nil {
		return nil, err
	}
	if in.ClientID == uuid.Nil {
		return nil, apperrors.NewValidationError("client_id", "client_id est obligatoire")
	}
	if in.TechnicienID == uuid.Nil {
		return nil, apperrors.NewValidationError("technicien_id", "technicien_id est obligatoire")
	}
	start := s.now().UTC()
	if strings.TrimSpace(in.DateDebut) != "" {
		t, err := time.Parse(time.RFC3339, in.DateDebut)
		if err != nil {
			if t, err = parseDate("date_debut", in.DateDebut); err != nil {
				return nil, err
			}
		}
		start = t.UTC()
	}

	iv := &models.Intervention{
		ClientID:     in.ClientID,
		TechnicienID: in.TechnicienID,
		Objet:        strings.TrimSpace(in.Objet),
		Description:  in.Description,
		Statut:       models.InterventionStatusEnCours,
		DateDebut:    start,
	}
	err := s.store.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.prospects.Get(ctx, in.ClientID); err != nil {
			return err
		}
		if _, err := s.users.Get(ctx, in.TechnicienID); err != nil {
			return err
		}
		if err := s.interventions.Insert(ctx, iv); err != nil {
			return err
		}
		return s.history.Record(ctx, iv.ClientID, models.ActionIntervention, map[string]interface{}{
			"intervention_id": iv.ID.String(),
			"objet":           iv.Objet,
			"statut":          iv.Statut,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, iv.ID)
}

func (s *InterventionService) Get(ctx context.Context, id uuid.UUID) (*models.Intervention, error) {
	return s.interventions.Get(ctx, id, store.Preload("Client"), store.Preload("Technicien"))
}

func (s *InterventionService) List(ctx context.Context, q InterventionQuery) ([]models.Intervention, error) {
	opts := []store.Option{store.Desc("date_debut"), store.Preload("Client"), store.Preload("Technicien")}
	if q.ClientID != nil {
		opts = append(opts, store.Eq("client_id", *q.ClientID))
	}
	if q.TechnicienID != nil {
		opts = append(opts, store.Eq("technicien_id", *q.TechnicienID))
	}
	if q.Statut != "" {
		opts = append(opts, store.Eq("statut", q.Statut))
	}
	return s.interventions.Find(ctx, opts...)
}

// Update edits an open intervention; closed ones are read-only
func (s *InterventionService) Update(ctx context.Context, id uuid.UUID, patch InterventionPatch) (*models.Intervention, error) {
	err := s.store.Transaction(ctx, func(ctx context.Context) error {
		iv, err := s.open(ctx, id, "modifiee")
		if err != nil {
			return err
		}
		if patch.TechnicienID != nil && *patch.TechnicienID != iv.TechnicienID {
			if _, err := s.users.Get(ctx, *patch.TechnicienID); err != nil {
				return err
			}
			iv.TechnicienID = *patch.TechnicienID
		}
		if patch.Objet != nil {
			if err := required("objet", *patch.Objet); err != nil {
				return err
			}
			iv.Objet = strings.TrimSpace(*patch.Objet)
		}
		if patch.Description != nil {
			iv.Description = *patch.Description
		}
		if patch.Commentaires != nil {
			iv.Commentaires = *patch.Commentaires
		}
		return s.interventions.Update(ctx, iv)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Close ends an intervention. Closing is final.
func (s *InterventionService) Close(ctx context.Context, id uuid.UUID, in CloseIntervention) (*models.Intervention, error) {
	if err := required("action_entreprise", in.ActionEntreprise); err != nil {
		return nil, err
	}
	err := s.store.Transaction(ctx, func(ctx context.Context) error {
		iv, err := s.open(ctx, id, string(models.InterventionStatusCloturee))
		if err != nil {
			return err
		}
		end := s.now().UTC()
		iv.Statut = models.InterventionStatusCloturee
		iv.DateFin = &end
		iv.ActionEntreprise = in.ActionEntreprise
		if in.Commentaires != "" {
			iv.Commentaires = in.Commentaires
		}
		if err := s.interventions.Update(ctx, iv); err != nil {
			return err
		}
		return s.history.Record(ctx, iv.ClientID, models.ActionIntervention, map[string]interface{}{
			"intervention_id":   iv.ID.String(),
			"objet":             iv.Objet,
			"statut":            iv.Statut,
			"action_entreprise": iv.ActionEntreprise,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *InterventionService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.interventions.Delete(ctx, id)
}

// open loads an intervention that is still en_cours
func (s *InterventionService) open(ctx context.Context, id uuid.UUID, to string) (*models.Intervention, error) {
	iv, err := s.interventions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if iv.Statut == models.InterventionStatusCloturee {
		return nil, apperrors.NewInvalidStateError("intervention", string(iv.Statut), to)
	}
	return iv, nil
}
