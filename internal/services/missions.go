package services

import (
	"context"
	"strings"

	"github.com/a2s-dz/gestion/internal/auth"
	apperrors "github.com/a2s-dz/gestion/internal/errors"
	"github.com/a2s-dz/gestion/internal/models"
	"github.com/a2s-dz/gestion/internal/store"
	"github.com/google/uuid"
)

// MissionService manages field missions and their two-step sign-off:
// creee -> en_cours -> cloturee -> validee
type MissionService struct {
	*env
	history *HistoryService
}

// MissionInput is the payload to create a mission
type MissionInput struct {
	ClientID      *uuid.UUID `json:"client_id"`
	Titre         string     `json:"titre" binding:"required"`
	Description   string     `json:"description"`
	Lieu          string     `json:"lieu"`
	ResponsableID *uuid.UUID `json:"responsable_id"`
	DatePrevue    string     `json:"date_prevue"`
}

// MissionPatch updates a mission that has not been closed
type MissionPatch struct {
	Titre         *string    `json:"titre"`
	Description   *string    `json:"description"`
	Lieu          *string    `json:"lieu"`
	ResponsableID *uuid.UUID `json:"responsable_id"`
	DatePrevue    *string    `json:"date_prevue"`
}

// MissionQuery filters List
type MissionQuery struct {
	ClientID      *uuid.UUID
	ResponsableID *uuid.UUID
	Statut        models.MissionStatus
}

func (s *MissionService) Create(ctx context.Context, in MissionInput) (*models.Mission, error) {
	if err := required("titre", in.Titre); err != nil {
		return nil, err
	}
	m := &models.Mission{
		ClientID:      nilIfZero(in.ClientID),
		Titre:         strings.TrimSpace(in.Titre),
		Description:   in.Description,
		Lieu:          in.Lieu,
		ResponsableID: nilIfZero(in.ResponsableID),
		Statut:        models.MissionStatusCreee,
	}
	if strings.TrimSpace(in.DatePrevue) != "" {
		d, err := parseDate("date_prevue", in.DatePrevue)
		if err != nil {
			return nil, err
		}
		m.DatePrevue = &d
	}

	err := s.store.Transaction(ctx, func(ctx context.Context) error {
		if m.ClientID != nil {
			if _, err := s.prospects.Get(ctx, *m.ClientID); err != nil {
				return err
			}
		}
		if m.ResponsableID != nil {
			if _, err := s.users.Get(ctx, *m.ResponsableID); err != nil {
				return err
			}
		}
		if err := s.missions.Insert(ctx, m); err != nil {
			return err
		}
		return s.record(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, m.ID)
}

func (s *MissionService) Get(ctx context.Context, id uuid.UUID) (*models.Mission, error) {
	return s.missions.Get(ctx, id, store.Preload("Client"))
}

func (s *MissionService) List(ctx context.Context, q MissionQuery) ([]models.Mission, error) {
	opts := []store.Option{store.Desc("created_at"), store.Preload("Client")}
	if q.ClientID != nil {
		opts = append(opts, store.Eq("client_id", *q.ClientID))
	}
	if q.ResponsableID != nil {
		opts = append(opts, store.Eq("responsable_id", *q.ResponsableID))
	}
	if q.Statut != "" {
		opts = append(opts, store.Eq("statut", q.Statut))
	}
	return s.missions.Find(ctx, opts...)
}

// Update edits a mission until it is closed
func (s *MissionService) Update(ctx context.Context, id uuid.UUID, patch MissionPatch) (*models.Mission, error) {
	err := s.store.Transaction(ctx, func(ctx context.Context) error {
		m, err := s.missions.Get(ctx, id)
		if err != nil {
			return err
		}
		if m.Statut == models.MissionStatusCloturee || m.Statut == models.MissionStatusValidee {
			return apperrors.NewInvalidStateError("mission", string(m.Statut), "modifiee")
		}
		if patch.Titre != nil {
			if err := required("titre", *patch.Titre); err != nil {
				return err
			}
			m.Titre = strings.TrimSpace(*patch.Titre)
		}
		if patch.Description != nil {
			m.Description = *patch.Description
		}
		if patch.Lieu != nil {
			m.Lieu = *patch.Lieu
		}
		if patch.ResponsableID != nil {
			m.ResponsableID = nilIfZero(patch.ResponsableID)
			if m.ResponsableID != nil {
				if _, err := s.users.Get(ctx, *m.ResponsableID); err != nil {
					return err
				}
			}
		}
		if patch.DatePrevue != nil {
			if strings.TrimSpace(*patch.DatePrevue) == "" {
				m.DatePrevue = nil
			} else {
				d, err := parseDate("date_prevue", *patch.DatePrevue)
				if err != nil {
					return err
				}
				m.DatePrevue = &d
			}
		}
		return s.missions.Update(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Start moves a created mission to en_cours
func (s *MissionService) Start(ctx context.Context, id uuid.UUID) (*models.Mission, error) {
	return s.advance(ctx, id, models.MissionStatusEnCours, func(m *models.Mission) {})
}

// Close is the technical sign-off of a mission in progress
func (s *MissionService) Close(ctx context.Context, id uuid.UUID, rapport string) (*models.Mission, error) {
	return s.advance(ctx, id, models.MissionStatusCloturee, func(m *models.Mission) {
		now := s.now().UTC()
		m.ClotureeParID = auth.ActorID(ctx)
		m.DateCloture = &now
		m.Rapport = rapport
	})
}

// Validate is the administrative sign-off of a closed mission. Only admins
// may validate.
func (s *MissionService) Validate(ctx context.Context, id uuid.UUID) (*models.Mission, error) {
	if u := actor(ctx); u == nil || !u.Role.IsAdmin() {
		return nil, apperrors.NewPermissionDeniedError("validate", "missions")
	}
	return s.advance(ctx, id, models.MissionStatusValidee, func(m *models.Mission) {
		now := s.now().UTC()
		m.ValideeParID = auth.ActorID(ctx)
		m.DateValidation = &now
	})
}

func (s *MissionService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.missions.Delete(ctx, id)
}

// advance applies the transition to next when it directly follows the
// current status
func (s *MissionService) advance(ctx context.Context, id uuid.UUID, next models.MissionStatus, apply func(*models.Mission)) (*models.Mission, error) {
	err := s.store.Transaction(ctx, func(ctx context.Context) error {
		m, err := s.missions.Get(ctx, id)
		if err != nil {
			return err
		}
		if m.Statut.Next() != next {
			return apperrors.NewInvalidStateError("mission", string(m.Statut), string(next))
		}
		m.Statut = next
		apply(m)
		if err := s.missions.Update(ctx, m); err != nil {
			return err
		}
		return s.record(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// record logs the mission on its client's history; missions without a
// client have none
func (s *MissionService) record(ctx context.Context, m *models.Mission) error {
	if m.ClientID == nil {
		return nil
	}
	return s.history.Record(ctx, *m.ClientID, models.ActionMission, map[string]interface{}{
		"mission_id": m.ID.String(),
		"titre":      m.Titre,
		"statut":     m.Statut,
	})
}

func nilIfZero(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	v := *id
	return &v
}
