package services

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/a2s-dz/gestion/internal/errors"
	"github.com/a2s-dz/gestion/internal/models"
	"github.com/a2s-dz/gestion/internal/store"
	"github.com/google/uuid"
)

// UserService manages the local mirror of the hosted auth users
type UserService struct {
	*env
}

// UserInput creates a user. ID is the auth provider's subject; a new one is
// generated when omitted.
type UserInput struct {
	ID       *uuid.UUID  `json:"id"`
	Email    string      `json:"email" binding:"required,email"`
	Nom      string      `json:"nom"`
	Prenom   string      `json:"prenom"`
	Role     models.Role `json:"role" binding:"required"`
	IsActive *bool       `json:"is_active"`
}

// UserPatch updates the provided fields only
type UserPatch struct {
	Nom      *string      `json:"nom"`
	Prenom   *string      `json:"prenom"`
	Role     *models.Role `json:"role"`
	IsActive *bool        `json:"is_active"`
}

func (s *UserService) List(ctx context.Context, role models.Role) ([]models.User, error) {
	opts := []store.Option{store.Asc("nom"), store.Asc("prenom")}
	if role != "" {
		opts = append(opts, store.Eq("role", role))
	}
	return s.users.Find(ctx, opts...)
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.users.Get(ctx, id)
}

// ByEmail finds a user by email, case-insensitively
func (s *UserService) ByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.users.First(ctx, store.Eq("email", strings.ToLower(strings.TrimSpace(email))))
}

func (s *UserService) Create(ctx context.Context, in UserInput) (*models.User, error) {
	if err := required("email", in.Email); err != nil {
		return nil, err
	}
	if !in.Role.Valid() {
		return nil, apperrors.NewValidationError("role", fmt.Sprintf("rôle inconnu: %s", in.Role))
	}
	u := &models.User{
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Nom:      in.Nom,
		Prenom:   in.Prenom,
		Role:     in.Role,
		IsActive: true,
	}
	if in.ID != nil {
		u.ID = *in.ID
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	if err := s.users.Insert(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) Update(ctx context.Context, id uuid.UUID, patch UserPatch) (*models.User, error) {
	var u *models.User
	err := s.store.Transaction(ctx, func(ctx context.Context) error {
		var err error
		if u, err = s.users.Get(ctx, id); err != nil {
			return err
		}
		if patch.Nom != nil {
			u.Nom = *patch.Nom
		}
		if patch.Prenom != nil {
			u.Prenom = *patch.Prenom
		}
		if patch.Role != nil {
			if !patch.Role.Valid() {
				return apperrors.NewValidationError("role", fmt.Sprintf("rôle inconnu: %s", *patch.Role))
			}
			u.Role = *patch.Role
		}
		if patch.IsActive != nil {
			u.IsActive = *patch.IsActive
		}
		return s.users.Update(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}
