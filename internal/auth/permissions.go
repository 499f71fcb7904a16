// Package auth - Permission checking
package auth

import (
	"context"
	"fmt"

	apperrors "github.com/a2s-dz/gestion/internal/errors"
	"github.com/a2s-dz/gestion/internal/models"
	"github.com/a2s-dz/gestion/internal/store"
	"github.com/rs/zerolog/log"
)

// Action represents a permission action
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionClose  Action = "close"
)

// Resources guarded by the permission table
const (
	ResourceProspects     = "prospects"
	ResourceClients       = "clients"
	ResourceInstallations = "installations"
	ResourceAbonnements   = "abonnements"
	ResourcePaiements     = "paiements"
	ResourceInterventions = "interventions"
	ResourceMissions      = "missions"
	ResourceDashboard     = "dashboard"
	ResourceUsers         = "users"
)

// Resources lists every known resource
var Resources = []string{
	ResourceProspects, ResourceClients, ResourceInstallations, ResourceAbonnements,
	ResourcePaiements, ResourceInterventions, ResourceMissions, ResourceDashboard, ResourceUsers,
}

func knownResource(resource string) bool {
	for _, r := range Resources {
		if r == resource {
			return true
		}
	}
	return false
}

// PermissionService handles permission checks
type PermissionService struct {
	permissions *store.Table[models.Permission]
}

// NewPermissionService creates a new permission service
func NewPermissionService(st *store.Store) *PermissionService {
	return &PermissionService{permissions: store.NewTable[models.Permission](st, "permission")}
}

// UserPermission represents computed permissions for a role on a resource
type UserPermission struct {
	CanView   bool `json:"can_view"`
	CanCreate bool `json:"can_create"`
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
	CanClose  bool `json:"can_close"`
}

// Allows reports whether action is granted
func (p UserPermission) Allows(action Action) bool {
	switch action {
	case ActionView:
		return p.CanView
	case ActionCreate:
		return p.CanCreate
	case ActionEdit:
		return p.CanEdit
	case ActionDelete:
		return p.CanDelete
	case ActionClose:
		return p.CanClose
	default:
		return false
	}
}

var allGranted = UserPermission{CanView: true, CanCreate: true, CanEdit: true, CanDelete: true, CanClose: true}

// CheckPermission checks if a user may perform action on resource.
// Inactive users are denied; admin and super_admin are always allowed.
func (s *PermissionService) CheckPermission(ctx context.Context, user *models.User, resource string, action Action) (bool, error) {
	if user == nil || !user.IsActive {
		return false, nil
	}
	perm, err := s.GetRolePermission(ctx, user.Role, resource)
	if err != nil {
		return false, err
	}
	return perm.Allows(action), nil
}

// GetRolePermission returns the permissions of role on resource
func (s *PermissionService) GetRolePermission(ctx context.Context, role models.Role, resource string) (*UserPermission, error) {
	if role.IsAdmin() {
		p := allGranted
		return &p, nil
	}

	row, err := s.permissions.First(ctx, store.Eq("role", role), store.Eq("resource", resource))
	if apperrors.IsNotFound(err) {
		return &UserPermission{}, nil
	}
	if err != nil {
		log.Error().Err(err).Str("role", string(role)).Str("resource", resource).Msg("permission lookup failed")
		return nil, err
	}

	return &UserPermission{
		CanView:   row.CanView,
		CanCreate: row.CanCreate,
		CanEdit:   row.CanEdit,
		CanDelete: row.CanDelete,
		CanClose:  row.CanClose,
	}, nil
}

// ForUser returns the user's permissions on every resource
func (s *PermissionService) ForUser(ctx context.Context, user *models.User) (map[string]UserPermission, error) {
	out := make(map[string]UserPermission, len(Resources))
	if user == nil || !user.IsActive {
		for _, r := range Resources {
			out[r] = UserPermission{}
		}
		return out, nil
	}
	for _, r := range Resources {
		perm, err := s.GetRolePermission(ctx, user.Role, r)
		if err != nil {
			return nil, err
		}
		out[r] = *perm
	}
	return out, nil
}

// Grant is the set of actions granted to a role on a resource
type Grant struct {
	Role     models.Role `json:"role" binding:"required"`
	Resource string      `json:"resource" binding:"required"`
	UserPermission
}

// Grant creates or replaces the permission row of (role, resource)
func (s *PermissionService) Grant(ctx context.Context, g Grant) (*models.Permission, error) {
	if !g.Role.Valid() {
		return nil, apperrors.NewValidationError("role", fmt.Sprintf("rôle inconnu: %s", g.Role))
	}
	if g.Role.IsAdmin() {
		return nil, apperrors.NewValidationError("role", "les administrateurs ont toutes les permissions")
	}
	if !knownResource(g.Resource) {
		return nil, apperrors.NewValidationError("resource", fmt.Sprintf("ressource inconnue: %s", g.Resource))
	}

	row, err := s.permissions.First(ctx, store.Eq("role", g.Role), store.Eq("resource", g.Resource))
	switch {
	case apperrors.IsNotFound(err):
		row = &models.Permission{Role: g.Role, Resource: g.Resource}
		applyGrant(row, g.UserPermission)
		if err := s.permissions.Insert(ctx, row); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		applyGrant(row, g.UserPermission)
		if err := s.permissions.Update(ctx, row); err != nil {
			return nil, err
		}
	}
	return row, nil
}

// Revoke removes the permission row of (role, resource)
func (s *PermissionService) Revoke(ctx context.Context, role models.Role, resource string) error {
	n, err := s.permissions.DeleteWhere(ctx, store.Eq("role", role), store.Eq("resource", resource))
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NewNotFoundError("permission")
	}
	return nil
}

// List returns the permission rows, optionally for one role
func (s *PermissionService) List(ctx context.Context, role models.Role) ([]models.Permission, error) {
	opts := []store.Option{store.Asc("role"), store.Asc("resource")}
	if role != "" {
		opts = append(opts, store.Eq("role", role))
	}
	return s.permissions.Find(ctx, opts...)
}

func applyGrant(row *models.Permission, p UserPermission) {
	row.CanView = p.CanView
	row.CanCreate = p.CanCreate
	row.CanEdit = p.CanEdit
	row.CanDelete = p.CanDelete
	row.CanClose = p.CanClose
}
