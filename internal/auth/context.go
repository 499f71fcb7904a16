package auth

import (
	"context"

	"github.com/a2s-dz/gestion/internal/models"
	"github.com/google/uuid"
)

type userKey struct{}

// WithUser returns a context carrying the authenticated user
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the authenticated user, or nil
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userKey{}).(*models.User)
	return user
}

// ActorID returns the ID of the authenticated user, or nil
func ActorID(ctx context.Context) *uuid.UUID {
	if user := UserFromContext(ctx); user != nil {
		id := user.ID
		return &id
	}
	return nil
}
