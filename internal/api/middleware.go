package api

import (
	"strings"

	"github.com/a2s-dz/gestion/internal/auth"
	apperrors "github.com/a2s-dz/gestion/internal/errors"
	"github.com/gin-gonic/gin"
)

// =============================================================================
// MIDDLEWARE
// =============================================================================

// AuthMiddleware validates the bearer token, loads the matching user and
// attaches it to the request context. Unknown and inactive users are
// rejected.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			respondError(c, apperrors.NewUnauthorizedError("jeton d'accès manquant"))
			return
		}

		claims, err := h.jwt.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			respondError(c, apperrors.NewUnauthorizedError("jeton d'accès invalide"))
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			respondError(c, apperrors.NewUnauthorizedError("jeton d'accès invalide"))
			return
		}

		ctx := c.Request.Context()
		user, err := h.svc.Users.Get(ctx, userID)
		if apperrors.IsNotFound(err) {
			respondError(c, apperrors.NewUnauthorizedError("utilisateur inconnu"))
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		if !user.IsActive {
			respondError(c, apperrors.NewUnauthorizedError("compte désactivé"))
			return
		}

		c.Request = c.Request.WithContext(auth.WithUser(ctx, user))
		c.Set("user_id", user.ID)
		c.Next()
	}
}

// PermissionMiddleware checks the user's role may perform action on resource
func (h *Handler) PermissionMiddleware(resource string, action auth.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		allowed, err := h.permissions.CheckPermission(ctx, auth.UserFromContext(ctx), resource, action)
		if err != nil {
			respondError(c, err)
			return
		}
		if !allowed {
			respondError(c, apperrors.NewPermissionDeniedError(string(action), resource))
			return
		}
		c.Next()
	}
}

// RequireAdminMiddleware restricts a route to admin and super_admin
func (h *Handler) RequireAdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := auth.UserFromContext(c.Request.Context())
		if user == nil || !user.Role.IsAdmin() {
			respondError(c, apperrors.NewPermissionDeniedError("admin", "users"))
			return
		}
		c.Next()
	}
}
