package api

import (
	"net/http"

	"github.com/a2s-dz/gestion/internal/auth"
	"github.com/a2s-dz/gestion/internal/models"
	"github.com/a2s-dz/gestion/internal/services"
	"github.com/gin-gonic/gin"
)

// =============================================================================
// DASHBOARD
// =============================================================================

// DashboardStats returns the aggregate counters
// GET /api/dashboard/stats
func (h *Handler) DashboardStats(c *gin.Context) {
	stats, err := h.svc.Dashboard.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// DashboardInsights returns AI insights over the current stats. It falls
// back to rule-based insights when no provider answers.
// GET /api/dashboard/insights
func (h *Handler) DashboardInsights(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := h.svc.Dashboard.Stats(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stats":    stats,
		"insights": h.insights.Generate(ctx, stats),
	})
}

// =============================================================================
// CURRENT USER
// =============================================================================

// Me returns the authenticated user with its effective permissions
// GET /api/me
func (h *Handler) Me(c *gin.Context) {
	ctx := c.Request.Context()
	user := auth.UserFromContext(ctx)
	perms, err := h.permissions.ForUser(ctx, user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "permissions": perms})
}

// =============================================================================
// USERS (admin)
// =============================================================================

// GET /api/admin/users
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.svc.Users.List(c.Request.Context(), models.Role(c.Query("role")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": users, "total": len(users)})
}

// POST /api/admin/users
func (h *Handler) CreateUser(c *gin.Context) {
	var in services.UserInput
	if !bindJSON(c, &in) {
		return
	}
	user, err := h.svc.Users.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// PUT /api/admin/users/:id
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var patch services.UserPatch
	if !bindJSON(c, &patch) {
		return
	}
	user, err := h.svc.Users.Update(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// =============================================================================
// PERMISSIONS (admin)
// =============================================================================

// GET /api/admin/permissions
func (h *Handler) ListPermissions(c *gin.Context) {
	perms, err := h.permissions.List(c.Request.Context(), models.Role(c.Query("role")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": perms})
}

// PUT /api/admin/permissions
func (h *Handler) GrantPermission(c *gin.Context) {
	var g auth.Grant
	if !bindJSON(c, &g) {
		return
	}
	row, err := h.permissions.Grant(c.Request.Context(), g)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// DELETE /api/admin/permissions/:role/:resource
func (h *Handler) RevokePermission(c *gin.Context) {
	err := h.permissions.Revoke(c.Request.Context(), models.Role(c.Param("role")), c.Param("resource"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "permission révoquée"})
}
