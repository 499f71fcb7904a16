package api

import (
	"net/http"

	"github.com/a2s-dz/gestion/internal/models"
	"github.com/a2s-dz/gestion/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ListSubscriptions returns subscriptions with their status derived now
// GET /api/abonnements
func (h *Handler) ListSubscriptions(c *gin.Context) {
	installationID, ok := queryID(c, "installation_id")
	if !ok {
		return
	}
	clientID, ok := queryID(c, "client_id")
	if !ok {
		return
	}
	subs, err := h.svc.Subscriptions.List(c.Request.Context(), services.SubscriptionQuery{
		InstallationID: installationID,
		ClientID:       clientID,
		Statut:         models.SubscriptionStatus(c.Query("statut")),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": subs, "total": len(subs)})
}

// ExpiringSubscriptions lists the subscriptions in their alert window
// GET /api/abonnements/expiring
func (h *Handler) ExpiringSubscriptions(c *gin.Context) {
	subs, err := h.svc.Subscriptions.Expiring(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": subs, "total": len(subs)})
}

// GetSubscription returns one subscription
// GET /api/abonnements/:id
func (h *Handler) GetSubscription(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	sub, err := h.svc.Subscriptions.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// CreateSubscription opens a subscription for an installation without a
// live one
// POST /api/abonnements
func (h *Handler) CreateSubscription(c *gin.Context) {
	var in struct {
		InstallationID uuid.UUID `json:"installation_id" binding:"required"`
	}
	if !bindJSON(c, &in) {
		return
	}
	sub, err := h.svc.Subscriptions.Create(c.Request.Context(), in.InstallationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

// RenewSubscription manually renews a subscription for one more year
// POST /api/abonnements/:id/renouveler
func (h *Handler) RenewSubscription(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	sub, err := h.svc.Subscriptions.Renew(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

// DeleteSubscription deletes a subscription without subscription payments
// DELETE /api/abonnements/:id
func (h *Handler) DeleteSubscription(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.Subscriptions.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "abonnement supprimé"})
}

// ReconcileSubscriptions persists every derived status now
// POST /api/abonnements/reconcile
func (h *Handler) ReconcileSubscriptions(c *gin.Context) {
	report, err := h.svc.Subscriptions.Reconcile(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
