package api

import (
	"net/http"

	"github.com/a2s-dz/gestion/internal/models"
	"github.com/a2s-dz/gestion/internal/services"
	"github.com/gin-gonic/gin"
)

// ListPayments returns payments with their installation's remainder
// GET /api/paiements
func (h *Handler) ListPayments(c *gin.Context) {
	clientID, ok := queryID(c, "client_id")
	if !ok {
		return
	}
	installationID, ok := queryID(c, "installation_id")
	if !ok {
		return
	}
	payments, err := h.svc.Payments.List(c.Request.Context(), services.PaymentQuery{
		ClientID:       clientID,
		InstallationID: installationID,
		Type:           models.PaymentType(c.Query("type")),
		From:           c.Query("from"),
		To:             c.Query("to"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payments, "total": len(payments)})
}

// GetPayment returns one payment
// GET /api/paiements/:id
func (h *Handler) GetPayment(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	p, err := h.svc.Payments.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// CreatePayment records a payment, renewing an expired subscription it settles
// POST /api/paiements
func (h *Handler) CreatePayment(c *gin.Context) {
	var in services.PaymentInput
	if !bindJSON(c, &in) {
		return
	}
	res, err := h.svc.Payments.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// UpdatePayment updates a payment
// PUT /api/paiements/:id
func (h *Handler) UpdatePayment(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var patch services.PaymentPatch
	if !bindJSON(c, &patch) {
		return
	}
	p, err := h.svc.Payments.Update(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeletePayment deletes a payment
// DELETE /api/paiements/:id
func (h *Handler) DeletePayment(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.Payments.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "paiement supprimé"})
}

// ClientPaymentSummary returns what a client owes
// GET /api/clients/:id/paiements/resume
func (h *Handler) ClientPaymentSummary(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	summary, err := h.svc.Payments.ClientSummary(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
