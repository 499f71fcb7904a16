package api

import (
	"net/http"

	"github.com/a2s-dz/gestion/internal/models"
	"github.com/a2s-dz/gestion/internal/services"
	"github.com/gin-gonic/gin"
)

// ListInstallations returns installations with their payment position
// GET /api/installations
func (h *Handler) ListInstallations(c *gin.Context) {
	clientID, ok := queryID(c, "client_id")
	if !ok {
		return
	}
	installs, err := h.svc.Installations.List(c.Request.Context(), services.InstallationQuery{
		ClientID: clientID,
		Type:     models.InstallationType(c.Query("type")),
		Statut:   models.InstallationStatus(c.Query("statut")),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": installs, "total": len(installs)})
}

// GetInstallation returns one installation
// GET /api/installations/:id
func (h *Handler) GetInstallation(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	inst, err := h.svc.Installations.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inst)
}

// CreateInstallation records an installation and opens its subscription
// POST /api/installations
func (h *Handler) CreateInstallation(c *gin.Context) {
	var in services.InstallationInput
	if !bindJSON(c, &in) {
		return
	}
	inst, err := h.svc.Installations.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inst)
}

// UpdateInstallation updates an installation
// PUT /api/installations/:id
func (h *Handler) UpdateInstallation(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var patch services.InstallationPatch
	if !bindJSON(c, &patch) {
		return
	}
	inst, err := h.svc.Installations.Update(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inst)
}

// DeleteInstallation deletes an installation without payments
// DELETE /api/installations/:id
func (h *Handler) DeleteInstallation(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.Installations.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "installation supprimée"})
}

// InstallationSummary returns the payment position of an installation
// GET /api/installations/:id/paiements/resume
func (h *Handler) InstallationSummary(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	summary, err := h.svc.Installations.Summary(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
