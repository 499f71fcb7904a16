package api

import (
	"net/http"

	"github.com/a2s-dz/gestion/internal/models"
	"github.com/a2s-dz/gestion/internal/services"
	"github.com/gin-gonic/gin"
)

// =============================================================================
// INTERVENTIONS
// =============================================================================

// GET /api/interventions
func (h *Handler) ListInterventions(c *gin.Context) {
	clientID, ok := queryID(c, "client_id")
	if !ok {
		return
	}
	techID, ok := queryID(c, "technicien_id")
	if !ok {
		return
	}
	list, err := h.svc.Interventions.List(c.Request.Context(), services.InterventionQuery{
		ClientID:     clientID,
		TechnicienID: techID,
		Statut:       models.InterventionStatus(c.Query("statut")),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": len(list)})
}

// GET /api/interventions/:id
func (h *Handler) GetIntervention(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	iv, err := h.svc.Interventions.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, iv)
}

// POST /api/interventions
func (h *Handler) CreateIntervention(c *gin.Context) {
	var in services.InterventionInput
	if !bindJSON(c, &in) {
		return
	}
	iv, err := h.svc.Interventions.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, iv)
}

// PUT /api/interventions/:id
func (h *Handler) UpdateIntervention(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var patch services.InterventionPatch
	if !bindJSON(c, &patch) {
		return
	}
	iv, err := h.svc.Interventions.Update(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, iv)
}

// POST /api/interventions/:id/cloturer
func (h *Handler) CloseIntervention(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var in services.CloseIntervention
	if !bindJSON(c, &in) {
		return
	}
	iv, err := h.svc.Interventions.Close(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, iv)
}

// DELETE /api/interventions/:id
func (h *Handler) DeleteIntervention(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.Interventions.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "intervention supprimée"})
}

// =============================================================================
// MISSIONS
// =============================================================================

// GET /api/missions
func (h *Handler) ListMissions(c *gin.Context) {
	clientID, ok := queryID(c, "client_id")
	if !ok {
		return
	}
	respID, ok := queryID(c, "responsable_id")
	if !ok {
		return
	}
	list, err := h.svc.Missions.List(c.Request.Context(), services.MissionQuery{
		ClientID:      clientID,
		ResponsableID: respID,
		Statut:        models.MissionStatus(c.Query("statut")),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": len(list)})
}

// GET /api/missions/:id
func (h *Handler) GetMission(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	m, err := h.svc.Missions.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// POST /api/missions
func (h *Handler) CreateMission(c *gin.Context) {
	var in services.MissionInput
	if !bindJSON(c, &in) {
		return
	}
	m, err := h.svc.Missions.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// PUT /api/missions/:id
func (h *Handler) UpdateMission(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var patch services.MissionPatch
	if !bindJSON(c, &patch) {
		return
	}
	m, err := h.svc.Missions.Update(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// POST /api/missions/:id/demarrer
func (h *Handler) StartMission(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	m, err := h.svc.Missions.Start(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// POST /api/missions/:id/cloturer
func (h *Handler) CloseMission(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var in struct {
		Rapport string `json:"rapport"`
	}
	if !bindJSON(c, &in) {
		return
	}
	m, err := h.svc.Missions.Close(c.Request.Context(), id, in.Rapport)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// POST /api/missions/:id/valider
func (h *Handler) ValidateMission(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	m, err := h.svc.Missions.Validate(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// DELETE /api/missions/:id
func (h *Handler) DeleteMission(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.Missions.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "mission supprimée"})
}
