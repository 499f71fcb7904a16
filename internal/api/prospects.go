package api

import (
	"net/http"
	"strings"

	apperrors "github.com/a2s-dz/gestion/internal/errors"
	"github.com/a2s-dz/gestion/internal/models"
	"github.com/a2s-dz/gestion/internal/services"
	"github.com/a2s-dz/gestion/internal/store"
	"github.com/gin-gonic/gin"
)

const maxPageSize = 500

// Columns a prospect list may be filtered on with filter[column__op]=value
var prospectFilterColumns = map[string]bool{
	"nom": true, "entreprise": true, "email": true, "telephone": true,
	"wilaya": true, "secteur": true, "statut": true, "created_at": true,
}

func prospectQuery(c *gin.Context) (services.ProspectQuery, bool) {
	q := services.ProspectQuery{
		Statut:  models.ProspectStatus(c.Query("statut")),
		Secteur: models.Secteur(c.Query("secteur")),
		Wilaya:  c.Query("wilaya"),
		Search:  c.Query("search"),
	}
	q.Page.Limit = min(parseIntParam(c.Query("limit"), 0), maxPageSize)
	q.Page.Offset = parseIntParam(c.Query("offset"), 0)
	// Format: filter[field__op]=value
	for key, values := range c.Request.URL.Query() {
		if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") || len(values) == 0 {
			continue
		}
		f, err := store.ParseFilter(key[7:len(key)-1], values[0])
		if err != nil {
			respondError(c, err)
			return q, false
		}
		if !prospectFilterColumns[f.Column] {
			respondError(c, apperrors.NewValidationError(key, "colonne non filtrable"))
			return q, false
		}
		q.Filters = append(q.Filters, f)
	}
	return q, true
}

// ListProspects returns prospects
// GET /api/prospects
func (h *Handler) ListProspects(c *gin.Context) {
	q, ok := prospectQuery(c)
	if !ok {
		return
	}
	prospects, err := h.svc.Prospects.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": prospects, "total": len(prospects)})
}

// GetProspect returns one prospect
// GET /api/prospects/:id
func (h *Handler) GetProspect(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	p, err := h.svc.Prospects.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// CreateProspect creates a prospect
// POST /api/prospects
func (h *Handler) CreateProspect(c *gin.Context) {
	var in services.ProspectInput
	if !bindJSON(c, &in) {
		return
	}
	p, err := h.svc.Prospects.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// UpdateProspect updates a prospect
// PUT /api/prospects/:id
func (h *Handler) UpdateProspect(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var patch services.ProspectPatch
	if !bindJSON(c, &patch) {
		return
	}
	p, err := h.svc.Prospects.Update(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeleteProspect deletes an unreferenced prospect
// DELETE /api/prospects/:id
func (h *Handler) DeleteProspect(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.Prospects.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "prospect supprimé"})
}

// ProspectHistory returns the prospect's activity history
// GET /api/prospects/:id/historique
func (h *Handler) ProspectHistory(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	events, err := h.svc.History.List(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events})
}

// ListClients returns converted prospects with their payment summary
// GET /api/clients
func (h *Handler) ListClients(c *gin.Context) {
	q, ok := prospectQuery(c)
	if !ok {
		return
	}
	clients, err := h.svc.Prospects.Clients(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": clients, "total": len(clients)})
}

// GetClient returns one client with its payment summary
// GET /api/clients/:id
func (h *Handler) GetClient(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	client, err := h.svc.Prospects.ClientSummary(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}
