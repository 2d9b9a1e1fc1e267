package handlers

import (
	"github.com/gin-gonic/gin"

	"relatio/internal/domain/records/lead"
	"relatio/internal/infrastructure/http/v1/dto"
)

// LeadHandler serves lead endpoints.
type LeadHandler struct {
	*BaseHandler
	service *lead.Service
}

// NewLeadHandler creates a new lead handler.
func NewLeadHandler(base *BaseHandler, service *lead.Service) *LeadHandler {
	return &LeadHandler{BaseHandler: base, service: service}
}

// Create handles POST /leads.
func (h *LeadHandler) Create(c *gin.Context) {
	orgID, ok := h.OrgID(c)
	if !ok {
		return
	}

	var req dto.CreateLeadRequest
	if !h.BindJSON(c, &req) {
		return
	}

	l, err := req.ToEntity(orgID)
	if err != nil {
		h.Error(c, err)
		return
	}

	created, err := h.service.Create(c.Request.Context(), l, req.CustomFields)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, created.ID.String())
}

// Update handles PUT /leads/:id.
func (h *LeadHandler) Update(c *gin.Context) {
	orgID, ok := h.OrgID(c)
	if !ok {
		return
	}
	leadID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateLeadRequest
	if !h.BindJSON(c, &req) {
		return
	}

	l, err := req.ToEntity(orgID, leadID)
	if err != nil {
		h.Error(c, err)
		return
	}

	updated, err := h.service.Update(c.Request.Context(), l, req.CustomFields)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromLead(updated))
}

// Delete handles DELETE /leads/:id (soft delete).
func (h *LeadHandler) Delete(c *gin.Context) {
	orgID, ok := h.OrgID(c)
	if !ok {
		return
	}
	leadID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), orgID, leadID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// GetByID handles GET /leads/:id.
func (h *LeadHandler) GetByID(c *gin.Context) {
	orgID, ok := h.OrgID(c)
	if !ok {
		return
	}
	leadID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	l, err := h.service.GetByID(c.Request.Context(), orgID, leadID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromLead(l))
}

// List handles GET /leads with query-string filters.
func (h *LeadHandler) List(c *gin.Context) {
	orgID, ok := h.OrgID(c)
	if !ok {
		return
	}

	var req dto.ListRequest
	if !h.BindQuery(c, &req) {
		return
	}

	opts, err := req.ToListOptions()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), orgID, opts)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{
		Items:      dto.FromLeads(result.Items),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Search handles POST /leads/search with a JSON filter body.
func (h *LeadHandler) Search(c *gin.Context) {
	orgID, ok := h.OrgID(c)
	if !ok {
		return
	}

	var req dto.SearchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	opts, err := req.ToListOptions()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), orgID, opts)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{
		Items:      dto.FromLeads(result.Items),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}
