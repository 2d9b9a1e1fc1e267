package handlers

import (
	"github.com/gin-gonic/gin"

	"relatio/internal/domain/records/contact"
	"relatio/internal/infrastructure/http/v1/dto"
)

// ContactHandler serves contact endpoints.
type ContactHandler struct {
	*BaseHandler
	service *contact.Service
}

// NewContactHandler creates a new contact handler.
func NewContactHandler(base *BaseHandler, service *contact.Service) *ContactHandler {
	return &ContactHandler{BaseHandler: base, service: service}
}

// Create handles POST /contacts.
func (h *ContactHandler) Create(c *gin.Context) {
	orgID, ok := h.OrgID(c)
	if !ok {
		return
	}

	var req dto.CreateContactRequest
	if !h.BindJSON(c, &req) {
		return
	}

	entity, err := req.ToEntity(orgID)
	if err != nil {
		h.Error(c, err)
		return
	}

	created, err := h.service.Create(c.Request.Context(), entity, req.CustomFields)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, created.ID.String())
}

// Update handles PUT /contacts/:id.
func (h *ContactHandler) Update(c *gin.Context) {
	orgID, ok := h.OrgID(c)
	if !ok {
		return
	}
	contactID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateContactRequest
	if !h.BindJSON(c, &req) {
		return
	}

	entity, err := req.ToEntity(orgID, contactID)
	if err != nil {
		h.Error(c, err)
		return
	}

	updated, err := h.service.Update(c.Request.Context(), entity, req.CustomFields)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromContact(updated))
}

// Delete handles DELETE /contacts/:id (soft delete).
func (h *ContactHandler) Delete(c *gin.Context) {
	orgID, ok := h.OrgID(c)
	if !ok {
		return
	}
	contactID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), orgID, contactID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// GetByID handles GET /contacts/:id.
func (h *ContactHandler) GetByID(c *gin.Context) {
	orgID, ok := h.OrgID(c)
	if !ok {
		return
	}
	contactID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	entity, err := h.service.GetByID(c.Request.Context(), orgID, contactID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromContact(entity))
}

// List handles GET /contacts with query-string filters.
func (h *ContactHandler) List(c *gin.Context) {
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
		Items:      dto.FromContacts(result.Items),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Search handles POST /contacts/search with a JSON filter body.
func (h *ContactHandler) Search(c *gin.Context) {
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
		Items:      dto.FromContacts(result.Items),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// ListByLead handles GET /leads/:id/contacts.
func (h *ContactHandler) ListByLead(c *gin.Context) {
	orgID, ok := h.OrgID(c)
	if !ok {
		return
	}
	leadID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	items, err := h.service.ListByLead(c.Request.Context(), orgID, leadID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{
		Items:      dto.FromContacts(items),
		TotalCount: int64(len(items)),
		Limit:      len(items),
	})
}
