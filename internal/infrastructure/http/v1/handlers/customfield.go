package handlers

import (
	"github.com/gin-gonic/gin"

	"relatio/internal/core/apperror"
	"relatio/internal/domain/customfield"
	"relatio/internal/infrastructure/http/v1/dto"
)

// CustomFieldHandler serves the definition registry endpoints.
type CustomFieldHandler struct {
	*BaseHandler
	service *customfield.Service
}

// NewCustomFieldHandler creates a new custom field handler.
func NewCustomFieldHandler(base *BaseHandler, service *customfield.Service) *CustomFieldHandler {
	return &CustomFieldHandler{BaseHandler: base, service: service}
}

// Create handles POST /custom-fields.
func (h *CustomFieldHandler) Create(c *gin.Context) {
	orgID, ok := h.OrgID(c)
	if !ok {
		return
	}

	var req dto.CreateDefinitionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	def, err := h.service.Create(c.Request.Context(), req.ToEntity(orgID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, def.ID.String())
}

// Update handles PATCH /custom-fields/:id.
func (h *CustomFieldHandler) Update(c *gin.Context) {
	orgID, ok := h.OrgID(c)
	if !ok {
		return
	}
	defID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateDefinitionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	def, err := h.service.Update(c.Request.Context(), orgID, defID, req.ToPatch())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDefinition(def))
}

// Delete handles DELETE /custom-fields/:id (soft delete).
func (h *CustomFieldHandler) Delete(c *gin.Context) {
	orgID, ok := h.OrgID(c)
	if !ok {
		return
	}
	defID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), orgID, defID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// GetByID handles GET /custom-fields/:id.
func (h *CustomFieldHandler) GetByID(c *gin.Context) {
	orgID, ok := h.OrgID(c)
	if !ok {
		return
	}
	defID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	def, err := h.service.GetByID(c.Request.Context(), orgID, defID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDefinition(def))
}

// History handles GET /custom-fields/:id/history.
func (h *CustomFieldHandler) History(c *gin.Context) {
	orgID, ok := h.OrgID(c)
	if !ok {
		return
	}
	defID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	limit := h.ParseIntQuery(c, "limit", customfield.DefaultHistoryLimit)
	entries, err := h.service.History(c.Request.Context(), orgID, defID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{
		Items:      entries,
		TotalCount: int64(len(entries)),
		Limit:      limit,
	})
}

// ListByEntityType handles GET /custom-fields?entityType=lead.
func (h *CustomFieldHandler) ListByEntityType(c *gin.Context) {
	orgID, ok := h.OrgID(c)
	if !ok {
		return
	}

	entityType := c.Query("entityType")
	if entityType == "" {
		h.Error(c, apperror.NewValidation("entityType query parameter is required"))
		return
	}

	defs, err := h.service.GetByEntityType(c.Request.Context(), orgID, entityType)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{
		Items:      dto.FromDefinitions(defs),
		TotalCount: int64(len(defs)),
		Limit:      len(defs),
	})
}
