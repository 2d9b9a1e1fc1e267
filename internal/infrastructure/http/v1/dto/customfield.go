package dto

import (
	"encoding/json"
	"time"

	"relatio/internal/core/id"
	"relatio/internal/domain/customfield"
)

// --- Request DTOs ---

// CreateDefinitionRequest is the request body for creating a custom field
// definition.
type CreateDefinitionRequest struct {
	EntityType   string              `json:"entityType" binding:"required"`
	Key          string              `json:"key" binding:"required"`
	Label        string              `json:"label" binding:"required"`
	Description  string              `json:"description"`
	FieldType    string              `json:"fieldType" binding:"required"`
	IsRequired   bool                `json:"isRequired"`
	DefaultValue json.RawMessage     `json:"defaultValue"`
	Choices      []ChoiceDTO         `json:"choices"`
	Validation   *ValidationRulesDTO `json:"validation"`
	IsIndexed    bool                `json:"isIndexed"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateDefinitionRequest) ToEntity(orgID id.ID) *customfield.Definition {
	def := customfield.NewDefinition(orgID, r.EntityType, r.Key, customfield.FieldType(r.FieldType))
	def.Label = r.Label
	def.Description = r.Description
	def.IsRequired = r.IsRequired
	def.DefaultValue = r.DefaultValue
	def.Choices = choicesToEntity(r.Choices)
	if r.Validation != nil {
		def.Validation = r.Validation.ToEntity()
	}
	def.IsIndexed = r.IsIndexed
	return def
}

// UpdateDefinitionRequest is the request body for updating a definition.
// Key and entityType are immutable and not accepted.
type UpdateDefinitionRequest struct {
	Label        *string             `json:"label"`
	Description  *string             `json:"description"`
	FieldType    *string             `json:"fieldType"`
	IsRequired   *bool               `json:"isRequired"`
	DefaultValue json.RawMessage     `json:"defaultValue"`
	Choices      []ChoiceDTO         `json:"choices"`
	Validation   *ValidationRulesDTO `json:"validation"`
	IsIndexed    *bool               `json:"isIndexed"`
}

// ToPatch converts DTO to the service patch.
func (r *UpdateDefinitionRequest) ToPatch() customfield.UpdatePatch {
	patch := customfield.UpdatePatch{
		Label:       r.Label,
		Description: r.Description,
		IsRequired:  r.IsRequired,
		IsIndexed:   r.IsIndexed,
	}
	if r.FieldType != nil {
		ft := customfield.FieldType(*r.FieldType)
		patch.FieldType = &ft
	}
	if r.DefaultValue != nil {
		dv := []byte(r.DefaultValue)
		patch.DefaultValue = &dv
	}
	if r.Choices != nil {
		patch.Choices = choicesToEntity(r.Choices)
	}
	if r.Validation != nil {
		rules := r.Validation.ToEntity()
		patch.Validation = &rules
	}
	return patch
}

// ChoiceDTO is one selectable option of a select-type field.
type ChoiceDTO struct {
	Label string `json:"label" binding:"required"`
	Value string `json:"value" binding:"required"`
}

// ValidationRulesDTO carries optional value constraints.
type ValidationRulesDTO struct {
	Min       *float64 `json:"min"`
	Max       *float64 `json:"max"`
	MinLength *int     `json:"minLength"`
	MaxLength *int     `json:"maxLength"`
	Pattern   string   `json:"pattern"`
}

// ToEntity converts DTO to domain rules.
func (r *ValidationRulesDTO) ToEntity() customfield.Rules {
	return customfield.Rules{
		Min:       r.Min,
		Max:       r.Max,
		MinLength: r.MinLength,
		MaxLength: r.MaxLength,
		Pattern:   r.Pattern,
	}
}

func choicesToEntity(choices []ChoiceDTO) customfield.ChoiceList {
	if choices == nil {
		return nil
	}
	out := make(customfield.ChoiceList, 0, len(choices))
	for _, c := range choices {
		out = append(out, customfield.Choice{Label: c.Label, Value: c.Value})
	}
	return out
}

// --- Response DTOs ---

// DefinitionResponse is the response body for a definition. Presentation
// names the UI widget the field renders as.
type DefinitionResponse struct {
	ID           string              `json:"id"`
	EntityType   string              `json:"entityType"`
	Key          string              `json:"key"`
	Label        string              `json:"label"`
	Description  string              `json:"description,omitempty"`
	FieldType    string              `json:"fieldType"`
	Presentation string              `json:"presentation"`
	IsRequired   bool                `json:"isRequired"`
	DefaultValue json.RawMessage     `json:"defaultValue,omitempty"`
	Choices      []ChoiceDTO         `json:"choices,omitempty"`
	Validation   *ValidationRulesDTO `json:"validation,omitempty"`
	IsIndexed    bool                `json:"isIndexed"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// FromDefinition creates DefinitionResponse from a domain definition.
func FromDefinition(def *customfield.Definition) DefinitionResponse {
	resp := DefinitionResponse{
		ID:           def.ID.String(),
		EntityType:   def.EntityType,
		Key:          def.Key,
		Label:        def.Label,
		Description:  def.Description,
		FieldType:    string(def.FieldType),
		Presentation: def.FieldType.PresentationType(),
		IsRequired:   def.IsRequired,
		DefaultValue: def.DefaultValue,
		IsIndexed:    def.IsIndexed,
		CreatedAt:    def.CreatedAt,
		UpdatedAt:    def.UpdatedAt,
	}

	if len(def.Choices) > 0 {
		resp.Choices = make([]ChoiceDTO, 0, len(def.Choices))
		for _, c := range def.Choices {
			resp.Choices = append(resp.Choices, ChoiceDTO{Label: c.Label, Value: c.Value})
		}
	}

	if def.Validation != (customfield.Rules{}) {
		resp.Validation = &ValidationRulesDTO{
			Min:       def.Validation.Min,
			Max:       def.Validation.Max,
			MinLength: def.Validation.MinLength,
			MaxLength: def.Validation.MaxLength,
			Pattern:   def.Validation.Pattern,
		}
	}

	return resp
}

// FromDefinitions maps a definition list.
func FromDefinitions(defs []customfield.Definition) []DefinitionResponse {
	out := make([]DefinitionResponse, 0, len(defs))
	for i := range defs {
		out = append(out, FromDefinition(&defs[i]))
	}
	return out
}
