package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"relatio/internal/core/apperror"
	"relatio/internal/core/entity"
	"relatio/internal/core/id"
	"relatio/internal/domain/records/lead"
)

// --- Request DTOs ---

// CreateLeadRequest is the request body for creating a lead. CustomFields
// carries raw custom field input keyed by definition key.
type CreateLeadRequest struct {
	Name         string           `json:"name" binding:"required"`
	Status       string           `json:"status"`
	Source       *string          `json:"source"`
	Email        *string          `json:"email"`
	Phone        *string          `json:"phone"`
	Amount       *decimal.Decimal `json:"amount"`
	OwnerID      *string          `json:"ownerId"`
	CustomFields map[string]any   `json:"customFields"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateLeadRequest) ToEntity(orgID id.ID) (*lead.Lead, error) {
	l := lead.New(orgID, r.Name)
	if r.Status != "" {
		l.Status = lead.Status(r.Status)
	}
	l.Source = r.Source
	l.Email = r.Email
	l.Phone = r.Phone
	l.Amount = r.Amount

	if r.OwnerID != nil {
		ownerID, err := id.Parse(*r.OwnerID)
		if err != nil {
			return nil, apperror.NewValidation("invalid ownerId").WithDetail("ownerId", *r.OwnerID)
		}
		l.OwnerID = &ownerID
	}
	return l, nil
}

// UpdateLeadRequest is the request body for updating a lead. CustomFields
// are merged; a null value clears the field.
type UpdateLeadRequest struct {
	Name         string           `json:"name" binding:"required"`
	Status       string           `json:"status" binding:"required"`
	Source       *string          `json:"source"`
	Email        *string          `json:"email"`
	Phone        *string          `json:"phone"`
	Amount       *decimal.Decimal `json:"amount"`
	OwnerID      *string          `json:"ownerId"`
	Version      int              `json:"version" binding:"required,min=1"`
	CustomFields map[string]any   `json:"customFields"`
}

// ToEntity converts DTO to a domain entity carrying the target identity.
func (r *UpdateLeadRequest) ToEntity(orgID, leadID id.ID) (*lead.Lead, error) {
	l := &lead.Lead{
		BaseRecord: entity.BaseRecord{
			ID:             leadID,
			OrganizationID: orgID,
			Version:        r.Version,
		},
		Name:   r.Name,
		Status: lead.Status(r.Status),
		Source: r.Source,
		Email:  r.Email,
		Phone:  r.Phone,
		Amount: r.Amount,
	}

	if r.OwnerID != nil {
		ownerID, err := id.Parse(*r.OwnerID)
		if err != nil {
			return nil, apperror.NewValidation("invalid ownerId").WithDetail("ownerId", *r.OwnerID)
		}
		l.OwnerID = &ownerID
	}
	return l, nil
}

// --- Response DTOs ---

// LeadResponse is the response body for a lead.
type LeadResponse struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Status       string           `json:"status"`
	Source       *string          `json:"source,omitempty"`
	Email        *string          `json:"email,omitempty"`
	Phone        *string          `json:"phone,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	OwnerID      *string          `json:"ownerId,omitempty"`
	CustomFields map[string]any   `json:"customFields,omitempty"`
	IsDeleted    bool             `json:"isDeleted"`
	Version      int              `json:"version"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// FromLead creates LeadResponse from a domain lead.
func FromLead(l *lead.Lead) LeadResponse {
	resp := LeadResponse{
		ID:           l.ID.String(),
		Name:         l.Name,
		Status:       string(l.Status),
		Source:       l.Source,
		Email:        l.Email,
		Phone:        l.Phone,
		Amount:       l.Amount,
		CustomFields: l.Attributes,
		IsDeleted:    l.IsDeleted,
		Version:      l.Version,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
	if l.OwnerID != nil {
		owner := l.OwnerID.String()
		resp.OwnerID = &owner
	}
	return resp
}

// FromLeads maps a lead list.
func FromLeads(items []*lead.Lead) []LeadResponse {
	out := make([]LeadResponse, 0, len(items))
	for _, l := range items {
		out = append(out, FromLead(l))
	}
	return out
}
