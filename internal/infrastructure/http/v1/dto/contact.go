package dto

import (
	"time"

	"relatio/internal/core/apperror"
	"relatio/internal/core/entity"
	"relatio/internal/core/id"
	"relatio/internal/domain/records/contact"
)

// --- Request DTOs ---

// CreateContactRequest is the request body for creating a contact.
type CreateContactRequest struct {
	FirstName    string         `json:"firstName"`
	LastName     string         `json:"lastName"`
	Email        *string        `json:"email"`
	Phone        *string        `json:"phone"`
	Position     *string        `json:"position"`
	LeadID       *string        `json:"leadId"`
	CustomFields map[string]any `json:"customFields"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateContactRequest) ToEntity(orgID id.ID) (*contact.Contact, error) {
	c := contact.New(orgID, r.FirstName, r.LastName)
	c.Email = r.Email
	c.Phone = r.Phone
	c.Position = r.Position

	if r.LeadID != nil {
		leadID, err := id.Parse(*r.LeadID)
		if err != nil {
			return nil, apperror.NewValidation("invalid leadId").WithDetail("leadId", *r.LeadID)
		}
		c.LeadID = &leadID
	}
	return c, nil
}

// UpdateContactRequest is the request body for updating a contact.
type UpdateContactRequest struct {
	FirstName    string         `json:"firstName"`
	LastName     string         `json:"lastName"`
	Email        *string        `json:"email"`
	Phone        *string        `json:"phone"`
	Position     *string        `json:"position"`
	LeadID       *string        `json:"leadId"`
	Version      int            `json:"version" binding:"required,min=1"`
	CustomFields map[string]any `json:"customFields"`
}

// ToEntity converts DTO to a domain entity carrying the target identity.
func (r *UpdateContactRequest) ToEntity(orgID, contactID id.ID) (*contact.Contact, error) {
	c := &contact.Contact{
		BaseRecord: entity.BaseRecord{
			ID:             contactID,
			OrganizationID: orgID,
			Version:        r.Version,
		},
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Phone:     r.Phone,
		Position:  r.Position,
	}

	if r.LeadID != nil {
		leadID, err := id.Parse(*r.LeadID)
		if err != nil {
			return nil, apperror.NewValidation("invalid leadId").WithDetail("leadId", *r.LeadID)
		}
		c.LeadID = &leadID
	}
	return c, nil
}

// --- Response DTOs ---

// ContactResponse is the response body for a contact.
type ContactResponse struct {
	ID           string         `json:"id"`
	FirstName    string         `json:"firstName"`
	LastName     string         `json:"lastName"`
	FullName     string         `json:"fullName"`
	Email        *string        `json:"email,omitempty"`
	Phone        *string        `json:"phone,omitempty"`
	Position     *string        `json:"position,omitempty"`
	LeadID       *string        `json:"leadId,omitempty"`
	CustomFields map[string]any `json:"customFields,omitempty"`
	IsDeleted    bool           `json:"isDeleted"`
	Version      int            `json:"version"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// FromContact creates ContactResponse from a domain contact.
func FromContact(c *contact.Contact) ContactResponse {
	resp := ContactResponse{
		ID:           c.ID.String(),
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		FullName:     c.FullName(),
		Email:        c.Email,
		Phone:        c.Phone,
		Position:     c.Position,
		CustomFields: c.Attributes,
		IsDeleted:    c.IsDeleted,
		Version:      c.Version,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if c.LeadID != nil {
		leadID := c.LeadID.String()
		resp.LeadID = &leadID
	}
	return resp
}

// FromContacts maps a contact list.
func FromContacts(items []*contact.Contact) []ContactResponse {
	out := make([]ContactResponse, 0, len(items))
	for _, c := range items {
		out = append(out, FromContact(c))
	}
	return out
}
