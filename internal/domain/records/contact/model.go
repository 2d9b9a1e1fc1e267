// Package contact provides the Contact record: a person attached to an
// organization's address book, optionally linked to a lead.
package contact

import (
	"context"
	"regexp"
	"strings"

	"relatio/internal/core/apperror"
	"relatio/internal/core/entity"
	"relatio/internal/core/id"
)

var emailRE = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Contact represents a person.
type Contact struct {
	entity.BaseRecord

	// FirstName is the given name
	FirstName string `db:"first_name" json:"firstName"`

	// LastName is the family name
	LastName string `db:"last_name" json:"lastName"`

	// Email is the primary contact email
	Email *string `db:"email" json:"email,omitempty"`

	// Phone is the primary contact phone
	Phone *string `db:"phone" json:"phone,omitempty"`

	// Position is the job title
	Position *string `db:"position" json:"position,omitempty"`

	// LeadID links the contact to a lead it originated from
	LeadID *id.ID `db:"lead_id" json:"leadId,omitempty"`
}

// New creates a contact with defaults applied.
func New(orgID id.ID, firstName, lastName string) *Contact {
	return &Contact{
		BaseRecord: entity.NewBaseRecord(orgID),
		FirstName:  firstName,
		LastName:   lastName,
	}
}

// FullName returns the display name.
func (c *Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Validate checks native field invariants.
func (c *Contact) Validate(ctx context.Context) error {
	if c.FirstName == "" && c.LastName == "" {
		return apperror.NewValidation("contact name is required")
	}
	if c.Email != nil && *c.Email != "" && !emailRE.MatchString(*c.Email) {
		return apperror.NewValidation("invalid email format").WithDetail("email", *c.Email)
	}
	return nil
}
