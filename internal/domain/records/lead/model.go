// Package lead provides the Lead record: a potential deal moving through
// the sales pipeline.
package lead

import (
	"context"
	"regexp"

	"github.com/shopspring/decimal"

	"relatio/internal/core/apperror"
	"relatio/internal/core/entity"
	"relatio/internal/core/id"
)

var emailRE = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Status defines the pipeline stage of a lead.
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusQualified Status = "qualified"
	StatusWon       Status = "won"
	StatusLost      Status = "lost"
)

// IsValid reports whether the status is one of the known stages.
func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusQualified, StatusWon, StatusLost:
		return true
	}
	return false
}

// Lead represents a potential deal.
type Lead struct {
	entity.BaseRecord

	// Name is the display title of the lead
	Name string `db:"name" json:"name"`

	// Status is the current pipeline stage
	Status Status `db:"status" json:"status"`

	// Source identifies where the lead came from (web, referral, ...)
	Source *string `db:"source" json:"source,omitempty"`

	// Email is the primary contact email
	Email *string `db:"email" json:"email,omitempty"`

	// Phone is the primary contact phone
	Phone *string `db:"phone" json:"phone,omitempty"`

	// Amount is the expected deal value
	Amount *decimal.Decimal `db:"amount" json:"amount,omitempty"`

	// OwnerID is the user responsible for the lead
	OwnerID *id.ID `db:"owner_id" json:"ownerId,omitempty"`
}

// New creates a lead with defaults applied.
func New(orgID id.ID, name string) *Lead {
	return &Lead{
		BaseRecord: entity.NewBaseRecord(orgID),
		Name:       name,
		Status:     StatusNew,
	}
}

// Validate checks native field invariants.
func (l *Lead) Validate(ctx context.Context) error {
	if l.Name == "" {
		return apperror.NewValidation("lead name is required")
	}
	if !l.Status.IsValid() {
		return apperror.NewValidation("invalid lead status").WithDetail("status", string(l.Status))
	}
	if l.Email != nil && *l.Email != "" && !emailRE.MatchString(*l.Email) {
		return apperror.NewValidation("invalid email format").WithDetail("email", *l.Email)
	}
	if l.Amount != nil && l.Amount.IsNegative() {
		return apperror.NewValidation("amount must not be negative")
	}
	return nil
}
