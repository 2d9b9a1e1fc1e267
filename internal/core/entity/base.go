// Package entity provides base types for all domain entities.
package entity

import (
	"context"
	"time"

	"relatio/internal/core/id"
)

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	// Validate checks entity invariants.
	// Returns nil if valid, AppError with details otherwise.
	Validate(ctx context.Context) error
}

// BaseRecord contains common fields for all tenant business records
// (leads, contacts, and any other record kind carrying custom fields).
type BaseRecord struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// OrganizationID scopes the record to a tenant
	OrganizationID id.ID `db:"organization_id" json:"organizationId"`

	// IsDeleted indicates soft-deleted record
	IsDeleted bool `db:"is_deleted" json:"isDeleted"`

	// Version for optimistic locking (incremented on each update)
	Version int `db:"version" json:"version"`

	// Attributes is the schema-less document column holding custom field
	// values (JSONB in PostgreSQL), keyed by definition key.
	Attributes Attributes `db:"attributes" json:"attributes,omitempty"`

	// Audit fields
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy string    `db:"updated_by" json:"updatedBy,omitempty"`
}

// NewBaseRecord creates a new BaseRecord with generated ID and timestamps.
func NewBaseRecord(orgID id.ID) BaseRecord {
	now := time.Now().UTC()
	return BaseRecord{
		ID:             id.New(),
		OrganizationID: orgID,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Touch refreshes the UpdatedAt timestamp. Version is not changed here:
// the repository increments it in SQL, and the struct must keep the value
// the client submitted so the optimistic lock matches the stored row.
func (b *BaseRecord) Touch() {
	b.UpdatedAt = time.Now().UTC()
}

// MarkDeleted sets the soft-delete flag.
func (b *BaseRecord) MarkDeleted() {
	b.IsDeleted = true
}

// SetAttribute is a convenience method for setting custom fields.
func (b *BaseRecord) SetAttribute(key string, value any) {
	if b.Attributes == nil {
		b.Attributes = make(Attributes)
	}
	b.Attributes[key] = value
}

// GetAttribute is a convenience method for getting custom fields.
func (b *BaseRecord) GetAttribute(key string) any {
	if b.Attributes == nil {
		return nil
	}
	return b.Attributes[key]
}

// MergeAttributes overlays the given values onto the record's document
// column, keeping keys that were not resubmitted.
func (b *BaseRecord) MergeAttributes(values map[string]any) {
	if len(values) == 0 {
		return
	}
	if b.Attributes == nil {
		b.Attributes = make(Attributes, len(values))
	}
	for k, v := range values {
		b.Attributes[k] = v
	}
}
