// Package records holds types shared by CRM record domains (leads,
// contacts). Each record carries a free-form attributes document whose
// shape is governed by custom field definitions.
package records

import (
	"relatio/internal/domain"
	"relatio/internal/domain/customfield"
)

// Entity type identifiers registered with the custom field registry.
const (
	EntityTypeLead    = "lead"
	EntityTypeContact = "contact"
)

// ListOptions combines native column filtering with custom field
// filtering and sorting.
type ListOptions struct {
	Filter domain.ListFilter

	// CustomFilters are abstract filters over custom field values. Keys
	// that do not match an active definition are ignored.
	CustomFilters []customfield.Filter

	// CustomSortKey orders results by a custom field value instead of a
	// native column. Empty means native ordering applies.
	CustomSortKey string
	CustomSortDir string
}
