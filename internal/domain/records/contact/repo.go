package contact

import (
	"context"

	"github.com/Masterminds/squirrel"

	"relatio/internal/core/id"
	"relatio/internal/domain"
)

// Repository defines the interface for Contact persistence.
type Repository interface {
	Create(ctx context.Context, c *Contact) error
	Update(ctx context.Context, c *Contact) error
	GetByID(ctx context.Context, orgID, contactID id.ID) (*Contact, error)
	SetDeleted(ctx context.Context, orgID, contactID id.ID, deleted bool) error
	Exists(ctx context.Context, orgID, contactID id.ID) (bool, error)

	// List retrieves contacts matching native filters plus an optional
	// predicate and sort fragments over the attributes column.
	List(ctx context.Context, orgID id.ID, filter domain.ListFilter, predicate squirrel.Sqlizer, sortFragments []string) (domain.ListResult[*Contact], error)

	// ListByLead retrieves active contacts linked to a lead.
	ListByLead(ctx context.Context, orgID, leadID id.ID) ([]*Contact, error)
}
