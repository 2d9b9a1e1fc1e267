package lead

import (
	"context"

	"github.com/Masterminds/squirrel"

	"relatio/internal/core/id"
	"relatio/internal/domain"
)

// Repository defines the interface for Lead persistence.
type Repository interface {
	Create(ctx context.Context, l *Lead) error
	Update(ctx context.Context, l *Lead) error
	GetByID(ctx context.Context, orgID, leadID id.ID) (*Lead, error)
	SetDeleted(ctx context.Context, orgID, leadID id.ID, deleted bool) error
	Exists(ctx context.Context, orgID, leadID id.ID) (bool, error)

	// List retrieves leads matching native filters plus an optional
	// predicate and sort fragments over the attributes column.
	List(ctx context.Context, orgID id.ID, filter domain.ListFilter, predicate squirrel.Sqlizer, sortFragments []string) (domain.ListResult[*Lead], error)
}
