package record_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"relatio/internal/core/id"
	"relatio/internal/domain"
	"relatio/internal/domain/records/lead"
	"relatio/internal/infrastructure/storage/postgres"
)

const leadTable = "leads"

// LeadRepo implements lead.Repository.
type LeadRepo struct {
	*BaseRecordRepo[*lead.Lead]
}

// NewLeadRepo creates a new lead repository.
func NewLeadRepo(txm *postgres.TxManager) *LeadRepo {
	return &LeadRepo{
		BaseRecordRepo: NewBaseRecordRepo[*lead.Lead](
			txm,
			leadTable,
			postgres.ExtractDBColumns[lead.Lead](),
			[]string{"name", "email", "phone"},
			func() *lead.Lead { return &lead.Lead{} },
		),
	}
}

// List retrieves leads with native filters plus compiled custom field
// predicates and sort fragments.
func (r *LeadRepo) List(ctx context.Context, orgID id.ID, filter domain.ListFilter, predicate squirrel.Sqlizer, sortFragments []string) (domain.ListResult[*lead.Lead], error) {
	return r.BaseRecordRepo.List(ctx, orgID, ListQuery{
		Filter:        filter,
		Predicate:     predicate,
		SortFragments: sortFragments,
	})
}
