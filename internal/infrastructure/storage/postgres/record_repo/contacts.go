package record_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"relatio/internal/core/apperror"
	"relatio/internal/core/id"
	"relatio/internal/domain"
	"relatio/internal/domain/records/contact"
	"relatio/internal/infrastructure/storage/postgres"
)

const contactTable = "contacts"

// ContactRepo implements contact.Repository.
type ContactRepo struct {
	*BaseRecordRepo[*contact.Contact]
}

// NewContactRepo creates a new contact repository.
func NewContactRepo(txm *postgres.TxManager) *ContactRepo {
	return &ContactRepo{
		BaseRecordRepo: NewBaseRecordRepo[*contact.Contact](
			txm,
			contactTable,
			postgres.ExtractDBColumns[contact.Contact](),
			[]string{"first_name", "last_name", "email", "phone"},
			func() *contact.Contact { return &contact.Contact{} },
		),
	}
}

// List retrieves contacts with native filters plus compiled custom field
// predicates and sort fragments.
func (r *ContactRepo) List(ctx context.Context, orgID id.ID, filter domain.ListFilter, predicate squirrel.Sqlizer, sortFragments []string) (domain.ListResult[*contact.Contact], error) {
	return r.BaseRecordRepo.List(ctx, orgID, ListQuery{
		Filter:        filter,
		Predicate:     predicate,
		SortFragments: sortFragments,
	})
}

// ListByLead retrieves active contacts linked to a lead.
func (r *ContactRepo) ListByLead(ctx context.Context, orgID, leadID id.ID) ([]*contact.Contact, error) {
	q := r.Builder().
		Select(postgres.ExtractDBColumns[contact.Contact]()...).
		From(contactTable).
		Where(squirrel.Eq{
			"organization_id": orgID,
			"lead_id":         leadID,
			"is_deleted":      false,
		}).
		OrderBy("created_at DESC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*contact.Contact
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, apperror.NewDatabase(fmt.Errorf("list contacts by lead: %w", err))
	}
	return items, nil
}
