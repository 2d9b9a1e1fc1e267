// Package customfield_repo provides the PostgreSQL implementation of the
// custom field definition repository.
package customfield_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"relatio/internal/core/apperror"
	"relatio/internal/core/id"
	"relatio/internal/domain/customfield"
	"relatio/internal/infrastructure/storage/postgres"
)

const tableName = "custom_field_definitions"

// notifyChannel mirrors cache.Channel; kept as a literal to avoid an
// infrastructure-package cycle.
const notifyChannel = "custom_fields_changed"

var selectCols = []string{
	"id", "organization_id", "entity_type", "key", "label", "description",
	"field_type", "is_required", "default_value", "choices", "validation",
	"is_indexed", "is_deleted", "created_by", "created_at", "updated_at",
}

// Compile-time check.
var _ customfield.Repository = (*DefinitionRepo)(nil)

// DefinitionRepo persists custom field definitions.
//
// The (organization_id, entity_type, key) uniqueness among active rows and
// the per-entity-type quota are enforced at the application layer, since a
// store-level constraint cannot express the "non-deleted" predicate.
// Callers must serialize writes via LockEntityType.
type DefinitionRepo struct {
	txm *postgres.TxManager
}

// NewDefinitionRepo creates the repository.
func NewDefinitionRepo(txm *postgres.TxManager) *DefinitionRepo {
	return &DefinitionRepo{txm: txm}
}

func (r *DefinitionRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *DefinitionRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder().Select(selectCols...).From(tableName)
}

// Insert persists a new definition row.
func (r *DefinitionRepo) Insert(ctx context.Context, def *customfield.Definition) error {
	q := r.builder().
		Insert(tableName).
		Columns(selectCols...).
		Values(
			def.ID, def.OrganizationID, def.EntityType, def.Key, def.Label,
			def.Description, def.FieldType, def.IsRequired,
			[]byte(def.DefaultValue), def.Choices, def.Validation,
			def.IsIndexed, def.IsDeleted, def.CreatedBy, def.CreatedAt, def.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return apperror.NewDatabase(fmt.Errorf("insert %s: %w", tableName, err))
	}
	return nil
}

// Update persists changes to an active definition. Key and creation
// metadata are immutable and never written.
func (r *DefinitionRepo) Update(ctx context.Context, def *customfield.Definition) error {
	q := r.builder().
		Update(tableName).
		Set("label", def.Label).
		Set("description", def.Description).
		Set("field_type", def.FieldType).
		Set("is_required", def.IsRequired).
		Set("default_value", []byte(def.DefaultValue)).
		Set("choices", def.Choices).
		Set("validation", def.Validation).
		Set("is_indexed", def.IsIndexed).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{
			"organization_id": def.OrganizationID,
			"id":              def.ID,
			"is_deleted":      false,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return apperror.NewDatabase(fmt.Errorf("update %s: %w", tableName, err))
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("custom field definition", def.ID.String())
	}
	return nil
}

// SoftDelete marks an active definition as deleted. Rows stay in place so
// historical document-column values keep a resolvable definition.
func (r *DefinitionRepo) SoftDelete(ctx context.Context, orgID, defID id.ID) error {
	q := r.builder().
		Update(tableName).
		Set("is_deleted", true).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{
			"organization_id": orgID,
			"id":              defID,
			"is_deleted":      false,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build soft delete: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return apperror.NewDatabase(fmt.Errorf("soft delete %s: %w", tableName, err))
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("custom field definition", defID.String())
	}
	return nil
}

// GetActive returns active definitions for (org, entityType), most recent first.
func (r *DefinitionRepo) GetActive(ctx context.Context, orgID id.ID, entityType string) ([]customfield.Definition, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{
			"organization_id": orgID,
			"entity_type":     entityType,
			"is_deleted":      false,
		}).
		OrderBy("created_at DESC", "id DESC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var defs []customfield.Definition
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &defs, sql, args...); err != nil {
		return nil, apperror.NewDatabase(fmt.Errorf("list %s: %w", tableName, err))
	}
	return defs, nil
}

// GetByID returns an active definition by (org, id).
func (r *DefinitionRepo) GetByID(ctx context.Context, orgID, defID id.ID) (*customfield.Definition, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{
			"organization_id": orgID,
			"id":              defID,
			"is_deleted":      false,
		}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var def customfield.Definition
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &def, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("custom field definition", defID.String())
		}
		return nil, apperror.NewDatabase(fmt.Errorf("get %s by id: %w", tableName, err))
	}
	return &def, nil
}

// CountActive returns the number of active definitions for (org, entityType).
func (r *DefinitionRepo) CountActive(ctx context.Context, orgID id.ID, entityType string) (int, error) {
	q := r.builder().
		Select("COUNT(*)").
		From(tableName).
		Where(squirrel.Eq{
			"organization_id": orgID,
			"entity_type":     entityType,
			"is_deleted":      false,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var count int
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, apperror.NewDatabase(fmt.Errorf("count %s: %w", tableName, err))
	}
	return count, nil
}

// ExistsActiveKey reports whether an active definition with the key exists.
func (r *DefinitionRepo) ExistsActiveKey(ctx context.Context, orgID id.ID, entityType, key string) (bool, error) {
	q := r.builder().
		Select("1").
		From(tableName).
		Where(squirrel.Eq{
			"organization_id": orgID,
			"entity_type":     entityType,
			"key":             key,
			"is_deleted":      false,
		}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists: %w", err)
	}

	var one int
	err = r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&one)
	if pgxscan.NotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, apperror.NewDatabase(fmt.Errorf("exists %s: %w", tableName, err))
	}
	return true, nil
}

// LockEntityType takes a transaction-scoped advisory lock for
// (org, entityType), serializing the check-then-insert sequence that the
// quota and uniqueness invariants rely on.
func (r *DefinitionRepo) LockEntityType(ctx context.Context, orgID id.ID, entityType string) error {
	lockKey := fmt.Sprintf("%s:%s:%s", tableName, orgID, entityType)
	_, err := r.txm.GetQuerier(ctx).Exec(ctx,
		"SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", lockKey)
	if err != nil {
		return apperror.NewDatabase(fmt.Errorf("advisory lock: %w", err))
	}
	return nil
}

// NotifyChanged broadcasts a definition change on commit. pg_notify inside
// a transaction is delivered only if the transaction commits.
func (r *DefinitionRepo) NotifyChanged(ctx context.Context, orgID id.ID, entityType string) error {
	payload := fmt.Sprintf("%s:%s", orgID, entityType)
	_, err := r.txm.GetQuerier(ctx).Exec(ctx, "SELECT pg_notify($1, $2)", notifyChannel, payload)
	if err != nil {
		return apperror.NewDatabase(fmt.Errorf("notify: %w", err))
	}
	return nil
}
