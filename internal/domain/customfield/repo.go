package customfield

import (
	"context"

	"relatio/internal/core/id"
)

// Repository defines persistence for custom field definitions.
// Implementations live in infrastructure/storage/postgres.
type Repository interface {
	// Insert persists a new definition row.
	Insert(ctx context.Context, def *Definition) error

	// Update persists changes to an existing active definition.
	// Returns apperror NotFound if no active row matches (org, id).
	Update(ctx context.Context, def *Definition) error

	// SoftDelete marks an active definition as deleted.
	// Returns apperror NotFound if no active row matches (org, id).
	SoftDelete(ctx context.Context, orgID, defID id.ID) error

	// GetActive returns all active definitions for (org, entityType),
	// ordered by creation time, most recent first.
	GetActive(ctx context.Context, orgID id.ID, entityType string) ([]Definition, error)

	// GetByID returns an active definition by (org, id).
	GetByID(ctx context.Context, orgID, defID id.ID) (*Definition, error)

	// CountActive returns the number of active definitions for (org, entityType).
	CountActive(ctx context.Context, orgID id.ID, entityType string) (int, error)

	// ExistsActiveKey reports whether an active definition with the given
	// key exists for (org, entityType).
	ExistsActiveKey(ctx context.Context, orgID id.ID, entityType, key string) (bool, error)

	// LockEntityType serializes concurrent definition writes for one
	// (org, entityType) for the duration of the current transaction.
	LockEntityType(ctx context.Context, orgID id.ID, entityType string) error

	// NotifyChanged broadcasts a definition change so other instances can
	// drop their cached definition list for (org, entityType).
	NotifyChanged(ctx context.Context, orgID id.ID, entityType string) error
}

// Cache is the read-through side channel for definition lists.
// Invalidation on write is the source of truth; any TTL inside the
// implementation is only a safety net.
type Cache interface {
	// Load returns the cached list for key, or runs loader and caches its result.
	Load(ctx context.Context, key string, loader func(ctx context.Context) ([]Definition, error)) ([]Definition, error)

	// Invalidate drops the cached list for key.
	Invalidate(ctx context.Context, key string)
}
