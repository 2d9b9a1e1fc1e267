package customfield

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"relatio/internal/core/apperror"
	"relatio/internal/core/id"
	"relatio/internal/core/tx"
	"relatio/pkg/logger"
)

// DefaultMaxPerEntityType is the per-(org, entityType) quota of active definitions.
const DefaultMaxPerEntityType = 100

// ChangeEntry is one recorded definition lifecycle change.
type ChangeEntry struct {
	Action    string          `json:"action"`
	UserID    string          `json:"userId,omitempty"`
	Snapshot  json.RawMessage `json:"snapshot,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Auditor records definition lifecycle changes and serves them back.
// Implementations live in infrastructure; recording is best-effort and
// never fails the operation.
type Auditor interface {
	LogChange(ctx context.Context, action string, def *Definition) error
	History(ctx context.Context, orgID, defID id.ID, limit int) ([]ChangeEntry, error)
}

// ServiceConfig configures the definition registry.
type ServiceConfig struct {
	// MaxPerEntityType caps active definitions per (org, entityType).
	MaxPerEntityType int
}

// DefaultServiceConfig returns production defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{MaxPerEntityType: DefaultMaxPerEntityType}
}

// Service is the definition registry: the single source of truth for the
// custom field catalog of each (organization, entity type).
type Service struct {
	repo  Repository
	cache Cache
	tx    tx.Manager
	audit Auditor
	cfg   ServiceConfig
}

// NewService creates the registry. audit may be nil.
func NewService(repo Repository, cache Cache, txm tx.Manager, audit Auditor, cfg ServiceConfig) *Service {
	if cfg.MaxPerEntityType <= 0 {
		cfg.MaxPerEntityType = DefaultMaxPerEntityType
	}
	return &Service{repo: repo, cache: cache, tx: txm, audit: audit, cfg: cfg}
}

// CacheKey builds the definition-list cache key for (org, entityType).
func CacheKey(orgID id.ID, entityType string) string {
	return fmt.Sprintf("definitions:%s:%s", orgID, entityType)
}

// Create validates and persists a new definition.
//
// The duplicate-key and quota checks run inside one transaction holding a
// per-(org, entityType) advisory lock, so two concurrent creates cannot
// both pass the checks and overshoot the quota.
func (s *Service) Create(ctx context.Context, def *Definition) (*Definition, error) {
	if id.IsNil(def.OrganizationID) {
		return nil, apperror.NewValidation("organizationId is required").
			WithDetail("field", "organizationId")
	}
	if id.IsNil(def.ID) {
		fresh := NewDefinition(def.OrganizationID, def.EntityType, def.Key, def.FieldType)
		def.ID = fresh.ID
		def.CreatedAt = fresh.CreatedAt
		def.UpdatedAt = fresh.UpdatedAt
	}

	if err := def.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.LockEntityType(ctx, def.OrganizationID, def.EntityType); err != nil {
			return err
		}

		exists, err := s.repo.ExistsActiveKey(ctx, def.OrganizationID, def.EntityType, def.Key)
		if err != nil {
			return err
		}
		if exists {
			return apperror.NewDuplicate("custom field definition", "key", def.Key).
				WithDetail("entityType", def.EntityType)
		}

		count, err := s.repo.CountActive(ctx, def.OrganizationID, def.EntityType)
		if err != nil {
			return err
		}
		if count >= s.cfg.MaxPerEntityType {
			return apperror.NewQuotaExceeded("custom field definition", s.cfg.MaxPerEntityType).
				WithDetail("entityType", def.EntityType)
		}

		if err := s.repo.Insert(ctx, def); err != nil {
			return err
		}
		return s.repo.NotifyChanged(ctx, def.OrganizationID, def.EntityType)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, CacheKey(def.OrganizationID, def.EntityType))
	s.logChange(ctx, "create", def)

	return def, nil
}

// UpdatePatch carries updatable definition fields. Key is immutable after
// creation and intentionally absent here.
type UpdatePatch struct {
	Label        *string    `json:"label"`
	Description  *string    `json:"description"`
	FieldType    *FieldType `json:"fieldType"`
	IsRequired   *bool      `json:"isRequired"`
	DefaultValue *[]byte    `json:"defaultValue"`
	Choices      ChoiceList `json:"choices"`
	Validation   *Rules     `json:"validation"`
	IsIndexed    *bool      `json:"isIndexed"`
}

// Update merges patch into the active definition and persists it.
func (s *Service) Update(ctx context.Context, orgID, defID id.ID, patch UpdatePatch) (*Definition, error) {
	def, err := s.repo.GetByID(ctx, orgID, defID)
	if err != nil {
		return nil, err
	}

	if patch.Label != nil {
		def.Label = *patch.Label
	}
	if patch.Description != nil {
		def.Description = *patch.Description
	}
	if patch.FieldType != nil {
		def.FieldType = *patch.FieldType
	}
	if patch.IsRequired != nil {
		def.IsRequired = *patch.IsRequired
	}
	if patch.DefaultValue != nil {
		def.DefaultValue = *patch.DefaultValue
	}
	if patch.Choices != nil {
		def.Choices = patch.Choices
	}
	if patch.Validation != nil {
		def.Validation = *patch.Validation
	}
	if patch.IsIndexed != nil {
		def.IsIndexed = *patch.IsIndexed
	}

	// The merged definition must still satisfy every shape invariant,
	// in particular: select types keep a non-empty choice list.
	if err := def.Validate(ctx); err != nil {
		return nil, err
	}

	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, def); err != nil {
			return err
		}
		return s.repo.NotifyChanged(ctx, def.OrganizationID, def.EntityType)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, CacheKey(def.OrganizationID, def.EntityType))
	s.logChange(ctx, "update", def)

	return def, nil
}

// Delete soft-deletes an active definition. Rows are never removed
// physically; the key becomes reusable for a fresh definition.
func (s *Service) Delete(ctx context.Context, orgID, defID id.ID) error {
	def, err := s.repo.GetByID(ctx, orgID, defID)
	if err != nil {
		return err
	}

	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.SoftDelete(ctx, orgID, defID); err != nil {
			return err
		}
		return s.repo.NotifyChanged(ctx, orgID, def.EntityType)
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(ctx, CacheKey(orgID, def.EntityType))
	s.logChange(ctx, "delete", def)

	return nil
}

// GetByEntityType returns all active definitions for (org, entityType),
// most recently created first. Results are served read-through from cache;
// every mutating call invalidates the corresponding key.
func (s *Service) GetByEntityType(ctx context.Context, orgID id.ID, entityType string) ([]Definition, error) {
	return s.cache.Load(ctx, CacheKey(orgID, entityType), func(ctx context.Context) ([]Definition, error) {
		return s.repo.GetActive(ctx, orgID, entityType)
	})
}

// GetByID returns an active definition by id.
func (s *Service) GetByID(ctx context.Context, orgID, defID id.ID) (*Definition, error) {
	return s.repo.GetByID(ctx, orgID, defID)
}

// GetByKey returns the active definition with the given key. Defined as a
// filter over GetByEntityType, so it shares the same cache entry.
func (s *Service) GetByKey(ctx context.Context, orgID id.ID, entityType, key string) (*Definition, error) {
	defs, err := s.GetByEntityType(ctx, orgID, entityType)
	if err != nil {
		return nil, err
	}
	for i := range defs {
		if defs[i].Key == key {
			return &defs[i], nil
		}
	}
	return nil, apperror.NewNotFound("custom field definition", key).
		WithDetail("entityType", entityType)
}

// DefaultHistoryLimit caps history pages when the caller passes no limit.
const DefaultHistoryLimit = 50

// History returns the change log of a definition, newest first. It works
// for soft-deleted definitions too, so the delete entry stays visible.
// Without a configured auditor the log is empty.
func (s *Service) History(ctx context.Context, orgID, defID id.ID, limit int) ([]ChangeEntry, error) {
	if s.audit == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.audit.History(ctx, orgID, defID, limit)
}

func (s *Service) logChange(ctx context.Context, action string, def *Definition) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogChange(ctx, action, def); err != nil {
		logger.Warn(ctx, "definition audit log failed",
			"action", action,
			"definition_id", def.ID.String(),
			"error", err,
		)
	}
}
