package lead

import (
	"context"

	"relatio/internal/core/apperror"
	corecontext "relatio/internal/core/context"
	"relatio/internal/core/entity"
	"relatio/internal/core/id"
	"relatio/internal/core/tx"
	"relatio/internal/domain"
	"relatio/internal/domain/customfield"
	"relatio/internal/domain/records"
	"relatio/pkg/logger"
)

// Service provides business logic for leads. Custom field values are
// validated against the registry before persistence and stored in the
// lead's attributes document in normalized form.
type Service struct {
	repo       Repository
	validator  *customfield.Validator
	translator *customfield.Translator
	txManager  tx.Manager
}

// NewService creates a new lead service.
func NewService(repo Repository, validator *customfield.Validator, translator *customfield.Translator, txManager tx.Manager) *Service {
	return &Service{
		repo:       repo,
		validator:  validator,
		translator: translator,
		txManager:  txManager,
	}
}

// Create persists a new lead. customValues is the raw custom field input;
// it is validated as a whole, so required fields must be present.
func (s *Service) Create(ctx context.Context, l *Lead, customValues map[string]any) (*Lead, error) {
	if id.IsNil(l.ID) {
		l.BaseRecord = entity.NewBaseRecord(l.OrganizationID)
	}
	if l.Status == "" {
		l.Status = StatusNew
	}
	if userID := corecontext.GetUserID(ctx); userID != "" {
		l.CreatedBy = userID
		l.UpdatedBy = userID
	}

	if err := l.Validate(ctx); err != nil {
		return nil, err
	}

	normalized, err := s.validateCustomValues(ctx, l.OrganizationID, customValues)
	if err != nil {
		return nil, err
	}
	l.MergeAttributes(normalized)

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, l)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "lead created", "leadId", l.ID.String())
	return l, nil
}

// Update applies changes to an existing lead. customValues are merged into
// the stored attributes; a nil value clears the field.
func (s *Service) Update(ctx context.Context, l *Lead, customValues map[string]any) (*Lead, error) {
	existing, err := s.repo.GetByID(ctx, l.OrganizationID, l.ID)
	if err != nil {
		return nil, err
	}

	l.Attributes = existing.Attributes.Clone()
	l.CreatedAt = existing.CreatedAt
	l.CreatedBy = existing.CreatedBy
	if userID := corecontext.GetUserID(ctx); userID != "" {
		l.UpdatedBy = userID
	}

	if err := l.Validate(ctx); err != nil {
		return nil, err
	}

	if customValues != nil {
		if err := s.mergeCustomValues(ctx, l, customValues); err != nil {
			return nil, err
		}
	}

	// The struct keeps the client-submitted version: the repository uses it
	// as the optimistic lock and increments the stored row in SQL.
	l.Touch()
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, l)
	})
	if err != nil {
		return nil, err
	}
	l.Version++
	return l, nil
}

// Delete soft deletes a lead.
func (s *Service) Delete(ctx context.Context, orgID, leadID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.SetDeleted(ctx, orgID, leadID, true)
	})
}

// GetByID retrieves a lead by ID.
func (s *Service) GetByID(ctx context.Context, orgID, leadID id.ID) (*Lead, error) {
	return s.repo.GetByID(ctx, orgID, leadID)
}

// List retrieves leads. Custom field filters are compiled into a document
// column predicate; filters on unknown keys are dropped.
func (s *Service) List(ctx context.Context, orgID id.ID, opts records.ListOptions) (domain.ListResult[*Lead], error) {
	predicate, err := s.translator.Translate(ctx, orgID, records.EntityTypeLead, opts.CustomFilters)
	if err != nil {
		return domain.ListResult[*Lead]{}, err
	}

	var sortFragments []string
	if opts.CustomSortKey != "" {
		fragment, err := s.translator.SortFragment(ctx, orgID, records.EntityTypeLead, opts.CustomSortKey, opts.CustomSortDir)
		if err != nil {
			return domain.ListResult[*Lead]{}, err
		}
		if fragment != "" {
			sortFragments = append(sortFragments, fragment)
		}
	}

	return s.repo.List(ctx, orgID, opts.Filter, predicate, sortFragments)
}

// validateCustomValues validates a full custom value map and returns the
// normalized storage representation.
func (s *Service) validateCustomValues(ctx context.Context, orgID id.ID, values map[string]any) (map[string]any, error) {
	if values == nil {
		values = map[string]any{}
	}
	res, err := s.validator.Validate(ctx, orgID, records.EntityTypeLead, values)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return nil, apperror.NewFieldValidation(res.Errors)
	}
	return customfield.RawMap(res.Normalized), nil
}

// mergeCustomValues merges partial custom field input into the lead's
// attributes: nil clears a key, everything else is validated against the
// merged document so required fields stay satisfied.
func (s *Service) mergeCustomValues(ctx context.Context, l *Lead, values map[string]any) error {
	merged := map[string]any(l.Attributes.Clone())
	if merged == nil {
		merged = map[string]any{}
	}
	for key, val := range values {
		if val == nil {
			delete(merged, key)
			continue
		}
		merged[key] = val
	}

	normalized, err := s.validateCustomValues(ctx, l.OrganizationID, merged)
	if err != nil {
		return err
	}
	l.Attributes = normalized
	return nil
}
