package contact

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

// LeadChecker verifies that a referenced lead exists. Satisfied by the
// lead repository.
type LeadChecker interface {
	Exists(ctx context.Context, orgID, leadID id.ID) (bool, error)
}

// Service provides business logic for contacts.
type Service struct {
	repo       Repository
	leads      LeadChecker
	validator  *customfield.Validator
	translator *customfield.Translator
	txManager  tx.Manager
}

// NewService creates a new contact service.
func NewService(repo Repository, leads LeadChecker, validator *customfield.Validator, translator *customfield.Translator, txManager tx.Manager) *Service {
	return &Service{
		repo:       repo,
		leads:      leads,
		validator:  validator,
		translator: translator,
		txManager:  txManager,
	}
}

// Create persists a new contact. customValues is validated as a whole.
func (s *Service) Create(ctx context.Context, c *Contact, customValues map[string]any) (*Contact, error) {
	if id.IsNil(c.ID) {
		c.BaseRecord = entity.NewBaseRecord(c.OrganizationID)
	}
	if userID := corecontext.GetUserID(ctx); userID != "" {
		c.CreatedBy = userID
		c.UpdatedBy = userID
	}

	if err := c.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.checkLeadLink(ctx, c); err != nil {
		return nil, err
	}

	normalized, err := s.validateCustomValues(ctx, c.OrganizationID, customValues)
	if err != nil {
		return nil, err
	}
	c.MergeAttributes(normalized)

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "contact created", "contactId", c.ID.String())
	return c, nil
}

// Update applies changes to an existing contact. customValues are merged
// into the stored attributes; a nil value clears the field.
func (s *Service) Update(ctx context.Context, c *Contact, customValues map[string]any) (*Contact, error) {
	existing, err := s.repo.GetByID(ctx, c.OrganizationID, c.ID)
	if err != nil {
		return nil, err
	}

	c.Attributes = existing.Attributes.Clone()
	c.CreatedAt = existing.CreatedAt
	c.CreatedBy = existing.CreatedBy
	if userID := corecontext.GetUserID(ctx); userID != "" {
		c.UpdatedBy = userID
	}

	if err := c.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.checkLeadLink(ctx, c); err != nil {
		return nil, err
	}

	if customValues != nil {
		merged := map[string]any(c.Attributes.Clone())
		if merged == nil {
			merged = map[string]any{}
		}
		for key, val := range customValues {
			if val == nil {
				delete(merged, key)
				continue
			}
			merged[key] = val
		}

		normalized, err := s.validateCustomValues(ctx, c.OrganizationID, merged)
		if err != nil {
			return nil, err
		}
		c.Attributes = normalized
	}

	// The struct keeps the client-submitted version: the repository uses it
	// as the optimistic lock and increments the stored row in SQL.
	c.Touch()
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	c.Version++
	return c, nil
}

// Delete soft deletes a contact.
func (s *Service) Delete(ctx context.Context, orgID, contactID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.SetDeleted(ctx, orgID, contactID, true)
	})
}

// GetByID retrieves a contact by ID.
func (s *Service) GetByID(ctx context.Context, orgID, contactID id.ID) (*Contact, error) {
	return s.repo.GetByID(ctx, orgID, contactID)
}

// ListByLead retrieves active contacts linked to a lead.
func (s *Service) ListByLead(ctx context.Context, orgID, leadID id.ID) ([]*Contact, error) {
	return s.repo.ListByLead(ctx, orgID, leadID)
}

// List retrieves contacts with native and custom field filtering.
func (s *Service) List(ctx context.Context, orgID id.ID, opts records.ListOptions) (domain.ListResult[*Contact], error) {
	predicate, err := s.translator.Translate(ctx, orgID, records.EntityTypeContact, opts.CustomFilters)
	if err != nil {
		return domain.ListResult[*Contact]{}, err
	}

	var sortFragments []string
	if opts.CustomSortKey != "" {
		fragment, err := s.translator.SortFragment(ctx, orgID, records.EntityTypeContact, opts.CustomSortKey, opts.CustomSortDir)
		if err != nil {
			return domain.ListResult[*Contact]{}, err
		}
		if fragment != "" {
			sortFragments = append(sortFragments, fragment)
		}
	}

	return s.repo.List(ctx, orgID, opts.Filter, predicate, sortFragments)
}

func (s *Service) checkLeadLink(ctx context.Context, c *Contact) error {
	if c.LeadID == nil {
		return nil
	}
	exists, err := s.leads.Exists(ctx, c.OrganizationID, *c.LeadID)
	if err != nil {
		return err
	}
	if !exists {
		return apperror.NewValidation("linked lead does not exist").WithDetail("leadId", c.LeadID.String())
	}
	return nil
}

func (s *Service) validateCustomValues(ctx context.Context, orgID id.ID, values map[string]any) (map[string]any, error) {
	if values == nil {
		values = map[string]any{}
	}
	res, err := s.validator.Validate(ctx, orgID, records.EntityTypeContact, values)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return nil, apperror.NewFieldValidation(res.Errors)
	}
	return customfield.RawMap(res.Normalized), nil
}
