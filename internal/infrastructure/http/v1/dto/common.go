// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"strings"

	"relatio/internal/core/apperror"
	"relatio/internal/core/id"
	"relatio/internal/domain"
	"relatio/internal/domain/customfield"
	"relatio/internal/domain/records"
)

// --- List requests ---

// ListRequest contains common list query parameters. Custom field filters
// arrive as repeated cf parameters of the form key:operator:value.
type ListRequest struct {
	Search         string   `form:"search"`
	IncludeDeleted bool     `form:"includeDeleted"`
	OrderBy        string   `form:"orderBy"`
	Limit          int      `form:"limit" binding:"omitempty,min=1,max=200"`
	Offset         int      `form:"offset" binding:"omitempty,min=0"`
	CustomFilters  []string `form:"cf"`
	SortBy         string   `form:"sortBy"`
	SortDir        string   `form:"sortDir"`
}

// ToListOptions converts query parameters to domain list options.
func (r *ListRequest) ToListOptions() (records.ListOptions, error) {
	f := domain.DefaultListFilter()
	f.Search = r.Search
	f.IncludeDeleted = r.IncludeDeleted
	if r.OrderBy != "" {
		f.OrderBy = r.OrderBy
	}
	if r.Limit > 0 {
		f.Limit = r.Limit
	}
	if r.Offset > 0 {
		f.Offset = r.Offset
	}

	filters, err := parseCustomFilters(r.CustomFilters)
	if err != nil {
		return records.ListOptions{}, err
	}

	return records.ListOptions{
		Filter:        f,
		CustomFilters: filters,
		CustomSortKey: r.SortBy,
		CustomSortDir: r.SortDir,
	}, nil
}

// parseCustomFilters parses key:operator:value triples. The value part may
// contain further colons (timestamps, lists).
func parseCustomFilters(raw []string) ([]customfield.Filter, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	filters := make([]customfield.Filter, 0, len(raw))
	for _, item := range raw {
		parts := strings.SplitN(item, ":", 3)
		if len(parts) < 2 {
			return nil, apperror.NewValidation("invalid cf filter, expected key:operator[:value]").
				WithDetail("filter", item)
		}

		op, ok := customfield.ParseOperator(parts[1])
		if !ok {
			return nil, apperror.NewValidation("unknown cf operator").
				WithDetail("operator", parts[1])
		}

		var value any
		if len(parts) == 3 {
			// in/not_in take comma-separated lists.
			if op == customfield.OpIn || op == customfield.OpNotIn {
				value = strings.Split(parts[2], ",")
			} else {
				value = parts[2]
			}
		}

		filters = append(filters, customfield.Filter{
			Key:      parts[0],
			Operator: op,
			Value:    value,
		})
	}
	return filters, nil
}

// SearchRequest is the JSON body of POST search endpoints, for filters
// that do not fit in query parameters.
type SearchRequest struct {
	Search         string         `json:"search"`
	IncludeDeleted bool           `json:"includeDeleted"`
	OrderBy        string         `json:"orderBy"`
	Limit          int            `json:"limit" binding:"omitempty,min=1,max=200"`
	Offset         int            `json:"offset" binding:"omitempty,min=0"`
	Filters        []SearchFilter `json:"filters"`
	Sort           *SearchSort    `json:"sort"`
}

// SearchFilter is one abstract custom field filter.
type SearchFilter struct {
	Key      string `json:"key" binding:"required"`
	Operator string `json:"operator" binding:"required"`
	Value    any    `json:"value"`
}

// SearchSort orders results by a custom field value.
type SearchSort struct {
	Key       string `json:"key" binding:"required"`
	Direction string `json:"direction"`
}

// ToListOptions converts the search body to domain list options.
func (r *SearchRequest) ToListOptions() (records.ListOptions, error) {
	f := domain.DefaultListFilter()
	f.Search = r.Search
	f.IncludeDeleted = r.IncludeDeleted
	if r.OrderBy != "" {
		f.OrderBy = r.OrderBy
	}
	if r.Limit > 0 {
		f.Limit = r.Limit
	}
	if r.Offset > 0 {
		f.Offset = r.Offset
	}

	filters := make([]customfield.Filter, 0, len(r.Filters))
	for _, sf := range r.Filters {
		op, ok := customfield.ParseOperator(sf.Operator)
		if !ok {
			return records.ListOptions{}, apperror.NewValidation("unknown filter operator").
				WithDetail("operator", sf.Operator)
		}
		filters = append(filters, customfield.Filter{
			Key:      sf.Key,
			Operator: op,
			Value:    sf.Value,
		})
	}

	opts := records.ListOptions{
		Filter:        f,
		CustomFilters: filters,
	}
	if r.Sort != nil {
		opts.CustomSortKey = r.Sort.Key
		opts.CustomSortDir = r.Sort.Direction
	}
	return opts, nil
}

// --- Common responses ---

// ListResponse wraps list results with pagination.
type ListResponse struct {
	Items      any   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
