package customfield

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"relatio/internal/core/apperror"
	"relatio/internal/core/id"
	"relatio/pkg/logger"
)

// Operator enumerates filter operators over the document column.
type Operator string

const (
	OpExists        Operator = "exists"
	OpEqual         Operator = "eq"
	OpNotEqual      Operator = "neq"
	OpIn            Operator = "in"
	OpNotIn         Operator = "not_in"
	OpContains      Operator = "contains"
	OpGreater       Operator = "gt"
	OpGreaterEqual  Operator = "gte"
	OpLess          Operator = "lt"
	OpLessEqual     Operator = "lte"
	OpArrayContains Operator = "array_contains"
)

// ParseOperator converts a wire string into an Operator.
func ParseOperator(s string) (Operator, bool) {
	switch op := Operator(s); op {
	case OpExists, OpEqual, OpNotEqual, OpIn, OpNotIn, OpContains,
		OpGreater, OpGreaterEqual, OpLess, OpLessEqual, OpArrayContains:
		return op, true
	}
	return "", false
}

// Filter is one abstract filter expression over a custom field key.
type Filter struct {
	Key      string   `json:"key"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// DefaultColumn is the document column name on record tables.
const DefaultColumn = "attributes"

// Translator compiles abstract filter/sort expressions over custom fields
// into parameterized predicate fragments against the document column.
// Every literal is bound as a placeholder; no value is ever spliced into
// the SQL text.
type Translator struct {
	registry *Service
	column   string
}

// NewTranslator creates a translator for the default document column.
func NewTranslator(registry *Service) *Translator {
	return &Translator{registry: registry, column: DefaultColumn}
}

// WithColumn returns a copy targeting a different document column.
func (t *Translator) WithColumn(column string) *Translator {
	return &Translator{registry: t.registry, column: column}
}

// Translate compiles filters into a single conjunctive predicate.
// Filters whose key has no active definition are silently dropped; if
// nothing survives, the returned predicate is nil.
func (t *Translator) Translate(ctx context.Context, orgID id.ID, entityType string, filters []Filter) (squirrel.Sqlizer, error) {
	if len(filters) == 0 {
		return nil, nil
	}

	defs, err := t.registry.GetByEntityType(ctx, orgID, entityType)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(defs))
	for i := range defs {
		known[defs[i].Key] = struct{}{}
	}

	var conj squirrel.And
	for _, f := range filters {
		if _, ok := known[f.Key]; !ok {
			logger.Debug(ctx, "dropping filter for unknown custom field",
				"key", f.Key, "entityType", entityType)
			continue
		}
		frag, err := t.fragment(f)
		if err != nil {
			return nil, err
		}
		conj = append(conj, frag)
	}

	if len(conj) == 0 {
		return nil, nil
	}
	return conj, nil
}

// fragment compiles one filter into a parameterized predicate.
func (t *Translator) fragment(f Filter) (squirrel.Sqlizer, error) {
	col := t.column

	switch f.Operator {
	case OpExists:
		// jsonb_exists instead of the ? operator: the operator collides
		// with placeholder rewriting.
		return squirrel.Expr("jsonb_exists("+col+", ?)", f.Key), nil

	case OpEqual:
		return squirrel.Expr(col+"->>? = ?", f.Key, toText(f.Value)), nil

	case OpNotEqual:
		return squirrel.Expr(col+"->>? <> ?", f.Key, toText(f.Value)), nil

	case OpIn:
		list, err := toTextList(f.Value)
		if err != nil {
			return nil, invalidFilter(f, err)
		}
		if len(list) == 0 {
			// Membership in an empty list never holds.
			return squirrel.Expr("FALSE"), nil
		}
		return squirrel.Expr(col+"->>? = ANY(?)", f.Key, list), nil

	case OpNotIn:
		list, err := toTextList(f.Value)
		if err != nil {
			return nil, invalidFilter(f, err)
		}
		if len(list) == 0 {
			// Exclusion from an empty list always holds.
			return squirrel.Expr("TRUE"), nil
		}
		return squirrel.Expr(col+"->>? <> ALL(?)", f.Key, list), nil

	case OpContains:
		pattern := "%" + toText(f.Value) + "%"
		return squirrel.Expr(col+"->>? ILIKE ?", f.Key, pattern), nil

	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual:
		num, ok := toFilterDecimal(f.Value)
		if !ok {
			return nil, invalidFilter(f, fmt.Errorf("numeric operator requires a numeric value"))
		}
		op := map[Operator]string{
			OpGreater:      ">",
			OpGreaterEqual: ">=",
			OpLess:         "<",
			OpLessEqual:    "<=",
		}[f.Operator]
		return squirrel.Expr("("+col+"->>?)::numeric "+op+" ?", f.Key, num), nil

	case OpArrayContains:
		elem, err := json.Marshal([]any{f.Value})
		if err != nil {
			return nil, invalidFilter(f, err)
		}
		return squirrel.Expr(col+"->? @> ?::jsonb", f.Key, string(elem)), nil

	default:
		return nil, apperror.NewValidation("unsupported filter operator").
			WithDetail("operator", string(f.Operator))
	}
}

// SortFragment builds an ORDER BY fragment extracting the key's text value.
// Ordering is lexicographic even for numeric fields; multi-digit numbers
// stored as text therefore sort as strings ("10" before "2"). Returns ""
// when the key has no active definition.
func (t *Translator) SortFragment(ctx context.Context, orgID id.ID, entityType, key, direction string) (string, error) {
	if _, err := t.registry.GetByKey(ctx, orgID, entityType, key); err != nil {
		if apperror.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}

	dir := "ASC"
	if strings.EqualFold(direction, "desc") {
		dir = "DESC"
	}

	// Definition keys are constrained to [a-zA-Z0-9_-], safe to embed as
	// a quoted literal inside ORDER BY (placeholders are not allowed there).
	return fmt.Sprintf("%s->>'%s' %s", t.column, key, dir), nil
}

func invalidFilter(f Filter, cause error) error {
	return apperror.NewValidation("invalid custom field filter").
		WithDetail("key", f.Key).
		WithDetail("operator", string(f.Operator)).
		WithCause(cause)
}

// toFilterDecimal converts a numeric filter literal. Unlike field value
// validation it also accepts strings, because query parameter filters
// arrive as text.
func toFilterDecimal(v any) (decimal.Decimal, bool) {
	if s, ok := v.(string); ok {
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		return d, err == nil
	}
	return toDecimal(v)
}

func toText(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		if s {
			return "true"
		}
		return "false"
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func toTextList(v any) ([]string, error) {
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, e := range list {
			out = append(out, toText(e))
		}
		return out, nil
	}
	return nil, fmt.Errorf("list operator requires an array value, got %T", v)
}
