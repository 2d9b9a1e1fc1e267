package customfield

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"relatio/internal/core/id"
)

// FieldError is one (field, message) validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result is the outcome of validating a submitted value map.
// Normalized contains only the fields that passed, keyed by definition key.
type Result struct {
	Valid      bool             `json:"valid"`
	Errors     []FieldError     `json:"errors,omitempty"`
	Normalized map[string]Value `json:"-"`
}

// Validator is the validation engine: a pure function of (definitions, input).
// It never touches storage beyond fetching definitions through the registry,
// and it never fails fast: all field errors are collected before returning.
type Validator struct {
	registry *Service
}

// NewValidator creates a validator backed by the given registry.
func NewValidator(registry *Service) *Validator {
	return &Validator{registry: registry}
}

// Validate checks values against the active definitions of (org, entityType).
//
// Unknown keys are reported as errors (strict mode, no silent drops) unless
// they carry the reserved '_' prefix. Fields are validated independently;
// a failure in one field does not block the others. The returned error is
// non-nil only for infrastructure failures.
func (v *Validator) Validate(ctx context.Context, orgID id.ID, entityType string, values map[string]any) (*Result, error) {
	defs, err := v.registry.GetByEntityType(ctx, orgID, entityType)
	if err != nil {
		return nil, err
	}

	res := &Result{Normalized: make(map[string]Value)}

	known := make(map[string]struct{}, len(defs))
	for i := range defs {
		known[defs[i].Key] = struct{}{}
	}
	for key := range values {
		if _, ok := known[key]; ok {
			continue
		}
		if IsReservedKey(key) {
			continue
		}
		res.Errors = append(res.Errors, FieldError{Field: key, Message: "unknown field"})
	}

	for i := range defs {
		def := &defs[i]
		raw, present := values[def.Key]

		if !present {
			if def.IsRequired {
				res.Errors = append(res.Errors, FieldError{Field: def.Key, Message: "is required"})
			}
			continue
		}
		if raw == nil {
			// Explicit null: optional fields pass through unmodified,
			// required fields get both the required and the type error.
			if def.IsRequired {
				res.Errors = append(res.Errors, FieldError{Field: def.Key, Message: "is required"})
				res.Errors = append(res.Errors, FieldError{Field: def.Key, Message: typeMessage(def.FieldType)})
			}
			continue
		}

		val, msgs := checkValue(def, raw)
		if len(msgs) > 0 {
			for _, m := range msgs {
				res.Errors = append(res.Errors, FieldError{Field: def.Key, Message: m})
			}
			continue
		}
		res.Normalized[def.Key] = val
	}

	res.Valid = len(res.Errors) == 0
	return res, nil
}

// checkValue dispatches to the per-type validator and layers extra rules on
// top when the base type matched. Adding a FieldType variant without a case
// here fails the default branch, not silently.
func checkValue(def *Definition, raw any) (Value, []string) {
	switch def.FieldType {
	case TypeString:
		return checkString(def, raw)
	case TypeNumber:
		return checkNumber(def, raw)
	case TypeBoolean:
		return checkBoolean(raw)
	case TypeDate:
		return checkDate(raw)
	case TypeDateTime:
		return checkDateTime(raw)
	case TypeSingleSelect:
		return checkSingleSelect(def, raw)
	case TypeMultiSelect:
		return checkMultiSelect(def, raw)
	case TypeJSON:
		return checkJSON(raw)
	case TypeReference:
		return checkReference(raw)
	default:
		return Value{}, []string{fmt.Sprintf("unsupported field type %q", def.FieldType)}
	}
}

func typeMessage(t FieldType) string {
	switch t {
	case TypeString:
		return "must be a string"
	case TypeNumber:
		return "must be a number"
	case TypeBoolean:
		return "must be a boolean"
	case TypeDate:
		return "must be a date in YYYY-MM-DD format"
	case TypeDateTime:
		return "must be an ISO 8601 timestamp"
	case TypeSingleSelect:
		return "must be one of the configured choices"
	case TypeMultiSelect:
		return "must be an array of configured choice values"
	case TypeJSON:
		return "must be a JSON object or array"
	case TypeReference:
		return "must be a UUID identifier"
	default:
		return "has unsupported type"
	}
}

func checkString(def *Definition, raw any) (Value, []string) {
	s, ok := raw.(string)
	if !ok {
		return Value{}, []string{typeMessage(TypeString)}
	}

	var msgs []string
	rules := def.Validation
	if rules.MinLength != nil && len(s) < *rules.MinLength {
		msgs = append(msgs, fmt.Sprintf("must be at least %d characters", *rules.MinLength))
	}
	if rules.MaxLength != nil && len(s) > *rules.MaxLength {
		msgs = append(msgs, fmt.Sprintf("must be at most %d characters", *rules.MaxLength))
	}
	if rules.Pattern != "" {
		re, err := regexp.Compile(rules.Pattern)
		if err != nil {
			msgs = append(msgs, "has an invalid pattern rule")
		} else if !re.MatchString(s) {
			msgs = append(msgs, fmt.Sprintf("must match pattern %s", rules.Pattern))
		}
	}
	if len(msgs) > 0 {
		return Value{}, msgs
	}
	return StringValue(s), nil
}

func checkNumber(def *Definition, raw any) (Value, []string) {
	d, ok := toDecimal(raw)
	if !ok {
		return Value{}, []string{typeMessage(TypeNumber)}
	}

	var msgs []string
	rules := def.Validation
	if rules.Min != nil && d.LessThan(decimal.NewFromFloat(*rules.Min)) {
		msgs = append(msgs, fmt.Sprintf("must be >= %v", *rules.Min))
	}
	if rules.Max != nil && d.GreaterThan(decimal.NewFromFloat(*rules.Max)) {
		msgs = append(msgs, fmt.Sprintf("must be <= %v", *rules.Max))
	}
	if len(msgs) > 0 {
		return Value{}, msgs
	}
	return NumberValue(d), nil
}

func toDecimal(raw any) (decimal.Decimal, bool) {
	switch n := raw.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case decimal.Decimal:
		return n, true
	}
	return decimal.Zero, false
}

func checkBoolean(raw any) (Value, []string) {
	b, ok := raw.(bool)
	if !ok {
		return Value{}, []string{typeMessage(TypeBoolean)}
	}
	return BoolValue(b), nil
}

func checkDate(raw any) (Value, []string) {
	s, ok := raw.(string)
	if !ok {
		return Value{}, []string{typeMessage(TypeDate)}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Value{}, []string{typeMessage(TypeDate)}
	}
	return DateValue(t), nil
}

func checkDateTime(raw any) (Value, []string) {
	s, ok := raw.(string)
	if !ok {
		return Value{}, []string{typeMessage(TypeDateTime)}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Value{}, []string{typeMessage(TypeDateTime)}
	}
	return DateTimeValue(t), nil
}

func checkSingleSelect(def *Definition, raw any) (Value, []string) {
	s, ok := raw.(string)
	if !ok || !def.Choices.HasValue(s) {
		return Value{}, []string{typeMessage(TypeSingleSelect)}
	}
	return StringValue(s), nil
}

func checkMultiSelect(def *Definition, raw any) (Value, []string) {
	var items []string
	switch list := raw.(type) {
	case []string:
		items = list
	case []any:
		items = make([]string, 0, len(list))
		for _, e := range list {
			s, ok := e.(string)
			if !ok {
				return Value{}, []string{typeMessage(TypeMultiSelect)}
			}
			items = append(items, s)
		}
	default:
		return Value{}, []string{typeMessage(TypeMultiSelect)}
	}

	for _, s := range items {
		if !def.Choices.HasValue(s) {
			return Value{}, []string{fmt.Sprintf("%q is not a configured choice", s)}
		}
	}
	return ListValue(items), nil
}

func checkJSON(raw any) (Value, []string) {
	switch raw.(type) {
	case map[string]any, []any:
		return JSONValue(raw), nil
	}
	return Value{}, []string{typeMessage(TypeJSON)}
}

func checkReference(raw any) (Value, []string) {
	s, ok := raw.(string)
	if !ok {
		return Value{}, []string{typeMessage(TypeReference)}
	}
	if _, err := uuid.Parse(s); err != nil {
		return Value{}, []string{typeMessage(TypeReference)}
	}
	return ReferenceValue(s), nil
}
