package customfield

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ValueKind tags the variant of a normalized custom field value.
type ValueKind string

const (
	KindString     ValueKind = "string"
	KindNumber     ValueKind = "number"
	KindBool       ValueKind = "bool"
	KindDate       ValueKind = "date"
	KindDateTime   ValueKind = "datetime"
	KindStringList ValueKind = "string_list"
	KindJSON       ValueKind = "json"
	KindReference  ValueKind = "reference"
)

// Value is a normalized custom field value: a tagged union over the shapes
// the engine can store in the document column. Only the field matching
// Kind is meaningful.
//
// Numbers are kept as decimal.Decimal to preserve precision end-to-end
// (the document column round-trips them as JSON number literals).
type Value struct {
	Kind ValueKind

	Str  string
	Num  decimal.Decimal
	Bool bool
	Time time.Time
	List []string
	JSON any
}

// StringValue builds a string variant.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// NumberValue builds a number variant.
func NumberValue(d decimal.Decimal) Value { return Value{Kind: KindNumber, Num: d} }

// BoolValue builds a boolean variant.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// DateValue builds a calendar date variant.
func DateValue(t time.Time) Value { return Value{Kind: KindDate, Time: t} }

// DateTimeValue builds a timestamp variant.
func DateTimeValue(t time.Time) Value { return Value{Kind: KindDateTime, Time: t} }

// ListValue builds a string list variant.
func ListValue(items []string) Value { return Value{Kind: KindStringList, List: items} }

// JSONValue builds a free-form JSON variant.
func JSONValue(v any) Value { return Value{Kind: KindJSON, JSON: v} }

// ReferenceValue builds a reference (opaque identifier) variant.
func ReferenceValue(ref string) Value { return Value{Kind: KindReference, Str: ref} }

// Raw returns the storage representation for the document column.
func (v Value) Raw() any {
	switch v.Kind {
	case KindString, KindReference:
		return v.Str
	case KindNumber:
		// json.Number serializes as a bare numeric literal.
		return json.Number(v.Num.String())
	case KindBool:
		return v.Bool
	case KindDate:
		return v.Time.Format("2006-01-02")
	case KindDateTime:
		return v.Time.UTC().Format(time.RFC3339)
	case KindStringList:
		return v.List
	case KindJSON:
		return v.JSON
	default:
		return nil
	}
}

// RawMap converts a normalized value map into the document column payload.
func RawMap(values map[string]Value) map[string]any {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v.Raw()
	}
	return out
}
