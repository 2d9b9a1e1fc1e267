// Package customfield implements the per-organization dynamic attribute
// engine: the definition registry, the value validator and the filter
// translator over the record document column.
package customfield

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"relatio/internal/core/apperror"
	"relatio/internal/core/id"
)

// FieldType enumerates the supported custom field value types.
type FieldType string

const (
	TypeString       FieldType = "string"
	TypeNumber       FieldType = "number"
	TypeBoolean      FieldType = "boolean"
	TypeDate         FieldType = "date"
	TypeDateTime     FieldType = "datetime"
	TypeSingleSelect FieldType = "single_select"
	TypeMultiSelect  FieldType = "multi_select"
	TypeJSON         FieldType = "json"
	TypeReference    FieldType = "reference"
)

// IsValid reports whether t is one of the known field types.
func (t FieldType) IsValid() bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeDate, TypeDateTime,
		TypeSingleSelect, TypeMultiSelect, TypeJSON, TypeReference:
		return true
	}
	return false
}

// IsSelect reports whether t requires a non-empty choice list.
func (t FieldType) IsSelect() bool {
	return t == TypeSingleSelect || t == TypeMultiSelect
}

// PresentationType returns the UI widget kind for the layout flow.
func (t FieldType) PresentationType() string {
	switch t {
	case TypeSingleSelect:
		return "picklist"
	case TypeMultiSelect:
		return "multipicklist"
	case TypeReference:
		return "lookup"
	case TypeBoolean:
		return "checkbox"
	case TypeDate, TypeDateTime:
		return "datepicker"
	case TypeJSON:
		return "code"
	case TypeNumber:
		return "numeric"
	default:
		return "text"
	}
}

// Choice is one selectable option of a select-type field.
type Choice struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ChoiceList is an ordered list of choices stored as JSONB.
type ChoiceList []Choice

// Scan implements sql.Scanner.
func (c *ChoiceList) Scan(src any) error {
	if src == nil {
		*c = nil
		return nil
	}
	var source []byte
	switch v := src.(type) {
	case []byte:
		source = v
	case string:
		source = []byte(v)
	default:
		return fmt.Errorf("unsupported type for ChoiceList: %T", src)
	}
	if len(source) == 0 {
		*c = nil
		return nil
	}
	return json.Unmarshal(source, c)
}

// Value implements driver.Valuer.
func (c ChoiceList) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

// HasValue reports whether v is one of the choice values.
func (c ChoiceList) HasValue(v string) bool {
	for _, ch := range c {
		if ch.Value == v {
			return true
		}
	}
	return false
}

// Rules holds optional extra constraints layered on top of the base type.
// Min/Max apply to number fields, the rest to string fields.
type Rules struct {
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
}

// Scan implements sql.Scanner.
func (r *Rules) Scan(src any) error {
	if src == nil {
		*r = Rules{}
		return nil
	}
	var source []byte
	switch v := src.(type) {
	case []byte:
		source = v
	case string:
		source = []byte(v)
	default:
		return fmt.Errorf("unsupported type for Rules: %T", src)
	}
	if len(source) == 0 {
		*r = Rules{}
		return nil
	}
	return json.Unmarshal(source, r)
}

// Value implements driver.Valuer.
func (r Rules) Value() (driver.Value, error) {
	if r == (Rules{}) {
		return nil, nil
	}
	return json.Marshal(r)
}

// ReservedKeyPrefix marks system-internal keys. Such keys cannot be
// defined by tenants and are ignored by the validator's unknown-key check.
const ReservedKeyPrefix = "_"

// keyPattern: stable machine name, 1-50 chars.
var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,50}$`)

// IsReservedKey reports whether key is system-internal.
func IsReservedKey(key string) bool {
	return strings.HasPrefix(key, ReservedKeyPrefix)
}

// Definition describes one custom attribute for one (organization, entity type).
type Definition struct {
	ID             id.ID  `db:"id" json:"id"`
	OrganizationID id.ID  `db:"organization_id" json:"organizationId"`
	EntityType     string `db:"entity_type" json:"entityType"`

	Key         string `db:"key" json:"key"`
	Label       string `db:"label" json:"label"`
	Description string `db:"description" json:"description,omitempty"`

	FieldType FieldType `db:"field_type" json:"fieldType"`

	IsRequired   bool            `db:"is_required" json:"isRequired"`
	DefaultValue json.RawMessage `db:"default_value" json:"defaultValue,omitempty"`
	Choices      ChoiceList      `db:"choices" json:"choices,omitempty"`
	Validation   Rules           `db:"validation" json:"validation,omitempty"`

	// IsIndexed is a governance flag only; it does not change engine behavior.
	IsIndexed bool `db:"is_indexed" json:"isIndexed"`

	IsDeleted bool      `db:"is_deleted" json:"isDeleted"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewDefinition creates a Definition with generated ID and timestamps.
func NewDefinition(orgID id.ID, entityType, key string, fieldType FieldType) *Definition {
	now := time.Now().UTC()
	return &Definition{
		ID:             id.New(),
		OrganizationID: orgID,
		EntityType:     entityType,
		Key:            key,
		FieldType:      fieldType,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Validate implements entity.Validatable: checks shape invariants that do
// not require database access (uniqueness and quota are checked by the registry).
func (d *Definition) Validate(ctx context.Context) error {
	if d.EntityType == "" {
		return apperror.NewValidation("entityType is required").
			WithDetail("field", "entityType")
	}

	if !keyPattern.MatchString(d.Key) {
		return apperror.NewValidation("key must be 1-50 characters of [a-zA-Z0-9_-]").
			WithDetail("field", "key").
			WithDetail("value", d.Key)
	}

	if IsReservedKey(d.Key) {
		return apperror.NewValidation("keys starting with '_' are reserved").
			WithDetail("field", "key").
			WithDetail("value", d.Key)
	}

	if !d.FieldType.IsValid() {
		return apperror.NewValidation("invalid field type").
			WithDetail("field", "fieldType").
			WithDetail("value", string(d.FieldType))
	}

	if d.FieldType.IsSelect() && len(d.Choices) == 0 {
		return apperror.NewValidation("select fields require a non-empty choice list").
			WithDetail("field", "choices").
			WithDetail("fieldType", string(d.FieldType))
	}

	if d.Label == "" {
		return apperror.NewValidation("label is required").
			WithDetail("field", "label")
	}

	return nil
}
