package customfield

import (
	"context"
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relatio/internal/core/id"
)

func newTestTranslator(orgID id.ID, defs []Definition) *Translator {
	repo := &fakeRepo{defs: defs}
	return NewTranslator(newTestService(repo, &passCache{}))
}

// buildSQL renders the predicate through a query builder the way record
// repositories do, so placeholders get their final dollar numbering.
func buildSQL(t *testing.T, pred squirrel.Sqlizer) (string, []any) {
	t.Helper()
	sql, args, err := squirrel.StatementBuilder.
		PlaceholderFormat(squirrel.Dollar).
		Select("id").
		From("leads").
		Where(pred).
		ToSql()
	require.NoError(t, err)
	return sql, args
}

func TestTranslatorOperators(t *testing.T) {
	ctx := context.Background()
	orgID := id.New()
	tr := newTestTranslator(orgID, []Definition{
		makeDef(orgID, "budget", TypeNumber, nil),
		makeDef(orgID, "stage", TypeSingleSelect, func(d *Definition) {
			d.Choices = ChoiceList{{Label: "New", Value: "new"}}
		}),
		makeDef(orgID, "tags", TypeMultiSelect, func(d *Definition) {
			d.Choices = ChoiceList{{Label: "Hot", Value: "hot"}}
		}),
	})

	tests := []struct {
		name     string
		filter   Filter
		wantSQL  string
		wantArgs []any
	}{
		{
			"exists",
			Filter{Key: "budget", Operator: OpExists},
			"SELECT id FROM leads WHERE (jsonb_exists(attributes, $1))",
			[]any{"budget"},
		},
		{
			"eq",
			Filter{Key: "stage", Operator: OpEqual, Value: "new"},
			"SELECT id FROM leads WHERE (attributes->>$1 = $2)",
			[]any{"stage", "new"},
		},
		{
			"neq",
			Filter{Key: "stage", Operator: OpNotEqual, Value: "new"},
			"SELECT id FROM leads WHERE (attributes->>$1 <> $2)",
			[]any{"stage", "new"},
		},
		{
			"in",
			Filter{Key: "stage", Operator: OpIn, Value: []any{"new", "won"}},
			"SELECT id FROM leads WHERE (attributes->>$1 = ANY($2))",
			[]any{"stage", []string{"new", "won"}},
		},
		{
			"in empty list is always false",
			Filter{Key: "stage", Operator: OpIn, Value: []any{}},
			"SELECT id FROM leads WHERE (FALSE)",
			nil,
		},
		{
			"not_in",
			Filter{Key: "stage", Operator: OpNotIn, Value: []string{"lost"}},
			"SELECT id FROM leads WHERE (attributes->>$1 <> ALL($2))",
			[]any{"stage", []string{"lost"}},
		},
		{
			"not_in empty list is always true",
			Filter{Key: "stage", Operator: OpNotIn, Value: []any{}},
			"SELECT id FROM leads WHERE (TRUE)",
			nil,
		},
		{
			"contains",
			Filter{Key: "stage", Operator: OpContains, Value: "ne"},
			"SELECT id FROM leads WHERE (attributes->>$1 ILIKE $2)",
			[]any{"stage", "%ne%"},
		},
		{
			"gt casts to numeric",
			Filter{Key: "budget", Operator: OpGreater, Value: 100},
			"SELECT id FROM leads WHERE ((attributes->>$1)::numeric > $2)",
			nil, // args checked separately: decimal comparison
		},
		{
			"lte casts to numeric",
			Filter{Key: "budget", Operator: OpLessEqual, Value: 99.5},
			"SELECT id FROM leads WHERE ((attributes->>$1)::numeric <= $2)",
			nil,
		},
		{
			"array_contains",
			Filter{Key: "tags", Operator: OpArrayContains, Value: "hot"},
			"SELECT id FROM leads WHERE (attributes->$1 @> $2::jsonb)",
			[]any{"tags", `["hot"]`},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pred, err := tr.Translate(ctx, orgID, "lead", []Filter{tc.filter})
			require.NoError(t, err)
			require.NotNil(t, pred)

			sql, args := buildSQL(t, pred)
			assert.Equal(t, tc.wantSQL, sql)
			if tc.wantArgs != nil {
				assert.Equal(t, tc.wantArgs, args)
			}
		})
	}
}

func TestTranslatorConjunction(t *testing.T) {
	ctx := context.Background()
	orgID := id.New()
	tr := newTestTranslator(orgID, []Definition{
		makeDef(orgID, "budget", TypeNumber, nil),
		makeDef(orgID, "stage", TypeString, nil),
	})

	pred, err := tr.Translate(ctx, orgID, "lead", []Filter{
		{Key: "stage", Operator: OpEqual, Value: "won"},
		{Key: "budget", Operator: OpExists},
	})
	require.NoError(t, err)

	sql, args := buildSQL(t, pred)
	assert.Equal(t,
		"SELECT id FROM leads WHERE (attributes->>$1 = $2 AND jsonb_exists(attributes, $3))",
		sql)
	assert.Equal(t, []any{"stage", "won", "budget"}, args)
}

func TestTranslatorDropsUnknownKeys(t *testing.T) {
	ctx := context.Background()
	orgID := id.New()
	tr := newTestTranslator(orgID, []Definition{
		makeDef(orgID, "stage", TypeString, nil),
	})

	t.Run("unknown key alone yields nil predicate", func(t *testing.T) {
		pred, err := tr.Translate(ctx, orgID, "lead", []Filter{
			{Key: "ghost", Operator: OpEqual, Value: "x"},
		})
		require.NoError(t, err)
		assert.Nil(t, pred)
	})

	t.Run("unknown key is dropped, known key survives", func(t *testing.T) {
		pred, err := tr.Translate(ctx, orgID, "lead", []Filter{
			{Key: "ghost", Operator: OpEqual, Value: "x"},
			{Key: "stage", Operator: OpEqual, Value: "won"},
		})
		require.NoError(t, err)

		sql, args := buildSQL(t, pred)
		assert.Equal(t, "SELECT id FROM leads WHERE (attributes->>$1 = $2)", sql)
		assert.Equal(t, []any{"stage", "won"}, args)
	})

	t.Run("no filters yields nil predicate", func(t *testing.T) {
		pred, err := tr.Translate(ctx, orgID, "lead", nil)
		require.NoError(t, err)
		assert.Nil(t, pred)
	})
}

func TestTranslatorNumericFiltersAcceptStrings(t *testing.T) {
	ctx := context.Background()
	orgID := id.New()
	tr := newTestTranslator(orgID, []Definition{
		makeDef(orgID, "budget", TypeNumber, nil),
	})

	// Query parameter filters deliver every value as text.
	pred, err := tr.Translate(ctx, orgID, "lead", []Filter{
		{Key: "budget", Operator: OpGreaterEqual, Value: "10"},
	})
	require.NoError(t, err)

	sql, args := buildSQL(t, pred)
	assert.Equal(t, "SELECT id FROM leads WHERE ((attributes->>$1)::numeric >= $2)", sql)
	require.Len(t, args, 2)
	num, ok := args[1].(decimal.Decimal)
	require.True(t, ok)
	assert.True(t, num.Equal(decimal.NewFromInt(10)))

	_, err = tr.Translate(ctx, orgID, "lead", []Filter{
		{Key: "budget", Operator: OpLess, Value: " 19.5 "},
	})
	require.NoError(t, err)
}

func TestTranslatorInvalidFilters(t *testing.T) {
	ctx := context.Background()
	orgID := id.New()
	tr := newTestTranslator(orgID, []Definition{
		makeDef(orgID, "budget", TypeNumber, nil),
		makeDef(orgID, "stage", TypeString, nil),
	})

	_, err := tr.Translate(ctx, orgID, "lead", []Filter{
		{Key: "budget", Operator: OpGreater, Value: "not a number"},
	})
	assert.Error(t, err)

	_, err = tr.Translate(ctx, orgID, "lead", []Filter{
		{Key: "stage", Operator: OpIn, Value: "scalar"},
	})
	assert.Error(t, err)

	_, err = tr.Translate(ctx, orgID, "lead", []Filter{
		{Key: "stage", Operator: "between", Value: 1},
	})
	assert.Error(t, err)
}

func TestTranslatorSortFragment(t *testing.T) {
	ctx := context.Background()
	orgID := id.New()
	tr := newTestTranslator(orgID, []Definition{
		makeDef(orgID, "budget", TypeNumber, nil),
	})

	frag, err := tr.SortFragment(ctx, orgID, "lead", "budget", "desc")
	require.NoError(t, err)
	assert.Equal(t, "attributes->>'budget' DESC", frag)

	frag, err = tr.SortFragment(ctx, orgID, "lead", "budget", "")
	require.NoError(t, err)
	assert.Equal(t, "attributes->>'budget' ASC", frag)

	frag, err = tr.SortFragment(ctx, orgID, "lead", "ghost", "asc")
	require.NoError(t, err)
	assert.Equal(t, "", frag)
}

func TestParseOperator(t *testing.T) {
	op, ok := ParseOperator("array_contains")
	assert.True(t, ok)
	assert.Equal(t, OpArrayContains, op)

	_, ok = ParseOperator("like")
	assert.False(t, ok)
}
