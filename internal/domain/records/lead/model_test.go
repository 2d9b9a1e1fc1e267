package lead

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"relatio/internal/core/id"
)

func TestLeadValidate(t *testing.T) {
	ctx := context.Background()
	orgID := id.New()

	t.Run("defaults are valid", func(t *testing.T) {
		l := New(orgID, "Acme")
		assert.NoError(t, l.Validate(ctx))
		assert.Equal(t, StatusNew, l.Status)
		assert.Equal(t, 1, l.Version)
	})

	t.Run("name required", func(t *testing.T) {
		l := New(orgID, "")
		assert.Error(t, l.Validate(ctx))
	})

	t.Run("unknown status", func(t *testing.T) {
		l := New(orgID, "Acme")
		l.Status = "archived"
		assert.Error(t, l.Validate(ctx))
	})

	t.Run("bad email", func(t *testing.T) {
		l := New(orgID, "Acme")
		email := "not-an-email"
		l.Email = &email
		assert.Error(t, l.Validate(ctx))
	})

	t.Run("good email", func(t *testing.T) {
		l := New(orgID, "Acme")
		email := "sales@acme.io"
		l.Email = &email
		assert.NoError(t, l.Validate(ctx))
	})

	t.Run("negative amount", func(t *testing.T) {
		l := New(orgID, "Acme")
		amount := decimal.NewFromInt(-1)
		l.Amount = &amount
		assert.Error(t, l.Validate(ctx))
	})
}

func TestStatusIsValid(t *testing.T) {
	for _, s := range []Status{StatusNew, StatusContacted, StatusQualified, StatusWon, StatusLost} {
		assert.True(t, s.IsValid(), string(s))
	}
	assert.False(t, Status("").IsValid())
	assert.False(t, Status("maybe").IsValid())
}
