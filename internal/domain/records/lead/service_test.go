package lead

import (
	"context"
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relatio/internal/core/apperror"
	"relatio/internal/core/id"
	"relatio/internal/domain"
	"relatio/internal/domain/customfield"
	"relatio/internal/domain/records"
)

func recordsListOptions(filters []customfield.Filter, sortKey, sortDir string) records.ListOptions {
	return records.ListOptions{
		Filter:        domain.DefaultListFilter(),
		CustomFilters: filters,
		CustomSortKey: sortKey,
		CustomSortDir: sortDir,
	}
}

// --- Test doubles ---

type fakeLeadRepo struct {
	leads map[id.ID]*Lead

	lastPredicate squirrel.Sqlizer
	lastSort      []string
}

func newFakeLeadRepo() *fakeLeadRepo {
	return &fakeLeadRepo{leads: make(map[id.ID]*Lead)}
}

func (f *fakeLeadRepo) Create(_ context.Context, l *Lead) error {
	stored := *l
	f.leads[l.ID] = &stored
	return nil
}

// Update mirrors the repository's WHERE clause: the submitted version must
// match the stored row, soft-deleted rows are invisible, and the stored
// version is incremented on success.
func (f *fakeLeadRepo) Update(_ context.Context, l *Lead) error {
	stored, ok := f.leads[l.ID]
	if !ok || stored.IsDeleted || stored.Version != l.Version {
		return apperror.NewConcurrentModification("leads", l.ID.String())
	}
	cp := *l
	cp.Version = stored.Version + 1
	f.leads[l.ID] = &cp
	return nil
}

func (f *fakeLeadRepo) GetByID(_ context.Context, _ id.ID, leadID id.ID) (*Lead, error) {
	l, ok := f.leads[leadID]
	if !ok || l.IsDeleted {
		return nil, apperror.NewNotFound("leads", leadID.String())
	}
	cp := *l
	return &cp, nil
}

func (f *fakeLeadRepo) SetDeleted(_ context.Context, _ id.ID, leadID id.ID, deleted bool) error {
	l, ok := f.leads[leadID]
	if !ok {
		return apperror.NewNotFound("leads", leadID.String())
	}
	l.IsDeleted = deleted
	return nil
}

func (f *fakeLeadRepo) Exists(_ context.Context, _ id.ID, leadID id.ID) (bool, error) {
	_, ok := f.leads[leadID]
	return ok, nil
}

func (f *fakeLeadRepo) List(_ context.Context, _ id.ID, _ domain.ListFilter, predicate squirrel.Sqlizer, sortFragments []string) (domain.ListResult[*Lead], error) {
	f.lastPredicate = predicate
	f.lastSort = sortFragments
	var items []*Lead
	for _, l := range f.leads {
		items = append(items, l)
	}
	return domain.ListResult[*Lead]{Items: items, TotalCount: int64(len(items))}, nil
}

type fakeDefRepo struct {
	defs []customfield.Definition
}

func (f *fakeDefRepo) Insert(context.Context, *customfield.Definition) error { return nil }
func (f *fakeDefRepo) Update(context.Context, *customfield.Definition) error { return nil }
func (f *fakeDefRepo) SoftDelete(context.Context, id.ID, id.ID) error        { return nil }
func (f *fakeDefRepo) GetActive(context.Context, id.ID, string) ([]customfield.Definition, error) {
	return f.defs, nil
}
func (f *fakeDefRepo) GetByID(context.Context, id.ID, id.ID) (*customfield.Definition, error) {
	return nil, apperror.NewNotFound("custom field definition", "")
}
func (f *fakeDefRepo) CountActive(context.Context, id.ID, string) (int, error) { return 0, nil }
func (f *fakeDefRepo) ExistsActiveKey(context.Context, id.ID, string, string) (bool, error) {
	return false, nil
}
func (f *fakeDefRepo) LockEntityType(context.Context, id.ID, string) error { return nil }
func (f *fakeDefRepo) NotifyChanged(context.Context, id.ID, string) error  { return nil }

type noopCache struct{}

func (noopCache) Load(ctx context.Context, _ string, loader func(ctx context.Context) ([]customfield.Definition, error)) ([]customfield.Definition, error) {
	return loader(ctx)
}
func (noopCache) Invalidate(context.Context, string) {}

type inlineTx struct{}

func (inlineTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService(repo *fakeLeadRepo, defs []customfield.Definition) *Service {
	registry := customfield.NewService(&fakeDefRepo{defs: defs}, noopCache{}, inlineTx{}, nil, customfield.DefaultServiceConfig())
	return NewService(repo, customfield.NewValidator(registry), customfield.NewTranslator(registry), inlineTx{})
}

func leadDef(orgID id.ID, key string, ft customfield.FieldType, required bool) customfield.Definition {
	def := customfield.NewDefinition(orgID, "lead", key, ft)
	def.Label = key
	def.IsRequired = required
	return *def
}

// --- Tests ---

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()
	orgID := id.New()

	t.Run("normalizes custom values into attributes", func(t *testing.T) {
		repo := newFakeLeadRepo()
		svc := newTestService(repo, []customfield.Definition{
			leadDef(orgID, "budget", customfield.TypeNumber, true),
		})

		l, err := svc.Create(ctx, New(orgID, "Acme"), map[string]any{"budget": 1500})
		require.NoError(t, err)
		assert.Equal(t, StatusNew, l.Status)

		stored := repo.leads[l.ID]
		require.NotNil(t, stored)
		assert.Contains(t, stored.Attributes, "budget")
	})

	t.Run("missing required custom field fails", func(t *testing.T) {
		repo := newFakeLeadRepo()
		svc := newTestService(repo, []customfield.Definition{
			leadDef(orgID, "budget", customfield.TypeNumber, true),
		})

		_, err := svc.Create(ctx, New(orgID, "Acme"), nil)
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeFieldValidation, appErr.Code)
		assert.Empty(t, repo.leads)
	})

	t.Run("unknown custom field fails", func(t *testing.T) {
		repo := newFakeLeadRepo()
		svc := newTestService(repo, nil)

		_, err := svc.Create(ctx, New(orgID, "Acme"), map[string]any{"ghost": 1})
		require.Error(t, err)
	})

	t.Run("native validation runs before custom fields", func(t *testing.T) {
		repo := newFakeLeadRepo()
		svc := newTestService(repo, nil)

		_, err := svc.Create(ctx, New(orgID, ""), nil)
		require.Error(t, err)
		assert.Empty(t, repo.leads)
	})
}

func TestServiceUpdate(t *testing.T) {
	ctx := context.Background()
	orgID := id.New()

	seed := func(svc *Service) *Lead {
		l, err := svc.Create(ctx, New(orgID, "Acme"), map[string]any{
			"budget": 1500,
			"notes":  "initial",
		})
		require.NoError(t, err)
		return l
	}

	defs := []customfield.Definition{
		leadDef(orgID, "budget", customfield.TypeNumber, true),
		leadDef(orgID, "notes", customfield.TypeString, false),
	}

	t.Run("partial custom update keeps untouched keys", func(t *testing.T) {
		repo := newFakeLeadRepo()
		svc := newTestService(repo, defs)
		created := seed(svc)

		upd := New(orgID, "Acme Corp")
		upd.ID = created.ID
		upd.Version = created.Version

		got, err := svc.Update(ctx, upd, map[string]any{"notes": "updated"})
		require.NoError(t, err)

		assert.Equal(t, "Acme Corp", got.Name)
		assert.Contains(t, got.Attributes, "budget")
		assert.Equal(t, "updated", got.Attributes["notes"])
		assert.Equal(t, created.Version+1, got.Version)
	})

	t.Run("nil clears an optional field", func(t *testing.T) {
		repo := newFakeLeadRepo()
		svc := newTestService(repo, defs)
		created := seed(svc)

		upd := New(orgID, "Acme")
		upd.ID = created.ID

		got, err := svc.Update(ctx, upd, map[string]any{"notes": nil})
		require.NoError(t, err)
		assert.NotContains(t, got.Attributes, "notes")
		assert.Contains(t, got.Attributes, "budget")
	})

	t.Run("clearing a required field fails", func(t *testing.T) {
		repo := newFakeLeadRepo()
		svc := newTestService(repo, defs)
		created := seed(svc)

		upd := New(orgID, "Acme")
		upd.ID = created.ID

		_, err := svc.Update(ctx, upd, map[string]any{"budget": nil})
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeFieldValidation, appErr.Code)
	})

	t.Run("nil custom values leave attributes alone", func(t *testing.T) {
		repo := newFakeLeadRepo()
		svc := newTestService(repo, defs)
		created := seed(svc)

		upd := New(orgID, "Renamed")
		upd.ID = created.ID

		got, err := svc.Update(ctx, upd, nil)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Name)
		assert.Contains(t, got.Attributes, "budget")
		assert.Contains(t, got.Attributes, "notes")
	})

	t.Run("submitting the current version succeeds", func(t *testing.T) {
		repo := newFakeLeadRepo()
		svc := newTestService(repo, defs)
		created := seed(svc)
		require.Equal(t, 1, created.Version)

		upd := New(orgID, "Acme Corp")
		upd.ID = created.ID
		upd.Version = created.Version

		got, err := svc.Update(ctx, upd, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Version)
		assert.Equal(t, 2, repo.leads[created.ID].Version)
	})

	t.Run("stale version is rejected", func(t *testing.T) {
		repo := newFakeLeadRepo()
		svc := newTestService(repo, defs)
		created := seed(svc)

		upd := New(orgID, "Acme Corp")
		upd.ID = created.ID
		upd.Version = created.Version

		_, err := svc.Update(ctx, upd, nil)
		require.NoError(t, err)

		// Second update with the already-consumed version conflicts.
		again := New(orgID, "Acme Inc")
		again.ID = created.ID
		again.Version = created.Version

		_, err = svc.Update(ctx, again, nil)
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeConcurrentModification, appErr.Code)
	})

	t.Run("soft-deleted lead is not updatable", func(t *testing.T) {
		repo := newFakeLeadRepo()
		svc := newTestService(repo, defs)
		created := seed(svc)
		require.NoError(t, svc.Delete(ctx, orgID, created.ID))

		upd := New(orgID, "Acme Corp")
		upd.ID = created.ID
		upd.Version = created.Version

		_, err := svc.Update(ctx, upd, nil)
		assert.True(t, apperror.IsNotFound(err))
		assert.True(t, repo.leads[created.ID].IsDeleted)
	})

	t.Run("unknown lead", func(t *testing.T) {
		repo := newFakeLeadRepo()
		svc := newTestService(repo, defs)

		_, err := svc.Update(ctx, New(orgID, "Acme"), nil)
		assert.True(t, apperror.IsNotFound(err))
	})
}

func TestServiceDelete(t *testing.T) {
	ctx := context.Background()
	orgID := id.New()
	repo := newFakeLeadRepo()
	svc := newTestService(repo, nil)

	l, err := svc.Create(ctx, New(orgID, "Acme"), nil)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, orgID, l.ID))
	assert.True(t, repo.leads[l.ID].IsDeleted)
}

func TestServiceListCompilesCustomFilters(t *testing.T) {
	ctx := context.Background()
	orgID := id.New()
	repo := newFakeLeadRepo()
	svc := newTestService(repo, []customfield.Definition{
		leadDef(orgID, "budget", customfield.TypeNumber, false),
	})

	_, err := svc.List(ctx, orgID, recordsListOptions(
		[]customfield.Filter{{Key: "budget", Operator: customfield.OpGreater, Value: 100}},
		"budget", "desc",
	))
	require.NoError(t, err)

	require.NotNil(t, repo.lastPredicate)
	assert.Equal(t, []string{"attributes->>'budget' DESC"}, repo.lastSort)

	// Filters over unknown keys are dropped entirely.
	repo.lastPredicate = nil
	_, err = svc.List(ctx, orgID, recordsListOptions(
		[]customfield.Filter{{Key: "ghost", Operator: customfield.OpExists}},
		"", "",
	))
	require.NoError(t, err)
	assert.Nil(t, repo.lastPredicate)
}
