package customfield

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relatio/internal/core/apperror"
	"relatio/internal/core/id"
)

// --- In-memory test doubles ---

type fakeRepo struct {
	defs        []Definition
	activeCount int
	existingKey string

	inserted []Definition
	updated  []Definition
	deleted  []id.ID
	locks    int
	notifies int
}

func (f *fakeRepo) Insert(_ context.Context, def *Definition) error {
	f.inserted = append(f.inserted, *def)
	return nil
}

func (f *fakeRepo) Update(_ context.Context, def *Definition) error {
	f.updated = append(f.updated, *def)
	return nil
}

func (f *fakeRepo) SoftDelete(_ context.Context, _ id.ID, defID id.ID) error {
	f.deleted = append(f.deleted, defID)
	return nil
}

func (f *fakeRepo) GetActive(_ context.Context, _ id.ID, _ string) ([]Definition, error) {
	return f.defs, nil
}

func (f *fakeRepo) GetByID(_ context.Context, _ id.ID, defID id.ID) (*Definition, error) {
	for i := range f.defs {
		if f.defs[i].ID == defID {
			def := f.defs[i]
			return &def, nil
		}
	}
	return nil, apperror.NewNotFound("custom field definition", defID.String())
}

func (f *fakeRepo) CountActive(_ context.Context, _ id.ID, _ string) (int, error) {
	return f.activeCount, nil
}

func (f *fakeRepo) ExistsActiveKey(_ context.Context, _ id.ID, _ string, key string) (bool, error) {
	return key == f.existingKey, nil
}

func (f *fakeRepo) LockEntityType(_ context.Context, _ id.ID, _ string) error {
	f.locks++
	return nil
}

func (f *fakeRepo) NotifyChanged(_ context.Context, _ id.ID, _ string) error {
	f.notifies++
	return nil
}

// passCache delegates straight to the loader and records invalidations.
type passCache struct {
	invalidated []string
}

func (c *passCache) Load(ctx context.Context, _ string, loader func(ctx context.Context) ([]Definition, error)) ([]Definition, error) {
	return loader(ctx)
}

func (c *passCache) Invalidate(_ context.Context, key string) {
	c.invalidated = append(c.invalidated, key)
}

// fakeTx runs the function without a real transaction.
type fakeTx struct{}

func (fakeTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService(repo *fakeRepo, cache *passCache) *Service {
	return NewService(repo, cache, fakeTx{}, nil, DefaultServiceConfig())
}

func validDefinition(orgID id.ID) *Definition {
	def := NewDefinition(orgID, "lead", "budget", TypeNumber)
	def.Label = "Budget"
	return def
}

// --- Tests ---

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()
	orgID := id.New()

	t.Run("persists valid definition and invalidates cache", func(t *testing.T) {
		repo := &fakeRepo{}
		cache := &passCache{}
		svc := newTestService(repo, cache)

		def, err := svc.Create(ctx, validDefinition(orgID))
		require.NoError(t, err)
		assert.False(t, id.IsNil(def.ID))

		require.Len(t, repo.inserted, 1)
		assert.Equal(t, 1, repo.locks)
		assert.Equal(t, 1, repo.notifies)
		assert.Equal(t, []string{CacheKey(orgID, "lead")}, cache.invalidated)
	})

	t.Run("rejects duplicate active key", func(t *testing.T) {
		repo := &fakeRepo{existingKey: "budget"}
		svc := newTestService(repo, &passCache{})

		_, err := svc.Create(ctx, validDefinition(orgID))
		require.Error(t, err)
		assert.True(t, apperror.IsDuplicate(err))
		assert.Empty(t, repo.inserted)
	})

	t.Run("rejects when quota reached", func(t *testing.T) {
		repo := &fakeRepo{activeCount: DefaultMaxPerEntityType}
		svc := newTestService(repo, &passCache{})

		_, err := svc.Create(ctx, validDefinition(orgID))
		require.Error(t, err)

		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeQuotaExceeded, appErr.Code)
		assert.Empty(t, repo.inserted)
	})

	t.Run("rejects reserved key before touching storage", func(t *testing.T) {
		repo := &fakeRepo{}
		svc := newTestService(repo, &passCache{})

		def := validDefinition(orgID)
		def.Key = "_system"
		_, err := svc.Create(ctx, def)
		require.Error(t, err)
		assert.Equal(t, 0, repo.locks)
	})
}

func TestServiceUpdate(t *testing.T) {
	ctx := context.Background()
	orgID := id.New()

	existing := *validDefinition(orgID)

	t.Run("merges patch fields", func(t *testing.T) {
		repo := &fakeRepo{defs: []Definition{existing}}
		cache := &passCache{}
		svc := newTestService(repo, cache)

		label := "Deal budget"
		required := true
		def, err := svc.Update(ctx, orgID, existing.ID, UpdatePatch{
			Label:      &label,
			IsRequired: &required,
		})
		require.NoError(t, err)
		assert.Equal(t, "Deal budget", def.Label)
		assert.True(t, def.IsRequired)
		assert.Equal(t, existing.Key, def.Key)

		require.Len(t, repo.updated, 1)
		assert.Equal(t, []string{CacheKey(orgID, "lead")}, cache.invalidated)
	})

	t.Run("rejects patch breaking select invariant", func(t *testing.T) {
		repo := &fakeRepo{defs: []Definition{existing}}
		svc := newTestService(repo, &passCache{})

		// Switching a number field to single_select without choices must fail.
		ft := TypeSingleSelect
		_, err := svc.Update(ctx, orgID, existing.ID, UpdatePatch{FieldType: &ft})
		require.Error(t, err)
		assert.Empty(t, repo.updated)
	})

	t.Run("unknown id", func(t *testing.T) {
		repo := &fakeRepo{}
		svc := newTestService(repo, &passCache{})

		_, err := svc.Update(ctx, orgID, id.New(), UpdatePatch{})
		assert.True(t, apperror.IsNotFound(err))
	})
}

func TestServiceDelete(t *testing.T) {
	ctx := context.Background()
	orgID := id.New()
	existing := *validDefinition(orgID)

	repo := &fakeRepo{defs: []Definition{existing}}
	cache := &passCache{}
	svc := newTestService(repo, cache)

	require.NoError(t, svc.Delete(ctx, orgID, existing.ID))
	assert.Equal(t, []id.ID{existing.ID}, repo.deleted)
	assert.Equal(t, 1, repo.notifies)
	assert.Equal(t, []string{CacheKey(orgID, "lead")}, cache.invalidated)
}

// statefulRepo keeps real active/deleted rows so lifecycle sequences can be
// exercised end to end, the way the SQL repository behaves.
type statefulRepo struct {
	rows map[id.ID]*Definition
}

func newStatefulRepo() *statefulRepo {
	return &statefulRepo{rows: make(map[id.ID]*Definition)}
}

func (r *statefulRepo) Insert(_ context.Context, def *Definition) error {
	cp := *def
	r.rows[def.ID] = &cp
	return nil
}

func (r *statefulRepo) Update(_ context.Context, def *Definition) error {
	cp := *def
	r.rows[def.ID] = &cp
	return nil
}

func (r *statefulRepo) SoftDelete(_ context.Context, _ id.ID, defID id.ID) error {
	row, ok := r.rows[defID]
	if !ok || row.IsDeleted {
		return apperror.NewNotFound("custom field definition", defID.String())
	}
	row.IsDeleted = true
	return nil
}

func (r *statefulRepo) GetActive(_ context.Context, _ id.ID, entityType string) ([]Definition, error) {
	var out []Definition
	for _, row := range r.rows {
		if !row.IsDeleted && row.EntityType == entityType {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (r *statefulRepo) GetByID(_ context.Context, _ id.ID, defID id.ID) (*Definition, error) {
	row, ok := r.rows[defID]
	if !ok || row.IsDeleted {
		return nil, apperror.NewNotFound("custom field definition", defID.String())
	}
	cp := *row
	return &cp, nil
}

func (r *statefulRepo) CountActive(_ context.Context, _ id.ID, entityType string) (int, error) {
	n := 0
	for _, row := range r.rows {
		if !row.IsDeleted && row.EntityType == entityType {
			n++
		}
	}
	return n, nil
}

func (r *statefulRepo) ExistsActiveKey(_ context.Context, _ id.ID, entityType, key string) (bool, error) {
	for _, row := range r.rows {
		if !row.IsDeleted && row.EntityType == entityType && row.Key == key {
			return true, nil
		}
	}
	return false, nil
}

func (r *statefulRepo) LockEntityType(context.Context, id.ID, string) error { return nil }
func (r *statefulRepo) NotifyChanged(context.Context, id.ID, string) error  { return nil }

func TestServiceKeyReuseAfterDelete(t *testing.T) {
	ctx := context.Background()
	orgID := id.New()
	repo := newStatefulRepo()
	svc := NewService(repo, &passCache{}, fakeTx{}, nil, DefaultServiceConfig())

	first, err := svc.Create(ctx, validDefinition(orgID))
	require.NoError(t, err)

	// A second active definition with the same key is rejected.
	_, err = svc.Create(ctx, validDefinition(orgID))
	assert.True(t, apperror.IsDuplicate(err))

	require.NoError(t, svc.Delete(ctx, orgID, first.ID))

	// Soft delete frees the key for a fresh definition.
	second, err := svc.Create(ctx, validDefinition(orgID))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	def, err := svc.GetByKey(ctx, orgID, "lead", "budget")
	require.NoError(t, err)
	assert.Equal(t, second.ID, def.ID)
}

func TestServiceGetByKey(t *testing.T) {
	ctx := context.Background()
	orgID := id.New()
	existing := *validDefinition(orgID)

	svc := newTestService(&fakeRepo{defs: []Definition{existing}}, &passCache{})

	def, err := svc.GetByKey(ctx, orgID, "lead", "budget")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, def.ID)

	_, err = svc.GetByKey(ctx, orgID, "lead", "missing")
	assert.True(t, apperror.IsNotFound(err))
}
