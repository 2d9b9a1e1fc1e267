package customfield_repo

import (
	"context"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relatio/internal/core/apperror"
	"relatio/internal/core/id"
	"relatio/internal/domain/customfield"
	"relatio/internal/infrastructure/storage/postgres"
)

func newMockRepo(t *testing.T) (*DefinitionRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewDefinitionRepo(postgres.NewTxManagerFromDB(mock)), mock
}

func exact(sql string) string {
	return "^" + regexp.QuoteMeta(sql) + "$"
}

func testDefinition(orgID id.ID) *customfield.Definition {
	def := customfield.NewDefinition(orgID, "lead", "budget", customfield.TypeNumber)
	def.Label = "Budget"
	def.CreatedBy = "u-1"
	return def
}

func TestDefinitionRepoInsert(t *testing.T) {
	repo, mock := newMockRepo(t)
	orgID := id.New()
	def := testDefinition(orgID)

	mock.ExpectExec(exact(
		"INSERT INTO custom_field_definitions "+
			"(id,organization_id,entity_type,key,label,description,field_type,"+
			"is_required,default_value,choices,validation,is_indexed,is_deleted,"+
			"created_by,created_at,updated_at) "+
			"VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)")).
		WithArgs(
			def.ID, def.OrganizationID, def.EntityType, def.Key, def.Label,
			def.Description, def.FieldType, def.IsRequired,
			[]byte(def.DefaultValue), def.Choices, def.Validation,
			def.IsIndexed, def.IsDeleted, def.CreatedBy, def.CreatedAt, def.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Insert(context.Background(), def))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDefinitionRepoUpdate(t *testing.T) {
	updateSQL := "UPDATE custom_field_definitions SET " +
		"label = $1, description = $2, field_type = $3, is_required = $4, " +
		"default_value = $5, choices = $6, validation = $7, is_indexed = $8, " +
		"updated_at = now() " +
		"WHERE id = $9 AND is_deleted = $10 AND organization_id = $11"

	t.Run("updates active row", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		def := testDefinition(id.New())

		mock.ExpectExec(exact(updateSQL)).
			WithArgs(
				def.Label, def.Description, def.FieldType, def.IsRequired,
				[]byte(def.DefaultValue), def.Choices, def.Validation, def.IsIndexed,
				def.ID.String(), false, def.OrganizationID.String(),
			).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.Update(context.Background(), def))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero rows means not found", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		def := testDefinition(id.New())

		mock.ExpectExec(exact(updateSQL)).
			WithArgs(
				def.Label, def.Description, def.FieldType, def.IsRequired,
				[]byte(def.DefaultValue), def.Choices, def.Validation, def.IsIndexed,
				def.ID.String(), false, def.OrganizationID.String(),
			).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Update(context.Background(), def)
		assert.True(t, apperror.IsNotFound(err))
	})
}

func TestDefinitionRepoSoftDelete(t *testing.T) {
	deleteSQL := "UPDATE custom_field_definitions SET is_deleted = $1, updated_at = now() " +
		"WHERE id = $2 AND is_deleted = $3 AND organization_id = $4"

	t.Run("marks row deleted", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		orgID, defID := id.New(), id.New()

		mock.ExpectExec(exact(deleteSQL)).
			WithArgs(true, defID.String(), false, orgID.String()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.SoftDelete(context.Background(), orgID, defID))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already deleted means not found", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		orgID, defID := id.New(), id.New()

		mock.ExpectExec(exact(deleteSQL)).
			WithArgs(true, defID.String(), false, orgID.String()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.SoftDelete(context.Background(), orgID, defID)
		assert.True(t, apperror.IsNotFound(err))
	})
}

func TestDefinitionRepoGetActive(t *testing.T) {
	repo, mock := newMockRepo(t)
	orgID := id.New()
	def := testDefinition(orgID)

	mock.ExpectQuery(exact(
		"SELECT id, organization_id, entity_type, key, label, description, "+
			"field_type, is_required, default_value, choices, validation, "+
			"is_indexed, is_deleted, created_by, created_at, updated_at "+
			"FROM custom_field_definitions "+
			"WHERE entity_type = $1 AND is_deleted = $2 AND organization_id = $3 "+
			"ORDER BY created_at DESC, id DESC")).
		WithArgs("lead", false, orgID.String()).
		WillReturnRows(pgxmock.NewRows(selectCols).AddRow(
			def.ID, def.OrganizationID, def.EntityType, def.Key, def.Label,
			def.Description, def.FieldType, def.IsRequired,
			[]byte(nil), []byte(`[{"label":"New","value":"new"}]`), []byte(`{"min":1}`),
			def.IsIndexed, def.IsDeleted, def.CreatedBy, def.CreatedAt, def.UpdatedAt,
		))

	defs, err := repo.GetActive(context.Background(), orgID, "lead")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, def.ID, defs[0].ID)
	assert.Equal(t, "budget", defs[0].Key)
	assert.Equal(t, customfield.ChoiceList{{Label: "New", Value: "new"}}, defs[0].Choices)
	require.NotNil(t, defs[0].Validation.Min)
	assert.Equal(t, 1.0, *defs[0].Validation.Min)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDefinitionRepoGetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	orgID, defID := id.New(), id.New()

	mock.ExpectQuery("^SELECT .+ FROM custom_field_definitions WHERE").
		WithArgs(defID.String(), false, orgID.String()).
		WillReturnRows(pgxmock.NewRows(selectCols))

	_, err := repo.GetByID(context.Background(), orgID, defID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestDefinitionRepoCountActive(t *testing.T) {
	repo, mock := newMockRepo(t)
	orgID := id.New()

	mock.ExpectQuery(exact(
		"SELECT COUNT(*) FROM custom_field_definitions " +
			"WHERE entity_type = $1 AND is_deleted = $2 AND organization_id = $3")).
		WithArgs("lead", false, orgID.String()).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountActive(context.Background(), orgID, "lead")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestDefinitionRepoExistsActiveKey(t *testing.T) {
	existsSQL := "SELECT 1 FROM custom_field_definitions " +
		"WHERE entity_type = $1 AND is_deleted = $2 AND key = $3 AND organization_id = $4 " +
		"LIMIT 1"

	t.Run("key exists", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		orgID := id.New()

		mock.ExpectQuery(exact(existsSQL)).
			WithArgs("lead", false, "budget", orgID.String()).
			WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

		exists, err := repo.ExistsActiveKey(context.Background(), orgID, "lead", "budget")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("key absent", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		orgID := id.New()

		mock.ExpectQuery(exact(existsSQL)).
			WithArgs("lead", false, "budget", orgID.String()).
			WillReturnError(pgx.ErrNoRows)

		exists, err := repo.ExistsActiveKey(context.Background(), orgID, "lead", "budget")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestDefinitionRepoLockAndNotify(t *testing.T) {
	repo, mock := newMockRepo(t)
	orgID := id.New()

	mock.ExpectExec(exact("SELECT pg_advisory_xact_lock(hashtextextended($1, 0))")).
		WithArgs("custom_field_definitions:" + orgID.String() + ":lead").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, repo.LockEntityType(context.Background(), orgID, "lead"))

	mock.ExpectExec(exact("SELECT pg_notify($1, $2)")).
		WithArgs("custom_fields_changed", orgID.String()+":lead").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, repo.NotifyChanged(context.Background(), orgID, "lead"))
	require.NoError(t, mock.ExpectationsWereMet())
}
