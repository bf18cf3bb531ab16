package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/recordvault/internal/errors"
	grantDomain "github.com/allisson/recordvault/internal/grant/domain"
	grantUsecase "github.com/allisson/recordvault/internal/grant/usecase"
)

var (
	_ grantUsecase.GrantRepository = (*PostgreSQLGrantRepository)(nil)
	_ grantUsecase.GrantRepository = (*MySQLGrantRepository)(nil)
)

var grantColumnNames = []string{"owner_id", "grantee_id", "wrapped_key", "key_version", "created_at", "updated_at"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func testGrant(grantee string) *grantDomain.AccessGrant {
	now := time.Now().UTC()
	return &grantDomain.AccessGrant{
		OwnerID:    "0xowner",
		GranteeID:  grantee,
		WrappedKey: []byte("wrapped-" + grantee),
		KeyVersion: 2,
		CreatedAt:  now.Add(-time.Hour),
		UpdatedAt:  now,
	}
}

func grantRow(rows *sqlmock.Rows, g *grantDomain.AccessGrant) *sqlmock.Rows {
	return rows.AddRow(g.OwnerID, g.GranteeID, []byte(g.WrappedKey), g.KeyVersion, g.CreatedAt, g.UpdatedAt)
}

// repos returns both dialects over the same mock so each case runs against each.
func repos(db *sql.DB) map[string]grantUsecase.GrantRepository {
	return map[string]grantUsecase.GrantRepository{
		"postgresql": NewPostgreSQLGrantRepository(db),
		"mysql":      NewMySQLGrantRepository(db),
	}
}

func TestGrantRepository_Get(t *testing.T) {
	ctx := context.Background()
	grant := testGrant("0xgrantee")
	query := regexp.QuoteMeta(`FROM access_grants WHERE owner_id =`)

	for _, name := range []string{"postgresql", "mysql"} {
		t.Run(name+" found", func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectQuery(query).
				WithArgs(grant.OwnerID, grant.GranteeID).
				WillReturnRows(grantRow(sqlmock.NewRows(grantColumnNames), grant))

			got, err := repos(db)[name].Get(ctx, grant.OwnerID, grant.GranteeID)
			require.NoError(t, err)
			assert.Equal(t, grant, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})

		t.Run(name+" not found", func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectQuery(query).
				WithArgs(grant.OwnerID, grant.GranteeID).
				WillReturnRows(sqlmock.NewRows(grantColumnNames))

			_, err := repos(db)[name].Get(ctx, grant.OwnerID, grant.GranteeID)
			assert.ErrorIs(t, err, grantDomain.ErrGrantNotFound)
			assert.NoError(t, mock.ExpectationsWereMet())
		})

		t.Run(name+" database error", func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectQuery(query).
				WithArgs(grant.OwnerID, grant.GranteeID).
				WillReturnError(errors.New("connection reset"))

			_, err := repos(db)[name].Get(ctx, grant.OwnerID, grant.GranteeID)
			require.Error(t, err)
			assert.NotErrorIs(t, err, grantDomain.ErrGrantNotFound)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGrantRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	grant := testGrant("0xgrantee")

	tests := []struct {
		name     string
		conflict string
		guard    string
	}{
		{
			name:     "postgresql",
			conflict: `ON CONFLICT (owner_id, grantee_id) DO UPDATE SET`,
			guard:    `WHERE access_grants.key_version <= EXCLUDED.key_version`,
		},
		{
			name:     "mysql",
			conflict: `ON DUPLICATE KEY UPDATE`,
			guard:    `key_version = IF(key_version <= VALUES(key_version), VALUES(key_version), key_version)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectExec(regexp.QuoteMeta(tt.conflict)).
				WithArgs(
					grant.OwnerID, grant.GranteeID, []byte(grant.WrappedKey), grant.KeyVersion,
					grant.CreatedAt, grant.UpdatedAt,
				).
				WillReturnResult(sqlmock.NewResult(0, 1))

			require.NoError(t, repos(db)[tt.name].Upsert(ctx, grant))
			assert.NoError(t, mock.ExpectationsWereMet())
		})

		t.Run(tt.name+" newer stored version wins", func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectExec(regexp.QuoteMeta(tt.guard)).
				WillReturnResult(sqlmock.NewResult(0, 0))

			stale := testGrant("0xgrantee")
			stale.KeyVersion = 1
			err := repos(db)[tt.name].Upsert(ctx, stale)
			assert.ErrorIs(t, err, grantDomain.ErrGrantConflict)
			assert.ErrorIs(t, err, apperrors.ErrConflict)
			assert.NoError(t, mock.ExpectationsWereMet())
		})

		t.Run(tt.name+" rows affected error", func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectExec(regexp.QuoteMeta(tt.guard)).
				WillReturnResult(sqlmock.NewErrorResult(errors.New("driver gone")))

			err := repos(db)[tt.name].Upsert(ctx, grant)
			require.Error(t, err)
			assert.NotErrorIs(t, err, grantDomain.ErrGrantConflict)
			assert.NoError(t, mock.ExpectationsWereMet())
		})

		t.Run(tt.name+" error", func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO access_grants`)).
				WillReturnError(errors.New("disk full"))

			err := repos(db)[tt.name].Upsert(ctx, grant)
			assert.Error(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGrantRepository_Delete(t *testing.T) {
	ctx := context.Background()
	del := regexp.QuoteMeta(`DELETE FROM access_grants`)

	for _, name := range []string{"postgresql", "mysql"} {
		t.Run(name+" deleted", func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectExec(del).
				WithArgs("0xowner", "0xgrantee").
				WillReturnResult(sqlmock.NewResult(0, 1))

			require.NoError(t, repos(db)[name].Delete(ctx, "0xowner", "0xgrantee"))
			assert.NoError(t, mock.ExpectationsWereMet())
		})

		t.Run(name+" missing", func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectExec(del).
				WithArgs("0xowner", "0xgrantee").
				WillReturnResult(sqlmock.NewResult(0, 0))

			err := repos(db)[name].Delete(ctx, "0xowner", "0xgrantee")
			assert.ErrorIs(t, err, grantDomain.ErrGrantNotFound)
			assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGrantRepository_Lists(t *testing.T) {
	ctx := context.Background()
	g1, g2 := testGrant("0xg1"), testGrant("0xg2")

	for _, name := range []string{"postgresql", "mysql"} {
		t.Run(name+" by owner", func(t *testing.T) {
			db, mock := newMock(t)
			rows := sqlmock.NewRows(grantColumnNames)
			grantRow(rows, g1)
			grantRow(rows, g2)
			mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY grantee_id ASC`)).
				WithArgs("0xowner").
				WillReturnRows(rows)

			grants, err := repos(db)[name].ListByOwner(ctx, "0xowner")
			require.NoError(t, err)
			assert.Equal(t, []*grantDomain.AccessGrant{g1, g2}, grants)
			assert.NoError(t, mock.ExpectationsWereMet())
		})

		t.Run(name+" by grantee empty", func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY owner_id ASC`)).
				WithArgs("0xg1").
				WillReturnRows(sqlmock.NewRows(grantColumnNames))

			grants, err := repos(db)[name].ListByGrantee(ctx, "0xg1")
			require.NoError(t, err)
			assert.NotNil(t, grants)
			assert.Empty(t, grants)
			assert.NoError(t, mock.ExpectationsWereMet())
		})

		t.Run(name+" scan error", func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY owner_id ASC`)).
				WithArgs("0xg1").
				WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow("0xowner"))

			_, err := repos(db)[name].ListByGrantee(ctx, "0xg1")
			assert.Error(t, err)
		})
	}
}
