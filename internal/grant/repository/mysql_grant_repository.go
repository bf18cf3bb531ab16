package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/recordvault/internal/database"
	apperrors "github.com/allisson/recordvault/internal/errors"
	grantDomain "github.com/allisson/recordvault/internal/grant/domain"
)

// MySQLGrantRepository stores grants in the access_grants table.
type MySQLGrantRepository struct {
	db *sql.DB
}

// NewMySQLGrantRepository creates a new MySQL grant repository.
func NewMySQLGrantRepository(db *sql.DB) *MySQLGrantRepository {
	return &MySQLGrantRepository{db: db}
}

func (m *MySQLGrantRepository) Get(
	ctx context.Context,
	ownerID, granteeID string,
) (*grantDomain.AccessGrant, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + grantColumns + ` FROM access_grants WHERE owner_id = ? AND grantee_id = ?`

	grant, err := scanGrant(querier.QueryRowContext(ctx, query, ownerID, granteeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, grantDomain.ErrGrantNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get access grant")
	}
	return grant, nil
}

func (m *MySQLGrantRepository) Upsert(ctx context.Context, grant *grantDomain.AccessGrant) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO access_grants (` + grantColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE
			  wrapped_key = IF(key_version <= VALUES(key_version), VALUES(wrapped_key), wrapped_key),
			  updated_at = IF(key_version <= VALUES(key_version), VALUES(updated_at), updated_at),
			  key_version = IF(key_version <= VALUES(key_version), VALUES(key_version), key_version)`

	result, err := querier.ExecContext(
		ctx,
		query,
		grant.OwnerID,
		grant.GranteeID,
		[]byte(grant.WrappedKey),
		grant.KeyVersion,
		grant.CreatedAt,
		grant.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert access grant")
	}
	return upsertResult(result)
}

func (m *MySQLGrantRepository) Delete(ctx context.Context, ownerID, granteeID string) error {
	querier := database.GetTx(ctx, m.db)

	result, err := querier.ExecContext(
		ctx,
		`DELETE FROM access_grants WHERE owner_id = ? AND grantee_id = ?`,
		ownerID,
		granteeID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete access grant")
	}
	return checkDeleted(result)
}

func (m *MySQLGrantRepository) ListByOwner(
	ctx context.Context,
	ownerID string,
) ([]*grantDomain.AccessGrant, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + grantColumns + ` FROM access_grants WHERE owner_id = ? ORDER BY grantee_id ASC`

	rows, err := querier.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list access grants")
	}
	return collectGrants(rows)
}

func (m *MySQLGrantRepository) ListByGrantee(
	ctx context.Context,
	granteeID string,
) ([]*grantDomain.AccessGrant, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + grantColumns + ` FROM access_grants WHERE grantee_id = ? ORDER BY owner_id ASC`

	rows, err := querier.QueryContext(ctx, query, granteeID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list access grants")
	}
	return collectGrants(rows)
}
