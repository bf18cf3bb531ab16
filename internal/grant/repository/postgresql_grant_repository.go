// Package repository persists access grants in PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/recordvault/internal/database"
	apperrors "github.com/allisson/recordvault/internal/errors"
	grantDomain "github.com/allisson/recordvault/internal/grant/domain"
)

const grantColumns = `owner_id, grantee_id, wrapped_key, key_version, created_at, updated_at`

// PostgreSQLGrantRepository stores grants in the access_grants table keyed by
// (owner_id, grantee_id).
type PostgreSQLGrantRepository struct {
	db *sql.DB
}

// NewPostgreSQLGrantRepository creates a new PostgreSQL grant repository.
func NewPostgreSQLGrantRepository(db *sql.DB) *PostgreSQLGrantRepository {
	return &PostgreSQLGrantRepository{db: db}
}

func (p *PostgreSQLGrantRepository) Get(
	ctx context.Context,
	ownerID, granteeID string,
) (*grantDomain.AccessGrant, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + grantColumns + ` FROM access_grants WHERE owner_id = $1 AND grantee_id = $2`

	grant, err := scanGrant(querier.QueryRowContext(ctx, query, ownerID, granteeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, grantDomain.ErrGrantNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get access grant")
	}
	return grant, nil
}

func (p *PostgreSQLGrantRepository) Upsert(ctx context.Context, grant *grantDomain.AccessGrant) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO access_grants (` + grantColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (owner_id, grantee_id) DO UPDATE SET
			  wrapped_key = EXCLUDED.wrapped_key, key_version = EXCLUDED.key_version, updated_at = EXCLUDED.updated_at
			  WHERE access_grants.key_version <= EXCLUDED.key_version`

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

func (p *PostgreSQLGrantRepository) Delete(ctx context.Context, ownerID, granteeID string) error {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(
		ctx,
		`DELETE FROM access_grants WHERE owner_id = $1 AND grantee_id = $2`,
		ownerID,
		granteeID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete access grant")
	}
	return checkDeleted(result)
}

func (p *PostgreSQLGrantRepository) ListByOwner(
	ctx context.Context,
	ownerID string,
) ([]*grantDomain.AccessGrant, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + grantColumns + ` FROM access_grants WHERE owner_id = $1 ORDER BY grantee_id ASC`

	rows, err := querier.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list access grants")
	}
	return collectGrants(rows)
}

func (p *PostgreSQLGrantRepository) ListByGrantee(
	ctx context.Context,
	granteeID string,
) ([]*grantDomain.AccessGrant, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + grantColumns + ` FROM access_grants WHERE grantee_id = $1 ORDER BY owner_id ASC`

	rows, err := querier.QueryContext(ctx, query, granteeID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list access grants")
	}
	return collectGrants(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrant(row rowScanner) (*grantDomain.AccessGrant, error) {
	var (
		grant   grantDomain.AccessGrant
		wrapped []byte
	)
	err := row.Scan(
		&grant.OwnerID,
		&grant.GranteeID,
		&wrapped,
		&grant.KeyVersion,
		&grant.CreatedAt,
		&grant.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	grant.WrappedKey = wrapped
	return &grant, nil
}

func collectGrants(rows *sql.Rows) ([]*grantDomain.AccessGrant, error) {
	defer func() {
		_ = rows.Close()
	}()

	grants := make([]*grantDomain.AccessGrant, 0)
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan access grant")
		}
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate access grants")
	}
	return grants, nil
}

func checkDeleted(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if n == 0 {
		return grantDomain.ErrGrantNotFound
	}
	return nil
}

// upsertResult reports a guarded upsert that matched nothing: the stored grant is at a
// newer key version and was left as is.
func upsertResult(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if n == 0 {
		return grantDomain.ErrGrantConflict
	}
	return nil
}
