// Package repository persists sealed secret keys and keypairs in PostgreSQL and MySQL.
//
// Every method resolves its querier through database.GetTx, so the same repository works
// standalone and inside a TxManager transaction (a key store joining a revocation commit).
// Plaintext key material is never written: callers pass sealed keys.
package repository

import (
	"context"
	"database/sql"
	"errors"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	"github.com/allisson/recordvault/internal/database"
	apperrors "github.com/allisson/recordvault/internal/errors"
)

// PostgreSQLSecretKeyRepository stores secret key versions in the secret_keys table.
// The (owner_id, version) primary key is what makes a lost rotation race detectable.
type PostgreSQLSecretKeyRepository struct {
	db *sql.DB
}

// NewPostgreSQLSecretKeyRepository creates a new PostgreSQL secret key repository.
func NewPostgreSQLSecretKeyRepository(db *sql.DB) *PostgreSQLSecretKeyRepository {
	return &PostgreSQLSecretKeyRepository{db: db}
}

func (p *PostgreSQLSecretKeyRepository) Create(ctx context.Context, key *cryptoDomain.SecretKey) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO secret_keys (owner_id, version, algorithm, encrypted_material, master_key_id, nonce, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := querier.ExecContext(
		ctx,
		query,
		key.OwnerID,
		key.Version,
		key.Algorithm,
		key.EncryptedMaterial,
		key.MasterKeyID,
		key.Nonce,
		key.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return cryptoDomain.ErrKeyVersionConflict
		}
		return apperrors.Wrap(err, "failed to create secret key")
	}
	return nil
}

func (p *PostgreSQLSecretKeyRepository) GetCurrent(
	ctx context.Context,
	ownerID string,
) (*cryptoDomain.SecretKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT owner_id, version, algorithm, encrypted_material, master_key_id, nonce, created_at
			  FROM secret_keys WHERE owner_id = $1 ORDER BY version DESC LIMIT 1`

	if database.InTx(ctx) {
		// Lock the newest row so a concurrent Store or record insert queues behind this
		// transaction. Under READ COMMITTED the locking read may return the row it waited
		// on even after a newer version committed, so the current version is read again by
		// a fresh statement once the lock is held.
		var locked uint64
		err := querier.QueryRowContext(
			ctx,
			`SELECT version FROM secret_keys WHERE owner_id = $1 ORDER BY version DESC LIMIT 1 FOR UPDATE`,
			ownerID,
		).Scan(&locked)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Wrap(err, "failed to lock secret key")
		}
	}

	return scanSecretKey(querier.QueryRowContext(ctx, query, ownerID))
}

func (p *PostgreSQLSecretKeyRepository) Get(
	ctx context.Context,
	ownerID string,
	version uint64,
) (*cryptoDomain.SecretKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT owner_id, version, algorithm, encrypted_material, master_key_id, nonce, created_at
			  FROM secret_keys WHERE owner_id = $1 AND version = $2`

	return scanSecretKey(querier.QueryRowContext(ctx, query, ownerID, version))
}

func (p *PostgreSQLSecretKeyRepository) DeleteBelow(
	ctx context.Context,
	ownerID string,
	version uint64,
) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(
		ctx,
		`DELETE FROM secret_keys WHERE owner_id = $1 AND version < $2`,
		ownerID,
		version,
	)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to prune secret keys")
	}
	return result.RowsAffected()
}

func scanSecretKey(row *sql.Row) (*cryptoDomain.SecretKey, error) {
	var key cryptoDomain.SecretKey
	err := row.Scan(
		&key.OwnerID,
		&key.Version,
		&key.Algorithm,
		&key.EncryptedMaterial,
		&key.MasterKeyID,
		&key.Nonce,
		&key.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cryptoDomain.ErrSecretKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get secret key")
	}
	return &key, nil
}
