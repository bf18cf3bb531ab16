package repository

import (
	"context"
	"database/sql"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	"github.com/allisson/recordvault/internal/database"
	apperrors "github.com/allisson/recordvault/internal/errors"
)

// MySQLSecretKeyRepository stores secret key versions in the secret_keys table.
type MySQLSecretKeyRepository struct {
	db *sql.DB
}

// NewMySQLSecretKeyRepository creates a new MySQL secret key repository.
func NewMySQLSecretKeyRepository(db *sql.DB) *MySQLSecretKeyRepository {
	return &MySQLSecretKeyRepository{db: db}
}

func (m *MySQLSecretKeyRepository) Create(ctx context.Context, key *cryptoDomain.SecretKey) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO secret_keys (owner_id, version, algorithm, encrypted_material, master_key_id, nonce, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

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

func (m *MySQLSecretKeyRepository) GetCurrent(
	ctx context.Context,
	ownerID string,
) (*cryptoDomain.SecretKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT owner_id, version, algorithm, encrypted_material, master_key_id, nonce, created_at
			  FROM secret_keys WHERE owner_id = ? ORDER BY version DESC LIMIT 1`
	// Inside a transaction the newest row is locked so concurrent Store calls queue.
	if database.InTx(ctx) {
		query += ` FOR UPDATE`
	}

	return scanSecretKey(querier.QueryRowContext(ctx, query, ownerID))
}

func (m *MySQLSecretKeyRepository) Get(
	ctx context.Context,
	ownerID string,
	version uint64,
) (*cryptoDomain.SecretKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT owner_id, version, algorithm, encrypted_material, master_key_id, nonce, created_at
			  FROM secret_keys WHERE owner_id = ? AND version = ?`

	return scanSecretKey(querier.QueryRowContext(ctx, query, ownerID, version))
}

func (m *MySQLSecretKeyRepository) DeleteBelow(
	ctx context.Context,
	ownerID string,
	version uint64,
) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	result, err := querier.ExecContext(
		ctx,
		`DELETE FROM secret_keys WHERE owner_id = ? AND version < ?`,
		ownerID,
		version,
	)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to prune secret keys")
	}
	return result.RowsAffected()
}
