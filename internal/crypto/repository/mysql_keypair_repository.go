package repository

import (
	"context"
	"database/sql"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	"github.com/allisson/recordvault/internal/database"
	apperrors "github.com/allisson/recordvault/internal/errors"
)

// MySQLKeyPairRepository stores keypairs in the key_pairs table.
type MySQLKeyPairRepository struct {
	db *sql.DB
}

// NewMySQLKeyPairRepository creates a new MySQL keypair repository.
func NewMySQLKeyPairRepository(db *sql.DB) *MySQLKeyPairRepository {
	return &MySQLKeyPairRepository{db: db}
}

func (m *MySQLKeyPairRepository) Create(ctx context.Context, kp *cryptoDomain.KeyPair) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO key_pairs (address, box_public_key, signing_public_key, algorithm,
			  encrypted_private_keys, master_key_id, nonce, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		kp.Address,
		kp.BoxPublicKey[:],
		[]byte(kp.SigningPublicKey),
		kp.Algorithm,
		kp.EncryptedPrivateKeys,
		kp.MasterKeyID,
		kp.Nonce,
		kp.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return cryptoDomain.ErrKeyPairAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create keypair")
	}
	return nil
}

func (m *MySQLKeyPairRepository) Get(ctx context.Context, address string) (*cryptoDomain.KeyPair, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT address, box_public_key, signing_public_key, algorithm, encrypted_private_keys,
			  master_key_id, nonce, created_at FROM key_pairs WHERE address = ?`

	return scanKeyPair(querier.QueryRowContext(ctx, query, address))
}
