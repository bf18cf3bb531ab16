package repository

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"errors"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	"github.com/allisson/recordvault/internal/database"
	apperrors "github.com/allisson/recordvault/internal/errors"
)

// PostgreSQLKeyPairRepository stores keypairs in the key_pairs table. Only the public
// halves and the sealed private blob are persisted.
type PostgreSQLKeyPairRepository struct {
	db *sql.DB
}

// NewPostgreSQLKeyPairRepository creates a new PostgreSQL keypair repository.
func NewPostgreSQLKeyPairRepository(db *sql.DB) *PostgreSQLKeyPairRepository {
	return &PostgreSQLKeyPairRepository{db: db}
}

func (p *PostgreSQLKeyPairRepository) Create(ctx context.Context, kp *cryptoDomain.KeyPair) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO key_pairs (address, box_public_key, signing_public_key, algorithm,
			  encrypted_private_keys, master_key_id, nonce, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

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

func (p *PostgreSQLKeyPairRepository) Get(ctx context.Context, address string) (*cryptoDomain.KeyPair, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT address, box_public_key, signing_public_key, algorithm, encrypted_private_keys,
			  master_key_id, nonce, created_at FROM key_pairs WHERE address = $1`

	return scanKeyPair(querier.QueryRowContext(ctx, query, address))
}

func scanKeyPair(row *sql.Row) (*cryptoDomain.KeyPair, error) {
	var (
		kp         cryptoDomain.KeyPair
		boxPub     []byte
		signingPub []byte
	)
	err := row.Scan(
		&kp.Address,
		&boxPub,
		&signingPub,
		&kp.Algorithm,
		&kp.EncryptedPrivateKeys,
		&kp.MasterKeyID,
		&kp.Nonce,
		&kp.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cryptoDomain.ErrKeyPairNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get keypair")
	}
	if len(boxPub) != 32 || len(signingPub) != ed25519.PublicKeySize {
		return nil, cryptoDomain.ErrInvalidPublicKey
	}
	copy(kp.BoxPublicKey[:], boxPub)
	kp.SigningPublicKey = ed25519.PublicKey(signingPub)
	return &kp, nil
}
