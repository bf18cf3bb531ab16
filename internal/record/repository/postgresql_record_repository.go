// Package repository persists record metadata in PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	"github.com/allisson/recordvault/internal/database"
	apperrors "github.com/allisson/recordvault/internal/errors"
	recordDomain "github.com/allisson/recordvault/internal/record/domain"
)

const recordColumns = `id, owner_id, filename, description, content_type, size_bytes, sha256, signature,
			  blob_ref, key_version, created_at, created_by, updated_at, last_updated_by`

// PostgreSQLRecordRepository implements record persistence for PostgreSQL.
type PostgreSQLRecordRepository struct {
	db *sql.DB
}

// NewPostgreSQLRecordRepository creates a new PostgreSQL record repository.
func NewPostgreSQLRecordRepository(db *sql.DB) *PostgreSQLRecordRepository {
	return &PostgreSQLRecordRepository{db: db}
}

func (p *PostgreSQLRecordRepository) Create(ctx context.Context, record *recordDomain.Record) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO records (` + recordColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := querier.ExecContext(
		ctx,
		query,
		record.ID,
		record.OwnerID,
		record.Filename,
		record.Description,
		record.ContentType,
		record.SizeBytes,
		record.SHA256[:],
		record.Signature,
		record.BlobRef,
		record.KeyVersion,
		record.CreatedAt,
		record.CreatedBy,
		record.UpdatedAt,
		record.LastUpdatedBy,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create record")
	}
	return nil
}

func (p *PostgreSQLRecordRepository) Get(ctx context.Context, id uuid.UUID) (*recordDomain.Record, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + recordColumns + ` FROM records WHERE id = $1`

	return scanRecord(querier.QueryRowContext(ctx, query, id))
}

func (p *PostgreSQLRecordRepository) ListByOwner(
	ctx context.Context,
	ownerID string,
	offset, limit int,
) ([]*recordDomain.Record, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + recordColumns + ` FROM records WHERE owner_id = $1
			  ORDER BY id ASC LIMIT $2 OFFSET $3`

	rows, err := querier.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list records")
	}
	return collectRecords(rows)
}

func (p *PostgreSQLRecordRepository) ListAllByOwner(
	ctx context.Context,
	ownerID string,
) ([]*recordDomain.Record, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + recordColumns + ` FROM records WHERE owner_id = $1 ORDER BY id ASC`

	rows, err := querier.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list records")
	}
	return collectRecords(rows)
}

// UpdateKeyEpoch moves a record to a new key epoch only if it is still at expectedVersion.
func (p *PostgreSQLRecordRepository) UpdateKeyEpoch(
	ctx context.Context,
	record *recordDomain.Record,
	expectedVersion uint64,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE records
			  SET blob_ref = $1, sha256 = $2, signature = $3, key_version = $4, updated_at = $5, last_updated_by = $6
			  WHERE id = $7 AND key_version = $8`

	result, err := querier.ExecContext(
		ctx,
		query,
		record.BlobRef,
		record.SHA256[:],
		record.Signature,
		record.KeyVersion,
		record.UpdatedAt,
		record.LastUpdatedBy,
		record.ID,
		expectedVersion,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update record key epoch")
	}
	return checkUpdated(result)
}

func (p *PostgreSQLRecordRepository) CountByOwnerAndVersion(
	ctx context.Context,
	ownerID string,
	version uint64,
) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	var count int64
	err := querier.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM records WHERE owner_id = $1 AND key_version = $2`,
		ownerID,
		version,
	).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count records")
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one row. uuid.UUID scans both the PostgreSQL text form and the MySQL
// BINARY(16) form.
func scanRecord(row rowScanner) (*recordDomain.Record, error) {
	var (
		record recordDomain.Record
		digest []byte
	)
	err := row.Scan(
		&record.ID,
		&record.OwnerID,
		&record.Filename,
		&record.Description,
		&record.ContentType,
		&record.SizeBytes,
		&digest,
		&record.Signature,
		&record.BlobRef,
		&record.KeyVersion,
		&record.CreatedAt,
		&record.CreatedBy,
		&record.UpdatedAt,
		&record.LastUpdatedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, recordDomain.ErrRecordNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get record")
	}
	if len(digest) != cryptoDomain.DigestSize {
		return nil, apperrors.Wrap(recordDomain.ErrTamperedContent, "stored digest has wrong length")
	}
	copy(record.SHA256[:], digest)
	return &record, nil
}

func collectRecords(rows *sql.Rows) ([]*recordDomain.Record, error) {
	defer func() {
		_ = rows.Close()
	}()

	records := make([]*recordDomain.Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate records")
	}
	return records, nil
}

func checkUpdated(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return recordDomain.ErrStaleRecord
	}
	return nil
}
