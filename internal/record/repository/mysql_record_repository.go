package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/recordvault/internal/database"
	apperrors "github.com/allisson/recordvault/internal/errors"
	recordDomain "github.com/allisson/recordvault/internal/record/domain"
)

// MySQLRecordRepository implements record persistence for MySQL. IDs are stored as
// BINARY(16).
type MySQLRecordRepository struct {
	db *sql.DB
}

// NewMySQLRecordRepository creates a new MySQL record repository.
func NewMySQLRecordRepository(db *sql.DB) *MySQLRecordRepository {
	return &MySQLRecordRepository{db: db}
}

func (m *MySQLRecordRepository) Create(ctx context.Context, record *recordDomain.Record) error {
	querier := database.GetTx(ctx, m.db)

	id, err := record.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal record id")
	}

	query := `INSERT INTO records (` + recordColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
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

func (m *MySQLRecordRepository) Get(ctx context.Context, id uuid.UUID) (*recordDomain.Record, error) {
	querier := database.GetTx(ctx, m.db)

	rawID, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal record id")
	}

	query := `SELECT ` + recordColumns + ` FROM records WHERE id = ?`

	return scanRecord(querier.QueryRowContext(ctx, query, rawID))
}

func (m *MySQLRecordRepository) ListByOwner(
	ctx context.Context,
	ownerID string,
	offset, limit int,
) ([]*recordDomain.Record, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + recordColumns + ` FROM records WHERE owner_id = ?
			  ORDER BY id ASC LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list records")
	}
	return collectRecords(rows)
}

func (m *MySQLRecordRepository) ListAllByOwner(
	ctx context.Context,
	ownerID string,
) ([]*recordDomain.Record, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + recordColumns + ` FROM records WHERE owner_id = ? ORDER BY id ASC`

	rows, err := querier.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list records")
	}
	return collectRecords(rows)
}

// UpdateKeyEpoch moves a record to a new key epoch only if it is still at expectedVersion.
// The key version always changes, so MySQL's changed-rows count is reliable here.
func (m *MySQLRecordRepository) UpdateKeyEpoch(
	ctx context.Context,
	record *recordDomain.Record,
	expectedVersion uint64,
) error {
	querier := database.GetTx(ctx, m.db)

	id, err := record.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal record id")
	}

	query := `UPDATE records
			  SET blob_ref = ?, sha256 = ?, signature = ?, key_version = ?, updated_at = ?, last_updated_by = ?
			  WHERE id = ? AND key_version = ?`

	result, err := querier.ExecContext(
		ctx,
		query,
		record.BlobRef,
		record.SHA256[:],
		record.Signature,
		record.KeyVersion,
		record.UpdatedAt,
		record.LastUpdatedBy,
		id,
		expectedVersion,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update record key epoch")
	}
	return checkUpdated(result)
}

func (m *MySQLRecordRepository) CountByOwnerAndVersion(
	ctx context.Context,
	ownerID string,
	version uint64,
) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	var count int64
	err := querier.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM records WHERE owner_id = ? AND key_version = ?`,
		ownerID,
		version,
	).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count records")
	}
	return count, nil
}
