package memory

import (
	"bytes"
	"context"
	"slices"

	"github.com/google/uuid"

	recordDomain "github.com/allisson/recordvault/internal/record/domain"
)

// RecordRepository stores record metadata.
type RecordRepository struct {
	store *Store
}

func cloneRecord(r recordDomain.Record) *recordDomain.Record {
	r.Signature = bytes.Clone(r.Signature)
	return &r
}

func (r *RecordRepository) Create(ctx context.Context, record *recordDomain.Record) error {
	return r.store.write(ctx, func(st *state) error {
		st.records[record.ID] = *cloneRecord(*record)
		return nil
	})
}

func (r *RecordRepository) Get(ctx context.Context, id uuid.UUID) (*recordDomain.Record, error) {
	record, ok := r.store.read(ctx).records[id]
	if !ok {
		return nil, recordDomain.ErrRecordNotFound
	}
	return cloneRecord(record), nil
}

func (r *RecordRepository) byOwner(ctx context.Context, ownerID string) []*recordDomain.Record {
	var records []*recordDomain.Record
	for _, record := range r.store.read(ctx).records {
		if record.OwnerID == ownerID {
			records = append(records, cloneRecord(record))
		}
	}
	slices.SortFunc(records, func(a, b *recordDomain.Record) int {
		return bytes.Compare(a.ID[:], b.ID[:])
	})
	return records
}

func (r *RecordRepository) ListByOwner(
	ctx context.Context,
	ownerID string,
	offset, limit int,
) ([]*recordDomain.Record, error) {
	return page(r.byOwner(ctx, ownerID), offset, limit), nil
}

func (r *RecordRepository) ListAllByOwner(ctx context.Context, ownerID string) ([]*recordDomain.Record, error) {
	return r.byOwner(ctx, ownerID), nil
}

func (r *RecordRepository) UpdateKeyEpoch(
	ctx context.Context,
	record *recordDomain.Record,
	expectedVersion uint64,
) error {
	return r.store.write(ctx, func(st *state) error {
		stored, ok := st.records[record.ID]
		if !ok || stored.KeyVersion != expectedVersion {
			return recordDomain.ErrStaleRecord
		}
		stored.BlobRef = record.BlobRef
		stored.SHA256 = record.SHA256
		stored.Signature = bytes.Clone(record.Signature)
		stored.KeyVersion = record.KeyVersion
		stored.UpdatedAt = record.UpdatedAt
		stored.LastUpdatedBy = record.LastUpdatedBy
		st.records[record.ID] = stored
		return nil
	})
}

func (r *RecordRepository) CountByOwnerAndVersion(
	ctx context.Context,
	ownerID string,
	version uint64,
) (int64, error) {
	var n int64
	for _, record := range r.store.read(ctx).records {
		if record.OwnerID == ownerID && record.KeyVersion == version {
			n++
		}
	}
	return n, nil
}
