package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
	"github.com/allisson/recordvault/internal/metrics"
	recordDomain "github.com/allisson/recordvault/internal/record/domain"
)

// recordPipelineWithMetrics decorates RecordPipeline with metrics instrumentation.
// Upload and read timings cover encryption and decryption end to end.
type recordPipelineWithMetrics struct {
	next    RecordPipeline
	metrics metrics.BusinessMetrics
}

// NewRecordPipelineWithMetrics wraps a RecordPipeline with metrics recording.
func NewRecordPipelineWithMetrics(pipeline RecordPipeline, m metrics.BusinessMetrics) RecordPipeline {
	return &recordPipelineWithMetrics{
		next:    pipeline,
		metrics: m,
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Upload records metrics for document uploads.
func (r *recordPipelineWithMetrics) Upload(
	ctx context.Context,
	session *identityDomain.Session,
	input UploadInput,
) (*recordDomain.Record, error) {
	start := time.Now()
	record, err := r.next.Upload(ctx, session, input)

	s := status(err)
	r.metrics.RecordOperation(ctx, "records", "record_upload", s)
	r.metrics.RecordDuration(ctx, "records", "record_upload", time.Since(start), s)
	if err == nil {
		r.metrics.RecordPayloadSize(ctx, "records", "record_upload", record.SizeBytes)
	}

	return record, err
}

// Read records metrics for verified document reads.
func (r *recordPipelineWithMetrics) Read(
	ctx context.Context,
	session *identityDomain.Session,
	id uuid.UUID,
) (*Document, error) {
	start := time.Now()
	doc, err := r.next.Read(ctx, session, id)

	s := status(err)
	r.metrics.RecordOperation(ctx, "records", "record_read", s)
	r.metrics.RecordDuration(ctx, "records", "record_read", time.Since(start), s)
	if err == nil {
		r.metrics.RecordPayloadSize(ctx, "records", "record_read", int64(len(doc.Content)))
	}

	return doc, err
}

// List records metrics for metadata listings.
func (r *recordPipelineWithMetrics) List(
	ctx context.Context,
	session *identityDomain.Session,
	ownerID string,
	offset, limit int,
) ([]*recordDomain.Record, error) {
	start := time.Now()
	records, err := r.next.List(ctx, session, ownerID, offset, limit)

	s := status(err)
	r.metrics.RecordOperation(ctx, "records", "record_list", s)
	r.metrics.RecordDuration(ctx, "records", "record_list", time.Since(start), s)

	return records, err
}
