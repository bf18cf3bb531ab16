package dto

import (
	"time"

	recordDomain "github.com/allisson/recordvault/internal/record/domain"
	recordUseCase "github.com/allisson/recordvault/internal/record/usecase"
)

// RecordResponse represents record metadata in API responses.
type RecordResponse struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Filename      string    `json:"filename"`
	Description   string    `json:"description,omitempty"`
	ContentType   string    `json:"content_type,omitempty"`
	SizeBytes     int64     `json:"size_bytes"`
	SHA256        string    `json:"sha256"`
	BlobRef       string    `json:"blob_ref"`
	KeyVersion    uint64    `json:"key_version"`
	CreatedAt     time.Time `json:"created_at"`
	CreatedBy     string    `json:"created_by"`
	UpdatedAt     time.Time `json:"updated_at"`
	LastUpdatedBy string    `json:"last_updated_by"`
}

// DocumentResponse is a verified record with its content.
// SECURITY: Content is plaintext and must be transmitted over HTTPS in production.
type DocumentResponse struct {
	RecordResponse
	Verification string `json:"verification"`
	Content      []byte `json:"content"`
}

// ListRecordsResponse represents a page of record metadata.
type ListRecordsResponse struct {
	Data []RecordResponse `json:"data"`
}

// MapRecordToResponse converts a record to an API response.
func MapRecordToResponse(record *recordDomain.Record) RecordResponse {
	return RecordResponse{
		ID:            record.ID.String(),
		OwnerID:       record.OwnerID,
		Filename:      record.Filename,
		Description:   record.Description,
		ContentType:   record.ContentType,
		SizeBytes:     record.SizeBytes,
		SHA256:        record.SHA256.Hex(),
		BlobRef:       record.BlobRef,
		KeyVersion:    record.KeyVersion,
		CreatedAt:     record.CreatedAt,
		CreatedBy:     record.CreatedBy,
		UpdatedAt:     record.UpdatedAt,
		LastUpdatedBy: record.LastUpdatedBy,
	}
}

// MapDocumentToResponse converts a verified document to an API response. The caller zeroes
// document.Content once the response is written.
func MapDocumentToResponse(document *recordUseCase.Document) DocumentResponse {
	return DocumentResponse{
		RecordResponse: MapRecordToResponse(document.Record),
		Verification:   recordDomain.Verified.String(),
		Content:        document.Content,
	}
}

// MapRecordsToListResponse converts records to a list response. Data is never null.
func MapRecordsToListResponse(records []*recordDomain.Record) ListRecordsResponse {
	data := make([]RecordResponse, 0, len(records))
	for _, record := range records {
		data = append(data, MapRecordToResponse(record))
	}
	return ListRecordsResponse{Data: data}
}
