package domain

import (
	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	"github.com/allisson/recordvault/internal/errors"
)

var (
	// ErrRecordNotFound indicates the record does not exist.
	ErrRecordNotFound = errors.Wrap(errors.ErrNotFound, "record not found")

	// ErrTamperedContent indicates decrypted content did not match the registered digest
	// or signature. Content is never returned when this error occurs.
	ErrTamperedContent = errors.Wrap(errors.ErrIntegrity, "tampered content")

	// ErrEmptyContent indicates an upload without bytes.
	ErrEmptyContent = errors.Wrap(errors.ErrInvalidInput, "content is empty")

	// ErrContentTooLarge indicates an upload above the configured size limit.
	ErrContentTooLarge = errors.Wrap(errors.ErrInvalidInput, "content too large")

	// ErrStaleRecord indicates a record is no longer at the key version the caller expected.
	ErrStaleRecord = errors.Wrap(cryptoDomain.ErrKeyVersionConflict, "record key version changed")
)
