// Package blobstore stores encrypted document blobs by content address.
//
// A blob's address is "sha256-" followed by the hex SHA-256 of the ciphertext, so uploading
// the same bytes twice yields the same address and is idempotent. Stores never interpret
// the bytes; integrity of what comes back is checked by the cipher and the record's
// signature, not here.
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/allisson/recordvault/internal/errors"
)

// AddressPrefix prefixes every content address.
const AddressPrefix = "sha256-"

var (
	// ErrBlobStore is the BlobStoreError of the taxonomy: an upload, fetch or unpin failed.
	ErrBlobStore = errors.Wrap(errors.ErrUnavailable, "blob store failure")

	// ErrBlobNotFound indicates no blob exists at the address.
	ErrBlobNotFound = errors.Wrap(ErrBlobStore, "blob not found")

	// ErrInvalidAddress indicates a malformed content address.
	ErrInvalidAddress = errors.Wrap(errors.ErrInvalidInput, "invalid content address")
)

// BlobStore is a content-addressed store of ciphertext.
type BlobStore interface {
	// Upload stores data and returns its content address.
	Upload(ctx context.Context, data []byte) (string, error)

	// Fetch returns the bytes stored at address.
	Fetch(ctx context.Context, address string) ([]byte, error)

	// Unpin releases the blob. Unpinning a missing blob is not an error.
	Unpin(ctx context.Context, address string) error

	// Close releases the underlying client.
	Close() error
}

// Address returns the content address of data.
func Address(data []byte) string {
	sum := sha256.Sum256(data)
	return AddressPrefix + hex.EncodeToString(sum[:])
}

// ValidateAddress checks the shape of a content address.
func ValidateAddress(address string) error {
	digest, ok := strings.CutPrefix(address, AddressPrefix)
	if !ok || len(digest) != 2*sha256.Size {
		return ErrInvalidAddress
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return ErrInvalidAddress
	}
	return nil
}

// storeError joins ErrBlobStore with the backend failure.
func storeError(op, address string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrBlobStore, op, address, err)
}
