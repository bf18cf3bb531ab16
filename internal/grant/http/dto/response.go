package dto

import (
	"time"

	grantDomain "github.com/allisson/recordvault/internal/grant/domain"
	revocationDomain "github.com/allisson/recordvault/internal/revocation/domain"
)

// GrantResponse represents an access grant. The wrapped key only opens with the grantee's
// private key.
type GrantResponse struct {
	OwnerID    string    `json:"owner_id"`
	GranteeID  string    `json:"grantee_id"`
	KeyVersion uint64    `json:"key_version"`
	WrappedKey []byte    `json:"wrapped_key"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ListGrantsResponse represents the owner's grants.
type ListGrantsResponse struct {
	Data []GrantResponse `json:"data"`
}

// ListOwnersResponse represents the owners that granted access to the caller.
type ListOwnersResponse struct {
	Data []string `json:"data"`
}

// RevocationResponse is the outcome of a completed revocation.
type RevocationResponse struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	GranteeID   string `json:"grantee_id"`
	State       string `json:"state"`
	FromVersion uint64 `json:"from_version"`
	ToVersion   uint64 `json:"to_version"`
	Records     int    `json:"records"`
	Grantees    int    `json:"remaining_grantees"`
	DurationMS  int64  `json:"duration_ms"`
}

// MapGrantToResponse converts a grant to an API response.
func MapGrantToResponse(grant *grantDomain.AccessGrant) GrantResponse {
	return GrantResponse{
		OwnerID:    grant.OwnerID,
		GranteeID:  grant.GranteeID,
		KeyVersion: grant.KeyVersion,
		WrappedKey: grant.WrappedKey,
		CreatedAt:  grant.CreatedAt,
		UpdatedAt:  grant.UpdatedAt,
	}
}

// MapGrantsToListResponse converts grants to a list response. Data is never null.
func MapGrantsToListResponse(grants []*grantDomain.AccessGrant) ListGrantsResponse {
	data := make([]GrantResponse, 0, len(grants))
	for _, grant := range grants {
		data = append(data, MapGrantToResponse(grant))
	}
	return ListGrantsResponse{Data: data}
}

// MapOwnersToListResponse wraps owner addresses. Data is never null.
func MapOwnersToListResponse(owners []string) ListOwnersResponse {
	if owners == nil {
		owners = []string{}
	}
	return ListOwnersResponse{Data: owners}
}

// MapRunToResponse converts a revocation run to an API response.
func MapRunToResponse(run revocationDomain.Run) RevocationResponse {
	return RevocationResponse{
		ID:          run.ID.String(),
		OwnerID:     run.OwnerID,
		GranteeID:   run.GranteeID,
		State:       run.State.String(),
		FromVersion: run.FromVersion,
		ToVersion:   run.ToVersion,
		Records:     run.Records,
		Grantees:    run.Grantees,
		DurationMS:  run.Duration().Milliseconds(),
	}
}
