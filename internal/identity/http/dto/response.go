package dto

import (
	"encoding/base64"
	"time"

	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
)

// UserResponse represents a user in API responses.
type UserResponse struct {
	Address           string    `json:"address"`
	Role              string    `json:"role"`
	Name              string    `json:"name"`
	Email             string    `json:"email,omitempty"`
	IdentityPublicKey string    `json:"identity_public_key"`
	CreatedAt         time.Time `json:"created_at"`
	CreatedBy         string    `json:"created_by,omitempty"`
}

// ProfileResponse is a user together with their published keys.
type ProfileResponse struct {
	UserResponse
	BoxPublicKey     string `json:"box_public_key"`
	SigningPublicKey string `json:"signing_public_key"`
}

// ListUsersResponse represents a page of users.
type ListUsersResponse struct {
	Data []UserResponse `json:"data"`
}

// ListProfilesResponse represents a page of users with their published keys.
type ListProfilesResponse struct {
	Data []ProfileResponse `json:"data"`
}

// UserStatsResponse holds user counts keyed by role name.
type UserStatsResponse struct {
	Counts map[string]int64 `json:"counts"`
	Total  int64            `json:"total"`
}

// MapUserToResponse converts a domain user to an API response.
func MapUserToResponse(user *identityDomain.User) UserResponse {
	return UserResponse{
		Address:           user.Address,
		Role:              user.Role.String(),
		Name:              user.Name,
		Email:             user.Email,
		IdentityPublicKey: base64.StdEncoding.EncodeToString(user.IdentityPublicKey),
		CreatedAt:         user.CreatedAt,
		CreatedBy:         user.CreatedBy,
	}
}

// MapProfileToResponse converts a profile to an API response.
func MapProfileToResponse(profile *identityDomain.Profile) ProfileResponse {
	return ProfileResponse{
		UserResponse:     MapUserToResponse(profile.User),
		BoxPublicKey:     base64.StdEncoding.EncodeToString(profile.Keys.BoxPublicKey[:]),
		SigningPublicKey: base64.StdEncoding.EncodeToString(profile.Keys.SigningPublicKey),
	}
}

// MapUsersToListResponse converts users to a list response. Data is never null.
func MapUsersToListResponse(users []*identityDomain.User) ListUsersResponse {
	data := make([]UserResponse, 0, len(users))
	for _, user := range users {
		data = append(data, MapUserToResponse(user))
	}
	return ListUsersResponse{Data: data}
}

// MapProfilesToListResponse converts profiles to a list response. Data is never null.
func MapProfilesToListResponse(profiles []*identityDomain.Profile) ListProfilesResponse {
	data := make([]ProfileResponse, 0, len(profiles))
	for _, profile := range profiles {
		data = append(data, MapProfileToResponse(profile))
	}
	return ListProfilesResponse{Data: data}
}

// MapStatsToResponse converts per-role counts to an API response.
func MapStatsToResponse(counts map[identityDomain.Role]int64) UserStatsResponse {
	response := UserStatsResponse{Counts: make(map[string]int64, len(identityDomain.Roles))}
	for _, role := range identityDomain.Roles {
		response.Counts[role.String()] = counts[role]
		response.Total += counts[role]
	}
	return response
}
