// Package dto provides data transfer objects for the grant endpoints.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/recordvault/internal/validation"
)

// CreateGrantRequest names the grantee to share the owner's key with.
type CreateGrantRequest struct {
	GranteeID string `json:"grantee_id"`
}

// Validate checks if the grant request is valid.
func (r *CreateGrantRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.GranteeID,
			validation.Required,
			customValidation.Address,
		),
	)
}
