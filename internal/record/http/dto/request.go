// Package dto provides data transfer objects for the record endpoints.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/recordvault/internal/validation"
)

// UploadRecordRequest contains a document to store. Content is base64 in JSON.
type UploadRecordRequest struct {
	Filename    string `json:"filename"`
	Description string `json:"description"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// Validate checks if the upload request is valid.
func (r *UploadRecordRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Filename,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 255),
		),
		validation.Field(&r.Description, validation.Length(0, 1024)),
		validation.Field(&r.ContentType, validation.Length(0, 255)),
		validation.Field(&r.Content, validation.Required),
	)
}
