// Package http provides HTTP handlers for uploading, reading and listing records.
package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	apperrors "github.com/allisson/recordvault/internal/errors"
	"github.com/allisson/recordvault/internal/httputil"
	identityHTTP "github.com/allisson/recordvault/internal/identity/http"
	"github.com/allisson/recordvault/internal/record/http/dto"
	recordUseCase "github.com/allisson/recordvault/internal/record/usecase"
	customValidation "github.com/allisson/recordvault/internal/validation"
)

// bodyOverhead covers the JSON envelope and metadata around the base64 content.
const bodyOverhead = 64 << 10

// RecordHandler handles record requests on behalf of the session user.
type RecordHandler struct {
	pipeline     recordUseCase.RecordPipeline
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewRecordHandler creates a new record handler. maxUploadSize bounds the decoded content;
// zero disables the request body limit.
func NewRecordHandler(
	pipeline recordUseCase.RecordPipeline,
	maxUploadSize int64,
	logger *slog.Logger,
) *RecordHandler {
	var maxBodyBytes int64
	if maxUploadSize > 0 {
		maxBodyBytes = (maxUploadSize+2)/3*4 + bodyOverhead
	}
	return &RecordHandler{
		pipeline:     pipeline,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// UploadHandler encrypts and stores a document in an owner's file.
// POST /v1/owners/:owner/records - Owners upload to their own file, grantees through a
// valid grant. Returns 201 Created with the record metadata.
func (h *RecordHandler) UploadHandler(c *gin.Context) {
	session, ok := identityHTTP.GetSession(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	if h.maxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	}

	var req dto.UploadRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, httputil.ErrorResponse{
				Error:   "payload_too_large",
				Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	defer cryptoDomain.Zero(req.Content)

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	record, err := h.pipeline.Upload(c.Request.Context(), session, recordUseCase.UploadInput{
		OwnerID:     c.Param("owner"),
		Filename:    req.Filename,
		Description: req.Description,
		ContentType: req.ContentType,
		Content:     req.Content,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapRecordToResponse(record))
}

// GetHandler fetches, decrypts and verifies a record.
// GET /v1/records/:id - Returns 200 OK with the content, or 422 when verification fails.
func (h *RecordHandler) GetHandler(c *gin.Context) {
	session, ok := identityHTTP.GetSession(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid record id: %w", err), h.logger)
		return
	}

	document, err := h.pipeline.Read(c.Request.Context(), session, id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	defer cryptoDomain.Zero(document.Content)

	c.JSON(http.StatusOK, dto.MapDocumentToResponse(document))
}

// ListHandler lists the metadata of an owner's records.
// GET /v1/owners/:owner/records?offset=0&limit=50
func (h *RecordHandler) ListHandler(c *gin.Context) {
	session, ok := identityHTTP.GetSession(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	records, err := h.pipeline.List(c.Request.Context(), session, c.Param("owner"), offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRecordsToListResponse(records))
}
