// Package http provides HTTP handlers for granting and revoking access to an owner's
// records.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/recordvault/internal/errors"
	"github.com/allisson/recordvault/internal/grant/http/dto"
	grantUseCase "github.com/allisson/recordvault/internal/grant/usecase"
	"github.com/allisson/recordvault/internal/httputil"
	identityHTTP "github.com/allisson/recordvault/internal/identity/http"
	revocationUseCase "github.com/allisson/recordvault/internal/revocation/usecase"
	customValidation "github.com/allisson/recordvault/internal/validation"
)

// GrantHandler handles access grant requests. Revoking goes through the revocation
// coordinator, which rotates the owner's key.
type GrantHandler struct {
	grantUseCase grantUseCase.GrantUseCase
	coordinator  revocationUseCase.RevocationCoordinator
	logger       *slog.Logger
}

// NewGrantHandler creates a new grant handler.
func NewGrantHandler(
	grantUseCase grantUseCase.GrantUseCase,
	coordinator revocationUseCase.RevocationCoordinator,
	logger *slog.Logger,
) *GrantHandler {
	return &GrantHandler{
		grantUseCase: grantUseCase,
		coordinator:  coordinator,
		logger:       logger,
	}
}

// CreateHandler wraps the session owner's current key for a grantee.
// POST /v1/grants - Owner only. Returns 201 Created with the grant.
func (h *GrantHandler) CreateHandler(c *gin.Context) {
	session, ok := identityHTTP.GetSession(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	var req dto.CreateGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	grant, err := h.grantUseCase.Grant(c.Request.Context(), session, req.GranteeID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapGrantToResponse(grant))
}

// ListHandler lists the session owner's grants.
// GET /v1/grants - Owner only.
func (h *GrantHandler) ListHandler(c *gin.Context) {
	session, ok := identityHTTP.GetSession(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	grants, err := h.grantUseCase.List(c.Request.Context(), session)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapGrantsToListResponse(grants))
}

// ListOwnersHandler lists the owners that granted access to the session grantee.
// GET /v1/grants/owners - Grantee only.
func (h *GrantHandler) ListOwnersHandler(c *gin.Context) {
	session, ok := identityHTTP.GetSession(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	owners, err := h.grantUseCase.ListGrantedOwners(c.Request.Context(), session)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapOwnersToListResponse(owners))
}

// RevokeHandler revokes a grantee's access to all of the session owner's records.
// DELETE /v1/grants/:grantee - Owner only. Returns 200 OK with the completed run; the
// request blocks until every record is re-encrypted and the batch is committed.
func (h *GrantHandler) RevokeHandler(c *gin.Context) {
	session, ok := identityHTTP.GetSession(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	run, err := h.coordinator.Revoke(c.Request.Context(), session, c.Param("grantee"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRunToResponse(run))
}
