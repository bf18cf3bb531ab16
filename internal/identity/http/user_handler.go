package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/recordvault/internal/errors"
	"github.com/allisson/recordvault/internal/httputil"
	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
	"github.com/allisson/recordvault/internal/identity/http/dto"
	identityUseCase "github.com/allisson/recordvault/internal/identity/usecase"
	customValidation "github.com/allisson/recordvault/internal/validation"
)

// UserHandler handles the user registry endpoints.
type UserHandler struct {
	userUseCase identityUseCase.UserUseCase
	logger      *slog.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(userUseCase identityUseCase.UserUseCase, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		userUseCase: userUseCase,
		logger:      logger,
	}
}

// RegisterHandler registers a user on behalf of the session user.
// POST /v1/users - Admins register grantees and admins, grantees register owners.
// Returns 201 Created with the profile, including the generated public keys.
func (h *UserHandler) RegisterHandler(c *gin.Context) {
	session, ok := GetSession(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	var req dto.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}
	input, err := req.ToInput()
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	profile, err := h.userUseCase.Register(c.Request.Context(), session, input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapProfileToResponse(profile))
}

// GetHandler returns a user's profile and published keys.
// GET /v1/users/:address
func (h *UserHandler) GetHandler(c *gin.Context) {
	profile, err := h.userUseCase.Get(c.Request.Context(), c.Param("address"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, dto.MapProfileToResponse(profile))
}

// ListHandler pages through users, optionally filtered by role.
// GET /v1/users?role=grantee&offset=0&limit=50 - Admin only.
func (h *UserHandler) ListHandler(c *gin.Context) {
	session, ok := GetSession(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	var role identityDomain.Role
	if name := c.Query("role"); name != "" {
		if role, err = identityDomain.ParseRole(name); err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}
	}

	users, err := h.userUseCase.List(c.Request.Context(), session, role, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapUsersToListResponse(users))
}

// StatsHandler returns user counts per role.
// GET /v1/users/stats - Admin only.
func (h *UserHandler) StatsHandler(c *gin.Context) {
	session, ok := GetSession(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	counts, err := h.userUseCase.Stats(c.Request.Context(), session)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapStatsToResponse(counts))
}

// UpdateHandler changes the session user's name and email.
// PUT /v1/users/:address - Only the user at address may update it.
func (h *UserHandler) UpdateHandler(c *gin.Context) {
	session, ok := GetSession(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}
	if c.Param("address") != session.Address() {
		httputil.HandleErrorGin(c, identityDomain.ErrForbiddenAction, h.logger)
		return
	}

	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	profile, err := h.userUseCase.Update(c.Request.Context(), session, req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapProfileToResponse(profile))
}

// GranteesHandler pages through grantees with their published keys.
// GET /v1/grantees?offset=0&limit=50 - Owners and admins.
func (h *UserHandler) GranteesHandler(c *gin.Context) {
	session, ok := GetSession(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	profiles, err := h.userUseCase.ListGrantees(c.Request.Context(), session, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapProfilesToListResponse(profiles))
}
