package http

import (
	"encoding/base64"
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/recordvault/internal/errors"
	"github.com/allisson/recordvault/internal/httputil"
	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
	identityUseCase "github.com/allisson/recordvault/internal/identity/usecase"
)

// Identity proof headers.
const (
	HeaderAddress   = "X-Identity-Address"
	HeaderIssuedAt  = "X-Identity-Issued-At"
	HeaderSignature = "X-Identity-Signature"
)

// SessionMiddleware opens a session from the identity proof headers.
//
// The proof is the Ed25519 signature (standard base64) of the user's identity key over
// RequestProofMessage(address, issued_at, RequestScope(method, path)), with issued_at in
// unix seconds. A proof therefore opens a session for one route only. The session holds
// the caller's private keys in clear; it is closed once the handler chain returns.
//
// Error handling:
//   - Missing or malformed headers → 401 Unauthorized
//   - Unknown user, bad signature or expired proof → 401 Unauthorized
//   - Other errors → mapped by httputil.HandleErrorGin
func SessionMiddleware(sessions identityUseCase.SessionUseCase, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		proof, err := parseProof(c)
		if err != nil {
			logger.Debug("authentication failed: malformed identity proof", slog.Any("error", err))
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		session, err := sessions.Open(c.Request.Context(), proof)
		if err != nil {
			logger.Debug("authentication failed",
				slog.String("address", proof.Address),
				slog.String("error", err.Error()))
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}
		defer session.Close()

		c.Request = c.Request.WithContext(WithSession(c.Request.Context(), session))

		logger.Debug("authentication successful",
			slog.String("address", session.Address()),
			slog.String("role", session.Role().String()))

		c.Next()
	}
}

func parseProof(c *gin.Context) (identityDomain.Proof, error) {
	address := c.GetHeader(HeaderAddress)
	issuedAt := c.GetHeader(HeaderIssuedAt)
	signature := c.GetHeader(HeaderSignature)
	if address == "" || issuedAt == "" || signature == "" {
		return identityDomain.Proof{}, apperrors.Wrap(apperrors.ErrUnauthorized, "missing identity proof")
	}

	unix, err := strconv.ParseInt(issuedAt, 10, 64)
	if err != nil {
		return identityDomain.Proof{}, apperrors.Wrap(apperrors.ErrUnauthorized, "malformed proof timestamp")
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return identityDomain.Proof{}, apperrors.Wrap(apperrors.ErrUnauthorized, "malformed proof signature")
	}

	return identityDomain.Proof{
		Address:   address,
		IssuedAt:  time.Unix(unix, 0),
		Request:   identityDomain.RequestScope(c.Request.Method, c.Request.URL.Path),
		Signature: sig,
	}, nil
}
