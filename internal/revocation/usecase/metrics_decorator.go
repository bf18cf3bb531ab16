package usecase

import (
	"context"
	"time"

	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
	"github.com/allisson/recordvault/internal/metrics"
	revocationDomain "github.com/allisson/recordvault/internal/revocation/domain"
)

// revocationCoordinatorWithMetrics decorates RevocationCoordinator with metrics instrumentation.
type revocationCoordinatorWithMetrics struct {
	next    RevocationCoordinator
	metrics metrics.BusinessMetrics
}

// NewRevocationCoordinatorWithMetrics wraps a RevocationCoordinator with metrics recording.
func NewRevocationCoordinatorWithMetrics(
	coordinator RevocationCoordinator,
	m metrics.BusinessMetrics,
) RevocationCoordinator {
	return &revocationCoordinatorWithMetrics{
		next:    coordinator,
		metrics: m,
	}
}

// Revoke records metrics for full revocations.
func (r *revocationCoordinatorWithMetrics) Revoke(
	ctx context.Context,
	session *identityDomain.Session,
	granteeID string,
) (revocationDomain.Run, error) {
	start := time.Now()
	run, err := r.next.Revoke(ctx, session, granteeID)

	status := "success"
	if err != nil {
		status = "error"
	}
	r.metrics.RecordOperation(ctx, "revocation", "grant_revoke", status)
	r.metrics.RecordDuration(ctx, "revocation", "grant_revoke", time.Since(start), status)

	return run, err
}
