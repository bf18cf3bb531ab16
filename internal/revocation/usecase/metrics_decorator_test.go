package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
	revocationDomain "github.com/allisson/recordvault/internal/revocation/domain"
)

type mockBusinessMetrics struct {
	mock.Mock
}

func (m *mockBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.Called(ctx, domain, operation, status)
}

func (m *mockBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, domain, operation, duration, status)
}

func (m *mockBusinessMetrics) RecordPayloadSize(ctx context.Context, domain, operation string, bytes int64) {
	m.Called(ctx, domain, operation, bytes)
}

type mockRevocationCoordinator struct {
	mock.Mock
}

func (m *mockRevocationCoordinator) Revoke(
	ctx context.Context,
	session *identityDomain.Session,
	granteeID string,
) (revocationDomain.Run, error) {
	args := m.Called(ctx, session, granteeID)
	return args.Get(0).(revocationDomain.Run), args.Error(1)
}

func TestRevocationCoordinatorWithMetrics_Revoke(t *testing.T) {
	ctx := context.Background()
	session := &identityDomain.Session{}

	tests := []struct {
		name   string
		err    error
		status string
	}{
		{name: "success", status: "success"},
		{name: "failure", err: revocationDomain.ErrRevocationInProgress, status: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &mockRevocationCoordinator{}
			m := &mockBusinessMetrics{}
			run := revocationDomain.Run{OwnerID: "0xowner", GranteeID: "0xgrantee", State: revocationDomain.Done}

			next.On("Revoke", ctx, session, "0xgrantee").Return(run, tt.err)
			m.On("RecordOperation", ctx, "revocation", "grant_revoke", tt.status).Once()
			m.On("RecordDuration", ctx, "revocation", "grant_revoke", mock.AnythingOfType("time.Duration"), tt.status).
				Once()

			got, err := NewRevocationCoordinatorWithMetrics(next, m).Revoke(ctx, session, "0xgrantee")
			assert.Equal(t, tt.err, err)
			assert.Equal(t, run, got)
			next.AssertExpectations(t)
			m.AssertExpectations(t)
			m.AssertNotCalled(t, "RecordPayloadSize", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}
