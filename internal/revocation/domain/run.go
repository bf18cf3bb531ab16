// Package domain holds the revocation run state machine.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is a stage of a revocation run.
type State uint8

const (
	Idle State = iota
	KeyRotated
	RecordsReencrypting
	Committing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case KeyRotated:
		return "key_rotated"
	case RecordsReencrypting:
		return "records_reencrypting"
	case Committing:
		return "committing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}

// canTransition lists the allowed edges. Failed is reachable from every non-Idle,
// non-terminal state.
func canTransition(from, to State) bool {
	switch from {
	case Idle:
		return to == KeyRotated
	case KeyRotated:
		return to == RecordsReencrypting || to == Committing || to == Failed
	case RecordsReencrypting:
		return to == Committing || to == Failed
	case Committing:
		return to == Done || to == Failed
	case Done, Failed:
		return false
	default:
		return false
	}
}

// Run is an immutable snapshot of one revocation. Each stage receives a snapshot and
// returns the next one; nothing is mutated in place.
type Run struct {
	ID          uuid.UUID
	OwnerID     string
	GranteeID   string
	State       State
	FromVersion uint64
	ToVersion   uint64
	Records     int
	Grantees    int
	StartedAt   time.Time
	UpdatedAt   time.Time
	Err         error
}

// NewRun creates an Idle run.
func NewRun(ownerID, granteeID string, now time.Time) Run {
	return Run{
		ID:        uuid.Must(uuid.NewV7()),
		OwnerID:   ownerID,
		GranteeID: granteeID,
		State:     Idle,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// To returns the run moved to state next.
func (r Run) To(next State, now time.Time) (Run, error) {
	if !canTransition(r.State, next) {
		return r, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.State, next)
	}
	r.State = next
	r.UpdatedAt = now
	return r, nil
}

// Fail returns the run moved to Failed with cause recorded. Failing an Idle or
// terminal run is an invalid transition.
func (r Run) Fail(cause error, now time.Time) (Run, error) {
	next, err := r.To(Failed, now)
	if err != nil {
		return r, err
	}
	next.Err = cause
	return next, nil
}

// Duration is the elapsed time between start and the last transition.
func (r Run) Duration() time.Duration {
	return r.UpdatedAt.Sub(r.StartedAt)
}
