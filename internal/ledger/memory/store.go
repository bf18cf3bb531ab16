// Package memory is an in-memory, transactional implementation of every repository the
// service needs. It backs the "memory" database driver and is the fake used by tests.
//
// Transactions are copy-on-write: WithTx clones the whole state, runs fn against the clone
// and publishes it only if fn succeeds. Published state is never mutated, so readers outside
// a transaction take no lock beyond loading the current snapshot.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	grantDomain "github.com/allisson/recordvault/internal/grant/domain"
	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
	recordDomain "github.com/allisson/recordvault/internal/record/domain"
)

type txKey struct{}

type grantKey struct {
	owner   string
	grantee string
}

type state struct {
	users      map[string]identityDomain.User
	keyPairs   map[string]cryptoDomain.KeyPair
	secretKeys map[string]map[uint64]cryptoDomain.SecretKey
	records    map[uuid.UUID]recordDomain.Record
	grants     map[grantKey]grantDomain.AccessGrant
}

func newState() *state {
	return &state{
		users:      make(map[string]identityDomain.User),
		keyPairs:   make(map[string]cryptoDomain.KeyPair),
		secretKeys: make(map[string]map[uint64]cryptoDomain.SecretKey),
		records:    make(map[uuid.UUID]recordDomain.Record),
		grants:     make(map[grantKey]grantDomain.AccessGrant),
	}
}

// clone copies the maps. Stored values are treated as immutable, so a shallow copy of
// each map is enough.
func (s *state) clone() *state {
	c := &state{
		users:      maps.Clone(s.users),
		keyPairs:   maps.Clone(s.keyPairs),
		secretKeys: make(map[string]map[uint64]cryptoDomain.SecretKey, len(s.secretKeys)),
		records:    maps.Clone(s.records),
		grants:     maps.Clone(s.grants),
	}
	for owner, versions := range s.secretKeys {
		c.secretKeys[owner] = maps.Clone(versions)
	}
	return c
}

// Store holds the published state and serializes writers.
type Store struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	current *state
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{current: newState()}
}

// WithTx implements database.TxManager. Nested calls join the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*state); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	draft := s.current.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, draft)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = draft
	s.mu.Unlock()
	return nil
}

// read returns the transaction's draft or the published snapshot.
func (s *Store) read(ctx context.Context) *state {
	if draft, ok := ctx.Value(txKey{}).(*state); ok {
		return draft
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// write runs fn against a draft, opening a transaction when ctx has none.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		return fn(ctx.Value(txKey{}).(*state))
	})
}

// PingContext reports readiness. The store is always reachable while ctx is live.
func (s *Store) PingContext(ctx context.Context) error {
	return ctx.Err()
}

// Users returns the user repository.
func (s *Store) Users() *UserRepository { return &UserRepository{store: s} }

// KeyPairs returns the keypair repository.
func (s *Store) KeyPairs() *KeyPairRepository { return &KeyPairRepository{store: s} }

// SecretKeys returns the secret key repository.
func (s *Store) SecretKeys() *SecretKeyRepository { return &SecretKeyRepository{store: s} }

// Records returns the record repository.
func (s *Store) Records() *RecordRepository { return &RecordRepository{store: s} }

// Grants returns the grant repository.
func (s *Store) Grants() *GrantRepository { return &GrantRepository{store: s} }
