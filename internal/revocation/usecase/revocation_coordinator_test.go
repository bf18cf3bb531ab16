package usecase

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"

	"github.com/allisson/recordvault/internal/blobstore"
	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	grantDomain "github.com/allisson/recordvault/internal/grant/domain"
	grantUsecase "github.com/allisson/recordvault/internal/grant/usecase"
	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
	"github.com/allisson/recordvault/internal/ledger"
	recordDomain "github.com/allisson/recordvault/internal/record/domain"
	recordService "github.com/allisson/recordvault/internal/record/service"
	recordUsecase "github.com/allisson/recordvault/internal/record/usecase"
	revocationDomain "github.com/allisson/recordvault/internal/revocation/domain"
	"github.com/allisson/recordvault/internal/testutil"
)

func TestMain(m *testing.M) {
	// Linked in by the cloud blob drivers; started from an init function.
	goleak.VerifyTestMain(m, goleak.IgnoreAnyFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// hookCommitter runs before ahead of the wrapped committer; a non-nil result is returned
// instead of committing.
type hookCommitter struct {
	next   Committer
	before func(ctx context.Context) error
}

func (h *hookCommitter) Commit(ctx context.Context, batch *ledger.Batch) error {
	if h.before != nil {
		if err := h.before(ctx); err != nil {
			return err
		}
	}
	return h.next.Commit(ctx, batch)
}

// failingBlobStore fails uploads after the first okUploads succeed.
type failingBlobStore struct {
	blobstore.BlobStore
	mu        sync.Mutex
	okUploads int
}

func (f *failingBlobStore) Upload(ctx context.Context, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.okUploads == 0 {
		return "", fmt.Errorf("%w: quota exceeded", blobstore.ErrBlobStore)
	}
	f.okUploads--
	return f.BlobStore.Upload(ctx, data)
}

type revocationFixture struct {
	t        *testing.T
	env      *testutil.Env
	bucket   *blob.Bucket
	blobs    blobstore.BlobStore
	pipeline recordUsecase.RecordPipeline
	registry grantUsecase.AccessGrantRegistry
	grants   grantUsecase.GrantUseCase
	ledger   *ledger.Ledger
	owner    *identityDomain.Session
}

func newRevocationFixture(t *testing.T) *revocationFixture {
	t.Helper()
	env := testutil.NewEnv(t)
	bucket := memblob.OpenBucket(nil)
	blobs := blobstore.NewBucketStore(bucket)
	t.Cleanup(func() {
		_ = blobs.Close()
	})

	registry := grantUsecase.NewAccessGrantRegistry(env.Store, env.Store.Grants())
	return &revocationFixture{
		t:      t,
		env:    env,
		bucket: bucket,
		blobs:  blobs,
		pipeline: recordUsecase.NewRecordPipeline(
			env.Store,
			env.Store.Records(),
			env.Store.Grants(),
			env.SecretKeys,
			env.KeyPairs,
			env.Cipher,
			env.Signatures,
			env.Wrapper,
			blobs,
			recordService.NewIntegrityVerifier(env.Signatures),
			recordUsecase.Config{},
			discardLogger(),
		),
		registry: registry,
		grants: grantUsecase.NewGrantUseCase(
			env.Store, registry, env.Store.Users(), env.SecretKeys, env.KeyPairs, env.Wrapper,
		),
		ledger: ledger.New(env.Store, env.SecretKeys, registry, env.Store.Records()),
		owner:  env.RegisterAndOpen(t, "0xowner", identityDomain.RoleOwner),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (f *revocationFixture) coordinator(committer Committer, blobs blobstore.BlobStore) RevocationCoordinator {
	if committer == nil {
		committer = f.ledger
	}
	if blobs == nil {
		blobs = f.blobs
	}
	return NewRevocationCoordinator(
		f.env.SecretKeys,
		f.env.KeyPairs,
		f.registry,
		f.env.Store.Records(),
		committer,
		f.env.Cipher,
		f.env.Signatures,
		f.env.Wrapper,
		blobs,
		recordService.NewIntegrityVerifier(f.env.Signatures),
		Config{Concurrency: 2},
		discardLogger(),
	)
}

func (f *revocationFixture) grantee(address string) (*identityDomain.Session, *grantDomain.AccessGrant) {
	f.t.Helper()
	session := f.env.RegisterAndOpen(f.t, address, identityDomain.RoleGrantee)
	grant, err := f.grants.Grant(context.Background(), f.owner, address)
	require.NoError(f.t, err)
	return session, grant
}

func (f *revocationFixture) upload(session *identityDomain.Session, content string) *recordDomain.Record {
	f.t.Helper()
	record, err := f.pipeline.Upload(context.Background(), session, recordUsecase.UploadInput{
		OwnerID:  f.owner.Address(),
		Filename: "report.pdf",
		Content:  []byte(content),
	})
	require.NoError(f.t, err)
	return record
}

func (f *revocationFixture) read(session *identityDomain.Session, record *recordDomain.Record) (string, error) {
	doc, err := f.pipeline.Read(context.Background(), session, record.ID)
	if err != nil {
		return "", err
	}
	return string(doc.Content), nil
}

func (f *revocationFixture) version() uint64 {
	f.t.Helper()
	v, err := f.env.SecretKeys.CurrentVersion(context.Background(), f.owner.Address())
	require.NoError(f.t, err)
	return v
}

func (f *revocationFixture) blobCount() int {
	f.t.Helper()
	ctx := context.Background()
	iter := f.bucket.List(nil)
	n := 0
	for {
		_, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			return n
		}
		require.NoError(f.t, err)
		n++
	}
}

func (f *revocationFixture) stored(record *recordDomain.Record) *recordDomain.Record {
	f.t.Helper()
	stored, err := f.env.Store.Records().Get(context.Background(), record.ID)
	require.NoError(f.t, err)
	return stored
}

func TestRevocationCoordinator_Revoke(t *testing.T) {
	ctx := context.Background()
	f := newRevocationFixture(t)
	revoked, revokedGrant := f.grantee("0xrevoked")
	kept, _ := f.grantee("0xkept")

	byOwner := f.upload(f.owner, "blood panel")
	byGrantee := f.upload(kept, "referral letter")
	byRevoked := f.upload(revoked, "consult notes")

	run, err := f.coordinator(nil, nil).Revoke(ctx, f.owner, revoked.Address())
	require.NoError(t, err)
	assert.Equal(t, revocationDomain.Done, run.State)
	assert.Equal(t, uint64(1), run.FromVersion)
	assert.Equal(t, uint64(2), run.ToVersion)
	assert.Equal(t, 3, run.Records)
	assert.Equal(t, 1, run.Grantees)
	assert.Equal(t, uint64(2), f.version())

	for _, r := range []*recordDomain.Record{byOwner, byGrantee, byRevoked} {
		stored := f.stored(r)
		assert.Equal(t, uint64(2), stored.KeyVersion)
		assert.NotEqual(t, r.BlobRef, stored.BlobRef)
		assert.Equal(t, r.SHA256, stored.SHA256)
		assert.Equal(t, f.owner.Address(), stored.LastUpdatedBy)
		assert.Equal(t, r.CreatedBy, stored.CreatedBy)

		_, err := f.blobs.Fetch(ctx, r.BlobRef)
		assert.ErrorIs(t, err, blobstore.ErrBlobNotFound, "old blob is unpinned")
	}
	assert.Equal(t, 3, f.blobCount())

	t.Run("owner and remaining grantee still read", func(t *testing.T) {
		content, err := f.read(f.owner, byRevoked)
		require.NoError(t, err)
		assert.Equal(t, "consult notes", content)

		content, err = f.read(kept, byOwner)
		require.NoError(t, err)
		assert.Equal(t, "blood panel", content)

		grant, err := f.registry.Get(ctx, f.owner.Address(), kept.Address())
		require.NoError(t, err)
		assert.Equal(t, uint64(2), grant.KeyVersion)
	})

	t.Run("revoked grantee is locked out", func(t *testing.T) {
		_, err := f.read(revoked, byOwner)
		assert.ErrorIs(t, err, grantDomain.ErrAccessDenied)

		_, err = f.pipeline.Upload(ctx, revoked, recordUsecase.UploadInput{
			OwnerID: f.owner.Address(), Filename: "late.txt", Content: []byte("late"),
		})
		assert.ErrorIs(t, err, grantDomain.ErrAccessDenied)
	})

	t.Run("old wrapped key does not open new blobs", func(t *testing.T) {
		oldKey, err := f.env.Wrapper.Unwrap(
			revokedGrant.WrappedKey, &revoked.Keys.BoxPublicKey, &revoked.Keys.BoxPrivateKey,
		)
		require.NoError(t, err)
		defer oldKey.Close()

		ciphertext, err := f.blobs.Fetch(ctx, f.stored(byOwner).BlobRef)
		require.NoError(t, err)
		_, err = f.env.Cipher.Decrypt(oldKey, ciphertext)
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)

		// Even forcing the header version, the old key cannot authenticate the new blob.
		forced := *oldKey
		forced.Material = append([]byte(nil), oldKey.Material...)
		forced.Version = 2
		defer forced.Close()
		_, err = f.env.Cipher.Decrypt(&forced, ciphertext)
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})

	t.Run("old versions are pruned", func(t *testing.T) {
		_, err := f.env.SecretKeys.Get(ctx, f.owner.Address(), 1)
		assert.ErrorIs(t, err, cryptoDomain.ErrSecretKeyNotFound)
	})
}

func TestRevocationCoordinator_NoRecords(t *testing.T) {
	ctx := context.Background()
	f := newRevocationFixture(t)
	revoked, _ := f.grantee("0xrevoked")
	kept, _ := f.grantee("0xkept")

	run, err := f.coordinator(nil, nil).Revoke(ctx, f.owner, revoked.Address())
	require.NoError(t, err)
	assert.Equal(t, revocationDomain.Done, run.State)
	assert.Zero(t, run.Records)

	grantees, err := f.registry.ListGrantees(ctx, f.owner.Address())
	require.NoError(t, err)
	assert.Equal(t, []string{kept.Address()}, grantees)

	record := f.upload(kept, "first visit")
	assert.Equal(t, uint64(2), record.KeyVersion)
}

func TestRevocationCoordinator_Preconditions(t *testing.T) {
	ctx := context.Background()
	f := newRevocationFixture(t)
	grantee, _ := f.grantee("0xgrantee")
	coordinator := f.coordinator(nil, nil)

	_, err := coordinator.Revoke(ctx, f.owner, "0xnobody")
	assert.ErrorIs(t, err, grantDomain.ErrGrantNotFound)

	_, err = coordinator.Revoke(ctx, grantee, grantee.Address())
	assert.ErrorIs(t, err, identityDomain.ErrForbiddenAction)

	_, err = coordinator.Revoke(ctx, nil, grantee.Address())
	assert.ErrorIs(t, err, identityDomain.ErrForbiddenAction)

	assert.Equal(t, uint64(1), f.version())
}

func TestRevocationCoordinator_CommitRejected(t *testing.T) {
	ctx := context.Background()
	f := newRevocationFixture(t)
	revoked, _ := f.grantee("0xrevoked")
	kept, _ := f.grantee("0xkept")
	records := []*recordDomain.Record{
		f.upload(f.owner, "mri"),
		f.upload(kept, "prescription"),
	}
	blobsBefore := f.blobCount()

	rejected := fmt.Errorf("%w: %w", ledger.ErrTransaction, cryptoDomain.ErrKeyVersionConflict)
	coordinator := f.coordinator(&hookCommitter{
		next:   f.ledger,
		before: func(context.Context) error { return rejected },
	}, nil)

	run, err := coordinator.Revoke(ctx, f.owner, revoked.Address())
	assert.ErrorIs(t, err, ledger.ErrTransaction)
	assert.Equal(t, revocationDomain.Failed, run.State)
	assert.ErrorIs(t, run.Err, ledger.ErrTransaction)

	assert.Equal(t, uint64(1), f.version())
	assert.Equal(t, blobsBefore, f.blobCount(), "re-encrypted blobs are unpinned")
	for _, r := range records {
		stored := f.stored(r)
		assert.Equal(t, uint64(1), stored.KeyVersion)
		assert.Equal(t, r.BlobRef, stored.BlobRef)
	}

	grant, err := f.registry.Get(ctx, f.owner.Address(), revoked.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), grant.KeyVersion)

	content, err := f.read(revoked, records[1])
	require.NoError(t, err)
	assert.Equal(t, "prescription", content)

	_, err = f.env.SecretKeys.Get(ctx, f.owner.Address(), 1)
	assert.NoError(t, err, "nothing is pruned after a failed run")
}

func TestRevocationCoordinator_UploadDuringRevocation(t *testing.T) {
	ctx := context.Background()
	f := newRevocationFixture(t)
	revoked, _ := f.grantee("0xrevoked")
	staged := f.upload(f.owner, "x-ray")

	var late *recordDomain.Record
	coordinator := f.coordinator(&hookCommitter{
		next: f.ledger,
		before: func(context.Context) error {
			late = f.upload(f.owner, "uploaded mid-revocation")
			return nil
		},
	}, nil)

	_, err := coordinator.Revoke(ctx, f.owner, revoked.Address())
	assert.ErrorIs(t, err, ledger.ErrTransaction)
	assert.ErrorIs(t, err, recordDomain.ErrStaleRecord)

	assert.Equal(t, uint64(1), f.version())
	assert.Equal(t, uint64(1), f.stored(staged).KeyVersion)
	require.NotNil(t, late)

	content, err := f.read(f.owner, late)
	require.NoError(t, err)
	assert.Equal(t, "uploaded mid-revocation", content)

	_, err = f.registry.Get(ctx, f.owner.Address(), revoked.Address())
	assert.NoError(t, err)
}

func TestRevocationCoordinator_AbortsOnTampering(t *testing.T) {
	ctx := context.Background()

	t.Run("corrupted blob", func(t *testing.T) {
		f := newRevocationFixture(t)
		revoked, _ := f.grantee("0xrevoked")
		record := f.upload(f.owner, "lab results")

		ciphertext, err := f.blobs.Fetch(ctx, record.BlobRef)
		require.NoError(t, err)
		ciphertext[len(ciphertext)-1] ^= 0xff
		require.NoError(t, f.bucket.WriteAll(ctx, record.BlobRef, ciphertext, nil))

		run, err := f.coordinator(nil, nil).Revoke(ctx, f.owner, revoked.Address())
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
		assert.Equal(t, revocationDomain.Failed, run.State)
		assert.Equal(t, uint64(1), f.version())
	})

	t.Run("blob header names another key version", func(t *testing.T) {
		f := newRevocationFixture(t)
		revoked, _ := f.grantee("0xrevoked")
		record := f.upload(f.owner, "lab results")

		ciphertext, err := f.blobs.Fetch(ctx, record.BlobRef)
		require.NoError(t, err)
		binary.BigEndian.PutUint64(ciphertext[2:10], 7)
		require.NoError(t, f.bucket.WriteAll(ctx, record.BlobRef, ciphertext, nil))

		_, err = f.coordinator(nil, nil).Revoke(ctx, f.owner, revoked.Address())
		assert.ErrorIs(t, err, recordDomain.ErrTamperedContent)
		assert.ErrorContains(t, err, "sealed under version 7, record at 1")
		assert.Equal(t, uint64(1), f.version())
		assert.Equal(t, 1, f.blobCount())
	})

	t.Run("blob without a header", func(t *testing.T) {
		f := newRevocationFixture(t)
		revoked, _ := f.grantee("0xrevoked")
		record := f.upload(f.owner, "lab results")

		require.NoError(t, f.bucket.WriteAll(ctx, record.BlobRef, []byte{0xff, 0x01}, nil))

		_, err := f.coordinator(nil, nil).Revoke(ctx, f.owner, revoked.Address())
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
		assert.Equal(t, uint64(1), f.version())
	})

	t.Run("forged signature", func(t *testing.T) {
		f := newRevocationFixture(t)
		revoked, _ := f.grantee("0xrevoked")
		record := f.upload(f.owner, "lab results")

		forged := *f.stored(record)
		forged.Signature = make([]byte, len(record.Signature))
		require.NoError(t, f.env.Store.Records().UpdateKeyEpoch(ctx, &forged, 1))

		_, err := f.coordinator(nil, nil).Revoke(ctx, f.owner, revoked.Address())
		assert.ErrorIs(t, err, recordDomain.ErrTamperedContent)
		assert.Equal(t, uint64(1), f.version())
		assert.Equal(t, 1, f.blobCount())
	})
}

func TestRevocationCoordinator_BlobStoreFailure(t *testing.T) {
	ctx := context.Background()
	f := newRevocationFixture(t)
	revoked, _ := f.grantee("0xrevoked")
	for _, content := range []string{"a", "b", "c", "d"} {
		f.upload(f.owner, content)
	}
	blobsBefore := f.blobCount()

	flaky := &failingBlobStore{BlobStore: f.blobs, okUploads: 2}
	run, err := f.coordinator(nil, flaky).Revoke(ctx, f.owner, revoked.Address())
	assert.ErrorIs(t, err, blobstore.ErrBlobStore)
	assert.Equal(t, revocationDomain.Failed, run.State)
	assert.Equal(t, uint64(1), f.version())
	assert.Equal(t, blobsBefore, f.blobCount())
}

func TestRevocationCoordinator_Cancelled(t *testing.T) {
	f := newRevocationFixture(t)
	revoked, _ := f.grantee("0xrevoked")
	record := f.upload(f.owner, "ecg")

	ctx, cancel := context.WithCancel(context.Background())
	coordinator := f.coordinator(&hookCommitter{
		next: f.ledger,
		before: func(context.Context) error {
			cancel()
			return nil
		},
	}, nil)

	_, err := coordinator.Revoke(ctx, f.owner, revoked.Address())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(1), f.version())
	assert.Equal(t, record.BlobRef, f.stored(record).BlobRef)
}

func TestRevocationCoordinator_ConcurrentRevocations(t *testing.T) {
	t.Run("same process", func(t *testing.T) {
		ctx := context.Background()
		f := newRevocationFixture(t)
		g1, _ := f.grantee("0xg1")
		g2, _ := f.grantee("0xg2")
		f.upload(f.owner, "chart")

		entered := make(chan struct{})
		release := make(chan struct{})
		coordinator := f.coordinator(&hookCommitter{
			next: f.ledger,
			before: func(context.Context) error {
				close(entered)
				<-release
				return nil
			},
		}, nil)

		var (
			wg       sync.WaitGroup
			firstErr error
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, firstErr = coordinator.Revoke(ctx, f.owner, g1.Address())
		}()

		<-entered
		_, err := coordinator.Revoke(ctx, f.owner, g2.Address())
		assert.ErrorIs(t, err, revocationDomain.ErrRevocationInProgress)
		assert.ErrorIs(t, err, cryptoDomain.ErrKeyVersionConflict)

		close(release)
		wg.Wait()
		require.NoError(t, firstErr)
		assert.Equal(t, uint64(2), f.version())

		grantees, err := f.registry.ListGrantees(ctx, f.owner.Address())
		require.NoError(t, err)
		assert.Equal(t, []string{g2.Address()}, grantees)
	})

	t.Run("separate coordinators", func(t *testing.T) {
		ctx := context.Background()
		f := newRevocationFixture(t)
		g1, _ := f.grantee("0xg1")
		g2, _ := f.grantee("0xg2")
		f.upload(f.owner, "chart")
		f.upload(f.owner, "imaging")

		entered := make(chan struct{})
		release := make(chan struct{})
		slow := f.coordinator(&hookCommitter{
			next: f.ledger,
			before: func(context.Context) error {
				close(entered)
				<-release
				return nil
			},
		}, nil)
		fast := f.coordinator(nil, nil)

		var (
			wg      sync.WaitGroup
			slowErr error
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, slowErr = slow.Revoke(ctx, f.owner, g1.Address())
		}()

		<-entered
		_, err := fast.Revoke(ctx, f.owner, g2.Address())
		require.NoError(t, err)

		close(release)
		wg.Wait()
		assert.ErrorIs(t, slowErr, ledger.ErrTransaction)
		assert.ErrorIs(t, slowErr, cryptoDomain.ErrKeyVersionConflict)
		assert.Equal(t, uint64(2), f.version(), "exactly one increment")
		assert.Equal(t, 2, f.blobCount())

		grantees, err := f.registry.ListGrantees(ctx, f.owner.Address())
		require.NoError(t, err)
		assert.Equal(t, []string{g1.Address()}, grantees)
	})
}
