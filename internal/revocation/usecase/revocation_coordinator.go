package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/allisson/recordvault/internal/blobstore"
	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	cryptoService "github.com/allisson/recordvault/internal/crypto/service"
	cryptoUseCase "github.com/allisson/recordvault/internal/crypto/usecase"
	grantDomain "github.com/allisson/recordvault/internal/grant/domain"
	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
	"github.com/allisson/recordvault/internal/ledger"
	recordDomain "github.com/allisson/recordvault/internal/record/domain"
	revocationDomain "github.com/allisson/recordvault/internal/revocation/domain"
)

// DefaultConcurrency bounds re-encryption and re-wrapping fan-out when Config leaves it unset.
const DefaultConcurrency = 4

// Config tunes the coordinator.
type Config struct {
	// Concurrency bounds how many records are re-encrypted (and grants re-wrapped) at once.
	Concurrency int
}

type revocationCoordinator struct {
	secretKeys cryptoUseCase.SecretKeyManager
	keyPairs   cryptoUseCase.KeyPairStore
	grants     GrantReader
	records    RecordLister
	ledger     Committer
	cipher     cryptoService.CipherEngine
	signatures cryptoService.SignatureEngine
	wrapper    cryptoService.KeyWrapper
	blobs      blobstore.BlobStore
	verifier   IntegrityVerifier
	config     Config
	logger     *slog.Logger

	inFlight sync.Map
	now      func() time.Time
}

// NewRevocationCoordinator creates a RevocationCoordinator.
func NewRevocationCoordinator(
	secretKeys cryptoUseCase.SecretKeyManager,
	keyPairs cryptoUseCase.KeyPairStore,
	grants GrantReader,
	records RecordLister,
	committer Committer,
	cipher cryptoService.CipherEngine,
	signatures cryptoService.SignatureEngine,
	wrapper cryptoService.KeyWrapper,
	blobs blobstore.BlobStore,
	verifier IntegrityVerifier,
	config Config,
	logger *slog.Logger,
) RevocationCoordinator {
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	return &revocationCoordinator{
		secretKeys: secretKeys,
		keyPairs:   keyPairs,
		grants:     grants,
		records:    records,
		ledger:     committer,
		cipher:     cipher,
		signatures: signatures,
		wrapper:    wrapper,
		blobs:      blobs,
		verifier:   verifier,
		config:     config,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (c *revocationCoordinator) Revoke(
	ctx context.Context,
	session *identityDomain.Session,
	granteeID string,
) (revocationDomain.Run, error) {
	if _, err := identityDomain.Authorize(
		session.Principal(),
		identityDomain.ActionRevokeAccess,
		session.Address(),
	); err != nil {
		return revocationDomain.Run{}, err
	}
	ownerID := session.Address()

	if _, err := c.grants.Get(ctx, ownerID, granteeID); err != nil {
		return revocationDomain.Run{}, err
	}

	if _, running := c.inFlight.LoadOrStore(ownerID, struct{}{}); running {
		return revocationDomain.Run{}, revocationDomain.ErrRevocationInProgress
	}
	defer c.inFlight.Delete(ownerID)

	run := revocationDomain.NewRun(ownerID, granteeID, c.now())
	c.logger.Info("revocation started",
		slog.String("run_id", run.ID.String()),
		slog.String("owner_id", ownerID),
		slog.String("grantee_id", granteeID),
	)

	run, err := c.execute(ctx, session, run)
	if err != nil {
		return c.fail(run, err)
	}

	c.logger.Info("revocation completed",
		slog.String("run_id", run.ID.String()),
		slog.String("owner_id", ownerID),
		slog.String("grantee_id", granteeID),
		slog.Uint64("key_version", run.ToVersion),
		slog.Int("records", run.Records),
		slog.Int("grantees", run.Grantees),
		slog.Duration("duration", run.Duration()),
	)
	return run, nil
}

// fail moves run to Failed. A run that never left Idle is returned as is.
func (c *revocationCoordinator) fail(run revocationDomain.Run, cause error) (revocationDomain.Run, error) {
	if failed, err := run.Fail(cause, c.now()); err == nil {
		run = failed
	}
	c.logger.Error("revocation failed",
		slog.String("run_id", run.ID.String()),
		slog.String("owner_id", run.OwnerID),
		slog.String("grantee_id", run.GranteeID),
		slog.String("state", run.State.String()),
		slog.Any("error", cause),
	)
	return run, cause
}

// execute walks the run through every stage. The returned run is the last snapshot reached.
func (c *revocationCoordinator) execute(
	ctx context.Context,
	session *identityDomain.Session,
	run revocationDomain.Run,
) (revocationDomain.Run, error) {
	next, err := c.secretKeys.Next(ctx, run.OwnerID)
	if err != nil {
		return run, err
	}
	defer next.Close()

	current, err := c.secretKeys.Get(ctx, run.OwnerID, next.Version-1)
	if err != nil {
		return run, err
	}
	defer current.Close()

	run.FromVersion, run.ToVersion = current.Version, next.Version
	if run, err = run.To(revocationDomain.KeyRotated, c.now()); err != nil {
		return run, err
	}

	records, err := c.records.ListAllByOwner(ctx, run.OwnerID)
	if err != nil {
		return run, err
	}
	run.Records = len(records)

	var reencrypted []*recordDomain.Record
	if len(records) > 0 {
		if run, err = run.To(revocationDomain.RecordsReencrypting, c.now()); err != nil {
			return run, err
		}
		reencrypted, err = c.reencrypt(ctx, session, records, current, next)
		if err != nil {
			return run, err
		}
	}

	if run, err = run.To(revocationDomain.Committing, c.now()); err != nil {
		c.unpinAll(ctx, run, blobRefs(reencrypted))
		return run, err
	}

	batch, err := c.stage(ctx, run, next, reencrypted)
	if err == nil {
		run.Grantees = len(batch.Grants)
		err = c.ledger.Commit(ctx, batch)
	}
	if err != nil {
		c.unpinAll(ctx, run, blobRefs(reencrypted))
		return run, err
	}

	if run, err = run.To(revocationDomain.Done, c.now()); err != nil {
		return run, err
	}

	c.unpinAll(ctx, run, blobRefs(records))
	if pruned, err := c.secretKeys.Prune(context.WithoutCancel(ctx), run.OwnerID, next.Version); err != nil {
		c.logger.Warn("failed to prune secret key versions",
			slog.String("run_id", run.ID.String()),
			slog.String("owner_id", run.OwnerID),
			slog.Any("error", err),
		)
	} else {
		c.logger.Debug("pruned secret key versions",
			slog.String("owner_id", run.OwnerID),
			slog.Int64("pruned", pruned),
		)
	}
	return run, nil
}

// reencrypt moves every record from current to next. Each record must still be at the
// current version and pass its integrity check before it is re-signed by the owner.
// On failure every blob uploaded so far is unpinned.
func (c *revocationCoordinator) reencrypt(
	ctx context.Context,
	session *identityDomain.Session,
	records []*recordDomain.Record,
	current, next *cryptoDomain.SecretKey,
) ([]*recordDomain.Record, error) {
	out := make([]*recordDomain.Record, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Concurrency)
	for i, record := range records {
		g.Go(func() error {
			updated, err := c.reencryptOne(gctx, session, record, current, next)
			if err != nil {
				return fmt.Errorf("record %s: %w", record.ID, err)
			}
			out[i] = updated
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if failed := c.unpinBlobs(ctx, blobRefs(out)); failed > 0 {
			c.logger.Warn("failed to unpin re-encrypted blobs", slog.Int("failed", failed))
		}
		return nil, err
	}
	return out, nil
}

func (c *revocationCoordinator) reencryptOne(
	ctx context.Context,
	session *identityDomain.Session,
	record *recordDomain.Record,
	current, next *cryptoDomain.SecretKey,
) (*recordDomain.Record, error) {
	if record.KeyVersion != current.Version {
		return nil, fmt.Errorf("%w: at version %d, expected %d",
			recordDomain.ErrStaleRecord, record.KeyVersion, current.Version)
	}

	ciphertext, err := c.blobs.Fetch(ctx, record.BlobRef)
	if err != nil {
		return nil, err
	}
	sealedUnder, ok := cryptoService.CiphertextKeyVersion(ciphertext)
	if !ok {
		return nil, fmt.Errorf("%w: unreadable header on blob %s", cryptoDomain.ErrDecryptionFailed, record.BlobRef)
	}
	if sealedUnder != record.KeyVersion {
		return nil, fmt.Errorf("%w: blob %s sealed under version %d, record at %d",
			recordDomain.ErrTamperedContent, record.BlobRef, sealedUnder, record.KeyVersion)
	}
	plaintext, err := c.cipher.Decrypt(current, ciphertext)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(plaintext)

	uploader, err := c.keyPairs.PublicKeys(ctx, record.LastUpdatedBy)
	if err != nil {
		if errors.Is(err, cryptoDomain.ErrKeyPairNotFound) {
			return nil, fmt.Errorf("%w: no signing key for %s", recordDomain.ErrTamperedContent, record.LastUpdatedBy)
		}
		return nil, err
	}
	if c.verifier.Check(record, plaintext, uploader.SigningPublicKey) != recordDomain.Verified {
		return nil, recordDomain.ErrTamperedContent
	}

	signature, err := c.signatures.Sign(session.Keys.SigningPrivateKey, record.SHA256)
	if err != nil {
		return nil, err
	}
	reencrypted, err := c.cipher.Encrypt(next, plaintext)
	if err != nil {
		return nil, err
	}
	blobRef, err := c.blobs.Upload(ctx, reencrypted)
	if err != nil {
		return nil, err
	}

	updated := *record
	updated.BlobRef = blobRef
	updated.Signature = signature
	updated.KeyVersion = next.Version
	updated.UpdatedAt = c.now()
	updated.LastUpdatedBy = session.Address()
	return &updated, nil
}

// stage wraps next for every remaining grantee and assembles the batch. Grants that are
// already stale are revoked along with the target grantee.
func (c *revocationCoordinator) stage(
	ctx context.Context,
	run revocationDomain.Run,
	next *cryptoDomain.SecretKey,
	records []*recordDomain.Record,
) (*ledger.Batch, error) {
	existing, err := c.grants.ListGrants(ctx, run.OwnerID)
	if err != nil {
		return nil, err
	}

	batch := &ledger.Batch{
		OwnerID:         run.OwnerID,
		NewKey:          next,
		RevokedGrantees: []string{run.GranteeID},
		Records:         records,
	}
	var remaining []string
	for _, g := range existing {
		switch {
		case g.GranteeID == run.GranteeID:
		case g.KeyVersion != run.FromVersion:
			batch.RevokedGrantees = append(batch.RevokedGrantees, g.GranteeID)
		default:
			remaining = append(remaining, g.GranteeID)
		}
	}

	grants := make([]*grantDomain.AccessGrant, len(remaining))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Concurrency)
	for i, grantee := range remaining {
		g.Go(func() error {
			pub, err := c.keyPairs.PublicKeys(gctx, grantee)
			if err != nil {
				return fmt.Errorf("grantee %s: %w", grantee, err)
			}
			wrapped, err := c.wrapper.Wrap(next, &pub.BoxPublicKey)
			if err != nil {
				return fmt.Errorf("grantee %s: %w", grantee, err)
			}
			grants[i] = &grantDomain.AccessGrant{
				OwnerID:    run.OwnerID,
				GranteeID:  grantee,
				WrappedKey: wrapped,
				KeyVersion: next.Version,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	batch.Grants = grants
	return batch, nil
}

func blobRefs(records []*recordDomain.Record) []string {
	refs := make([]string, 0, len(records))
	for _, r := range records {
		if r != nil {
			refs = append(refs, r.BlobRef)
		}
	}
	return refs
}

func (c *revocationCoordinator) unpinAll(ctx context.Context, run revocationDomain.Run, refs []string) {
	if failed := c.unpinBlobs(ctx, refs); failed > 0 {
		c.logger.Warn("failed to unpin blobs",
			slog.String("run_id", run.ID.String()),
			slog.String("owner_id", run.OwnerID),
			slog.Int("failed", failed),
			slog.Int("total", len(refs)),
		)
	}
}

// unpinBlobs releases refs best-effort and returns how many failed.
func (c *revocationCoordinator) unpinBlobs(ctx context.Context, refs []string) int {
	ctx = context.WithoutCancel(ctx)
	failed := 0
	for _, ref := range refs {
		if err := c.blobs.Unpin(ctx, ref); err != nil {
			c.logger.Debug("unpin failed", slog.String("blob_ref", ref), slog.Any("error", err))
			failed++
		}
	}
	return failed
}
