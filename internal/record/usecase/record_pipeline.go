package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	"github.com/allisson/recordvault/internal/blobstore"
	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	cryptoService "github.com/allisson/recordvault/internal/crypto/service"
	cryptoUseCase "github.com/allisson/recordvault/internal/crypto/usecase"
	"github.com/allisson/recordvault/internal/database"
	grantDomain "github.com/allisson/recordvault/internal/grant/domain"
	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
	recordDomain "github.com/allisson/recordvault/internal/record/domain"
	appValidation "github.com/allisson/recordvault/internal/validation"
)

// Config tunes the pipeline.
type Config struct {
	// MaxUploadSize bounds plaintext size in bytes. Zero disables the limit.
	MaxUploadSize int64
}

type recordPipeline struct {
	txManager  database.TxManager
	records    RecordRepository
	grants     GrantLookup
	secretKeys cryptoUseCase.SecretKeyManager
	keyPairs   cryptoUseCase.KeyPairStore
	cipher     cryptoService.CipherEngine
	signatures cryptoService.SignatureEngine
	wrapper    cryptoService.KeyWrapper
	blobs      blobstore.BlobStore
	verifier   IntegrityVerifier
	config     Config
	logger     *slog.Logger
}

// NewRecordPipeline creates a RecordPipeline.
func NewRecordPipeline(
	txManager database.TxManager,
	records RecordRepository,
	grants GrantLookup,
	secretKeys cryptoUseCase.SecretKeyManager,
	keyPairs cryptoUseCase.KeyPairStore,
	cipher cryptoService.CipherEngine,
	signatures cryptoService.SignatureEngine,
	wrapper cryptoService.KeyWrapper,
	blobs blobstore.BlobStore,
	verifier IntegrityVerifier,
	config Config,
	logger *slog.Logger,
) RecordPipeline {
	return &recordPipeline{
		txManager:  txManager,
		records:    records,
		grants:     grants,
		secretKeys: secretKeys,
		keyPairs:   keyPairs,
		cipher:     cipher,
		signatures: signatures,
		wrapper:    wrapper,
		blobs:      blobs,
		verifier:   verifier,
		config:     config,
		logger:     logger,
	}
}

func (p *recordPipeline) validateUpload(input UploadInput) error {
	if len(input.Content) == 0 {
		return recordDomain.ErrEmptyContent
	}
	if p.config.MaxUploadSize > 0 && int64(len(input.Content)) > p.config.MaxUploadSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", recordDomain.ErrContentTooLarge,
			len(input.Content), p.config.MaxUploadSize)
	}

	err := validation.ValidateStruct(&input,
		validation.Field(&input.OwnerID, validation.Required, appValidation.Address),
		validation.Field(&input.Filename,
			validation.Required.Error("filename is required"),
			appValidation.NotBlank,
			validation.Length(1, 255),
		),
		validation.Field(&input.Description, validation.Length(0, 4096)),
		validation.Field(&input.ContentType, validation.Length(0, 255)),
	)
	return appValidation.WrapValidationError(err)
}

// validGrant returns the caller's grant from ownerID and the owner's current key version.
// The grant must be at that version.
func (p *recordPipeline) validGrant(
	ctx context.Context,
	ownerID, granteeID string,
) (*grantDomain.AccessGrant, uint64, error) {
	grant, err := p.grants.Get(ctx, ownerID, granteeID)
	if err != nil {
		if errors.Is(err, grantDomain.ErrGrantNotFound) {
			return nil, 0, grantDomain.ErrAccessDenied
		}
		return nil, 0, err
	}

	current, err := p.secretKeys.CurrentVersion(ctx, ownerID)
	if err != nil {
		return nil, 0, err
	}
	if !grant.IsValidFor(current) {
		return nil, 0, fmt.Errorf("%w: grant at version %d, current %d",
			grantDomain.ErrStaleGrant, grant.KeyVersion, current)
	}
	return grant, current, nil
}

func (p *recordPipeline) unwrap(
	session *identityDomain.Session,
	grant *grantDomain.AccessGrant,
) (*cryptoDomain.SecretKey, error) {
	key, err := p.wrapper.Unwrap(grant.WrappedKey, &session.Keys.BoxPublicKey, &session.Keys.BoxPrivateKey)
	if err != nil {
		return nil, err
	}
	if key.OwnerID != grant.OwnerID || key.Version != grant.KeyVersion {
		key.Close()
		return nil, cryptoDomain.ErrUnwrapFailed
	}
	return key, nil
}

// keyAt resolves the owner's key at version for the caller's access path.
func (p *recordPipeline) keyAt(
	ctx context.Context,
	session *identityDomain.Session,
	access identityDomain.Access,
	ownerID string,
	version uint64,
) (*cryptoDomain.SecretKey, error) {
	switch access {
	case identityDomain.AccessSelf:
		return p.secretKeys.Get(ctx, ownerID, version)
	case identityDomain.AccessViaGrant:
		grant, _, err := p.validGrant(ctx, ownerID, session.Address())
		if err != nil {
			return nil, err
		}
		if grant.KeyVersion != version {
			return nil, fmt.Errorf("%w: record at version %d, grant at %d",
				cryptoDomain.ErrKeyVersionConflict, version, grant.KeyVersion)
		}
		return p.unwrap(session, grant)
	default:
		return nil, identityDomain.ErrForbiddenAction
	}
}

func (p *recordPipeline) currentKey(
	ctx context.Context,
	session *identityDomain.Session,
	access identityDomain.Access,
	ownerID string,
) (*cryptoDomain.SecretKey, error) {
	switch access {
	case identityDomain.AccessSelf:
		return p.secretKeys.Current(ctx, ownerID)
	case identityDomain.AccessViaGrant:
		grant, _, err := p.validGrant(ctx, ownerID, session.Address())
		if err != nil {
			return nil, err
		}
		return p.unwrap(session, grant)
	default:
		return nil, identityDomain.ErrForbiddenAction
	}
}

func (p *recordPipeline) Upload(
	ctx context.Context,
	session *identityDomain.Session,
	input UploadInput,
) (*recordDomain.Record, error) {
	if err := p.validateUpload(input); err != nil {
		return nil, err
	}
	access, err := identityDomain.Authorize(session.Principal(), identityDomain.ActionUploadRecord, input.OwnerID)
	if err != nil {
		return nil, err
	}

	key, err := p.currentKey(ctx, session, access, input.OwnerID)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	digest := cryptoDomain.ComputeDigest(input.Content)
	signature, err := p.signatures.Sign(session.Keys.SigningPrivateKey, digest)
	if err != nil {
		return nil, err
	}
	ciphertext, err := p.cipher.Encrypt(key, input.Content)
	if err != nil {
		return nil, err
	}
	blobRef, err := p.blobs.Upload(ctx, ciphertext)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		p.unpin(ctx, blobRef)
		return nil, err
	}
	now := time.Now().UTC()
	record := &recordDomain.Record{
		ID:            id,
		OwnerID:       input.OwnerID,
		Filename:      input.Filename,
		Description:   input.Description,
		ContentType:   input.ContentType,
		SizeBytes:     int64(len(input.Content)),
		SHA256:        digest,
		Signature:     signature,
		BlobRef:       blobRef,
		KeyVersion:    key.Version,
		CreatedAt:     now,
		CreatedBy:     session.Address(),
		UpdatedAt:     now,
		LastUpdatedBy: session.Address(),
	}

	err = p.txManager.WithTx(ctx, func(ctx context.Context) error {
		if access == identityDomain.AccessViaGrant {
			if _, _, err := p.validGrant(ctx, input.OwnerID, session.Address()); err != nil {
				return err
			}
		}
		current, err := p.secretKeys.CurrentVersion(ctx, input.OwnerID)
		if err != nil {
			return err
		}
		if current != key.Version {
			return fmt.Errorf("%w: encrypted under version %d, current is %d",
				cryptoDomain.ErrKeyVersionConflict, key.Version, current)
		}
		return p.records.Create(ctx, record)
	})
	if err != nil {
		p.unpin(ctx, blobRef)
		return nil, err
	}
	return record, nil
}

func (p *recordPipeline) Read(
	ctx context.Context,
	session *identityDomain.Session,
	id uuid.UUID,
) (*Document, error) {
	record, err := p.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	access, err := identityDomain.Authorize(session.Principal(), identityDomain.ActionReadRecord, record.OwnerID)
	if err != nil {
		return nil, err
	}

	ciphertext, err := p.blobs.Fetch(ctx, record.BlobRef)
	if err != nil {
		return nil, err
	}

	key, err := p.keyAt(ctx, session, access, record.OwnerID, record.KeyVersion)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	plaintext, err := p.cipher.Decrypt(key, ciphertext)
	if err != nil {
		return nil, err
	}

	uploader, err := p.keyPairs.PublicKeys(ctx, record.LastUpdatedBy)
	if err != nil {
		cryptoDomain.Zero(plaintext)
		if errors.Is(err, cryptoDomain.ErrKeyPairNotFound) {
			return nil, fmt.Errorf("%w: no signing key for %s", recordDomain.ErrTamperedContent, record.LastUpdatedBy)
		}
		return nil, err
	}

	if p.verifier.Check(record, plaintext, uploader.SigningPublicKey) != recordDomain.Verified {
		cryptoDomain.Zero(plaintext)
		p.logger.Warn("record failed integrity check",
			slog.String("record_id", record.ID.String()),
			slog.String("owner_id", record.OwnerID),
			slog.Uint64("key_version", record.KeyVersion),
		)
		return nil, recordDomain.ErrTamperedContent
	}
	return &Document{Record: record, Content: plaintext}, nil
}

func (p *recordPipeline) List(
	ctx context.Context,
	session *identityDomain.Session,
	ownerID string,
	offset, limit int,
) ([]*recordDomain.Record, error) {
	access, err := identityDomain.Authorize(session.Principal(), identityDomain.ActionListRecords, ownerID)
	if err != nil {
		return nil, err
	}
	if access == identityDomain.AccessViaGrant {
		if _, _, err := p.validGrant(ctx, ownerID, session.Address()); err != nil {
			return nil, err
		}
	}
	return p.records.ListByOwner(ctx, ownerID, offset, limit)
}

// unpin releases an orphaned blob. Failures are logged; the blob is unreferenced either way.
func (p *recordPipeline) unpin(ctx context.Context, blobRef string) {
	if err := p.blobs.Unpin(context.WithoutCancel(ctx), blobRef); err != nil {
		p.logger.Warn("failed to unpin orphaned blob",
			slog.String("blob_ref", blobRef),
			slog.Any("error", err),
		)
	}
}
