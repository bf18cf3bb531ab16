package domain

import (
	"github.com/allisson/recordvault/internal/errors"
)

// Cryptographic operation error definitions.
//
// These domain-specific errors wrap standard errors from internal/errors so the HTTP
// layer can map them to status codes without knowing about cryptography.
var (
	// ErrUnsupportedAlgorithm indicates the requested encryption algorithm is not supported.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates a symmetric key is not exactly 32 bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrInvalidPublicKey indicates a published public key has the wrong shape.
	ErrInvalidPublicKey = errors.Wrap(errors.ErrInvalidInput, "invalid public key")

	// ErrDecryptionFailed is the DecryptionError of the taxonomy: the key is wrong, the key
	// version does not match the ciphertext, or the ciphertext is malformed or altered.
	ErrDecryptionFailed = errors.Wrap(errors.ErrIntegrity, "decryption failed")

	// ErrUnwrapFailed indicates a wrapped secret key could not be opened with the
	// supplied private key.
	ErrUnwrapFailed = errors.Wrap(ErrDecryptionFailed, "unwrap failed")

	// ErrKeyRetrieval is the KeyRetrievalError of the taxonomy: the identity proof was
	// rejected or the private key material could not be produced.
	ErrKeyRetrieval = errors.Wrap(errors.ErrUnauthorized, "key retrieval failed")

	// ErrKeyPairNotFound indicates no keypair is registered for the address.
	ErrKeyPairNotFound = errors.Wrap(errors.ErrNotFound, "keypair not found")

	// ErrKeyPairAlreadyExists indicates a keypair was already generated for the address.
	ErrKeyPairAlreadyExists = errors.Wrap(errors.ErrConflict, "keypair already exists")

	// ErrSecretKeyNotFound indicates the owner has no secret key at the requested version.
	ErrSecretKeyNotFound = errors.Wrap(errors.ErrNotFound, "secret key not found")

	// ErrKeyVersionConflict indicates a compare-and-swap on an owner's current secret key
	// version lost a race: another rotation already produced that version.
	ErrKeyVersionConflict = errors.Wrap(errors.ErrConflict, "secret key version conflict")

	// ErrMasterKeyNotFound indicates the master key referenced by sealed material is not
	// loaded in the keychain.
	ErrMasterKeyNotFound = errors.Wrap(errors.ErrNotFound, "master key not found")

	// ErrMasterKeysNotSet indicates MASTER_KEYS is empty.
	ErrMasterKeysNotSet = errors.New("MASTER_KEYS not set")

	// ErrActiveMasterKeyIDNotSet indicates ACTIVE_MASTER_KEY_ID is empty.
	ErrActiveMasterKeyIDNotSet = errors.New("ACTIVE_MASTER_KEY_ID not set")

	// ErrInvalidMasterKeysFormat indicates a MASTER_KEYS entry is not "id:value".
	ErrInvalidMasterKeysFormat = errors.New("invalid MASTER_KEYS format")

	// ErrInvalidMasterKeyBase64 indicates a master key value is not valid base64.
	ErrInvalidMasterKeyBase64 = errors.New("invalid master key base64")

	// ErrActiveMasterKeyNotFound indicates ACTIVE_MASTER_KEY_ID names a key that is not
	// present in MASTER_KEYS.
	ErrActiveMasterKeyNotFound = errors.New("active master key not found")
)
