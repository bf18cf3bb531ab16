package domain

// WrappedKey is a SecretKey sealed to a single grantee's X25519 public key.
// Only the holder of the matching private key can open it.
type WrappedKey []byte
