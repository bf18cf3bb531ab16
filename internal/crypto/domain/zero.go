package domain

// Zero overwrites key material in place. Callers keep ownership of the slice.
func Zero(b []byte) {
	clear(b)
}

// ZeroArray overwrites a fixed-size X25519 key.
func ZeroArray(k *[32]byte) {
	if k == nil {
		return
	}
	clear(k[:])
}
