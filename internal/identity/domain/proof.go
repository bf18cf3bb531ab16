package domain

import (
	"fmt"
	"time"
)

// Proof is a wallet signature demonstrating control of Address at IssuedAt.
// A valid proof is required every time private key material is produced.
type Proof struct {
	Address  string
	IssuedAt time.Time
	// Request binds the proof to one HTTP method and path, see RequestScope. Proofs
	// presented over HTTP always carry it; in-process callers may leave it empty.
	Request   string
	Signature []byte
}

// RequestScope is the value a proof signs to bind itself to an HTTP request. The query
// string is not part of it.
func RequestScope(method, path string) string {
	return method + " " + path
}

// ProofMessage is the canonical message signed by the identity key for an unscoped proof.
func ProofMessage(address string, issuedAt time.Time) []byte {
	return fmt.Appendf(nil, "recordvault identity proof\naddress:%s\nissued_at:%d", address, issuedAt.Unix())
}

// RequestProofMessage is the canonical message for a proof bound to request.
func RequestProofMessage(address string, issuedAt time.Time, request string) []byte {
	return fmt.Appendf(ProofMessage(address, issuedAt), "\nrequest:%s", request)
}

// Message returns the canonical message for this proof.
func (p Proof) Message() []byte {
	if p.Request == "" {
		return ProofMessage(p.Address, p.IssuedAt)
	}
	return RequestProofMessage(p.Address, p.IssuedAt, p.Request)
}
