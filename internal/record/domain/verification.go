package domain

// Verification is the outcome of an integrity check on decrypted content.
type Verification uint8

const (
	Verified Verification = iota + 1
	TamperedContent
)

func (v Verification) String() string {
	switch v {
	case Verified:
		return "verified"
	case TamperedContent:
		return "tampered_content"
	default:
		return "unknown"
	}
}
