package catalog

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// StaticCode accepts one shared code. It is friction against accidental
// edits, not access control.
type StaticCode string

func (s StaticCode) Verify(code string) bool {
	return subtle.ConstantTimeCompare([]byte(s), []byte(code)) == 1
}

func (StaticCode) Required() bool { return true }

// HashedCode accepts the code matching a bcrypt hash.
type HashedCode []byte

func (h HashedCode) Verify(code string) bool {
	return bcrypt.CompareHashAndPassword(h, []byte(code)) == nil
}

func (HashedCode) Required() bool { return true }

// NoGate runs every action immediately.
type NoGate struct{}

func (NoGate) Verify(string) bool { return true }

func (NoGate) Required() bool { return false }

// NewVerifier picks a verifier from configuration. A hash wins over a plain
// code; with neither, gating is off.
func NewVerifier(code, hash string) Verifier {
	switch {
	case hash != "":
		return HashedCode(hash)
	case code != "":
		return StaticCode(code)
	default:
		return NoGate{}
	}
}
