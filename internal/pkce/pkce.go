// Package pkce implements the proof-key-for-code-exchange pair used by the
// authorization-code login flow (RFC 7636, S256 method only).
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"math/big"

	"github.com/gizmette/auth-client/internal/serviceerr"
)

const (
	MethodS256 = "S256"

	// DefaultVerifierLength is the minimum length allowed by RFC 7636 and
	// the one used for every login attempt unless a caller asks otherwise.
	DefaultVerifierLength = 43

	minVerifierLength = 43
	maxVerifierLength = 128
)

// verifier characters are restricted to the RFC 7636 unreserved set.
const verifierAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

type Pair struct {
	Verifier  string
	Challenge string
	Method    string
}

type Source struct{}

// Generate returns a fresh verifier/challenge pair. The verifier length must
// be within [43,128] or serviceerr.ErrInvalidVerifierLength is returned.
func (p Source) Generate(length int) (Pair, error) {
	if length < minVerifierLength || length > maxVerifierLength {
		return Pair{}, serviceerr.ErrInvalidVerifierLength
	}

	verifier := p.randString(length)

	return Pair{
		Verifier:  verifier,
		Challenge: Challenge(verifier),
		Method:    MethodS256,
	}, nil
}

// Challenge computes the S256 code challenge for a verifier: the base64url
// encoding, without padding, of its SHA-256 digest.
func Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))

	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyChallenge recomputes the challenge for the verifier and compares it
// byte for byte. The challenge is public so constant time is not needed.
func VerifyChallenge(verifier, challenge string) bool {
	return Challenge(verifier) == challenge
}

func (p Source) randString(n int) string {
	ret := make([]byte, n)
	for i := range n {
		num, _ := rand.Int(rand.Reader, big.NewInt(int64(len(verifierAlphabet))))
		ret[i] = verifierAlphabet[num.Int64()]
	}

	return string(ret)
}
