// Package serviceerr defines the error taxonomy shared by the auth client
// packages. Every error the session machine can recover from is represented
// here so callers can branch on errors.Is instead of string matching.
package serviceerr

import "fmt"

type Code string

const (
	// CodeInvalidToken covers signature, issuer, expiry and decode failures.
	// Callers must treat it identically to an expired token.
	CodeInvalidToken Code = "invalid_token"

	// CodeNonceMismatch means a token was valid but not bound to the
	// attempt that requested it.
	CodeNonceMismatch Code = "nonce_mismatch"

	// CodeTransportFailure covers network errors and non-200 responses.
	CodeTransportFailure Code = "transport_failure"

	// CodeInvalidVerifierLength is a programmer-input error: the requested
	// PKCE verifier length is outside [43,128].
	CodeInvalidVerifierLength Code = "invalid_verifier_length"

	// CodeRefreshExhausted means the refresh token itself no longer
	// verifies, so a silent refresh is impossible.
	CodeRefreshExhausted Code = "refresh_exhausted"

	CodeUnknown Code = "unknown"
)

type Error struct {
	Err         Code
	Description string
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Err, e.Description)
}

var (
	ErrInvalidToken          = &Error{Err: CodeInvalidToken, Description: "token could not be verified"}
	ErrNonceMismatch         = &Error{Err: CodeNonceMismatch, Description: "token is not bound to this attempt"}
	ErrTransportFailure      = &Error{Err: CodeTransportFailure, Description: "authentication service call failed"}
	ErrInvalidVerifierLength = &Error{Err: CodeInvalidVerifierLength, Description: "expected a length between 43 and 128"}
	ErrRefreshExhausted      = &Error{Err: CodeRefreshExhausted, Description: "refresh token is no longer valid"}
	ErrUnknown               = &Error{Err: CodeUnknown, Description: "unknown error"}
)
