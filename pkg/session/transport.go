package session

import (
	"context"
	"encoding/json"

	"github.com/go-webauthn/webauthn/protocol"
)

// Transport is the server boundary: the HTTP and GraphQL endpoints of the
// identity provider. Implementations report protocol-level failures through
// the error return and application-level rejections through Status fields;
// the machine treats both as session-ending.
//
// No deadlines are imposed here. A hung call hangs the awaiting operation;
// callers that need a bound wrap ctx with one.
type Transport interface {
	// PreAuthCode requests an authorization code bound to the attempt
	// nonce and PKCE challenge.
	PreAuthCode(ctx context.Context, nonce, codeChallenge string) (CodeResponse, error)

	// Authenticate exchanges credentials (and, for the code flow, the
	// authorization code plus verifier) for the token triple.
	Authenticate(ctx context.Context, req AuthRequest) (AuthResponse, error)

	// RefreshTokens performs a silent refresh against the stored pair.
	RefreshTokens(ctx context.Context, req RefreshRequest) (AuthResponse, error)

	// Logout notifies the server that a session ended.
	Logout(ctx context.Context, req LogoutRequest) error

	// Passkey ceremonies, carried over the GraphQL endpoint. Registration
	// calls are authenticated with a bearer access token.
	PasskeyRegistrationOptions(ctx context.Context, accessToken, correlationID string) (*protocol.CredentialCreation, error)
	VerifyPasskeyRegistration(ctx context.Context, accessToken, correlationID string, response json.RawMessage) (bool, error)
	PasskeyAuthenticationOptions(ctx context.Context, tempUserID, nonce string) (*protocol.CredentialAssertion, error)
	VerifyPasskeyAuthentication(ctx context.Context, tempUserID, nonce string, response json.RawMessage) (AuthResponse, error)
}

type AuthRequest struct {
	Type              string `json:"type"`
	Username          string `json:"username"`
	Password          string `json:"password"`
	SessionExpiration string `json:"sessionExpiration,omitempty"`
	Nonce             string `json:"nonce"`
	Code              string `json:"code,omitempty"`
	CodeVerifier      string `json:"code_verifier,omitempty"`
	Domain            string `json:"domain"`
	Fingerprint       string `json:"fingerprint,omitempty"`
}

type AuthResponse struct {
	Status       bool   `json:"status"`
	IDToken      string `json:"idToken"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
}

type CodeResponse struct {
	Status bool   `json:"status"`
	Code   string `json:"code"`
}

type RefreshRequest struct {
	UserID       string `json:"userId"`
	Nonce        string `json:"nonce"`
	RefreshToken string `json:"refreshToken"`
	AccessToken  string `json:"accessToken"`
	Domain       string `json:"domain"`
	Fingerprint  string `json:"fingerprint,omitempty"`
}

type LogoutRequest struct {
	UserID  string `json:"userId"`
	IDToken string `json:"idToken"`
	Domain  string `json:"domain"`
}

// Authenticator is the platform authenticator bridge performing the WebAuthn
// ceremonies. Calls may block indefinitely pending user interaction and are
// cancelable only by the authenticator itself.
type Authenticator interface {
	CreateCredential(ctx context.Context, options *protocol.CredentialCreation) (json.RawMessage, error)
	GetAssertion(ctx context.Context, options *protocol.CredentialAssertion) (json.RawMessage, error)
}
