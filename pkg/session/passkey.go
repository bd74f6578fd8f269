package session

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	slogctx "github.com/veqryn/slog-context"

	"github.com/gizmette/auth-client/pkg/credstore"
)

// emptyCeremonyResponse is submitted when the platform ceremony fails, so
// the server-side challenge created by the options call is consumed rather
// than left dangling.
var emptyCeremonyResponse = json.RawMessage(`{}`)

// RegisterPasskey binds a new passkey to the currently authenticated user.
// It requires an authenticated session and a configured Authenticator, and
// is safe to retry: every attempt uses a fresh correlation id so a retry
// cannot collide with a prior attempt's server-side challenge.
func (m *Manager) RegisterPasskey(ctx context.Context) bool {
	ctx = slogctx.With(ctx, "client_id", m.clientID)

	if m.authenticator == nil {
		slogctx.Warn(ctx, "No authenticator configured, cannot register a passkey")

		return false
	}

	m.mu.Lock()
	authenticated := m.state.IsAuthenticated
	m.mu.Unlock()
	if !authenticated {
		return false
	}

	accessToken := m.GetAccessToken(ctx)
	if accessToken == "" {
		return false
	}

	correlationID := uuid.NewString()

	options, err := m.transport.PasskeyRegistrationOptions(ctx, accessToken, correlationID)
	if err != nil {
		slogctx.Warn(ctx, "Could not get passkey registration options", "error", err)

		return false
	}

	// The ceremony may block indefinitely pending user interaction.
	response, err := m.authenticator.CreateCredential(ctx, options)
	if err != nil {
		slogctx.Warn(ctx, "Passkey ceremony failed", "error", err)
		_, _ = m.transport.VerifyPasskeyRegistration(ctx, accessToken, correlationID, emptyCeremonyResponse)

		return false
	}

	verified, err := m.transport.VerifyPasskeyRegistration(ctx, accessToken, correlationID, response)
	if err != nil {
		slogctx.Warn(ctx, "Passkey registration verification failed", "error", err)

		return false
	}

	return verified
}

// LoginWithPasskey establishes a session from a passkey ceremony. It needs
// no prior authentication; identity comes from the verified ceremony result.
// The attempt follows the same nonce-binding discipline as password login.
func (m *Manager) LoginWithPasskey(ctx context.Context) bool {
	ctx = slogctx.With(ctx, "client_id", m.clientID)

	if m.authenticator == nil {
		slogctx.Warn(ctx, "No authenticator configured, cannot log in with a passkey")

		return false
	}

	nonce := uuid.NewString()
	// Anonymous correlation id for the attempt; the server learns the real
	// user only from the verified assertion.
	tempUserID := uuid.NewString()

	m.clearTokens(ctx)
	if err := m.store.Set(ctx, m.clientID, credstore.KeyNonce, nonce); err != nil {
		slogctx.Error(ctx, "Could not persist the attempt nonce", "error", err)

		return false
	}

	options, err := m.transport.PasskeyAuthenticationOptions(ctx, tempUserID, nonce)
	if err != nil {
		slogctx.Warn(ctx, "Could not get passkey authentication options", "error", err)

		return false
	}

	response, err := m.authenticator.GetAssertion(ctx, options)
	if err != nil {
		slogctx.Warn(ctx, "Passkey ceremony failed", "error", err)
		m.invalidate(ctx, ReasonLoginError)

		return false
	}

	resp, err := m.transport.VerifyPasskeyAuthentication(ctx, tempUserID, nonce, response)
	if err != nil || !resp.Status {
		slogctx.Warn(ctx, "Passkey authentication verification failed", "error", err)
		m.invalidate(ctx, ReasonLoginError)

		return false
	}

	claims, err := m.verifyAttempt(resp.IDToken, nonce)
	if err != nil {
		slogctx.Warn(ctx, "Returned id token rejected", "error", err)
		m.invalidate(ctx, ReasonLoginError)

		return false
	}

	if err := m.persistTokens(ctx, resp); err != nil {
		slogctx.Error(ctx, "Could not persist session tokens", "error", err)
		m.invalidate(ctx, ReasonLoginError)

		return false
	}

	m.transition(loginTransition{
		user:     User{UserID: claims.Subject, Username: claims.Username},
		authType: AuthenticationTypePasskey,
	})

	return true
}
