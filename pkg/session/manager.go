// Package session implements the client-side session machine for the
// gizmette identity provider: it establishes, renews and tears down an
// authenticated session backed by short-lived signed tokens, and notifies
// subscribers of every state change.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	slogctx "github.com/veqryn/slog-context"

	"github.com/gizmette/auth-client/internal/pkce"
	"github.com/gizmette/auth-client/internal/serviceerr"
	"github.com/gizmette/auth-client/internal/token"
	"github.com/gizmette/auth-client/pkg/credstore"
	"github.com/gizmette/auth-client/pkg/fingerprint"
)

// Config carries the static identity of the consumer.
type Config struct {
	ClientID string
	Domain   string
	// Issuer and PublicKey pin the tokens the machine will accept.
	Issuer    string
	PublicKey []byte
	// SessionExpiration is forwarded verbatim to the server on login.
	SessionExpiration string
	Debug             bool
}

type Option func(*Manager)

// WithAuthenticator enables the passkey ceremonies.
func WithAuthenticator(a Authenticator) Option {
	return func(m *Manager) { m.authenticator = a }
}

// WithFingerprint binds a device fingerprint into authenticate and refresh
// requests.
func WithFingerprint(supplier fingerprint.Supplier) Option {
	return func(m *Manager) { m.fingerprint = supplier }
}

// Manager is the session state machine. It owns the persisted credentials
// exclusively; nothing else may write to the store while a Manager is live.
//
// Individual operations are safe for concurrent use and every transition is
// applied atomically relative to subscribers. Firing Login and Logout
// concurrently without awaiting is last-settle-wins, though: the machine
// does not serialize session-mutating calls against each other, so callers
// that can race them must serialize themselves.
type Manager struct {
	clientID          string
	domain            string
	sessionExpiration string
	debug             bool

	store         credstore.Store
	transport     Transport
	codec         *token.Codec
	pkce          pkce.Source
	fingerprint   fingerprint.Supplier
	authenticator Authenticator
	refresh       *refreshCoordinator

	mu             sync.Mutex
	state          AuthState
	subscribers    map[int]func(AuthState)
	nextSubscriber int
}

// New builds a machine in the LOADING state. Call Bootstrap to resolve the
// persisted session before serving consumers.
func New(cfg Config, store credstore.Store, transport Transport, opts ...Option) (*Manager, error) {
	codec, err := token.NewCodec(cfg.Issuer, cfg.PublicKey)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		clientID:          cfg.ClientID,
		domain:            cfg.Domain,
		sessionExpiration: cfg.SessionExpiration,
		debug:             cfg.Debug,
		store:             store,
		transport:         transport,
		codec:             codec,
		fingerprint:       fingerprint.None(),
		state: AuthState{
			IsLoading: true,
			Debug:     cfg.Debug,
		},
		subscribers: make(map[int]func(AuthState)),
	}
	m.refresh = newRefreshCoordinator(m.performRefresh)

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m, nil
}

// State returns the current snapshot.
func (m *Manager) State() AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Subscribe registers fn to receive a snapshot after every transition. The
// returned function cancels the subscription.
func (m *Manager) Subscribe(fn func(AuthState)) func() {
	m.mu.Lock()
	id := m.nextSubscriber
	m.nextSubscriber++
	m.subscribers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

// Bootstrap resolves the persisted session into AUTHENTICATED or
// UNAUTHENTICATED. With no persisted id token it settles locally without a
// single network call. An invalid or expired persisted token clears the
// store, notifies the server best-effort and ends in UNAUTHENTICATED with
// ReasonExpiredSession.
func (m *Manager) Bootstrap(ctx context.Context) {
	ctx = slogctx.With(ctx, "client_id", m.clientID)

	idToken, err := m.store.Get(ctx, m.clientID, credstore.KeyIDToken)
	if err != nil {
		if !errors.Is(err, credstore.ErrNotSet) {
			slogctx.Warn(ctx, "Could not read the persisted id token", "error", err)
		}
		m.transition(loadingTransition{isLoading: false})

		return
	}

	claims, err := m.codec.Verify(idToken)
	if err != nil || claims.Subject == "" {
		slogctx.Info(ctx, "Persisted id token is no longer valid")
		m.invalidate(ctx, ReasonExpiredSession)
		m.notifyServerLogout(ctx, idToken)

		return
	}

	m.transition(loginTransition{
		user:     User{UserID: claims.Subject, Username: claims.Username},
		authType: authenticationTypeFromClaim(claims.AuthType),
	})
}

// Login runs a password login. The code ceremony requests a pre-auth code
// bound to the attempt nonce and PKCE challenge, then exchanges it together
// with the credentials. It reports success or failure and never returns an
// error: every failure ends in a session-ending transition, except a failed
// pre-auth step which aborts with no transition beyond the token clearing
// already performed.
func (m *Manager) Login(ctx context.Context, username, password string, authType AuthType) bool {
	ctx = slogctx.With(ctx, "client_id", m.clientID)

	nonce := uuid.NewString()

	// Clearing first guarantees a failed login cannot leave a mix of old
	// and new artifacts behind.
	m.clearTokens(ctx)
	if err := m.store.Set(ctx, m.clientID, credstore.KeyNonce, nonce); err != nil {
		slogctx.Error(ctx, "Could not persist the attempt nonce", "error", err)

		return false
	}

	var code, codeVerifier string
	if authType == AuthTypeCode {
		pair, err := m.pkce.Generate(pkce.DefaultVerifierLength)
		if err != nil {
			return false
		}

		resp, err := m.transport.PreAuthCode(ctx, nonce, pair.Challenge)
		if err != nil || !resp.Status {
			slogctx.Warn(ctx, "Pre-authorization code request failed", "error", err)

			return false
		}

		code, codeVerifier = resp.Code, pair.Verifier
	}

	resp, err := m.transport.Authenticate(ctx, AuthRequest{
		Type:              string(authType),
		Username:          username,
		Password:          password,
		SessionExpiration: m.sessionExpiration,
		Nonce:             nonce,
		Code:              code,
		CodeVerifier:      codeVerifier,
		Domain:            m.domain,
		Fingerprint:       m.fingerprint(),
	})
	if err != nil || !resp.Status {
		slogctx.Warn(ctx, "Authentication failed", "error", err)
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
		user:     User{UserID: claims.Subject, Username: username},
		authType: AuthenticationTypeCode,
	})

	return true
}

// GetAccessToken returns a verified access token, refreshing it on demand.
// A cached token that still verifies is returned with no network call. A
// failed refresh ends the session. Refreshing is never preemptive.
func (m *Manager) GetAccessToken(ctx context.Context) string {
	ctx = slogctx.With(ctx, "client_id", m.clientID)

	m.mu.Lock()
	authenticated := m.state.IsAuthenticated && m.state.User != nil && m.state.User.UserID != ""
	m.mu.Unlock()

	if !authenticated {
		m.invalidate(ctx, ReasonAccessTokenError)

		return ""
	}

	accessToken, err := m.store.Get(ctx, m.clientID, credstore.KeyAccessToken)
	if err == nil && accessToken != "" {
		if claims, err := m.codec.Verify(accessToken); err == nil && claims.Subject != "" {
			return accessToken
		}
	}

	result := m.refresh.Refresh(ctx)
	if result.Status {
		return result.AccessToken
	}

	m.invalidate(ctx, ReasonAccessTokenError)

	return ""
}

// GetIDToken returns the persisted id token, or "" when not authenticated.
func (m *Manager) GetIDToken(ctx context.Context) string {
	m.mu.Lock()
	authenticated := m.state.IsAuthenticated
	m.mu.Unlock()

	if !authenticated {
		return ""
	}

	idToken, err := m.store.Get(ctx, m.clientID, credstore.KeyIDToken)
	if err != nil {
		return ""
	}

	return idToken
}

// Logout notifies the server best-effort, then unconditionally clears the
// persisted credentials and transitions to UNAUTHENTICATED. A network
// failure never prevents the local teardown.
func (m *Manager) Logout(ctx context.Context, reason string) {
	ctx = slogctx.With(ctx, "client_id", m.clientID)

	if reason == "" {
		reason = ReasonLoggedOut
	}

	idToken, err := m.store.Get(ctx, m.clientID, credstore.KeyIDToken)
	if err != nil {
		idToken = ""
	}

	m.invalidate(ctx, reason)
	m.notifyServerLogout(ctx, idToken)
}

// notifyServerLogout issues the best-effort server-side logout. The user id
// comes from the in-memory state when available, falling back to an
// unverified decode of the (possibly expired) id token so logout works even
// when local state is already stale.
func (m *Manager) notifyServerLogout(ctx context.Context, idToken string) {
	m.mu.Lock()
	var userID string
	if m.state.User != nil {
		userID = m.state.User.UserID
	}
	m.mu.Unlock()

	if userID == "" && idToken != "" {
		if claims, err := m.codec.Decode(idToken); err == nil {
			userID = claims.Subject
		}
	}

	if userID == "" && idToken == "" {
		return
	}

	err := m.transport.Logout(ctx, LogoutRequest{
		UserID:  userID,
		IDToken: idToken,
		Domain:  m.domain,
	})
	if err != nil {
		slogctx.Warn(ctx, "Server logout notification failed", "error", err)
	}
}

// performRefresh is the single-flight body run by the coordinator: it
// validates the stored refresh token, calls the silent-refresh endpoint and
// persists the new pair. The fresh access token is accepted only when bound
// to the stored attempt nonce.
func (m *Manager) performRefresh(ctx context.Context) RefreshResult {
	refreshToken, err := m.store.Get(ctx, m.clientID, credstore.KeyRefreshToken)
	if err != nil {
		return RefreshResult{}
	}

	claims, err := m.codec.Verify(refreshToken)
	if err != nil || claims.Subject == "" {
		slogctx.Info(ctx, "Refresh token is no longer valid, re-authentication required")

		return RefreshResult{}
	}

	accessToken, err := m.store.Get(ctx, m.clientID, credstore.KeyAccessToken)
	if err != nil {
		accessToken = ""
	}
	nonce, err := m.store.Get(ctx, m.clientID, credstore.KeyNonce)
	if err != nil {
		nonce = ""
	}

	resp, err := m.transport.RefreshTokens(ctx, RefreshRequest{
		UserID:       claims.Subject,
		Nonce:        nonce,
		RefreshToken: refreshToken,
		AccessToken:  accessToken,
		Domain:       m.domain,
		Fingerprint:  m.fingerprint(),
	})
	if err != nil || !resp.Status {
		slogctx.Warn(ctx, "Silent refresh failed", "error", err)

		return RefreshResult{}
	}

	if _, err := m.verifyAttempt(resp.AccessToken, nonce); err != nil {
		slogctx.Warn(ctx, "Refreshed access token rejected", "error", err)

		return RefreshResult{}
	}

	if err := m.store.Set(ctx, m.clientID, credstore.KeyAccessToken, resp.AccessToken); err != nil {
		return RefreshResult{}
	}
	if err := m.store.Set(ctx, m.clientID, credstore.KeyRefreshToken, resp.RefreshToken); err != nil {
		return RefreshResult{}
	}

	return RefreshResult{
		Status:       true,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}
}

// verifyAttempt verifies a token and checks it is bound to the attempt
// nonce, rejecting responses minted for a different flow even when the
// signature, issuer and expiry are all valid.
func (m *Manager) verifyAttempt(raw, nonce string) (token.Claims, error) {
	claims, err := m.codec.Verify(raw)
	if err != nil {
		return token.Claims{}, err
	}
	if claims.Subject == "" {
		return token.Claims{}, serviceerr.ErrInvalidToken
	}
	if claims.Nonce != nonce {
		return token.Claims{}, serviceerr.ErrNonceMismatch
	}

	return claims, nil
}

func (m *Manager) persistTokens(ctx context.Context, resp AuthResponse) error {
	if err := m.store.Set(ctx, m.clientID, credstore.KeyIDToken, resp.IDToken); err != nil {
		return err
	}
	if err := m.store.Set(ctx, m.clientID, credstore.KeyAccessToken, resp.AccessToken); err != nil {
		return err
	}

	return m.store.Set(ctx, m.clientID, credstore.KeyRefreshToken, resp.RefreshToken)
}

// invalidate clears every persisted slot and transitions to UNAUTHENTICATED
// with the given reason. It is the single session-ending path: there is no
// partial or degraded authenticated state.
func (m *Manager) invalidate(ctx context.Context, reason string) {
	for _, key := range credstore.Keys {
		if err := m.store.Remove(ctx, m.clientID, key); err != nil {
			slogctx.Warn(ctx, "Could not clear credential slot", "slot", string(key), "error", err)
		}
	}

	m.transition(logoutTransition{reason: reason})
}

// clearTokens removes the token slots but keeps the nonce slot, which a new
// attempt overwrites anyway.
func (m *Manager) clearTokens(ctx context.Context) {
	for _, key := range []credstore.Key{credstore.KeyIDToken, credstore.KeyAccessToken, credstore.KeyRefreshToken} {
		if err := m.store.Remove(ctx, m.clientID, key); err != nil {
			slogctx.Warn(ctx, "Could not clear credential slot", "slot", string(key), "error", err)
		}
	}
}

// transition applies t atomically and hands the resulting snapshot to every
// subscriber. Subscribers run outside the lock so they may call back into
// the machine.
func (m *Manager) transition(t transition) {
	m.mu.Lock()
	m.state = t.apply(m.state)
	snapshot := m.state
	subscribers := make([]func(AuthState), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subscribers = append(subscribers, fn)
	}
	m.mu.Unlock()

	for _, fn := range subscribers {
		fn(snapshot)
	}
}

func authenticationTypeFromClaim(authType string) AuthenticationType {
	if authType == string(AuthenticationTypePasskey) {
		return AuthenticationTypePasskey
	}

	return AuthenticationTypeCode
}
