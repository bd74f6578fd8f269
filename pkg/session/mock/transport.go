// Package sessionmock provides in-memory fakes for the session machine's
// collaborators.
package sessionmock

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/gizmette/auth-client/pkg/session"
)

type TransportOption func(*Transport)

// Transport is a scriptable session.Transport that records every call.
type Transport struct {
	mu sync.Mutex

	authResponse session.AuthResponse
	authErr      error
	authFunc     func(session.AuthRequest) (session.AuthResponse, error)
	codeResponse session.CodeResponse
	codeErr      error

	refreshResponse session.AuthResponse
	refreshErr      error
	refreshDelay    time.Duration

	logoutErr error

	registrationOptions   *protocol.CredentialCreation
	registrationOptsErr   error
	registrationVerified  bool
	registrationVerifyErr error

	authenticationOptions *protocol.CredentialAssertion
	authenticationOptsErr error
	authenticationResult  session.AuthResponse
	authenticationErr     error
	authenticationFunc    func(tempUserID, nonce string) (session.AuthResponse, error)

	preAuthCodeCalls int
	authCalls        int
	refreshCalls     int
	logoutCalls      int

	lastAuthRequest    session.AuthRequest
	lastRefreshRequest session.RefreshRequest
	lastLogoutRequest  session.LogoutRequest

	registrationResponses []json.RawMessage
	lastPreAuthNonce      string
	lastCodeChallenge     string
	lastPasskeyNonce      string
	lastPasskeyTempUserID string
	lastBearerToken       string
}

func WithAuthResponse(resp session.AuthResponse) TransportOption {
	return func(t *Transport) { t.authResponse = resp }
}

func WithAuthError(err error) TransportOption {
	return func(t *Transport) { t.authErr = err }
}

// WithAuthenticateFunc computes the response from the request, which lets a
// test mint tokens bound to the per-attempt nonce.
func WithAuthenticateFunc(fn func(session.AuthRequest) (session.AuthResponse, error)) TransportOption {
	return func(t *Transport) { t.authFunc = fn }
}

func WithCodeResponse(resp session.CodeResponse) TransportOption {
	return func(t *Transport) { t.codeResponse = resp }
}

func WithCodeError(err error) TransportOption {
	return func(t *Transport) { t.codeErr = err }
}

func WithRefreshResponse(resp session.AuthResponse) TransportOption {
	return func(t *Transport) { t.refreshResponse = resp }
}

func WithRefreshError(err error) TransportOption {
	return func(t *Transport) { t.refreshErr = err }
}

// WithRefreshDelay makes RefreshTokens block, so tests can pile up
// concurrent callers behind one in-flight refresh.
func WithRefreshDelay(d time.Duration) TransportOption {
	return func(t *Transport) { t.refreshDelay = d }
}

func WithLogoutError(err error) TransportOption {
	return func(t *Transport) { t.logoutErr = err }
}

func WithRegistrationOptions(options *protocol.CredentialCreation) TransportOption {
	return func(t *Transport) { t.registrationOptions = options }
}

func WithRegistrationOptionsError(err error) TransportOption {
	return func(t *Transport) { t.registrationOptsErr = err }
}

func WithRegistrationVerified(verified bool) TransportOption {
	return func(t *Transport) { t.registrationVerified = verified }
}

func WithAuthenticationOptions(options *protocol.CredentialAssertion) TransportOption {
	return func(t *Transport) { t.authenticationOptions = options }
}

func WithAuthenticationResult(resp session.AuthResponse) TransportOption {
	return func(t *Transport) { t.authenticationResult = resp }
}

func WithAuthenticationError(err error) TransportOption {
	return func(t *Transport) { t.authenticationErr = err }
}

func WithAuthenticationFunc(fn func(tempUserID, nonce string) (session.AuthResponse, error)) TransportOption {
	return func(t *Transport) { t.authenticationFunc = fn }
}

var _ = session.Transport(&Transport{})

func NewTransport(opts ...TransportOption) *Transport {
	t := &Transport{}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}

	return t
}

func (t *Transport) PreAuthCode(_ context.Context, nonce, codeChallenge string) (session.CodeResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.preAuthCodeCalls++
	t.lastPreAuthNonce = nonce
	t.lastCodeChallenge = codeChallenge
	if t.codeErr != nil {
		return session.CodeResponse{}, t.codeErr
	}

	return t.codeResponse, nil
}

func (t *Transport) Authenticate(_ context.Context, req session.AuthRequest) (session.AuthResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.authCalls++
	t.lastAuthRequest = req
	if t.authFunc != nil {
		return t.authFunc(req)
	}
	if t.authErr != nil {
		return session.AuthResponse{}, t.authErr
	}

	return t.authResponse, nil
}

func (t *Transport) RefreshTokens(_ context.Context, req session.RefreshRequest) (session.AuthResponse, error) {
	t.mu.Lock()
	t.refreshCalls++
	t.lastRefreshRequest = req
	delay := t.refreshDelay
	resp, err := t.refreshResponse, t.refreshErr
	t.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return session.AuthResponse{}, err
	}

	return resp, nil
}

func (t *Transport) Logout(_ context.Context, req session.LogoutRequest) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.logoutCalls++
	t.lastLogoutRequest = req

	return t.logoutErr
}

func (t *Transport) PasskeyRegistrationOptions(_ context.Context, accessToken, _ string) (*protocol.CredentialCreation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastBearerToken = accessToken
	if t.registrationOptsErr != nil {
		return nil, t.registrationOptsErr
	}

	return t.registrationOptions, nil
}

func (t *Transport) VerifyPasskeyRegistration(_ context.Context, accessToken, _ string, response json.RawMessage) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastBearerToken = accessToken
	t.registrationResponses = append(t.registrationResponses, response)
	if t.registrationVerifyErr != nil {
		return false, t.registrationVerifyErr
	}

	return t.registrationVerified, nil
}

func (t *Transport) PasskeyAuthenticationOptions(_ context.Context, tempUserID, nonce string) (*protocol.CredentialAssertion, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastPasskeyTempUserID = tempUserID
	t.lastPasskeyNonce = nonce
	if t.authenticationOptsErr != nil {
		return nil, t.authenticationOptsErr
	}

	return t.authenticationOptions, nil
}

func (t *Transport) VerifyPasskeyAuthentication(_ context.Context, tempUserID, nonce string, _ json.RawMessage) (session.AuthResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastPasskeyTempUserID = tempUserID
	t.lastPasskeyNonce = nonce
	if t.authenticationFunc != nil {
		return t.authenticationFunc(tempUserID, nonce)
	}
	if t.authenticationErr != nil {
		return session.AuthResponse{}, t.authenticationErr
	}

	return t.authenticationResult, nil
}

func (t *Transport) PreAuthCodeCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.preAuthCodeCalls
}

func (t *Transport) AuthenticateCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.authCalls
}

func (t *Transport) RefreshCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.refreshCalls
}

func (t *Transport) LogoutCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.logoutCalls
}

func (t *Transport) LastAuthRequest() session.AuthRequest {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.lastAuthRequest
}

func (t *Transport) LastRefreshRequest() session.RefreshRequest {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.lastRefreshRequest
}

func (t *Transport) LastLogoutRequest() session.LogoutRequest {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.lastLogoutRequest
}

func (t *Transport) RegistrationResponses() []json.RawMessage {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]json.RawMessage(nil), t.registrationResponses...)
}

func (t *Transport) LastPreAuthCode() (nonce, codeChallenge string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.lastPreAuthNonce, t.lastCodeChallenge
}

func (t *Transport) LastPasskeyAttempt() (tempUserID, nonce string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.lastPasskeyTempUserID, t.lastPasskeyNonce
}

func (t *Transport) LastBearerToken() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.lastBearerToken
}
