package sessionmock

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/gizmette/auth-client/pkg/session"
)

type AuthenticatorOption func(*Authenticator)

// Authenticator fakes the platform authenticator bridge.
type Authenticator struct {
	mu sync.Mutex

	createResponse json.RawMessage
	createErr      error
	getResponse    json.RawMessage
	getErr         error

	createCalls int
	getCalls    int
}

func WithCreateResponse(response json.RawMessage) AuthenticatorOption {
	return func(a *Authenticator) { a.createResponse = response }
}

func WithCreateError(err error) AuthenticatorOption {
	return func(a *Authenticator) { a.createErr = err }
}

func WithGetResponse(response json.RawMessage) AuthenticatorOption {
	return func(a *Authenticator) { a.getResponse = response }
}

func WithGetError(err error) AuthenticatorOption {
	return func(a *Authenticator) { a.getErr = err }
}

var _ = session.Authenticator(&Authenticator{})

func NewAuthenticator(opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

func (a *Authenticator) CreateCredential(_ context.Context, _ *protocol.CredentialCreation) (json.RawMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.createCalls++
	if a.createErr != nil {
		return nil, a.createErr
	}

	return a.createResponse, nil
}

func (a *Authenticator) GetAssertion(_ context.Context, _ *protocol.CredentialAssertion) (json.RawMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.getCalls++
	if a.getErr != nil {
		return nil, a.getErr
	}

	return a.getResponse, nil
}

func (a *Authenticator) CreateCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.createCalls
}

func (a *Authenticator) GetCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.getCalls
}
