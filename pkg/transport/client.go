// Package transport implements the HTTP and GraphQL client of the identity
// provider endpoints consumed by the session machine.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/gizmette/auth-client/internal/serviceerr"
	"github.com/gizmette/auth-client/pkg/session"
)

const headerClientID = "X-Auth-ClientId"

const defaultTimeout = 30 * time.Second

// GraphQL documents for the passkey ceremonies. The server resolves each
// mutation under its own name inside the data envelope.
const (
	queryRegistrationOptions = `mutation getPasskeyRegistrationOptions($clientId: String!, $id: String!) {
  getPasskeyRegistrationOptions(clientId: $clientId, id: $id)
}`
	queryVerifyRegistration = `mutation verifyPasskeyRegistration($clientId: String!, $id: String!, $response: JSON!) {
  verifyPasskeyRegistration(clientId: $clientId, id: $id, response: $response) {
    status
  }
}`
	queryAuthenticationOptions = `mutation getPasskeyAuthenticationOptions($clientId: String!, $id: String!, $nonce: String!) {
  getPasskeyAuthenticationOptions(clientId: $clientId, id: $id, nonce: $nonce)
}`
	queryVerifyAuthentication = `mutation verifyPasskeyAuthentication($clientId: String!, $id: String!, $nonce: String!, $response: JSON!) {
  verifyPasskeyAuthentication(clientId: $clientId, id: $id, nonce: $nonce, response: $response) {
    status
    idToken
    accessToken
    refreshToken
    userId
  }
}`
)

type Option func(*Client)

// WithHTTPClient replaces the default client. The caller is responsible for
// configuring a cookie jar when the server relies on session cookies.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.http = httpClient }
}

// Client talks to the identity provider REST and GraphQL endpoints. Every
// request carries the consumer's client id header and shares one cookie jar,
// matching a browser's credentialed fetch.
type Client struct {
	endpoint string
	clientID string
	http     *http.Client
}

var _ = session.Transport(&Client{})

func New(endpoint, clientID string, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating a cookie jar: %w", err)
	}

	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		clientID: clientID,
		http: &http.Client{
			Jar:     jar,
			Timeout: defaultTimeout,
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

type preAuthCodeRequest struct {
	Type          string `json:"type"`
	Nonce         string `json:"nonce"`
	CodeChallenge string `json:"code_challenge"`
}

type codePayload struct {
	Code string `json:"code"`
}

func (c *Client) PreAuthCode(ctx context.Context, nonce, codeChallenge string) (session.CodeResponse, error) {
	var payload codePayload
	err := c.post(ctx, "code", preAuthCodeRequest{
		Type:          "code",
		Nonce:         nonce,
		CodeChallenge: codeChallenge,
	}, &payload)
	if err != nil {
		return session.CodeResponse{}, err
	}

	return session.CodeResponse{
		Status: payload.Code != "",
		Code:   payload.Code,
	}, nil
}

type tokenPayload struct {
	IDToken      string `json:"idToken"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
}

func (c *Client) Authenticate(ctx context.Context, req session.AuthRequest) (session.AuthResponse, error) {
	var payload tokenPayload
	if err := c.post(ctx, "authenticate", req, &payload); err != nil {
		return session.AuthResponse{}, err
	}

	return session.AuthResponse{
		Status:       payload.IDToken != "",
		IDToken:      payload.IDToken,
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		UserID:       payload.UserID,
	}, nil
}

func (c *Client) RefreshTokens(ctx context.Context, req session.RefreshRequest) (session.AuthResponse, error) {
	body := struct {
		Type string `json:"type"`
		session.RefreshRequest
	}{Type: "refresh_token", RefreshRequest: req}

	var payload tokenPayload
	if err := c.post(ctx, "refresh", body, &payload); err != nil {
		return session.AuthResponse{}, err
	}

	return session.AuthResponse{
		Status:       payload.AccessToken != "",
		IDToken:      payload.IDToken,
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		UserID:       payload.UserID,
	}, nil
}

func (c *Client) Logout(ctx context.Context, req session.LogoutRequest) error {
	return c.post(ctx, "logout", req, nil)
}

func (c *Client) PasskeyRegistrationOptions(ctx context.Context, accessToken, correlationID string) (*protocol.CredentialCreation, error) {
	var options protocol.CredentialCreation
	err := c.graphQL(ctx, accessToken, queryRegistrationOptions, "getPasskeyRegistrationOptions", map[string]any{
		"clientId": c.clientID,
		"id":       correlationID,
	}, &options)
	if err != nil {
		return nil, err
	}

	return &options, nil
}

type verificationPayload struct {
	Status bool `json:"status"`
}

func (c *Client) VerifyPasskeyRegistration(ctx context.Context, accessToken, correlationID string, response json.RawMessage) (bool, error) {
	var payload verificationPayload
	err := c.graphQL(ctx, accessToken, queryVerifyRegistration, "verifyPasskeyRegistration", map[string]any{
		"clientId": c.clientID,
		"id":       correlationID,
		"response": response,
	}, &payload)
	if err != nil {
		return false, err
	}

	return payload.Status, nil
}

func (c *Client) PasskeyAuthenticationOptions(ctx context.Context, tempUserID, nonce string) (*protocol.CredentialAssertion, error) {
	var options protocol.CredentialAssertion
	err := c.graphQL(ctx, "", queryAuthenticationOptions, "getPasskeyAuthenticationOptions", map[string]any{
		"clientId": c.clientID,
		"id":       tempUserID,
		"nonce":    nonce,
	}, &options)
	if err != nil {
		return nil, err
	}

	return &options, nil
}

type passkeyAuthPayload struct {
	Status       bool   `json:"status"`
	IDToken      string `json:"idToken"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
}

func (c *Client) VerifyPasskeyAuthentication(ctx context.Context, tempUserID, nonce string, response json.RawMessage) (session.AuthResponse, error) {
	var payload passkeyAuthPayload
	err := c.graphQL(ctx, "", queryVerifyAuthentication, "verifyPasskeyAuthentication", map[string]any{
		"clientId": c.clientID,
		"id":       tempUserID,
		"nonce":    nonce,
		"response": response,
	}, &payload)
	if err != nil {
		return session.AuthResponse{}, err
	}

	return session.AuthResponse{
		Status:       payload.Status,
		IDToken:      payload.IDToken,
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		UserID:       payload.UserID,
	}, nil
}

// post sends a JSON body and decodes the data envelope of a 200 response
// into out. Any transport or protocol level failure maps to
// serviceerr.ErrTransportFailure.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/"+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerClientID, c.clientID)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Join(serviceerr.ErrTransportFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Join(serviceerr.ErrTransportFailure, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return errors.Join(serviceerr.ErrTransportFailure, fmt.Errorf("decoding response: %w", err))
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return errors.Join(serviceerr.ErrTransportFailure, fmt.Errorf("decoding response data: %w", err))
	}

	return nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// graphQL posts a query document and unwraps data.<method> into out.
func (c *Client) graphQL(ctx context.Context, bearer, query, method string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/graphql", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerClientID, c.clientID)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Join(serviceerr.ErrTransportFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Join(serviceerr.ErrTransportFailure, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var envelope struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return errors.Join(serviceerr.ErrTransportFailure, fmt.Errorf("decoding response: %w", err))
	}

	payload, ok := envelope.Data[method]
	if !ok || len(payload) == 0 {
		return errors.Join(serviceerr.ErrTransportFailure, fmt.Errorf("response is missing %q", method))
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return errors.Join(serviceerr.ErrTransportFailure, fmt.Errorf("decoding response data: %w", err))
	}

	return nil
}
