package transport_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gizmette/auth-client/internal/serviceerr"
	"github.com/gizmette/auth-client/pkg/session"
	"github.com/gizmette/auth-client/pkg/transport"
)

const clientID = "client-abc"

func newClient(t *testing.T, handler http.Handler) *transport.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := transport.New(server.URL, clientID)
	require.NoError(t, err)

	return client
}

func TestPreAuthCode(t *testing.T) {
	var gotBody map[string]any
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/code", r.URL.Path)
		assert.Equal(t, clientID, r.Header.Get("X-Auth-ClientId"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_, _ = w.Write([]byte(`{"data":{"code":"server-code"}}`))
	}))

	resp, err := client.PreAuthCode(t.Context(), "nonce-1", "challenge-1")

	require.NoError(t, err)
	assert.True(t, resp.Status)
	assert.Equal(t, "server-code", resp.Code)
	assert.Equal(t, map[string]any{
		"type":           "code",
		"nonce":          "nonce-1",
		"code_challenge": "challenge-1",
	}, gotBody)
}

func TestPreAuthCodeWithoutCode(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))

	resp, err := client.PreAuthCode(t.Context(), "nonce-1", "challenge-1")

	require.NoError(t, err)
	assert.False(t, resp.Status)
}

func TestAuthenticate(t *testing.T) {
	var gotBody map[string]any
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/authenticate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_, _ = w.Write([]byte(`{"data":{"idToken":"id-1","accessToken":"access-1","refreshToken":"refresh-1","userId":"user-1"}}`))
	}))

	resp, err := client.Authenticate(t.Context(), session.AuthRequest{
		Type:         "code",
		Username:     "ada",
		Password:     "hunter2",
		Nonce:        "nonce-1",
		Code:         "server-code",
		CodeVerifier: "verifier",
		Domain:       "gizmette.com",
	})

	require.NoError(t, err)
	assert.Equal(t, session.AuthResponse{
		Status:       true,
		IDToken:      "id-1",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		UserID:       "user-1",
	}, resp)

	assert.Equal(t, "ada", gotBody["username"])
	assert.Equal(t, "server-code", gotBody["code"])
	assert.Equal(t, "verifier", gotBody["code_verifier"])
}

func TestAuthenticateRejected(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))

	resp, err := client.Authenticate(t.Context(), session.AuthRequest{Username: "ada"})

	require.NoError(t, err, "an application-level rejection is not a transport error")
	assert.False(t, resp.Status)
}

func TestRefreshTokens(t *testing.T) {
	var gotBody map[string]any
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/refresh", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_, _ = w.Write([]byte(`{"data":{"accessToken":"access-2","refreshToken":"refresh-2"}}`))
	}))

	resp, err := client.RefreshTokens(t.Context(), session.RefreshRequest{
		UserID:       "user-1",
		RefreshToken: "refresh-1",
	})

	require.NoError(t, err)
	assert.True(t, resp.Status)
	assert.Equal(t, "access-2", resp.AccessToken)
	assert.Equal(t, "refresh-2", resp.RefreshToken)
	assert.Equal(t, "refresh_token", gotBody["type"])
	assert.Equal(t, "user-1", gotBody["userId"])
}

func TestLogout(t *testing.T) {
	var gotBody map[string]any
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/logout", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_, _ = w.Write([]byte(`{"data":{}}`))
	}))

	err := client.Logout(t.Context(), session.LogoutRequest{
		UserID:  "user-1",
		IDToken: "id-1",
		Domain:  "gizmette.com",
	})

	require.NoError(t, err)
	assert.Equal(t, "user-1", gotBody["userId"])
	assert.Equal(t, "id-1", gotBody["idToken"])
}

func TestNonSuccessStatusIsTransportFailure(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))

	_, err := client.Authenticate(t.Context(), session.AuthRequest{})
	assert.ErrorIs(t, err, serviceerr.ErrTransportFailure)

	err = client.Logout(t.Context(), session.LogoutRequest{})
	assert.ErrorIs(t, err, serviceerr.ErrTransportFailure)
}

func TestPasskeyRegistrationCeremony(t *testing.T) {
	var requests []map[string]any
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/graphql", r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		assert.Equal(t, clientID, r.Header.Get("X-Auth-ClientId"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		requests = append(requests, body)

		switch len(requests) {
		case 1:
			_, _ = w.Write([]byte(`{"data":{"getPasskeyRegistrationOptions":{"publicKey":{"challenge":"Y2hhbGxlbmdl","rp":{"name":"gizmette"},"user":{"name":"ada","displayName":"Ada","id":"dXNlci0x"},"pubKeyCredParams":[]}}}}`))
		default:
			_, _ = w.Write([]byte(`{"data":{"verifyPasskeyRegistration":{"status":true}}}`))
		}
	}))

	options, err := client.PasskeyRegistrationOptions(t.Context(), "access-1", "corr-1")
	require.NoError(t, err)
	require.NotNil(t, options)
	assert.Equal(t, "gizmette", options.Response.RelyingParty.Name)

	verified, err := client.VerifyPasskeyRegistration(t.Context(), "access-1", "corr-1", json.RawMessage(`{"id":"cred-1"}`))
	require.NoError(t, err)
	assert.True(t, verified)

	require.Len(t, requests, 2)
	variables, ok := requests[1]["variables"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, clientID, variables["clientId"])
	assert.Equal(t, "corr-1", variables["id"])
}

func TestPasskeyAuthenticationCeremony(t *testing.T) {
	var requests []map[string]any
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"), "authentication runs before a session exists")

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		requests = append(requests, body)

		switch len(requests) {
		case 1:
			_, _ = w.Write([]byte(`{"data":{"getPasskeyAuthenticationOptions":{"publicKey":{"challenge":"Y2hhbGxlbmdl"}}}}`))
		default:
			_, _ = w.Write([]byte(`{"data":{"verifyPasskeyAuthentication":{"status":true,"idToken":"id-1","accessToken":"access-1","refreshToken":"refresh-1","userId":"user-1"}}}`))
		}
	}))

	options, err := client.PasskeyAuthenticationOptions(t.Context(), "temp-1", "nonce-1")
	require.NoError(t, err)
	require.NotNil(t, options)

	resp, err := client.VerifyPasskeyAuthentication(t.Context(), "temp-1", "nonce-1", json.RawMessage(`{"id":"cred-1"}`))
	require.NoError(t, err)
	assert.True(t, resp.Status)
	assert.Equal(t, "id-1", resp.IDToken)
	assert.Equal(t, "user-1", resp.UserID)

	require.Len(t, requests, 2)
	variables, ok := requests[1]["variables"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "temp-1", variables["id"])
	assert.Equal(t, "nonce-1", variables["nonce"])
}

func TestGraphQLMissingMethodIsTransportFailure(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))

	_, err := client.PasskeyAuthenticationOptions(t.Context(), "temp-1", "nonce-1")
	assert.ErrorIs(t, err, serviceerr.ErrTransportFailure)
}
