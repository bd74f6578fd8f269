package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gizmette/auth-client/internal/serviceerr"
	"github.com/gizmette/auth-client/internal/token"
	"github.com/gizmette/auth-client/internal/token/tokentest"
)

const testIssuer = "gizmette.com"

func TestCodec_Verify(t *testing.T) {
	issuer := tokentest.NewIssuer(t, testIssuer)
	other := tokentest.NewIssuer(t, testIssuer)

	codec, err := token.NewCodec(testIssuer, issuer.PublicPEM)
	require.NoError(t, err)

	tests := []struct {
		name    string
		raw     string
		wantErr bool
		wantSub string
	}{
		{
			name:    "valid token",
			raw:     issuer.Sign(t, tokentest.TokenOptions{Subject: "user-1", Nonce: "nonce-1", Username: "alice"}),
			wantSub: "user-1",
		},
		{
			name:    "expired token",
			raw:     issuer.Sign(t, tokentest.TokenOptions{Subject: "user-1", ExpiresIn: -time.Minute}),
			wantErr: true,
		},
		{
			name:    "wrong issuer claim",
			raw:     issuer.Sign(t, tokentest.TokenOptions{Subject: "user-1", Issuer: "evil.example.com"}),
			wantErr: true,
		},
		{
			name:    "missing expiry",
			raw:     issuer.Sign(t, tokentest.TokenOptions{Subject: "user-1", NoExpiry: true}),
			wantErr: true,
		},
		{
			name:    "signed by a different key",
			raw:     other.Sign(t, tokentest.TokenOptions{Subject: "user-1"}),
			wantErr: true,
		},
		{
			name:    "not a token at all",
			raw:     "definitely-not-a-jwt",
			wantErr: true,
		},
		{
			name:    "empty string",
			raw:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := codec.Verify(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, serviceerr.ErrInvalidToken)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantSub, claims.Subject)
			assert.Equal(t, testIssuer, claims.Issuer)
		})
	}
}

func TestCodec_VerifyExtractsClaims(t *testing.T) {
	issuer := tokentest.NewIssuer(t, testIssuer)
	codec, err := token.NewCodec(testIssuer, issuer.PublicPEM)
	require.NoError(t, err)

	raw := issuer.Sign(t, tokentest.TokenOptions{
		Subject:  "user-42",
		Nonce:    "attempt-nonce",
		Username: "bob",
		AuthType: "code",
		Audience: "client-1",
	})

	claims, err := codec.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.Subject)
	assert.Equal(t, "attempt-nonce", claims.Nonce)
	assert.Equal(t, "bob", claims.Username)
	assert.Equal(t, "code", claims.AuthType)
	assert.Equal(t, "client-1", claims.Audience)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, time.Minute)

	// second verification is served from the cache and yields the same claims
	again, err := codec.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, claims, again)
}

func TestCodec_Decode(t *testing.T) {
	issuer := tokentest.NewIssuer(t, testIssuer)

	// codec is built with a key that did NOT sign the token: Decode still works
	stranger := tokentest.NewIssuer(t, testIssuer)
	codec, err := token.NewCodec(testIssuer, stranger.PublicPEM)
	require.NoError(t, err)

	raw := issuer.Sign(t, tokentest.TokenOptions{Subject: "user-9", ExpiresIn: -time.Hour})

	claims, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-9", claims.Subject)

	_, err = codec.Verify(raw)
	require.ErrorIs(t, err, serviceerr.ErrInvalidToken)

	_, err = codec.Decode("garbage")
	require.ErrorIs(t, err, serviceerr.ErrInvalidToken)
}

func TestNewCodec_BadKey(t *testing.T) {
	_, err := token.NewCodec(testIssuer, []byte("not a pem"))
	require.Error(t, err)

	_, err = token.NewCodec(testIssuer, []byte("-----BEGIN PUBLIC KEY-----\nAAAA\n-----END PUBLIC KEY-----"))
	require.Error(t, err)
}
