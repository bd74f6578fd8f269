// Package tokentest mints signed tokens for tests.
package tokentest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"
)

type Issuer struct {
	Name      string
	PublicPEM []byte

	key    *rsa.PrivateKey
	signer jose.Signer
}

func NewIssuer(t *testing.T, name string) *Issuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: key}, nil)
	require.NoError(t, err)

	return &Issuer{
		Name:      name,
		PublicPEM: pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}),
		key:       key,
		signer:    signer,
	}
}

type TokenOptions struct {
	Subject   string
	Nonce     string
	Username  string
	AuthType  string
	Audience  string
	Issuer    string        // defaults to the issuer name
	ExpiresIn time.Duration // defaults to one hour, negative mints an expired token
	NoExpiry  bool
}

// Sign mints a signed token with the given claims.
func (i *Issuer) Sign(t *testing.T, opts TokenOptions) string {
	t.Helper()

	issuer := opts.Issuer
	if issuer == "" {
		issuer = i.Name
	}
	expiresIn := opts.ExpiresIn
	if expiresIn == 0 {
		expiresIn = time.Hour
	}

	standard := jwt.Claims{
		Subject:  opts.Subject,
		Issuer:   issuer,
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}
	if opts.Audience != "" {
		standard.Audience = jwt.Audience{opts.Audience}
	}
	if !opts.NoExpiry {
		standard.Expiry = jwt.NewNumericDate(time.Now().Add(expiresIn))
	}

	custom := map[string]any{
		"_nonce":    opts.Nonce,
		"username":  opts.Username,
		"auth_type": opts.AuthType,
	}

	raw, err := jwt.Signed(i.signer).Claims(standard).Claims(custom).Serialize()
	require.NoError(t, err)

	return raw
}
