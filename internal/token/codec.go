// Package token decodes and verifies the signed tokens issued by the
// identity provider. The codec is stateless apart from a cache of already
// verified claims, keyed by the raw token and expiring with the token itself.
package token

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	gocache "github.com/patrickmn/go-cache"

	"github.com/gizmette/auth-client/internal/serviceerr"
)

// Claim names used by the identity provider.
const (
	ClaimNonce    = "_nonce"
	ClaimUsername = "username"
	ClaimAuthType = "auth_type"
)

var signatureAlgs = []jose.SignatureAlgorithm{jose.RS256}

// Claims is the verified (or, via Decode, merely decoded) content of a token.
type Claims struct {
	Subject   string
	Nonce     string
	Issuer    string
	Audience  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	AuthType  string
	Username  string
}

type Codec struct {
	issuer    string
	publicKey *rsa.PublicKey
	verified  *gocache.Cache
}

// NewCodec builds a codec for tokens signed by the given issuer. The key is
// the issuer's public key in PEM-encoded SPKI form.
func NewCodec(issuer string, publicKeyPEM []byte) (*Codec, error) {
	block, _ := pem.Decode(publicKeyPEM)
	if block == nil {
		return nil, errors.New("decoding public key PEM block")
	}

	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}

	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unexpected public key type %T", key)
	}

	return &Codec{
		issuer:    issuer,
		publicKey: rsaKey,
		verified:  gocache.New(5*time.Minute, 10*time.Minute),
	}, nil
}

// Verify checks the token signature against the issuer public key, the
// issuer claim and the expiry, and returns the claims. Every failure mode
// maps to serviceerr.ErrInvalidToken; callers must treat it like an expired
// token, never as a partial success.
func (c *Codec) Verify(raw string) (Claims, error) {
	if cached, ok := c.verified.Get(raw); ok {
		return cached.(Claims), nil
	}

	tok, err := jwt.ParseSigned(raw, signatureAlgs)
	if err != nil {
		return Claims{}, errors.Join(serviceerr.ErrInvalidToken, err)
	}

	var standard jwt.Claims
	var custom customClaims
	if err := tok.Claims(c.publicKey, &standard, &custom); err != nil {
		return Claims{}, errors.Join(serviceerr.ErrInvalidToken, err)
	}

	if err := standard.Validate(jwt.Expected{Issuer: c.issuer, Time: time.Now()}); err != nil {
		return Claims{}, errors.Join(serviceerr.ErrInvalidToken, err)
	}

	if standard.Expiry == nil {
		return Claims{}, errors.Join(serviceerr.ErrInvalidToken, errors.New("missing exp claim"))
	}

	claims := makeClaims(standard, custom)
	c.verified.Set(raw, claims, time.Until(claims.ExpiresAt))

	return claims, nil
}

// Decode extracts claims without verifying the signature. It exists for
// best-effort reads of known-stale tokens, such as recovering a user id for
// logout, and must never feed a trust decision.
func (c *Codec) Decode(raw string) (Claims, error) {
	tok, err := jwt.ParseSigned(raw, signatureAlgs)
	if err != nil {
		return Claims{}, errors.Join(serviceerr.ErrInvalidToken, err)
	}

	var standard jwt.Claims
	var custom customClaims
	if err := tok.UnsafeClaimsWithoutVerification(&standard, &custom); err != nil {
		return Claims{}, errors.Join(serviceerr.ErrInvalidToken, err)
	}

	return makeClaims(standard, custom), nil
}

type customClaims struct {
	Nonce    string `json:"_nonce"`
	Username string `json:"username"`
	AuthType string `json:"auth_type"`
}

func makeClaims(standard jwt.Claims, custom customClaims) Claims {
	claims := Claims{
		Subject:  standard.Subject,
		Nonce:    custom.Nonce,
		Issuer:   standard.Issuer,
		AuthType: custom.AuthType,
		Username: custom.Username,
	}
	if len(standard.Audience) > 0 {
		claims.Audience = standard.Audience[0]
	}
	if standard.IssuedAt != nil {
		claims.IssuedAt = standard.IssuedAt.Time()
	}
	if standard.Expiry != nil {
		claims.ExpiresAt = standard.Expiry.Time()
	}

	return claims
}
