// Package auth verifies identity-provider access tokens. Tokens are HS256
// JWTs whose subject is the provider user id; the email and display name are
// read from the standard provider claims.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/tbourn/fallfest-referrals/internal/domain"
)

var (
	// ErrNoToken is returned when no bearer token is present.
	ErrNoToken = errors.New("missing bearer token")
	// ErrInvalidToken is returned for tokens that fail verification.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrNotConfigured is returned when no signing secret is set.
	ErrNotConfigured = errors.New("token verification is not configured")
)

// Claims is the subset of provider claims the service reads.
type Claims struct {
	Email        string       `json:"email,omitempty"`
	UserMetadata UserMetadata `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// UserMetadata carries profile fields set at sign-up.
type UserMetadata struct {
	FullName string `json:"full_name,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Verifier checks HS256 tokens against a shared secret.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier returns a Verifier for secret. An empty secret yields a
// Verifier that rejects every token with ErrNotConfigured.
func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// Configured reports whether the verifier has a secret.
func (v *Verifier) Configured() bool { return v != nil && len(v.secret) > 0 }

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", ErrNoToken
	}
	tok := strings.TrimSpace(header[7:])
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}

// Verify parses and validates raw, returning the caller identity.
func (v *Verifier) Verify(raw string) (domain.Identity, error) {
	if !v.Configured() {
		return domain.Identity{}, ErrNotConfigured
	}
	var claims Claims
	tok, err := v.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil || !tok.Valid {
		return domain.Identity{}, ErrInvalidToken
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return domain.Identity{}, ErrInvalidToken
	}
	name := claims.UserMetadata.FullName
	if strings.TrimSpace(name) == "" {
		name = claims.UserMetadata.Name
	}
	return domain.Identity{
		UserID: sub,
		Email:  strings.TrimSpace(claims.Email),
		Name:   strings.TrimSpace(name),
	}, nil
}

// Issue signs a token for id valid for ttl. Used by local tooling and tests.
func (v *Verifier) Issue(id domain.Identity, ttl time.Duration) (string, error) {
	if !v.Configured() {
		return "", ErrNotConfigured
	}
	now := time.Now()
	claims := Claims{
		Email:        id.Email,
		UserMetadata: UserMetadata{FullName: id.Name},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
