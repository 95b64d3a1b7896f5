// Package auth provides JWT token issuing/verification, bcrypt password
// hashing, and the middleware that resolves a bearer token to a user.
//
// AUTHENTICATION FLOW:
//  1. POST /auth/register → account created with a bcrypt password hash
//  2. POST /auth/login → credentials verified, server issues a signed JWT
//  3. Client sends "Authorization: Bearer <token>" on protected requests
//  4. Middleware validates the signature and expiry, extracts the username
//     from the "sub" claim, and loads the user into the request context
//
// Tokens are stateless: there is no server-side session or revocation
// list. A token stays valid until its embedded expiry regardless of any
// account change after issue time.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "gallery"

// DefaultTokenTTL is the access-token lifetime used when no TTL is
// configured. Matches the 30-minute window the frontend expects.
const DefaultTokenTTL = 30 * time.Minute

// TokenService signs and verifies JWT access tokens.
//
// It holds the HMAC secret used for both operations — HS256 is symmetric,
// so the same key signs and verifies. The secret should be at least 32
// bytes of random data in production (JWT_SECRET=$(openssl rand -hex 32)).
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and token
// lifetime. A non-positive ttl falls back to DefaultTokenTTL.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// claims embeds jwt.RegisteredClaims; we use the standard "sub" claim to
// carry the username the token was issued for.
type claims struct {
	jwt.RegisteredClaims
}

// Issue creates and signs an access token for the given username, expiring
// at issue time + the configured TTL.
func (s *TokenService) Issue(username string) (string, error) {
	return s.IssueWithTTL(username, s.ttl)
}

// IssueWithTTL creates a token with an explicit lifetime. Used by tests to
// produce already-expired or long-lived tokens.
func (s *TokenService) IssueWithTTL(username string, ttl time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Verify parses and validates a token string and returns the username from
// the "sub" claim.
//
// The jwt library checks the signature, the expiry, and the issuer.
// Passing jwt.WithValidMethods pins the algorithm to HS256 — without it an
// attacker could attempt an algorithm-confusion attack with a token signed
// using "none".
func (s *TokenService) Verify(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
