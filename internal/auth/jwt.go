// Package auth provides JWT session tokens, password hashing, and the
// middleware that authenticates API requests.
//
// SESSION FLOW:
// 1. User registers or logs in (email/password or Google sign-in)
// 2. Server issues a JWT bound to the user ID, stored in an HttpOnly cookie
//    and echoed in the response body for non-browser clients
// 3. On subsequent calls, middleware reads the Authorization header or the
//    cookie, validates the JWT, and sets the userID in the request context
//
// JWT is stateless — the server stores no session data. All information
// needed (userID, expiry) is inside the signed token, and the HMAC signature
// ensures nobody can tamper with it without the secret key.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is how long a session credential stays valid. After expiry the
// user must log in again; there is no refresh flow.
const TokenTTL = 24 * time.Hour

const issuer = "learnpath"

// TokenService handles JWT creation and validation. It holds the HMAC
// secret used to sign and verify tokens — the same secret must be used for
// both operations.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims embeds jwt.RegisteredClaims; the "sub" (Subject) claim carries the
// internal user ID.
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a session token for the given userID,
// valid for TokenTTL.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, TokenTTL)
}

// GenerateWithDuration creates a token with a custom expiry. Used by tests
// to produce already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
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

// Validate parses and verifies a JWT string, returning the userID from the
// "sub" claim.
//
// The jwt library checks the signature, the expiry, the issuer, and — via
// WithValidMethods — that the algorithm really is HS256, which blocks
// algorithm-confusion attacks where an attacker submits a token signed
// with "none".
func (s *TokenService) Validate(tokenStr string) (string, error) {
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
