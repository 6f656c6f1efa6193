// Package auth issues and checks the credentials that identify a user to the
// sync API.
//
// HOW A REQUEST IS AUTHENTICATED:
//  1. POST /api/auth/login verifies email + password (bcrypt, password.go)
//     and returns a signed access token (this file).
//  2. Devices send it back on every sync call as "Authorization: Bearer <token>"
//     (browsers may use the "token" cookie instead).
//  3. RequireAuth (middleware.go) validates the token and puts the user ID in
//     the request context. Handlers read it with UserIDFromContext.
//
// The sync engine never sees a token: it only receives the user ID.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "spacesync"

// MinSecretLength is the shortest HMAC secret NewTokenService accepts.
const MinSecretLength = 16

// TokenService signs and validates HS256 JWTs.
//
// WHY HS256?
// There is exactly one party that issues tokens and one that checks them:
// this server. A shared secret is enough; public-key algorithms only pay off
// when third parties verify tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService returns a TokenService issuing tokens valid for ttl.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", MinSecretLength)
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token ttl must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Token is an issued access token.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Generate issues a token for userID using the configured lifetime.
func (s *TokenService) Generate(userID string) (Token, error) {
	return s.generate(userID, s.ttl)
}

func (s *TokenService) generate(userID string, ttl time.Duration) (Token, error) {
	now := s.now()
	exp := now.Add(ttl)

	c := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		Issuer:    issuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("auth: signing token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

// ErrTokenExpired is returned by Validate for a well-formed but expired token.
var ErrTokenExpired = errors.New("auth: token expired")

// Validate checks signature, algorithm, issuer and expiry, and returns the
// user ID in the subject claim.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		// Pinning the algorithm blocks "alg: none" and RS/HS confusion.
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid {
		return "", errors.New("auth: invalid token")
	}
	if c.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}
	return c.Subject, nil
}
