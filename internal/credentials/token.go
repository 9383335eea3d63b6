package credentials

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken is returned when inspecting an empty token.
var ErrNoToken = errors.New("no token stored")

// TokenInfo is the decoded view of a stored access token. The client
// treats tokens as opaque for authentication purposes; decoding is
// display and diagnostics only, so the signature is not verified.
type TokenInfo struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token's exp claim has passed.
func (i *TokenInfo) Expired() bool {
	return !i.ExpiresAt.IsZero() && time.Now().After(i.ExpiresAt)
}

// InspectToken decodes a JWT access token without verifying its
// signature. Verification is the server's job; the client only reads the
// claims to show session details.
func InspectToken(raw string) (*TokenInfo, error) {
	if raw == "" {
		return nil, ErrNoToken
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}

	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	info := &TokenInfo{}

	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}

	return info, nil
}
