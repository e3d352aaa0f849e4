// ABOUTME: JWT issuance and parsing for the member session cookie.
// ABOUTME: Always enforces HS256 algorithm and expiration; never call jwt.Parse directly.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionCookie is the name of the cookie that carries the session token.
const SessionCookie = "board_session"

// SessionClaims holds the claims embedded in a session token. The standard
// "sub" claim carries the member's login ID and "jti" a per-login session ID.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// MemberID returns the login ID of the session's member.
func (c *SessionClaims) MemberID() string { return c.Subject }

// IssueSessionToken creates a signed HS256 session token for memberID.
func IssueSessionToken(secret []byte, memberID string, ttl time.Duration) (string, error) {
	if memberID == "" {
		return "", errors.New("issue session token: empty member id")
	}
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   memberID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// ParseSessionToken validates and parses an HS256 session token.
// Returns an error if the token is expired, uses a wrong algorithm, lacks a
// subject, or is otherwise invalid.
func ParseSessionToken(tokenStr string, secret []byte) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("parse session token: missing subject")
	}
	return claims, nil
}
