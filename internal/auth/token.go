package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IssueToken signs an HS256 token for userID. It exists for local
// development; production tokens come from the identity provider.
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errMissingSubject
	}
	if secret == "" {
		return "", errors.New("empty signing secret")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  userID,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
