package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey int

const (
	userIDKey contextKey = iota
	tokenKey
)

var errMissingSubject = errors.New("token has no subject")

type Middleware struct {
	secretKey []byte
}

func NewMiddleware(secret string) *Middleware {
	return &Middleware{
		secretKey: []byte(secret),
	}
}

// UserID returns the authenticated user, if any.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// Token returns the raw bearer token the request was authenticated with.
func Token(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}

// WithUserID marks ctx as authenticated for userID without a token.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// Parse validates an HMAC-signed token and returns its subject.
func (m *Middleware) Parse(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenSignatureInvalid
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", errMissingSubject
	}
	return sub, nil
}

func (m *Middleware) ValidateToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, "Missing Authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, "Invalid Authorization header format")
			return
		}

		tokenString := parts[1]

		userID, err := m.Parse(tokenString)
		if err != nil {
			slog.Warn("Invalid token attempt", "error", err)
			writeError(w, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = context.WithValue(ctx, tokenKey, tokenString)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = fmt.Fprintf(w, `{"error":%q}`, msg)
}
