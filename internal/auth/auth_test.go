package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-bff/internal/storage"
)

const secret = "test-secret"

func protected(t *testing.T, header string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var seen string
	h := NewMiddleware(secret).ValidateToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserID(r.Context())
		assert.NotEmpty(t, Token(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func TestValidateTokenAcceptsIssuedToken(t *testing.T) {
	tok, err := IssueToken(secret, "u42", time.Hour)
	require.NoError(t, err)

	rec, user := protected(t, "Bearer "+tok)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u42", user)
}

func TestValidateTokenRejects(t *testing.T) {
	wrongKey, _ := IssueToken("other-secret", "u42", time.Hour)
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte(secret))
	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).SignedString([]byte(secret))
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "u42"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	for name, header := range map[string]string{
		"missing":   "",
		"scheme":    "Token abc",
		"garbage":   "Bearer abc",
		"wrong key": "Bearer " + wrongKey,
		"expired":   "Bearer " + expired,
		"no sub":    "Bearer " + noSub,
		"alg none":  "Bearer " + none,
	} {
		t.Run(name, func(t *testing.T) {
			rec, _ := protected(t, header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestIssueTokenValidation(t *testing.T) {
	_, err := IssueToken(secret, "", time.Hour)
	assert.Error(t, err)
	_, err = IssueToken("", "u1", time.Hour)
	assert.Error(t, err)
}

func TestVaultRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	v := NewVault(kv)
	v.n = 1 << 10 // keep the test fast

	_, err := v.Load(ctx, "pw")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, v.Save(ctx, "pw", "token-123"))
	got, err := v.Load(ctx, "pw")
	require.NoError(t, err)
	assert.Equal(t, "token-123", got)

	raw, err := kv.Get(ctx, VaultKey)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "token-123")

	_, err = v.Load(ctx, "wrong")
	assert.ErrorIs(t, err, ErrWrongPassphrase)

	require.NoError(t, v.Forget(ctx))
	_, err = v.Load(ctx, "pw")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestVaultRequiresPassphrase(t *testing.T) {
	assert.Error(t, NewVault(storage.NewMemory()).Save(context.Background(), "", "t"))
}
