package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	a := New("test-secret")

	token, err := a.GenerateToken("ci-runner", time.Hour)
	require.NoError(t, err)

	claims, err := a.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ci-runner", claims.UserID)
	assert.Equal(t, "ci-runner", claims.Subject)
	assert.Equal(t, issuer, claims.Issuer)
}

func TestGenerateToken_NoSecret(t *testing.T) {
	_, err := New("").GenerateToken("x", time.Hour)
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestParseToken_Rejects(t *testing.T) {
	a := New("test-secret")

	t.Run("wrong secret", func(t *testing.T) {
		token, err := New("other-secret").GenerateToken("x", time.Hour)
		require.NoError(t, err)
		_, err = a.ParseToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := a.GenerateToken("x", time.Minute)
		require.NoError(t, err)

		later := New("test-secret")
		later.now = func() time.Time { return time.Now().Add(time.Hour) }
		_, err = later.ParseToken(token)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("foreign issuer", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = a.ParseToken(token)
		assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := a.ParseToken("not.a.token")
		assert.Error(t, err)
	})
}

func TestJWTMiddleware(t *testing.T) {
	a := New("test-secret")
	var seen *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := a.JWTMiddleware(next)

	serve := func(method, path, authHeader string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := serve(http.MethodPost, "/api/parse-ocr", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"missing bearer token"}`, rec.Body.String())

	rec = serve(http.MethodPost, "/api/parse-ocr", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := a.GenerateToken("alice", time.Hour)
	require.NoError(t, err)
	rec = serve(http.MethodPost, "/api/parse-ocr", "Bearer "+token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "alice", seen.UserID)

	assert.Equal(t, http.StatusNoContent, serve(http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusNoContent, serve(http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusNoContent, serve(http.MethodOptions, "/api/parse-ocr", "").Code)
}

func TestJWTMiddleware_DisabledWithoutSecret(t *testing.T) {
	h := New("").JWTMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := GetClaimsFromContext(r.Context())
		assert.ErrorIs(t, err, ErrNoClaims)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/extract-invoice", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
