package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"libraryapi/internal/platform/crypto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

type fakeBlacklist struct {
	revoked map[string]bool
	err     error
}

func (f fakeBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	return f.revoked[jti], f.err
}

func issue(t *testing.T, sub crypto.Subject) (string, string) {
	t.Helper()
	token, jti, err := crypto.GenerateToken(secret, sub, time.Hour)
	require.NoError(t, err)
	return token, jti
}

func TestAuthMiddleware(t *testing.T) {
	var gotUser string
	var gotAdmin bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFrom(r)
		gotAdmin = IsAdmin(r)
		w.WriteHeader(http.StatusOK)
	})

	token, jti := issue(t, crypto.Subject{UserID: "u1"})

	t.Run("bearer header", func(t *testing.T) {
		handler := AuthMiddleware(secret, nil)(inner)
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "u1", gotUser)
		assert.False(t, gotAdmin)
	})

	t.Run("cookie", func(t *testing.T) {
		handler := AuthMiddleware(secret, nil)(inner)
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.AddCookie(&http.Cookie{Name: TokenCookie, Value: token})
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		handler := AuthMiddleware(secret, nil)(inner)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("bad signature", func(t *testing.T) {
		handler := AuthMiddleware("another-secret", nil)(inner)
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("revoked", func(t *testing.T) {
		handler := AuthMiddleware(secret, fakeBlacklist{revoked: map[string]bool{jti: true}})(inner)
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("blacklist failure", func(t *testing.T) {
		handler := AuthMiddleware(secret, fakeBlacklist{err: errors.New("down")})(inner)
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestRequireAdmin(t *testing.T) {
	handler := AuthMiddleware(secret, nil)(RequireAdmin(okHandler))

	userToken, _ := issue(t, crypto.Subject{UserID: "u1"})
	adminToken, _ := issue(t, crypto.Subject{UserID: "a1", Admin: true})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

type fakeAccounts map[string][2]bool

func (f fakeAccounts) AccountStatus(_ context.Context, userID string) (bool, bool, error) {
	if userID == "broken" {
		return false, false, errors.New("store down")
	}
	st := f[userID]
	return st[0], st[1], nil
}

func TestRequireActiveAdmin(t *testing.T) {
	accounts := fakeAccounts{
		"a1":      {true, true},
		"demoted": {true, false},
		"gone":    {false, true},
	}
	handler := AuthMiddleware(secret, nil)(RequireActiveAdmin(accounts)(okHandler))

	tests := []struct {
		name     string
		sub      crypto.Subject
		wantCode int
	}{
		{name: "admin", sub: crypto.Subject{UserID: "a1", Admin: true}, wantCode: http.StatusOK},
		{name: "demoted since login", sub: crypto.Subject{UserID: "demoted", Admin: true}, wantCode: http.StatusForbidden},
		{name: "deactivated since login", sub: crypto.Subject{UserID: "gone", Admin: true}, wantCode: http.StatusForbidden},
		{name: "deleted account", sub: crypto.Subject{UserID: "nobody", Admin: true}, wantCode: http.StatusForbidden},
		{name: "member token", sub: crypto.Subject{UserID: "a1"}, wantCode: http.StatusForbidden},
		{name: "lookup fails", sub: crypto.Subject{UserID: "broken", Admin: true}, wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, _ := issue(t, tt.sub)
			req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}
