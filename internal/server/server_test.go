package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"libraryapi/internal/book"
	"libraryapi/internal/circulation"
	"libraryapi/internal/logger"
	"libraryapi/internal/platform/crypto"
	"libraryapi/internal/stats"
	"libraryapi/internal/testutil"
	"libraryapi/internal/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "router-test-secret"

type zeroTotals struct{}

func (zeroTotals) Totals(context.Context) (book.Totals, error) {
	return book.Totals{Titles: 2, TotalCopies: 4, AvailableCopies: 3}, nil
}

type zeroUsers struct{}

func (zeroUsers) Totals(context.Context) (user.Totals, error) { return user.Totals{Users: 1}, nil }

type zeroCounts struct{}

func (zeroCounts) Counts(context.Context) (circulation.Counts, error) {
	return circulation.Counts{ActiveBorrows: 1}, nil
}

type noEvents struct{}

func (noEvents) CountUpcoming(context.Context) (int, error) { return 0, nil }

type revoked map[string]bool

func (r revoked) IsBlacklisted(_ context.Context, jti string) (bool, error) { return r[jti], nil }

func newRouter(t *testing.T, opts Options) http.Handler {
	t.Helper()
	opts.JWTSecret = secret
	opts.Log = logger.Discard()
	h := Handlers{
		Stats: stats.NewHTTPHandler(stats.NewService(zeroTotals{}, zeroUsers{}, zeroCounts{}, noEvents{})),
	}
	return NewRouter(h, opts)
}

func TestRouter_Health(t *testing.T) {
	t.Run("healthz", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(t, Options{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	})

	t.Run("readyz with store down", func(t *testing.T) {
		router := newRouter(t, Options{Ready: func(context.Context) error { return errors.New("no store") }})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("readyz", func(t *testing.T) {
		router := newRouter(t, Options{Ready: func(context.Context) error { return nil }})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRouter_AdminGuard(t *testing.T) {
	router := newRouter(t, Options{})

	tests := []struct {
		name     string
		token    string
		wantCode int
	}{
		{name: "anonymous", token: "", wantCode: http.StatusUnauthorized},
		{name: "garbage token", token: "not-a-jwt", wantCode: http.StatusUnauthorized},
		{name: "member", token: testutil.GenerateTestToken(secret, "u1", false), wantCode: http.StatusForbidden},
		{name: "admin", token: testutil.GenerateTestToken(secret, "a1", true), wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, testutil.NewRequestWithAuth(http.MethodGet, "/api/admin/stats", nil, tt.token))

			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestRouter_MemberRoutesNeedToken(t *testing.T) {
	router := newRouter(t, Options{})

	for _, path := range []string{
		"/api/auth/me",
		"/api/user/borrowed",
		"/api/user/transactions",
		"/api/reservations",
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		resp := testutil.RecordHTTPResponse(w)
		assert.Equal(t, http.StatusUnauthorized, resp.Code, path)
		assert.Equal(t, false, resp.Body["success"], path)
	}
}

func TestRouter_RevokedToken(t *testing.T) {
	token, jti, err := crypto.GenerateToken(secret, crypto.Subject{UserID: "a1", Admin: true}, time.Hour)
	require.NoError(t, err)
	router := newRouter(t, Options{Blacklist: revoked{jti: true}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, testutil.NewRequestWithAuth(http.MethodGet, "/api/admin/stats", nil, token))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type accounts map[string]bool

func (a accounts) AccountStatus(_ context.Context, userID string) (bool, bool, error) {
	admin, ok := a[userID]
	return ok, admin, nil
}

func TestRouter_AdminRechecksStoredAccount(t *testing.T) {
	router := newRouter(t, Options{Accounts: accounts{"a1": true, "a2": false}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, testutil.NewRequestWithAuth(http.MethodGet, "/api/admin/stats", nil, testutil.GenerateTestToken(secret, "a1", true)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, testutil.NewRequestWithAuth(http.MethodGet, "/api/admin/stats", nil, testutil.GenerateTestToken(secret, "a2", true)))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_UnknownAPIRoute(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(t, Options{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	resp := testutil.RecordHTTPResponse(w)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", resp.ErrorCode())
}

func TestRouter_StaticDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>library</h1>"), 0o600))

	w := httptest.NewRecorder()
	newRouter(t, Options{StaticDir: dir}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "library")
}
