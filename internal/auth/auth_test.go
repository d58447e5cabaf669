package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"libraryapi/internal/httpx"
	"libraryapi/internal/platform/crypto"
	"libraryapi/internal/user"

	"github.com/golang-jwt/jwt/v5"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

type fixture struct {
	users     *user.MockRepository
	blacklist *MockBlacklist
	service   *Service
	handler   *HTTPHandler
}

func newFixture(t *testing.T) fixture {
	ctrl := gomock.NewController(t)
	users := user.NewMockRepository(ctrl)
	blacklist := NewMockBlacklist(ctrl)
	svc := NewService(testSecret, time.Hour, user.NewService(users), blacklist)
	return fixture{users: users, blacklist: blacklist, service: svc, handler: NewHTTPHandler(svc, true)}
}

func hashed(t *testing.T, password string) string {
	h, err := crypto.HashPassword(password)
	require.NoError(t, err)
	return h
}

func TestService_Login(t *testing.T) {
	f := newFixture(t)
	member := user.User{
		ID:             "u1",
		Email:          "ada@example.com",
		Password:       hashed(t, "Sup3r$ecret"),
		MembershipType: user.MembershipStudent,
		IsActive:       true,
	}

	t.Run("success", func(t *testing.T) {
		f.users.EXPECT().GetByEmail(gomock.Any(), "ada@example.com").Return(member, nil)
		f.users.EXPECT().TouchLastLogin(gomock.Any(), "u1", gomock.Any()).Return(nil)

		sess, err := f.service.Login(context.Background(), " ADA@example.com", "Sup3r$ecret")
		require.NoError(t, err)
		require.NotNil(t, sess.User.LastLogin)

		claims, err := crypto.ParseToken(testSecret, sess.Token)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.Sub)
		assert.Equal(t, crypto.RoleUser, claims.Role)
		assert.Equal(t, "Student", claims.Membership)
		assert.NotEmpty(t, claims.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		f.users.EXPECT().GetByEmail(gomock.Any(), "ada@example.com").Return(member, nil)

		_, err := f.service.Login(context.Background(), "ada@example.com", "nope")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("unknown email", func(t *testing.T) {
		f.users.EXPECT().GetByEmail(gomock.Any(), "who@example.com").Return(user.User{}, user.ErrNotFound)

		_, err := f.service.Login(context.Background(), "who@example.com", "Sup3r$ecret")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("deactivated", func(t *testing.T) {
		inactive := member
		inactive.IsActive = false
		f.users.EXPECT().GetByEmail(gomock.Any(), "ada@example.com").Return(inactive, nil)

		_, err := f.service.Login(context.Background(), "ada@example.com", "Sup3r$ecret")
		assert.ErrorIs(t, err, ErrInactive)
	})
}

func TestService_Logout(t *testing.T) {
	f := newFixture(t)
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	claims := &crypto.Claims{
		Sub:              "u1",
		RegisteredClaims: jwt.RegisteredClaims{ID: "jti-1", ExpiresAt: jwt.NewNumericDate(exp)},
	}

	f.blacklist.EXPECT().Add(gomock.Any(), "jti-1", "u1", exp).Return(nil)
	require.NoError(t, f.service.Logout(context.Background(), claims))

	assert.ErrorIs(t, f.service.Logout(context.Background(), nil), ErrUnauthorized)
}

func TestHTTPHandler_Login(t *testing.T) {
	f := newFixture(t)

	t.Run("sets the token cookie", func(t *testing.T) {
		f.users.EXPECT().GetByEmail(gomock.Any(), "ada@example.com").Return(user.User{
			ID: "u1", Password: hashed(t, "Sup3r$ecret"), IsActive: true, IsAdmin: true,
		}, nil)
		f.users.EXPECT().TouchLastLogin(gomock.Any(), "u1", gomock.Any()).Return(nil)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"email":"ada@example.com","password":"Sup3r$ecret"}`))
		f.handler.Login(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, httpx.TokenCookie, cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)
		assert.True(t, cookies[0].Secure)

		claims, err := crypto.ParseToken(testSecret, cookies[0].Value)
		require.NoError(t, err)
		assert.True(t, claims.IsAdmin())
		assert.Equal(t, crypto.RoleAdmin, claims.Role)
	})

	t.Run("deactivated is forbidden", func(t *testing.T) {
		f.users.EXPECT().GetByEmail(gomock.Any(), "ada@example.com").Return(user.User{
			ID: "u1", Password: hashed(t, "Sup3r$ecret"), IsActive: false,
		}, nil)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"email":"ada@example.com","password":"Sup3r$ecret"}`))
		f.handler.Login(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"not-an-email"}`))
		f.handler.Login(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHTTPHandler_Register(t *testing.T) {
	f := newFixture(t)
	body := `{"firstName":"Ada","lastName":"Lovelace","email":"ada@example.com","password":"Sup3r$ecret"}`

	t.Run("created", func(t *testing.T) {
		f.users.EXPECT().GetByEmail(gomock.Any(), "ada@example.com").Return(user.User{}, user.ErrNotFound)
		f.users.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, u *user.User) error {
			u.ID = "u1"
			return nil
		})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
		f.handler.Register(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"token"`)
		assert.Contains(t, w.Body.String(), `"membershipType":"Basic"`)
	})

	t.Run("duplicate email", func(t *testing.T) {
		f.users.EXPECT().GetByEmail(gomock.Any(), "ada@example.com").Return(user.User{ID: "u0"}, nil)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
		f.handler.Register(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestHTTPHandler_Logout(t *testing.T) {
	f := newFixture(t)

	token, jti, err := crypto.GenerateToken(testSecret, crypto.Subject{UserID: "u1"}, time.Hour)
	require.NoError(t, err)
	claims, err := crypto.ParseToken(testSecret, token)
	require.NoError(t, err)

	f.blacklist.EXPECT().Add(gomock.Any(), jti, "u1", gomock.Any()).Return(nil)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	r = r.WithContext(httpx.ContextWithClaims(r.Context(), claims))
	f.handler.Logout(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)

	f.blacklist.EXPECT().Add(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("db down"))
	w = httptest.NewRecorder()
	f.handler.Logout(w, r)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
