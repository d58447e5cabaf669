package user

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"libraryapi/internal/audit"
	"libraryapi/internal/httpx"
	"libraryapi/internal/platform/crypto"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
)

func newTestHandler(t *testing.T) (*HTTPHandler, *MockRepository) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	return NewHTTPHandler(NewService(repo), audit.Nop()), repo
}

func withUser(r *http.Request, id string) *http.Request {
	ctx := httpx.ContextWithClaims(r.Context(), &crypto.Claims{Sub: id, Role: crypto.RoleUser})
	return r.WithContext(ctx)
}

func TestHTTPHandler_PayFine(t *testing.T) {
	handler, repo := newTestHandler(t)

	t.Run("partial payment", func(t *testing.T) {
		repo.EXPECT().PayFine(gomock.Any(), "u1", 1.0).Return(User{ID: "u1", FineAmount: 0.5}, nil)

		w := httptest.NewRecorder()
		r := withUser(httptest.NewRequest(http.MethodPost, "/api/user/fines/pay", strings.NewReader(`{"amount":1}`)), "u1")
		handler.PayFine(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"fineAmount":0.5`)
	})

	t.Run("overpayment", func(t *testing.T) {
		repo.EXPECT().PayFine(gomock.Any(), "u1", 9.0).Return(User{}, ErrOverpayment)

		w := httptest.NewRecorder()
		r := withUser(httptest.NewRequest(http.MethodPost, "/api/user/fines/pay", strings.NewReader(`{"amount":9}`)), "u1")
		handler.PayFine(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing amount", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := withUser(httptest.NewRequest(http.MethodPost, "/api/user/fines/pay", strings.NewReader(`{}`)), "u1")
		handler.PayFine(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
	})
}

func TestHTTPHandler_Create(t *testing.T) {
	handler, repo := newTestHandler(t)

	t.Run("admin creates an admin", func(t *testing.T) {
		repo.EXPECT().GetByEmail(gomock.Any(), "root@example.com").Return(User{}, ErrNotFound)
		repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, u *User) error {
			assert.True(t, u.IsAdmin)
			assert.Equal(t, MembershipPremium, u.MembershipType)
			u.ID = "u9"
			return nil
		})

		body := `{"firstName":"Root","lastName":"Admin","email":"root@example.com","password":"Adm1n$ecret","membershipType":"Premium","isAdmin":true}`
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/admin/users", strings.NewReader(body))
		handler.Create(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NotContains(t, w.Body.String(), "Adm1n$ecret")
		assert.NotContains(t, w.Body.String(), "password")
	})

	t.Run("weak password and unknown membership", func(t *testing.T) {
		body := `{"firstName":"Root","lastName":"Admin","email":"root@example.com","password":"weak","membershipType":"Gold"}`
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/admin/users", strings.NewReader(body))
		handler.Create(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "password")
		assert.Contains(t, w.Body.String(), "membershipType")
	})
}

func TestHTTPHandler_Deactivate(t *testing.T) {
	handler, repo := newTestHandler(t)

	repo.EXPECT().SetActive(gomock.Any(), "u1", false).Return(User{ID: "u1", IsActive: false}, nil)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPatch, "/api/admin/users/u1/deactivate", nil)
	r.SetPathValue("id", "u1")
	handler.Deactivate(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isActive":false`)

	repo.EXPECT().SetActive(gomock.Any(), "nope", true).Return(User{}, ErrNotFound)
	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPatch, "/api/admin/users/nope/activate", nil)
	r.SetPathValue("id", "nope")
	handler.Activate(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
