package auth

import (
	"errors"
	"net/http"
	"time"

	"libraryapi/internal/httpx"
	"libraryapi/internal/user"
)

type HTTPHandler struct {
	service      *Service
	secureCookie bool
}

func NewHTTPHandler(service *Service, secureCookie bool) *HTTPHandler {
	return &HTTPHandler{service: service, secureCookie: secureCookie}
}

func (h *HTTPHandler) setCookie(w http.ResponseWriter, value string, expires time.Time) {
	c := &http.Cookie{
		Name:     httpx.TokenCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		c.MaxAge = -1
	} else {
		c.Expires = expires
	}
	http.SetCookie(w, c)
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password", nil)
	case errors.Is(err, ErrInactive):
		httpx.JSONError(w, r, http.StatusForbidden, "FORBIDDEN", "Account is deactivated", nil)
	case errors.Is(err, user.ErrAlreadyExists):
		httpx.JSONError(w, r, http.StatusConflict, "ALREADY_EXISTS", "Email already exists", nil)
	default:
		httpx.InternalError(w, r, err)
	}
}

type LoginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /api/auth/login
func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginReq
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}

	sess, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setCookie(w, sess.Token, sess.ExpiresAt)
	httpx.JSONSuccess(w, r, sess, nil)
}

// Register handles POST /api/auth/register
func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in user.RegisterInput
	if !httpx.DecodeJSON(w, r, &in) {
		return
	}

	sess, err := h.service.Register(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setCookie(w, sess.Token, sess.ExpiresAt)
	httpx.JSONSuccessCreated(w, r, sess)
}

// Me handles GET /api/auth/me
func (h *HTTPHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Me(r.Context(), httpx.UserIDFrom(r))
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			httpx.Unauthorized(w, r)
			return
		}
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, u, nil)
}

// Logout handles POST /api/auth/logout
func (h *HTTPHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), httpx.ClaimsFrom(r)); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			httpx.Unauthorized(w, r)
			return
		}
		h.writeError(w, r, err)
		return
	}
	h.setCookie(w, "", time.Time{})
	httpx.JSONSuccessNoContent(w)
}
