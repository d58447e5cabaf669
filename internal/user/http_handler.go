package user

import (
	"errors"
	"net/http"

	"libraryapi/internal/audit"
	"libraryapi/internal/httpx"
)

type HTTPHandler struct {
	service *Service
	audit   audit.Recorder
}

func NewHTTPHandler(service *Service, rec audit.Recorder) *HTTPHandler {
	return &HTTPHandler{service: service, audit: rec}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.NotFound(w, r, "User not found")
	case errors.Is(err, ErrAlreadyExists):
		httpx.JSONError(w, r, http.StatusConflict, "ALREADY_EXISTS", "Email already exists", nil)
	case errors.Is(err, ErrOverpayment):
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Payment exceeds outstanding fines", nil)
	case errors.Is(err, ErrInvalidAmount):
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Amount must be positive", nil)
	default:
		httpx.InternalError(w, r, err)
	}
}

// UpdateProfile handles PATCH /api/user/profile
func (h *HTTPHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in ProfileInput
	if !httpx.DecodeJSON(w, r, &in) {
		return
	}
	u, err := h.service.UpdateProfile(r.Context(), httpx.UserIDFrom(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, u, nil)
}

type payFineReq struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

// PayFine handles POST /api/user/fines/pay
func (h *HTTPHandler) PayFine(w http.ResponseWriter, r *http.Request) {
	var req payFineReq
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	u, err := h.service.PayFine(r.Context(), httpx.UserIDFrom(r), req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, map[string]any{
		"paid":       req.Amount,
		"fineAmount": u.FineAmount,
	}, nil)
}

// List handles GET /api/admin/users
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := httpx.PageFrom(r)

	q := Query{
		Q:              query.Get("q"),
		MembershipType: MembershipType(query.Get("membershipType")),
		Active:         httpx.BoolParam(r, "active"),
		Limit:          page.Limit(),
		Offset:         page.Offset(),
	}
	if q.Q == "" {
		q.Q = query.Get("search")
	}

	users, total, err := h.service.List(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, users, page.Meta(total))
}

// Get handles GET /api/admin/users/{id}
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, u, nil)
}

// Create handles POST /api/admin/users
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if !httpx.DecodeJSON(w, r, &in) {
		return
	}
	u, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.EntityUser, u.ID, audit.ActionCreate, httpx.UserIDFrom(r), map[string]any{
		"email":   u.Email,
		"isAdmin": u.IsAdmin,
	})
	httpx.JSONSuccessCreated(w, r, u)
}

// Update handles PUT /api/admin/users/{id}
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if !httpx.DecodeJSON(w, r, &in) {
		return
	}
	id := r.PathValue("id")
	u, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	// the password never reaches the audit trail
	in.Password = nil
	h.audit.Record(r.Context(), audit.EntityUser, id, audit.ActionUpdate, httpx.UserIDFrom(r), in)
	httpx.JSONSuccess(w, r, u, nil)
}

func (h *HTTPHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id := r.PathValue("id")
	u, err := h.service.SetActive(r.Context(), id, active)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	action := audit.ActionDeactivate
	if active {
		action = audit.ActionActivate
	}
	h.audit.Record(r.Context(), audit.EntityUser, id, action, httpx.UserIDFrom(r), nil)
	httpx.JSONSuccess(w, r, u, nil)
}

// Deactivate handles PATCH /api/admin/users/{id}/deactivate
func (h *HTTPHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

// Activate handles PATCH /api/admin/users/{id}/activate
func (h *HTTPHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// Delete handles DELETE /api/admin/users/{id}
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.EntityUser, id, audit.ActionDelete, httpx.UserIDFrom(r), nil)
	httpx.JSONSuccessNoContent(w)
}
