package event

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
		httpx.NotFound(w, r, "Event not found")
	case errors.Is(err, ErrFull):
		httpx.JSONError(w, r, http.StatusConflict, "EVENT_FULL", "Event is full", nil)
	case errors.Is(err, ErrInactive):
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Event is not open for registration", nil)
	case errors.Is(err, ErrCapacity):
		httpx.JSONError(w, r, http.StatusBadRequest, "INVALID_CAPACITY", "Max attendees cannot be lower than current attendees", nil)
	default:
		httpx.InternalError(w, r, err)
	}
}

func (h *HTTPHandler) list(w http.ResponseWriter, r *http.Request, admin bool) {
	query := r.URL.Query()
	page := httpx.PageFrom(r)
	q := Query{
		Category: query.Get("category"),
		Limit:    page.Limit(),
		Offset:   page.Offset(),
	}
	if admin {
		q.Active = httpx.BoolParam(r, "active")
	}

	events, total, err := h.service.List(r.Context(), q, admin, query.Get("upcoming") == "true")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, events, page.Meta(total))
}

// List handles GET /api/events
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

// AdminList handles GET /api/admin/events
func (h *HTTPHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

// Get handles GET /api/events/{id}
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.service.Get(r.Context(), r.PathValue("id"), httpx.IsAdmin(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, e, nil)
}

// Register handles POST /api/events/{id}/register
func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	e, err := h.service.Register(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, e, nil)
}

// Create handles POST /api/admin/events
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if !httpx.DecodeJSON(w, r, &in) {
		return
	}
	e, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.EntityEvent, e.ID, audit.ActionCreate, httpx.UserIDFrom(r), e)
	httpx.JSONSuccessCreated(w, r, e)
}

// Update handles PUT /api/admin/events/{id}
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if !httpx.DecodeJSON(w, r, &in) {
		return
	}
	id := r.PathValue("id")
	e, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.EntityEvent, id, audit.ActionUpdate, httpx.UserIDFrom(r), in)
	httpx.JSONSuccess(w, r, e, nil)
}

// Delete handles DELETE /api/admin/events/{id}
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.EntityEvent, id, audit.ActionDelete, httpx.UserIDFrom(r), nil)
	httpx.JSONSuccessNoContent(w)
}
