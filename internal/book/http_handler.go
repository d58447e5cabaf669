package book

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
		httpx.NotFound(w, r, "Book not found")
	case errors.Is(err, ErrAlreadyExists):
		httpx.JSONError(w, r, http.StatusConflict, "ALREADY_EXISTS", "A book with this ISBN already exists", nil)
	case errors.Is(err, ErrInvalidCopies):
		httpx.JSONError(w, r, http.StatusBadRequest, "INVALID_COPIES", "Total copies cannot be lower than copies currently out", nil)
	case errors.Is(err, ErrConflict):
		httpx.JSONError(w, r, http.StatusConflict, "CONFLICT", "Book was modified concurrently, retry", nil)
	default:
		httpx.InternalError(w, r, err)
	}
}

// List handles GET /api/books and GET /api/admin/books
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := httpx.PageFrom(r)

	params := Query{
		Category:  Category(query.Get("category")),
		Q:         query.Get("q"),
		Language:  query.Get("language"),
		Tag:       query.Get("tag"),
		Available: httpx.BoolParam(r, "available"),
		Sort:      query.Get("sort"),
		Desc:      query.Get("desc") == "true" || query.Get("order") == "desc",
		Limit:     page.Limit(),
		Offset:    page.Offset(),
	}
	if params.Q == "" {
		params.Q = query.Get("search")
	}

	books, total, err := h.service.List(r.Context(), params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httpx.JSONSuccess(w, r, books, page.Meta(total))
}

// Get handles GET /api/books/{id}; an ISBN is accepted in place of the id.
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	b, err := h.service.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		b, err = h.service.GetByISBN(r.Context(), id)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, b, nil)
}

// Create handles POST /api/admin/books
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if !httpx.DecodeJSON(w, r, &in) {
		return
	}

	b, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.EntityBook, b.ID, audit.ActionCreate, httpx.UserIDFrom(r), b)
	httpx.JSONSuccessCreated(w, r, b)
}

// Update handles PUT /api/admin/books/{id}
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if !httpx.DecodeJSON(w, r, &in) {
		return
	}

	id := r.PathValue("id")
	b, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.EntityBook, id, audit.ActionUpdate, httpx.UserIDFrom(r), in)
	httpx.JSONSuccess(w, r, b, nil)
}

// Delete handles DELETE /api/admin/books/{id}
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.EntityBook, id, audit.ActionDelete, httpx.UserIDFrom(r), nil)
	httpx.JSONSuccessNoContent(w)
}
