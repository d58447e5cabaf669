package circulation

import (
	"errors"
	"net/http"

	"libraryapi/internal/audit"
	"libraryapi/internal/book"
	"libraryapi/internal/httpx"
	"libraryapi/internal/user"
)

type HTTPHandler struct {
	service *Service
	audit   audit.Recorder
}

func NewHTTPHandler(service *Service, rec audit.Recorder) *HTTPHandler {
	return &HTTPHandler{service: service, audit: rec}
}

func actorFrom(r *http.Request) Actor {
	return Actor{UserID: httpx.UserIDFrom(r), Admin: httpx.IsAdmin(r)}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.NotFound(w, r, "Transaction not found")
	case errors.Is(err, book.ErrNotFound):
		httpx.NotFound(w, r, "Book not found")
	case errors.Is(err, user.ErrNotFound):
		httpx.NotFound(w, r, "User not found")
	case errors.Is(err, ErrNotAvailable):
		httpx.JSONError(w, r, http.StatusConflict, "NOT_AVAILABLE", "Book is not available", nil)
	case errors.Is(err, ErrAlreadyBorrowed):
		httpx.JSONError(w, r, http.StatusConflict, "CONFLICT", "You already have this book on loan", nil)
	case errors.Is(err, ErrAlreadyReserved):
		httpx.JSONError(w, r, http.StatusConflict, "CONFLICT", "You have already reserved this book", nil)
	case errors.Is(err, ErrReservedByOthers):
		httpx.JSONError(w, r, http.StatusConflict, "CONFLICT", "Book is reserved by another member", nil)
	case errors.Is(err, ErrStateChanged):
		httpx.JSONError(w, r, http.StatusConflict, "CONFLICT", "Transaction was modified concurrently, retry", nil)
	case errors.Is(err, ErrLimitReached):
		httpx.JSONError(w, r, http.StatusBadRequest, "LIMIT_REACHED", "Borrow limit reached for your membership", nil)
	case errors.Is(err, ErrUserInactive):
		httpx.JSONError(w, r, http.StatusForbidden, "FORBIDDEN", "Account is deactivated", nil)
	case errors.Is(err, ErrForbidden):
		httpx.Forbidden(w, r)
	case errors.Is(err, ErrNotActive):
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Transaction is not active", nil)
	case errors.Is(err, ErrOverdue):
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Overdue loans cannot be renewed", nil)
	case errors.Is(err, ErrRenewalLimit):
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Renewal limit reached", nil)
	case errors.Is(err, ErrStillOpen):
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Active transactions cannot be deleted", nil)
	default:
		httpx.InternalError(w, r, err)
	}
}

// Borrow handles POST /api/books/{id}/borrow
func (h *HTTPHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.Borrow(r.Context(), httpx.UserIDFrom(r), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccessCreated(w, r, t)
}

// Reserve handles POST /api/books/{id}/reserve
func (h *HTTPHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	h.reserve(w, r, r.PathValue("id"))
}

type reserveReq struct {
	BookID string `json:"bookId" validate:"required"`
}

// CreateReservation handles POST /api/reservations
func (h *HTTPHandler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req reserveReq
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	h.reserve(w, r, req.BookID)
}

func (h *HTTPHandler) reserve(w http.ResponseWriter, r *http.Request, bookID string) {
	t, err := h.service.Reserve(r.Context(), httpx.UserIDFrom(r), bookID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccessCreated(w, r, t)
}

// CancelReservation handles DELETE /api/reservations/{id}
func (h *HTTPHandler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.CancelReservation(r.Context(), r.PathValue("id"), actorFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, t, nil)
}

// Return handles POST /api/transactions/{id}/return
func (h *HTTPHandler) Return(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.Return(r.Context(), r.PathValue("id"), actorFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, t, nil)
}

// Renew handles POST /api/transactions/{id}/renew
func (h *HTTPHandler) Renew(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.Renew(r.Context(), r.PathValue("id"), actorFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, t, nil)
}

// Borrowed handles GET /api/user/borrowed
func (h *HTTPHandler) Borrowed(w http.ResponseWriter, r *http.Request) {
	page := httpx.PageFrom(r)
	list, total, err := h.service.Borrowed(r.Context(), httpx.UserIDFrom(r), page.Limit(), page.Offset())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, list, page.Meta(total))
}

// Reservations handles GET /api/user/reservations and GET /api/reservations
func (h *HTTPHandler) Reservations(w http.ResponseWriter, r *http.Request) {
	page := httpx.PageFrom(r)
	list, total, err := h.service.Reservations(r.Context(), httpx.UserIDFrom(r), page.Limit(), page.Offset())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, list, page.Meta(total))
}

func queryFrom(r *http.Request, page httpx.Page) Query {
	query := r.URL.Query()
	q := Query{
		UserID: query.Get("userId"),
		BookID: query.Get("bookId"),
		Type:   Type(query.Get("type")),
		Limit:  page.Limit(),
		Offset: page.Offset(),
	}
	if s := query.Get("status"); s != "" {
		q.Statuses = []Status{Status(s)}
	}
	return q
}

// History handles GET /api/user/transactions
func (h *HTTPHandler) History(w http.ResponseWriter, r *http.Request) {
	page := httpx.PageFrom(r)
	list, total, err := h.service.History(r.Context(), httpx.UserIDFrom(r), queryFrom(r, page))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, list, page.Meta(total))
}

// List handles GET /api/admin/transactions
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	page := httpx.PageFrom(r)
	list, total, err := h.service.List(r.Context(), queryFrom(r, page))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, list, page.Meta(total))
}

// Get handles GET /api/admin/transactions/{id}
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.Get(r.Context(), r.PathValue("id"), actorFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, t, nil)
}

// Update handles PUT /api/admin/transactions/{id}
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if !httpx.DecodeJSON(w, r, &in) {
		return
	}
	id := r.PathValue("id")
	t, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.EntityTransaction, id, audit.ActionUpdate, httpx.UserIDFrom(r), in)
	httpx.JSONSuccess(w, r, t, nil)
}

// Delete handles DELETE /api/admin/transactions/{id}
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.EntityTransaction, id, audit.ActionDelete, httpx.UserIDFrom(r), nil)
	httpx.JSONSuccessNoContent(w)
}

// AdminReturn handles POST /api/admin/transactions/{id}/return
func (h *HTTPHandler) AdminReturn(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, err := h.service.Return(r.Context(), id, actorFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.EntityTransaction, id, audit.ActionReturn, httpx.UserIDFrom(r),
		map[string]any{"fineAmount": t.FineAmount})
	httpx.JSONSuccess(w, r, t, nil)
}

// AdminCancel handles POST /api/admin/transactions/{id}/cancel
func (h *HTTPHandler) AdminCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, err := h.service.CancelReservation(r.Context(), id, actorFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.EntityTransaction, id, audit.ActionCancel, httpx.UserIDFrom(r), nil)
	httpx.JSONSuccess(w, r, t, nil)
}

// Reconcile handles POST /api/admin/books/{id}/reconcile
func (h *HTTPHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	b, err := h.service.Reconcile(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.EntityBook, id, audit.ActionReconcile, httpx.UserIDFrom(r),
		map[string]any{"availableCopies": b.AvailableCopies})
	httpx.JSONSuccess(w, r, b, nil)
}
