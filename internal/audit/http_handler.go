package audit

import (
	"net/http"

	"libraryapi/internal/httpx"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// List handles GET /api/admin/audit
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := httpx.PageFrom(r)

	entries, total, err := h.service.List(r.Context(), Query{
		Entity:      query.Get("entity"),
		Action:      query.Get("action"),
		PerformedBy: query.Get("performed_by"),
		Limit:       page.Limit(),
		Offset:      page.Offset(),
	})
	if err != nil {
		httpx.InternalError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, entries, page.Meta(total))
}
