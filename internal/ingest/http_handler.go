package ingest

import (
	"net/http"

	"libraryapi/internal/audit"
	"libraryapi/internal/httpx"
)

type HTTPHandler struct {
	svc   *Service
	audit audit.Recorder
}

func NewHTTPHandler(svc *Service, rec audit.Recorder) *HTTPHandler {
	return &HTTPHandler{svc: svc, audit: rec}
}

type importReq struct {
	Subject string `json:"subject" validate:"required,max=100"`
	Limit   int    `json:"limit" validate:"omitempty,gte=1,lte=200"`
}

// Import handles POST /api/admin/import/openlibrary
func (h *HTTPHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req importReq
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	if req.Limit == 0 {
		req.Limit = 20
	}

	report, err := h.svc.Run(r.Context(), req.Subject, req.Limit)
	if err != nil {
		httpx.JSONError(w, r, http.StatusBadGateway, "IMPORT_FAILED", err.Error(), nil)
		return
	}
	h.audit.Record(r.Context(), audit.EntitySystem, "", audit.ActionSeed, httpx.UserIDFrom(r), report)
	httpx.JSONSuccess(w, r, report, nil)
}
