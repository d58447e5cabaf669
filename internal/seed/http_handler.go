package seed

import (
	"net/http"

	"libraryapi/internal/audit"
	"libraryapi/internal/httpx"
)

type HTTPHandler struct {
	seeder *Seeder
	audit  audit.Recorder
}

func NewHTTPHandler(seeder *Seeder, rec audit.Recorder) *HTTPHandler {
	return &HTTPHandler{seeder: seeder, audit: rec}
}

// Seed handles POST /api/admin/seed. The body is optional; ?reset=true works
// as well. No admin is created unless adminPassword is given, and a reset
// needs one because it removes every account, the caller's included.
func (h *HTTPHandler) Seed(w http.ResponseWriter, r *http.Request) {
	var opts Options
	if r.ContentLength != 0 {
		if !httpx.DecodeJSON(w, r, &opts) {
			return
		}
	}
	if reset := httpx.BoolParam(r, "reset"); reset != nil {
		opts.Reset = *reset
	}
	opts.SkipAdmin = opts.AdminPassword == ""
	if opts.Reset && opts.SkipAdmin {
		httpx.JSONError(w, r, http.StatusBadRequest, "ADMIN_REQUIRED",
			"A reset removes all accounts; provide adminEmail and adminPassword for the new admin", nil)
		return
	}

	sum, err := h.seeder.Run(r.Context(), opts)
	if err != nil {
		httpx.InternalError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.EntitySystem, "", audit.ActionSeed, httpx.UserIDFrom(r), sum)
	httpx.JSONSuccess(w, r, sum, nil)
}
