// Package server assembles the HTTP routes and middleware.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"libraryapi/internal/audit"
	"libraryapi/internal/auth"
	"libraryapi/internal/book"
	"libraryapi/internal/circulation"
	"libraryapi/internal/event"
	"libraryapi/internal/httpx"
	"libraryapi/internal/ingest"
	"libraryapi/internal/seed"
	"libraryapi/internal/stats"
	"libraryapi/internal/user"
)

type Handlers struct {
	Auth        *auth.HTTPHandler
	Books       *book.HTTPHandler
	Users       *user.HTTPHandler
	Circulation *circulation.HTTPHandler
	Events      *event.HTTPHandler
	Audit       *audit.HTTPHandler
	Stats       *stats.HTTPHandler
	Seed        *seed.HTTPHandler
	Import      *ingest.HTTPHandler
}

type Options struct {
	JWTSecret    string
	Blacklist    httpx.BlacklistChecker
	Accounts     httpx.AccountLookup
	Ready        func(ctx context.Context) error
	StaticDir    string
	CORSOrigins  []string
	EnableHSTS   bool
	MaxBodyBytes int64
	Limiter      *httpx.RateLimiter
	Log          *slog.Logger
}

// NewRouter registers every route and wraps the mux in the middleware chain:
// request id, recovery, access log, security headers, CORS, body size limit
// and rate limit, outermost first.
func NewRouter(h Handlers, opts Options) http.Handler {
	mux := http.NewServeMux()

	authn := httpx.AuthMiddleware(opts.JWTSecret, opts.Blacklist)
	member := func(fn http.HandlerFunc) http.Handler {
		return authn(fn)
	}
	requireAdmin := httpx.RequireAdmin
	if opts.Accounts != nil {
		requireAdmin = httpx.RequireActiveAdmin(opts.Accounts)
	}
	admin := func(fn http.HandlerFunc) http.Handler {
		return authn(requireAdmin(fn))
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if opts.Ready != nil {
			if err := opts.Ready(ctx); err != nil {
				http.Error(w, "store not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// auth
	mux.HandleFunc("POST /api/auth/register", h.Auth.Register)
	mux.HandleFunc("POST /api/auth/login", h.Auth.Login)
	mux.Handle("GET /api/auth/me", member(h.Auth.Me))
	mux.Handle("POST /api/auth/logout", member(h.Auth.Logout))

	// catalog and circulation
	mux.HandleFunc("GET /api/books", h.Books.List)
	mux.HandleFunc("GET /api/books/{id}", h.Books.Get)
	mux.Handle("POST /api/books/{id}/borrow", member(h.Circulation.Borrow))
	mux.Handle("POST /api/books/{id}/reserve", member(h.Circulation.Reserve))
	mux.Handle("POST /api/transactions/{id}/return", member(h.Circulation.Return))
	mux.Handle("POST /api/transactions/{id}/renew", member(h.Circulation.Renew))
	mux.Handle("GET /api/reservations", member(h.Circulation.Reservations))
	mux.Handle("POST /api/reservations", member(h.Circulation.CreateReservation))
	mux.Handle("DELETE /api/reservations/{id}", member(h.Circulation.CancelReservation))

	// member self-service
	mux.Handle("GET /api/user/borrowed", member(h.Circulation.Borrowed))
	mux.Handle("GET /api/user/reservations", member(h.Circulation.Reservations))
	mux.Handle("GET /api/user/transactions", member(h.Circulation.History))
	mux.Handle("PATCH /api/user/profile", member(h.Users.UpdateProfile))
	mux.Handle("POST /api/user/fines/pay", member(h.Users.PayFine))

	// events
	mux.HandleFunc("GET /api/events", h.Events.List)
	mux.HandleFunc("GET /api/events/{id}", h.Events.Get)
	mux.Handle("POST /api/events/{id}/register", member(h.Events.Register))

	// admin
	mux.Handle("GET /api/admin/books", admin(h.Books.List))
	mux.Handle("POST /api/admin/books", admin(h.Books.Create))
	mux.Handle("PUT /api/admin/books/{id}", admin(h.Books.Update))
	mux.Handle("DELETE /api/admin/books/{id}", admin(h.Books.Delete))
	mux.Handle("POST /api/admin/books/{id}/reconcile", admin(h.Circulation.Reconcile))

	mux.Handle("GET /api/admin/users", admin(h.Users.List))
	mux.Handle("POST /api/admin/users", admin(h.Users.Create))
	mux.Handle("GET /api/admin/users/{id}", admin(h.Users.Get))
	mux.Handle("PUT /api/admin/users/{id}", admin(h.Users.Update))
	mux.Handle("DELETE /api/admin/users/{id}", admin(h.Users.Delete))
	mux.Handle("PATCH /api/admin/users/{id}/deactivate", admin(h.Users.Deactivate))
	mux.Handle("PATCH /api/admin/users/{id}/activate", admin(h.Users.Activate))

	mux.Handle("GET /api/admin/transactions", admin(h.Circulation.List))
	mux.Handle("GET /api/admin/transactions/{id}", admin(h.Circulation.Get))
	mux.Handle("PUT /api/admin/transactions/{id}", admin(h.Circulation.Update))
	mux.Handle("DELETE /api/admin/transactions/{id}", admin(h.Circulation.Delete))
	mux.Handle("POST /api/admin/transactions/{id}/return", admin(h.Circulation.AdminReturn))
	mux.Handle("POST /api/admin/transactions/{id}/cancel", admin(h.Circulation.AdminCancel))

	mux.Handle("GET /api/admin/events", admin(h.Events.AdminList))
	mux.Handle("POST /api/admin/events", admin(h.Events.Create))
	mux.Handle("PUT /api/admin/events/{id}", admin(h.Events.Update))
	mux.Handle("DELETE /api/admin/events/{id}", admin(h.Events.Delete))

	mux.Handle("POST /api/admin/seed", admin(h.Seed.Seed))
	mux.Handle("POST /api/admin/import/openlibrary", admin(h.Import.Import))
	mux.Handle("GET /api/admin/stats", admin(h.Stats.Get))
	mux.Handle("GET /api/admin/audit", admin(h.Audit.List))

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		httpx.NotFound(w, r, "Route not found")
	})
	if opts.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(opts.StaticDir)))
	}

	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	mws := []httpx.Middleware{
		httpx.RequestIDMiddleware,
		httpx.RecoveryMiddleware(log),
		httpx.AccessLogMiddleware(log),
		httpx.SecurityHeadersMiddleware(opts.EnableHSTS),
		httpx.CORSMiddleware(opts.CORSOrigins),
	}
	if opts.MaxBodyBytes > 0 {
		mws = append(mws, httpx.RequestSizeLimitMiddleware(opts.MaxBodyBytes))
	}
	if opts.Limiter != nil {
		mws = append(mws, opts.Limiter.Middleware)
	}
	return httpx.Chain(mux, mws...)
}

// New returns an http.Server with the timeouts used in every environment.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
