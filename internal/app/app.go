// Package app wires services on top of an opened store. Both cmd/api and
// cmd/seed build on it.
package app

import (
	"log/slog"
	"net/http"

	"libraryapi/internal/audit"
	"libraryapi/internal/auth"
	"libraryapi/internal/book"
	"libraryapi/internal/circulation"
	"libraryapi/internal/config"
	"libraryapi/internal/event"
	"libraryapi/internal/httpx"
	"libraryapi/internal/ingest"
	"libraryapi/internal/platform/openlibrary"
	"libraryapi/internal/seed"
	"libraryapi/internal/server"
	"libraryapi/internal/stats"
	"libraryapi/internal/store"
	"libraryapi/internal/user"
)

type App struct {
	Config config.Config
	Log    *slog.Logger
	Repos  *store.Repositories

	Books       *book.Service
	Users       *user.Service
	Audit       *audit.Service
	Auth        *auth.Service
	Circulation *circulation.Service
	Events      *event.Service
	Stats       *stats.Service
	Seeder      *seed.Seeder
	Importer    *ingest.Service
}

func New(cfg config.Config, repos *store.Repositories, log *slog.Logger) *App {
	a := &App{Config: cfg, Log: log, Repos: repos}

	a.Books = book.NewService(repos.Books)
	a.Users = user.NewService(repos.Users)
	a.Audit = audit.NewService(repos.Audit, log)
	a.Auth = auth.NewService(cfg.JWTSecret, cfg.TokenTTL, a.Users, repos.Blacklist)
	a.Circulation = circulation.NewService(repos.Transactions, repos.Books, a.Users, circulation.Policy{
		LoanPeriod:  cfg.LoanPeriod,
		HoldPeriod:  cfg.HoldPeriod,
		FinePerDay:  cfg.FinePerDay,
		MaxRenewals: cfg.MaxRenewals,
	}, log)
	a.Events = event.NewService(repos.Events)
	a.Stats = stats.NewService(a.Books, a.Users, a.Circulation, a.Events)
	a.Seeder = seed.New(a.Books, a.Users, a.Events, a.Circulation, log)

	client := openlibrary.NewClient(openlibrary.Options{
		BaseURL:    cfg.OpenLibraryBaseURL,
		UserAgent:  cfg.OpenLibraryUserAgent,
		RPS:        cfg.OpenLibraryRPS,
		MaxRetries: cfg.OpenLibraryRetries,
	})
	a.Importer = ingest.NewService(client, a.Books, ingest.Config{CopiesPerBook: 2, BatchSize: 20}, log)

	return a
}

// Sweeper expires holds, flags overdue loans and purges stale token
// revocations on cfg.SweepInterval.
func (a *App) Sweeper() *circulation.Sweeper {
	return circulation.NewSweeper(a.Circulation, a.Config.SweepInterval, a.Log, circulation.Job{
		Name: "token blacklist",
		Run:  a.Auth.PurgeExpired,
	})
}

// Handler builds the routed HTTP handler. The caller owns limiter.
func (a *App) Handler(limiter *httpx.RateLimiter) http.Handler {
	h := server.Handlers{
		Auth:        auth.NewHTTPHandler(a.Auth, a.Config.CookieSecure),
		Books:       book.NewHTTPHandler(a.Books, a.Audit),
		Users:       user.NewHTTPHandler(a.Users, a.Audit),
		Circulation: circulation.NewHTTPHandler(a.Circulation, a.Audit),
		Events:      event.NewHTTPHandler(a.Events, a.Audit),
		Audit:       audit.NewHTTPHandler(a.Audit),
		Stats:       stats.NewHTTPHandler(a.Stats),
		Seed:        seed.NewHTTPHandler(a.Seeder, a.Audit),
		Import:      ingest.NewHTTPHandler(a.Importer, a.Audit),
	}
	return server.NewRouter(h, server.Options{
		JWTSecret:    a.Config.JWTSecret,
		Blacklist:    a.Repos.Blacklist,
		Accounts:     a.Users,
		Ready:        a.Repos.Ping,
		StaticDir:    a.Config.StaticDir,
		CORSOrigins:  a.Config.CORSOrigins,
		EnableHSTS:   a.Config.Env == "prod",
		MaxBodyBytes: a.Config.MaxBodyBytes,
		Limiter:      limiter,
		Log:          a.Log,
	})
}
