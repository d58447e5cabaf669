package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"libraryapi/internal/app"
	"libraryapi/internal/config"
	"libraryapi/internal/httpx"
	"libraryapi/internal/logger"
	"libraryapi/internal/server"
	"libraryapi/internal/store"

	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 2*cfg.DBTimeout)
	repos, err := store.Open(openCtx, cfg, log)
	cancel()
	if err != nil {
		return err
	}
	defer repos.Close()

	a := app.New(cfg, repos, log)

	// Registered after repos.Close so the sweeper is gone before the store closes.
	stopSweeper := startBackground(ctx, a.Sweeper().Run)
	defer stopSweeper()

	limiter := httpx.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer limiter.Close()

	srv := server.New(cfg.Addr, a.Handler(limiter))

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", cfg.Addr, "driver", cfg.Driver, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}

// startBackground runs fn until the returned stop func is called or ctx
// ends. stop cancels fn and blocks until it has returned.
func startBackground(ctx context.Context, fn func(ctx context.Context)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var g errgroup.Group
	g.Go(func() error {
		fn(ctx)
		return nil
	})
	return func() {
		cancel()
		_ = g.Wait()
	}
}
