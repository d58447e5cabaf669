package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"libraryapi/internal/config"
	"libraryapi/internal/logger"
	"libraryapi/internal/platform/postgres"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, status, create")
		name    = flag.String("name", "", "Name for 'create' command")
	)
	flag.Parse()

	config.LoadEnvFiles()
	log := logger.New(os.Getenv("APP_ENV"))

	if err := run(*command, *name, log); err != nil {
		log.Error("migration failed", "command", *command, "error", err)
		os.Exit(1)
	}
}

func run(command, name string, log *slog.Logger) error {
	dir := migrationsDir()
	if command == "create" {
		return migrate(nil, command, name, dir)
	}

	dsn := databaseDSN()
	pool, err := postgres.Open(context.Background(), dsn, 5*time.Second)
	if err != nil {
		return fmt.Errorf("connect %s: %w", postgres.RedactDSN(dsn), err)
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := migrate(db, command, name, dir); err != nil {
		return err
	}
	log.Info("migrations done", "command", command, "dir", dir)
	return nil
}

func migrate(db *sql.DB, command, name, dir string) error {
	goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	switch command {
	case "up":
		return goose.Up(db, dir)
	case "down":
		return goose.Down(db, dir)
	case "status":
		return goose.Status(db, dir)
	case "create":
		if name == "" {
			return fmt.Errorf("name is required for 'create' command")
		}
		return goose.Create(nil, dir, name, "sql")
	default:
		return fmt.Errorf("unknown command %q, use: up, down, status, create", command)
	}
}
