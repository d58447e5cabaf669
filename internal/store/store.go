// Package store opens the configured backend and hands out its repositories.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"libraryapi/internal/audit"
	"libraryapi/internal/auth"
	"libraryapi/internal/book"
	"libraryapi/internal/circulation"
	"libraryapi/internal/config"
	"libraryapi/internal/event"
	"libraryapi/internal/platform/mongodb"
	"libraryapi/internal/platform/postgres"
	"libraryapi/internal/user"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
)

// Repositories is one backend's implementation of every port.
type Repositories struct {
	Driver       string
	Books        book.Repository
	Users        user.Repository
	Transactions circulation.Repository
	Events       event.Repository
	Audit        audit.Repository
	Blacklist    auth.Blacklist

	ping  func(ctx context.Context) error
	close func()
}

// Ping reports whether the backend is reachable.
func (r *Repositories) Ping(ctx context.Context) error {
	return r.ping(ctx)
}

func (r *Repositories) Close() {
	r.close()
}

// Open connects to cfg.Driver. For MongoDB the indexes are created on the
// way; the Postgres schema is owned by cmd/migrate.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger) (*Repositories, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		return openMongo(ctx, cfg, log)
	case config.DriverPostgres:
		return openPostgres(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func openMongo(ctx context.Context, cfg config.Config, log *slog.Logger) (*Repositories, error) {
	client, db, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDB, cfg.DBTimeout)
	if err != nil {
		return nil, err
	}
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	log.Info("mongodb connected", "database", cfg.MongoDB)
	return mongoRepositories(client, db, cfg), nil
}

func mongoRepositories(client *mongo.Client, db *mongo.Database, cfg config.Config) *Repositories {
	t := cfg.DBTimeout
	return &Repositories{
		Driver:       config.DriverMongo,
		Books:        book.NewMongoRepo(db, t),
		Users:        user.NewMongoRepo(db, t),
		Transactions: circulation.NewMongoRepo(db, t),
		Events:       event.NewMongoRepo(db, t),
		Audit:        audit.NewMongoRepo(db, t),
		Blacklist:    auth.NewMongoBlacklist(db, t),
		ping: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		},
		close: func() {
			_ = client.Disconnect(context.Background())
		},
	}
}

func openPostgres(ctx context.Context, cfg config.Config, log *slog.Logger) (*Repositories, error) {
	pool, err := postgres.Open(ctx, cfg.DBDSN, cfg.DBTimeout)
	if err != nil {
		return nil, err
	}
	log.Info("postgres connected", "dsn", postgres.RedactDSN(cfg.DBDSN))
	return postgresRepositories(pool, cfg), nil
}

func postgresRepositories(pool *pgxpool.Pool, cfg config.Config) *Repositories {
	t := cfg.DBTimeout
	return &Repositories{
		Driver:       config.DriverPostgres,
		Books:        book.NewPostgresRepo(pool, t),
		Users:        user.NewPostgresRepo(pool, t),
		Transactions: circulation.NewPostgresRepo(pool, t),
		Events:       event.NewPostgresRepo(pool, t),
		Audit:        audit.NewPostgresRepo(pool, t),
		Blacklist:    auth.NewPostgresBlacklist(pool, t),
		ping:         pool.Ping,
		close:        pool.Close,
	}
}
