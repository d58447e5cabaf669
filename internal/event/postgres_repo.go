package event

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const eventColumns = `id, title, description, date, time, location, max_attendees,
	current_attendees, category, is_active, created_at, updated_at`

type PostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{db: db, timeout: timeout}
}

func (r *PostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func scanEvent(row pgx.Row) (Event, error) {
	var e Event
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Date, &e.Time, &e.Location, &e.MaxAttendees,
		&e.CurrentAttendees, &e.Category, &e.IsActive, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ErrNotFound
		}
		return Event{}, err
	}
	return e, nil
}

func (r *PostgresRepo) Create(ctx context.Context, e *Event) error {
	query := `
	INSERT INTO events (title, description, date, time, location, max_attendees, category, is_active)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING ` + eventColumns

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	created, err := scanEvent(r.db.QueryRow(ctx, query,
		e.Title, e.Description, e.Date, e.Time, e.Location, e.MaxAttendees, e.Category, e.IsActive))
	if err != nil {
		return err
	}
	*e = created
	return nil
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (Event, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanEvent(r.db.QueryRow(ctx, "SELECT "+eventColumns+" FROM events WHERE id = $1", id))
}

func (r *PostgresRepo) List(ctx context.Context, q Query) ([]Event, int, error) {
	clauses := []string{"1=1"}
	args := []any{}
	argn := 1

	if q.Active != nil {
		clauses = append(clauses, fmt.Sprintf("is_active = $%d", argn))
		args = append(args, *q.Active)
		argn++
	}
	if q.From != nil {
		clauses = append(clauses, fmt.Sprintf("date >= $%d", argn))
		args = append(args, *q.From)
		argn++
	}
	if q.Category != "" {
		clauses = append(clauses, fmt.Sprintf("category = $%d", argn))
		args = append(args, q.Category)
		argn++
	}
	where := "WHERE " + strings.Join(clauses, " AND ")

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM events "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 1000
	}
	dataSQL := fmt.Sprintf(`SELECT %s FROM events %s ORDER BY date, id LIMIT $%d OFFSET $%d`,
		eventColumns, where, argn, argn+1)
	rows, err := r.db.Query(ctx, dataSQL, append(args, limit, q.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}
	return events, total, rows.Err()
}

func (r *PostgresRepo) exists(ctx context.Context, id string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	var found bool
	err := r.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)", id).Scan(&found)
	return found, err
}

func (r *PostgresRepo) Update(ctx context.Context, e *Event) error {
	query := `
	UPDATE events SET
		title = $2, description = $3, date = $4, time = $5, location = $6,
		max_attendees = $7, category = $8, is_active = $9, updated_at = now()
	WHERE id = $1 AND current_attendees <= $7
	RETURNING ` + eventColumns

	updCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	updated, err := scanEvent(r.db.QueryRow(updCtx, query,
		e.ID, e.Title, e.Description, e.Date, e.Time, e.Location, e.MaxAttendees, e.Category, e.IsActive))
	if err == nil {
		*e = updated
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	found, err := r.exists(ctx, e.ID)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return ErrCapacity
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(ctx, "DELETE FROM events WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) Register(ctx context.Context, id string) (Event, error) {
	query := `
	UPDATE events SET current_attendees = current_attendees + 1, updated_at = now()
	WHERE id = $1 AND is_active AND current_attendees < max_attendees
	RETURNING ` + eventColumns

	updCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	e, err := scanEvent(r.db.QueryRow(updCtx, query, id))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Event{}, err
	}
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if !current.IsActive {
		return Event{}, ErrInactive
	}
	return Event{}, ErrFull
}

func (r *PostgresRepo) CountUpcoming(ctx context.Context, now time.Time) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	var n int
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM events WHERE is_active AND date >= $1", now).Scan(&n)
	return n, err
}

func (r *PostgresRepo) DeleteAll(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	_, err := r.db.Exec(ctx, "DELETE FROM events")
	return err
}
