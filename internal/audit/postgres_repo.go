package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{db: db, timeout: timeout}
}

func (r *PostgresRepo) Insert(ctx context.Context, e *Entry) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var data any
	if len(e.Data) > 0 {
		data = []byte(e.Data)
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO audit_logs (timestamp, entity, entity_id, action, performed_by, data)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		e.Timestamp, e.Entity, e.EntityID, e.Action, e.PerformedBy, data,
	).Scan(&e.ID)
}

func (r *PostgresRepo) List(ctx context.Context, q Query) ([]Entry, int, error) {
	clauses := []string{"1=1"}
	args := []any{}
	add := func(col, val string) {
		if val == "" {
			return
		}
		args = append(args, val)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	add("entity", q.Entity)
	add("action", q.Action)
	add("performed_by", q.PerformedBy)
	where := "WHERE " + strings.Join(clauses, " AND ")

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM audit_logs "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 1000
	}
	sql := fmt.Sprintf(`
		SELECT id, timestamp, entity, entity_id, action, performed_by, COALESCE(data::text, '')
		FROM audit_logs %s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	rows, err := r.db.Query(ctx, sql, append(args, limit, q.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		var data string
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Entity, &e.EntityID, &e.Action, &e.PerformedBy, &data); err != nil {
			return nil, 0, err
		}
		if data != "" {
			e.Data = []byte(data)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}
