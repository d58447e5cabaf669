package circulation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const transactionColumns = `id, user_id, book_id, book_title, type, status, borrow_date, due_date,
	return_date, fine_amount, renewals, notes, created_at, updated_at`

// openClause matches rows that still hold a copy.
const openClause = `type IN ('Borrow', 'Reserve') AND status IN ('Active', 'Overdue')`

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

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	var typ, status string
	err := row.Scan(
		&t.ID, &t.UserID, &t.BookID, &t.BookTitle, &typ, &status, &t.BorrowDate, &t.DueDate,
		&t.ReturnDate, &t.FineAmount, &t.Renewals, &t.Notes, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}
	t.Type = Type(typ)
	t.Status = Status(status)
	return t, nil
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *PostgresRepo) Create(ctx context.Context, t *Transaction) error {
	query := `
	INSERT INTO transactions (user_id, book_id, book_title, type, status, borrow_date, due_date,
	                          return_date, fine_amount, renewals, notes)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING ` + transactionColumns

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	created, err := scanTransaction(r.db.QueryRow(ctx, query,
		t.UserID, t.BookID, t.BookTitle, string(t.Type), string(t.Status), t.BorrowDate, t.DueDate,
		t.ReturnDate, t.FineAmount, t.Renewals, t.Notes,
	))
	if err != nil {
		return err
	}
	*t = created
	return nil
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (Transaction, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanTransaction(r.db.QueryRow(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = $1", id))
}

func (r *PostgresRepo) query(ctx context.Context, sql string, args ...any) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) List(ctx context.Context, q Query) ([]Transaction, int, error) {
	clauses := []string{"1=1"}
	args := []any{}
	add := func(clause string, val any) {
		args = append(args, val)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if q.UserID != "" {
		add("user_id = $%d", q.UserID)
	}
	if q.BookID != "" {
		add("book_id = $%d", q.BookID)
	}
	if q.Type != "" {
		add("type = $%d", string(q.Type))
	}
	if len(q.Statuses) > 0 {
		add("status = ANY($%d)", statusStrings(q.Statuses))
	}
	where := "WHERE " + strings.Join(clauses, " AND ")

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM transactions "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 1000
	}
	sql := fmt.Sprintf("SELECT %s FROM transactions %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		transactionColumns, where, len(args)+1, len(args)+2)
	out, err := r.query(ctx, sql, append(args, limit, q.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *PostgresRepo) FindOpen(ctx context.Context, userID, bookID string, typ Type) (Transaction, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanTransaction(r.db.QueryRow(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = $1 AND book_id = $2 AND type = $3 AND status IN ('Active', 'Overdue')
		ORDER BY created_at DESC LIMIT 1`,
		userID, bookID, string(typ)))
}

func (r *PostgresRepo) countWhere(ctx context.Context, where string, args ...any) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	var n int
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM transactions WHERE "+where, args...).Scan(&n)
	return n, err
}

func (r *PostgresRepo) CountOpenByUser(ctx context.Context, userID string) (int, error) {
	return r.countWhere(ctx, "user_id = $1 AND "+openClause, userID)
}

func (r *PostgresRepo) CountOpenByBook(ctx context.Context, bookID string) (int, error) {
	return r.countWhere(ctx, "book_id = $1 AND "+openClause, bookID)
}

// guardedUpdate runs an UPDATE ... WHERE id = $1 AND guard and tells a
// missing row apart from a failed guard.
func (r *PostgresRepo) guardedUpdate(ctx context.Context, id, set, guard string, args ...any) (Transaction, error) {
	sql := fmt.Sprintf("UPDATE transactions SET %s, updated_at = now() WHERE id = $1 AND %s RETURNING %s",
		set, guard, transactionColumns)

	opCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	t, err := scanTransaction(r.db.QueryRow(opCtx, sql, append([]any{id}, args...)...))
	if !errors.Is(err, ErrNotFound) {
		return t, err
	}
	n, err := r.countWhere(ctx, "id = $1", id)
	if err != nil {
		return Transaction{}, err
	}
	if n == 0 {
		return Transaction{}, ErrNotFound
	}
	return Transaction{}, ErrStateChanged
}

func (r *PostgresRepo) Transition(ctx context.Context, id string, tr Transition) (Transaction, error) {
	return r.guardedUpdate(ctx, id,
		"status = $2, return_date = $3, fine_amount = $4",
		"status = ANY($5)",
		string(tr.To), tr.ReturnDate, tr.FineAmount, statusStrings(tr.From),
	)
}

func (r *PostgresRepo) Renew(ctx context.Context, id string, maxRenewals int, dueDate, now time.Time) (Transaction, error) {
	return r.guardedUpdate(ctx, id,
		"due_date = $2, renewals = renewals + 1",
		"type = 'Borrow' AND status = 'Active' AND renewals < $3 AND due_date >= $4",
		dueDate, maxRenewals, now,
	)
}

func (r *PostgresRepo) Update(ctx context.Context, id string, c Changes) (Transaction, error) {
	var status *string
	if c.Status != nil {
		s := string(*c.Status)
		status = &s
	}
	return r.guardedUpdate(ctx, id,
		"due_date = COALESCE($2, due_date), notes = COALESCE($3, notes), status = COALESCE($4, status)",
		"true",
		c.DueDate, c.Notes, status,
	)
}

func (r *PostgresRepo) DeleteClosed(ctx context.Context, id string) error {
	opCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(opCtx, "DELETE FROM transactions WHERE id = $1 AND NOT ("+openClause+")", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	n, err := r.countWhere(ctx, "id = $1", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrStillOpen
}

func (r *PostgresRepo) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(ctx, `
		UPDATE transactions SET status = 'Overdue', updated_at = $1
		WHERE type = 'Borrow' AND status = 'Active' AND due_date < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepo) ExpiredReservations(ctx context.Context, now time.Time) ([]Transaction, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE type = 'Reserve' AND status = 'Active' AND due_date < $1
		ORDER BY due_date`, now)
}

func (r *PostgresRepo) Counts(ctx context.Context) (Counts, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT type, status, COUNT(*) FROM transactions
		WHERE `+openClause+`
		GROUP BY type, status`)
	if err != nil {
		return Counts{}, err
	}
	defer rows.Close()

	var c Counts
	for rows.Next() {
		var typ, status string
		var n int
		if err := rows.Scan(&typ, &status, &n); err != nil {
			return Counts{}, err
		}
		c.add(Type(typ), Status(status), n)
	}
	return c, rows.Err()
}

func (r *PostgresRepo) DeleteAll(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	_, err := r.db.Exec(ctx, "DELETE FROM transactions")
	return err
}
