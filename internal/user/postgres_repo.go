package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"libraryapi/internal/platform/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, first_name, last_name, email, password_hash, phone, address,
	membership_id, membership_type, is_active, is_admin, join_date, last_login,
	fine_amount, created_at, updated_at`

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

func scanUser(row pgx.Row) (User, error) {
	var u User
	var membership string
	err := row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Password, &u.Phone, &u.Address,
		&u.MembershipID, &membership, &u.IsActive, &u.IsAdmin, &u.JoinDate, &u.LastLogin,
		&u.FineAmount, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		if postgres.IsUniqueViolation(err) {
			return User{}, ErrAlreadyExists
		}
		return User{}, err
	}
	u.MembershipType = MembershipType(membership)
	return u, nil
}

func (r *PostgresRepo) Create(ctx context.Context, u *User) error {
	query := `
	INSERT INTO users (first_name, last_name, email, password_hash, phone, address,
	                   membership_id, membership_type, is_active, is_admin, join_date, fine_amount)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, now()), $12)
	RETURNING ` + userColumns

	var joinDate *time.Time
	if !u.JoinDate.IsZero() {
		joinDate = &u.JoinDate
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	created, err := scanUser(r.db.QueryRow(ctx, query,
		u.FirstName, u.LastName, u.Email, u.Password, u.Phone, u.Address,
		u.MembershipID, string(u.MembershipType), u.IsActive, u.IsAdmin, joinDate, u.FineAmount,
	))
	if err != nil {
		return err
	}
	*u = created
	return nil
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanUser(r.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

func (r *PostgresRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanUser(r.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email))
}

func (r *PostgresRepo) List(ctx context.Context, q Query) ([]User, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if q.MembershipType != "" {
		args = append(args, string(q.MembershipType))
		clauses = append(clauses, fmt.Sprintf("membership_type = $%d", len(args)))
	}
	if q.Active != nil {
		args = append(args, *q.Active)
		clauses = append(clauses, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if q.Q != "" {
		args = append(args, "%"+q.Q+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d OR membership_id ILIKE $%d)", n, n, n, n))
	}
	where := "WHERE " + strings.Join(clauses, " AND ")

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM users "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 1000
	}
	sql := fmt.Sprintf("SELECT %s FROM users %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d",
		userColumns, where, len(args)+1, len(args)+2)
	rows, err := r.db.Query(ctx, sql, append(args, limit, q.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// Update writes only the non-nil fields of ch; NULL parameters fall back to
// the stored column.
func (r *PostgresRepo) Update(ctx context.Context, id string, ch Changes) (User, error) {
	query := `
	UPDATE users SET
		first_name      = COALESCE($2, first_name),
		last_name       = COALESCE($3, last_name),
		phone           = COALESCE($4, phone),
		address         = COALESCE($5, address),
		email           = COALESCE($6, email),
		password_hash   = COALESCE($7, password_hash),
		membership_type = COALESCE($8, membership_type),
		is_admin        = COALESCE($9, is_admin),
		is_active       = COALESCE($10, is_active),
		fine_amount     = COALESCE($11, fine_amount),
		updated_at      = now()
	WHERE id = $1
	RETURNING ` + userColumns

	var membership *string
	if ch.MembershipType != nil {
		m := string(*ch.MembershipType)
		membership = &m
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanUser(r.db.QueryRow(ctx, query,
		id, ch.FirstName, ch.LastName, ch.Phone, ch.Address, ch.Email, ch.PasswordHash,
		membership, ch.IsAdmin, ch.IsActive, ch.FineAmount,
	))
}

func (r *PostgresRepo) SetActive(ctx context.Context, id string, active bool) (User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanUser(r.db.QueryRow(ctx,
		"UPDATE users SET is_active = $2, updated_at = now() WHERE id = $1 RETURNING "+userColumns,
		id, active))
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(ctx, "UPDATE users SET last_login = $2 WHERE id = $1", id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) AddFine(ctx context.Context, id string, amount float64) (User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanUser(r.db.QueryRow(ctx,
		"UPDATE users SET fine_amount = fine_amount + $2, updated_at = now() WHERE id = $1 RETURNING "+userColumns,
		id, amount))
}

func (r *PostgresRepo) PayFine(ctx context.Context, id string, amount float64) (User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	u, err := scanUser(r.db.QueryRow(ctx, `
		UPDATE users SET fine_amount = fine_amount - $2, updated_at = now()
		WHERE id = $1 AND fine_amount >= $2
		RETURNING `+userColumns, id, amount))
	if !errors.Is(err, ErrNotFound) {
		return u, err
	}
	var exists bool
	if err := r.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)", id).Scan(&exists); err != nil {
		return User{}, err
	}
	if !exists {
		return User{}, ErrNotFound
	}
	return User{}, ErrOverpayment
}

func (r *PostgresRepo) Totals(ctx context.Context) (Totals, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	var t Totals
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active), COALESCE(SUM(fine_amount), 0)::float8
		FROM users`).Scan(&t.Users, &t.ActiveUsers, &t.OutstandingFines)
	return t, err
}

func (r *PostgresRepo) DeleteAll(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	_, err := r.db.Exec(ctx, "DELETE FROM users")
	return err
}
