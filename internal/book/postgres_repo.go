package book

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

const bookColumns = `id, title, author, isbn, category, description, cover_image, file_url,
	total_copies, available_copies, published_year, publisher, language, pages,
	rating, tags, is_digital, created_at, updated_at`

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

func scanBook(row pgx.Row) (Book, error) {
	var b Book
	var category string
	err := row.Scan(
		&b.ID, &b.Title, &b.Author, &b.ISBN, &category, &b.Description, &b.CoverImage, &b.FileURL,
		&b.TotalCopies, &b.AvailableCopies, &b.PublishedYear, &b.Publisher, &b.Language, &b.Pages,
		&b.Rating, &b.Tags, &b.IsDigital, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Book{}, ErrNotFound
		}
		return Book{}, err
	}
	b.Category = Category(category)
	b.Derive()
	return b, nil
}

var sortColumns = map[string]string{
	"title":      "title",
	"author":     "author",
	"year":       "published_year",
	"rating":     "rating",
	"created_at": "created_at",
}

func (r *PostgresRepo) List(ctx context.Context, q Query) ([]Book, int, error) {
	clauses := []string{"1=1"}
	args := []any{}
	argn := 1

	if q.Category != "" {
		clauses = append(clauses, fmt.Sprintf("category = $%d", argn))
		args = append(args, string(q.Category))
		argn++
	}
	if q.Language != "" {
		clauses = append(clauses, fmt.Sprintf("language = $%d", argn))
		args = append(args, q.Language)
		argn++
	}
	if q.Tag != "" {
		clauses = append(clauses, fmt.Sprintf("$%d = ANY(tags)", argn))
		args = append(args, q.Tag)
		argn++
	}
	if q.Available != nil {
		if *q.Available {
			clauses = append(clauses, "available_copies > 0")
		} else {
			clauses = append(clauses, "available_copies <= 0")
		}
	}
	if q.Q != "" {
		clauses = append(clauses, fmt.Sprintf(
			"(title ILIKE $%d OR author ILIKE $%d OR isbn ILIKE $%d OR array_to_string(tags, ' ') ILIKE $%d)",
			argn, argn, argn, argn))
		args = append(args, "%"+q.Q+"%")
		argn++
	}

	where := "WHERE " + strings.Join(clauses, " AND ")

	sortCol, ok := sortColumns[q.Sort]
	if !ok {
		sortCol = "title"
	}
	order := "ASC"
	if q.Desc {
		order = "DESC"
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM books "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 1000
	}
	dataSQL := fmt.Sprintf(`SELECT %s FROM books %s ORDER BY %s %s, id LIMIT $%d OFFSET $%d`,
		bookColumns, where, sortCol, order, argn, argn+1)
	rows, err := r.db.Query(ctx, dataSQL, append(args, limit, q.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (Book, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanBook(r.db.QueryRow(ctx, "SELECT "+bookColumns+" FROM books WHERE id = $1", id))
}

func (r *PostgresRepo) GetByISBN(ctx context.Context, isbn string) (Book, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanBook(r.db.QueryRow(ctx, "SELECT "+bookColumns+" FROM books WHERE isbn = $1", isbn))
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func (r *PostgresRepo) Create(ctx context.Context, b *Book) error {
	query := `
	INSERT INTO books (title, author, isbn, category, description, cover_image, file_url,
	                   total_copies, available_copies, published_year, publisher, language, pages,
	                   rating, tags, is_digital)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	RETURNING ` + bookColumns

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	created, err := scanBook(r.db.QueryRow(ctx, query,
		b.Title, b.Author, b.ISBN, string(b.Category), b.Description, b.CoverImage, b.FileURL,
		b.TotalCopies, b.AvailableCopies, b.PublishedYear, b.Publisher, b.Language, b.Pages,
		b.Rating, tagsOrEmpty(b.Tags), b.IsDigital,
	))
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}
	*b = created
	return nil
}

func (r *PostgresRepo) Update(ctx context.Context, b *Book, prevTotal int) error {
	delta := b.TotalCopies - prevTotal
	query := `
	UPDATE books SET
		title = $2, author = $3, isbn = $4, category = $5, description = $6,
		cover_image = $7, file_url = $8, total_copies = $9,
		available_copies = available_copies + $10,
		published_year = $11, publisher = $12, language = $13, pages = $14,
		rating = $15, tags = $16, is_digital = $17, updated_at = now()
	WHERE id = $1 AND total_copies = $18 AND available_copies + $10 >= 0
	RETURNING ` + bookColumns

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	updated, err := scanBook(r.db.QueryRow(ctx, query,
		b.ID, b.Title, b.Author, b.ISBN, string(b.Category), b.Description,
		b.CoverImage, b.FileURL, b.TotalCopies, delta,
		b.PublishedYear, b.Publisher, b.Language, b.Pages,
		b.Rating, tagsOrEmpty(b.Tags), b.IsDigital, prevTotal,
	))
	if err == nil {
		*b = updated
		return nil
	}
	if postgres.IsUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	current, getErr := r.GetByID(ctx, b.ID)
	if getErr != nil {
		return getErr
	}
	if current.TotalCopies != prevTotal {
		return ErrConflict
	}
	return ErrInvalidCopies
}

// conditionalUpdate runs a guarded single-row update and tells a missing
// book apart from a failed guard.
func (r *PostgresRepo) conditionalUpdate(ctx context.Context, id, set, guard string, failed error, args ...any) (Book, error) {
	query := fmt.Sprintf("UPDATE books SET %s, updated_at = now() WHERE id = $1 AND %s RETURNING %s", set, guard, bookColumns)

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	b, err := scanBook(r.db.QueryRow(ctx, query, append([]any{id}, args...)...))
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Book{}, err
	}
	var exists bool
	if err := r.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM books WHERE id = $1)", id).Scan(&exists); err != nil {
		return Book{}, err
	}
	if !exists {
		return Book{}, ErrNotFound
	}
	return Book{}, failed
}

func (r *PostgresRepo) TakeCopy(ctx context.Context, id string) (Book, error) {
	return r.conditionalUpdate(ctx, id, "available_copies = available_copies - 1", "available_copies > 0", ErrNotAvailable)
}

func (r *PostgresRepo) ReleaseCopy(ctx context.Context, id string) (Book, error) {
	return r.conditionalUpdate(ctx, id, "available_copies = available_copies + 1", "available_copies < total_copies", ErrNoCopyOut)
}

func (r *PostgresRepo) SetAvailableCopies(ctx context.Context, id string, available int) (Book, error) {
	if available < 0 {
		return Book{}, ErrInvalidCopies
	}
	return r.conditionalUpdate(ctx, id, "available_copies = $2", "total_copies >= $2", ErrInvalidCopies, available)
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(ctx, "DELETE FROM books WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) Totals(ctx context.Context) (Totals, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	var t Totals
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_copies), 0), COALESCE(SUM(available_copies), 0)
		FROM books`).Scan(&t.Titles, &t.TotalCopies, &t.AvailableCopies)
	return t, err
}

func (r *PostgresRepo) DeleteAll(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	_, err := r.db.Exec(ctx, "DELETE FROM books")
	return err
}
