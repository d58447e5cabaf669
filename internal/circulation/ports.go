package circulation

import (
	"context"
	"time"

	"libraryapi/internal/book"
	"libraryapi/internal/user"
)

type Repository interface {
	Create(ctx context.Context, t *Transaction) error
	GetByID(ctx context.Context, id string) (Transaction, error)
	List(ctx context.Context, q Query) ([]Transaction, int, error)
	// FindOpen returns the user's Active or Overdue transaction of the given
	// type for a book, or ErrNotFound.
	FindOpen(ctx context.Context, userID, bookID string, typ Type) (Transaction, error)
	CountOpenByUser(ctx context.Context, userID string) (int, error)
	CountOpenByBook(ctx context.Context, bookID string) (int, error)
	Transition(ctx context.Context, id string, tr Transition) (Transaction, error)
	Renew(ctx context.Context, id string, maxRenewals int, dueDate, now time.Time) (Transaction, error)
	Update(ctx context.Context, id string, c Changes) (Transaction, error)
	DeleteClosed(ctx context.Context, id string) error
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
	ExpiredReservations(ctx context.Context, now time.Time) ([]Transaction, error)
	Counts(ctx context.Context) (Counts, error)
	DeleteAll(ctx context.Context) error
}

// BookStore is the slice of the catalog circulation needs; book.Repository
// satisfies it.
type BookStore interface {
	GetByID(ctx context.Context, id string) (book.Book, error)
	TakeCopy(ctx context.Context, id string) (book.Book, error)
	ReleaseCopy(ctx context.Context, id string) (book.Book, error)
	SetAvailableCopies(ctx context.Context, id string, available int) (book.Book, error)
}

// MemberStore is satisfied by *user.Service.
type MemberStore interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	AddFine(ctx context.Context, id string, amount float64) (user.User, error)
}
