package book

import (
	"context"
)

// Repository defines the contract for book data storage.
//
// TakeCopy and ReleaseCopy are single conditional updates: TakeCopy only
// succeeds while a copy is available and ReleaseCopy never lifts the count
// above TotalCopies.
type Repository interface {
	List(ctx context.Context, q Query) ([]Book, int, error)
	GetByID(ctx context.Context, id string) (Book, error)
	GetByISBN(ctx context.Context, isbn string) (Book, error)
	Create(ctx context.Context, b *Book) error
	// Update writes b and shifts AvailableCopies by the change in
	// TotalCopies, provided TotalCopies still equals prevTotal.
	Update(ctx context.Context, b *Book, prevTotal int) error
	Delete(ctx context.Context, id string) error
	TakeCopy(ctx context.Context, id string) (Book, error)
	ReleaseCopy(ctx context.Context, id string) (Book, error)
	SetAvailableCopies(ctx context.Context, id string, available int) (Book, error)
	Totals(ctx context.Context) (Totals, error)
	DeleteAll(ctx context.Context) error
}
