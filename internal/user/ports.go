package user

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context, q Query) ([]User, int, error)
	Update(ctx context.Context, id string, ch Changes) (User, error)
	SetActive(ctx context.Context, id string, active bool) (User, error)
	Delete(ctx context.Context, id string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	AddFine(ctx context.Context, id string, amount float64) (User, error)
	PayFine(ctx context.Context, id string, amount float64) (User, error)
	Totals(ctx context.Context) (Totals, error)
	DeleteAll(ctx context.Context) error
}
