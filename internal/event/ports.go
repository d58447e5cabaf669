package event

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id string) (Event, error)
	List(ctx context.Context, q Query) ([]Event, int, error)
	// Update writes every field except CurrentAttendees, and only while the
	// new MaxAttendees still covers the stored CurrentAttendees.
	Update(ctx context.Context, e *Event) error
	Delete(ctx context.Context, id string) error
	// Register takes one seat when the event is active and not full.
	Register(ctx context.Context, id string) (Event, error)
	CountUpcoming(ctx context.Context, now time.Time) (int, error)
	DeleteAll(ctx context.Context) error
}
