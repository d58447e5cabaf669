// Package seed loads demo data into an empty (or reset) library.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"libraryapi/internal/book"
	"libraryapi/internal/event"
	"libraryapi/internal/user"
)

type BookCatalog interface {
	Create(ctx context.Context, in book.CreateInput) (book.Book, error)
	DeleteAll(ctx context.Context) error
}

type Members interface {
	Create(ctx context.Context, in user.CreateInput) (user.User, error)
	DeleteAll(ctx context.Context) error
}

type Events interface {
	Create(ctx context.Context, in event.CreateInput) (event.Event, error)
	DeleteAll(ctx context.Context) error
}

// Resetter clears a collection that is not seeded, such as transactions.
type Resetter interface {
	DeleteAll(ctx context.Context) error
}

type Options struct {
	Reset         bool   `json:"reset"`
	AdminEmail    string `json:"adminEmail" validate:"omitempty,email"`
	AdminPassword string `json:"adminPassword" validate:"omitempty,password_strength"`
	// SkipAdmin leaves admin accounts alone; set for requests that did not
	// name admin credentials.
	SkipAdmin bool `json:"-"`
}

type Counts struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

type Summary struct {
	Reset   bool   `json:"reset"`
	Books   Counts `json:"books"`
	Users   Counts `json:"users"`
	Events  Counts `json:"events"`
	AdminID string `json:"adminId,omitempty"`
}

type Seeder struct {
	books        BookCatalog
	members      Members
	events       Events
	transactions Resetter
	log          *slog.Logger
	now          func() time.Time
}

func New(books BookCatalog, members Members, events Events, transactions Resetter, log *slog.Logger) *Seeder {
	return &Seeder{
		books:        books,
		members:      members,
		events:       events,
		transactions: transactions,
		log:          log,
		now:          time.Now,
	}
}

const (
	DefaultAdminEmail    = "admin@library.local"
	DefaultAdminPassword = "Admin#2024"
)

// Run inserts the demo data. Books and users that already exist are skipped,
// so running it twice is harmless. Events have no natural key and are only
// inserted on an empty or reset store.
func (s *Seeder) Run(ctx context.Context, opts Options) (Summary, error) {
	sum := Summary{Reset: opts.Reset}
	if opts.Reset {
		if err := s.reset(ctx); err != nil {
			return sum, err
		}
	}

	for _, in := range sampleBooks() {
		_, err := s.books.Create(ctx, in)
		if err := tally(&sum.Books, err, book.ErrAlreadyExists); err != nil {
			return sum, fmt.Errorf("seed book %s: %w", in.ISBN, err)
		}
	}

	if !opts.SkipAdmin {
		admin, err := s.CreateAdmin(ctx, opts.AdminEmail, opts.AdminPassword)
		switch {
		case err == nil:
			sum.Users.Created++
			sum.AdminID = admin.ID
		case errors.Is(err, user.ErrAlreadyExists):
			sum.Users.Skipped++
		default:
			return sum, fmt.Errorf("seed admin: %w", err)
		}
	}

	for _, in := range sampleMembers() {
		_, err := s.members.Create(ctx, in)
		if err := tally(&sum.Users, err, user.ErrAlreadyExists); err != nil {
			return sum, fmt.Errorf("seed member %s: %w", in.Email, err)
		}
	}

	if sum.Books.Created > 0 {
		for _, in := range sampleEvents(s.now().UTC()) {
			if _, err := s.events.Create(ctx, in); err != nil {
				return sum, fmt.Errorf("seed event %q: %w", in.Title, err)
			}
			sum.Events.Created++
		}
	} else {
		sum.Events.Skipped = len(sampleEvents(s.now()))
	}

	s.log.Info("seed finished",
		"reset", opts.Reset,
		"books_created", sum.Books.Created,
		"books_skipped", sum.Books.Skipped,
		"users_created", sum.Users.Created,
		"users_skipped", sum.Users.Skipped,
		"events_created", sum.Events.Created,
	)
	return sum, nil
}

// CreateAdmin adds an active admin account. Empty arguments fall back to the
// demo credentials.
func (s *Seeder) CreateAdmin(ctx context.Context, email, password string) (user.User, error) {
	if email == "" {
		email = DefaultAdminEmail
	}
	if password == "" {
		password = DefaultAdminPassword
	}
	return s.members.Create(ctx, user.CreateInput{
		RegisterInput: user.RegisterInput{
			FirstName:      "Library",
			LastName:       "Admin",
			Email:          email,
			Password:       password,
			MembershipType: string(user.MembershipPremium),
		},
		IsAdmin: true,
	})
}

func (s *Seeder) reset(ctx context.Context) error {
	steps := []struct {
		name string
		r    Resetter
	}{
		{"transactions", s.transactions},
		{"events", s.events},
		{"users", s.members},
		{"books", s.books},
	}
	for _, step := range steps {
		if err := step.r.DeleteAll(ctx); err != nil {
			return fmt.Errorf("reset %s: %w", step.name, err)
		}
	}
	s.log.Warn("seed reset cleared all collections")
	return nil
}

func tally(c *Counts, err, exists error) error {
	switch {
	case err == nil:
		c.Created++
	case errors.Is(err, exists):
		c.Skipped++
	default:
		return err
	}
	return nil
}
