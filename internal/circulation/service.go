package circulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"libraryapi/internal/book"
	"libraryapi/internal/user"
)

// Actor is the caller of a transaction operation. Members may only act on
// their own transactions; admins on any.
type Actor struct {
	UserID string
	Admin  bool
}

type Service struct {
	repo    Repository
	books   BookStore
	members MemberStore
	policy  Policy
	log     *slog.Logger
	now     func() time.Time
}

func NewService(repo Repository, books BookStore, members MemberStore, policy Policy, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		books:   books,
		members: members,
		policy:  policy,
		log:     log,
		now:     time.Now,
	}
}

func (s *Service) activeMember(ctx context.Context, userID string) (user.User, error) {
	u, err := s.members.GetByID(ctx, userID)
	if err != nil {
		return user.User{}, err
	}
	if !u.IsActive {
		return user.User{}, ErrUserInactive
	}
	return u, nil
}

func (s *Service) checkLimit(ctx context.Context, u user.User) error {
	open, err := s.repo.CountOpenByUser(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("count open transactions: %w", err)
	}
	if open >= u.MembershipType.BorrowLimit() {
		return ErrLimitReached
	}
	return nil
}

// releaseCopy puts a copy back on the shelf. The status change that made the
// copy free has already been committed, so a failure here is logged for
// reconciliation instead of failing the request.
func (s *Service) releaseCopy(ctx context.Context, t Transaction, reason string) {
	if _, err := s.books.ReleaseCopy(ctx, t.BookID); err != nil {
		level := slog.LevelError
		if errors.Is(err, book.ErrNotFound) || errors.Is(err, book.ErrNoCopyOut) {
			level = slog.LevelWarn
		}
		s.log.Log(ctx, level, "release copy failed",
			"reason", reason,
			"transaction_id", t.ID,
			"book_id", t.BookID,
			"error", err,
		)
	}
}

// Borrow lends a copy to the user. An active reservation the user holds for
// the book is converted instead of taking a second copy.
func (s *Service) Borrow(ctx context.Context, userID, bookID string) (Transaction, error) {
	u, err := s.activeMember(ctx, userID)
	if err != nil {
		return Transaction{}, err
	}
	b, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		return Transaction{}, err
	}

	if _, err := s.repo.FindOpen(ctx, userID, bookID, TypeBorrow); err == nil {
		return Transaction{}, ErrAlreadyBorrowed
	} else if !errors.Is(err, ErrNotFound) {
		return Transaction{}, err
	}

	now := s.now().UTC()
	var converted *Transaction
	res, err := s.repo.FindOpen(ctx, userID, bookID, TypeReserve)
	switch {
	case err == nil:
		done, err := s.repo.Transition(ctx, res.ID, Transition{
			From:       []Status{StatusActive},
			To:         StatusCompleted,
			ReturnDate: &now,
		})
		if err == nil {
			converted = &done
		} else if !errors.Is(err, ErrStateChanged) {
			return Transaction{}, fmt.Errorf("convert reservation: %w", err)
		}
	case !errors.Is(err, ErrNotFound):
		return Transaction{}, err
	}

	if converted == nil {
		if err := s.checkLimit(ctx, u); err != nil {
			return Transaction{}, err
		}
		if _, err := s.books.TakeCopy(ctx, bookID); err != nil {
			if errors.Is(err, book.ErrNotAvailable) {
				return Transaction{}, ErrNotAvailable
			}
			return Transaction{}, err
		}
	}

	t := Transaction{
		UserID:     userID,
		BookID:     bookID,
		BookTitle:  b.Title,
		Type:       TypeBorrow,
		Status:     StatusActive,
		BorrowDate: now,
		DueDate:    now.Add(s.policy.LoanPeriod),
	}
	if converted != nil {
		t.Notes = "Picked up reservation " + converted.ID
	}
	if err := s.repo.Create(ctx, &t); err != nil {
		if converted != nil {
			if _, rerr := s.repo.Transition(ctx, converted.ID, Transition{
				From: []Status{StatusCompleted},
				To:   StatusActive,
			}); rerr != nil {
				s.log.Error("restore reservation failed", "transaction_id", converted.ID, "error", rerr)
			}
		} else {
			s.releaseCopy(ctx, Transaction{BookID: bookID}, "borrow insert failed")
		}
		return Transaction{}, fmt.Errorf("create borrow: %w", err)
	}
	return t, nil
}

func (s *Service) owned(ctx context.Context, id string, actor Actor) (Transaction, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if !actor.Admin && t.UserID != actor.UserID {
		return Transaction{}, ErrForbidden
	}
	return t, nil
}

// Return closes a borrow, charging a fine when it comes back late.
func (s *Service) Return(ctx context.Context, id string, actor Actor) (Transaction, error) {
	t, err := s.owned(ctx, id, actor)
	if err != nil {
		return Transaction{}, err
	}
	if t.Type != TypeBorrow || !t.IsOpen() {
		return Transaction{}, ErrNotActive
	}

	now := s.now().UTC()
	fine := Fine(t.DueDate, now, s.policy.FinePerDay)
	returned, err := s.repo.Transition(ctx, id, Transition{
		From:       OpenStatuses,
		To:         StatusCompleted,
		ReturnDate: &now,
		FineAmount: fine,
	})
	if err != nil {
		if errors.Is(err, ErrStateChanged) {
			return Transaction{}, ErrNotActive
		}
		return Transaction{}, err
	}

	if fine > 0 {
		s.chargeFine(ctx, returned, fine, now)
	}
	s.releaseCopy(ctx, returned, "return")
	return returned, nil
}

func (s *Service) chargeFine(ctx context.Context, borrow Transaction, fine float64, now time.Time) {
	if _, err := s.members.AddFine(ctx, borrow.UserID, fine); err != nil {
		s.log.Error("add fine failed", "user_id", borrow.UserID, "transaction_id", borrow.ID, "amount", fine, "error", err)
	}
	record := Transaction{
		UserID:     borrow.UserID,
		BookID:     borrow.BookID,
		BookTitle:  borrow.BookTitle,
		Type:       TypeFine,
		Status:     StatusCompleted,
		BorrowDate: borrow.BorrowDate,
		DueDate:    borrow.DueDate,
		ReturnDate: &now,
		FineAmount: fine,
		Notes:      "Overdue fine for " + borrow.ID,
	}
	if err := s.repo.Create(ctx, &record); err != nil {
		s.log.Error("record fine failed", "transaction_id", borrow.ID, "amount", fine, "error", err)
	}
}

// Reserve holds a copy for the user until the pickup deadline.
func (s *Service) Reserve(ctx context.Context, userID, bookID string) (Transaction, error) {
	u, err := s.activeMember(ctx, userID)
	if err != nil {
		return Transaction{}, err
	}
	b, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		return Transaction{}, err
	}
	if !b.IsAvailable {
		return Transaction{}, ErrNotAvailable
	}

	if _, err := s.repo.FindOpen(ctx, userID, bookID, TypeReserve); err == nil {
		return Transaction{}, ErrAlreadyReserved
	} else if !errors.Is(err, ErrNotFound) {
		return Transaction{}, err
	}
	if err := s.checkLimit(ctx, u); err != nil {
		return Transaction{}, err
	}

	if _, err := s.books.TakeCopy(ctx, bookID); err != nil {
		if errors.Is(err, book.ErrNotAvailable) {
			return Transaction{}, ErrNotAvailable
		}
		return Transaction{}, err
	}

	now := s.now().UTC()
	t := Transaction{
		UserID:     userID,
		BookID:     bookID,
		BookTitle:  b.Title,
		Type:       TypeReserve,
		Status:     StatusActive,
		BorrowDate: now,
		DueDate:    now.Add(s.policy.HoldPeriod),
	}
	if err := s.repo.Create(ctx, &t); err != nil {
		s.releaseCopy(ctx, Transaction{BookID: bookID}, "reserve insert failed")
		return Transaction{}, fmt.Errorf("create reservation: %w", err)
	}
	return t, nil
}

// CancelReservation releases the held copy. The guarded status flip makes
// the release happen at most once per reservation.
func (s *Service) CancelReservation(ctx context.Context, id string, actor Actor) (Transaction, error) {
	t, err := s.owned(ctx, id, actor)
	if err != nil {
		return Transaction{}, err
	}
	if t.Type != TypeReserve || t.Status != StatusActive {
		return Transaction{}, ErrNotActive
	}
	return s.cancel(ctx, t, "cancel reservation")
}

func (s *Service) cancel(ctx context.Context, t Transaction, reason string) (Transaction, error) {
	now := s.now().UTC()
	cancelled, err := s.repo.Transition(ctx, t.ID, Transition{
		From:       []Status{StatusActive},
		To:         StatusCancelled,
		ReturnDate: &now,
	})
	if err != nil {
		if errors.Is(err, ErrStateChanged) {
			return Transaction{}, ErrNotActive
		}
		return Transaction{}, err
	}
	s.releaseCopy(ctx, cancelled, reason)
	return cancelled, nil
}

// Renew extends an active loan by one loan period.
func (s *Service) Renew(ctx context.Context, id string, actor Actor) (Transaction, error) {
	t, err := s.owned(ctx, id, actor)
	if err != nil {
		return Transaction{}, err
	}
	if t.Type != TypeBorrow || !t.IsOpen() {
		return Transaction{}, ErrNotActive
	}
	now := s.now().UTC()
	if t.Status == StatusOverdue || now.After(t.DueDate) {
		return Transaction{}, ErrOverdue
	}
	if t.Renewals >= s.policy.MaxRenewals {
		return Transaction{}, ErrRenewalLimit
	}

	holds, _, err := s.repo.List(ctx, Query{BookID: t.BookID, Type: TypeReserve, Statuses: []Status{StatusActive}})
	if err != nil {
		return Transaction{}, err
	}
	for _, h := range holds {
		if h.UserID != t.UserID {
			return Transaction{}, ErrReservedByOthers
		}
	}

	renewed, err := s.repo.Renew(ctx, id, s.policy.MaxRenewals, t.DueDate.Add(s.policy.LoanPeriod), now)
	if err != nil {
		if errors.Is(err, ErrStateChanged) {
			return Transaction{}, ErrNotActive
		}
		return Transaction{}, err
	}
	return renewed, nil
}

func (s *Service) Get(ctx context.Context, id string, actor Actor) (Transaction, error) {
	return s.owned(ctx, id, actor)
}

func (s *Service) List(ctx context.Context, q Query) ([]Transaction, int, error) {
	return s.repo.List(ctx, q)
}

// Borrowed lists the user's loans that still hold a copy.
func (s *Service) Borrowed(ctx context.Context, userID string, limit, offset int) ([]Transaction, int, error) {
	return s.repo.List(ctx, Query{UserID: userID, Type: TypeBorrow, Statuses: OpenStatuses, Limit: limit, Offset: offset})
}

func (s *Service) Reservations(ctx context.Context, userID string, limit, offset int) ([]Transaction, int, error) {
	return s.repo.List(ctx, Query{UserID: userID, Type: TypeReserve, Statuses: []Status{StatusActive}, Limit: limit, Offset: offset})
}

func (s *Service) History(ctx context.Context, userID string, q Query) ([]Transaction, int, error) {
	q.UserID = userID
	return s.repo.List(ctx, q)
}

type UpdateInput struct {
	DueDate *time.Time `json:"dueDate"`
	Notes   *string    `json:"notes" validate:"omitempty,max=1000"`
}

// Update lets an admin move a due date or annotate a transaction. Moving an
// overdue loan's due date into the future makes it active again.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Transaction, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	c := Changes{DueDate: in.DueDate, Notes: in.Notes}
	if in.DueDate != nil && t.Type == TypeBorrow {
		now := s.now().UTC()
		switch {
		case t.Status == StatusOverdue && in.DueDate.After(now):
			active := StatusActive
			c.Status = &active
		case t.Status == StatusActive && !in.DueDate.After(now):
			overdue := StatusOverdue
			c.Status = &overdue
		}
	}
	return s.repo.Update(ctx, id, c)
}

// Delete removes a closed transaction. Open ones still account for a copy.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.DeleteClosed(ctx, id)
}

// Reconcile recomputes a book's available copies from its open transactions.
func (s *Service) Reconcile(ctx context.Context, bookID string) (book.Book, error) {
	b, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		return book.Book{}, err
	}
	open, err := s.repo.CountOpenByBook(ctx, bookID)
	if err != nil {
		return book.Book{}, err
	}
	available := min(max(b.TotalCopies-open, 0), b.TotalCopies)
	if available == b.AvailableCopies {
		return b, nil
	}
	s.log.Warn("copy count drift corrected",
		"book_id", bookID,
		"available_before", b.AvailableCopies,
		"available_after", available,
		"open_transactions", open,
	)
	return s.books.SetAvailableCopies(ctx, bookID, available)
}

type SweepResult struct {
	Overdue int64 `json:"overdue"`
	Expired int   `json:"expired"`
}

// Sweep marks late loans overdue and cancels reservations that were not
// picked up in time.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.now().UTC()
	var res SweepResult

	n, err := s.repo.MarkOverdue(ctx, now)
	if err != nil {
		return res, fmt.Errorf("mark overdue: %w", err)
	}
	res.Overdue = n

	expired, err := s.repo.ExpiredReservations(ctx, now)
	if err != nil {
		return res, fmt.Errorf("list expired reservations: %w", err)
	}
	for _, t := range expired {
		if _, err := s.cancel(ctx, t, "reservation expired"); err != nil {
			if errors.Is(err, ErrNotActive) {
				continue
			}
			return res, fmt.Errorf("expire reservation %s: %w", t.ID, err)
		}
		res.Expired++
	}
	return res, nil
}

func (s *Service) Counts(ctx context.Context) (Counts, error) {
	return s.repo.Counts(ctx)
}

func (s *Service) DeleteAll(ctx context.Context) error {
	return s.repo.DeleteAll(ctx)
}
