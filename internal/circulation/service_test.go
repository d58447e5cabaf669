package circulation

import (
	"context"
	"errors"
	"testing"
	"time"

	"libraryapi/internal/book"
	"libraryapi/internal/logger"
	"libraryapi/internal/user"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *Service
	repo    *MockRepository
	books   *MockBookStore
	members *MockMemberStore
}

func newFixture(t *testing.T) fixture {
	ctrl := gomock.NewController(t)
	f := fixture{
		repo:    NewMockRepository(ctrl),
		books:   NewMockBookStore(ctrl),
		members: NewMockMemberStore(ctrl),
	}
	f.svc = NewService(f.repo, f.books, f.members, DefaultPolicy(), logger.Discard())
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func member(id string) user.User {
	return user.User{ID: id, IsActive: true, MembershipType: user.MembershipBasic}
}

func shelfBook(id string, available int) book.Book {
	b := book.Book{ID: id, Title: "Dune", TotalCopies: 2, AvailableCopies: available}
	b.Derive()
	return b
}

func TestService_Borrow(t *testing.T) {
	ctx := context.Background()

	t.Run("takes the last copy", func(t *testing.T) {
		f := newFixture(t)
		f.members.EXPECT().GetByID(ctx, "u1").Return(member("u1"), nil)
		f.books.EXPECT().GetByID(ctx, "b1").Return(shelfBook("b1", 1), nil)
		f.repo.EXPECT().FindOpen(ctx, "u1", "b1", TypeBorrow).Return(Transaction{}, ErrNotFound)
		f.repo.EXPECT().FindOpen(ctx, "u1", "b1", TypeReserve).Return(Transaction{}, ErrNotFound)
		f.repo.EXPECT().CountOpenByUser(ctx, "u1").Return(2, nil)
		f.books.EXPECT().TakeCopy(ctx, "b1").Return(shelfBook("b1", 0), nil)
		f.repo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, tx *Transaction) error {
			tx.ID = "t1"
			return nil
		})

		got, err := f.svc.Borrow(ctx, "u1", "b1")

		require.NoError(t, err)
		assert.Equal(t, "t1", got.ID)
		assert.Equal(t, TypeBorrow, got.Type)
		assert.Equal(t, StatusActive, got.Status)
		assert.Equal(t, "Dune", got.BookTitle)
		assert.Equal(t, fixedNow.Add(14*24*time.Hour), got.DueDate)
	})

	t.Run("no copy left", func(t *testing.T) {
		f := newFixture(t)
		f.members.EXPECT().GetByID(ctx, "u1").Return(member("u1"), nil)
		f.books.EXPECT().GetByID(ctx, "b1").Return(shelfBook("b1", 0), nil)
		f.repo.EXPECT().FindOpen(ctx, "u1", "b1", TypeBorrow).Return(Transaction{}, ErrNotFound)
		f.repo.EXPECT().FindOpen(ctx, "u1", "b1", TypeReserve).Return(Transaction{}, ErrNotFound)
		f.repo.EXPECT().CountOpenByUser(ctx, "u1").Return(0, nil)
		f.books.EXPECT().TakeCopy(ctx, "b1").Return(book.Book{}, book.ErrNotAvailable)

		_, err := f.svc.Borrow(ctx, "u1", "b1")

		assert.ErrorIs(t, err, ErrNotAvailable)
	})

	t.Run("limit reached", func(t *testing.T) {
		f := newFixture(t)
		f.members.EXPECT().GetByID(ctx, "u1").Return(member("u1"), nil)
		f.books.EXPECT().GetByID(ctx, "b1").Return(shelfBook("b1", 1), nil)
		f.repo.EXPECT().FindOpen(ctx, "u1", "b1", TypeBorrow).Return(Transaction{}, ErrNotFound)
		f.repo.EXPECT().FindOpen(ctx, "u1", "b1", TypeReserve).Return(Transaction{}, ErrNotFound)
		f.repo.EXPECT().CountOpenByUser(ctx, "u1").Return(3, nil)

		_, err := f.svc.Borrow(ctx, "u1", "b1")

		assert.ErrorIs(t, err, ErrLimitReached)
	})

	t.Run("already borrowed", func(t *testing.T) {
		f := newFixture(t)
		f.members.EXPECT().GetByID(ctx, "u1").Return(member("u1"), nil)
		f.books.EXPECT().GetByID(ctx, "b1").Return(shelfBook("b1", 1), nil)
		f.repo.EXPECT().FindOpen(ctx, "u1", "b1", TypeBorrow).Return(Transaction{ID: "t0"}, nil)

		_, err := f.svc.Borrow(ctx, "u1", "b1")

		assert.ErrorIs(t, err, ErrAlreadyBorrowed)
	})

	t.Run("inactive member", func(t *testing.T) {
		f := newFixture(t)
		u := member("u1")
		u.IsActive = false
		f.members.EXPECT().GetByID(ctx, "u1").Return(u, nil)

		_, err := f.svc.Borrow(ctx, "u1", "b1")

		assert.ErrorIs(t, err, ErrUserInactive)
	})

	t.Run("converts own reservation without taking a copy", func(t *testing.T) {
		f := newFixture(t)
		f.members.EXPECT().GetByID(ctx, "u1").Return(member("u1"), nil)
		f.books.EXPECT().GetByID(ctx, "b1").Return(shelfBook("b1", 0), nil)
		f.repo.EXPECT().FindOpen(ctx, "u1", "b1", TypeBorrow).Return(Transaction{}, ErrNotFound)
		f.repo.EXPECT().FindOpen(ctx, "u1", "b1", TypeReserve).Return(Transaction{ID: "r1", Type: TypeReserve, Status: StatusActive}, nil)
		f.repo.EXPECT().Transition(ctx, "r1", gomock.Any()).DoAndReturn(func(_ context.Context, _ string, tr Transition) (Transaction, error) {
			assert.Equal(t, []Status{StatusActive}, tr.From)
			assert.Equal(t, StatusCompleted, tr.To)
			return Transaction{ID: "r1", Type: TypeReserve, Status: StatusCompleted}, nil
		})
		f.repo.EXPECT().Create(ctx, gomock.Any()).Return(nil)

		got, err := f.svc.Borrow(ctx, "u1", "b1")

		require.NoError(t, err)
		assert.Contains(t, got.Notes, "r1")
	})

	t.Run("insert failure puts the copy back", func(t *testing.T) {
		f := newFixture(t)
		f.members.EXPECT().GetByID(ctx, "u1").Return(member("u1"), nil)
		f.books.EXPECT().GetByID(ctx, "b1").Return(shelfBook("b1", 1), nil)
		f.repo.EXPECT().FindOpen(ctx, "u1", "b1", TypeBorrow).Return(Transaction{}, ErrNotFound)
		f.repo.EXPECT().FindOpen(ctx, "u1", "b1", TypeReserve).Return(Transaction{}, ErrNotFound)
		f.repo.EXPECT().CountOpenByUser(ctx, "u1").Return(0, nil)
		f.books.EXPECT().TakeCopy(ctx, "b1").Return(shelfBook("b1", 0), nil)
		f.repo.EXPECT().Create(ctx, gomock.Any()).Return(errors.New("disk full"))
		f.books.EXPECT().ReleaseCopy(ctx, "b1").Return(shelfBook("b1", 1), nil)

		_, err := f.svc.Borrow(ctx, "u1", "b1")

		assert.Error(t, err)
	})
}

func TestService_Return(t *testing.T) {
	ctx := context.Background()

	t.Run("late return charges a fine", func(t *testing.T) {
		f := newFixture(t)
		due := fixedNow.Add(-50 * time.Hour)
		loan := Transaction{ID: "t1", UserID: "u1", BookID: "b1", Type: TypeBorrow, Status: StatusOverdue, DueDate: due}
		f.repo.EXPECT().GetByID(ctx, "t1").Return(loan, nil)
		f.repo.EXPECT().Transition(ctx, "t1", gomock.Any()).DoAndReturn(func(_ context.Context, _ string, tr Transition) (Transaction, error) {
			assert.Equal(t, OpenStatuses, tr.From)
			assert.Equal(t, 1.5, tr.FineAmount)
			closed := loan
			closed.Status = StatusCompleted
			closed.FineAmount = tr.FineAmount
			closed.ReturnDate = tr.ReturnDate
			return closed, nil
		})
		f.members.EXPECT().AddFine(ctx, "u1", 1.5).Return(user.User{ID: "u1", FineAmount: 1.5}, nil)
		f.repo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, tx *Transaction) error {
			assert.Equal(t, TypeFine, tx.Type)
			assert.Equal(t, StatusCompleted, tx.Status)
			assert.Equal(t, 1.5, tx.FineAmount)
			return nil
		})
		f.books.EXPECT().ReleaseCopy(ctx, "b1").Return(shelfBook("b1", 1), nil)

		got, err := f.svc.Return(ctx, "t1", Actor{UserID: "u1"})

		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, got.Status)
		require.NotNil(t, got.ReturnDate)
		assert.Equal(t, fixedNow, *got.ReturnDate)
	})

	t.Run("on time return has no fine", func(t *testing.T) {
		f := newFixture(t)
		loan := Transaction{ID: "t1", UserID: "u1", BookID: "b1", Type: TypeBorrow, Status: StatusActive, DueDate: fixedNow.Add(time.Hour)}
		f.repo.EXPECT().GetByID(ctx, "t1").Return(loan, nil)
		f.repo.EXPECT().Transition(ctx, "t1", gomock.Any()).Return(Transaction{ID: "t1", BookID: "b1", Status: StatusCompleted}, nil)
		f.books.EXPECT().ReleaseCopy(ctx, "b1").Return(shelfBook("b1", 1), nil)

		got, err := f.svc.Return(ctx, "t1", Actor{UserID: "u1"})

		require.NoError(t, err)
		assert.Zero(t, got.FineAmount)
	})

	t.Run("someone else's loan", func(t *testing.T) {
		f := newFixture(t)
		f.repo.EXPECT().GetByID(ctx, "t1").Return(Transaction{ID: "t1", UserID: "u2", Type: TypeBorrow, Status: StatusActive}, nil)

		_, err := f.svc.Return(ctx, "t1", Actor{UserID: "u1"})

		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("admin may return any loan", func(t *testing.T) {
		f := newFixture(t)
		loan := Transaction{ID: "t1", UserID: "u2", BookID: "b1", Type: TypeBorrow, Status: StatusActive, DueDate: fixedNow.Add(time.Hour)}
		f.repo.EXPECT().GetByID(ctx, "t1").Return(loan, nil)
		f.repo.EXPECT().Transition(ctx, "t1", gomock.Any()).Return(Transaction{ID: "t1", BookID: "b1", Status: StatusCompleted}, nil)
		f.books.EXPECT().ReleaseCopy(ctx, "b1").Return(shelfBook("b1", 1), nil)

		_, err := f.svc.Return(ctx, "t1", Actor{UserID: "admin", Admin: true})

		assert.NoError(t, err)
	})

	t.Run("already returned", func(t *testing.T) {
		f := newFixture(t)
		f.repo.EXPECT().GetByID(ctx, "t1").Return(Transaction{ID: "t1", UserID: "u1", Type: TypeBorrow, Status: StatusCompleted}, nil)

		_, err := f.svc.Return(ctx, "t1", Actor{UserID: "u1"})

		assert.ErrorIs(t, err, ErrNotActive)
	})

	t.Run("lost race releases nothing", func(t *testing.T) {
		f := newFixture(t)
		f.repo.EXPECT().GetByID(ctx, "t1").Return(Transaction{ID: "t1", UserID: "u1", BookID: "b1", Type: TypeBorrow, Status: StatusActive, DueDate: fixedNow}, nil)
		f.repo.EXPECT().Transition(ctx, "t1", gomock.Any()).Return(Transaction{}, ErrStateChanged)

		_, err := f.svc.Return(ctx, "t1", Actor{UserID: "u1"})

		assert.ErrorIs(t, err, ErrNotActive)
	})
}

func TestService_CancelReservation(t *testing.T) {
	ctx := context.Background()
	hold := Transaction{ID: "r1", UserID: "u1", BookID: "b1", Type: TypeReserve, Status: StatusActive}

	t.Run("releases the held copy", func(t *testing.T) {
		f := newFixture(t)
		f.repo.EXPECT().GetByID(ctx, "r1").Return(hold, nil)
		f.repo.EXPECT().Transition(ctx, "r1", gomock.Any()).DoAndReturn(func(_ context.Context, _ string, tr Transition) (Transaction, error) {
			assert.Equal(t, StatusCancelled, tr.To)
			cancelled := hold
			cancelled.Status = StatusCancelled
			return cancelled, nil
		})
		f.books.EXPECT().ReleaseCopy(ctx, "b1").Return(shelfBook("b1", 1), nil)

		got, err := f.svc.CancelReservation(ctx, "r1", Actor{UserID: "u1"})

		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, got.Status)
	})

	t.Run("second cancel releases nothing", func(t *testing.T) {
		f := newFixture(t)
		cancelled := hold
		cancelled.Status = StatusCancelled
		f.repo.EXPECT().GetByID(ctx, "r1").Return(cancelled, nil)

		_, err := f.svc.CancelReservation(ctx, "r1", Actor{UserID: "u1"})

		assert.ErrorIs(t, err, ErrNotActive)
	})

	t.Run("concurrent cancel loses the guard", func(t *testing.T) {
		f := newFixture(t)
		f.repo.EXPECT().GetByID(ctx, "r1").Return(hold, nil)
		f.repo.EXPECT().Transition(ctx, "r1", gomock.Any()).Return(Transaction{}, ErrStateChanged)

		_, err := f.svc.CancelReservation(ctx, "r1", Actor{UserID: "u1"})

		assert.ErrorIs(t, err, ErrNotActive)
	})
}

func TestService_Reserve(t *testing.T) {
	ctx := context.Background()

	t.Run("holds a copy", func(t *testing.T) {
		f := newFixture(t)
		f.members.EXPECT().GetByID(ctx, "u1").Return(member("u1"), nil)
		f.books.EXPECT().GetByID(ctx, "b1").Return(shelfBook("b1", 1), nil)
		f.repo.EXPECT().FindOpen(ctx, "u1", "b1", TypeReserve).Return(Transaction{}, ErrNotFound)
		f.repo.EXPECT().CountOpenByUser(ctx, "u1").Return(0, nil)
		f.books.EXPECT().TakeCopy(ctx, "b1").Return(shelfBook("b1", 0), nil)
		f.repo.EXPECT().Create(ctx, gomock.Any()).Return(nil)

		got, err := f.svc.Reserve(ctx, "u1", "b1")

		require.NoError(t, err)
		assert.Equal(t, TypeReserve, got.Type)
		assert.Equal(t, fixedNow.Add(3*24*time.Hour), got.DueDate)
	})

	t.Run("unavailable book", func(t *testing.T) {
		f := newFixture(t)
		f.members.EXPECT().GetByID(ctx, "u1").Return(member("u1"), nil)
		f.books.EXPECT().GetByID(ctx, "b1").Return(shelfBook("b1", 0), nil)

		_, err := f.svc.Reserve(ctx, "u1", "b1")

		assert.ErrorIs(t, err, ErrNotAvailable)
	})

	t.Run("duplicate reservation", func(t *testing.T) {
		f := newFixture(t)
		f.members.EXPECT().GetByID(ctx, "u1").Return(member("u1"), nil)
		f.books.EXPECT().GetByID(ctx, "b1").Return(shelfBook("b1", 1), nil)
		f.repo.EXPECT().FindOpen(ctx, "u1", "b1", TypeReserve).Return(Transaction{ID: "r1"}, nil)

		_, err := f.svc.Reserve(ctx, "u1", "b1")

		assert.ErrorIs(t, err, ErrAlreadyReserved)
	})
}

func TestService_Renew(t *testing.T) {
	ctx := context.Background()
	due := fixedNow.Add(48 * time.Hour)
	loan := Transaction{ID: "t1", UserID: "u1", BookID: "b1", Type: TypeBorrow, Status: StatusActive, DueDate: due}

	t.Run("extends by one loan period", func(t *testing.T) {
		f := newFixture(t)
		f.repo.EXPECT().GetByID(ctx, "t1").Return(loan, nil)
		f.repo.EXPECT().List(ctx, gomock.Any()).Return([]Transaction{{UserID: "u1"}}, 1, nil)
		f.repo.EXPECT().Renew(ctx, "t1", 2, due.Add(14*24*time.Hour), fixedNow).Return(Transaction{ID: "t1", Renewals: 1}, nil)

		got, err := f.svc.Renew(ctx, "t1", Actor{UserID: "u1"})

		require.NoError(t, err)
		assert.Equal(t, 1, got.Renewals)
	})

	t.Run("overdue", func(t *testing.T) {
		f := newFixture(t)
		late := loan
		late.DueDate = fixedNow.Add(-time.Minute)
		f.repo.EXPECT().GetByID(ctx, "t1").Return(late, nil)

		_, err := f.svc.Renew(ctx, "t1", Actor{UserID: "u1"})

		assert.ErrorIs(t, err, ErrOverdue)
	})

	t.Run("limit", func(t *testing.T) {
		f := newFixture(t)
		maxed := loan
		maxed.Renewals = 2
		f.repo.EXPECT().GetByID(ctx, "t1").Return(maxed, nil)

		_, err := f.svc.Renew(ctx, "t1", Actor{UserID: "u1"})

		assert.ErrorIs(t, err, ErrRenewalLimit)
	})

	t.Run("held for another member", func(t *testing.T) {
		f := newFixture(t)
		f.repo.EXPECT().GetByID(ctx, "t1").Return(loan, nil)
		f.repo.EXPECT().List(ctx, gomock.Any()).Return([]Transaction{{UserID: "u2"}}, 1, nil)

		_, err := f.svc.Renew(ctx, "t1", Actor{UserID: "u1"})

		assert.ErrorIs(t, err, ErrReservedByOthers)
	})
}

func TestService_Update_FlipsOverdue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	later := fixedNow.Add(72 * time.Hour)

	f.repo.EXPECT().GetByID(ctx, "t1").Return(Transaction{ID: "t1", Type: TypeBorrow, Status: StatusOverdue}, nil)
	f.repo.EXPECT().Update(ctx, "t1", gomock.Any()).DoAndReturn(func(_ context.Context, _ string, c Changes) (Transaction, error) {
		require.NotNil(t, c.Status)
		assert.Equal(t, StatusActive, *c.Status)
		assert.Equal(t, later, *c.DueDate)
		return Transaction{ID: "t1", Status: StatusActive, DueDate: later}, nil
	})

	got, err := f.svc.Update(ctx, "t1", UpdateInput{DueDate: &later})

	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
}

func TestService_Reconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("corrects drift", func(t *testing.T) {
		f := newFixture(t)
		b := book.Book{ID: "b1", TotalCopies: 3, AvailableCopies: 0}
		f.books.EXPECT().GetByID(ctx, "b1").Return(b, nil)
		f.repo.EXPECT().CountOpenByBook(ctx, "b1").Return(1, nil)
		f.books.EXPECT().SetAvailableCopies(ctx, "b1", 2).Return(book.Book{ID: "b1", TotalCopies: 3, AvailableCopies: 2}, nil)

		got, err := f.svc.Reconcile(ctx, "b1")

		require.NoError(t, err)
		assert.Equal(t, 2, got.AvailableCopies)
	})

	t.Run("clamps at zero", func(t *testing.T) {
		f := newFixture(t)
		f.books.EXPECT().GetByID(ctx, "b1").Return(book.Book{ID: "b1", TotalCopies: 1, AvailableCopies: 1}, nil)
		f.repo.EXPECT().CountOpenByBook(ctx, "b1").Return(4, nil)
		f.books.EXPECT().SetAvailableCopies(ctx, "b1", 0).Return(book.Book{ID: "b1", TotalCopies: 1}, nil)

		_, err := f.svc.Reconcile(ctx, "b1")

		assert.NoError(t, err)
	})

	t.Run("no drift writes nothing", func(t *testing.T) {
		f := newFixture(t)
		f.books.EXPECT().GetByID(ctx, "b1").Return(book.Book{ID: "b1", TotalCopies: 2, AvailableCopies: 1}, nil)
		f.repo.EXPECT().CountOpenByBook(ctx, "b1").Return(1, nil)

		_, err := f.svc.Reconcile(ctx, "b1")

		assert.NoError(t, err)
	})
}

func TestService_Sweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	expired := []Transaction{
		{ID: "r1", BookID: "b1", Type: TypeReserve, Status: StatusActive},
		{ID: "r2", BookID: "b2", Type: TypeReserve, Status: StatusActive},
	}
	f.repo.EXPECT().MarkOverdue(ctx, fixedNow).Return(int64(4), nil)
	f.repo.EXPECT().ExpiredReservations(ctx, fixedNow).Return(expired, nil)
	f.repo.EXPECT().Transition(ctx, "r1", gomock.Any()).Return(Transaction{ID: "r1", BookID: "b1", Status: StatusCancelled}, nil)
	f.repo.EXPECT().Transition(ctx, "r2", gomock.Any()).Return(Transaction{}, ErrStateChanged)
	f.books.EXPECT().ReleaseCopy(ctx, "b1").Return(shelfBook("b1", 1), nil)

	res, err := f.svc.Sweep(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Overdue)
	assert.Equal(t, 1, res.Expired)
}
