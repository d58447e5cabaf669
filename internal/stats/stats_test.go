package stats

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"libraryapi/internal/book"
	"libraryapi/internal/circulation"
	"libraryapi/internal/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookTotals struct {
	t   book.Totals
	err error
}

func (b bookTotals) Totals(context.Context) (book.Totals, error) { return b.t, b.err }

type userTotals struct{ t user.Totals }

func (u userTotals) Totals(context.Context) (user.Totals, error) { return u.t, nil }

type counts struct{ c circulation.Counts }

func (c counts) Counts(context.Context) (circulation.Counts, error) { return c.c, nil }

type upcoming int

func (u upcoming) CountUpcoming(context.Context) (int, error) { return int(u), nil }

func TestService_Get(t *testing.T) {
	svc := NewService(
		bookTotals{t: book.Totals{Titles: 12, TotalCopies: 26, AvailableCopies: 21}},
		userTotals{t: user.Totals{Users: 5, ActiveUsers: 4, OutstandingFines: 3.5}},
		counts{c: circulation.Counts{ActiveBorrows: 4, Overdue: 1, ActiveReservations: 1}},
		upcoming(3),
	)

	st, err := svc.Get(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5, st.CopiesOut)
	assert.Equal(t, 3, st.UpcomingEvents)
	assert.Equal(t, 3.5, st.Users.OutstandingFines)
	assert.Equal(t, 1, st.Circulation.Overdue)
}

func TestHTTPHandler_Get_Error(t *testing.T) {
	svc := NewService(bookTotals{err: errors.New("down")}, userTotals{}, counts{}, upcoming(0))
	h := NewHTTPHandler(svc)

	w := httptest.NewRecorder()
	h.Get(w, httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
