// Package stats builds the admin dashboard numbers.
package stats

import (
	"context"
	"net/http"

	"libraryapi/internal/book"
	"libraryapi/internal/circulation"
	"libraryapi/internal/httpx"
	"libraryapi/internal/user"

	"golang.org/x/sync/errgroup"
)

type BookTotals interface {
	Totals(ctx context.Context) (book.Totals, error)
}

type UserTotals interface {
	Totals(ctx context.Context) (user.Totals, error)
}

type CirculationCounts interface {
	Counts(ctx context.Context) (circulation.Counts, error)
}

type UpcomingEvents interface {
	CountUpcoming(ctx context.Context) (int, error)
}

type Stats struct {
	Books          book.Totals        `json:"books"`
	Users          user.Totals        `json:"users"`
	Circulation    circulation.Counts `json:"circulation"`
	UpcomingEvents int                `json:"upcomingEvents"`
	CopiesOut      int                `json:"copiesOut"`
}

type Service struct {
	books       BookTotals
	users       UserTotals
	circulation CirculationCounts
	events      UpcomingEvents
}

func NewService(books BookTotals, users UserTotals, circ CirculationCounts, events UpcomingEvents) *Service {
	return &Service{books: books, users: users, circulation: circ, events: events}
}

// Get runs the four aggregates concurrently.
func (s *Service) Get(ctx context.Context) (Stats, error) {
	var st Stats
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st.Books, err = s.books.Totals(ctx)
		return err
	})
	g.Go(func() (err error) {
		st.Users, err = s.users.Totals(ctx)
		return err
	})
	g.Go(func() (err error) {
		st.Circulation, err = s.circulation.Counts(ctx)
		return err
	})
	g.Go(func() (err error) {
		st.UpcomingEvents, err = s.events.CountUpcoming(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	st.CopiesOut = st.Books.TotalCopies - st.Books.AvailableCopies
	return st, nil
}

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// Get handles GET /api/admin/stats
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Get(r.Context())
	if err != nil {
		httpx.InternalError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, st, nil)
}
