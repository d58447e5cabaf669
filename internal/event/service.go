package event

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type CreateInput struct {
	Title        string    `json:"title" validate:"required,max=200"`
	Description  string    `json:"description" validate:"max=5000"`
	Date         time.Time `json:"date" validate:"required"`
	Time         string    `json:"time" validate:"max=50"`
	Location     string    `json:"location" validate:"max=200"`
	MaxAttendees int       `json:"maxAttendees" validate:"gte=1,lte=100000"`
	Category     string    `json:"category" validate:"max=50"`
	IsActive     *bool     `json:"isActive"`
}

type UpdateInput struct {
	Title        *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description  *string    `json:"description" validate:"omitempty,max=5000"`
	Date         *time.Time `json:"date"`
	Time         *string    `json:"time" validate:"omitempty,max=50"`
	Location     *string    `json:"location" validate:"omitempty,max=200"`
	MaxAttendees *int       `json:"maxAttendees" validate:"omitempty,gte=0,lte=100000"`
	Category     *string    `json:"category" validate:"omitempty,max=50"`
	IsActive     *bool      `json:"isActive"`
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List shows only active events unless includeInactive is set. With upcoming,
// past events are left out.
func (s *Service) List(ctx context.Context, q Query, includeInactive, upcoming bool) ([]Event, int, error) {
	if !includeInactive {
		active := true
		q.Active = &active
	}
	if upcoming {
		from := s.now().UTC()
		q.From = &from
	}
	return s.repo.List(ctx, q)
}

// Get hides inactive events from non-admin callers.
func (s *Service) Get(ctx context.Context, id string, includeInactive bool) (Event, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if !e.IsActive && !includeInactive {
		return Event{}, ErrNotFound
	}
	return e, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Event, error) {
	e := Event{
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		Date:         in.Date.UTC(),
		Time:         in.Time,
		Location:     in.Location,
		MaxAttendees: in.MaxAttendees,
		Category:     in.Category,
		IsActive:     true,
	}
	if in.IsActive != nil {
		e.IsActive = *in.IsActive
	}
	if err := s.repo.Create(ctx, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Event, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if in.Title != nil {
		e.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	if in.Date != nil {
		e.Date = in.Date.UTC()
	}
	if in.Time != nil {
		e.Time = *in.Time
	}
	if in.Location != nil {
		e.Location = *in.Location
	}
	if in.MaxAttendees != nil {
		e.MaxAttendees = *in.MaxAttendees
	}
	if in.Category != nil {
		e.Category = *in.Category
	}
	if in.IsActive != nil {
		e.IsActive = *in.IsActive
	}
	if e.MaxAttendees < e.CurrentAttendees {
		return Event{}, ErrCapacity
	}

	if err := s.repo.Update(ctx, &e); err != nil {
		return Event{}, fmt.Errorf("update event %s: %w", id, err)
	}
	return e, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Register(ctx context.Context, id string) (Event, error) {
	return s.repo.Register(ctx, id)
}

func (s *Service) CountUpcoming(ctx context.Context) (int, error) {
	return s.repo.CountUpcoming(ctx, s.now().UTC())
}

func (s *Service) DeleteAll(ctx context.Context) error {
	return s.repo.DeleteAll(ctx)
}
