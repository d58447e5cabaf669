package event

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("event not found")
	ErrFull     = errors.New("event is full")
	ErrInactive = errors.New("event is not open for registration")
	ErrCapacity = errors.New("max attendees below current attendees")
)

type Event struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Date             time.Time `json:"date"`
	Time             string    `json:"time"`
	Location         string    `json:"location"`
	MaxAttendees     int       `json:"maxAttendees"`
	CurrentAttendees int       `json:"currentAttendees"`
	Category         string    `json:"category"`
	IsActive         bool      `json:"isActive"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// SpotsLeft is never negative.
func (e Event) SpotsLeft() int {
	return max(e.MaxAttendees-e.CurrentAttendees, 0)
}

type Query struct {
	Active   *bool
	From     *time.Time
	Category string
	Limit    int
	Offset   int
}
