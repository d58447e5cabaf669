package circulation

import (
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("transaction not found")
	ErrNotAvailable     = errors.New("book not available")
	ErrAlreadyBorrowed  = errors.New("book already borrowed by this user")
	ErrAlreadyReserved  = errors.New("book already reserved by this user")
	ErrLimitReached     = errors.New("borrow limit reached")
	ErrUserInactive     = errors.New("user account is deactivated")
	ErrForbidden        = errors.New("transaction belongs to another user")
	ErrNotActive        = errors.New("transaction is not active")
	ErrOverdue          = errors.New("loan is overdue")
	ErrRenewalLimit     = errors.New("renewal limit reached")
	ErrReservedByOthers = errors.New("book is reserved by another member")
	ErrStillOpen        = errors.New("active transactions cannot be deleted")
	ErrStateChanged     = errors.New("transaction changed concurrently")
)

type Type string

const (
	TypeBorrow        Type = "Borrow"
	TypeReturn        Type = "Return"
	TypeReserve       Type = "Reserve"
	TypeCancelReserve Type = "CancelReserve"
	TypeFine          Type = "Fine"
)

type Status string

const (
	StatusActive    Status = "Active"
	StatusCompleted Status = "Completed"
	StatusOverdue   Status = "Overdue"
	StatusCancelled Status = "Cancelled"
)

// OpenStatuses hold a copy of the book.
var OpenStatuses = []Status{StatusActive, StatusOverdue}

type Transaction struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	BookID     string     `json:"bookId"`
	BookTitle  string     `json:"bookTitle,omitempty"`
	Type       Type       `json:"type"`
	Status     Status     `json:"status"`
	BorrowDate time.Time  `json:"borrowDate"`
	DueDate    time.Time  `json:"dueDate"`
	ReturnDate *time.Time `json:"returnDate,omitempty"`
	FineAmount float64    `json:"fineAmount"`
	Renewals   int        `json:"renewals"`
	Notes      string     `json:"notes,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// IsOpen reports whether the transaction still holds a copy.
func (t Transaction) IsOpen() bool {
	return (t.Type == TypeBorrow || t.Type == TypeReserve) &&
		(t.Status == StatusActive || t.Status == StatusOverdue)
}

type Query struct {
	UserID   string
	BookID   string
	Type     Type
	Statuses []Status
	Limit    int
	Offset   int
}

// Transition is a guarded status change: it applies only while the
// transaction is in one of From.
type Transition struct {
	From       []Status
	To         Status
	ReturnDate *time.Time
	FineAmount float64
}

type Changes struct {
	DueDate *time.Time
	Notes   *string
	Status  *Status
}

type Counts struct {
	ActiveBorrows      int `json:"activeBorrows"`
	Overdue            int `json:"overdue"`
	ActiveReservations int `json:"activeReservations"`
}

func (c *Counts) add(t Type, s Status, n int) {
	switch {
	case t == TypeBorrow:
		c.ActiveBorrows += n
		if s == StatusOverdue {
			c.Overdue += n
		}
	case t == TypeReserve && s == StatusActive:
		c.ActiveReservations += n
	}
}
