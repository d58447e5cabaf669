package user

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrAlreadyExists = errors.New("user already exists")
	ErrOverpayment   = errors.New("payment exceeds outstanding fines")
	ErrInvalidAmount = errors.New("amount must be positive")
)

type MembershipType string

const (
	MembershipBasic   MembershipType = "Basic"
	MembershipPremium MembershipType = "Premium"
	MembershipStudent MembershipType = "Student"
	MembershipSenior  MembershipType = "Senior"
)

func (m MembershipType) Valid() bool {
	switch m {
	case MembershipBasic, MembershipPremium, MembershipStudent, MembershipSenior:
		return true
	}
	return false
}

// BorrowLimit is the number of active borrows plus reservations a member may hold.
func (m MembershipType) BorrowLimit() int {
	switch m {
	case MembershipPremium:
		return 10
	case MembershipStudent, MembershipSenior:
		return 5
	default:
		return 3
	}
}

type User struct {
	ID             string         `json:"id"`
	FirstName      string         `json:"firstName"`
	LastName       string         `json:"lastName"`
	Email          string         `json:"email"`
	Password       string         `json:"-"`
	Phone          string         `json:"phone,omitempty"`
	Address        string         `json:"address,omitempty"`
	MembershipID   string         `json:"membershipId"`
	MembershipType MembershipType `json:"membershipType"`
	IsActive       bool           `json:"isActive"`
	IsAdmin        bool           `json:"isAdmin"`
	JoinDate       time.Time      `json:"joinDate"`
	LastLogin      *time.Time     `json:"lastLogin,omitempty"`
	FineAmount     float64        `json:"fineAmount"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Changes is a partial update. Nil fields keep their stored value, so a
// write never overwrites balances or flags it was not asked to change.
type Changes struct {
	FirstName      *string
	LastName       *string
	Phone          *string
	Address        *string
	Email          *string
	PasswordHash   *string
	MembershipType *MembershipType
	IsAdmin        *bool
	IsActive       *bool
	FineAmount     *float64
}

func (c Changes) Empty() bool {
	return c == Changes{}
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type Query struct {
	Q              string
	MembershipType MembershipType
	Active         *bool
	Limit          int
	Offset         int
}

type Totals struct {
	Users            int     `json:"users"`
	ActiveUsers      int     `json:"activeUsers"`
	OutstandingFines float64 `json:"outstandingFines"`
}

// NewMembershipID returns an id of the form LIB-YYYY-XXXXXXXX.
func NewMembershipID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("LIB-%d-%s", now.Year(), suffix)
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
