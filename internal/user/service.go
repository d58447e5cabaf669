package user

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"libraryapi/internal/platform/crypto"
)

type RegisterInput struct {
	FirstName      string `json:"firstName" validate:"required,max=100"`
	LastName       string `json:"lastName" validate:"required,max=100"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,password_strength"`
	Phone          string `json:"phone" validate:"omitempty,max=30"`
	Address        string `json:"address" validate:"omitempty,max=300"`
	MembershipType string `json:"membershipType" validate:"omitempty,oneof=Basic Premium Student Senior"`
}

// CreateInput is the admin form; it can grant admin rights and start inactive.
type CreateInput struct {
	RegisterInput
	IsAdmin  bool  `json:"isAdmin"`
	IsActive *bool `json:"isActive"`
}

type ProfileInput struct {
	FirstName *string `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,min=1,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=30"`
	Address   *string `json:"address" validate:"omitempty,max=300"`
}

type UpdateInput struct {
	ProfileInput
	Email          *string  `json:"email" validate:"omitempty,email"`
	Password       *string  `json:"password" validate:"omitempty,password_strength"`
	MembershipType *string  `json:"membershipType" validate:"omitempty,oneof=Basic Premium Student Senior"`
	IsAdmin        *bool    `json:"isAdmin"`
	IsActive       *bool    `json:"isActive"`
	FineAmount     *float64 `json:"fineAmount" validate:"omitempty,gte=0"`
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) newUser(in RegisterInput) (*User, error) {
	hash, err := crypto.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	membership := MembershipType(in.MembershipType)
	if membership == "" {
		membership = MembershipBasic
	}
	now := s.now().UTC()
	return &User{
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		Email:          NormalizeEmail(in.Email),
		Password:       hash,
		Phone:          strings.TrimSpace(in.Phone),
		Address:        strings.TrimSpace(in.Address),
		MembershipID:   NewMembershipID(now),
		MembershipType: membership,
		IsActive:       true,
		JoinDate:       now,
	}, nil
}

func (s *Service) create(ctx context.Context, u *User) (User, error) {
	if _, err := s.repo.GetByEmail(ctx, u.Email); err == nil {
		return User{}, ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return User{}, err
	}
	return *u, nil
}

// Register creates an active member account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	u, err := s.newUser(in)
	if err != nil {
		return User{}, err
	}
	return s.create(ctx, u)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	u, err := s.newUser(in.RegisterInput)
	if err != nil {
		return User{}, err
	}
	u.IsAdmin = in.IsAdmin
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	return s.create(ctx, u)
}

func (s *Service) GetByID(ctx context.Context, id string) (User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.GetByEmail(ctx, NormalizeEmail(email))
}

func (s *Service) List(ctx context.Context, q Query) ([]User, int, error) {
	return s.repo.List(ctx, q)
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func profileChanges(in ProfileInput) Changes {
	return Changes{
		FirstName: trimmed(in.FirstName),
		LastName:  trimmed(in.LastName),
		Phone:     trimmed(in.Phone),
		Address:   trimmed(in.Address),
	}
}

// UpdateProfile is the self-service edit: contact details only.
func (s *Service) UpdateProfile(ctx context.Context, id string, in ProfileInput) (User, error) {
	ch := profileChanges(in)
	if ch.Empty() {
		return s.repo.GetByID(ctx, id)
	}
	u, err := s.repo.Update(ctx, id, ch)
	if err != nil {
		return User{}, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

// Update applies the admin form. Only fields present in the input are written.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (User, error) {
	ch := profileChanges(in.ProfileInput)
	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		ch.Email = &email
	}
	if in.Password != nil {
		hash, err := crypto.HashPassword(*in.Password)
		if err != nil {
			return User{}, fmt.Errorf("hash password: %w", err)
		}
		ch.PasswordHash = &hash
	}
	if in.MembershipType != nil {
		m := MembershipType(*in.MembershipType)
		ch.MembershipType = &m
	}
	ch.IsAdmin = in.IsAdmin
	ch.IsActive = in.IsActive
	if in.FineAmount != nil {
		fine := roundCents(*in.FineAmount)
		ch.FineAmount = &fine
	}
	if ch.Empty() {
		return s.repo.GetByID(ctx, id)
	}

	u, err := s.repo.Update(ctx, id, ch)
	if err != nil {
		return User{}, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// AccountStatus reports whether id is an active account and an admin. An
// unknown id is reported as inactive.
func (s *Service) AccountStatus(ctx context.Context, id string) (active, admin bool, err error) {
	u, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return u.IsActive, u.IsAdmin, nil
}

func (s *Service) SetActive(ctx context.Context, id string, active bool) (User, error) {
	return s.repo.SetActive(ctx, id, active)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) TouchLastLogin(ctx context.Context, id string) error {
	return s.repo.TouchLastLogin(ctx, id, s.now().UTC())
}

func (s *Service) AddFine(ctx context.Context, id string, amount float64) (User, error) {
	if amount <= 0 {
		return User{}, ErrInvalidAmount
	}
	return s.repo.AddFine(ctx, id, roundCents(amount))
}

// PayFine settles part or all of the outstanding balance. Paying more than
// is owed is rejected.
func (s *Service) PayFine(ctx context.Context, id string, amount float64) (User, error) {
	if amount <= 0 {
		return User{}, ErrInvalidAmount
	}
	return s.repo.PayFine(ctx, id, roundCents(amount))
}

func (s *Service) Totals(ctx context.Context) (Totals, error) {
	return s.repo.Totals(ctx)
}

func (s *Service) DeleteAll(ctx context.Context) error {
	return s.repo.DeleteAll(ctx)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
