package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"libraryapi/internal/platform/crypto"
	"libraryapi/internal/user"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInactive     = errors.New("account is deactivated")
)

// Blacklist stores revoked token ids until they would have expired anyway.
type Blacklist interface {
	Add(ctx context.Context, jti, userID string, expiresAt time.Time) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
	CleanupExpired(ctx context.Context) (int64, error)
}

// Session is what a successful login or registration hands back.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      user.User `json:"user"`
}

type Service struct {
	secret    string
	ttl       time.Duration
	users     *user.Service
	blacklist Blacklist
}

func NewService(secret string, ttl time.Duration, users *user.Service, blacklist Blacklist) *Service {
	return &Service{
		secret:    secret,
		ttl:       ttl,
		users:     users,
		blacklist: blacklist,
	}
}

func (s *Service) issue(u user.User) (Session, error) {
	token, _, err := crypto.GenerateToken(s.secret, crypto.Subject{
		UserID:     u.ID,
		Admin:      u.IsAdmin,
		Membership: string(u.MembershipType),
	}, s.ttl)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{Token: token, ExpiresAt: time.Now().Add(s.ttl), User: u}, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Session{}, ErrUnauthorized
		}
		return Session{}, err
	}
	if !crypto.VerifyPassword(u.Password, password) {
		return Session{}, ErrUnauthorized
	}
	if !u.IsActive {
		return Session{}, ErrInactive
	}

	if err := s.users.TouchLastLogin(ctx, u.ID); err != nil {
		return Session{}, fmt.Errorf("record login: %w", err)
	}
	now := time.Now().UTC()
	u.LastLogin = &now
	return s.issue(u)
}

func (s *Service) Register(ctx context.Context, in user.RegisterInput) (Session, error) {
	u, err := s.users.Register(ctx, in)
	if err != nil {
		return Session{}, err
	}
	return s.issue(u)
}

// Me resolves the token subject. A user deleted or deactivated after the
// token was issued is treated as signed out.
func (s *Service) Me(ctx context.Context, userID string) (user.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, ErrUnauthorized
		}
		return user.User{}, err
	}
	if !u.IsActive {
		return user.User{}, ErrInactive
	}
	return u, nil
}

func (s *Service) Logout(ctx context.Context, claims *crypto.Claims) error {
	if claims == nil || claims.ID == "" {
		return ErrUnauthorized
	}
	expiresAt := time.Now().Add(s.ttl)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return s.blacklist.Add(ctx, claims.ID, claims.Sub, expiresAt)
}

// PurgeExpired drops revocations whose tokens have expired on their own.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.blacklist.CleanupExpired(ctx)
}
