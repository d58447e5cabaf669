package httpx

import (
	"context"
	"net/http"

	"libraryapi/internal/platform/crypto"
)

type contextKey string

const (
	claimsKey    contextKey = "claims"
	requestIDKey contextKey = "requestID"
	userSlotKey  contextKey = "userSlot"
)

// ClaimsFrom returns the verified token claims, or nil for anonymous requests.
func ClaimsFrom(r *http.Request) *crypto.Claims {
	if v, ok := r.Context().Value(claimsKey).(*crypto.Claims); ok {
		return v
	}
	return nil
}

// UserIDFrom retrieves the user ID from the request context.
func UserIDFrom(r *http.Request) string {
	if c := ClaimsFrom(r); c != nil {
		return c.Sub
	}
	return ""
}

// RoleFrom retrieves the user role from the request context.
func RoleFrom(r *http.Request) string {
	if c := ClaimsFrom(r); c != nil {
		return c.Role
	}
	return ""
}

func IsAdmin(r *http.Request) bool {
	return ClaimsFrom(r).IsAdmin()
}

func ContextWithClaims(ctx context.Context, claims *crypto.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func RequestIDFrom(r *http.Request) string {
	if v, ok := r.Context().Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}
