package httpx

import (
	"context"
	"net/http"
	"strings"

	"libraryapi/internal/platform/crypto"
)

// TokenCookie is the cookie the login endpoint sets.
const TokenCookie = "token"

// BlacklistChecker reports whether a token id has been revoked.
type BlacklistChecker interface {
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// TokenFrom reads the bearer token from the Authorization header, falling
// back to the token cookie.
func TokenFrom(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value
	}
	return ""
}

func AuthMiddleware(secret string, blacklist BlacklistChecker) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFrom(r)
			if token == "" {
				Unauthorized(w, r)
				return
			}

			claims, err := crypto.ParseToken(secret, token)
			if err != nil {
				Unauthorized(w, r)
				return
			}

			if blacklist != nil {
				revoked, err := blacklist.IsBlacklisted(r.Context(), claims.ID)
				if err != nil {
					InternalError(w, r, err)
					return
				}
				if revoked {
					Unauthorized(w, r)
					return
				}
			}

			recordUser(r.Context(), claims.Sub)
			ctx := ContextWithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r) {
			Forbidden(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AccountLookup reports the stored state of a token subject. A missing
// account is reported as inactive, not as an error.
type AccountLookup interface {
	AccountStatus(ctx context.Context, userID string) (active, admin bool, err error)
}

// RequireActiveAdmin is RequireAdmin plus a lookup of the stored account, so
// a demoted or deactivated admin is refused while their token is still valid.
func RequireActiveAdmin(accounts AccountLookup) Middleware {
	return func(next http.Handler) http.Handler {
		return RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			active, admin, err := accounts.AccountStatus(r.Context(), UserIDFrom(r))
			if err != nil {
				InternalError(w, r, err)
				return
			}
			if !active || !admin {
				Forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
