package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ripplehq/ripple-backend/internal/models"
	"github.com/ripplehq/ripple-backend/internal/services"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	AccountID primitive.ObjectID
	Handle    string
	Email     string
	Role      models.Role
	Verified  bool
	Account   *models.Account
}

// PrincipalFrom returns the request principal, or nil when the request was
// not authenticated.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"success":false,"message":"` + message + `"}`))
}

// RequireAuth rejects requests without a valid bearer access token and
// attaches the resolved principal to the context.
func RequireAuth(auth *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, "Authorization required")
				return
			}

			account, claims, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, services.ErrTokenExpired):
					writeAuthError(w, http.StatusUnauthorized, "Token expired")
				case errors.Is(err, services.ErrAccountInactive):
					writeAuthError(w, http.StatusForbidden, "Account is deactivated")
				default:
					writeAuthError(w, http.StatusUnauthorized, "Invalid token")
				}
				return
			}

			principal := &Principal{
				AccountID: account.ID,
				Handle:    claims.Handle,
				Email:     claims.Email,
				Role:      account.Role,
				Verified:  account.EmailVerified,
				Account:   account,
			}
			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches a principal when a valid token is present and
// otherwise lets the request through anonymously. Invalid tokens are logged
// and ignored.
func OptionalAuth(auth *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			account, claims, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				log.Printf("optional auth: ignoring token: %v", err)
				next.ServeHTTP(w, r)
				return
			}

			principal := &Principal{
				AccountID: account.ID,
				Handle:    claims.Handle,
				Email:     claims.Email,
				Role:      account.Role,
				Verified:  account.EmailVerified,
				Account:   account,
			}
			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a route on one of the given roles. Must run after
// RequireAuth.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	allowed := make(map[models.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFrom(r.Context())
			if p == nil {
				writeAuthError(w, http.StatusUnauthorized, "Authorization required")
				return
			}
			if !allowed[p.Role] {
				writeAuthError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
