package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sakif/gallery/internal/model"
)

var errNoBearer = errors.New("auth: missing bearer token")

// contextKey is an unexported type for context keys in this package.
// Using a package-private type (instead of a plain string) means only this
// package can read or write the current-user value — no key collisions
// with other packages.
type contextKey string

const userKey contextKey = "user"

// UserResolver looks up a user by username. Satisfied by
// repository.UserRepository; declared here so the middleware depends on
// the one method it needs, not on the whole repository package.
type UserResolver interface {
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

// RequireAuth enforces authentication on protected routes.
//
// It reads the "Authorization: Bearer <token>" header, verifies the JWT,
// and resolves the token's subject (the username) to a live user record.
// The full record goes into the request context so handlers can read the
// caller's identity without another lookup.
//
// Every failure mode — missing header, malformed header, bad signature,
// expired token, or a subject whose account no longer exists — stops the
// chain with the same 401 response.
func RequireAuth(tokens *TokenService, users UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolveUser(r, tokens, users)
			if err != nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, `{"error":"unauthenticated","message":"valid bearer token required"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext retrieves the authenticated user from the request
// context. Returns (nil, false) if the request is anonymous.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok && user != nil
}

// resolveUser extracts the bearer token, verifies it, and loads the user
// record for the embedded subject.
func resolveUser(r *http.Request, tokens *TokenService, users UserResolver) (*model.User, error) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return nil, errNoBearer
	}

	username, err := tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	// The token may outlive the account; a stale subject is a 401, not a
	// 404, because the credential as a whole is no longer valid.
	return users.GetByUsername(r.Context(), username)
}
