// Package auth verifies bearer tokens and carries the acting user through
// the request context. Token issuance, password hashing and sign-up flows
// live elsewhere; this package only gates requests.
package auth

import (
	"context"

	"github.com/domainsec/tracker/internal/models"
)

type contextKey string

const userContextKey contextKey = "acting_user"

// WithUser stores the authenticated user in the context.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext extracts the authenticated user, if any.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	return user, ok
}
