package auth

import (
	"context"
	"net/http"

	"github.com/domainsec/tracker/internal/i18n"
	"github.com/domainsec/tracker/internal/models"
)

// Error is an authentication failure surfaced to the API boundary. The
// orchestrators never catch it; the transport layer maps it to the errors
// array of the response.
type Error struct {
	Code        int
	Description string
}

func (e *Error) Error() string {
	return e.Description
}

// RequireUser returns the authenticated user from the context or an Error.
func RequireUser(ctx context.Context, loc *i18n.Localizer) (*models.User, error) {
	user, ok := UserFromContext(ctx)
	if !ok {
		return nil, &Error{Code: http.StatusUnauthorized, Description: loc.T("auth.required")}
	}
	return user, nil
}

// RequireVerified ensures the user's email address has been validated.
func RequireVerified(user *models.User, loc *i18n.Localizer) error {
	if !user.EmailValidated {
		return &Error{Code: http.StatusForbidden, Description: loc.T("auth.verified_required")}
	}
	return nil
}

// RequireTFA ensures the user has validated multi-factor authentication.
func RequireTFA(user *models.User, loc *i18n.Localizer) error {
	if !user.TFAValidated {
		return &Error{Code: http.StatusForbidden, Description: loc.T("auth.tfa_required")}
	}
	return nil
}
