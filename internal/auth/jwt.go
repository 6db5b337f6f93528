package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Verifier validates HMAC-signed bearer tokens whose subject is a user key.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the given signing secret.
func NewVerifier(secret []byte) (*Verifier, error) {
	if len(secret) < 32 {
		return nil, errors.New("signing secret must be at least 32 bytes")
	}
	return &Verifier{secret: secret}, nil
}

// Verify parses and validates a token and returns the user key it carries.
func (v *Verifier) Verify(tokenStr string) (uuid.UUID, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("invalid signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}

	if !parsed.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return uuid.Nil, fmt.Errorf("%w: expired", ErrInvalidToken)
	}

	userKey, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	return userKey, nil
}

// Sign issues a token for the given user key. Used by tests and dev tooling;
// production token issuance is handled by the auth service.
func (v *Verifier) Sign(userKey uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userKey.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
