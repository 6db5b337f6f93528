package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account holder. Users are never hard-deleted by the
// mutation engine; removal from an organization only unlinks the affiliation
// edge.
type User struct {
	Key            uuid.UUID
	UserName       string
	DisplayName    string
	PreferredLang  string // "en" or "fr"
	TFAValidated   bool
	EmailValidated bool
	TFACode        *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
