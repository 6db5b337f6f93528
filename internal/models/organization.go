package models

import (
	"time"

	"github.com/google/uuid"
)

// OrgDetails is the per-language descriptive record for an organization.
type OrgDetails struct {
	Slug     string
	Acronym  string
	Name     string
	Zone     string
	Sector   string
	Country  string
	Province string
	City     string
}

// Organization is a tenant that claims and monitors domains. Verified
// organizations are protected: their domain claims may not be destroyed
// through the removal mutations.
type Organization struct {
	Key       uuid.UUID
	Verified  bool
	English   OrgDetails
	French    OrgDetails
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Details returns the language-specific details, falling back to English
// for unknown languages.
func (o *Organization) Details(lang string) OrgDetails {
	if lang == "fr" {
		return o.French
	}
	return o.English
}
