package models

import (
	"time"

	"github.com/google/uuid"
)

// DomainStatus summarises the latest pass/fail/info outcome per mechanism.
type DomainStatus struct {
	DKIM  string
	DMARC string
	HTTPS string
	SPF   string
	SSL   string
}

// Domain is a monitored FQDN. A domain exists independently of any
// organization and is reachable only through claim edges; the cardinality of
// inbound claims decides whether removing one claim destroys the domain or
// merely unlinks it.
type Domain struct {
	Key       uuid.UUID
	Domain    string // FQDN
	Slug      string
	Selectors []string // DKIM selectors
	LastRan   *time.Time
	Status    DomainStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
