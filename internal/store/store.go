// Package store defines the persistence interfaces for the property graph:
// vertex stores for users, organizations and domains, plus the GraphStore
// covering the edge collections (affiliations, claims, ownership, scan links)
// and the transactional cascade steps.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/domainsec/tracker/internal/models"
)

// Sentinel errors for common error conditions
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrDomainNotFound       = errors.New("domain not found")
	ErrAffiliationNotFound  = errors.New("affiliation not found")
	ErrClaimNotFound        = errors.New("claim not found")
	ErrAlreadyExists        = errors.New("already exists")
)

// ScanFamily identifies one scan-result vertex family and its link-edge
// collection to domains.
type ScanFamily string

const (
	ScanDKIM  ScanFamily = "dkim"
	ScanDMARC ScanFamily = "dmarc"
	ScanSPF   ScanFamily = "spf"
	ScanHTTPS ScanFamily = "https"
	ScanSSL   ScanFamily = "ssl"
)

// ScanFamilies lists every family a full cascade must visit.
var ScanFamilies = []ScanFamily{ScanDKIM, ScanDMARC, ScanSPF, ScanHTTPS, ScanSSL}

// UserStore provides point lookups and writes for user vertices.
type UserStore interface {
	Get(ctx context.Context, key uuid.UUID) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// OrganizationStore provides point lookups and writes for organization vertices.
type OrganizationStore interface {
	Get(ctx context.Context, key uuid.UUID) (*models.Organization, error)
	Create(ctx context.Context, org *models.Organization) error
}

// DomainStore provides point lookups and writes for domain vertices.
type DomainStore interface {
	Get(ctx context.Context, key uuid.UUID) (*models.Domain, error)
	Create(ctx context.Context, domain *models.Domain) error
}

// GraphStore covers the edge collections and the transaction primitive. Reads
// outside InTx see committed state only; steps issued inside InTx observe
// earlier steps of the same transaction and commit all-or-nothing.
type GraphStore interface {
	// AffiliationPermission returns the role on the single affiliation edge
	// between the organization and user, or ErrAffiliationNotFound.
	AffiliationPermission(ctx context.Context, orgKey, userKey uuid.UUID) (models.Role, error)

	// CountClaims counts inbound claim edges on a domain.
	CountClaims(ctx context.Context, domainKey uuid.UUID) (int, error)

	// CountOwnership counts ownership edges between one organization and a
	// domain. The data layer does not enforce at-most-one; callers must
	// handle whatever cardinality they find.
	CountOwnership(ctx context.Context, orgKey, domainKey uuid.UUID) (int, error)

	// Edge and scan-vertex writes, used by seeding and claim management.
	AddAffiliation(ctx context.Context, orgKey, userKey uuid.UUID, role models.Role) error
	AddClaim(ctx context.Context, orgKey, domainKey uuid.UUID) error
	AddOwnership(ctx context.Context, orgKey, domainKey uuid.UUID) error
	AddScan(ctx context.Context, family ScanFamily, domainKey uuid.UUID, scan *models.ScanRecord) error
	AddDKIMResult(ctx context.Context, dkimKey uuid.UUID, result *models.ScanRecord) error
	AddDmarcSummary(ctx context.Context, domainKey uuid.UUID, summary *models.ScanRecord) error

	// Cardinality reads used by tests and the cascade planner's assertions.
	CountScans(ctx context.Context, family ScanFamily, domainKey uuid.UUID) (int, error)
	CountDmarcSummaries(ctx context.Context, domainKey uuid.UUID) (int, error)

	// InTx runs fn inside a single atomic transaction. If fn returns an
	// error the transaction is rolled back and the error returned.
	InTx(ctx context.Context, fn func(tx GraphTx) error) error
}

// GraphTx exposes the named cascade steps available inside a transaction.
// Every step removes edges strictly before the vertices they reference, so a
// partially executed transaction never exposes a dangling edge to readers
// inside the same transaction.
type GraphTx interface {
	// DeleteDmarcSummaries removes all DMARC aggregate summaries linked to
	// the domain, edges first.
	DeleteDmarcSummaries(ctx context.Context, domainKey uuid.UUID) error

	// DeleteOwnership removes the ownership edge between org and domain.
	DeleteOwnership(ctx context.Context, orgKey, domainKey uuid.UUID) error

	// DeleteAllOwnership removes every ownership edge on the domain,
	// whichever organization holds it. Used by the full cascade so the
	// domain vertex never leaves a dangling ownership edge behind.
	DeleteAllOwnership(ctx context.Context, domainKey uuid.UUID) error

	// DeleteScanFamily removes every scan vertex of the family linked to the
	// domain, plus the link edges; for DKIM it also removes second-level
	// selector results and their edges first.
	DeleteScanFamily(ctx context.Context, family ScanFamily, domainKey uuid.UUID) error

	// DeleteClaim removes the single claim edge between org and domain.
	DeleteClaim(ctx context.Context, orgKey, domainKey uuid.UUID) error

	// DeleteAllClaims removes every remaining claim edge on the domain.
	DeleteAllClaims(ctx context.Context, domainKey uuid.UUID) error

	// DeleteDomain removes the domain vertex. Callers must have removed all
	// referencing edges within the same transaction first.
	DeleteDomain(ctx context.Context, domainKey uuid.UUID) error

	// DeleteAffiliation removes the affiliation edge between org and user.
	DeleteAffiliation(ctx context.Context, orgKey, userKey uuid.UUID) error
}
