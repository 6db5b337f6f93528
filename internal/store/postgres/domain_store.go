package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/domainsec/tracker/internal/models"
	"github.com/domainsec/tracker/internal/store"
)

// DomainStore implements store.DomainStore using PostgreSQL.
type DomainStore struct {
	pool *pgxpool.Pool
}

// NewDomainStore creates a new PostgreSQL-backed domain store.
// It shares the connection pool with other stores.
func NewDomainStore(pool *pgxpool.Pool) *DomainStore {
	return &DomainStore{
		pool: pool,
	}
}

// Get retrieves a domain by key.
func (s *DomainStore) Get(ctx context.Context, key uuid.UUID) (*models.Domain, error) {
	query := `
		SELECT key, domain, slug, selectors, last_ran,
			status_dkim, status_dmarc, status_https, status_spf, status_ssl,
			created_at, updated_at
		FROM domains
		WHERE key = $1
	`

	var domain models.Domain
	err := s.pool.QueryRow(ctx, query, key).Scan(
		&domain.Key,
		&domain.Domain,
		&domain.Slug,
		&domain.Selectors,
		&domain.LastRan,
		&domain.Status.DKIM,
		&domain.Status.DMARC,
		&domain.Status.HTTPS,
		&domain.Status.SPF,
		&domain.Status.SSL,
		&domain.CreatedAt,
		&domain.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrDomainNotFound
		}
		return nil, fmt.Errorf("failed to get domain: %w", mapPostgresError(err))
	}

	return &domain, nil
}

// Create creates a new domain in the database.
func (s *DomainStore) Create(ctx context.Context, domain *models.Domain) error {
	query := `
		INSERT INTO domains (
			key, domain, slug, selectors, last_ran,
			status_dkim, status_dmarc, status_https, status_spf, status_ssl,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	_, err := s.pool.Exec(ctx, query,
		domain.Key,
		domain.Domain,
		domain.Slug,
		domain.Selectors,
		domain.LastRan,
		domain.Status.DKIM,
		domain.Status.DMARC,
		domain.Status.HTTPS,
		domain.Status.SPF,
		domain.Status.SSL,
		domain.CreatedAt,
		domain.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create domain: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("domain_key", domain.Key.String()).
		Str("domain", domain.Domain).
		Msg("Created domain")

	return nil
}
