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

// OrganizationStore implements store.OrganizationStore using PostgreSQL.
type OrganizationStore struct {
	pool *pgxpool.Pool
}

// NewOrganizationStore creates a new PostgreSQL-backed organization store.
// It shares the connection pool with other stores.
func NewOrganizationStore(pool *pgxpool.Pool) *OrganizationStore {
	return &OrganizationStore{
		pool: pool,
	}
}

// Get retrieves an organization by key.
func (s *OrganizationStore) Get(ctx context.Context, key uuid.UUID) (*models.Organization, error) {
	query := `
		SELECT key, verified,
			slug_en, acronym_en, name_en, zone_en, sector_en, country_en, province_en, city_en,
			slug_fr, acronym_fr, name_fr, zone_fr, sector_fr, country_fr, province_fr, city_fr,
			created_at, updated_at
		FROM organizations
		WHERE key = $1
	`

	var org models.Organization
	err := s.pool.QueryRow(ctx, query, key).Scan(
		&org.Key,
		&org.Verified,
		&org.English.Slug,
		&org.English.Acronym,
		&org.English.Name,
		&org.English.Zone,
		&org.English.Sector,
		&org.English.Country,
		&org.English.Province,
		&org.English.City,
		&org.French.Slug,
		&org.French.Acronym,
		&org.French.Name,
		&org.French.Zone,
		&org.French.Sector,
		&org.French.Country,
		&org.French.Province,
		&org.French.City,
		&org.CreatedAt,
		&org.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", mapPostgresError(err))
	}

	return &org, nil
}

// Create creates a new organization in the database.
func (s *OrganizationStore) Create(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (
			key, verified,
			slug_en, acronym_en, name_en, zone_en, sector_en, country_en, province_en, city_en,
			slug_fr, acronym_fr, name_fr, zone_fr, sector_fr, country_fr, province_fr, city_fr,
			created_at, updated_at
		) VALUES (
			$1, $2,
			$3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20
		)
	`

	_, err := s.pool.Exec(ctx, query,
		org.Key,
		org.Verified,
		org.English.Slug, org.English.Acronym, org.English.Name, org.English.Zone,
		org.English.Sector, org.English.Country, org.English.Province, org.English.City,
		org.French.Slug, org.French.Acronym, org.French.Name, org.French.Zone,
		org.French.Sector, org.French.Country, org.French.Province, org.French.City,
		org.CreatedAt,
		org.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create organization: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("org_key", org.Key.String()).
		Str("slug", org.English.Slug).
		Msg("Created organization")

	return nil
}
