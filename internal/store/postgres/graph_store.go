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

// familyTables maps a scan family to its vertex table and the link-edge table
// connecting it to domains. Table names are compile-time constants, never
// user input.
var familyTables = map[store.ScanFamily]struct {
	vertex string
	edge   string
}{
	store.ScanDKIM:  {vertex: "dkim_scans", edge: "domains_dkim"},
	store.ScanDMARC: {vertex: "dmarc_scans", edge: "domains_dmarc"},
	store.ScanSPF:   {vertex: "spf_scans", edge: "domains_spf"},
	store.ScanHTTPS: {vertex: "https_scans", edge: "domains_https"},
	store.ScanSSL:   {vertex: "ssl_scans", edge: "domains_ssl"},
}

// GraphStore implements store.GraphStore using PostgreSQL. Edge collections
// are plain tables; the cascade steps run as ordered statements inside a
// single pgx transaction.
type GraphStore struct {
	pool *pgxpool.Pool
}

// NewGraphStore creates a new PostgreSQL-backed graph store.
// It shares the connection pool with other stores.
func NewGraphStore(pool *pgxpool.Pool) *GraphStore {
	return &GraphStore{
		pool: pool,
	}
}

// AffiliationPermission returns the role on the affiliation edge between the
// organization and user.
func (s *GraphStore) AffiliationPermission(ctx context.Context, orgKey, userKey uuid.UUID) (models.Role, error) {
	query := `
		SELECT permission
		FROM affiliations
		WHERE org_key = $1 AND user_key = $2
	`

	var permission string
	err := s.pool.QueryRow(ctx, query, orgKey, userKey).Scan(&permission)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RoleNone, store.ErrAffiliationNotFound
		}
		return models.RoleNone, fmt.Errorf("failed to query affiliation: %w", mapPostgresError(err))
	}

	return models.Role(permission), nil
}

// CountClaims counts inbound claim edges on a domain.
func (s *GraphStore) CountClaims(ctx context.Context, domainKey uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM claims WHERE domain_key = $1`, domainKey).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count claims: %w", mapPostgresError(err))
	}
	return count, nil
}

// CountOwnership counts ownership edges between an organization and a domain.
func (s *GraphStore) CountOwnership(ctx context.Context, orgKey, domainKey uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM ownership WHERE org_key = $1 AND domain_key = $2`,
		orgKey, domainKey).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count ownership: %w", mapPostgresError(err))
	}
	return count, nil
}

// AddAffiliation links a user to an organization with the given role.
func (s *GraphStore) AddAffiliation(ctx context.Context, orgKey, userKey uuid.UUID, role models.Role) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO affiliations (org_key, user_key, permission) VALUES ($1, $2, $3)`,
		orgKey, userKey, string(role))
	if err != nil {
		return fmt.Errorf("failed to add affiliation: %w", mapPostgresError(err))
	}
	return nil
}

// AddClaim links an organization to a domain it tracks.
func (s *GraphStore) AddClaim(ctx context.Context, orgKey, domainKey uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO claims (org_key, domain_key) VALUES ($1, $2)`, orgKey, domainKey)
	if err != nil {
		return fmt.Errorf("failed to add claim: %w", mapPostgresError(err))
	}
	return nil
}

// AddOwnership marks an organization authoritative for a domain's DMARC
// aggregate reporting.
func (s *GraphStore) AddOwnership(ctx context.Context, orgKey, domainKey uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ownership (org_key, domain_key) VALUES ($1, $2)`, orgKey, domainKey)
	if err != nil {
		return fmt.Errorf("failed to add ownership: %w", mapPostgresError(err))
	}
	return nil
}

// AddScan inserts a scan vertex and its link edge to the domain.
func (s *GraphStore) AddScan(ctx context.Context, family store.ScanFamily, domainKey uuid.UUID, scan *models.ScanRecord) error {
	tables, ok := familyTables[family]
	if !ok {
		return fmt.Errorf("unknown scan family: %s", family)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapPostgresError(err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	_, err = tx.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (key, payload, created_at) VALUES ($1, $2, now())`, tables.vertex),
		scan.Key, scan.Payload)
	if err != nil {
		return fmt.Errorf("failed to insert %s scan: %w", family, mapPostgresError(err))
	}

	_, err = tx.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (domain_key, scan_key) VALUES ($1, $2)`, tables.edge),
		domainKey, scan.Key)
	if err != nil {
		return fmt.Errorf("failed to link %s scan: %w", family, mapPostgresError(err))
	}

	return mapPostgresError(tx.Commit(ctx))
}

// AddDKIMResult inserts a selector result vertex linked to a DKIM scan.
func (s *GraphStore) AddDKIMResult(ctx context.Context, dkimKey uuid.UUID, result *models.ScanRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapPostgresError(err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	_, err = tx.Exec(ctx,
		`INSERT INTO dkim_results (key, payload, created_at) VALUES ($1, $2, now())`,
		result.Key, result.Payload)
	if err != nil {
		return fmt.Errorf("failed to insert dkim result: %w", mapPostgresError(err))
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO dkim_to_dkim_results (dkim_key, result_key) VALUES ($1, $2)`,
		dkimKey, result.Key)
	if err != nil {
		return fmt.Errorf("failed to link dkim result: %w", mapPostgresError(err))
	}

	return mapPostgresError(tx.Commit(ctx))
}

// AddDmarcSummary inserts a DMARC aggregate summary linked to a domain.
func (s *GraphStore) AddDmarcSummary(ctx context.Context, domainKey uuid.UUID, summary *models.ScanRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapPostgresError(err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	_, err = tx.Exec(ctx,
		`INSERT INTO dmarc_summaries (key, payload, created_at) VALUES ($1, $2, now())`,
		summary.Key, summary.Payload)
	if err != nil {
		return fmt.Errorf("failed to insert dmarc summary: %w", mapPostgresError(err))
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO domains_to_dmarc_summaries (domain_key, summary_key) VALUES ($1, $2)`,
		domainKey, summary.Key)
	if err != nil {
		return fmt.Errorf("failed to link dmarc summary: %w", mapPostgresError(err))
	}

	return mapPostgresError(tx.Commit(ctx))
}

// CountScans counts scan vertices of one family linked to a domain.
func (s *GraphStore) CountScans(ctx context.Context, family store.ScanFamily, domainKey uuid.UUID) (int, error) {
	tables, ok := familyTables[family]
	if !ok {
		return 0, fmt.Errorf("unknown scan family: %s", family)
	}

	var count int
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE domain_key = $1`, tables.edge),
		domainKey).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s scans: %w", family, mapPostgresError(err))
	}
	return count, nil
}

// CountDmarcSummaries counts DMARC aggregate summaries linked to a domain.
func (s *GraphStore) CountDmarcSummaries(ctx context.Context, domainKey uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM domains_to_dmarc_summaries WHERE domain_key = $1`,
		domainKey).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count dmarc summaries: %w", mapPostgresError(err))
	}
	return count, nil
}

// InTx runs fn inside one transaction; any step error rolls everything back.
func (s *GraphStore) InTx(ctx context.Context, fn func(tx store.GraphTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapPostgresError(err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	if err := fn(&graphTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapPostgresError(err))
	}

	log.Debug().Msg("Graph transaction committed")
	return nil
}

// graphTx implements store.GraphTx on a pgx transaction. Each step deletes
// edges strictly before the vertices they reference.
type graphTx struct {
	tx pgx.Tx
}

func (t *graphTx) DeleteDmarcSummaries(ctx context.Context, domainKey uuid.UUID) error {
	query := `
		WITH removed AS (
			DELETE FROM domains_to_dmarc_summaries
			WHERE domain_key = $1
			RETURNING summary_key
		)
		DELETE FROM dmarc_summaries
		WHERE key IN (SELECT summary_key FROM removed)
	`
	if _, err := t.tx.Exec(ctx, query, domainKey); err != nil {
		return fmt.Errorf("failed to delete dmarc summaries: %w", mapPostgresError(err))
	}
	return nil
}

func (t *graphTx) DeleteOwnership(ctx context.Context, orgKey, domainKey uuid.UUID) error {
	_, err := t.tx.Exec(ctx,
		`DELETE FROM ownership WHERE org_key = $1 AND domain_key = $2`, orgKey, domainKey)
	if err != nil {
		return fmt.Errorf("failed to delete ownership: %w", mapPostgresError(err))
	}
	return nil
}

func (t *graphTx) DeleteAllOwnership(ctx context.Context, domainKey uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM ownership WHERE domain_key = $1`, domainKey)
	if err != nil {
		return fmt.Errorf("failed to delete ownership edges: %w", mapPostgresError(err))
	}
	return nil
}

func (t *graphTx) DeleteScanFamily(ctx context.Context, family store.ScanFamily, domainKey uuid.UUID) error {
	tables, ok := familyTables[family]
	if !ok {
		return fmt.Errorf("unknown scan family: %s", family)
	}

	// DKIM carries second-level selector results; remove their edges and
	// vertices before the scans themselves.
	if family == store.ScanDKIM {
		query := `
			WITH removed AS (
				DELETE FROM dkim_to_dkim_results
				WHERE dkim_key IN (
					SELECT scan_key FROM domains_dkim WHERE domain_key = $1
				)
				RETURNING result_key
			)
			DELETE FROM dkim_results
			WHERE key IN (SELECT result_key FROM removed)
		`
		if _, err := t.tx.Exec(ctx, query, domainKey); err != nil {
			return fmt.Errorf("failed to delete dkim results: %w", mapPostgresError(err))
		}
	}

	query := fmt.Sprintf(`
		WITH removed AS (
			DELETE FROM %s
			WHERE domain_key = $1
			RETURNING scan_key
		)
		DELETE FROM %s
		WHERE key IN (SELECT scan_key FROM removed)
	`, tables.edge, tables.vertex)

	if _, err := t.tx.Exec(ctx, query, domainKey); err != nil {
		return fmt.Errorf("failed to delete %s scans: %w", family, mapPostgresError(err))
	}
	return nil
}

func (t *graphTx) DeleteClaim(ctx context.Context, orgKey, domainKey uuid.UUID) error {
	result, err := t.tx.Exec(ctx,
		`DELETE FROM claims WHERE org_key = $1 AND domain_key = $2`, orgKey, domainKey)
	if err != nil {
		return fmt.Errorf("failed to delete claim: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrClaimNotFound
	}
	return nil
}

func (t *graphTx) DeleteAllClaims(ctx context.Context, domainKey uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM claims WHERE domain_key = $1`, domainKey)
	if err != nil {
		return fmt.Errorf("failed to delete claims: %w", mapPostgresError(err))
	}
	return nil
}

func (t *graphTx) DeleteDomain(ctx context.Context, domainKey uuid.UUID) error {
	result, err := t.tx.Exec(ctx, `DELETE FROM domains WHERE key = $1`, domainKey)
	if err != nil {
		return fmt.Errorf("failed to delete domain: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrDomainNotFound
	}
	return nil
}

func (t *graphTx) DeleteAffiliation(ctx context.Context, orgKey, userKey uuid.UUID) error {
	result, err := t.tx.Exec(ctx,
		`DELETE FROM affiliations WHERE org_key = $1 AND user_key = $2`, orgKey, userKey)
	if err != nil {
		return fmt.Errorf("failed to delete affiliation: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrAffiliationNotFound
	}
	return nil
}
