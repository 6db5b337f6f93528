//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/domainsec/tracker/internal/models"
	"github.com/domainsec/tracker/internal/store"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := NewPool(ctx, &PoolConfig{
		ConnString:  connString,
		AutoMigrate: true,
	})
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return pool, cleanup
}

type fixture struct {
	users   *UserStore
	orgs    *OrganizationStore
	domains *DomainStore
	graph   *GraphStore
}

func newFixture(pool *pgxpool.Pool) *fixture {
	return &fixture{
		users:   NewUserStore(pool),
		orgs:    NewOrganizationStore(pool),
		domains: NewDomainStore(pool),
		graph:   NewGraphStore(pool),
	}
}

func (f *fixture) seedDomainGraph(t *testing.T, ctx context.Context) (orgKey, domainKey uuid.UUID) {
	t.Helper()
	now := time.Now().UTC()

	org := &models.Organization{
		Key:       uuid.New(),
		English:   models.OrgDetails{Slug: "test-org", Name: "Test Org"},
		French:    models.OrgDetails{Slug: "test-org", Name: "Org de test"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.orgs.Create(ctx, org))

	domain := &models.Domain{
		Key:       uuid.New(),
		Domain:    "test.gc.ca",
		Slug:      "test.gc.ca",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.domains.Create(ctx, domain))

	require.NoError(t, f.graph.AddClaim(ctx, org.Key, domain.Key))
	require.NoError(t, f.graph.AddOwnership(ctx, org.Key, domain.Key))

	for _, family := range store.ScanFamilies {
		scan := &models.ScanRecord{Key: uuid.New(), Payload: []byte(`{"status":"pass"}`)}
		require.NoError(t, f.graph.AddScan(ctx, family, domain.Key, scan))
		if family == store.ScanDKIM {
			require.NoError(t, f.graph.AddDKIMResult(ctx, scan.Key,
				&models.ScanRecord{Key: uuid.New(), Payload: []byte(`{"selector":"selector1"}`)}))
		}
	}
	require.NoError(t, f.graph.AddDmarcSummary(ctx, domain.Key,
		&models.ScanRecord{Key: uuid.New(), Payload: []byte(`{"month":"2026-08"}`)}))

	return org.Key, domain.Key
}

func TestIntegration_VertexStores(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()
	f := newFixture(pool)

	now := time.Now().UTC()

	t.Run("user round trip", func(t *testing.T) {
		user := &models.User{
			Key:            uuid.New(),
			UserName:       "someone@example.com",
			DisplayName:    "Someone",
			PreferredLang:  "en",
			TFAValidated:   true,
			EmailValidated: true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		require.NoError(t, f.users.Create(ctx, user))

		got, err := f.users.Get(ctx, user.Key)
		require.NoError(t, err)
		require.Equal(t, user.UserName, got.UserName)
		require.True(t, got.TFAValidated)

		_, err = f.users.Get(ctx, uuid.New())
		require.ErrorIs(t, err, store.ErrUserNotFound)
	})

	t.Run("organization bilingual details", func(t *testing.T) {
		org := &models.Organization{
			Key:       uuid.New(),
			Verified:  true,
			English:   models.OrgDetails{Slug: "treasury-board", Name: "Treasury Board"},
			French:    models.OrgDetails{Slug: "conseil-du-tresor", Name: "Conseil du Trésor"},
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, f.orgs.Create(ctx, org))

		got, err := f.orgs.Get(ctx, org.Key)
		require.NoError(t, err)
		require.True(t, got.Verified)
		require.Equal(t, "treasury-board", got.Details("en").Slug)
		require.Equal(t, "conseil-du-tresor", got.Details("fr").Slug)
	})

	t.Run("domain round trip", func(t *testing.T) {
		domain := &models.Domain{
			Key:       uuid.New(),
			Domain:    "canada.gc.ca",
			Slug:      "canada.gc.ca",
			Selectors: []string{"selector1", "selector2"},
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, f.domains.Create(ctx, domain))

		got, err := f.domains.Get(ctx, domain.Key)
		require.NoError(t, err)
		require.Equal(t, "canada.gc.ca", got.Domain)
		require.Equal(t, []string{"selector1", "selector2"}, got.Selectors)
	})
}

func TestIntegration_GraphReads(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()
	f := newFixture(pool)

	orgKey, domainKey := f.seedDomainGraph(t, ctx)

	userKey := uuid.New()
	now := time.Now().UTC()
	require.NoError(t, f.users.Create(ctx, &models.User{
		Key: userKey, UserName: "member@example.com", PreferredLang: "en",
		CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, f.graph.AddAffiliation(ctx, orgKey, userKey, models.RoleAdmin))

	role, err := f.graph.AffiliationPermission(ctx, orgKey, userKey)
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, role)

	_, err = f.graph.AffiliationPermission(ctx, orgKey, uuid.New())
	require.ErrorIs(t, err, store.ErrAffiliationNotFound)

	claims, err := f.graph.CountClaims(ctx, domainKey)
	require.NoError(t, err)
	require.Equal(t, 1, claims)

	ownership, err := f.graph.CountOwnership(ctx, orgKey, domainKey)
	require.NoError(t, err)
	require.Equal(t, 1, ownership)

	for _, family := range store.ScanFamilies {
		count, err := f.graph.CountScans(ctx, family, domainKey)
		require.NoError(t, err)
		require.Equal(t, 1, count, "scan count for family %s", family)
	}

	summaries, err := f.graph.CountDmarcSummaries(ctx, domainKey)
	require.NoError(t, err)
	require.Equal(t, 1, summaries)
}

func TestIntegration_FullCascade(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()
	f := newFixture(pool)

	orgKey, domainKey := f.seedDomainGraph(t, ctx)

	err := f.graph.InTx(ctx, func(tx store.GraphTx) error {
		if err := tx.DeleteDmarcSummaries(ctx, domainKey); err != nil {
			return err
		}
		if err := tx.DeleteOwnership(ctx, orgKey, domainKey); err != nil {
			return err
		}
		for _, family := range store.ScanFamilies {
			if err := tx.DeleteScanFamily(ctx, family, domainKey); err != nil {
				return err
			}
		}
		if err := tx.DeleteAllClaims(ctx, domainKey); err != nil {
			return err
		}
		return tx.DeleteDomain(ctx, domainKey)
	})
	require.NoError(t, err)

	_, err = f.domains.Get(ctx, domainKey)
	require.ErrorIs(t, err, store.ErrDomainNotFound)

	for _, family := range store.ScanFamilies {
		count, err := f.graph.CountScans(ctx, family, domainKey)
		require.NoError(t, err)
		require.Zero(t, count)
	}

	var orphans int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM dkim_results`).Scan(&orphans))
	require.Zero(t, orphans, "dkim selector results must not outlive their scans")
}

func TestIntegration_TransactionRollback(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()
	f := newFixture(pool)

	orgKey, domainKey := f.seedDomainGraph(t, ctx)

	boom := errors.New("boom")
	err := f.graph.InTx(ctx, func(tx store.GraphTx) error {
		if err := tx.DeleteDmarcSummaries(ctx, domainKey); err != nil {
			return err
		}
		if err := tx.DeleteOwnership(ctx, orgKey, domainKey); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Both deletes ran inside the failed transaction and must be rolled back.
	summaries, err := f.graph.CountDmarcSummaries(ctx, domainKey)
	require.NoError(t, err)
	require.Equal(t, 1, summaries)

	ownership, err := f.graph.CountOwnership(ctx, orgKey, domainKey)
	require.NoError(t, err)
	require.Equal(t, 1, ownership)
}

func TestIntegration_DeleteMissingEdges(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()
	f := newFixture(pool)

	err := f.graph.InTx(ctx, func(tx store.GraphTx) error {
		return tx.DeleteClaim(ctx, uuid.New(), uuid.New())
	})
	require.ErrorIs(t, err, store.ErrClaimNotFound)

	err = f.graph.InTx(ctx, func(tx store.GraphTx) error {
		return tx.DeleteAffiliation(ctx, uuid.New(), uuid.New())
	})
	require.ErrorIs(t, err, store.ErrAffiliationNotFound)
}
