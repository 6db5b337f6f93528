package mutations

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/domainsec/tracker/internal/auth"
	"github.com/domainsec/tracker/internal/cascade"
	"github.com/domainsec/tracker/internal/i18n"
	"github.com/domainsec/tracker/internal/loaders"
	"github.com/domainsec/tracker/internal/models"
	"github.com/domainsec/tracker/internal/permissions"
	"github.com/domainsec/tracker/internal/store"
	"github.com/domainsec/tracker/internal/telemetry"
)

type testEnv struct {
	mem     *store.Memory
	svc     *Service
	catalog *i18n.Catalog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	catalog, err := i18n.Load()
	require.NoError(t, err)

	mem := store.NewMemory()
	l := loaders.New(mem.Users(), mem.Organizations(), mem.Domains(), nil)
	svc := New(l, mem, permissions.NewResolver(mem), cascade.NewPlanner(mem),
		catalog, telemetry.New(prometheus.NewRegistry()), zerolog.Nop())

	return &testEnv{mem: mem, svc: svc, catalog: catalog}
}

func (e *testEnv) seedUser(t *testing.T, userName string) *models.User {
	t.Helper()
	user := &models.User{
		Key:            uuid.New(),
		UserName:       userName,
		DisplayName:    userName,
		PreferredLang:  i18n.LangEnglish,
		TFAValidated:   true,
		EmailValidated: true,
	}
	require.NoError(t, e.mem.Users().Create(context.Background(), user))
	return user
}

func (e *testEnv) seedOrg(t *testing.T, slug string, verified bool) *models.Organization {
	t.Helper()
	org := &models.Organization{
		Key:      uuid.New(),
		Verified: verified,
		English:  models.OrgDetails{Slug: slug, Name: slug},
		French:   models.OrgDetails{Slug: slug, Name: slug},
	}
	require.NoError(t, e.mem.Organizations().Create(context.Background(), org))
	return org
}

func (e *testEnv) seedDomain(t *testing.T, fqdn string) *models.Domain {
	t.Helper()
	domain := &models.Domain{
		Key:    uuid.New(),
		Domain: fqdn,
		Slug:   fqdn,
	}
	require.NoError(t, e.mem.Domains().Create(context.Background(), domain))
	return domain
}

func (e *testEnv) affiliate(t *testing.T, org *models.Organization, user *models.User, role models.Role) {
	t.Helper()
	require.NoError(t, e.mem.AddAffiliation(context.Background(), org.Key, user.Key, role))
}

func (e *testEnv) claim(t *testing.T, org *models.Organization, domain *models.Domain) {
	t.Helper()
	require.NoError(t, e.mem.AddClaim(context.Background(), org.Key, domain.Key))
}

func (e *testEnv) own(t *testing.T, org *models.Organization, domain *models.Domain) {
	t.Helper()
	require.NoError(t, e.mem.AddOwnership(context.Background(), org.Key, domain.Key))
}

// seedScanData attaches two scans per family, two selector results on the
// first DKIM scan, and one DMARC aggregate summary.
func (e *testEnv) seedScanData(t *testing.T, domain *models.Domain) {
	t.Helper()
	ctx := context.Background()

	var firstDKIM uuid.UUID
	for _, family := range store.ScanFamilies {
		for i := 0; i < 2; i++ {
			scan := &models.ScanRecord{Key: uuid.New(), Payload: []byte(`{}`)}
			require.NoError(t, e.mem.AddScan(ctx, family, domain.Key, scan))
			if family == store.ScanDKIM && i == 0 {
				firstDKIM = scan.Key
			}
		}
	}
	for i := 0; i < 2; i++ {
		result := &models.ScanRecord{Key: uuid.New(), Payload: []byte(`{}`)}
		require.NoError(t, e.mem.AddDKIMResult(ctx, firstDKIM, result))
	}
	require.NoError(t, e.mem.AddDmarcSummary(ctx, domain.Key, &models.ScanRecord{Key: uuid.New(), Payload: []byte(`{}`)}))
}

func (e *testEnv) requireScanCounts(t *testing.T, domain *models.Domain, perFamily, results, summaries int) {
	t.Helper()
	ctx := context.Background()

	for _, family := range store.ScanFamilies {
		count, err := e.mem.CountScans(ctx, family, domain.Key)
		require.NoError(t, err)
		require.Equal(t, perFamily, count, "scan count for family %s", family)
	}

	resultCount, err := e.mem.CountDKIMResults(ctx, domain.Key)
	require.NoError(t, err)
	require.Equal(t, results, resultCount)

	summaryCount, err := e.mem.CountDmarcSummaries(ctx, domain.Key)
	require.NoError(t, err)
	require.Equal(t, summaries, summaryCount)
}

func (e *testEnv) asUser(user *models.User) context.Context {
	return auth.WithUser(context.Background(), user)
}
