package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/domainsec/tracker/internal/models"
)

// edge is a directed (_from, _to) pair.
type edge struct {
	from uuid.UUID
	to   uuid.UUID
}

type memState struct {
	users   map[uuid.UUID]*models.User
	orgs    map[uuid.UUID]*models.Organization
	domains map[uuid.UUID]*models.Domain

	affiliations map[edge]models.Role // org -> user
	claims       map[edge]struct{}    // org -> domain
	ownership    map[edge]struct{}    // org -> domain

	scans     map[ScanFamily]map[uuid.UUID]*models.ScanRecord
	scanEdges map[ScanFamily]map[edge]struct{} // domain -> scan

	dkimResults     map[uuid.UUID]*models.ScanRecord
	dkimResultEdges map[edge]struct{} // dkim scan -> result

	summaries    map[uuid.UUID]*models.ScanRecord
	summaryEdges map[edge]struct{} // domain -> summary
}

func newMemState() *memState {
	s := &memState{
		users:           make(map[uuid.UUID]*models.User),
		orgs:            make(map[uuid.UUID]*models.Organization),
		domains:         make(map[uuid.UUID]*models.Domain),
		affiliations:    make(map[edge]models.Role),
		claims:          make(map[edge]struct{}),
		ownership:       make(map[edge]struct{}),
		scans:           make(map[ScanFamily]map[uuid.UUID]*models.ScanRecord),
		scanEdges:       make(map[ScanFamily]map[edge]struct{}),
		dkimResults:     make(map[uuid.UUID]*models.ScanRecord),
		dkimResultEdges: make(map[edge]struct{}),
		summaries:       make(map[uuid.UUID]*models.ScanRecord),
		summaryEdges:    make(map[edge]struct{}),
	}
	for _, fam := range ScanFamilies {
		s.scans[fam] = make(map[uuid.UUID]*models.ScanRecord)
		s.scanEdges[fam] = make(map[edge]struct{})
	}
	return s
}

// clone copies the map headers; vertex values are shared since transactions
// only add and delete entries.
func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.orgs {
		c.orgs[k] = v
	}
	for k, v := range s.domains {
		c.domains[k] = v
	}
	for k, v := range s.affiliations {
		c.affiliations[k] = v
	}
	for k := range s.claims {
		c.claims[k] = struct{}{}
	}
	for k := range s.ownership {
		c.ownership[k] = struct{}{}
	}
	for fam := range s.scans {
		for k, v := range s.scans[fam] {
			c.scans[fam][k] = v
		}
		for k := range s.scanEdges[fam] {
			c.scanEdges[fam][k] = struct{}{}
		}
	}
	for k, v := range s.dkimResults {
		c.dkimResults[k] = v
	}
	for k := range s.dkimResultEdges {
		c.dkimResultEdges[k] = struct{}{}
	}
	for k, v := range s.summaries {
		c.summaries[k] = v
	}
	for k := range s.summaryEdges {
		c.summaryEdges[k] = struct{}{}
	}
	return c
}

// Memory is an in-memory implementation of the vertex stores and GraphStore
// for development and testing. Transactions snapshot the full state and
// restore it on failure, giving the same all-or-nothing behaviour as the
// Postgres store.
type Memory struct {
	mu    sync.RWMutex
	state *memState

	failStep string
	failErr  error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{state: newMemState()}
}

// FailOnStep makes the named transaction step return err until cleared with
// an empty name. Used to exercise mid-transaction failure handling.
func (m *Memory) FailOnStep(step string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failStep = step
	m.failErr = err
}

// Users returns the UserStore view.
func (m *Memory) Users() UserStore { return memUsers{m} }

// Organizations returns the OrganizationStore view.
func (m *Memory) Organizations() OrganizationStore { return memOrgs{m} }

// Domains returns the DomainStore view.
func (m *Memory) Domains() DomainStore { return memDomains{m} }

type memUsers struct{ m *Memory }

func (v memUsers) Get(ctx context.Context, key uuid.UUID) (*models.User, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	user, ok := v.m.state.users[key]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (v memUsers) Create(ctx context.Context, user *models.User) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if _, exists := v.m.state.users[user.Key]; exists {
		return ErrAlreadyExists
	}
	copied := *user
	v.m.state.users[user.Key] = &copied
	return nil
}

type memOrgs struct{ m *Memory }

func (v memOrgs) Get(ctx context.Context, key uuid.UUID) (*models.Organization, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	org, ok := v.m.state.orgs[key]
	if !ok {
		return nil, ErrOrganizationNotFound
	}
	copied := *org
	return &copied, nil
}

func (v memOrgs) Create(ctx context.Context, org *models.Organization) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if _, exists := v.m.state.orgs[org.Key]; exists {
		return ErrAlreadyExists
	}
	copied := *org
	v.m.state.orgs[org.Key] = &copied
	return nil
}

type memDomains struct{ m *Memory }

func (v memDomains) Get(ctx context.Context, key uuid.UUID) (*models.Domain, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	domain, ok := v.m.state.domains[key]
	if !ok {
		return nil, ErrDomainNotFound
	}
	copied := *domain
	return &copied, nil
}

func (v memDomains) Create(ctx context.Context, domain *models.Domain) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if _, exists := v.m.state.domains[domain.Key]; exists {
		return ErrAlreadyExists
	}
	copied := *domain
	v.m.state.domains[domain.Key] = &copied
	return nil
}

func (m *Memory) AffiliationPermission(ctx context.Context, orgKey, userKey uuid.UUID) (models.Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	role, ok := m.state.affiliations[edge{from: orgKey, to: userKey}]
	if !ok {
		return models.RoleNone, ErrAffiliationNotFound
	}
	return role, nil
}

func (m *Memory) CountClaims(ctx context.Context, domainKey uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for e := range m.state.claims {
		if e.to == domainKey {
			count++
		}
	}
	return count, nil
}

func (m *Memory) CountOwnership(ctx context.Context, orgKey, domainKey uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for e := range m.state.ownership {
		if e.from == orgKey && e.to == domainKey {
			count++
		}
	}
	return count, nil
}

func (m *Memory) AddAffiliation(ctx context.Context, orgKey, userKey uuid.UUID, role models.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := edge{from: orgKey, to: userKey}
	if _, exists := m.state.affiliations[e]; exists {
		return ErrAlreadyExists
	}
	m.state.affiliations[e] = role
	return nil
}

func (m *Memory) AddClaim(ctx context.Context, orgKey, domainKey uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.claims[edge{from: orgKey, to: domainKey}] = struct{}{}
	return nil
}

func (m *Memory) AddOwnership(ctx context.Context, orgKey, domainKey uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.ownership[edge{from: orgKey, to: domainKey}] = struct{}{}
	return nil
}

func (m *Memory) AddScan(ctx context.Context, family ScanFamily, domainKey uuid.UUID, scan *models.ScanRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *scan
	m.state.scans[family][scan.Key] = &copied
	m.state.scanEdges[family][edge{from: domainKey, to: scan.Key}] = struct{}{}
	return nil
}

func (m *Memory) AddDKIMResult(ctx context.Context, dkimKey uuid.UUID, result *models.ScanRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *result
	m.state.dkimResults[result.Key] = &copied
	m.state.dkimResultEdges[edge{from: dkimKey, to: result.Key}] = struct{}{}
	return nil
}

func (m *Memory) AddDmarcSummary(ctx context.Context, domainKey uuid.UUID, summary *models.ScanRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *summary
	m.state.summaries[summary.Key] = &copied
	m.state.summaryEdges[edge{from: domainKey, to: summary.Key}] = struct{}{}
	return nil
}

func (m *Memory) CountScans(ctx context.Context, family ScanFamily, domainKey uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for e := range m.state.scanEdges[family] {
		if e.from == domainKey {
			count++
		}
	}
	return count, nil
}

func (m *Memory) CountDmarcSummaries(ctx context.Context, domainKey uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for e := range m.state.summaryEdges {
		if e.from == domainKey {
			count++
		}
	}
	return count, nil
}

// CountDKIMResults counts second-level DKIM selector results reachable from
// the domain's DKIM scans. Test helper.
func (m *Memory) CountDKIMResults(ctx context.Context, domainKey uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for scanEdge := range m.state.scanEdges[ScanDKIM] {
		if scanEdge.from != domainKey {
			continue
		}
		for resultEdge := range m.state.dkimResultEdges {
			if resultEdge.from == scanEdge.to {
				count++
			}
		}
	}
	return count, nil
}

// InTx snapshots the state, runs fn against it, and restores the snapshot if
// fn fails.
func (m *Memory) InTx(ctx context.Context, fn func(tx GraphTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(&memTx{m: m}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

type memTx struct {
	m *Memory
}

func (t *memTx) stepErr(step string) error {
	if t.m.failStep != "" && t.m.failStep == step {
		return t.m.failErr
	}
	return nil
}

func (t *memTx) DeleteDmarcSummaries(ctx context.Context, domainKey uuid.UUID) error {
	if err := t.stepErr("delete_dmarc_summaries"); err != nil {
		return err
	}
	s := t.m.state
	for e := range s.summaryEdges {
		if e.from != domainKey {
			continue
		}
		delete(s.summaryEdges, e)
		delete(s.summaries, e.to)
	}
	return nil
}

func (t *memTx) DeleteOwnership(ctx context.Context, orgKey, domainKey uuid.UUID) error {
	if err := t.stepErr("delete_ownership"); err != nil {
		return err
	}
	delete(t.m.state.ownership, edge{from: orgKey, to: domainKey})
	return nil
}

func (t *memTx) DeleteAllOwnership(ctx context.Context, domainKey uuid.UUID) error {
	if err := t.stepErr("delete_all_ownership"); err != nil {
		return err
	}
	for e := range t.m.state.ownership {
		if e.to == domainKey {
			delete(t.m.state.ownership, e)
		}
	}
	return nil
}

func (t *memTx) DeleteScanFamily(ctx context.Context, family ScanFamily, domainKey uuid.UUID) error {
	if err := t.stepErr("delete_scan_family:" + string(family)); err != nil {
		return err
	}
	s := t.m.state
	for e := range s.scanEdges[family] {
		if e.from != domainKey {
			continue
		}
		if family == ScanDKIM {
			for resultEdge := range s.dkimResultEdges {
				if resultEdge.from == e.to {
					delete(s.dkimResultEdges, resultEdge)
					delete(s.dkimResults, resultEdge.to)
				}
			}
		}
		delete(s.scanEdges[family], e)
		delete(s.scans[family], e.to)
	}
	return nil
}

func (t *memTx) DeleteClaim(ctx context.Context, orgKey, domainKey uuid.UUID) error {
	if err := t.stepErr("delete_claim"); err != nil {
		return err
	}
	e := edge{from: orgKey, to: domainKey}
	if _, ok := t.m.state.claims[e]; !ok {
		return ErrClaimNotFound
	}
	delete(t.m.state.claims, e)
	return nil
}

func (t *memTx) DeleteAllClaims(ctx context.Context, domainKey uuid.UUID) error {
	if err := t.stepErr("delete_all_claims"); err != nil {
		return err
	}
	for e := range t.m.state.claims {
		if e.to == domainKey {
			delete(t.m.state.claims, e)
		}
	}
	return nil
}

func (t *memTx) DeleteDomain(ctx context.Context, domainKey uuid.UUID) error {
	if err := t.stepErr("delete_domain"); err != nil {
		return err
	}
	s := t.m.state
	// Refuse to orphan edges: every referencing edge must already be gone.
	for e := range s.claims {
		if e.to == domainKey {
			return fmt.Errorf("domain %s still has claim edges", domainKey)
		}
	}
	for fam := range s.scanEdges {
		for e := range s.scanEdges[fam] {
			if e.from == domainKey {
				return fmt.Errorf("domain %s still has %s scan edges", domainKey, fam)
			}
		}
	}
	for e := range s.summaryEdges {
		if e.from == domainKey {
			return fmt.Errorf("domain %s still has dmarc summary edges", domainKey)
		}
	}
	for e := range s.ownership {
		if e.to == domainKey {
			return fmt.Errorf("domain %s still has ownership edges", domainKey)
		}
	}
	delete(s.domains, domainKey)
	return nil
}

func (t *memTx) DeleteAffiliation(ctx context.Context, orgKey, userKey uuid.UUID) error {
	if err := t.stepErr("delete_affiliation"); err != nil {
		return err
	}
	e := edge{from: orgKey, to: userKey}
	if _, ok := t.m.state.affiliations[e]; !ok {
		return ErrAffiliationNotFound
	}
	delete(t.m.state.affiliations, e)
	return nil
}
