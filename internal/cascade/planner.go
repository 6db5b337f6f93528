// Package cascade decides the deletion scope for a domain removal: whether
// removing one organization's claim destroys the domain and all of its scan
// data, or merely unlinks the claim edge.
package cascade

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/domainsec/tracker/internal/store"
)

// ErrAmbiguousOwnership is returned when more than one ownership edge exists
// between the requesting organization and the domain. The data layer does not
// prevent this; rather than silently cleaning up the first edge, the planner
// refuses and leaves the state untouched for an operator to repair.
var ErrAmbiguousOwnership = errors.New("ambiguous ownership: more than one ownership edge")

// Strategy selects how far a domain removal cascades.
type Strategy int

const (
	// StrategyUnlinkOnly removes only the claim edge between the requesting
	// organization and the domain; other claims and all scan data survive.
	StrategyUnlinkOnly Strategy = iota

	// StrategyFullCascade removes every scan-result family, DMARC summaries,
	// remaining claim and ownership edges, and the domain vertex itself.
	StrategyFullCascade
)

func (s Strategy) String() string {
	switch s {
	case StrategyUnlinkOnly:
		return "unlink_only"
	case StrategyFullCascade:
		return "full_cascade"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// Plan is the deletion scope decided for one (org, domain) pair.
type Plan struct {
	Strategy       Strategy
	ClaimCount     int
	OwnershipCount int
}

// RemoveOwnership reports whether the requesting organization's ownership
// edge (and with it the DMARC summary family) must be removed before the
// cascade branch runs.
func (p Plan) RemoveOwnership() bool {
	return p.OwnershipCount == 1
}

// Planner reads claim and ownership cardinality to build a Plan.
type Planner struct {
	graph store.GraphStore
}

// NewPlanner creates a planner backed by the given graph store.
func NewPlanner(graph store.GraphStore) *Planner {
	return &Planner{graph: graph}
}

// PlanDomainRemoval decides the scope for removing domainKey from orgKey.
// The claim being removed counts itself: a claim count of at most one means
// the requesting organization holds the last claim and the whole domain goes.
func (p *Planner) PlanDomainRemoval(ctx context.Context, orgKey, domainKey uuid.UUID) (Plan, error) {
	claimCount, err := p.graph.CountClaims(ctx, domainKey)
	if err != nil {
		return Plan{}, fmt.Errorf("failed to count claims: %w", err)
	}

	ownershipCount, err := p.graph.CountOwnership(ctx, orgKey, domainKey)
	if err != nil {
		return Plan{}, fmt.Errorf("failed to count ownership: %w", err)
	}

	if ownershipCount > 1 {
		return Plan{}, fmt.Errorf("%w: org %s holds %d edges to domain %s",
			ErrAmbiguousOwnership, orgKey, ownershipCount, domainKey)
	}

	plan := Plan{
		Strategy:       StrategyUnlinkOnly,
		ClaimCount:     claimCount,
		OwnershipCount: ownershipCount,
	}
	if claimCount <= 1 {
		plan.Strategy = StrategyFullCascade
	}

	return plan, nil
}
