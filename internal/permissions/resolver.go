// Package permissions resolves a user's effective role within an
// organization by reading the affiliation edge set.
package permissions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/domainsec/tracker/internal/models"
	"github.com/domainsec/tracker/internal/store"
)

// Resolver determines the effective role a user holds in an organization.
type Resolver struct {
	graph store.GraphStore
}

// NewResolver creates a resolver backed by the given graph store.
func NewResolver(graph store.GraphStore) *Resolver {
	return &Resolver{graph: graph}
}

// Resolve returns the role on the affiliation edge between user and org, or
// RoleNone when no affiliation exists. Store failures are returned wrapped;
// callers translate them to a generic user-facing error.
func (r *Resolver) Resolve(ctx context.Context, userKey, orgKey uuid.UUID) (models.Role, error) {
	role, err := r.graph.AffiliationPermission(ctx, orgKey, userKey)
	if err != nil {
		if errors.Is(err, store.ErrAffiliationNotFound) {
			return models.RoleNone, nil
		}
		return models.RoleNone, fmt.Errorf("failed to resolve permission: %w", err)
	}
	return role, nil
}
