// Package mutations implements the transactional mutation orchestrators for
// domain and organization lifecycle operations. Every orchestrator follows
// the same linear flow: authenticate, resolve entities, authorize, plan,
// transact, report. Validation and authorization failures come back as data
// in the result union; store and transaction failures are logged with full
// context and surfaced as a single generic, localized error.
package mutations

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/domainsec/tracker/internal/cascade"
	"github.com/domainsec/tracker/internal/i18n"
	"github.com/domainsec/tracker/internal/loaders"
	"github.com/domainsec/tracker/internal/permissions"
	"github.com/domainsec/tracker/internal/store"
	"github.com/domainsec/tracker/internal/telemetry"
)

// Service hosts the mutation orchestrators and their collaborators, built
// once per process and shared across requests. The acting user travels in
// the request context.
type Service struct {
	loaders *loaders.Loaders
	graph   store.GraphStore
	perms   *permissions.Resolver
	planner *cascade.Planner
	catalog *i18n.Catalog
	metrics *telemetry.Metrics
	logger  zerolog.Logger
}

// New wires a mutation service.
func New(l *loaders.Loaders, graph store.GraphStore, perms *permissions.Resolver,
	planner *cascade.Planner, catalog *i18n.Catalog, metrics *telemetry.Metrics,
	logger zerolog.Logger) *Service {
	return &Service{
		loaders: l,
		graph:   graph,
		perms:   perms,
		planner: planner,
		catalog: catalog,
		metrics: metrics,
		logger:  logger,
	}
}

// genericError is the sanitized infrastructure failure surfaced to clients.
// The message never identifies which internal step failed; that detail lives
// only in server logs.
type genericError struct {
	message string
}

func (e *genericError) Error() string {
	return e.message
}

// IsGenericError reports whether err is a sanitized infrastructure error.
func IsGenericError(err error) bool {
	var ge *genericError
	return errors.As(err, &ge)
}

func (s *Service) tryAgain(loc *i18n.Localizer, key string) error {
	return &genericError{message: loc.T(key)}
}

func (s *Service) observe(mutation, outcome string, started time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveMutation(mutation, outcome, time.Since(started))
	}
}
