package mutations

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/domainsec/tracker/internal/auth"
	"github.com/domainsec/tracker/internal/cascade"
	"github.com/domainsec/tracker/internal/i18n"
	"github.com/domainsec/tracker/internal/models"
	"github.com/domainsec/tracker/internal/store"
	"github.com/domainsec/tracker/internal/telemetry"
)

// RemoveDomain removes a domain from an organization. When the organization
// holds the last claim on the domain, the removal cascades through every
// scan-result family and destroys the domain vertex; otherwise only the
// claim edge is unlinked. Verified organizations are protected: no role may
// remove their domains through this mutation.
func (s *Service) RemoveDomain(ctx context.Context, domainKey, orgKey uuid.UUID) (*RemoveDomainResponse, error) {
	started := time.Now()

	user, err := auth.RequireUser(ctx, s.catalog.For(i18n.LangEnglish))
	if err != nil {
		s.observe("remove_domain", telemetry.OutcomeAuthError, started)
		return nil, err
	}
	loc := s.catalog.For(user.PreferredLang)
	if err := auth.RequireVerified(user, loc); err != nil {
		s.observe("remove_domain", telemetry.OutcomeAuthError, started)
		return nil, err
	}

	logger := s.logger.With().
		Str("mutation", "removeDomain").
		Str("user_key", user.Key.String()).
		Str("domain_key", domainKey.String()).
		Str("org_key", orgKey.String()).
		Logger()

	domain, err := s.loaders.Domains.Load(ctx, domainKey)
	if err != nil {
		if errors.Is(err, store.ErrDomainNotFound) {
			s.observe("remove_domain", telemetry.OutcomeValidationError, started)
			logger.Warn().Msgf("User: %s attempted to remove domain: %s, however no domain is associated with that id.", user.Key, domainKey)
			return &RemoveDomainResponse{Error: &MutationError{
				Code:        http.StatusBadRequest,
				Description: loc.T("remove_domain.unknown_domain"),
			}}, nil
		}
		s.observe("remove_domain", telemetry.OutcomeInfraError, started)
		logger.Error().Err(err).Str("phase", "resolve_domain").Msg("Database error while loading domain")
		return nil, s.tryAgain(loc, "remove_domain.try_again")
	}

	org, err := s.loaders.Orgs.Load(ctx, orgKey)
	if err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			s.observe("remove_domain", telemetry.OutcomeValidationError, started)
			logger.Warn().Msgf("User: %s attempted to remove domain: %s in org: %s, however no org is associated with that id.", user.Key, domain.Slug, orgKey)
			return &RemoveDomainResponse{Error: &MutationError{
				Code:        http.StatusBadRequest,
				Description: loc.T("remove_domain.unknown_org"),
			}}, nil
		}
		s.observe("remove_domain", telemetry.OutcomeInfraError, started)
		logger.Error().Err(err).Str("phase", "resolve_org").Msg("Database error while loading organization")
		return nil, s.tryAgain(loc, "remove_domain.try_again")
	}

	role, err := s.perms.Resolve(ctx, user.Key, orgKey)
	if err != nil {
		s.observe("remove_domain", telemetry.OutcomeInfraError, started)
		logger.Error().Err(err).Str("phase", "authorize").Msg("Database error while resolving permission")
		return nil, s.tryAgain(loc, "remove_domain.try_again")
	}

	orgSlug := org.Details(loc.Lang()).Slug

	// Verified organizations are protected from domain removal for every
	// role; only the message differs.
	if org.Verified {
		s.observe("remove_domain", telemetry.OutcomeValidationError, started)
		logger.Warn().Str("role", string(role)).
			Msgf("User: %s attempted to remove domain: %s in org: %s, however the organization is verified.", user.Key, domain.Slug, orgSlug)
		msgKey := "remove_domain.verified_org_admin"
		if role == models.RoleSuperAdmin {
			msgKey = "remove_domain.verified_org_super_admin"
		}
		return &RemoveDomainResponse{Error: &MutationError{
			Code:        http.StatusForbidden,
			Description: loc.T(msgKey),
		}}, nil
	}

	if !role.AtLeastAdmin() {
		s.observe("remove_domain", telemetry.OutcomeValidationError, started)
		logger.Warn().Str("role", string(role)).
			Msgf("User: %s attempted to remove domain: %s in org: %s, however they do not have permission in that org.", user.Key, domain.Slug, orgSlug)
		return &RemoveDomainResponse{Error: &MutationError{
			Code:        http.StatusForbidden,
			Description: loc.T("remove_domain.insufficient_permission"),
		}}, nil
	}

	plan, err := s.planner.PlanDomainRemoval(ctx, orgKey, domainKey)
	if err != nil {
		s.observe("remove_domain", telemetry.OutcomeInfraError, started)
		if errors.Is(err, cascade.ErrAmbiguousOwnership) {
			logger.Error().Err(err).Str("phase", "plan").Msg("Ambiguous ownership cardinality, refusing to remove domain")
		} else {
			logger.Error().Err(err).Str("phase", "plan").Msg("Database error while planning domain removal")
		}
		return nil, s.tryAgain(loc, "remove_domain.try_again")
	}

	err = s.graph.InTx(ctx, func(tx store.GraphTx) error {
		// Ownership implies DMARC aggregate reporting: the summary family
		// goes with the ownership edge, ahead of the cascade branch.
		if plan.RemoveOwnership() {
			if err := tx.DeleteDmarcSummaries(ctx, domainKey); err != nil {
				return err
			}
			if err := tx.DeleteOwnership(ctx, orgKey, domainKey); err != nil {
				return err
			}
		}

		switch plan.Strategy {
		case cascade.StrategyFullCascade:
			for _, family := range store.ScanFamilies {
				if err := tx.DeleteScanFamily(ctx, family, domainKey); err != nil {
					return err
				}
			}
			if err := tx.DeleteDmarcSummaries(ctx, domainKey); err != nil {
				return err
			}
			if err := tx.DeleteAllOwnership(ctx, domainKey); err != nil {
				return err
			}
			if err := tx.DeleteAllClaims(ctx, domainKey); err != nil {
				return err
			}
			return tx.DeleteDomain(ctx, domainKey)

		case cascade.StrategyUnlinkOnly:
			return tx.DeleteClaim(ctx, orgKey, domainKey)
		}
		return nil
	})
	if err != nil {
		s.observe("remove_domain", telemetry.OutcomeInfraError, started)
		logger.Error().Err(err).
			Str("phase", "transact").
			Str("strategy", plan.Strategy.String()).
			Msg("Transaction error while removing domain")
		return nil, s.tryAgain(loc, "remove_domain.try_again")
	}

	s.loaders.Domains.Invalidate(ctx, domainKey)

	s.observe("remove_domain", telemetry.OutcomeSuccess, started)
	logger.Info().
		Str("strategy", plan.Strategy.String()).
		Int("claim_count", plan.ClaimCount).
		Msgf("User: %s successfully removed domain: %s from org: %s.", user.Key, domain.Slug, orgSlug)

	return &RemoveDomainResponse{Result: &DomainResult{
		Status: loc.T("remove_domain.success", domain.Slug, orgSlug),
	}}, nil
}
