package mutations

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/domainsec/tracker/internal/auth"
	"github.com/domainsec/tracker/internal/gid"
	"github.com/domainsec/tracker/internal/i18n"
	"github.com/domainsec/tracker/internal/models"
	"github.com/domainsec/tracker/internal/store"
	"github.com/domainsec/tracker/internal/telemetry"
)

// canRemoveUser is the caller-role x target-role authorization matrix.
// Super admins may remove anyone except another super admin; admins may
// remove plain users within the same organization; everyone else is denied.
func canRemoveUser(caller, target models.Role) bool {
	switch caller {
	case models.RoleSuperAdmin:
		return target != models.RoleSuperAdmin
	case models.RoleAdmin:
		return target == models.RoleUser
	}
	return false
}

// RemoveUserFromOrg unlinks a user's affiliation with an organization. The
// target user's account is untouched; only the affiliation edge is removed.
func (s *Service) RemoveUserFromOrg(ctx context.Context, targetUserKey, orgKey uuid.UUID) (*RemoveUserResponse, error) {
	started := time.Now()

	caller, err := auth.RequireUser(ctx, s.catalog.For(i18n.LangEnglish))
	if err != nil {
		s.observe("remove_user_from_org", telemetry.OutcomeAuthError, started)
		return nil, err
	}
	loc := s.catalog.For(caller.PreferredLang)
	if err := auth.RequireVerified(caller, loc); err != nil {
		s.observe("remove_user_from_org", telemetry.OutcomeAuthError, started)
		return nil, err
	}
	if err := auth.RequireTFA(caller, loc); err != nil {
		s.observe("remove_user_from_org", telemetry.OutcomeAuthError, started)
		return nil, err
	}

	logger := s.logger.With().
		Str("mutation", "removeUserFromOrg").
		Str("user_key", caller.Key.String()).
		Str("target_user_key", targetUserKey.String()).
		Str("org_key", orgKey.String()).
		Logger()

	org, err := s.loaders.Orgs.Load(ctx, orgKey)
	if err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			s.observe("remove_user_from_org", telemetry.OutcomeValidationError, started)
			logger.Warn().Msgf("User: %s attempted to remove user: %s from org: %s, however no org is associated with that id.", caller.Key, targetUserKey, orgKey)
			return &RemoveUserResponse{Error: &MutationError{
				Code:        http.StatusBadRequest,
				Description: loc.T("remove_user.unknown_org"),
			}}, nil
		}
		s.observe("remove_user_from_org", telemetry.OutcomeInfraError, started)
		logger.Error().Err(err).Str("phase", "resolve_org").Msg("Database error while loading organization")
		return nil, s.tryAgain(loc, "remove_user.try_again")
	}

	callerRole, err := s.perms.Resolve(ctx, caller.Key, orgKey)
	if err != nil {
		s.observe("remove_user_from_org", telemetry.OutcomeInfraError, started)
		logger.Error().Err(err).Str("phase", "authorize").Msg("Database error while resolving caller permission")
		return nil, s.tryAgain(loc, "remove_user.try_again")
	}

	target, err := s.loaders.Users.Load(ctx, targetUserKey)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			s.observe("remove_user_from_org", telemetry.OutcomeValidationError, started)
			logger.Warn().Msgf("User: %s attempted to remove user: %s from org: %s, however no user is associated with that id.", caller.Key, targetUserKey, orgKey)
			return &RemoveUserResponse{Error: &MutationError{
				Code:        http.StatusBadRequest,
				Description: loc.T("remove_user.unknown_user"),
			}}, nil
		}
		s.observe("remove_user_from_org", telemetry.OutcomeInfraError, started)
		logger.Error().Err(err).Str("phase", "resolve_user").Msg("Database error while loading target user")
		return nil, s.tryAgain(loc, "remove_user.try_again")
	}

	orgSlug := org.Details(loc.Lang()).Slug

	targetRole, err := s.graph.AffiliationPermission(ctx, orgKey, targetUserKey)
	if err != nil {
		if errors.Is(err, store.ErrAffiliationNotFound) {
			s.observe("remove_user_from_org", telemetry.OutcomeValidationError, started)
			logger.Warn().Msgf("User: %s attempted to remove user: %s from org: %s, however the user is not affiliated with that org.", caller.Key, target.UserName, orgSlug)
			return &RemoveUserResponse{Error: &MutationError{
				Code:        http.StatusBadRequest,
				Description: loc.T("remove_user.not_affiliated"),
			}}, nil
		}
		s.observe("remove_user_from_org", telemetry.OutcomeInfraError, started)
		logger.Error().Err(err).Str("phase", "resolve_affiliation").Msg("Database error while loading target affiliation")
		return nil, s.tryAgain(loc, "remove_user.try_again")
	}

	if !canRemoveUser(callerRole, targetRole) {
		s.observe("remove_user_from_org", telemetry.OutcomeValidationError, started)
		logger.Warn().
			Str("caller_role", string(callerRole)).
			Str("target_role", string(targetRole)).
			Msgf("User: %s attempted to remove user: %s from org: %s, however they do not have permission to do so.", caller.Key, target.UserName, orgSlug)
		msgKey := "remove_user.insufficient_permission"
		if targetRole == models.RoleSuperAdmin || targetRole == models.RoleAdmin {
			msgKey = "remove_user.super_admin_target"
		}
		return &RemoveUserResponse{Error: &MutationError{
			Code:        http.StatusForbidden,
			Description: loc.T(msgKey),
		}}, nil
	}

	err = s.graph.InTx(ctx, func(tx store.GraphTx) error {
		return tx.DeleteAffiliation(ctx, orgKey, targetUserKey)
	})
	if err != nil {
		s.observe("remove_user_from_org", telemetry.OutcomeInfraError, started)
		logger.Error().Err(err).Str("phase", "transact").Msg("Transaction error while removing user from organization")
		return nil, s.tryAgain(loc, "remove_user.try_again")
	}

	s.loaders.Users.Invalidate(ctx, targetUserKey)

	s.observe("remove_user_from_org", telemetry.OutcomeSuccess, started)
	logger.Info().
		Str("target_role", string(targetRole)).
		Msgf("User: %s successfully removed user: %s from org: %s.", caller.Key, target.UserName, orgSlug)

	return &RemoveUserResponse{Result: &RemoveUserResult{
		Status: loc.T("remove_user.success", orgSlug),
		User: RemovedUser{
			ID:       gid.New(gid.TypeUser, target.Key).String(),
			UserName: target.UserName,
		},
	}}, nil
}
