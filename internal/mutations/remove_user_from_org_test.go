package mutations

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/domainsec/tracker/internal/auth"
	"github.com/domainsec/tracker/internal/gid"
	"github.com/domainsec/tracker/internal/models"
	"github.com/domainsec/tracker/internal/store"
)

func TestRemoveUserFromOrg(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.seedUser(t, "admin@example.com")
	target := env.seedUser(t, "member@example.com")
	org := env.seedOrg(t, "example-org", false)
	env.affiliate(t, org, admin, models.RoleAdmin)
	env.affiliate(t, org, target, models.RoleUser)

	resp, err := env.svc.RemoveUserFromOrg(env.asUser(admin), target.Key, org.Key)
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Result)
	require.Equal(t, "Successfully removed user from organization: example-org.", resp.Result.Status)
	require.Equal(t, gid.New(gid.TypeUser, target.Key).String(), resp.Result.User.ID)
	require.Equal(t, "member@example.com", resp.Result.User.UserName)

	// The affiliation edge is gone but the user account survives.
	_, err = env.mem.AffiliationPermission(ctx, org.Key, target.Key)
	require.ErrorIs(t, err, store.ErrAffiliationNotFound)

	_, err = env.mem.Users().Get(ctx, target.Key)
	require.NoError(t, err)

	// The caller's own affiliation is untouched.
	role, err := env.mem.AffiliationPermission(ctx, org.Key, admin.Key)
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, role)
}

func TestRemoveUserFromOrgAuthorizationMatrix(t *testing.T) {
	tests := []struct {
		name    string
		caller  models.Role
		target  models.Role
		allowed bool
		message string
	}{
		{name: "super admin removes user", caller: models.RoleSuperAdmin, target: models.RoleUser, allowed: true},
		{name: "super admin removes admin", caller: models.RoleSuperAdmin, target: models.RoleAdmin, allowed: true},
		{
			name:    "super admin cannot remove super admin",
			caller:  models.RoleSuperAdmin,
			target:  models.RoleSuperAdmin,
			message: "Permission Denied: Please contact organization admin for help with removing this user.",
		},
		{name: "admin removes user", caller: models.RoleAdmin, target: models.RoleUser, allowed: true},
		{
			name:    "admin cannot remove admin",
			caller:  models.RoleAdmin,
			target:  models.RoleAdmin,
			message: "Permission Denied: Please contact organization admin for help with removing this user.",
		},
		{
			name:    "admin cannot remove super admin",
			caller:  models.RoleAdmin,
			target:  models.RoleSuperAdmin,
			message: "Permission Denied: Please contact organization admin for help with removing this user.",
		},
		{
			name:    "plain member cannot remove anyone",
			caller:  models.RoleUser,
			target:  models.RoleUser,
			message: "Permission Denied: Please contact organization admin for help with removing users.",
		},
		{
			name:    "unaffiliated caller cannot remove anyone",
			caller:  models.RoleNone,
			target:  models.RoleUser,
			message: "Permission Denied: Please contact organization admin for help with removing users.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()

			caller := env.seedUser(t, "caller@example.com")
			target := env.seedUser(t, "target@example.com")
			org := env.seedOrg(t, "example-org", false)
			if tt.caller != models.RoleNone {
				env.affiliate(t, org, caller, tt.caller)
			}
			env.affiliate(t, org, target, tt.target)

			resp, err := env.svc.RemoveUserFromOrg(env.asUser(caller), target.Key, org.Key)
			require.NoError(t, err)

			if tt.allowed {
				require.Nil(t, resp.Error)
				require.NotNil(t, resp.Result)
				_, err = env.mem.AffiliationPermission(ctx, org.Key, target.Key)
				require.ErrorIs(t, err, store.ErrAffiliationNotFound)
				return
			}

			require.Nil(t, resp.Result)
			require.NotNil(t, resp.Error)
			require.Equal(t, http.StatusForbidden, resp.Error.Code)
			require.Equal(t, tt.message, resp.Error.Description)

			role, err := env.mem.AffiliationPermission(ctx, org.Key, target.Key)
			require.NoError(t, err)
			require.Equal(t, tt.target, role)
		})
	}
}

func TestRemoveUserFromOrgValidation(t *testing.T) {
	env := newTestEnv(t)

	admin := env.seedUser(t, "admin@example.com")
	outsider := env.seedUser(t, "outsider@example.com")
	org := env.seedOrg(t, "example-org", false)
	env.affiliate(t, org, admin, models.RoleAdmin)

	t.Run("unknown organization", func(t *testing.T) {
		resp, err := env.svc.RemoveUserFromOrg(env.asUser(admin), outsider.Key, uuid.New())
		require.NoError(t, err)
		require.NotNil(t, resp.Error)
		require.Equal(t, http.StatusBadRequest, resp.Error.Code)
		require.Equal(t, "Unable to remove user from unknown organization.", resp.Error.Description)
	})

	t.Run("unknown user", func(t *testing.T) {
		resp, err := env.svc.RemoveUserFromOrg(env.asUser(admin), uuid.New(), org.Key)
		require.NoError(t, err)
		require.NotNil(t, resp.Error)
		require.Equal(t, http.StatusBadRequest, resp.Error.Code)
		require.Equal(t, "Unable to remove unknown user from organization.", resp.Error.Description)
	})

	t.Run("target not affiliated", func(t *testing.T) {
		resp, err := env.svc.RemoveUserFromOrg(env.asUser(admin), outsider.Key, org.Key)
		require.NoError(t, err)
		require.NotNil(t, resp.Error)
		require.Equal(t, http.StatusBadRequest, resp.Error.Code)
		require.Equal(t, "Unable to remove a user that already does not belong to this organization.", resp.Error.Description)
	})
}

func TestRemoveUserFromOrgRequiresTFA(t *testing.T) {
	env := newTestEnv(t)

	caller := env.seedUser(t, "caller@example.com")
	caller.TFAValidated = false

	_, err := env.svc.RemoveUserFromOrg(env.asUser(caller), uuid.New(), uuid.New())
	var authErr *auth.Error
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, http.StatusForbidden, authErr.Code)
	require.Equal(t, "Please activate multi-factor authentication before using this service.", authErr.Description)
}

func TestRemoveUserFromOrgRollsBackOnFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.seedUser(t, "admin@example.com")
	target := env.seedUser(t, "member@example.com")
	org := env.seedOrg(t, "example-org", false)
	env.affiliate(t, org, admin, models.RoleAdmin)
	env.affiliate(t, org, target, models.RoleUser)

	env.mem.FailOnStep("delete_affiliation", errors.New("connection reset"))

	resp, err := env.svc.RemoveUserFromOrg(env.asUser(admin), target.Key, org.Key)
	require.Error(t, err)
	require.True(t, IsGenericError(err))
	require.Equal(t, "Unable to remove user from organization. Please try again.", err.Error())
	require.Nil(t, resp)

	role, err := env.mem.AffiliationPermission(ctx, org.Key, target.Key)
	require.NoError(t, err)
	require.Equal(t, models.RoleUser, role)
}
