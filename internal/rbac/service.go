package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/staffhub-hr/staffhub/internal/audit"
	"github.com/staffhub-hr/staffhub/internal/shared"
)

// Service orchestrates role administration. Grant mutations are quiet:
// an unknown user or role, a repeated assignment, and removal of a
// grant that is not there all report false instead of failing, so
// callers distinguish no-op from error by the boolean. Only real state
// changes are audited.
type Service struct {
	repo    Repository
	auditor *audit.Service
	logger  *slog.Logger
}

func NewService(repo Repository, auditor *audit.Service, logger *slog.Logger) *Service {
	return &Service{repo: repo, auditor: auditor, logger: logger}
}

// ListRoles returns all roles with their permission sets.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// ListPermissions returns the full permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// Overview loads users with their roles and the role catalog in one
// call, fanning the two queries out concurrently.
func (s *Service) Overview(ctx context.Context) ([]UserGrants, []Role, error) {
	var (
		users []UserGrants
		roles []Role
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.repo.ListUserGrants(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		roles, err = s.repo.ListRoles(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return users, roles, nil
}

// ListUserGrants returns every user with their assigned role names.
func (s *Service) ListUserGrants(ctx context.Context) ([]UserGrants, error) {
	return s.repo.ListUserGrants(ctx)
}

// AssignRole grants the named role to the user. It returns true only
// when the grant did not exist before; in that case exactly one audit
// entry is written. An unknown user or role is a quiet false.
func (s *Service) AssignRole(ctx context.Context, actor shared.Principal, userID int64, roleName string, meta shared.RequestMeta) (bool, error) {
	role, username, err := s.resolveGrant(ctx, userID, roleName)
	if err != nil || role == nil {
		return false, err
	}
	changed, err := s.repo.AssignRole(ctx, userID, role.ID)
	if err != nil {
		return false, err
	}
	if changed {
		s.auditGrant(ctx, actor, audit.ActionAssignRole, userID, username, roleName, meta)
	}
	return changed, nil
}

// RemoveRole revokes the named role from the user. It returns true only
// when an assignment was actually deleted; an unknown user or role, or
// a role the user does not hold, is a quiet false.
func (s *Service) RemoveRole(ctx context.Context, actor shared.Principal, userID int64, roleName string, meta shared.RequestMeta) (bool, error) {
	role, username, err := s.resolveGrant(ctx, userID, roleName)
	if err != nil || role == nil {
		return false, err
	}
	changed, err := s.repo.RemoveRole(ctx, userID, role.ID)
	if err != nil {
		return false, err
	}
	if changed {
		s.auditGrant(ctx, actor, audit.ActionRemoveRole, userID, username, roleName, meta)
	}
	return changed, nil
}

// resolveGrant loads the role and the target's username. A missing
// role or user comes back as (nil, "", nil) so mutations can report
// the quiet false.
func (s *Service) resolveGrant(ctx context.Context, userID int64, roleName string) (*Role, string, error) {
	role, err := s.repo.FindRoleByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, "", nil
		}
		return nil, "", err
	}
	username, err := s.repo.FindUsername(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, "", nil
		}
		return nil, "", err
	}
	return role, username, nil
}

func (s *Service) auditGrant(ctx context.Context, actor shared.Principal, action string, userID int64, username, roleName string, meta shared.RequestMeta) {
	var actorID *int64
	impersonated := false
	if actor != nil {
		id := actor.UserID()
		actorID = &id
		impersonated = actor.Impersonated()
	}
	s.auditor.TryLog(ctx, actorID, action, audit.ResourceUser,
		fmt.Sprintf("%d", userID), map[string]any{"role": roleName, "username": username}, meta, impersonated)
}

// GrantRole assigns a role by name without auditing. Used for the
// starter role during registration and by the bootstrap seed.
func (s *Service) GrantRole(ctx context.Context, userID int64, roleName string) error {
	role, err := s.repo.FindRoleByName(ctx, roleName)
	if err != nil {
		return err
	}
	_, err = s.repo.AssignRole(ctx, userID, role.ID)
	return err
}

// RolesForUser returns the user's role names from live directory state.
func (s *Service) RolesForUser(ctx context.Context, userID int64) ([]string, error) {
	return s.repo.RolesForUser(ctx, userID)
}

// EffectivePermissions returns the deduplicated union of the user's
// role permissions from live directory state.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	return s.repo.PermissionsForUser(ctx, userID)
}

// UserHasPermission checks a single permission against live state.
func (s *Service) UserHasPermission(ctx context.Context, userID int64, permission string) (bool, error) {
	return s.repo.UserHasPermission(ctx, userID, permission)
}

// UserHasRole checks role membership against live state.
func (s *Service) UserHasRole(ctx context.Context, userID int64, roleName string) (bool, error) {
	roles, err := s.repo.RolesForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r == roleName {
			return true, nil
		}
	}
	return false, nil
}
