package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"

	"github.com/staffhub-hr/staffhub/internal/audit"
	"github.com/staffhub-hr/staffhub/internal/shared"
)

// Grants is the slice of role administration this package needs. The
// rbac service satisfies it.
type Grants interface {
	GrantRole(ctx context.Context, userID int64, roleName string) error
	RolesForUser(ctx context.Context, userID int64) ([]string, error)
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
	UserHasPermission(ctx context.Context, userID int64, permission string) (bool, error)
}

// Service implements registration, login, and impersonation.
type Service struct {
	repo    Repository
	tokens  *TokenService
	grants  Grants
	auditor *audit.Service
	lockout *Lockout
	logger  *slog.Logger
}

func NewService(repo Repository, tokens *TokenService, grants Grants, auditor *audit.Service, lockout *Lockout, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		tokens:  tokens,
		grants:  grants,
		auditor: auditor,
		lockout: lockout,
		logger:  logger,
	}
}

// NormalizeUsername trims whitespace and applies Unicode NFC so the
// same visual name cannot register twice under different encodings.
func NormalizeUsername(username string) string {
	return norm.NFC.String(strings.TrimSpace(username))
}

// Register creates a user with the default starter role. The password
// is stored as a bcrypt hash only.
func (s *Service) Register(ctx context.Context, creds Credentials, meta shared.RequestMeta) (*User, error) {
	username := NormalizeUsername(creds.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", shared.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.repo.Create(ctx, username, string(hash))
	if err != nil {
		return nil, err
	}
	if err := s.grants.GrantRole(ctx, user.ID, shared.RoleEmployee); err != nil {
		s.logger.Error("grant starter role", slog.Int64("user_id", user.ID), slog.Any("error", err))
	}
	s.auditor.TryLog(ctx, &user.ID, audit.ActionUserRegister, audit.ResourceUser,
		fmt.Sprintf("%d", user.ID), map[string]any{"username": user.Username}, meta, false)
	return user, nil
}

// Authenticate verifies credentials and issues a token carrying the
// user's live roles and permissions. Failed attempts are audited and
// counted toward the lockout threshold.
func (s *Service) Authenticate(ctx context.Context, creds Credentials, meta shared.RequestMeta) (*Session, error) {
	username := NormalizeUsername(creds.Username)
	if s.lockout.Locked(ctx, username) {
		s.auditor.TryLog(ctx, nil, audit.ActionUserLoginFailed, audit.ResourceAuth, username,
			map[string]any{"username": username, "reason": "locked"}, meta, false)
		return nil, shared.ErrInvalidCredentials
	}
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		s.lockout.RecordFailure(ctx, username)
		s.auditor.TryLog(ctx, nil, audit.ActionUserLoginFailed, audit.ResourceAuth, username,
			map[string]any{"username": username, "reason": "unknown user"}, meta, false)
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		s.lockout.RecordFailure(ctx, username)
		s.auditor.TryLog(ctx, &user.ID, audit.ActionUserLoginFailed, audit.ResourceAuth, username,
			map[string]any{"username": username, "reason": "bad password"}, meta, false)
		return nil, shared.ErrInvalidCredentials
	}
	s.lockout.Reset(ctx, username)

	session, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.auditor.TryLog(ctx, &user.ID, audit.ActionUserLogin, audit.ResourceAuth,
		fmt.Sprintf("%d", user.ID), map[string]any{"username": user.Username}, meta, false)
	return session, nil
}

func (s *Service) startSession(ctx context.Context, user *User) (*Session, error) {
	roles, err := s.grants.RolesForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	permissions, err := s.grants.EffectivePermissions(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}
	token, err := s.tokens.Issue(user.ID, user.Username, roles, permissions)
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:       token,
		UserID:      user.ID,
		Username:    user.Username,
		Roles:       roles,
		Permissions: permissions,
	}, nil
}

// VerifyUsername reports whether a username is already taken.
func (s *Service) VerifyUsername(ctx context.Context, username string) (bool, error) {
	_, err := s.repo.FindByUsername(ctx, NormalizeUsername(username))
	switch {
	case err == nil:
		return true, nil
	case shared.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// ResetPassword replaces the user's password hash. The flow is
// unauthenticated by design and is audited with the request origin.
func (s *Service) ResetPassword(ctx context.Context, req PasswordReset, meta shared.RequestMeta) error {
	username := NormalizeUsername(req.Username)
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return err
	}
	s.auditor.TryLog(ctx, &user.ID, audit.ActionPasswordReset, audit.ResourceUser,
		fmt.Sprintf("%d", user.ID), map[string]any{"username": user.Username}, meta, false)
	return nil
}

// Impersonate issues a short-lived session acting as the target user.
// The permission check runs against the actor's live database grants,
// not the actor's token snapshot.
func (s *Service) Impersonate(ctx context.Context, actor shared.Principal, targetID int64, meta shared.RequestMeta) (*Session, error) {
	ok, err := s.grants.UserHasPermission(ctx, actor.UserID(), shared.PermImpersonateUser)
	if err != nil {
		return nil, fmt.Errorf("check impersonation grant: %w", err)
	}
	if !ok {
		return nil, shared.ErrForbidden
	}
	target, err := s.repo.FindByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	roles, err := s.grants.RolesForUser(ctx, target.ID)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	permissions, err := s.grants.EffectivePermissions(ctx, target.ID)
	if err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}
	token, err := s.tokens.IssueImpersonation(target.ID, target.Username, roles, permissions, actor.UserID())
	if err != nil {
		return nil, err
	}
	actorID := actor.UserID()
	s.auditor.TryLog(ctx, &actorID, audit.ActionUserImpersonate, audit.ResourceUser,
		fmt.Sprintf("%d", target.ID),
		map[string]any{"impersonator": actor.Username(), "target": target.Username}, meta, true)
	return &Session{
		Token:       token,
		UserID:      target.ID,
		Username:    target.Username,
		Roles:       roles,
		Permissions: permissions,
	}, nil
}
