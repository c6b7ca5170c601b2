package auth

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/staffhub-hr/staffhub/internal/audit"
	"github.com/staffhub-hr/staffhub/internal/shared"
)

type stubUserRepo struct {
	users  map[string]*User
	nextID int64
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: map[string]*User{}, nextID: 1}
}

func (s *stubUserRepo) Create(ctx context.Context, username, passwordHash string) (*User, error) {
	if _, ok := s.users[username]; ok {
		return nil, shared.ErrDuplicate
	}
	user := &User{ID: s.nextID, Username: username, PasswordHash: passwordHash, CreatedAt: time.Now()}
	s.nextID++
	s.users[username] = user
	return user, nil
}

func (s *stubUserRepo) FindByUsername(ctx context.Context, username string) (*User, error) {
	if user, ok := s.users[username]; ok {
		return user, nil
	}
	return nil, shared.ErrNotFound
}

func (s *stubUserRepo) FindByID(ctx context.Context, id int64) (*User, error) {
	for _, user := range s.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubUserRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	for _, user := range s.users {
		if user.ID == id {
			user.PasswordHash = passwordHash
			return nil
		}
	}
	return shared.ErrNotFound
}

type stubGrants struct {
	roles       map[int64][]string
	permissions map[int64][]string
	granted     []string
}

func newStubGrants() *stubGrants {
	return &stubGrants{roles: map[int64][]string{}, permissions: map[int64][]string{}}
}

func (s *stubGrants) GrantRole(ctx context.Context, userID int64, roleName string) error {
	s.roles[userID] = append(s.roles[userID], roleName)
	s.granted = append(s.granted, roleName)
	return nil
}

func (s *stubGrants) RolesForUser(ctx context.Context, userID int64) ([]string, error) {
	return s.roles[userID], nil
}

func (s *stubGrants) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	return s.permissions[userID], nil
}

func (s *stubGrants) UserHasPermission(ctx context.Context, userID int64, permission string) (bool, error) {
	for _, p := range s.permissions[userID] {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}

type stubAuditRepo struct {
	inserted []audit.Log
	fail     bool
}

func (s *stubAuditRepo) Insert(ctx context.Context, log audit.Log) error {
	if s.fail {
		return errors.New("boom")
	}
	s.inserted = append(s.inserted, log)
	return nil
}

func (s *stubAuditRepo) Query(ctx context.Context, filters audit.Filters) ([]audit.Log, int, error) {
	return s.inserted, len(s.inserted), nil
}

func (s *stubAuditRepo) byAction(action string) []audit.Log {
	var out []audit.Log
	for _, l := range s.inserted {
		if l.Action == action {
			out = append(out, l)
		}
	}
	return out
}

func newTestService(t *testing.T) (*Service, *stubUserRepo, *stubGrants, *stubAuditRepo) {
	t.Helper()
	repo := newStubUserRepo()
	grants := newStubGrants()
	auditRepo := &stubAuditRepo{}
	logger := slog.New(slog.DiscardHandler)
	auditor := audit.NewService(auditRepo, logger)
	tokens := NewTokenService("test-secret", 168*time.Hour, 2*time.Hour)
	svc := NewService(repo, tokens, grants, auditor, nil, logger)
	return svc, repo, grants, auditRepo
}

func TestRegisterGrantsStarterRole(t *testing.T) {
	svc, repo, grants, auditRepo := newTestService(t)
	meta := shared.RequestMeta{IP: "10.0.0.1"}

	user, err := svc.Register(context.Background(), Credentials{Username: "alice", Password: "secret123"}, meta)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.PasswordHash == "secret123" {
		t.Fatalf("password stored in plain text")
	}
	if _, ok := repo.users["alice"]; !ok {
		t.Fatalf("user not persisted")
	}
	if len(grants.granted) != 1 || grants.granted[0] != shared.RoleEmployee {
		t.Fatalf("expected starter role grant, got %v", grants.granted)
	}
	entries := auditRepo.byAction(audit.ActionUserRegister)
	if len(entries) != 1 {
		t.Fatalf("expected one register audit entry, got %d", len(entries))
	}
	if entries[0].IP != "10.0.0.1" {
		t.Fatalf("audit entry missing request IP")
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	creds := Credentials{Username: "alice", Password: "secret123"}

	if _, err := svc.Register(context.Background(), creds, shared.RequestMeta{}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(context.Background(), creds, shared.RequestMeta{}); !errors.Is(err, shared.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestAuthenticateSuccess(t *testing.T) {
	svc, _, grants, auditRepo := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, Credentials{Username: "alice", Password: "secret123"}, shared.RequestMeta{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	grants.permissions[user.ID] = []string{"EMPLOYEE_READ"}

	session, err := svc.Authenticate(ctx, Credentials{Username: "alice", Password: "secret123"}, shared.RequestMeta{IP: "10.0.0.2"})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if session.Token == "" {
		t.Fatalf("expected a token")
	}
	if len(session.Permissions) != 1 || session.Permissions[0] != "EMPLOYEE_READ" {
		t.Fatalf("expected live permissions in session, got %v", session.Permissions)
	}
	entries := auditRepo.byAction(audit.ActionUserLogin)
	if len(entries) != 1 {
		t.Fatalf("expected one login audit entry, got %d", len(entries))
	}
	if entries[0].ActorID == nil || *entries[0].ActorID != user.ID {
		t.Fatalf("login audit entry must carry the actor id")
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	svc, _, _, auditRepo := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Username: "alice", Password: "secret123"}, shared.RequestMeta{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := svc.Authenticate(ctx, Credentials{Username: "alice", Password: "wrong"}, shared.RequestMeta{})
	if !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if len(auditRepo.byAction(audit.ActionUserLoginFailed)) != 1 {
		t.Fatalf("expected a failed-login audit entry")
	}
	if len(auditRepo.byAction(audit.ActionUserLogin)) != 0 {
		t.Fatalf("no login entry may be written for a failed attempt")
	}
}

func TestAuthenticateUnknownUser(t *testing.T) {
	svc, _, _, auditRepo := newTestService(t)

	_, err := svc.Authenticate(context.Background(), Credentials{Username: "ghost", Password: "whatever"}, shared.RequestMeta{})
	if !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	entries := auditRepo.byAction(audit.ActionUserLoginFailed)
	if len(entries) != 1 {
		t.Fatalf("expected a failed-login audit entry")
	}
	if entries[0].ActorID != nil {
		t.Fatalf("unknown user must be audited without an actor id")
	}
}

func TestVerifyUsername(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Username: "alice", Password: "secret123"}, shared.RequestMeta{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	taken, err := svc.VerifyUsername(ctx, "alice")
	if err != nil || !taken {
		t.Fatalf("expected alice to be taken, got %v %v", taken, err)
	}
	taken, err = svc.VerifyUsername(ctx, "bob")
	if err != nil || taken {
		t.Fatalf("expected bob to be free, got %v %v", taken, err)
	}
}

func TestResetPassword(t *testing.T) {
	svc, repo, _, auditRepo := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, Credentials{Username: "alice", Password: "secret123"}, shared.RequestMeta{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	oldHash := user.PasswordHash

	if err := svc.ResetPassword(ctx, PasswordReset{Username: "alice", NewPassword: "brand-new"}, shared.RequestMeta{}); err != nil {
		t.Fatalf("reset password: %v", err)
	}
	updated := repo.users["alice"]
	if updated.PasswordHash == oldHash {
		t.Fatalf("password hash unchanged after reset")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("brand-new")); err != nil {
		t.Fatalf("new password does not verify: %v", err)
	}
	if len(auditRepo.byAction(audit.ActionPasswordReset)) != 1 {
		t.Fatalf("expected a password-reset audit entry")
	}
}

func TestImpersonateRequiresLiveGrant(t *testing.T) {
	svc, _, grants, auditRepo := newTestService(t)
	ctx := context.Background()

	admin, err := svc.Register(ctx, Credentials{Username: "admin", Password: "secret123"}, shared.RequestMeta{})
	if err != nil {
		t.Fatalf("register admin: %v", err)
	}
	target, err := svc.Register(ctx, Credentials{Username: "worker", Password: "secret123"}, shared.RequestMeta{})
	if err != nil {
		t.Fatalf("register target: %v", err)
	}

	// A token snapshot claiming the permission is not enough; the live
	// directory state decides.
	actor := shared.TokenPrincipal{ID: admin.ID, Name: "admin", PermissionSet: []string{shared.PermImpersonateUser}}
	if _, err := svc.Impersonate(ctx, actor, target.ID, shared.RequestMeta{}); !errors.Is(err, shared.ErrForbidden) {
		t.Fatalf("expected ErrForbidden without a live grant, got %v", err)
	}
	if len(auditRepo.byAction(audit.ActionUserImpersonate)) != 0 {
		t.Fatalf("rejected impersonation must not be audited as performed")
	}

	grants.permissions[admin.ID] = []string{shared.PermImpersonateUser}
	session, err := svc.Impersonate(ctx, actor, target.ID, shared.RequestMeta{})
	if err != nil {
		t.Fatalf("impersonate: %v", err)
	}
	if session.UserID != target.ID || session.Username != "worker" {
		t.Fatalf("session must describe the target, got %+v", session)
	}
	entries := auditRepo.byAction(audit.ActionUserImpersonate)
	if len(entries) != 1 {
		t.Fatalf("expected one impersonation audit entry, got %d", len(entries))
	}
	if entries[0].ActorID == nil || *entries[0].ActorID != admin.ID {
		t.Fatalf("impersonation must be attributed to the real actor")
	}
	if !entries[0].Impersonated {
		t.Fatalf("impersonation entry must carry the impersonation flag")
	}
}

func TestNormalizeUsername(t *testing.T) {
	if got := NormalizeUsername("  alice  "); got != "alice" {
		t.Fatalf("expected trimmed username, got %q", got)
	}
	// NFD é (e + combining acute) must collapse to the NFC form.
	composed := "rené"
	decomposed := "rené"
	if NormalizeUsername(decomposed) != composed {
		t.Fatalf("expected NFC normalization")
	}
}
