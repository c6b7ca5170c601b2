package rbac

import (
	"context"
	"log/slog"
	"testing"

	"github.com/staffhub-hr/staffhub/internal/audit"
	"github.com/staffhub-hr/staffhub/internal/shared"
)

type grantKey struct {
	userID int64
	roleID int64
}

type stubRepo struct {
	rolesByName map[string]*Role
	users       map[int64]string
	assignments map[grantKey]bool
}

func newStubRepo(roles ...string) *stubRepo {
	s := &stubRepo{
		rolesByName: map[string]*Role{},
		users:       map[int64]string{1: "admin", 7: "gwen"},
		assignments: map[grantKey]bool{},
	}
	for i, name := range roles {
		s.rolesByName[name] = &Role{ID: int64(i + 1), Name: name}
	}
	return s
}

func (s *stubRepo) ListRoles(ctx context.Context) ([]Role, error) {
	var out []Role
	for _, r := range s.rolesByName {
		out = append(out, *r)
	}
	return out, nil
}

func (s *stubRepo) ListPermissions(ctx context.Context) ([]Permission, error) { return nil, nil }

func (s *stubRepo) ListUserGrants(ctx context.Context) ([]UserGrants, error) { return nil, nil }

func (s *stubRepo) FindRoleByName(ctx context.Context, name string) (*Role, error) {
	if role, ok := s.rolesByName[name]; ok {
		return role, nil
	}
	return nil, shared.ErrNotFound
}

func (s *stubRepo) FindUsername(ctx context.Context, userID int64) (string, error) {
	if username, ok := s.users[userID]; ok {
		return username, nil
	}
	return "", shared.ErrNotFound
}

func (s *stubRepo) RolesForUser(ctx context.Context, userID int64) ([]string, error) {
	var out []string
	for key := range s.assignments {
		if key.userID == userID {
			for _, role := range s.rolesByName {
				if role.ID == key.roleID {
					out = append(out, role.Name)
				}
			}
		}
	}
	return out, nil
}

func (s *stubRepo) PermissionsForUser(ctx context.Context, userID int64) ([]string, error) {
	return nil, nil
}

func (s *stubRepo) UserHasPermission(ctx context.Context, userID int64, permission string) (bool, error) {
	return false, nil
}

func (s *stubRepo) AssignRole(ctx context.Context, userID, roleID int64) (bool, error) {
	key := grantKey{userID, roleID}
	if s.assignments[key] {
		return false, nil
	}
	s.assignments[key] = true
	return true, nil
}

func (s *stubRepo) RemoveRole(ctx context.Context, userID, roleID int64) (bool, error) {
	key := grantKey{userID, roleID}
	if !s.assignments[key] {
		return false, nil
	}
	delete(s.assignments, key)
	return true, nil
}

func (s *stubRepo) UpsertPermission(ctx context.Context, name, description string) error { return nil }

func (s *stubRepo) UpsertRole(ctx context.Context, name, description string) (int64, error) {
	return 0, nil
}

func (s *stubRepo) SetRolePermissions(ctx context.Context, roleID int64, permissions []string) error {
	return nil
}

type recordingAuditRepo struct {
	inserted []audit.Log
}

func (r *recordingAuditRepo) Insert(ctx context.Context, log audit.Log) error {
	r.inserted = append(r.inserted, log)
	return nil
}

func (r *recordingAuditRepo) Query(ctx context.Context, filters audit.Filters) ([]audit.Log, int, error) {
	return r.inserted, len(r.inserted), nil
}

func newTestRBAC(roles ...string) (*Service, *stubRepo, *recordingAuditRepo) {
	repo := newStubRepo(roles...)
	auditRepo := &recordingAuditRepo{}
	logger := slog.New(slog.DiscardHandler)
	return NewService(repo, audit.NewService(auditRepo, logger), logger), repo, auditRepo
}

var testActor = shared.TokenPrincipal{ID: 1, Name: "admin", PermissionSet: []string{shared.PermUserRoleAssign}}

func TestAssignRoleQuietRepeat(t *testing.T) {
	svc, _, auditRepo := newTestRBAC("MANAGER")
	ctx := context.Background()

	changed, err := svc.AssignRole(ctx, testActor, 7, "MANAGER", shared.RequestMeta{IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !changed {
		t.Fatalf("first assignment must report a change")
	}
	changed, err = svc.AssignRole(ctx, testActor, 7, "MANAGER", shared.RequestMeta{})
	if err != nil {
		t.Fatalf("repeat assign: %v", err)
	}
	if changed {
		t.Fatalf("repeat assignment must be quiet")
	}
	if len(auditRepo.inserted) != 1 {
		t.Fatalf("expected exactly one audit entry, got %d", len(auditRepo.inserted))
	}
	entry := auditRepo.inserted[0]
	if entry.Action != audit.ActionAssignRole {
		t.Fatalf("unexpected action %s", entry.Action)
	}
	if entry.ActorID == nil || *entry.ActorID != 1 {
		t.Fatalf("audit entry must carry the acting administrator")
	}
	if entry.Details["role"] != "MANAGER" {
		t.Fatalf("audit entry must name the role, got %v", entry.Details)
	}
	if entry.Details["username"] != "gwen" {
		t.Fatalf("audit entry must name the target user, got %v", entry.Details)
	}
}

func TestRemoveRoleQuietMiss(t *testing.T) {
	svc, _, auditRepo := newTestRBAC("MANAGER")
	ctx := context.Background()

	changed, err := svc.RemoveRole(ctx, testActor, 7, "MANAGER", shared.RequestMeta{})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if changed {
		t.Fatalf("removing an absent grant must be quiet")
	}
	if len(auditRepo.inserted) != 0 {
		t.Fatalf("no-op removal must not be audited")
	}

	if _, err := svc.AssignRole(ctx, testActor, 7, "MANAGER", shared.RequestMeta{}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	changed, err = svc.RemoveRole(ctx, testActor, 7, "MANAGER", shared.RequestMeta{})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !changed {
		t.Fatalf("real removal must report a change")
	}
	if len(auditRepo.inserted) != 2 {
		t.Fatalf("expected assign and remove audit entries, got %d", len(auditRepo.inserted))
	}
	if auditRepo.inserted[1].Action != audit.ActionRemoveRole {
		t.Fatalf("unexpected action %s", auditRepo.inserted[1].Action)
	}
}

func TestAssignUnknownRoleQuiet(t *testing.T) {
	svc, _, auditRepo := newTestRBAC("MANAGER")

	changed, err := svc.AssignRole(context.Background(), testActor, 7, "WIZARD", shared.RequestMeta{})
	if err != nil {
		t.Fatalf("unknown role must not be an error, got %v", err)
	}
	if changed {
		t.Fatalf("unknown role must report false")
	}
	if len(auditRepo.inserted) != 0 {
		t.Fatalf("no-op assignment must not be audited")
	}
}

func TestAssignUnknownUserQuiet(t *testing.T) {
	svc, repo, auditRepo := newTestRBAC("MANAGER")
	ctx := context.Background()

	changed, err := svc.AssignRole(ctx, testActor, 9999, "MANAGER", shared.RequestMeta{})
	if err != nil {
		t.Fatalf("unknown user must not be an error, got %v", err)
	}
	if changed {
		t.Fatalf("unknown user must report false")
	}
	if len(repo.assignments) != 0 {
		t.Fatalf("unknown user must not gain a grant")
	}
	changed, err = svc.RemoveRole(ctx, testActor, 9999, "MANAGER", shared.RequestMeta{})
	if err != nil || changed {
		t.Fatalf("removal for unknown user must be a quiet false, got %v %v", changed, err)
	}
	if len(auditRepo.inserted) != 0 {
		t.Fatalf("no-op mutations must not be audited")
	}
}

func TestUserHasRole(t *testing.T) {
	svc, _, _ := newTestRBAC("MANAGER", "HR")
	ctx := context.Background()

	if _, err := svc.AssignRole(ctx, testActor, 7, "HR", shared.RequestMeta{}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	has, err := svc.UserHasRole(ctx, 7, "HR")
	if err != nil || !has {
		t.Fatalf("expected HR membership, got %v %v", has, err)
	}
	has, err = svc.UserHasRole(ctx, 7, "MANAGER")
	if err != nil || has {
		t.Fatalf("expected no MANAGER membership, got %v %v", has, err)
	}
}
