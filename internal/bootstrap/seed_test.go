package bootstrap

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/staffhub-hr/staffhub/internal/auth"
	"github.com/staffhub-hr/staffhub/internal/rbac"
	"github.com/staffhub-hr/staffhub/internal/shared"
)

type stubUsers struct {
	users   map[string]*auth.User
	created int
	nextID  int64
}

func newStubUsers() *stubUsers {
	return &stubUsers{users: map[string]*auth.User{}, nextID: 1}
}

func (s *stubUsers) Create(ctx context.Context, username, passwordHash string) (*auth.User, error) {
	user := &auth.User{ID: s.nextID, Username: username, PasswordHash: passwordHash, CreatedAt: time.Now()}
	s.nextID++
	s.created++
	s.users[username] = user
	return user, nil
}

func (s *stubUsers) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	if user, ok := s.users[username]; ok {
		return user, nil
	}
	return nil, shared.ErrNotFound
}

func (s *stubUsers) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubUsers) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return nil
}

type stubGrantsRepo struct {
	permissions map[string]string
	roles       map[string]int64
	rolePerms   map[int64][]string
	assignments map[[2]int64]bool
	nextRoleID  int64
}

func newStubGrantsRepo() *stubGrantsRepo {
	return &stubGrantsRepo{
		permissions: map[string]string{},
		roles:       map[string]int64{},
		rolePerms:   map[int64][]string{},
		assignments: map[[2]int64]bool{},
		nextRoleID:  1,
	}
}

func (s *stubGrantsRepo) ListRoles(ctx context.Context) ([]rbac.Role, error) { return nil, nil }

func (s *stubGrantsRepo) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	return nil, nil
}

func (s *stubGrantsRepo) ListUserGrants(ctx context.Context) ([]rbac.UserGrants, error) {
	return nil, nil
}

func (s *stubGrantsRepo) FindRoleByName(ctx context.Context, name string) (*rbac.Role, error) {
	if id, ok := s.roles[name]; ok {
		return &rbac.Role{ID: id, Name: name}, nil
	}
	return nil, shared.ErrNotFound
}

func (s *stubGrantsRepo) FindUsername(ctx context.Context, userID int64) (string, error) {
	return "", shared.ErrNotFound
}

func (s *stubGrantsRepo) RolesForUser(ctx context.Context, userID int64) ([]string, error) {
	return nil, nil
}

func (s *stubGrantsRepo) PermissionsForUser(ctx context.Context, userID int64) ([]string, error) {
	return nil, nil
}

func (s *stubGrantsRepo) UserHasPermission(ctx context.Context, userID int64, permission string) (bool, error) {
	return false, nil
}

func (s *stubGrantsRepo) AssignRole(ctx context.Context, userID, roleID int64) (bool, error) {
	key := [2]int64{userID, roleID}
	if s.assignments[key] {
		return false, nil
	}
	s.assignments[key] = true
	return true, nil
}

func (s *stubGrantsRepo) RemoveRole(ctx context.Context, userID, roleID int64) (bool, error) {
	return false, nil
}

func (s *stubGrantsRepo) UpsertPermission(ctx context.Context, name, description string) error {
	s.permissions[name] = description
	return nil
}

func (s *stubGrantsRepo) UpsertRole(ctx context.Context, name, description string) (int64, error) {
	if id, ok := s.roles[name]; ok {
		return id, nil
	}
	id := s.nextRoleID
	s.nextRoleID++
	s.roles[name] = id
	return id, nil
}

func (s *stubGrantsRepo) SetRolePermissions(ctx context.Context, roleID int64, permissions []string) error {
	s.rolePerms[roleID] = permissions
	return nil
}

func TestSeedCreatesCatalogAndAdmin(t *testing.T) {
	users := newStubUsers()
	grants := newStubGrantsRepo()
	logger := slog.New(slog.DiscardHandler)

	if err := Seed(context.Background(), users, grants, "admin", "admin123", logger); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(grants.permissions) != 12 {
		t.Fatalf("expected 12 permissions seeded, got %d", len(grants.permissions))
	}
	if len(grants.roles) != 4 {
		t.Fatalf("expected 4 roles seeded, got %d", len(grants.roles))
	}
	adminPerms := grants.rolePerms[grants.roles[shared.RoleAdmin]]
	if len(adminPerms) != 12 {
		t.Fatalf("admin role must hold every permission, got %d", len(adminPerms))
	}
	employeePerms := grants.rolePerms[grants.roles[shared.RoleEmployee]]
	if len(employeePerms) != 1 || employeePerms[0] != shared.PermEmployeeRead {
		t.Fatalf("unexpected employee permissions %v", employeePerms)
	}

	admin, err := users.FindByUsername(context.Background(), "admin")
	if err != nil {
		t.Fatalf("admin not created: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("admin123")); err != nil {
		t.Fatalf("admin password not hashed correctly: %v", err)
	}
	if !grants.assignments[[2]int64{admin.ID, grants.roles[shared.RoleAdmin]}] {
		t.Fatalf("admin role not assigned")
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	users := newStubUsers()
	grants := newStubGrantsRepo()
	logger := slog.New(slog.DiscardHandler)
	ctx := context.Background()

	if err := Seed(ctx, users, grants, "admin", "admin123", logger); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	firstHash := users.users["admin"].PasswordHash

	if err := Seed(ctx, users, grants, "admin", "different-password", logger); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if users.created != 1 {
		t.Fatalf("admin must be created once, got %d creates", users.created)
	}
	if users.users["admin"].PasswordHash != firstHash {
		t.Fatalf("reseeding must never reset an existing password")
	}
}
