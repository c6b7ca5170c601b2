// Package bootstrap seeds the permission catalog, the built-in roles,
// and the initial administrator account. Every step is idempotent so
// the seed can run on every startup.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/staffhub-hr/staffhub/internal/auth"
	"github.com/staffhub-hr/staffhub/internal/rbac"
	"github.com/staffhub-hr/staffhub/internal/shared"
)

type permissionSpec struct {
	name        string
	description string
}

var permissionCatalog = []permissionSpec{
	{shared.PermEmployeeRead, "View employee records"},
	{shared.PermEmployeeCreate, "Create employee records"},
	{shared.PermEmployeeUpdate, "Update employee records"},
	{shared.PermEmployeeDelete, "Delete employee records"},
	{shared.PermDepartmentRead, "View departments"},
	{shared.PermDepartmentCreate, "Create departments"},
	{shared.PermDepartmentUpdate, "Update departments"},
	{shared.PermDepartmentDelete, "Delete departments"},
	{shared.PermUserRead, "View user accounts"},
	{shared.PermUserRoleAssign, "Assign and remove user roles"},
	{shared.PermAuditRead, "Query audit logs"},
	{shared.PermImpersonateUser, "Impersonate another user"},
}

type roleSpec struct {
	name        string
	description string
	permissions []string
}

var roleCatalog = []roleSpec{
	{shared.RoleAdmin, "Full access to every operation", shared.AllPermissions()},
	{shared.RoleHR, "Manages employees, departments, and audit review", []string{
		shared.PermEmployeeRead, shared.PermEmployeeCreate,
		shared.PermEmployeeUpdate, shared.PermEmployeeDelete,
		shared.PermDepartmentRead, shared.PermDepartmentCreate,
		shared.PermDepartmentUpdate, shared.PermDepartmentDelete,
		shared.PermAuditRead,
	}},
	{shared.RoleManager, "Reads and updates employees in their departments", []string{
		shared.PermEmployeeRead, shared.PermEmployeeUpdate, shared.PermDepartmentRead,
	}},
	{shared.RoleEmployee, "Reads employee records", []string{
		shared.PermEmployeeRead,
	}},
}

// Seed brings the RBAC catalog and the admin account up to date.
func Seed(ctx context.Context, users auth.Repository, grants rbac.Repository, adminUsername, adminPassword string, logger *slog.Logger) error {
	for _, p := range permissionCatalog {
		if err := grants.UpsertPermission(ctx, p.name, p.description); err != nil {
			return fmt.Errorf("seed permission %s: %w", p.name, err)
		}
	}
	for _, r := range roleCatalog {
		roleID, err := grants.UpsertRole(ctx, r.name, r.description)
		if err != nil {
			return fmt.Errorf("seed role %s: %w", r.name, err)
		}
		if err := grants.SetRolePermissions(ctx, roleID, r.permissions); err != nil {
			return fmt.Errorf("seed role %s permissions: %w", r.name, err)
		}
	}
	return seedAdmin(ctx, users, grants, adminUsername, adminPassword, logger)
}

// seedAdmin creates the administrator only when the account is absent.
// An existing account keeps its password; the seed never resets one.
func seedAdmin(ctx context.Context, users auth.Repository, grants rbac.Repository, username, password string, logger *slog.Logger) error {
	user, err := users.FindByUsername(ctx, username)
	switch {
	case err == nil:
		return ensureAdminRole(ctx, grants, user.ID)
	case shared.IsNotFound(err):
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		user, err = users.Create(ctx, username, string(hash))
		if err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		logger.Info("seeded administrator account", slog.String("username", username))
		return ensureAdminRole(ctx, grants, user.ID)
	default:
		return fmt.Errorf("look up admin: %w", err)
	}
}

func ensureAdminRole(ctx context.Context, grants rbac.Repository, userID int64) error {
	role, err := grants.FindRoleByName(ctx, shared.RoleAdmin)
	if err != nil {
		return fmt.Errorf("find admin role: %w", err)
	}
	if _, err := grants.AssignRole(ctx, userID, role.ID); err != nil {
		return fmt.Errorf("grant admin role: %w", err)
	}
	return nil
}
