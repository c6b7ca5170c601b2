package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staffhub-hr/staffhub/internal/shared"
)

// Repository persists roles, permissions, and user grants.
type Repository interface {
	ListRoles(ctx context.Context) ([]Role, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	ListUserGrants(ctx context.Context) ([]UserGrants, error)
	FindRoleByName(ctx context.Context, name string) (*Role, error)
	FindUsername(ctx context.Context, userID int64) (string, error)
	RolesForUser(ctx context.Context, userID int64) ([]string, error)
	PermissionsForUser(ctx context.Context, userID int64) ([]string, error)
	UserHasPermission(ctx context.Context, userID int64, permission string) (bool, error)
	AssignRole(ctx context.Context, userID, roleID int64) (bool, error)
	RemoveRole(ctx context.Context, userID, roleID int64) (bool, error)

	UpsertPermission(ctx context.Context, name, description string) error
	UpsertRole(ctx context.Context, name, description string) (int64, error)
	SetRolePermissions(ctx context.Context, roleID int64, permissions []string) error
}

// PGRepository is the PostgreSQL-backed Repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PGRepository)(nil)

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.name, r.description, r.created_at,
		       COALESCE(ARRAY_AGG(p.name ORDER BY p.name) FILTER (WHERE p.name IS NOT NULL), '{}')
		FROM roles r
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		GROUP BY r.id
		ORDER BY r.name`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.Permissions); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description FROM permissions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close()

	var permissions []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		permissions = append(permissions, p)
	}
	return permissions, rows.Err()
}

func (r *PGRepository) ListUserGrants(ctx context.Context) ([]UserGrants, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.username,
		       COALESCE(ARRAY_AGG(r.name ORDER BY r.name) FILTER (WHERE r.name IS NOT NULL), '{}')
		FROM users u
		LEFT JOIN user_roles ur ON ur.user_id = u.id
		LEFT JOIN roles r ON r.id = ur.role_id
		GROUP BY u.id
		ORDER BY u.username`)
	if err != nil {
		return nil, fmt.Errorf("list user grants: %w", err)
	}
	defer rows.Close()

	var grants []UserGrants
	for rows.Next() {
		var g UserGrants
		if err := rows.Scan(&g.UserID, &g.Username, &g.Roles); err != nil {
			return nil, fmt.Errorf("scan user grants: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (r *PGRepository) FindRoleByName(ctx context.Context, name string) (*Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, description, created_at FROM roles WHERE name = $1`, name).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("find role: %w", err)
	}
	return &role, nil
}

// FindUsername resolves a user id to its username, shared.ErrNotFound
// when no such user exists.
func (r *PGRepository) FindUsername(ctx context.Context, userID int64) (string, error) {
	var username string
	err := r.pool.QueryRow(ctx, `
		SELECT username FROM users WHERE id = $1`, userID).Scan(&username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", fmt.Errorf("find username: %w", err)
	}
	return username, nil
}

func (r *PGRepository) RolesForUser(ctx context.Context, userID int64) ([]string, error) {
	return r.listNames(ctx, `
		SELECT r.name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name`, userID)
}

func (r *PGRepository) PermissionsForUser(ctx context.Context, userID int64) ([]string, error) {
	return r.listNames(ctx, `
		SELECT DISTINCT p.name
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		JOIN user_roles ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = $1
		ORDER BY p.name`, userID)
}

func (r *PGRepository) listNames(ctx context.Context, query string, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list names: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0, 8)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *PGRepository) UserHasPermission(ctx context.Context, userID int64, permission string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM permissions p
			JOIN role_permissions rp ON rp.permission_id = p.id
			JOIN user_roles ur ON ur.role_id = rp.role_id
			WHERE ur.user_id = $1 AND p.name = $2
		)`, userID, permission).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check permission: %w", err)
	}
	return exists, nil
}

const foreignKeyViolation = "23503"

// AssignRole reports true when the grant was newly created. Re-granting
// an existing assignment is a no-op thanks to the conflict clause, and a
// user id with no matching row reports false rather than an error.
func (r *PGRepository) AssignRole(ctx context.Context, userID, roleID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, role_id) DO NOTHING`, userID, roleID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return false, nil
		}
		return false, fmt.Errorf("assign role: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RemoveRole reports true when an assignment was actually deleted.
func (r *PGRepository) RemoveRole(ctx context.Context, userID, roleID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return false, fmt.Errorf("remove role: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PGRepository) UpsertPermission(ctx context.Context, name, description string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO permissions (name, description)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description`,
		name, description)
	if err != nil {
		return fmt.Errorf("upsert permission: %w", err)
	}
	return nil
}

func (r *PGRepository) UpsertRole(ctx context.Context, name, description string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, description, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
		RETURNING id`, name, description).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert role: %w", err)
	}
	return id, nil
}

// SetRolePermissions replaces the role's permission set with exactly
// the given names. Used by the bootstrap seed.
func (r *PGRepository) SetRolePermissions(ctx context.Context, roleID int64, permissions []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("clear role permissions: %w", err)
	}
	for _, name := range permissions {
		_, err := tx.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission_id)
			SELECT $1, id FROM permissions WHERE name = $2
			ON CONFLICT DO NOTHING`, roleID, name)
		if err != nil {
			return fmt.Errorf("grant %s: %w", name, err)
		}
	}
	return tx.Commit(ctx)
}
