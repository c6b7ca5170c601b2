package rbac

import "time"

// Role is a named bundle of permissions.
type Role struct {
	ID          int64
	Name        string
	Description string
	Permissions []string
	CreatedAt   time.Time
}

// Permission is a single named capability, e.g. EMPLOYEE_READ.
type Permission struct {
	ID          int64
	Name        string
	Description string
}

// UserGrants pairs a user with their assigned role names.
type UserGrants struct {
	UserID   int64
	Username string
	Roles    []string
}
