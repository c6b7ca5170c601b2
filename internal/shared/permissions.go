package shared

// Permission catalog. Names are matched exactly by the authorization
// enforcer; there is no wildcard or prefix semantics.
const (
	PermEmployeeRead   = "EMPLOYEE_READ"
	PermEmployeeCreate = "EMPLOYEE_CREATE"
	PermEmployeeUpdate = "EMPLOYEE_UPDATE"
	PermEmployeeDelete = "EMPLOYEE_DELETE"

	PermDepartmentRead   = "DEPARTMENT_READ"
	PermDepartmentCreate = "DEPARTMENT_CREATE"
	PermDepartmentUpdate = "DEPARTMENT_UPDATE"
	PermDepartmentDelete = "DEPARTMENT_DELETE"

	PermUserRead       = "USER_READ"
	PermUserRoleAssign = "USER_ROLE_ASSIGN"

	PermAuditRead = "AUDIT_READ"

	PermImpersonateUser = "IMPERSONATE_USER"
)

// Built-in role names created at bootstrap.
const (
	RoleAdmin    = "ADMIN"
	RoleHR       = "HR"
	RoleManager  = "MANAGER"
	RoleEmployee = "EMPLOYEE"
)

// AllPermissions lists every permission in the catalog.
func AllPermissions() []string {
	return []string{
		PermEmployeeRead,
		PermEmployeeCreate,
		PermEmployeeUpdate,
		PermEmployeeDelete,
		PermDepartmentRead,
		PermDepartmentCreate,
		PermDepartmentUpdate,
		PermDepartmentDelete,
		PermUserRead,
		PermUserRoleAssign,
		PermAuditRead,
		PermImpersonateUser,
	}
}
