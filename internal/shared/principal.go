package shared

// Principal describes the authenticated actor attached to a request.
// Implementations differ only in where the capability set came from.
type Principal interface {
	UserID() int64
	Username() string
	Roles() []string
	Permissions() []string
	HasPermission(name string) bool
	Impersonated() bool
}

// TokenPrincipal carries the role and permission snapshot embedded in a
// verified token. The snapshot reflects directory state at issuance time,
// not at request time.
type TokenPrincipal struct {
	ID             int64
	Name           string
	RoleNames      []string
	PermissionSet  []string
	IsImpersonated bool
	ImpersonatorID int64
}

func (p TokenPrincipal) UserID() int64         { return p.ID }
func (p TokenPrincipal) Username() string      { return p.Name }
func (p TokenPrincipal) Roles() []string       { return p.RoleNames }
func (p TokenPrincipal) Permissions() []string { return p.PermissionSet }
func (p TokenPrincipal) Impersonated() bool    { return p.IsImpersonated }

// HasPermission reports exact membership in the embedded permission set.
func (p TokenPrincipal) HasPermission(name string) bool {
	return containsName(p.PermissionSet, name)
}

// DirectoryPrincipal is built from live directory state. It backs the
// legacy-token fallback path, where the token names a subject but carries
// no role or permission claims.
type DirectoryPrincipal struct {
	ID            int64
	Name          string
	RoleNames     []string
	PermissionSet []string
}

func (p DirectoryPrincipal) UserID() int64         { return p.ID }
func (p DirectoryPrincipal) Username() string      { return p.Name }
func (p DirectoryPrincipal) Roles() []string       { return p.RoleNames }
func (p DirectoryPrincipal) Permissions() []string { return p.PermissionSet }
func (p DirectoryPrincipal) Impersonated() bool    { return false }

// HasPermission reports exact membership in the loaded permission set.
func (p DirectoryPrincipal) HasPermission(name string) bool {
	return containsName(p.PermissionSet, name)
}

func containsName(set []string, name string) bool {
	for _, v := range set {
		if v == name {
			return true
		}
	}
	return false
}
