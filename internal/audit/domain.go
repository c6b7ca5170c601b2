package audit

import "time"

// Action codes recorded by the authorization core.
const (
	ActionUserRegister    = "USER_REGISTER"
	ActionUserLogin       = "USER_LOGIN"
	ActionUserLoginFailed = "USER_LOGIN_FAILED"
	ActionPasswordReset   = "PASSWORD_RESET"
	ActionAssignRole      = "ASSIGN_ROLE"
	ActionRemoveRole      = "REMOVE_ROLE"
	ActionUserImpersonate = "USER_IMPERSONATE"
)

// Resource types referenced by audit records.
const (
	ResourceUser = "USER"
	ResourceAuth = "AUTH"
)

// Log is an immutable record of a security-relevant action. Records are
// only ever inserted; nothing in the application updates or deletes them.
type Log struct {
	ID           int64
	OccurredAt   time.Time
	ActorID      *int64
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]any
	IP           string
	UserAgent    string
	Impersonated bool
}

// Filters narrows an audit query. Zero values mean "no filter".
type Filters struct {
	ActorID      *int64
	Action       string
	ResourceType string
	From         time.Time
	To           time.Time
	Page         int
	PageSize     int
	SortAsc      bool
}
