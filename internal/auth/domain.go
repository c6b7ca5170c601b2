package auth

import "time"

// User is an authentication subject. Password material never leaves this
// package in plain form.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Credentials carries a login attempt.
type Credentials struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

// PasswordReset carries a self-service password change request.
type PasswordReset struct {
	Username    string `json:"username" validate:"required,min=3,max=64"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=128"`
}

// Session is the result of a successful authentication. Roles and
// permissions are the live database state at issuance time.
type Session struct {
	Token       string
	UserID      int64
	Username    string
	Roles       []string
	Permissions []string
}
