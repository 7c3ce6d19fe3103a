package types

import "time"

// Role is the permission class of a principal. It is stored explicitly on
// the record and carried in session tokens, so consumers never have to
// re-derive it from where the record came from.
type Role string

const (
	// RoleAdmin marks an administrator account.
	RoleAdmin Role = "admin"

	// RoleUser marks a regular user account.
	RoleUser Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Principal represents an authenticable identity, either an administrator
// or a regular user.
type Principal struct {
	// ID is the unique identifier of the principal.
	ID int `json:"id" db:"id"`

	// Login is the login name. It is unique per role: an administrator
	// and a user may share the same login without conflict.
	Login string `json:"login" db:"login"`

	// Role is the principal's permission class ("admin" or "user").
	Role Role `json:"role" db:"role"`

	// PasswordHash stores the bcrypt hash of the principal's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
