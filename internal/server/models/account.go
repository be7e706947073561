// Package models holds the records the authentication service reads and
// writes through the repositories.
package models

import "time"

// Role is the privilege level of an account.
type Role string

const (
	RoleStandard      Role = "standard"
	RoleAdministrator Role = "administrator"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleStandard || r == RoleAdministrator
}

// PasswordHash is the stored form of a credential. Scheme selects the
// verifier; Params carries the scheme's cost settings in a scheme-specific
// "k=v,k=v" form; Salt may be empty for schemes that embed it in Digest.
type PasswordHash struct {
	Scheme string
	Params string
	Salt   []byte
	Digest []byte
}

// Account is a registered credential identity.
type Account struct {
	ID             string
	DisplayName    string
	Email          string
	Password       PasswordHash
	Role           Role
	Active         bool
	FailedAttempts int
	LockedUntil    *time.Time
	LastLoginAt    *time.Time
	CreatedAt      time.Time
}

// Public returns the fields that may leave the service.
func (a *Account) Public() PublicAccount {
	return PublicAccount{
		ID:          a.ID,
		DisplayName: a.DisplayName,
		Email:       a.Email,
		Role:        a.Role,
		LastLoginAt: a.LastLoginAt,
	}
}

// PublicAccount is an Account without credentials or lockout state.
type PublicAccount struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"displayName"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// LockoutState is the write-side of the lockout counters.
//
// LastLoginAt nil keeps the stored value. When ExpectedFailedAttempts is set
// the update only applies if the stored counter still equals it; otherwise
// the repository reports common.ErrVersionConflict.
type LockoutState struct {
	FailedAttempts         int
	LockedUntil            *time.Time
	LastLoginAt            *time.Time
	ExpectedFailedAttempts *int
}
