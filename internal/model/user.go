package model

import "time"

// Role is the closed set of capabilities a user can hold.  Handlers and
// guards never compare raw strings; they call the capability methods below
// so a new role cannot silently pass a check written for another.
type Role string

const (
	RoleClient     Role = "client"
	RoleSuperAdmin Role = "super_admin"
)

// ParseRole converts a stored role string.  Anything unrecognised maps to
// RoleClient, the least privileged role.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleSuperAdmin:
		return RoleSuperAdmin
	default:
		return RoleClient
	}
}

// IsSuperAdmin reports whether the role may manage every tenant.
func (r Role) IsSuperAdmin() bool { return r == RoleSuperAdmin }

func (r Role) String() string { return string(r) }

// User represents an account as stored in the `users` table.
//
// Fields:
//  ID                   – UUID primary key.
//  Email                – unique, lowercase-normalized address.
//  PasswordHash         – argon2id PHC string, a bcrypt hash, or a legacy hex digest.
//  PasswordNeedsUpgrade – true while PasswordHash is a legacy digest.
//  EmailVerified        – set once the verification link was followed.
//  Role                 – capability set of the account.
//  ClientID             – owned client, if any.
type User struct {
	ID                   string    `json:"id"`            // users.id
	Email                string    `json:"email"`         // users.email
	PasswordHash         *string   `json:"-"`             // users.password_hash (nullable)
	PasswordNeedsUpgrade bool      `json:"-"`             // users.password_needs_upgrade
	EmailVerified        bool      `json:"emailVerified"` // users.email_verified
	Role                 Role      `json:"role"`          // users.role
	ClientID             *string   `json:"clientId"`      // users.client_id (nullable)
	CreatedAt            time.Time `json:"createdAt"`     // users.created_at
	UpdatedAt            time.Time `json:"updatedAt"`     // users.updated_at
}

// HasClient reports whether the user owns a client profile.
func (u *User) HasClient() bool { return u != nil && u.ClientID != nil && *u.ClientID != "" }

// UserCreate carries the values needed to insert a user.
type UserCreate struct {
	Email         string
	PasswordHash  string
	EmailVerified bool
	Role          Role
	ClientID      *string
}
