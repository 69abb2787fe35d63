package model

import "time"

// Session is a row of the `sessions` table.  New sessions carry the same
// value in ID and Token; rows written before that convention may differ,
// which is why lookups accept either.
type Session struct {
	ID        string    `json:"-"`         // sessions.id
	Token     string    `json:"-"`         // sessions.token
	UserID    string    `json:"userId"`    // sessions.user_id
	ExpiresAt time.Time `json:"expiresAt"` // sessions.expires_at
	IPAddress string    `json:"-"`         // sessions.ip_address
	UserAgent string    `json:"-"`         // sessions.user_agent
	CreatedAt time.Time `json:"createdAt"` // sessions.created_at
	UpdatedAt time.Time `json:"-"`         // sessions.updated_at
}

// Valid reports whether the session is still usable at now.
func (s Session) Valid(now time.Time) bool { return now.Before(s.ExpiresAt) }
