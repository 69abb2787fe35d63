package model

import "time"

// Purpose distinguishes what a verification token unlocks.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email-verification"
	PurposePasswordReset     Purpose = "password-reset"
)

// Verification is a single-use secret bound to a user.  Identifier holds the
// email the token was sent to and is kept for display only; ownership is
// UserID.
type Verification struct {
	ID         string    // verifications.id
	UserID     string    // verifications.user_id
	Identifier string    // verifications.identifier
	Purpose    Purpose   // verifications.purpose
	Token      string    // verifications.token
	ExpiresAt  time.Time // verifications.expires_at
	CreatedAt  time.Time // verifications.created_at
}
