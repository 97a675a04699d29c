package models

import "time"

// ResetToken authorizes a single password change without the current
// password. Only the SHA-256 hash of the token value is ever stored; the
// plaintext goes out by email and is never persisted.
type ResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Redeemable reports whether the token can still authorize a password
// change: not yet used and not expired.
func (t *ResetToken) Redeemable() bool {
	return t.UsedAt == nil && time.Now().Before(t.ExpiresAt)
}
