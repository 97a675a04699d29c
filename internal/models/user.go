package models

import (
	"time"
)

// Roles recognized by the register. Every protected endpoint derives its
// authorization from one of these.
const (
	RoleAdmin       = "admin"
	RoleRiskOfficer = "risk_officer"
	RoleAuditor     = "auditor"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool {
	return r == RoleAdmin || r == RoleRiskOfficer || r == RoleAuditor
}

// User is the credential row backing authentication and ownership checks.
// MFA secrets are stored AES-256-GCM encrypted; the pending pair exists only
// between MFA setup start and the first verified code.
type User struct {
	ID                  string
	Email               string
	PasswordHash        string
	Name                string
	Role                string
	Active              bool
	MFAEnabled          bool
	MFASecretEnc        []byte
	MFASecretNonce      []byte
	MFAPendingEnc       []byte
	MFAPendingNonce     []byte
	FailedLoginAttempts int
	LockedUntil         *time.Time
	PasswordExpiresAt   *time.Time
	PasswordChangedAt   *time.Time
	LastLoginAt         *time.Time
	AvatarURL           *string
	CreatedBy           *string
	UpdatedBy           *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// PasswordExpired reports whether the stored password is past its expiry.
// A missing expiry means the password never expires.
func (u *User) PasswordExpired() bool {
	return u.PasswordExpiresAt != nil && u.PasswordExpiresAt.Before(time.Now())
}

// Locked reports whether the account is under an active lockout.
func (u *User) Locked() bool {
	return u.LockedUntil != nil && time.Now().Before(*u.LockedUntil)
}

// UserPatch is a typed partial update. Nil fields are left untouched; the
// repository translates set fields into parameterized SET clauses.
type UserPatch struct {
	Name      *string
	Role      *string
	Active    *bool
	AvatarURL *string
	UpdatedBy *string
}
