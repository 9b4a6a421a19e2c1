package domain

import "time"

// Principal is a back-office account that can authenticate.
type Principal struct {
	ID           string
	Name         string
	Email        string // stored lower-cased
	PasswordHash string // argon2id PHC string; never leaves the service layer
	Role         Role
	IsActive     bool

	LoginAttempts int
	LockUntil     *time.Time

	// TwoFactor is nil unless a code has been issued and not yet consumed.
	TwoFactor *TwoFactorChallenge

	LastLogin *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TwoFactorChallenge is the emailed one-time code and when it stops being
// accepted. Code and expiry only ever exist together.
type TwoFactorChallenge struct {
	Code      string
	ExpiresAt time.Time
}

// LockedAt reports whether the lock is in effect at now. An expired lock is
// not locked but stays recorded until cleared.
func (p Principal) LockedAt(now time.Time) bool {
	return p.LockUntil != nil && p.LockUntil.After(now)
}

// View strips credentials and second-factor state.
func (p Principal) View() PrincipalView {
	return PrincipalView{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		Role:      p.Role,
		IsActive:  p.IsActive,
		LastLogin: p.LastLogin,
	}
}

// PrincipalView is the sanitized principal returned to clients and attached
// to authenticated requests.
type PrincipalView struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      Role       `json:"role" swaggertype:"string" enums:"superadmin,admin,manager,staff"`
	IsActive  bool       `json:"isActive"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}
