package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// StepSecondFactorPending marks a token that proves the password was
// checked but the emailed code has not been verified yet.
const StepSecondFactorPending = "2fa_pending"

// Claims are the claims carried by every token the service issues. A token
// with an empty Step is a full session.
type Claims struct {
	jwt.RegisteredClaims

	// Step is set on intermediate tokens only.
	Step string `json:"step,omitempty"`
}

// NewClaims builds claims for subject valid for ttl from now.
func NewClaims(subject, issuer, step string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Step: step,
	}
}

// NewJTI returns a random identifier for the "jti" claim.
func NewJTI() string {
	return uuid.NewString()
}

// IsPending reports whether the token is an intermediate second-factor token.
func (c *Claims) IsPending() bool {
	return c.Step == StepSecondFactorPending
}

// Expiry returns the exp claim, or the zero time if absent.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
