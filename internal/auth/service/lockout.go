package service

import (
	"context"
	"errors"
	"time"

	"github.com/jewelbox/backoffice/internal/auth/domain"
	"github.com/jewelbox/backoffice/internal/auth/store"
)

const (
	DefaultLockoutThreshold = 5
	DefaultLockoutDuration  = 2 * time.Hour
)

// LockoutPolicy locks an account for Duration once Threshold consecutive
// password failures have been recorded.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: DefaultLockoutThreshold, Duration: DefaultLockoutDuration}
}

func (p LockoutPolicy) withDefaults() LockoutPolicy {
	if p.Threshold <= 0 {
		p.Threshold = DefaultLockoutThreshold
	}
	if p.Duration <= 0 {
		p.Duration = DefaultLockoutDuration
	}
	return p
}

// IsLocked is true only while lockUntil is in the future. An expired lock
// is left in place; it is cleared by the next good password or an unlock.
func (p LockoutPolicy) IsLocked(pr domain.Principal, now time.Time) bool {
	return pr.LockedAt(now)
}

// RecordFailedAttempt bumps the failure counter and, when it reaches the
// threshold, sets the lock in the same update. A lock that has run out
// starts a fresh count, so the account gets Threshold attempts again.
func (p LockoutPolicy) RecordFailedAttempt(
	ctx context.Context,
	principals store.Principals,
	pr domain.Principal,
	now time.Time,
) (domain.Principal, error) {
	p = p.withDefaults()
	if pr.LockUntil != nil && !pr.LockedAt(now) {
		if err := principals.ResetLockout(ctx, pr.ID); err != nil {
			return domain.Principal{}, err
		}
	}
	return principals.RecordFailedLogin(ctx, pr.ID, p.Threshold, now.Add(p.Duration))
}

// RecordSuccessfulPasswordCheck clears any failure history, including a
// lock that has already expired.
func (p LockoutPolicy) RecordSuccessfulPasswordCheck(
	ctx context.Context,
	principals store.Principals,
	pr domain.Principal,
) error {
	if pr.LoginAttempts == 0 && pr.LockUntil == nil {
		return nil
	}
	return principals.ResetLockout(ctx, pr.ID)
}

// Unlock clears the counter and any lock unconditionally.
func (p LockoutPolicy) Unlock(ctx context.Context, principals store.Principals, id string) error {
	if err := principals.ResetLockout(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrPrincipalNotFound
		}
		return err
	}
	return nil
}
