package store

import (
	"context"
	"errors"
	"time"

	"github.com/jewelbox/backoffice/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement this
// and expose sub-repositories so transactions cannot be nested by accident.
type Store interface {
	Principals() Principals

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Principals is the credential store. Every mutation touches a named subset
// of fields; there is no whole-record save.
type Principals interface {
	// GetPrincipalByID returns ErrNotFound when no principal has id.
	GetPrincipalByID(ctx context.Context, id string) (domain.Principal, error)

	// GetPrincipalByEmail matches case-insensitively.
	GetPrincipalByEmail(ctx context.Context, email string) (domain.Principal, error)

	// ListPrincipals returns every principal, oldest first.
	ListPrincipals(ctx context.Context) ([]domain.Principal, error)

	// CreatePrincipal inserts p. A duplicate email yields ErrAlreadyExists.
	CreatePrincipal(ctx context.Context, p domain.Principal) error

	// IsEmpty returns true if there are no principals.
	IsEmpty(ctx context.Context) (bool, error)

	// RecordFailedLogin increments login_attempts and, in the same statement,
	// sets lock_until to lockUntil once the new count reaches threshold.
	// It returns the updated principal.
	RecordFailedLogin(ctx context.Context, id string, threshold int, lockUntil time.Time) (domain.Principal, error)

	// ResetLockout zeroes login_attempts and clears lock_until.
	ResetLockout(ctx context.Context, id string) error

	// SetTwoFactorCode replaces the pending code and its expiry together.
	SetTwoFactorCode(ctx context.Context, id string, challenge domain.TwoFactorChallenge) error

	// ClearTwoFactorCode removes the pending code and its expiry together.
	ClearTwoFactorCode(ctx context.Context, id string) error

	// CompleteLogin consumes code: only if it is still the pending code does
	// it clear the code and expiry, reset the lockout fields and record
	// last_login = at. Otherwise it returns ErrNotFound and changes nothing.
	CompleteLogin(ctx context.Context, id, code string, at time.Time) error

	// SetActive flips is_active.
	SetActive(ctx context.Context, id string, active bool) error
}
