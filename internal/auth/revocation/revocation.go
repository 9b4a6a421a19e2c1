// Package revocation records logged-out session tokens until they expire.
package revocation

import (
	"context"
	"time"
)

// Denylist tracks revoked token ids. Entries only need to outlive the token
// they revoke.
type Denylist interface {
	// Revoke marks jti as revoked until expiresAt. Revoking an already
	// expired token is a no-op.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error

	// IsRevoked reports whether jti has been revoked and not yet expired.
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}

// Pruner is implemented by denylists that need periodic cleanup.
type Pruner interface {
	Prune(now time.Time) int
}
