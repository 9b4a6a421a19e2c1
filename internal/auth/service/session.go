package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jewelbox/backoffice/internal/auth/domain"
	"github.com/jewelbox/backoffice/internal/auth/revocation"
	"github.com/jewelbox/backoffice/internal/auth/store"
	"github.com/jewelbox/backoffice/pkg/slogx"
)

// SessionService backs the Access Guard and logout.
type SessionService struct {
	Store    store.Store
	Tokens   *TokenIssuer
	Denylist revocation.Denylist
}

// Authenticate resolves a bearer token to the acting principal. Every
// rejection wraps ErrUnauthorized; ErrPendingSecondFactor marks a token that
// has not been through code verification.
func (s *SessionService) Authenticate(
	ctx context.Context,
	raw domain.SessionToken,
) (domain.PrincipalView, domain.SessionClaims, error) {
	claims, err := s.Tokens.ParseSession(raw)
	if err != nil {
		return domain.PrincipalView{}, domain.SessionClaims{}, err
	}

	if s.Denylist != nil && claims.TokenID != "" {
		revoked, err := s.Denylist.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			return domain.PrincipalView{}, domain.SessionClaims{}, fmt.Errorf("checking revocation: %w", err)
		}
		if revoked {
			return domain.PrincipalView{}, domain.SessionClaims{}, fmt.Errorf("%w: session has been logged out", ErrUnauthorized)
		}
	}

	p, err := s.Store.Principals().GetPrincipalByID(ctx, claims.PrincipalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.PrincipalView{}, domain.SessionClaims{}, fmt.Errorf("%w: principal no longer exists", ErrUnauthorized)
		}
		return domain.PrincipalView{}, domain.SessionClaims{}, fmt.Errorf("looking up principal: %w", err)
	}
	if !p.IsActive {
		return domain.PrincipalView{}, domain.SessionClaims{}, fmt.Errorf("%w: account is deactivated", ErrUnauthorized)
	}

	return p.View(), claims, nil
}

// Logout revokes the session until the token would have expired anyway.
func (s *SessionService) Logout(ctx context.Context, claims domain.SessionClaims) error {
	if s.Denylist == nil || claims.TokenID == "" {
		return nil
	}
	if err := s.Denylist.Revoke(ctx, claims.TokenID, time.Unix(claims.ExpiresAt, 0)); err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	slogx.FromContext(ctx).Info("session logged out", slog.String("principal_id", claims.PrincipalID))
	return nil
}
