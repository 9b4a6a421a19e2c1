package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/jewelbox/backoffice/internal/auth/domain"
	"github.com/jewelbox/backoffice/pkg/jwtx"
)

const (
	DefaultPendingTokenTTL = 10 * time.Minute
	DefaultSessionTokenTTL = 7 * 24 * time.Hour
)

// TokenIssuer mints and checks the two token kinds. Both share a signing
// secret and are told apart by the step claim.
type TokenIssuer struct {
	Signer     jwtx.Signer
	Verifier   jwtx.Verifier
	Issuer     string
	PendingTTL time.Duration
	SessionTTL time.Duration
	Now        func() time.Time
}

// NewTokenIssuer builds an HS256 issuer. An empty or short secret is a
// configuration error.
func NewTokenIssuer(secret []byte, issuer string, pendingTTL, sessionTTL time.Duration) (*TokenIssuer, error) {
	signer, err := jwtx.NewSignerHS256(secret)
	if err != nil {
		return nil, err
	}
	if pendingTTL <= 0 {
		pendingTTL = DefaultPendingTokenTTL
	}
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTokenTTL
	}
	return &TokenIssuer{
		Signer:     signer,
		Verifier:   jwtx.NewVerifierHS256(secret, issuer, 5*time.Second),
		Issuer:     issuer,
		PendingTTL: pendingTTL,
		SessionTTL: sessionTTL,
		Now:        time.Now,
	}, nil
}

func (t *TokenIssuer) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// IssuePending mints the short-lived token handed out after the password step.
func (t *TokenIssuer) IssuePending(principalID string) (domain.PendingToken, error) {
	raw, err := t.sign(principalID, jwtx.StepSecondFactorPending, t.PendingTTL)
	return domain.PendingToken(raw), err
}

// IssueSession mints a full session token.
func (t *TokenIssuer) IssueSession(principalID string) (domain.SessionToken, error) {
	raw, err := t.sign(principalID, "", t.SessionTTL)
	return domain.SessionToken(raw), err
}

func (t *TokenIssuer) sign(subject, step string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is required")
	}
	raw, err := t.Signer.Sign(jwtx.NewClaims(subject, t.Issuer, step, ttl, t.now()))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return raw, nil
}

// ParsePending checks a pending token. A token that verifies but lacks the
// pending step, such as a session token, is ErrInvalidToken.
func (t *TokenIssuer) ParsePending(raw domain.PendingToken) (domain.PendingClaims, error) {
	claims, err := t.Verifier.Verify(string(raw))
	if err != nil {
		return domain.PendingClaims{}, fmt.Errorf("%w: %v", ErrTokenInvalidOrExpired, err)
	}
	if !claims.IsPending() || claims.Subject == "" {
		return domain.PendingClaims{}, ErrInvalidToken
	}
	return domain.PendingClaims{
		PrincipalID: claims.Subject,
		TokenID:     claims.ID,
		ExpiresAt:   claims.Expiry().Unix(),
	}, nil
}

// ParseSession checks a bearer token presented to a protected endpoint.
func (t *TokenIssuer) ParseSession(raw domain.SessionToken) (domain.SessionClaims, error) {
	claims, err := t.Verifier.Verify(string(raw))
	if err != nil {
		return domain.SessionClaims{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.IsPending() {
		return domain.SessionClaims{}, ErrPendingSecondFactor
	}
	if claims.Step != "" || claims.Subject == "" {
		return domain.SessionClaims{}, fmt.Errorf("%w: not a session token", ErrUnauthorized)
	}
	return domain.SessionClaims{
		PrincipalID: claims.Subject,
		TokenID:     claims.ID,
		ExpiresAt:   claims.Expiry().Unix(),
	}, nil
}
