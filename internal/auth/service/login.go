package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jewelbox/backoffice/internal/auth/domain"
	"github.com/jewelbox/backoffice/internal/auth/revocation"
	"github.com/jewelbox/backoffice/internal/auth/store"
	"github.com/jewelbox/backoffice/pkg/cryptox"
	"github.com/jewelbox/backoffice/pkg/mailx"
	"github.com/jewelbox/backoffice/pkg/slogx"
)

const (
	DefaultOTPTTL        = 10 * time.Minute
	DefaultNotifyTimeout = 15 * time.Second

	msgCodeSent   = "Verification code sent to your email"
	msgCodeResent = "A new verification code has been sent to your email"
)

var otpMessage = mailx.MustTemplate("otp",
	"Your login verification code",
	`Hello {{.Name}},

Your back office verification code is {{.Code}}.
It expires in {{.Minutes}} minutes.

If you did not try to sign in, contact an administrator.
`)

// LoginService runs the password then emailed-code sign-in flow. Whether a
// caller is waiting on a code is carried entirely by the pending token it
// holds; nothing about the flow is kept server-side except the code itself.
//
// When Denylist is set, a pending token is spent by a successful verify and
// cannot be used again for verify or resend.
type LoginService struct {
	Store    store.Store
	Tokens   *TokenIssuer
	Lockout  LockoutPolicy
	Notifier mailx.Sender
	Denylist revocation.Denylist

	OTPTTL        time.Duration
	NotifyTimeout time.Duration

	Now          func() time.Time
	GenerateCode func() (string, error)
}

func (s *LoginService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *LoginService) otpTTL() time.Duration {
	if s.OTPTTL > 0 {
		return s.OTPTTL
	}
	return DefaultOTPTTL
}

func (s *LoginService) generateCode() (string, error) {
	if s.GenerateCode != nil {
		return s.GenerateCode()
	}
	return cryptox.GenerateOTP()
}

// InitiateLogin checks the password and emails a fresh code. The lock is
// checked before the password, so a locked account is rejected even when
// the password is right.
func (s *LoginService) InitiateLogin(ctx context.Context, email, password string) (domain.LoginResult, error) {
	l := slogx.FromContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return domain.LoginResult{}, validationError("email and password are required")
	}

	principals := s.Store.Principals()
	p, err := principals.GetPrincipalByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			burnPasswordCheck(password)
			return domain.LoginResult{}, ErrInvalidCredentials
		}
		return domain.LoginResult{}, fmt.Errorf("looking up principal: %w", err)
	}

	if !p.IsActive {
		l.Warn("login attempt on deactivated account", slog.String("principal_id", p.ID))
		return domain.LoginResult{}, ErrAccountDeactivated
	}

	now := s.now()
	if s.Lockout.IsLocked(p, now) {
		l.Warn("login attempt on locked account", slog.String("principal_id", p.ID))
		return domain.LoginResult{}, ErrAccountLocked
	}

	if err := cryptox.VerifyPassword(password, p.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			return domain.LoginResult{}, fmt.Errorf("verifying password: %w", err)
		}

		updated, err := s.Lockout.RecordFailedAttempt(ctx, principals, p, now)
		if err != nil {
			return domain.LoginResult{}, fmt.Errorf("recording failed login: %w", err)
		}
		if updated.LockedAt(now) {
			l.Warn("account locked after repeated failures",
				slog.String("principal_id", p.ID),
				slog.Int("attempts", updated.LoginAttempts),
			)
		} else {
			l.Info("login failed", slog.String("principal_id", p.ID), slog.Int("attempts", updated.LoginAttempts))
		}
		return domain.LoginResult{}, ErrInvalidCredentials
	}

	if err := s.Lockout.RecordSuccessfulPasswordCheck(ctx, principals, p); err != nil {
		return domain.LoginResult{}, fmt.Errorf("resetting lockout: %w", err)
	}

	// Minted before the code is stored so a signing failure leaves no code behind.
	token, err := s.Tokens.IssuePending(p.ID)
	if err != nil {
		return domain.LoginResult{}, err
	}

	if err := s.issueCode(ctx, p, now); err != nil {
		if errors.Is(err, ErrNotificationDeliveryFailed) {
			// Leave no code behind that the caller never received.
			if clearErr := principals.ClearTwoFactorCode(context.WithoutCancel(ctx), p.ID); clearErr != nil {
				l.Error("failed to roll back verification code",
					slog.String("principal_id", p.ID),
					slog.Any("err", clearErr),
				)
			}
		}
		return domain.LoginResult{}, err
	}

	l.Info("verification code sent", slog.String("principal_id", p.ID))
	return domain.LoginResult{TempToken: token, Message: msgCodeSent}, nil
}

// VerifySecondFactor exchanges a pending token and the emailed code for a
// session token.
func (s *LoginService) VerifySecondFactor(
	ctx context.Context,
	tempToken domain.PendingToken,
	code string,
) (domain.SessionResult, error) {
	l := slogx.FromContext(ctx)

	if tempToken == "" || code == "" {
		return domain.SessionResult{}, validationError("tempToken and code are required")
	}

	pending, err := s.parsePending(ctx, tempToken)
	if err != nil {
		return domain.SessionResult{}, err
	}

	principals := s.Store.Principals()
	p, err := principals.GetPrincipalByID(ctx, pending.PrincipalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.SessionResult{}, ErrPrincipalNotFound
		}
		return domain.SessionResult{}, fmt.Errorf("looking up principal: %w", err)
	}

	if p.TwoFactor == nil || !cryptox.ConstantTimeEqual(code, p.TwoFactor.Code) {
		l.Info("invalid verification code", slog.String("principal_id", p.ID))
		return domain.SessionResult{}, ErrInvalidCode
	}

	now := s.now()
	if !p.TwoFactor.ExpiresAt.After(now) {
		if err := principals.ClearTwoFactorCode(ctx, p.ID); err != nil {
			return domain.SessionResult{}, fmt.Errorf("clearing expired code: %w", err)
		}
		return domain.SessionResult{}, ErrCodeExpired
	}

	if err := principals.CompleteLogin(ctx, p.ID, p.TwoFactor.Code, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Consumed or replaced since we read it.
			return domain.SessionResult{}, ErrInvalidCode
		}
		return domain.SessionResult{}, fmt.Errorf("completing login: %w", err)
	}

	if s.Denylist != nil && pending.TokenID != "" {
		if err := s.Denylist.Revoke(ctx, pending.TokenID, time.Unix(pending.ExpiresAt, 0)); err != nil {
			return domain.SessionResult{}, fmt.Errorf("spending pending token: %w", err)
		}
	}

	token, err := s.Tokens.IssueSession(p.ID)
	if err != nil {
		return domain.SessionResult{}, err
	}

	p.TwoFactor = nil
	p.LoginAttempts = 0
	p.LockUntil = nil
	p.LastLogin = &now

	l.Info("login completed", slog.String("principal_id", p.ID))
	return domain.SessionResult{
		Token:     token,
		ExpiresIn: int64(s.Tokens.SessionTTL / time.Second),
		User:      p.View(),
	}, nil
}

// ResendSecondFactor replaces the pending code with a new one. The caller
// keeps its existing pending token.
func (s *LoginService) ResendSecondFactor(ctx context.Context, tempToken domain.PendingToken) (string, error) {
	if tempToken == "" {
		return "", validationError("tempToken is required")
	}

	pending, err := s.parsePending(ctx, tempToken)
	if err != nil {
		return "", err
	}

	p, err := s.Store.Principals().GetPrincipalByID(ctx, pending.PrincipalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrPrincipalNotFound
		}
		return "", fmt.Errorf("looking up principal: %w", err)
	}

	// The superseded code is already gone, so a failed send is not rolled back.
	if err := s.issueCode(ctx, p, s.now()); err != nil {
		return "", err
	}

	slogx.FromContext(ctx).Info("verification code resent", slog.String("principal_id", p.ID))
	return msgCodeResent, nil
}

// parsePending verifies tempToken and rejects one already spent by a verify.
func (s *LoginService) parsePending(ctx context.Context, tempToken domain.PendingToken) (domain.PendingClaims, error) {
	claims, err := s.Tokens.ParsePending(tempToken)
	if err != nil {
		return domain.PendingClaims{}, err
	}
	if s.Denylist == nil || claims.TokenID == "" {
		return claims, nil
	}

	spent, err := s.Denylist.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return domain.PendingClaims{}, fmt.Errorf("checking pending token: %w", err)
	}
	if spent {
		return domain.PendingClaims{}, fmt.Errorf("%w: pending token already used", ErrTokenInvalidOrExpired)
	}
	return claims, nil
}

// issueCode stores a new code for p and emails it. Delivery failures,
// timeouts included, come back as ErrNotificationDeliveryFailed.
func (s *LoginService) issueCode(ctx context.Context, p domain.Principal, now time.Time) error {
	code, err := s.generateCode()
	if err != nil {
		return err
	}

	ttl := s.otpTTL()
	challenge := domain.TwoFactorChallenge{Code: code, ExpiresAt: now.Add(ttl)}
	if err := s.Store.Principals().SetTwoFactorCode(ctx, p.ID, challenge); err != nil {
		return fmt.Errorf("storing verification code: %w", err)
	}

	msg, err := otpMessage.Render(p.Email, map[string]any{
		"Name":    p.Name,
		"Code":    code,
		"Minutes": int(ttl / time.Minute),
	})
	if err != nil {
		return err
	}

	timeout := s.NotifyTimeout
	if timeout <= 0 {
		timeout = DefaultNotifyTimeout
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.Notifier.Send(sendCtx, msg); err != nil {
		slogx.FromContext(ctx).Error("verification code delivery failed",
			slog.String("principal_id", p.ID),
			slog.Any("err", err),
		)
		return fmt.Errorf("%w: %v", ErrNotificationDeliveryFailed, err)
	}
	return nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// burnPasswordCheck spends the same effort as a real verification so an
// unknown email cannot be told apart by response time.
func burnPasswordCheck(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = cryptox.HashPassword("not-a-real-password")
	})
	if dummyHash != "" {
		_ = cryptox.VerifyPassword(password, dummyHash)
	}
}
