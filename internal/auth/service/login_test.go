package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jewelbox/backoffice/internal/auth/domain"
	"github.com/jewelbox/backoffice/internal/auth/service"
	"github.com/jewelbox/backoffice/pkg/jwtx"
	"github.com/jewelbox/backoffice/pkg/mailx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitiateLogin_SendsCodeAndPendingToken(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(t, "ada@example.com", domain.RoleStaff)

	res, err := h.login.InitiateLogin(t.Context(), "  ADA@example.com ", testPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, res.TempToken)
	assert.Equal(t, "Verification code sent to your email", res.Message)

	require.Equal(t, 1, h.outbox.count())
	code := h.outbox.lastCode(t)
	assert.Len(t, code, 6)

	stored := h.reload(t, p.ID)
	require.NotNil(t, stored.TwoFactor)
	assert.Equal(t, code, stored.TwoFactor.Code)
	assert.WithinDuration(t, h.clock.Now().Add(service.DefaultOTPTTL), stored.TwoFactor.ExpiresAt, time.Second)

	pending, err := h.tokens.ParsePending(res.TempToken)
	require.NoError(t, err)
	assert.Equal(t, p.ID, pending.PrincipalID)
	assert.NotEmpty(t, pending.TokenID)
}

func TestInitiateLogin_Validation(t *testing.T) {
	h := newHarness(t)

	_, err := h.login.InitiateLogin(t.Context(), "", testPassword)
	assert.ErrorIs(t, err, service.ErrValidation)

	_, err = h.login.InitiateLogin(t.Context(), "ada@example.com", "")
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestInitiateLogin_UnknownEmail(t *testing.T) {
	h := newHarness(t)

	_, err := h.login.InitiateLogin(t.Context(), "nobody@example.com", testPassword)
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	assert.Zero(t, h.outbox.count())
}

func TestInitiateLogin_Deactivated(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(t, "ada@example.com", domain.RoleStaff)
	require.NoError(t, h.store.Principals().SetActive(t.Context(), p.ID, false))

	for _, pw := range []string{testPassword, "wrong password"} {
		_, err := h.login.InitiateLogin(t.Context(), p.Email, pw)
		assert.ErrorIs(t, err, service.ErrAccountDeactivated)
	}

	stored := h.reload(t, p.ID)
	assert.Zero(t, stored.LoginAttempts)
	assert.Nil(t, stored.TwoFactor)
}

func TestInitiateLogin_WrongPasswordCountsAttempt(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(t, "ada@example.com", domain.RoleStaff)

	_, err := h.login.InitiateLogin(t.Context(), p.Email, "wrong password")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	stored := h.reload(t, p.ID)
	assert.Equal(t, 1, stored.LoginAttempts)
	assert.Nil(t, stored.LockUntil)
	assert.Zero(t, h.outbox.count())
}

func TestInitiateLogin_LocksAfterThreshold(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(t, "ada@example.com", domain.RoleStaff)

	for i := 0; i < service.DefaultLockoutThreshold; i++ {
		_, err := h.login.InitiateLogin(t.Context(), p.Email, "wrong password")
		require.ErrorIs(t, err, service.ErrInvalidCredentials, "attempt %d", i+1)
	}

	stored := h.reload(t, p.ID)
	assert.Equal(t, service.DefaultLockoutThreshold, stored.LoginAttempts)
	require.NotNil(t, stored.LockUntil)
	assert.WithinDuration(t, h.clock.Now().Add(service.DefaultLockoutDuration), *stored.LockUntil, time.Second)

	// Locked wins over a correct password.
	_, err := h.login.InitiateLogin(t.Context(), p.Email, testPassword)
	assert.ErrorIs(t, err, service.ErrAccountLocked)
	assert.Zero(t, h.outbox.count())

	// A locked account does not keep counting.
	_, err = h.login.InitiateLogin(t.Context(), p.Email, "wrong password")
	assert.ErrorIs(t, err, service.ErrAccountLocked)
	assert.Equal(t, service.DefaultLockoutThreshold, h.reload(t, p.ID).LoginAttempts)
}

func TestInitiateLogin_ExpiredLockClearedByGoodPassword(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(t, "ada@example.com", domain.RoleStaff)

	for i := 0; i < service.DefaultLockoutThreshold; i++ {
		_, _ = h.login.InitiateLogin(t.Context(), p.Email, "wrong password")
	}
	require.NotNil(t, h.reload(t, p.ID).LockUntil)

	h.clock.Advance(service.DefaultLockoutDuration + time.Minute)

	// The expired lock is still recorded until something clears it.
	stale := h.reload(t, p.ID)
	require.NotNil(t, stale.LockUntil)
	assert.False(t, stale.LockedAt(h.clock.Now()))

	_, err := h.login.InitiateLogin(t.Context(), p.Email, testPassword)
	require.NoError(t, err)

	stored := h.reload(t, p.ID)
	assert.Zero(t, stored.LoginAttempts)
	assert.Nil(t, stored.LockUntil)
	assert.NotNil(t, stored.TwoFactor)
}

func TestInitiateLogin_ExpiredLockRestartsCount(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(t, "ada@example.com", domain.RoleStaff)

	for i := 0; i < service.DefaultLockoutThreshold; i++ {
		_, _ = h.login.InitiateLogin(t.Context(), p.Email, "wrong password")
	}
	h.clock.Advance(service.DefaultLockoutDuration + time.Minute)

	// One miss after the lock runs out is a first failure, not a re-lock.
	_, err := h.login.InitiateLogin(t.Context(), p.Email, "wrong password")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	stored := h.reload(t, p.ID)
	assert.Equal(t, 1, stored.LoginAttempts)
	assert.Nil(t, stored.LockUntil)

	_, err = h.login.InitiateLogin(t.Context(), p.Email, testPassword)
	require.NoError(t, err)

	// A full run of misses locks it again.
	for i := 0; i < service.DefaultLockoutThreshold; i++ {
		_, err = h.login.InitiateLogin(t.Context(), p.Email, "wrong password")
		require.ErrorIs(t, err, service.ErrInvalidCredentials, "attempt %d", i+1)
	}
	_, err = h.login.InitiateLogin(t.Context(), p.Email, testPassword)
	assert.ErrorIs(t, err, service.ErrAccountLocked)
}

func TestInitiateLogin_DeliveryFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(t, "ada@example.com", domain.RoleStaff)
	h.outbox.setFail(errors.New("smtp: connection refused"))

	res, err := h.login.InitiateLogin(t.Context(), p.Email, testPassword)
	assert.ErrorIs(t, err, service.ErrNotificationDeliveryFailed)
	assert.Empty(t, res.TempToken)

	assert.Nil(t, h.reload(t, p.ID).TwoFactor)
}

func TestInitiateLogin_DeliveryTimeout(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(t, "ada@example.com", domain.RoleStaff)
	h.login.NotifyTimeout = 20 * time.Millisecond
	h.login.Notifier = mailx.SenderFunc(func(ctx context.Context, _ mailx.Message) error {
		<-ctx.Done()
		return ctx.Err()
	})

	_, err := h.login.InitiateLogin(t.Context(), p.Email, testPassword)
	assert.ErrorIs(t, err, service.ErrNotificationDeliveryFailed)
	assert.Nil(t, h.reload(t, p.ID).TwoFactor)
}

type failingSigner struct{}

func (failingSigner) Alg() string { return "HS256" }

func (failingSigner) Sign(jwtx.Claims) (string, error) { return "", errors.New("signer unavailable") }

func TestInitiateLogin_SigningFailureLeavesNoCode(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(t, "ada@example.com", domain.RoleStaff)

	broken := *h.tokens
	broken.Signer = failingSigner{}
	h.login.Tokens = &broken

	res, err := h.login.InitiateLogin(t.Context(), p.Email, testPassword)
	require.Error(t, err)
	assert.Empty(t, res.TempToken)
	assert.Zero(t, h.outbox.count())
	assert.Nil(t, h.reload(t, p.ID).TwoFactor)
}

func TestVerifySecondFactor_RoundTrip(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(t, "ada@example.com", domain.RoleManager)

	res, err := h.login.InitiateLogin(t.Context(), p.Email, testPassword)
	require.NoError(t, err)

	session, err := h.login.VerifySecondFactor(t.Context(), res.TempToken, h.outbox.lastCode(t))
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, int64(service.DefaultSessionTokenTTL/time.Second), session.ExpiresIn)
	assert.Equal(t, p.ID, session.User.ID)
	assert.Equal(t, domain.RoleManager, session.User.Role)
	require.NotNil(t, session.User.LastLogin)
	assert.WithinDuration(t, h.clock.Now(), *session.User.LastLogin, time.Second)

	stored := h.reload(t, p.ID)
	assert.Nil(t, stored.TwoFactor)
	require.NotNil(t, stored.LastLogin)
	assert.WithinDuration(t, h.clock.Now(), *stored.LastLogin, time.Second)

	claims, err := h.tokens.ParseSession(session.Token)
	require.NoError(t, err)
	assert.Equal(t, p.ID, claims.PrincipalID)
}

func TestVerifySecondFactor_CodeIsSingleUse(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(t, "ada@example.com", domain.RoleStaff)

	res, err := h.login.InitiateLogin(t.Context(), p.Email, testPassword)
	require.NoError(t, err)
	code := h.outbox.lastCode(t)

	_, err = h.login.VerifySecondFactor(t.Context(), res.TempToken, code)
	require.NoError(t, err)

	_, err = h.login.VerifySecondFactor(t.Context(), res.TempToken, code)
	assert.ErrorIs(t, err, service.ErrTokenInvalidOrExpired)

	// Without a denylist the stored code is what stops a replay.
	h.login.Denylist = nil
	_, err = h.login.VerifySecondFactor(t.Context(), res.TempToken, code)
	assert.ErrorIs(t, err, service.ErrInvalidCode)
}

func TestVerifySecondFactor_SpendsPendingToken(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(t, "ada@example.com", domain.RoleStaff)

	res, err := h.login.InitiateLogin(t.Context(), p.Email, testPassword)
	require.NoError(t, err)
	_, err = h.login.VerifySecondFactor(t.Context(), res.TempToken, h.outbox.lastCode(t))
	require.NoError(t, err)

	// A resend cannot put a fresh code behind the spent token.
	_, err = h.login.ResendSecondFactor(t.Context(), res.TempToken)
	assert.ErrorIs(t, err, service.ErrTokenInvalidOrExpired)
	assert.Equal(t, 1, h.outbox.count())
	assert.Nil(t, h.reload(t, p.ID).TwoFactor)

	// A new login gets a new pending token that works.
	session := h.signIn(t, p.Email)
	assert.NotEmpty(t, session.Token)
}

func TestVerifySecondFactor_WrongCodeKeepsState(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(t, "ada@example.com", domain.RoleStaff)

	res, err := h.login.InitiateLogin(t.Context(), p.Email, testPassword)
	require.NoError(t, err)
	code := h.outbox.lastCode(t)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, err = h.login.VerifySecondFactor(t.Context(), res.TempToken, wrong)
	assert.ErrorIs(t, err, service.ErrInvalidCode)

	stored := h.reload(t, p.ID)
	require.NotNil(t, stored.TwoFactor)
	assert.Equal(t, code, stored.TwoFactor.Code)
	assert.Nil(t, stored.LastLogin)

	// The right code still works afterwards.
	_, err = h.login.VerifySecondFactor(t.Context(), res.TempToken, code)
	assert.NoError(t, err)
}

func TestVerifySecondFactor_ExpiredCode(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(t, "ada@example.com", domain.RoleStaff)

	res, err := h.login.InitiateLogin(t.Context(), p.Email, testPassword)
	require.NoError(t, err)
	code := h.outbox.lastCode(t)

	h.clock.Advance(service.DefaultOTPTTL + time.Second)

	_, err = h.login.VerifySecondFactor(t.Context(), res.TempToken, code)
	assert.ErrorIs(t, err, service.ErrCodeExpired)
	assert.Nil(t, h.reload(t, p.ID).TwoFactor)

	_, err = h.login.VerifySecondFactor(t.Context(), res.TempToken, code)
	assert.ErrorIs(t, err, service.ErrInvalidCode)
}

func TestVerifySecondFactor_RejectsSessionToken(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(t, "ada@example.com", domain.RoleStaff)
	session := h.signIn(t, p.Email)

	_, err := h.login.VerifySecondFactor(t.Context(), domain.PendingToken(session.Token), "123456")
	assert.ErrorIs(t, err, service.ErrInvalidToken)
}

func TestVerifySecondFactor_BadToken(t *testing.T) {
	h := newHarness(t)

	_, err := h.login.VerifySecondFactor(t.Context(), "not-a-jwt", "123456")
	assert.ErrorIs(t, err, service.ErrTokenInvalidOrExpired)

	_, err = h.login.VerifySecondFactor(t.Context(), "", "123456")
	assert.ErrorIs(t, err, service.ErrValidation)

	_, err = h.login.VerifySecondFactor(t.Context(), "x", "")
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestVerifySecondFactor_ExpiredPendingToken(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(t, "ada@example.com", domain.RoleStaff)

	h.tokens.Now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := h.tokens.IssuePending(p.ID)
	require.NoError(t, err)
	h.tokens.Now = time.Now

	_, err = h.login.VerifySecondFactor(t.Context(), token, "123456")
	assert.ErrorIs(t, err, service.ErrTokenInvalidOrExpired)
}

func TestVerifySecondFactor_PrincipalGone(t *testing.T) {
	h := newHarness(t)

	token, err := h.tokens.IssuePending("01HZZZZZZZZZZZZZZZZZZZZZZZ")
	require.NoError(t, err)

	_, err = h.login.VerifySecondFactor(t.Context(), token, "123456")
	assert.ErrorIs(t, err, service.ErrPrincipalNotFound)
}

func TestResendSecondFactor_OnlyLatestCodeVerifies(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(t, "ada@example.com", domain.RoleStaff)

	n := 0
	h.login.GenerateCode = func() (string, error) {
		n++
		return fmt.Sprintf("%06d", 100000+n), nil
	}

	res, err := h.login.InitiateLogin(t.Context(), p.Email, testPassword)
	require.NoError(t, err)
	first := h.outbox.lastCode(t)

	msg, err := h.login.ResendSecondFactor(t.Context(), res.TempToken)
	require.NoError(t, err)
	assert.Equal(t, "A new verification code has been sent to your email", msg)
	second := h.outbox.lastCode(t)

	_, err = h.login.ResendSecondFactor(t.Context(), res.TempToken)
	require.NoError(t, err)
	third := h.outbox.lastCode(t)

	assert.NotEqual(t, first, second)
	assert.NotEqual(t, second, third)
	assert.Equal(t, 3, h.outbox.count())

	for _, stale := range []string{first, second} {
		_, err = h.login.VerifySecondFactor(t.Context(), res.TempToken, stale)
		assert.ErrorIs(t, err, service.ErrInvalidCode)
	}

	_, err = h.login.VerifySecondFactor(t.Context(), res.TempToken, third)
	assert.NoError(t, err)
}

func TestResendSecondFactor_RefreshesExpiry(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(t, "ada@example.com", domain.RoleStaff)

	res, err := h.login.InitiateLogin(t.Context(), p.Email, testPassword)
	require.NoError(t, err)

	h.clock.Advance(service.DefaultOTPTTL + time.Second)
	_, err = h.login.ResendSecondFactor(t.Context(), res.TempToken)
	require.NoError(t, err)

	_, err = h.login.VerifySecondFactor(t.Context(), res.TempToken, h.outbox.lastCode(t))
	assert.NoError(t, err)
}

func TestResendSecondFactor_DeliveryFailure(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(t, "ada@example.com", domain.RoleStaff)

	res, err := h.login.InitiateLogin(t.Context(), p.Email, testPassword)
	require.NoError(t, err)

	h.outbox.setFail(errors.New("smtp down"))
	_, err = h.login.ResendSecondFactor(t.Context(), res.TempToken)
	assert.ErrorIs(t, err, service.ErrNotificationDeliveryFailed)

	// The replacement code stays stored even though it was never delivered.
	assert.NotNil(t, h.reload(t, p.ID).TwoFactor)
}

func TestResendSecondFactor_Tokens(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(t, "ada@example.com", domain.RoleStaff)
	session := h.signIn(t, p.Email)

	_, err := h.login.ResendSecondFactor(t.Context(), domain.PendingToken(session.Token))
	assert.ErrorIs(t, err, service.ErrInvalidToken)

	_, err = h.login.ResendSecondFactor(t.Context(), "garbage")
	assert.ErrorIs(t, err, service.ErrTokenInvalidOrExpired)

	_, err = h.login.ResendSecondFactor(t.Context(), "")
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestLockoutThenUnlock(t *testing.T) {
	h := newHarness(t)
	p := h.addPrincipal(t, "ada@example.com", domain.RoleStaff)

	for i := 0; i < service.DefaultLockoutThreshold; i++ {
		_, _ = h.login.InitiateLogin(t.Context(), p.Email, "wrong password")
	}
	_, err := h.login.InitiateLogin(t.Context(), p.Email, testPassword)
	require.ErrorIs(t, err, service.ErrAccountLocked)

	view, err := h.principals.Unlock(t.Context(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, view.ID)

	stored := h.reload(t, p.ID)
	assert.Zero(t, stored.LoginAttempts)
	assert.Nil(t, stored.LockUntil)

	session := h.signIn(t, p.Email)
	assert.NotEmpty(t, session.Token)
}
