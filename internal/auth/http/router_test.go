package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jewelbox/backoffice/internal/auth/domain"
	"github.com/jewelbox/backoffice/internal/auth/revocation"
	"github.com/jewelbox/backoffice/internal/auth/service"
	"github.com/jewelbox/backoffice/internal/auth/store/drivers/sqlite"
	"github.com/jewelbox/backoffice/pkg/authsdk"
	"github.com/jewelbox/backoffice/pkg/cryptox"
	"github.com/jewelbox/backoffice/pkg/idx"
	"github.com/jewelbox/backoffice/pkg/mailx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPassword       = "correct horse battery"
	testBootstrapToken = "bootstrap-me"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "http-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

type testServer struct {
	t      *testing.T
	router *Router
	store  *sqlite.Store

	mu      sync.Mutex
	sent    []mailx.Message
	sendErr error

	// Each request gets its own client IP so per-IP limits do not interfere.
	ip atomic.Int32
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	tokens, err := service.NewTokenIssuer([]byte("http-test-secret-that-is-32-bytes!!"), "backoffice-test", 0, 0)
	require.NoError(t, err)

	ts := &testServer{t: t, store: st}
	denylist := revocation.NewMemory()

	logger := slog.New(slog.DiscardHandler)
	r := NewRouter("test", st, denylist, logger)
	r.LoginService = &service.LoginService{
		Store:    st,
		Tokens:   tokens,
		Lockout:  service.DefaultLockoutPolicy(),
		Notifier: mailx.SenderFunc(ts.send),
		Denylist: denylist,
	}
	r.SessionService = &service.SessionService{Store: st, Tokens: tokens, Denylist: denylist}
	r.PrincipalService = &service.PrincipalService{Store: st, Lockout: service.DefaultLockoutPolicy()}
	r.BootstrapService = &service.BootstrapService{Store: st, Token: testBootstrapToken}
	r.ApplyRoutes()

	ts.router = r
	return ts
}

func (ts *testServer) send(_ context.Context, msg mailx.Message) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.sendErr != nil {
		return ts.sendErr
	}
	ts.sent = append(ts.sent, msg)
	return nil
}

func (ts *testServer) lastCode() string {
	ts.t.Helper()
	ts.mu.Lock()
	defer ts.mu.Unlock()
	require.NotEmpty(ts.t, ts.sent)
	code := codePattern.FindString(ts.sent[len(ts.sent)-1].Body)
	require.NotEmpty(ts.t, code)
	return code
}

func (ts *testServer) addPrincipal(email string, role domain.Role) domain.Principal {
	ts.t.Helper()
	hash, err := cryptox.HashPassword(testPassword)
	require.NoError(ts.t, err)

	p := domain.Principal{
		ID:           idx.New().String(),
		Name:         "Test " + role.String(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	require.NoError(ts.t, ts.store.Principals().CreatePrincipal(context.Background(), p))
	return p
}

func (ts *testServer) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	ts.t.Helper()

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(ts.t, err)
		rd = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", ts.ip.Add(1)))
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) authed(method, path, token string, body any) *httptest.ResponseRecorder {
	return ts.do(method, path, body, map[string]string{"Authorization": "Bearer " + token})
}

// signIn runs login and verify with testPassword and returns the session token.
func (ts *testServer) signIn(email string) string {
	ts.t.Helper()
	return ts.signInWith(email, testPassword)
}

func (ts *testServer) signInWith(email, password string) string {
	ts.t.Helper()

	rec := ts.do(http.MethodPost, "/v1/auth/login", authsdk.LoginRequest{Email: email, Password: password}, nil)
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[authsdk.LoginResponse](ts.t, rec)

	rec = ts.do(http.MethodPost, "/v1/auth/2fa/verify", authsdk.VerifyRequest{TempToken: login.TempToken, Code: ts.lastCode()}, nil)
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[authsdk.SessionResponse](ts.t, rec).Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	assert.Equal(t, code, decode[authsdk.ErrorResponse](t, rec).Error)
}

func TestSignInFlow(t *testing.T) {
	ts := newTestServer(t)
	p := ts.addPrincipal("ada@example.com", domain.RoleStaff)

	rec := ts.do(http.MethodPost, "/v1/auth/login", authsdk.LoginRequest{Email: "ada@example.com", Password: testPassword}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	login := decode[authsdk.LoginResponse](t, rec)
	assert.Equal(t, "Verification code sent to your email", login.Message)

	// The pending token does not pass the guard.
	rec = ts.authed(http.MethodGet, "/v1/auth/me", login.TempToken, nil)
	requireError(t, rec, http.StatusUnauthorized, authsdk.ErrorCodeSecondFactorRequired)

	rec = ts.do(http.MethodPost, "/v1/auth/2fa/verify", authsdk.VerifyRequest{TempToken: login.TempToken, Code: ts.lastCode()}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	session := decode[authsdk.SessionResponse](t, rec)
	assert.Equal(t, p.ID, session.User.ID)
	assert.Equal(t, "staff", session.User.Role)
	assert.NotNil(t, session.User.LastLogin)
	assert.Positive(t, session.ExpiresIn)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = ts.authed(http.MethodGet, "/v1/auth/me", session.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ada@example.com", decode[authsdk.User](t, rec).Email)

	rec = ts.authed(http.MethodPost, "/v1/auth/logout", session.Token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.authed(http.MethodGet, "/v1/auth/me", session.Token, nil)
	requireError(t, rec, http.StatusUnauthorized, authsdk.ErrorCodeUnauthorized)
}

func TestLoginErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.addPrincipal("ada@example.com", domain.RoleStaff)
	off := ts.addPrincipal("off@example.com", domain.RoleStaff)
	require.NoError(t, ts.store.Principals().SetActive(context.Background(), off.ID, false))

	login := func(email, pw string) *httptest.ResponseRecorder {
		return ts.do(http.MethodPost, "/v1/auth/login", authsdk.LoginRequest{Email: email, Password: pw}, nil)
	}

	requireError(t, login("", ""), http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest)
	requireError(t, login("nobody@example.com", testPassword), http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials)
	requireError(t, login("off@example.com", testPassword), http.StatusForbidden, authsdk.ErrorCodeAccountDeactivated)

	for i := 0; i < service.DefaultLockoutThreshold; i++ {
		requireError(t, login("ada@example.com", "wrong"), http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials)
	}
	requireError(t, login("ada@example.com", testPassword), http.StatusLocked, authsdk.ErrorCodeAccountLocked)

	rec := ts.do(http.MethodPost, "/v1/auth/login", `{"email":"a@example.com","password":"x","extra":1}`, nil)
	requireError(t, rec, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest)

	rec = ts.do(http.MethodPost, "/v1/auth/login", `not json`, nil)
	requireError(t, rec, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest)
}

func TestLoginNotificationFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.addPrincipal("ada@example.com", domain.RoleStaff)
	ts.sendErr = errors.New("smtp down")

	rec := ts.do(http.MethodPost, "/v1/auth/login", authsdk.LoginRequest{Email: "ada@example.com", Password: testPassword}, nil)
	requireError(t, rec, http.StatusBadGateway, authsdk.ErrorCodeNotificationFailed)
	assert.NotContains(t, rec.Body.String(), "smtp down")
}

func TestVerifyErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.addPrincipal("ada@example.com", domain.RoleStaff)
	session := ts.signIn("ada@example.com")

	verify := func(token, code string) *httptest.ResponseRecorder {
		return ts.do(http.MethodPost, "/v1/auth/2fa/verify", authsdk.VerifyRequest{TempToken: token, Code: code}, nil)
	}

	requireError(t, verify("", ""), http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest)
	requireError(t, verify("garbage", "123456"), http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken)
	requireError(t, verify(session, "123456"), http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken)

	rec := ts.do(http.MethodPost, "/v1/auth/login", authsdk.LoginRequest{Email: "ada@example.com", Password: testPassword}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[authsdk.LoginResponse](t, rec).TempToken

	wrong := "000000"
	if ts.lastCode() == wrong {
		wrong = "111111"
	}
	requireError(t, verify(pending, wrong), http.StatusUnauthorized, authsdk.ErrorCodeInvalidCode)
}

func TestResend(t *testing.T) {
	ts := newTestServer(t)
	ts.addPrincipal("ada@example.com", domain.RoleStaff)

	rec := ts.do(http.MethodPost, "/v1/auth/login", authsdk.LoginRequest{Email: "ada@example.com", Password: testPassword}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[authsdk.LoginResponse](t, rec).TempToken

	rec = ts.do(http.MethodPost, "/v1/auth/2fa/resend", authsdk.ResendRequest{TempToken: pending}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "A new verification code has been sent to your email", decode[authsdk.MessageResponse](t, rec).Message)

	rec = ts.do(http.MethodPost, "/v1/auth/2fa/verify", authsdk.VerifyRequest{TempToken: pending, Code: ts.lastCode()}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPost, "/v1/auth/2fa/resend", authsdk.ResendRequest{TempToken: pending}, nil)
	requireError(t, rec, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken)

	rec = ts.do(http.MethodPost, "/v1/auth/2fa/resend", authsdk.ResendRequest{TempToken: "garbage"}, nil)
	requireError(t, rec, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken)
}

func TestGuard(t *testing.T) {
	ts := newTestServer(t)
	p := ts.addPrincipal("ada@example.com", domain.RoleStaff)
	session := ts.signIn("ada@example.com")

	rec := ts.do(http.MethodGet, "/v1/auth/me", nil, nil)
	requireError(t, rec, http.StatusUnauthorized, authsdk.ErrorCodeUnauthorized)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	rec = ts.authed(http.MethodGet, "/v1/auth/me", "not-a-token", nil)
	requireError(t, rec, http.StatusUnauthorized, authsdk.ErrorCodeUnauthorized)

	require.NoError(t, ts.store.Principals().SetActive(context.Background(), p.ID, false))
	rec = ts.authed(http.MethodGet, "/v1/auth/me", session, nil)
	requireError(t, rec, http.StatusUnauthorized, authsdk.ErrorCodeUnauthorized)
}

func TestUserAdministration(t *testing.T) {
	ts := newTestServer(t)
	ts.addPrincipal("admin@example.com", domain.RoleAdmin)
	ts.addPrincipal("staff@example.com", domain.RoleStaff)
	admin := ts.signIn("admin@example.com")
	staff := ts.signIn("staff@example.com")

	rec := ts.authed(http.MethodGet, "/v1/users", staff, nil)
	requireError(t, rec, http.StatusForbidden, authsdk.ErrorCodeForbidden)

	rec = ts.authed(http.MethodGet, "/v1/users", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[authsdk.UserListResponse](t, rec).Users, 2)

	create := authsdk.CreateUserRequest{Name: "Grace", Email: "grace@example.com", Password: "long enough", Role: "Manager"}
	rec = ts.authed(http.MethodPost, "/v1/users", admin, create)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	grace := decode[authsdk.User](t, rec)
	assert.Equal(t, "manager", grace.Role)

	rec = ts.authed(http.MethodPost, "/v1/users", admin, create)
	requireError(t, rec, http.StatusConflict, authsdk.ErrorCodeEmailTaken)

	create.Email, create.Role = "x@example.com", "owner"
	rec = ts.authed(http.MethodPost, "/v1/users", admin, create)
	requireError(t, rec, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest)

	create.Role = "superadmin"
	rec = ts.authed(http.MethodPost, "/v1/users", admin, create)
	requireError(t, rec, http.StatusForbidden, authsdk.ErrorCodeForbidden)

	rec = ts.authed(http.MethodPost, "/v1/users", staff, create)
	requireError(t, rec, http.StatusForbidden, authsdk.ErrorCodeForbidden)

	rec = ts.authed(http.MethodPost, "/v1/users/"+grace.ID+"/unlock", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.authed(http.MethodPost, "/v1/users/missing/unlock", admin, nil)
	requireError(t, rec, http.StatusNotFound, authsdk.ErrorCodeNotFound)

	rec = ts.authed(http.MethodPatch, "/v1/users/"+grace.ID+"/active", admin, `{}`)
	requireError(t, rec, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest)

	rec = ts.authed(http.MethodPatch, "/v1/users/"+grace.ID+"/active", admin, `{"active":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decode[authsdk.User](t, rec).IsActive)

	rec = ts.do(http.MethodPost, "/v1/auth/login", authsdk.LoginRequest{Email: "grace@example.com", Password: "long enough"}, nil)
	requireError(t, rec, http.StatusForbidden, authsdk.ErrorCodeAccountDeactivated)
}

func TestUnlockRestoresLogin(t *testing.T) {
	ts := newTestServer(t)
	ts.addPrincipal("admin@example.com", domain.RoleAdmin)
	locked := ts.addPrincipal("ada@example.com", domain.RoleStaff)
	admin := ts.signIn("admin@example.com")

	for i := 0; i < service.DefaultLockoutThreshold; i++ {
		ts.do(http.MethodPost, "/v1/auth/login", authsdk.LoginRequest{Email: "ada@example.com", Password: "wrong"}, nil)
	}
	rec := ts.do(http.MethodPost, "/v1/auth/login", authsdk.LoginRequest{Email: "ada@example.com", Password: testPassword}, nil)
	requireError(t, rec, http.StatusLocked, authsdk.ErrorCodeAccountLocked)

	rec = ts.authed(http.MethodPost, "/v1/users/"+locked.ID+"/unlock", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.NotEmpty(t, ts.signIn("ada@example.com"))
}

func TestBootstrap(t *testing.T) {
	ts := newTestServer(t)
	req := authsdk.BootstrapRequest{Name: "Owner", Email: "owner@example.com", Password: "long enough"}

	rec := ts.do(http.MethodPost, "/v1/bootstrap", req, nil)
	requireError(t, rec, http.StatusUnauthorized, authsdk.ErrorCodeUnauthorized)

	rec = ts.do(http.MethodPost, "/v1/bootstrap", req, map[string]string{"X-Bootstrap-Token": "wrong"})
	requireError(t, rec, http.StatusUnauthorized, authsdk.ErrorCodeUnauthorized)

	rec = ts.do(http.MethodPost, "/v1/bootstrap", req, map[string]string{"X-Bootstrap-Token": testBootstrapToken})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "superadmin", decode[authsdk.User](t, rec).Role)

	rec = ts.do(http.MethodPost, "/v1/bootstrap", req, map[string]string{"X-Bootstrap-Token": testBootstrapToken})
	requireError(t, rec, http.StatusConflict, authsdk.ErrorCodeAlreadyBootstrapped)

	assert.NotEmpty(t, ts.signInWith("owner@example.com", req.Password))
}

func TestBootstrapDisabled(t *testing.T) {
	ts := newTestServer(t)
	ts.router.BootstrapService.Token = ""

	rec := ts.do(http.MethodPost, "/v1/bootstrap", `{}`, map[string]string{"X-Bootstrap-Token": "anything"})
	requireError(t, rec, http.StatusNotFound, authsdk.ErrorCodeNotFound)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/livez", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[authsdk.HealthResponse](t, rec).Status)

	rec = ts.do(http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[authsdk.HealthResponse](t, rec)
	require.NotNil(t, health.Checks)
	assert.Equal(t, "ok", health.Checks.Database)
	assert.Equal(t, "ok", health.Checks.Denylist)

	require.NoError(t, ts.store.Close())
	rec = ts.do(http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSwaggerServed(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/swagger/doc.json", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/v1/auth/2fa/verify")
}

func TestLoginRateLimited(t *testing.T) {
	ts := newTestServer(t)
	ts.addPrincipal("ada@example.com", domain.RoleStaff)

	var last *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		last = ts.do(http.MethodPost, "/v1/auth/login",
			authsdk.LoginRequest{Email: "ada@example.com", Password: "wrong"},
			map[string]string{"X-Forwarded-For": "203.0.113.7"},
		)
	}
	requireError(t, last, http.StatusTooManyRequests, authsdk.ErrorCodeRateLimited)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
}
