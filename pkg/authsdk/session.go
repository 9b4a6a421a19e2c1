package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Session is an authenticated client. It holds one session token and does
// not refresh it.
type Session struct {
	client    *SDKClient
	token     string
	expiresAt time.Time
	user      User
}

func newSession(client *SDKClient, resp *SessionResponse) *Session {
	return &Session{
		client:    client,
		token:     resp.Token,
		expiresAt: time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
		user:      resp.User,
	}
}

// Token returns the raw session token.
func (s *Session) Token() string { return s.token }

// ExpiresAt is when the token stops being accepted. It is zero for sessions
// built with NewSessionFromToken.
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

// User is the account as returned at sign-in.
func (s *Session) User() User { return s.user }

// Me fetches the current account.
func (s *Session) Me(ctx context.Context) (*User, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/auth/me", nil)
	if err != nil {
		return nil, err
	}

	var out User
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes the session token. The Session is unusable afterwards.
func (s *Session) Logout(ctx context.Context) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/auth/logout", nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// ============================================================================
// User Administration
// ============================================================================

// ListUsers returns every account. Requires superadmin, admin or manager.
func (s *Session) ListUsers(ctx context.Context) ([]User, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/users", nil)
	if err != nil {
		return nil, err
	}

	var out UserListResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// CreateUser adds an account. Requires superadmin or admin; only a
// superadmin may create another superadmin.
func (s *Session) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/users", req)
	if err != nil {
		return nil, err
	}

	var out User
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// UnlockUser clears a lockout. Requires superadmin or admin.
func (s *Session) UnlockUser(ctx context.Context, id string) (*User, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/users/"+url.PathEscape(id)+"/unlock", nil)
	if err != nil {
		return nil, err
	}

	var out User
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetUserActive activates or deactivates an account. Requires superadmin or admin.
func (s *Session) SetUserActive(ctx context.Context, id string, active bool) (*User, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPatch, "/v1/users/"+url.PathEscape(id)+"/active",
		SetActiveRequest{Active: &active})
	if err != nil {
		return nil, err
	}

	var out User
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
