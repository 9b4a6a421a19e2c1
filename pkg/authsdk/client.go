package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the back office authentication API.
// It provides access to unauthenticated operations and creates Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a client for the service at baseURL.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Login checks the password and has a verification code emailed to the
// user. The returned TempToken is needed to verify or resend the code.
func (c *SDKClient) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/login", LoginRequest{
		Email:    email,
		Password: password,
	}, nil)
	if err != nil {
		return nil, err
	}

	var out LoginResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifySecondFactor exchanges the temporary token and emailed code for an
// authenticated Session.
func (c *SDKClient) VerifySecondFactor(ctx context.Context, tempToken, code string) (*Session, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/2fa/verify", VerifyRequest{
		TempToken: tempToken,
		Code:      code,
	}, nil)
	if err != nil {
		return nil, err
	}

	var out SessionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return newSession(c, &out), nil
}

// ResendCode emails a new code, invalidating the previous one.
func (c *SDKClient) ResendCode(ctx context.Context, tempToken string) (*MessageResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/2fa/resend", ResendRequest{
		TempToken: tempToken,
	}, nil)
	if err != nil {
		return nil, err
	}

	var out MessageResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Bootstrap creates the first superadmin on an empty system.
func (c *SDKClient) Bootstrap(ctx context.Context, token string, req BootstrapRequest) (*User, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/bootstrap", req, map[string]string{
		"X-Bootstrap-Token": token,
	})
	if err != nil {
		return nil, err
	}

	var out User
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetLiveness checks if the service is alive.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// GetReadiness checks if the service and its dependencies are ready.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *SDKClient) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}

// NewSessionFromToken wraps a session token obtained elsewhere, for example
// one persisted by a dashboard between restarts.
func (c *SDKClient) NewSessionFromToken(token string) *Session {
	return &Session{client: c, token: token}
}
