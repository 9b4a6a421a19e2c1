package authsdk

import "time"

// ============================================================================
// Error Types
// ============================================================================

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	// Error is a stable machine-readable code such as "account_locked".
	Error string `json:"error"`

	// ErrorDescription is a human-readable explanation.
	ErrorDescription string `json:"error_description,omitempty"`
}

// ============================================================================
// Sign-in Types
// ============================================================================

// LoginRequest is the body of POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned once the password is accepted and a code has
// been emailed.
type LoginResponse struct {
	// TempToken is only good for verifying or resending the code.
	TempToken string `json:"tempToken"`
	Message   string `json:"message"`
}

// VerifyRequest is the body of POST /v1/auth/2fa/verify.
type VerifyRequest struct {
	TempToken string `json:"tempToken"`
	Code      string `json:"code"`
}

// ResendRequest is the body of POST /v1/auth/2fa/resend.
type ResendRequest struct {
	TempToken string `json:"tempToken"`
}

// SessionResponse is returned after a successful code verification.
type SessionResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"` // seconds
	User      User   `json:"user"`
}

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// ============================================================================
// User Types
// ============================================================================

// User is a back office account as exposed by the API. Credentials and
// verification codes are never included.
type User struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      string     `json:"role" enums:"superadmin,admin,manager,staff"`
	IsActive  bool       `json:"isActive"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

// UserListResponse is returned by GET /v1/users.
type UserListResponse struct {
	Users []User `json:"users"`
}

// CreateUserRequest is the body of POST /v1/users.
type CreateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role" enums:"superadmin,admin,manager,staff"`
}

// SetActiveRequest is the body of PATCH /v1/users/{id}/active.
type SetActiveRequest struct {
	Active *bool `json:"active"`
}

// ============================================================================
// Bootstrap Types
// ============================================================================

// BootstrapRequest creates the first superadmin. It is sent with the
// X-Bootstrap-Token header.
type BootstrapRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports each dependency checked by /readyz.
type HealthChecks struct {
	Database string `json:"database"`
	Denylist string `json:"denylist"`
}
