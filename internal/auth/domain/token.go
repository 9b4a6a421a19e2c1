package domain

// PendingToken proves the password step succeeded; it is only accepted by
// second-factor verification and resend.
type PendingToken string

// SessionToken is a fully authenticated bearer token.
type SessionToken string

// LoginResult is returned once the password is verified and a code is sent.
type LoginResult struct {
	TempToken PendingToken `json:"tempToken" swaggertype:"string"`
	Message   string       `json:"message"`
}

// SessionResult is returned after a successful second factor.
type SessionResult struct {
	Token     SessionToken  `json:"token" swaggertype:"string"`
	ExpiresIn int64         `json:"expiresIn"` // seconds
	User      PrincipalView `json:"user"`
}

// PendingClaims are the verified contents of a PendingToken.
type PendingClaims struct {
	PrincipalID string
	TokenID     string
	ExpiresAt   int64 // unix seconds
}

// SessionClaims are the verified contents of a SessionToken.
type SessionClaims struct {
	PrincipalID string
	TokenID     string
	ExpiresAt   int64 // unix seconds
}
