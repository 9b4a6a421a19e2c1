package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes carried in ErrorResponse.Error.
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidCredentials   = "invalid_credentials"
	ErrorCodeAccountDeactivated   = "account_deactivated"
	ErrorCodeAccountLocked        = "account_locked"
	ErrorCodeNotificationFailed   = "notification_failed"
	ErrorCodeInvalidToken         = "invalid_token"
	ErrorCodeInvalidCode          = "invalid_code"
	ErrorCodeCodeExpired          = "code_expired"
	ErrorCodeUnauthorized         = "unauthorized"
	ErrorCodeSecondFactorRequired = "second_factor_required"
	ErrorCodeForbidden            = "forbidden"
	ErrorCodeNotFound             = "not_found"
	ErrorCodeEmailTaken           = "email_taken"
	ErrorCodeAlreadyBootstrapped  = "already_bootstrapped"
	ErrorCodeRateLimited          = "rate_limit_exceeded"
	ErrorCodeServerError          = "server_error"
)

// Error is a non-2xx API response.
type Error struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *Error) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%d %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Description)
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// StatusCode returns the HTTP status of an *Error, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// parseErrorResponse turns an error response into *Error. Bodies that are
// not ErrorResponse JSON fall back to the status text.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &Error{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	return &Error{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
