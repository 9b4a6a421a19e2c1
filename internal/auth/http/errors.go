package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jewelbox/backoffice/internal/auth/service"
	"github.com/jewelbox/backoffice/pkg/authsdk"
	"github.com/jewelbox/backoffice/pkg/httpx"
	"github.com/jewelbox/backoffice/pkg/slogx"
)

func apiError(status int, code, description string) *httpx.APIError {
	return &httpx.APIError{StatusCode: status, Code: code, Description: description}
}

// errorTable maps service errors to responses. Order matters: more
// specific errors that wrap a broader one come first.
var errorTable = []struct {
	err error
	api *httpx.APIError
}{
	{service.ErrInvalidCredentials, apiError(http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials, "Invalid credentials")},
	{service.ErrAccountDeactivated, apiError(http.StatusForbidden, authsdk.ErrorCodeAccountDeactivated, "Account is deactivated")},
	{service.ErrAccountLocked, apiError(http.StatusLocked, authsdk.ErrorCodeAccountLocked, "Account is temporarily locked. Try again later or contact an administrator")},
	{service.ErrNotificationDeliveryFailed, apiError(http.StatusBadGateway, authsdk.ErrorCodeNotificationFailed, "Failed to send verification code. Please try again")},

	{service.ErrTokenInvalidOrExpired, apiError(http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken, "Token is invalid or expired")},
	{service.ErrInvalidToken, apiError(http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken, "Invalid token")},
	{service.ErrInvalidCode, apiError(http.StatusUnauthorized, authsdk.ErrorCodeInvalidCode, "Invalid verification code")},
	{service.ErrCodeExpired, apiError(http.StatusUnauthorized, authsdk.ErrorCodeCodeExpired, "Verification code has expired. Request a new one")},
	{service.ErrPrincipalNotFound, apiError(http.StatusNotFound, authsdk.ErrorCodeNotFound, "User not found")},

	{service.ErrPendingSecondFactor, apiError(http.StatusUnauthorized, authsdk.ErrorCodeSecondFactorRequired, "Complete second factor verification first")},
	{service.ErrUnauthorized, apiError(http.StatusUnauthorized, authsdk.ErrorCodeUnauthorized, "Not authenticated")},
	{service.ErrForbidden, apiError(http.StatusForbidden, authsdk.ErrorCodeForbidden, "")},
	{service.ErrEmailTaken, apiError(http.StatusConflict, authsdk.ErrorCodeEmailTaken, "Email is already in use")},

	{service.ErrBootstrapDisabled, apiError(http.StatusNotFound, authsdk.ErrorCodeNotFound, "Bootstrap endpoint is not enabled")},
	{service.ErrBootstrapUnauthorized, apiError(http.StatusUnauthorized, authsdk.ErrorCodeUnauthorized, "Invalid bootstrap token")},
	{service.ErrBootstrapAlready, apiError(http.StatusConflict, authsdk.ErrorCodeAlreadyBootstrapped, "System has already been bootstrapped")},
}

// writeServiceError translates err and writes it. Anything unrecognised is
// logged and reported as a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *httpx.APIError
	if errors.As(err, &apiErr) {
		httpx.WriteError(w, apiErr)
		return
	}

	if errors.Is(err, service.ErrValidation) {
		msg := strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
		httpx.WriteError(w, httpx.ErrBadRequest.WithDescription("%s", msg))
		return
	}

	for _, e := range errorTable {
		if !errors.Is(err, e.err) {
			continue
		}
		if e.api.Description == "" {
			httpx.WriteError(w, e.api.WithDescription("%s", detail(err, e.err)))
			return
		}
		httpx.WriteError(w, e.api)
		return
	}

	slogx.FromContext(r.Context()).Error("request failed", "err", err)
	httpx.WriteError(w, httpx.ErrInternal)
}

// detail strips the sentinel prefix from a wrapped error message.
func detail(err, sentinel error) string {
	return strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
}
