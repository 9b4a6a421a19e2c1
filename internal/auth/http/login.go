package http

import (
	"net/http"

	"github.com/jewelbox/backoffice/internal/auth/domain"
	"github.com/jewelbox/backoffice/internal/auth/service"
	"github.com/jewelbox/backoffice/pkg/authsdk"
	"github.com/jewelbox/backoffice/pkg/httpx"
)

// LoginHandler serves the password and emailed-code sign-in steps.
type LoginHandler struct {
	LoginService *service.LoginService
}

// HandleLogin handles POST /v1/auth/login
//
//	@Summary		Start sign-in
//	@Description	Checks email and password, then emails a six-digit verification code. The returned temporary token is only accepted by the verify and resend endpoints.
//	@Description	Five consecutive wrong passwords lock the account for two hours.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.LoginResponse	"Code sent"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Missing email or password"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid credentials"
//	@Failure		403		{object}	authsdk.ErrorResponse	"Account is deactivated"
//	@Failure		423		{object}	authsdk.ErrorResponse	"Account is temporarily locked"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Failure		502		{object}	authsdk.ErrorResponse	"Verification code could not be sent"
//	@Router			/v1/auth/login [post].
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	res, err := h.LoginService.InitiateLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{
		TempToken: string(res.TempToken),
		Message:   res.Message,
	})
}

// HandleVerify handles POST /v1/auth/2fa/verify
//
//	@Summary		Complete sign-in
//	@Description	Exchanges the temporary token and the emailed code for a session token. A code can be used once.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.VerifyRequest	true	"Temporary token and code"
//	@Success		200		{object}	authsdk.SessionResponse	"Session token and user"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Missing token or code"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid or expired token, invalid or expired code"
//	@Failure		404		{object}	authsdk.ErrorResponse	"User not found"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Router			/v1/auth/2fa/verify [post].
func (h *LoginHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	res, err := h.LoginService.VerifySecondFactor(r.Context(), domain.PendingToken(req.TempToken), req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.SessionResponse{
		Token:     string(res.Token),
		ExpiresIn: res.ExpiresIn,
		User:      toUser(res.User),
	})
}

// HandleResend handles POST /v1/auth/2fa/resend
//
//	@Summary		Resend verification code
//	@Description	Emails a new code for the same temporary token. The previous code stops working immediately.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ResendRequest	true	"Temporary token"
//	@Success		200		{object}	authsdk.MessageResponse	"Code sent"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Missing token"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid or expired token"
//	@Failure		404		{object}	authsdk.ErrorResponse	"User not found"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Failure		502		{object}	authsdk.ErrorResponse	"Verification code could not be sent"
//	@Router			/v1/auth/2fa/resend [post].
func (h *LoginHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	msg, err := h.LoginService.ResendSecondFactor(r.Context(), domain.PendingToken(req.TempToken))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: msg})
}
