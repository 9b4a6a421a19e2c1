package http

import (
	"net/http"

	"github.com/jewelbox/backoffice/internal/auth/service"
	"github.com/jewelbox/backoffice/pkg/httpx"
)

type SessionHandler struct {
	SessionService *service.SessionService
}

// HandleMe handles GET /v1/auth/me
//
//	@Summary		Current user
//	@Description	Returns the signed-in user.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.User			"Signed-in user"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Missing, invalid, pending or revoked session token"
//	@Router			/v1/auth/me [get].
func (h *SessionHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, httpx.ErrUnauthorized)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUser(p))
}

// HandleLogout handles POST /v1/auth/logout
//
//	@Summary		Sign out
//	@Description	Revokes the presented session token. Other sessions of the same user are unaffected.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Success		204	"Signed out"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Missing, invalid, pending or revoked session token"
//	@Router			/v1/auth/logout [post].
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, httpx.ErrUnauthorized)
		return
	}

	if err := h.SessionService.Logout(r.Context(), claims); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
