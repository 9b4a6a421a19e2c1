package http

import (
	"net/http"

	"github.com/jewelbox/backoffice/internal/auth/domain"
	"github.com/jewelbox/backoffice/internal/auth/service"
	"github.com/jewelbox/backoffice/pkg/authsdk"
	"github.com/jewelbox/backoffice/pkg/httpx"
	"github.com/jewelbox/backoffice/pkg/slogx"
)

type BootstrapHandler struct {
	BootstrapService *service.BootstrapService
}

// ServeHTTP handles the bootstrap endpoint for initial system setup.
//
//	@Summary		Create the first superadmin
//	@Description	Only available when a bootstrap token is configured, and only while no user exists.
//	@Tags			Bootstrap
//	@Accept			json
//	@Produce		json
//	@Param			X-Bootstrap-Token	header		string						true	"Bootstrap token"
//	@Param			request				body		authsdk.BootstrapRequest	true	"Superadmin account"
//	@Success		201					{object}	authsdk.User				"Created superadmin"
//	@Failure		400					{object}	authsdk.ErrorResponse		"Invalid request body or validation failed"
//	@Failure		401					{object}	authsdk.ErrorResponse		"Missing or invalid bootstrap token"
//	@Failure		404					{object}	authsdk.ErrorResponse		"Bootstrap not enabled"
//	@Failure		409					{object}	authsdk.ErrorResponse		"System already bootstrapped"
//	@Router			/v1/bootstrap [post].
func (h *BootstrapHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l := slogx.FromContext(r.Context())
	l.Info("bootstrap requested")

	// Checked before the body so a disabled endpoint reveals nothing else.
	if h.BootstrapService.Token == "" {
		writeServiceError(w, r, service.ErrBootstrapDisabled)
		return
	}

	token := r.Header.Get("X-Bootstrap-Token")
	if token == "" {
		httpx.WriteError(w, httpx.ErrUnauthorized.WithDescription("bootstrap token is required in X-Bootstrap-Token header"))
		return
	}

	var req authsdk.BootstrapRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	user, err := h.BootstrapService.Bootstrap(r.Context(), token, domain.BootstrapData{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toUser(user))
}
