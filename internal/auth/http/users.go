package http

import (
	"net/http"

	"github.com/jewelbox/backoffice/internal/auth/domain"
	"github.com/jewelbox/backoffice/internal/auth/service"
	"github.com/jewelbox/backoffice/pkg/authsdk"
	"github.com/jewelbox/backoffice/pkg/httpx"
)

// UsersHandler handles back office user administration.
type UsersHandler struct {
	PrincipalService *service.PrincipalService
}

func toUser(p domain.PrincipalView) authsdk.User {
	return authsdk.User{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		Role:      p.Role.String(),
		IsActive:  p.IsActive,
		LastLogin: p.LastLogin,
	}
}

// HandleList handles GET /v1/users
//
//	@Summary		List users
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserListResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"Not authenticated"
//	@Failure		403	{object}	authsdk.ErrorResponse	"Role not permitted"
//	@Router			/v1/users [get].
func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.PrincipalService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	users := make([]authsdk.User, 0, len(list))
	for _, p := range list {
		users = append(users, toUser(p))
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.UserListResponse{Users: users})
}

// HandleCreate handles POST /v1/users
//
//	@Summary		Create user
//	@Description	Creates an active user. Only a superadmin can create another superadmin.
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.CreateUserRequest	true	"New user"
//	@Success		201		{object}	authsdk.User
//	@Failure		400		{object}	authsdk.ErrorResponse	"Validation failed"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Not authenticated"
//	@Failure		403		{object}	authsdk.ErrorResponse	"Role not permitted"
//	@Failure		409		{object}	authsdk.ErrorResponse	"Email already in use"
//	@Router			/v1/users [post].
func (h *UsersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := PrincipalFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, httpx.ErrUnauthorized)
		return
	}

	var req authsdk.CreateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		httpx.WriteError(w, httpx.ErrBadRequest.WithDescription("role must be one of superadmin, admin, manager, staff"))
		return
	}

	created, err := h.PrincipalService.Create(r.Context(), actor, domain.NewPrincipal{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toUser(created))
}

// HandleUnlock handles POST /v1/users/{id}/unlock
//
//	@Summary		Unlock user
//	@Description	Clears failed sign-in attempts and any lock.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string	true	"User ID"
//	@Success		200	{object}	authsdk.User
//	@Failure		401	{object}	authsdk.ErrorResponse	"Not authenticated"
//	@Failure		403	{object}	authsdk.ErrorResponse	"Role not permitted"
//	@Failure		404	{object}	authsdk.ErrorResponse	"User not found"
//	@Router			/v1/users/{id}/unlock [post].
func (h *UsersHandler) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	user, err := h.PrincipalService.Unlock(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUser(user))
}

// HandleSetActive handles PATCH /v1/users/{id}/active
//
//	@Summary		Activate or deactivate user
//	@Description	Deactivated users cannot sign in and their existing sessions are rejected. Nobody can deactivate themselves.
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"User ID"
//	@Param			request	body		authsdk.SetActiveRequest	true	"Desired state"
//	@Success		200		{object}	authsdk.User
//	@Failure		400		{object}	authsdk.ErrorResponse	"Missing active flag"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Not authenticated"
//	@Failure		403		{object}	authsdk.ErrorResponse	"Role not permitted"
//	@Failure		404		{object}	authsdk.ErrorResponse	"User not found"
//	@Router			/v1/users/{id}/active [patch].
func (h *UsersHandler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	actor, ok := PrincipalFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, httpx.ErrUnauthorized)
		return
	}

	var req authsdk.SetActiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if req.Active == nil {
		httpx.WriteError(w, httpx.ErrBadRequest.WithDescription("active is required"))
		return
	}

	user, err := h.PrincipalService.SetActive(r.Context(), actor, r.PathValue("id"), *req.Active)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUser(user))
}
