package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/jewelbox/backoffice/internal/auth/domain"
	"github.com/jewelbox/backoffice/internal/auth/store"
	"github.com/jewelbox/backoffice/pkg/cryptox"
	"github.com/jewelbox/backoffice/pkg/idx"
	"github.com/jewelbox/backoffice/pkg/slogx"
)

const MinPasswordLength = 8

// PrincipalService is back-office user administration.
type PrincipalService struct {
	Store   store.Store
	Lockout LockoutPolicy
}

func (s *PrincipalService) Get(ctx context.Context, id string) (domain.PrincipalView, error) {
	p, err := s.Store.Principals().GetPrincipalByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.PrincipalView{}, ErrPrincipalNotFound
		}
		return domain.PrincipalView{}, err
	}
	return p.View(), nil
}

func (s *PrincipalService) List(ctx context.Context) ([]domain.PrincipalView, error) {
	list, err := s.Store.Principals().ListPrincipals(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]domain.PrincipalView, 0, len(list))
	for _, p := range list {
		views = append(views, p.View())
	}
	return views, nil
}

// Create adds a principal on behalf of actor. Only a superadmin may create
// another superadmin.
func (s *PrincipalService) Create(
	ctx context.Context,
	actor domain.PrincipalView,
	in domain.NewPrincipal,
) (domain.PrincipalView, error) {
	if in.Role == domain.RoleSuperAdmin && actor.Role != domain.RoleSuperAdmin {
		return domain.PrincipalView{}, fmt.Errorf("%w: only a superadmin can create a superadmin", ErrForbidden)
	}

	p, err := newPrincipal(in)
	if err != nil {
		return domain.PrincipalView{}, err
	}

	if err := s.Store.Principals().CreatePrincipal(ctx, p); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.PrincipalView{}, ErrEmailTaken
		}
		return domain.PrincipalView{}, err
	}

	slogx.FromContext(ctx).Info("principal created",
		slog.String("principal_id", p.ID),
		slog.String("role", p.Role.String()),
		slog.String("created_by", actor.ID),
	)
	return p.View(), nil
}

// Unlock is the administrative override for a locked account.
func (s *PrincipalService) Unlock(ctx context.Context, id string) (domain.PrincipalView, error) {
	if err := s.Lockout.Unlock(ctx, s.Store.Principals(), id); err != nil {
		return domain.PrincipalView{}, err
	}
	slogx.FromContext(ctx).Info("principal unlocked", slog.String("principal_id", id))
	return s.Get(ctx, id)
}

// SetActive activates or deactivates a principal. Nobody may deactivate
// themselves, and only a superadmin may change a superadmin.
func (s *PrincipalService) SetActive(
	ctx context.Context,
	actor domain.PrincipalView,
	id string,
	active bool,
) (domain.PrincipalView, error) {
	target, err := s.Get(ctx, id)
	if err != nil {
		return domain.PrincipalView{}, err
	}
	if target.ID == actor.ID && !active {
		return domain.PrincipalView{}, fmt.Errorf("%w: cannot deactivate your own account", ErrForbidden)
	}
	if target.Role == domain.RoleSuperAdmin && actor.Role != domain.RoleSuperAdmin {
		return domain.PrincipalView{}, fmt.Errorf("%w: only a superadmin can change a superadmin", ErrForbidden)
	}

	if err := s.Store.Principals().SetActive(ctx, id, active); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.PrincipalView{}, ErrPrincipalNotFound
		}
		return domain.PrincipalView{}, err
	}

	slogx.FromContext(ctx).Info("principal activation changed",
		slog.String("principal_id", id),
		slog.Bool("active", active),
		slog.String("changed_by", actor.ID),
	)
	target.IsActive = active
	return target, nil
}

// newPrincipal validates input and hashes the password.
func newPrincipal(in domain.NewPrincipal) (domain.Principal, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Principal{}, validationError("name is required")
	}

	email, err := normalizeEmail(in.Email)
	if err != nil {
		return domain.Principal{}, err
	}

	if len(in.Password) < MinPasswordLength {
		return domain.Principal{}, validationError("password must be at least %d characters", MinPasswordLength)
	}
	if !in.Role.Valid() {
		return domain.Principal{}, validationError("role must be one of superadmin, admin, manager, staff")
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("hashing password: %w", err)
	}

	return domain.Principal{
		ID:           idx.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     true,
	}, nil
}

func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", validationError("email is required")
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", validationError("email is not a valid address")
	}
	return strings.ToLower(addr.Address), nil
}
