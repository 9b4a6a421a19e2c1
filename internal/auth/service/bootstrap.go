package service

import (
	"context"
	"log/slog"

	"github.com/jewelbox/backoffice/internal/auth/domain"
	"github.com/jewelbox/backoffice/internal/auth/store"
	"github.com/jewelbox/backoffice/pkg/cryptox"
	"github.com/jewelbox/backoffice/pkg/slogx"
)

// BootstrapService creates the first superadmin on an empty system.
type BootstrapService struct {
	Store store.Store
	Token string
}

// Bootstrap requires the configured token and only succeeds while no
// principal exists.
func (s *BootstrapService) Bootstrap(
	ctx context.Context,
	token string,
	data domain.BootstrapData,
) (domain.PrincipalView, error) {
	l := slogx.FromContext(ctx)

	if s.Token == "" {
		return domain.PrincipalView{}, ErrBootstrapDisabled
	}
	if !cryptox.ConstantTimeEqual(token, s.Token) {
		l.Warn("bootstrap attempted with wrong token")
		return domain.PrincipalView{}, ErrBootstrapUnauthorized
	}

	p, err := newPrincipal(domain.NewPrincipal{
		Name:     data.Name,
		Email:    data.Email,
		Password: data.Password,
		Role:     domain.RoleSuperAdmin,
	})
	if err != nil {
		return domain.PrincipalView{}, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		empty, err := tx.Principals().IsEmpty(ctx)
		if err != nil {
			return err
		}
		if !empty {
			return ErrBootstrapAlready
		}
		return tx.Principals().CreatePrincipal(ctx, p)
	})
	if err != nil {
		return domain.PrincipalView{}, err
	}

	l.Info("bootstrap complete", slog.String("principal_id", p.ID))
	return p.View(), nil
}
