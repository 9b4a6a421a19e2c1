package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/jewelbox/backoffice/internal/auth/domain"
)

type principalsRepo struct {
	q *queries
}

func now() time.Time { return time.Now().UTC() }

func (r *principalsRepo) GetPrincipalByID(ctx context.Context, id string) (domain.Principal, error) {
	row, err := r.q.GetPrincipalByID(ctx, id)
	if err != nil {
		return domain.Principal{}, mapNotFound(err)
	}
	return mapPrincipal(row), nil
}

func (r *principalsRepo) GetPrincipalByEmail(ctx context.Context, email string) (domain.Principal, error) {
	row, err := r.q.GetPrincipalByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return domain.Principal{}, mapNotFound(err)
	}
	return mapPrincipal(row), nil
}

func (r *principalsRepo) ListPrincipals(ctx context.Context) ([]domain.Principal, error) {
	rows, err := r.q.ListPrincipals(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Principal, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapPrincipal(row))
	}
	return out, nil
}

func (r *principalsRepo) CreatePrincipal(ctx context.Context, p domain.Principal) error {
	created := p.CreatedAt
	if created.IsZero() {
		created = now()
	}
	err := r.q.CreatePrincipal(ctx, createPrincipalParams{
		ID:           p.ID,
		Name:         p.Name,
		Email:        strings.ToLower(strings.TrimSpace(p.Email)),
		PasswordHash: p.PasswordHash,
		Role:         string(p.Role),
		IsActive:     p.IsActive,
		CreatedAt:    created.UTC(),
	})
	return mapConstraint(err)
}

func (r *principalsRepo) IsEmpty(ctx context.Context) (bool, error) {
	count, err := r.q.CountPrincipals(ctx)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

func (r *principalsRepo) RecordFailedLogin(
	ctx context.Context,
	id string,
	threshold int,
	lockUntil time.Time,
) (domain.Principal, error) {
	if err := affected(r.q.RecordFailedLogin(ctx, id, threshold, lockUntil.UTC(), now())); err != nil {
		return domain.Principal{}, err
	}
	return r.GetPrincipalByID(ctx, id)
}

func (r *principalsRepo) ResetLockout(ctx context.Context, id string) error {
	return affected(r.q.ResetLockout(ctx, id, now()))
}

func (r *principalsRepo) SetTwoFactorCode(ctx context.Context, id string, challenge domain.TwoFactorChallenge) error {
	return affected(r.q.SetTwoFactorCode(ctx, id, challenge.Code, challenge.ExpiresAt.UTC(), now()))
}

func (r *principalsRepo) ClearTwoFactorCode(ctx context.Context, id string) error {
	return affected(r.q.ClearTwoFactorCode(ctx, id, now()))
}

func (r *principalsRepo) CompleteLogin(ctx context.Context, id, code string, at time.Time) error {
	return affected(r.q.CompleteLogin(ctx, id, code, at.UTC()))
}

func (r *principalsRepo) SetActive(ctx context.Context, id string, active bool) error {
	return affected(r.q.SetActive(ctx, id, active, now()))
}
