package sqlite

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so the same queries run
// inside and outside a transaction.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type queries struct {
	db DBTX
}

func newQueries(db DBTX) *queries { return &queries{db: db} }

const principalColumns = `id, name, email, password_hash, role, is_active, login_attempts, lock_until,
	two_factor_code, two_factor_code_expires, last_login, created_at, updated_at`

// principalRow mirrors the principals table.
type principalRow struct {
	ID                   string
	Name                 string
	Email                string
	PasswordHash         string
	Role                 string
	IsActive             bool
	LoginAttempts        int64
	LockUntil            sql.NullTime
	TwoFactorCode        sql.NullString
	TwoFactorCodeExpires sql.NullTime
	LastLogin            sql.NullTime
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(s scanner) (principalRow, error) {
	var r principalRow
	err := s.Scan(
		&r.ID,
		&r.Name,
		&r.Email,
		&r.PasswordHash,
		&r.Role,
		&r.IsActive,
		&r.LoginAttempts,
		&r.LockUntil,
		&r.TwoFactorCode,
		&r.TwoFactorCodeExpires,
		&r.LastLogin,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

const getPrincipalByID = `SELECT ` + principalColumns + ` FROM principals WHERE id = ?`

func (q *queries) GetPrincipalByID(ctx context.Context, id string) (principalRow, error) {
	return scanPrincipal(q.db.QueryRowContext(ctx, getPrincipalByID, id))
}

const getPrincipalByEmail = `SELECT ` + principalColumns + ` FROM principals WHERE email = ? COLLATE NOCASE`

func (q *queries) GetPrincipalByEmail(ctx context.Context, email string) (principalRow, error) {
	return scanPrincipal(q.db.QueryRowContext(ctx, getPrincipalByEmail, email))
}

const listPrincipals = `SELECT ` + principalColumns + ` FROM principals ORDER BY created_at, id`

func (q *queries) ListPrincipals(ctx context.Context) ([]principalRow, error) {
	rows, err := q.db.QueryContext(ctx, listPrincipals)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []principalRow
	for rows.Next() {
		r, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createPrincipal = `INSERT INTO principals (
	id, name, email, password_hash, role, is_active, login_attempts, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`

type createPrincipalParams struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}

func (q *queries) CreatePrincipal(ctx context.Context, arg createPrincipalParams) error {
	_, err := q.db.ExecContext(ctx, createPrincipal,
		arg.ID,
		arg.Name,
		arg.Email,
		arg.PasswordHash,
		arg.Role,
		arg.IsActive,
		arg.CreatedAt,
		arg.CreatedAt,
	)
	return err
}

const countPrincipals = `SELECT COUNT(*) FROM principals`

func (q *queries) CountPrincipals(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countPrincipals).Scan(&n)
	return n, err
}

// The CASE reads the pre-update login_attempts, so "+ 1" is the new count.
const recordFailedLogin = `UPDATE principals
SET login_attempts = login_attempts + 1,
	lock_until = CASE WHEN login_attempts + 1 >= ? THEN ? ELSE lock_until END,
	updated_at = ?
WHERE id = ?`

func (q *queries) RecordFailedLogin(ctx context.Context, id string, threshold int, lockUntil, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, recordFailedLogin, threshold, lockUntil, now, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const resetLockout = `UPDATE principals
SET login_attempts = 0, lock_until = NULL, updated_at = ?
WHERE id = ?`

func (q *queries) ResetLockout(ctx context.Context, id string, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, resetLockout, now, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const setTwoFactorCode = `UPDATE principals
SET two_factor_code = ?, two_factor_code_expires = ?, updated_at = ?
WHERE id = ?`

func (q *queries) SetTwoFactorCode(ctx context.Context, id, code string, expires, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, setTwoFactorCode, code, expires, now, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const clearTwoFactorCode = `UPDATE principals
SET two_factor_code = NULL, two_factor_code_expires = NULL, updated_at = ?
WHERE id = ?`

func (q *queries) ClearTwoFactorCode(ctx context.Context, id string, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, clearTwoFactorCode, now, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const completeLogin = `UPDATE principals
SET two_factor_code = NULL,
	two_factor_code_expires = NULL,
	login_attempts = 0,
	lock_until = NULL,
	last_login = ?,
	updated_at = ?
WHERE id = ? AND two_factor_code = ?`

func (q *queries) CompleteLogin(ctx context.Context, id, code string, at time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, completeLogin, at, at, id, code)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const setActive = `UPDATE principals SET is_active = ?, updated_at = ? WHERE id = ?`

func (q *queries) SetActive(ctx context.Context, id string, active bool, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, setActive, active, now, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
