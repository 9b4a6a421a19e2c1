package sqlite

import (
	"context"
	"database/sql"

	"github.com/jewelbox/backoffice/internal/auth/store"
)

type txStore struct {
	tx *sql.Tx
	q  *queries
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{
		tx: tx,
		q:  newQueries(tx),
	}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// nothing to close; the caller commits or rolls back and the outer DB stays open
func (t *txStore) Close() error { return nil }

// Ping is a no-op: the connection is held for the life of the transaction.
func (t *txStore) Ping(ctx context.Context) error {
	return nil
}

// Nested transactions are not supported.
func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Principals() store.Principals { return &principalsRepo{q: t.q} }

// no-op; migrations are applied before any transaction is opened
func (t *txStore) ApplyMigrations() error { return nil }
