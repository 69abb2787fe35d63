package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// querier is the subset of *sql.DB and *sql.Tx the repositories use, so every
// query can run either standalone or inside a caller's transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction.  The transaction is committed when fn
// returns nil and rolled back otherwise, so a failure part way through leaves
// no partial state behind.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}

// Now returns the timestamp written by the repositories: UTC with whole
// seconds, so values compare identically in MySQL and SQLite.
func Now() time.Time { return time.Now().UTC().Truncate(time.Second) }

// Clock lets tests pin "now".  A nil Clock means Now.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return Now()
	}
	return c().UTC().Truncate(time.Second)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
