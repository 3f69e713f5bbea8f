package postgres

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// txMaxRetries bounds automatic retries of transactions that fail with a
// serialization or deadlock error.
const txMaxRetries = 3

// querier is the subset of pgx shared by pools and transactions, so the same
// statement helpers work in both scopes.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// retryable reports whether the transaction may succeed when replayed:
// serialization failures (40001), deadlocks (40P01), and lock timeouts
// (55P03).
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}

// withTx runs fn inside a transaction at the given isolation level,
// committing on nil and rolling back on error. Serialization and deadlock
// failures are replayed up to txMaxRetries times with jittered exponential
// backoff; everything else is returned as-is.
func withTx(ctx context.Context, pool *pgxpool.Pool, iso pgx.TxIsoLevel, fn func(tx pgx.Tx) error) error {
	backoff := 50 * time.Millisecond
	var lastErr error

	for attempt := 0; attempt <= txMaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := runTx(ctx, pool, iso, fn)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		if attempt == txMaxRetries {
			return errors.Wrapf(err, "transaction failed after %d retries", txMaxRetries)
		}
		lastErr = err

		jitter := time.Duration(rand.Int64N(int64(backoff / 4)))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}

	return lastErr
}

func runTx(ctx context.Context, pool *pgxpool.Pool, iso pgx.TxIsoLevel, fn func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: iso})
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}
