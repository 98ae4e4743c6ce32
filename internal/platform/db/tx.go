package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
)

const (
	txMaxRetries = 2
	txRetryDelay = 10 * time.Millisecond
)

// WithTx runs fn inside a repeatable-read transaction. A transaction that
// PostgreSQL aborts with a serialization failure or deadlock is rerun from
// the top with a fresh snapshot, so fn must be safe to run more than once.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	return withTxRetry(ctx, func(ctx context.Context) error {
		return runTx(ctx, pool, fn)
	})
}

func runTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}
	return nil
}

func withTxRetry(ctx context.Context, attempt func(context.Context) error) error {
	backoff := retry.WithMaxRetries(txMaxRetries, retry.NewConstant(txRetryDelay))
	// lastErr keeps the attempt's own error; retry.Do would hand back its
	// retryable wrapper after the final attempt.
	var lastErr error
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		lastErr = attempt(ctx)
		if txRetryable(lastErr) {
			return retry.RetryableError(lastErr)
		}
		return lastErr
	})
	if err != nil {
		return lastErr
	}
	return nil
}

// txRetryable reports whether err is a transaction abort that a rerun with a
// fresh snapshot can resolve.
func txRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
}
