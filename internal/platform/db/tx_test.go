package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func serializationErr() error {
	return &pgconn.PgError{Code: pgerrcode.SerializationFailure, Message: "could not serialize access due to concurrent update"}
}

func TestWithTxRetryRerunsSerializationFailures(t *testing.T) {
	calls := 0
	err := withTxRetry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return serializationErr()
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestWithTxRetryGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := withTxRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return serializationErr()
	})
	require.Equal(t, 1+txMaxRetries, calls)

	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, pgerrcode.SerializationFailure, pgErr.Code)
	// The attempt's own error comes back, not a retry wrapper.
	require.Equal(t, serializationErr().Error(), err.Error())
}

func TestWithTxRetryDoesNotRerunOtherErrors(t *testing.T) {
	boom := errors.New("duplicate number")
	calls := 0
	err := withTxRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return fmt.Errorf("create: %w", boom)
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestTxRetryable(t *testing.T) {
	require.True(t, txRetryable(serializationErr()))
	require.True(t, txRetryable(&pgconn.PgError{Code: pgerrcode.DeadlockDetected}))
	require.True(t, txRetryable(fmt.Errorf("wrapped: %w", serializationErr())))
	require.False(t, txRetryable(&pgconn.PgError{Code: pgerrcode.UniqueViolation}))
	require.False(t, txRetryable(errors.New("plain")))
	require.False(t, txRetryable(nil))
}
