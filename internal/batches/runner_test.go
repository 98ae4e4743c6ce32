package batches

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunnerSuccessRecordsStatus(t *testing.T) {
	var calls atomic.Int32
	runner := NewRunner(func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, 2, time.Millisecond, nil)

	status, err := runner.Execute(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, calls.Load())
	require.False(t, status.Running)
	require.NotNil(t, status.LastRun)
	require.Empty(t, status.LastError)
}

func TestRunnerRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	runner := NewRunner(func(ctx context.Context) error {
		if calls.Add(1) <= 2 {
			return errors.New("db unavailable")
		}
		return nil
	}, 2, time.Millisecond, nil)

	status, err := runner.Execute(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 3, calls.Load())
	require.NotNil(t, status.LastRun)
	require.Empty(t, status.LastError)
	require.False(t, status.Running)
}

func TestRunnerExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("still broken")
	runner := NewRunner(func(ctx context.Context) error {
		calls.Add(1)
		return boom
	}, 2, time.Millisecond, nil)

	status, err := runner.Execute(context.Background())
	require.ErrorIs(t, err, boom)
	require.EqualValues(t, 3, calls.Load())
	require.False(t, status.Running)
	require.Equal(t, boom.Error(), status.LastError)
	require.Nil(t, status.LastRun)
}

func TestRunnerSingleFlight(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	runner := NewRunner(func(ctx context.Context) error {
		calls.Add(1)
		<-release
		return nil
	}, 0, time.Millisecond, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := runner.Execute(context.Background())
		require.NoError(t, err)
	}()

	require.Eventually(t, func() bool {
		return runner.Status().Running
	}, time.Second, time.Millisecond)

	// A concurrent call observes the in-flight run without invoking the check.
	status, err := runner.Execute(context.Background())
	require.NoError(t, err)
	require.True(t, status.Running)
	require.EqualValues(t, 1, calls.Load())

	close(release)
	<-done
	require.False(t, runner.Status().Running)
	require.EqualValues(t, 1, calls.Load())
}

func TestRunnerClearsPreviousError(t *testing.T) {
	fail := true
	runner := NewRunner(func(ctx context.Context) error {
		if fail {
			return errors.New("transient")
		}
		return nil
	}, 0, time.Millisecond, nil)

	_, err := runner.Execute(context.Background())
	require.Error(t, err)
	require.NotEmpty(t, runner.Status().LastError)

	fail = false
	status, err := runner.Execute(context.Background())
	require.NoError(t, err)
	require.Empty(t, status.LastError)
	require.NotNil(t, status.LastRun)
}
