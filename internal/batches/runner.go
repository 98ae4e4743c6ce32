package batches

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// CheckFunc is the fallible routine the runner executes.
type CheckFunc func(ctx context.Context) error

// RunStatus is the runner's shared status record. It lives for the process
// lifetime only and is never persisted.
type RunStatus struct {
	LastRun        *time.Time `json:"last_run"`
	LastDurationMs int64      `json:"last_duration_ms"`
	LastError      string     `json:"last_error,omitempty"`
	Running        bool       `json:"running"`
}

// Runner executes a check with bounded retries and single-flight semantics.
// The guard is cooperative: it prevents re-entrancy through this runner in a
// single process, not cross-process mutual exclusion.
type Runner struct {
	mu      sync.Mutex
	status  RunStatus
	check   CheckFunc
	retries uint64
	backoff time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewRunner constructs a runner around the given check.
func NewRunner(check CheckFunc, retries int, backoff time.Duration, logger *slog.Logger) *Runner {
	if retries < 0 {
		retries = 0
	}
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	return &Runner{
		check:   check,
		retries: uint64(retries),
		backoff: backoff,
		logger:  logger,
		now:     time.Now,
	}
}

// Status returns a snapshot of the current run status.
func (r *Runner) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Execute runs the check, retrying failed attempts with a fixed backoff.
// A call while a run is in flight observes the current status and does no
// work. On exhausting all attempts the final error is returned and recorded
// in LastError.
func (r *Runner) Execute(ctx context.Context) (RunStatus, error) {
	r.mu.Lock()
	if r.status.Running {
		snapshot := r.status
		r.mu.Unlock()
		return snapshot, nil
	}
	r.status.Running = true
	r.status.LastError = ""
	r.mu.Unlock()

	start := r.now()
	var lastErr error
	err := retry.Do(ctx, retry.WithMaxRetries(r.retries, retry.NewConstant(r.backoff)), func(ctx context.Context) error {
		if err := r.check(ctx); err != nil {
			lastErr = err
			if r.logger != nil {
				r.logger.Warn("check attempt failed", slog.Any("error", err))
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	elapsed := r.now().Sub(start)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Running = false
	r.status.LastDurationMs = elapsed.Milliseconds()
	if err != nil {
		if lastErr == nil {
			lastErr = err
		}
		r.status.LastError = lastErr.Error()
		return r.status, lastErr
	}
	finished := r.now()
	r.status.LastRun = &finished
	return r.status, nil
}
