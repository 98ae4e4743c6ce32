package batches

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/stocklane/stocklane/internal/observability"
)

// ExpiryJob bridges the scheduler to the runner. Scheduler fires are
// fire-and-forget: retries happen inside Runner.Execute only.
type ExpiryJob struct {
	runner  *Runner
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewExpiryJob constructs a job handler.
func NewExpiryJob(runner *Runner, logger *slog.Logger, metrics *observability.Metrics) *ExpiryJob {
	return &ExpiryJob{runner: runner, logger: logger, metrics: metrics}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *ExpiryJob) Handle(ctx context.Context, task *asynq.Task) error {
	if _, err := j.runner.Execute(ctx); err != nil {
		if j.logger != nil {
			j.logger.Error("scheduled expiry check", slog.Any("error", err))
		}
		j.metrics.ObserveJobRun(task.Type(), "failure")
		return asynq.SkipRetry
	}
	j.metrics.ObserveJobRun(task.Type(), "success")
	return nil
}
