package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stocklane/stocklane/internal/observability"
)

// RollupJob bridges the scheduler to the valuation rollup.
type RollupJob struct {
	service *Service
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewRollupJob(service *Service, logger *slog.Logger, metrics *observability.Metrics) *RollupJob {
	return &RollupJob{service: service, logger: logger, metrics: metrics}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *RollupJob) Handle(ctx context.Context, task *asynq.Task) error {
	result, err := j.service.RunValuationRollup(ctx, time.Now())
	if err != nil {
		if j.logger != nil {
			j.logger.Error("scheduled valuation rollup", slog.Any("error", err))
		}
		j.metrics.ObserveJobRun(task.Type(), "failure")
		return asynq.SkipRetry
	}
	status := "success"
	if result.Failed > 0 {
		status = "partial"
	}
	j.metrics.ObserveJobRun(task.Type(), status)
	return nil
}
