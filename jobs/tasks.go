package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskExpiryCheck sweeps batches past their expiry date.
	TaskExpiryCheck = "batches:expiry_check"
	// TaskValuationRollup snapshots per-shop stock value.
	TaskValuationRollup = "analytics:valuation_rollup"
)

// ExpiryCheckPayload parameterises an expiry sweep.
type ExpiryCheckPayload struct {
	RequestedAt time.Time `json:"requested_at"`
}

// NewExpiryCheckTask constructs an Asynq task for the expiry sweep.
func NewExpiryCheckTask() (*asynq.Task, error) {
	data, err := json.Marshal(ExpiryCheckPayload{RequestedAt: time.Now().UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpiryCheck, data), nil
}

// ValuationRollupPayload parameterises a valuation rollup.
type ValuationRollupPayload struct {
	RequestedAt time.Time `json:"requested_at"`
}

// NewValuationRollupTask constructs an Asynq task for the rollup.
func NewValuationRollupTask() (*asynq.Task, error) {
	data, err := json.Marshal(ValuationRollupPayload{RequestedAt: time.Now().UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskValuationRollup, data), nil
}
