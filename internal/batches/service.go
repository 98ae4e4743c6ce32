package batches

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stocklane/stocklane/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListBatches(ctx context.Context, limit, offset int, filters ListFilters) ([]Batch, int, error)
}

// ActivityPort reused from shared.
type ActivityPort interface {
	Record(ctx context.Context, log shared.ActivityLog) error
}

// Service owns batch queries and the expiry check routine.
type Service struct {
	repo     RepositoryPort
	activity ActivityPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the batches service.
func NewService(repo RepositoryPort, activity ActivityPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, activity: activity, logger: logger, now: time.Now}
}

// List returns a page of batches.
func (s *Service) List(ctx context.Context, limit, offset int, filters ListFilters) ([]Batch, int, error) {
	return s.repo.ListBatches(ctx, limit, offset, filters)
}

// RunExpiryCheck walks batches due on or before today, flags them expired and
// removes their remaining quantity from product stock. The whole sweep runs
// in one transaction.
func (s *Service) RunExpiryCheck(ctx context.Context) (ExpiryResult, error) {
	asOf := s.now()
	var result ExpiryResult
	var expired []Batch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		due, err := tx.DueBatches(ctx, asOf)
		if err != nil {
			return err
		}
		result.Checked = len(due)
		for _, batch := range due {
			if err := tx.MarkExpired(ctx, batch.ID); err != nil {
				return err
			}
			if batch.Quantity > 0 {
				if err := tx.AdjustProductStock(ctx, batch.ProductID, -batch.Quantity); err != nil {
					return err
				}
			}
			result.Expired++
			expired = append(expired, batch)
		}
		return nil
	})
	if err != nil {
		return ExpiryResult{}, err
	}
	for _, batch := range expired {
		s.recordActivity(ctx, batch)
	}
	if s.logger != nil {
		s.logger.Info("expiry check complete", slog.Int("checked", result.Checked), slog.Int("expired", result.Expired))
	}
	return result, nil
}

func (s *Service) recordActivity(ctx context.Context, batch Batch) {
	if s.activity == nil {
		return
	}
	_ = s.activity.Record(ctx, shared.ActivityLog{
		Action:   "BATCH_EXPIRED",
		Entity:   "batch",
		EntityID: fmt.Sprintf("%d", batch.ID),
		Meta: map[string]any{
			"product_id": batch.ProductID,
			"quantity":   batch.Quantity,
			"batch":      batch.BatchNumber,
		},
	})
}
