package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// rollupConcurrency bounds the per-shop fan-out of the nightly sweep.
const rollupConcurrency = 4

// RepositoryPort is the persistence surface the service depends on.
type RepositoryPort interface {
	ActiveShopIDs(ctx context.Context) ([]int64, error)
	ShopStockAggregate(ctx context.Context, shopID int64) (int64, decimal.Decimal, error)
	UpsertValuation(ctx context.Context, v Valuation) error
	ValuationHistory(ctx context.Context, shopID int64, since time.Time) ([]Valuation, error)
}

// Service coordinates stock valuation queries with the cache layer.
type Service struct {
	repo   RepositoryPort
	cache  *Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires a repository with a cache helper.
func NewService(repo RepositoryPort, cache *Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger, now: time.Now}
}

// StockValue returns the shop's current inventory valuation, served from
// cache when warm.
func (s *Service) StockValue(ctx context.Context, shopID int64) (StockValue, error) {
	key, err := s.cache.BuildKey(ctx, keyStockValue(shopID))
	if err != nil {
		return StockValue{}, err
	}
	var out StockValue
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		qty, value, err := s.repo.ShopStockAggregate(ctx, shopID)
		if err != nil {
			return nil, err
		}
		return StockValue{ShopID: shopID, TotalQty: qty, TotalValue: value, AsOf: s.now().UTC()}, nil
	})
	return out, err
}

// History returns persisted valuations for the last n days.
func (s *Service) History(ctx context.Context, shopID int64, days int) ([]Valuation, error) {
	if days < 1 || days > 365 {
		days = 30
	}
	key, err := s.cache.BuildKey(ctx, keyValuationHistory(shopID, days))
	if err != nil {
		return nil, err
	}
	var out []Valuation
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.repo.ValuationHistory(ctx, shopID, s.now().AddDate(0, 0, -days))
	})
	return out, err
}

// RunValuationRollup snapshots every active shop's stock into
// stock_valuations for asOf's date. Shops are processed concurrently; one
// shop failing does not abort the others. The cache version is bumped after
// the sweep so readers see fresh figures.
func (s *Service) RunValuationRollup(ctx context.Context, asOf time.Time) (RollupResult, error) {
	shopIDs, err := s.repo.ActiveShopIDs(ctx)
	if err != nil {
		return RollupResult{}, err
	}
	day := asOf.UTC().Truncate(24 * time.Hour)

	failures := make([]error, len(shopIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rollupConcurrency)
	for i, shopID := range shopIDs {
		g.Go(func() error {
			qty, value, err := s.repo.ShopStockAggregate(gctx, shopID)
			if err == nil {
				err = s.repo.UpsertValuation(gctx, Valuation{
					ShopID:     shopID,
					ValuedAt:   day,
					TotalQty:   qty,
					TotalValue: value,
				})
			}
			if err != nil {
				failures[i] = err
				if s.logger != nil {
					s.logger.Error("valuation rollup shop failed",
						slog.Int64("shop_id", shopID), slog.Any("error", err))
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	result := RollupResult{Shops: len(shopIDs)}
	for _, err := range failures {
		if err != nil {
			result.Failed++
		}
	}
	if err := s.cache.Bump(ctx); err != nil && s.logger != nil {
		s.logger.Warn("cache bump failed", slog.Any("error", err))
	}
	if s.logger != nil {
		s.logger.Info("valuation rollup finished",
			slog.Int("shops", result.Shops), slog.Int("failed", result.Failed))
	}
	return result, nil
}
