package analytics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mu             sync.Mutex
	shopIDs        []int64
	stock          map[int64]StockValue
	failShops      map[int64]error
	aggregateCalls int
	valuations     map[int64]Valuation
	history        []Valuation
	historyCalls   int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		stock:      map[int64]StockValue{},
		failShops:  map[int64]error{},
		valuations: map[int64]Valuation{},
	}
}

func (m *mockRepo) ActiveShopIDs(context.Context) ([]int64, error) {
	return m.shopIDs, nil
}

func (m *mockRepo) ShopStockAggregate(_ context.Context, shopID int64) (int64, decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggregateCalls++
	if err := m.failShops[shopID]; err != nil {
		return 0, decimal.Zero, err
	}
	s := m.stock[shopID]
	return s.TotalQty, s.TotalValue, nil
}

func (m *mockRepo) UpsertValuation(_ context.Context, v Valuation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.valuations[v.ShopID] = v
	return nil
}

func (m *mockRepo) ValuationHistory(_ context.Context, shopID int64, since time.Time) ([]Valuation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyCalls++
	return m.history, nil
}

func newTestService(t *testing.T, repo RepositoryPort) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, cache, logger)
}

func TestStockValueCaches(t *testing.T) {
	repo := newMockRepo()
	repo.stock[7] = StockValue{TotalQty: 40, TotalValue: decimal.RequireFromString("123.50")}
	svc := newTestService(t, repo)

	ctx := context.Background()
	value, err := svc.StockValue(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(40), value.TotalQty)
	require.True(t, value.TotalValue.Equal(decimal.RequireFromString("123.50")))
	require.Equal(t, 1, repo.aggregateCalls)

	// Second read is served from cache.
	_, err = svc.StockValue(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, 1, repo.aggregateCalls)

	// Bumping the version forces a reload.
	require.NoError(t, svc.cache.Bump(ctx))
	repo.stock[7] = StockValue{TotalQty: 55, TotalValue: decimal.RequireFromString("200.00")}
	value, err = svc.StockValue(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(55), value.TotalQty)
	require.Equal(t, 2, repo.aggregateCalls)
}

func TestRunValuationRollup(t *testing.T) {
	repo := newMockRepo()
	repo.shopIDs = []int64{1, 2, 3}
	repo.stock[1] = StockValue{TotalQty: 10, TotalValue: decimal.RequireFromString("100.00")}
	repo.stock[2] = StockValue{TotalQty: 20, TotalValue: decimal.RequireFromString("250.00")}
	repo.failShops[3] = errors.New("connection reset")
	svc := newTestService(t, repo)

	result, err := svc.RunValuationRollup(context.Background(), time.Date(2026, 8, 31, 3, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 3, result.Shops)
	require.Equal(t, 1, result.Failed)

	require.Len(t, repo.valuations, 2)
	v := repo.valuations[2]
	require.Equal(t, int64(20), v.TotalQty)
	require.True(t, v.TotalValue.Equal(decimal.RequireFromString("250.00")))
	require.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), v.ValuedAt)
}

func TestRollupBumpsCacheVersion(t *testing.T) {
	repo := newMockRepo()
	repo.shopIDs = []int64{1}
	repo.stock[1] = StockValue{TotalQty: 5, TotalValue: decimal.RequireFromString("10.00")}
	svc := newTestService(t, repo)

	ctx := context.Background()
	_, err := svc.StockValue(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, repo.aggregateCalls)

	_, err = svc.RunValuationRollup(ctx, time.Now())
	require.NoError(t, err)

	// Rollup touched shop 1 once more; the bump means the next read misses.
	_, err = svc.StockValue(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 3, repo.aggregateCalls)
}

func TestHistoryDefaultsWindow(t *testing.T) {
	repo := newMockRepo()
	repo.history = []Valuation{{ID: 1, ShopID: 4, TotalQty: 9}}
	svc := newTestService(t, repo)

	items, err := svc.History(context.Background(), 4, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 1, repo.historyCalls)

	_, err = svc.History(context.Background(), 4, 0)
	require.NoError(t, err)
	require.Equal(t, 1, repo.historyCalls)
}
