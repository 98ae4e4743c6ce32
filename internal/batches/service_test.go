package batches

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryBatchRepo struct {
	batches map[int64]Batch
	stock   map[int64]int64
}

type memoryBatchTx struct {
	repo *memoryBatchRepo
}

func newMemoryBatchRepo() *memoryBatchRepo {
	return &memoryBatchRepo{batches: make(map[int64]Batch), stock: make(map[int64]int64)}
}

func (r *memoryBatchRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryBatchTx{repo: r})
}

func (r *memoryBatchRepo) ListBatches(ctx context.Context, limit, offset int, filters ListFilters) ([]Batch, int, error) {
	var items []Batch
	for _, b := range r.batches {
		items = append(items, b)
	}
	return items, len(items), nil
}

func (tx *memoryBatchTx) DueBatches(ctx context.Context, asOf time.Time) ([]Batch, error) {
	var due []Batch
	for _, b := range tx.repo.batches {
		if b.Expired || b.ExpiryDate == nil {
			continue
		}
		if !b.ExpiryDate.After(asOf) {
			due = append(due, b)
		}
	}
	return due, nil
}

func (tx *memoryBatchTx) MarkExpired(ctx context.Context, batchID int64) error {
	b, ok := tx.repo.batches[batchID]
	if !ok {
		return ErrNotFound
	}
	b.Expired = true
	tx.repo.batches[batchID] = b
	return nil
}

func (tx *memoryBatchTx) AdjustProductStock(ctx context.Context, productID int64, delta int64) error {
	tx.repo.stock[productID] += delta
	return nil
}

func TestRunExpiryCheck(t *testing.T) {
	repo := newMemoryBatchRepo()
	now := time.Date(2026, 8, 31, 2, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 30)

	repo.batches[1] = Batch{ID: 1, ProductID: 10, Quantity: 5, ExpiryDate: &past}
	repo.batches[2] = Batch{ID: 2, ProductID: 11, Quantity: 3, ExpiryDate: &future}
	repo.batches[3] = Batch{ID: 3, ProductID: 12, Quantity: 7, ExpiryDate: &past, Expired: true}
	repo.batches[4] = Batch{ID: 4, ProductID: 13, Quantity: 2}
	repo.stock[10] = 20

	svc := NewService(repo, nil, nil)
	svc.now = func() time.Time { return now }

	result, err := svc.RunExpiryCheck(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Checked)
	require.Equal(t, 1, result.Expired)

	require.True(t, repo.batches[1].Expired)
	require.False(t, repo.batches[2].Expired)
	require.EqualValues(t, 15, repo.stock[10])

	// Already-expired and no-expiry batches stay untouched.
	require.EqualValues(t, 0, repo.stock[12])
	require.False(t, repo.batches[4].Expired)

	// A second sweep finds nothing new.
	result, err = svc.RunExpiryCheck(context.Background())
	require.NoError(t, err)
	require.Zero(t, result.Expired)
	require.EqualValues(t, 15, repo.stock[10])
}
