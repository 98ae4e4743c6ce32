package purchasing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu            sync.Mutex
	pos           map[int64]PurchaseOrder
	lines         map[int64][]LineItem
	history       map[int64][]StatusChange
	stock         map[int64]int64
	counters      map[int]int64
	supplierNames map[int64]string
	productNames  map[int64]string
	nextID        int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		pos:           make(map[int64]PurchaseOrder),
		lines:         make(map[int64][]LineItem),
		history:       make(map[int64][]StatusChange),
		stock:         make(map[int64]int64),
		counters:      make(map[int]int64),
		supplierNames: make(map[int64]string),
		productNames:  make(map[int64]string),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) assemble(id int64) (PurchaseOrder, error) {
	po, ok := r.pos[id]
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	po.SupplierName = r.supplierNames[po.SupplierID]
	po.Items = append([]LineItem(nil), r.lines[id]...)
	for i := range po.Items {
		po.Items[i].ProductName = r.productNames[po.Items[i].ProductID]
	}
	po.StatusHistory = append([]StatusChange(nil), r.history[id]...)
	return po, nil
}

func (r *memoryRepo) GetPO(ctx context.Context, id int64) (PurchaseOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.assemble(id)
}

func (r *memoryRepo) ListPOs(ctx context.Context, limit, offset int, filters ListFilters) ([]POListItem, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []POListItem
	for _, po := range r.pos {
		if filters.Status != "" && string(po.Status) != filters.Status {
			continue
		}
		items = append(items, POListItem{ID: po.ID, Number: po.Number, ShopID: po.ShopID, SupplierID: po.SupplierID, Status: po.Status, Total: po.Total, CreatedAt: po.CreatedAt})
	}
	return items, len(items), nil
}

func (tx *memoryTx) alloc() int64 {
	tx.repo.nextID++
	return tx.repo.nextID
}

func (tx *memoryTx) LockPurchaseOrder(ctx context.Context, poID int64) error { return nil }

func (tx *memoryTx) NextNumber(ctx context.Context, year int) (int64, error) {
	tx.repo.counters[year]++
	return tx.repo.counters[year], nil
}

func (tx *memoryTx) CreatePO(ctx context.Context, po PurchaseOrder) (int64, error) {
	for _, existing := range tx.repo.pos {
		if existing.Number == po.Number {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateNumber, po.Number)
		}
	}
	id := tx.alloc()
	po.ID = id
	po.Items = nil
	po.StatusHistory = nil
	tx.repo.pos[id] = po
	return id, nil
}

func (tx *memoryTx) InsertLine(ctx context.Context, line LineItem) (int64, error) {
	line.ID = tx.alloc()
	tx.repo.lines[line.POID] = append(tx.repo.lines[line.POID], line)
	return line.ID, nil
}

func (tx *memoryTx) AppendHistory(ctx context.Context, poID int64, change StatusChange) error {
	tx.repo.history[poID] = append(tx.repo.history[poID], change)
	return nil
}

func (tx *memoryTx) GetPOForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	return tx.repo.assemble(id)
}

func (tx *memoryTx) SetStatus(ctx context.Context, poID int64, status Status, at time.Time) error {
	po := tx.repo.pos[poID]
	po.Status = status
	po.UpdatedAt = at
	tx.repo.pos[poID] = po
	return nil
}

func (tx *memoryTx) MarkSent(ctx context.Context, poID int64, at time.Time) error {
	po := tx.repo.pos[poID]
	if po.SentAt == nil {
		po.SentAt = &at
	}
	tx.repo.pos[poID] = po
	return nil
}

func (tx *memoryTx) MarkReceived(ctx context.Context, poID int64, at time.Time) error {
	po := tx.repo.pos[poID]
	if po.ReceivedAt == nil {
		po.ReceivedAt = &at
	}
	if po.ActualDeliveryDate == nil {
		po.ActualDeliveryDate = &at
	}
	tx.repo.pos[poID] = po
	return nil
}

func (tx *memoryTx) SetLineReceived(ctx context.Context, lineID int64, qty int64) error {
	for poID, lines := range tx.repo.lines {
		for i := range lines {
			if lines[i].ID == lineID {
				lines[i].ReceivedQuantity = qty
				tx.repo.lines[poID] = lines
				return nil
			}
		}
	}
	return ErrNotFound
}

func (tx *memoryTx) AdjustProductStock(ctx context.Context, productID int64, delta int64) error {
	tx.repo.stock[productID] += delta
	return nil
}

func (tx *memoryTx) BumpSupplierStats(ctx context.Context, supplierID int64, orderTotal decimal.Decimal, at time.Time) error {
	return nil
}

type stubMasterData struct {
	supplierOK bool
	missing    []int64
}

func (s *stubMasterData) SupplierInShop(ctx context.Context, supplierID, shopID int64) (bool, error) {
	return s.supplierOK, nil
}

func (s *stubMasterData) MissingProducts(ctx context.Context, shopID int64, productIDs []int64) ([]int64, error) {
	return s.missing, nil
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, &stubMasterData{supplierOK: true}, nil)
}

func cost(v string) decimal.Decimal {
	d, _ := decimal.NewFromString(v)
	return d
}

func TestCreateComputesTotals(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	po, err := svc.Create(ctx, CreateInput{
		ShopID:     1,
		SupplierID: 7,
		ActorID:    42,
		Items: []CreateItemInput{
			{ProductID: 11, Quantity: 3, UnitCost: cost("2.00")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, po.Status)
	require.True(t, po.Subtotal.Equal(cost("6.00")), "subtotal=%s", po.Subtotal)
	require.True(t, po.Tax.Equal(cost("0.48")), "tax=%s", po.Tax)
	require.True(t, po.Total.Equal(cost("6.48")), "total=%s", po.Total)
	require.Len(t, po.StatusHistory, 1)
	require.Equal(t, StatusDraft, po.StatusHistory[0].Status)

	year := time.Now().Year()
	require.Equal(t, fmt.Sprintf("PO-%d-000001", year), po.Number)
}

func TestGetResolvesRelatedNames(t *testing.T) {
	repo := newMemoryRepo()
	repo.supplierNames[7] = "Acme Traders"
	repo.productNames[11] = "Basmati Rice 5kg"
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{
		ShopID:     1,
		SupplierID: 7,
		Items:      []CreateItemInput{{ProductID: 11, Quantity: 2, UnitCost: cost("4.50")}},
	})
	require.NoError(t, err)

	po, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Acme Traders", po.SupplierName)
	require.Len(t, po.Items, 1)
	require.Equal(t, "Basmati Rice 5kg", po.Items[0].ProductName)
}

func TestCreateTotalInvariant(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	po, err := svc.Create(ctx, CreateInput{
		ShopID:     1,
		SupplierID: 7,
		Items: []CreateItemInput{
			{ProductID: 11, Quantity: 10, UnitCost: cost("19.99")},
			{ProductID: 12, Quantity: 4, UnitCost: cost("3.25")},
		},
	})
	require.NoError(t, err)
	require.True(t, po.Subtotal.Equal(cost("212.90")))
	require.True(t, po.Total.Equal(po.Subtotal.Add(po.Tax).Add(po.Shipping)))
	require.True(t, po.Tax.Equal(po.Subtotal.Mul(TaxRate).Round(2)))
}

func TestCreateValidation(t *testing.T) {
	repo := newMemoryRepo()
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreateInput
		md    *stubMasterData
	}{
		{"no items", CreateInput{ShopID: 1, SupplierID: 1}, &stubMasterData{supplierOK: true}},
		{"zero quantity", CreateInput{ShopID: 1, SupplierID: 1, Items: []CreateItemInput{{ProductID: 1, Quantity: 0}}}, &stubMasterData{supplierOK: true}},
		{"negative cost", CreateInput{ShopID: 1, SupplierID: 1, Items: []CreateItemInput{{ProductID: 1, Quantity: 1, UnitCost: cost("-1")}}}, &stubMasterData{supplierOK: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(repo, tc.md, nil)
			_, err := svc.Create(ctx, tc.input)
			require.ErrorIs(t, err, ErrValidation)
		})
	}

	t.Run("missing supplier", func(t *testing.T) {
		svc := NewService(repo, &stubMasterData{supplierOK: false}, nil)
		_, err := svc.Create(ctx, CreateInput{ShopID: 1, SupplierID: 9, Items: []CreateItemInput{{ProductID: 1, Quantity: 1}}})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("missing product", func(t *testing.T) {
		svc := NewService(repo, &stubMasterData{supplierOK: true, missing: []int64{1}}, nil)
		_, err := svc.Create(ctx, CreateInput{ShopID: 1, SupplierID: 9, Items: []CreateItemInput{{ProductID: 1, Quantity: 1}}})
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestNumbersUniqueUnderConcurrentCreate(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	const n = 25
	numbers := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			po, err := svc.Create(ctx, CreateInput{
				ShopID:     1,
				SupplierID: 7,
				Items:      []CreateItemInput{{ProductID: 11, Quantity: 1, UnitCost: cost("1.00")}},
			})
			require.NoError(t, err)
			numbers <- po.Number
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[string]bool)
	for number := range numbers {
		require.False(t, seen[number], "duplicate number %s", number)
		seen[number] = true
	}
	require.Len(t, seen, n)
}

func createOrder(t *testing.T, svc *Service, items ...CreateItemInput) PurchaseOrder {
	t.Helper()
	po, err := svc.Create(context.Background(), CreateInput{ShopID: 1, SupplierID: 7, Items: items})
	require.NoError(t, err)
	return po
}

func TestReceiveFull(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	po := createOrder(t, svc, CreateItemInput{ProductID: 11, Quantity: 3, UnitCost: cost("2.00")})

	result, err := svc.Receive(ctx, po.ID, ReceiveInput{Lines: []ReceiveLine{{ProductID: 11, ReceivedQuantity: 3}}})
	require.NoError(t, err)
	require.Equal(t, StatusReceived, result.Order.Status)
	require.Empty(t, result.Skipped)
	require.EqualValues(t, 3, repo.stock[11])
	require.NotNil(t, result.Order.ReceivedAt)
	require.NotNil(t, result.Order.ActualDeliveryDate)
	firstReceivedAt := *result.Order.ReceivedAt

	// Repeating the same cumulative quantities must not double stock or move timestamps.
	result, err = svc.Receive(ctx, po.ID, ReceiveInput{Lines: []ReceiveLine{{ProductID: 11, ReceivedQuantity: 3}}})
	require.NoError(t, err)
	require.Equal(t, StatusReceived, result.Order.Status)
	require.EqualValues(t, 3, repo.stock[11])
	require.Equal(t, firstReceivedAt, *result.Order.ReceivedAt)
}

func TestReceivePartial(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	po := createOrder(t, svc,
		CreateItemInput{ProductID: 11, Quantity: 10, UnitCost: cost("1.00")},
		CreateItemInput{ProductID: 12, Quantity: 10, UnitCost: cost("1.00")},
	)

	result, err := svc.Receive(ctx, po.ID, ReceiveInput{Lines: []ReceiveLine{{ProductID: 11, ReceivedQuantity: 5}}})
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyReceived, result.Order.Status)
	require.Nil(t, result.Order.ReceivedAt)
	require.EqualValues(t, 5, repo.stock[11])
	require.EqualValues(t, 0, repo.stock[12])
	require.Equal(t, 25, result.Order.CompletionPercentage())
}

func TestReceiveSkipsUnmatchedProducts(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	po := createOrder(t, svc, CreateItemInput{ProductID: 11, Quantity: 2, UnitCost: cost("1.00")})

	result, err := svc.Receive(ctx, po.ID, ReceiveInput{Lines: []ReceiveLine{
		{ProductID: 99, ReceivedQuantity: 4},
		{ProductID: 11, ReceivedQuantity: 1},
	}})
	require.NoError(t, err)
	require.Equal(t, []int64{99}, result.Skipped)
	require.Equal(t, StatusPartiallyReceived, result.Order.Status)
	require.EqualValues(t, 1, repo.stock[11])
	require.Zero(t, repo.stock[99])
}

func TestReceiveDownwardCorrection(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	po := createOrder(t, svc, CreateItemInput{ProductID: 11, Quantity: 10, UnitCost: cost("1.00")})

	_, err := svc.Receive(ctx, po.ID, ReceiveInput{Lines: []ReceiveLine{{ProductID: 11, ReceivedQuantity: 8}}})
	require.NoError(t, err)
	require.EqualValues(t, 8, repo.stock[11])

	result, err := svc.Receive(ctx, po.ID, ReceiveInput{Lines: []ReceiveLine{{ProductID: 11, ReceivedQuantity: 6}}})
	require.NoError(t, err)
	require.EqualValues(t, 6, repo.stock[11])
	require.EqualValues(t, 6, result.Order.Items[0].ReceivedQuantity)
	require.Equal(t, StatusPartiallyReceived, result.Order.Status)
}

func TestReceiveRejectsNegativeQuantity(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	po := createOrder(t, svc, CreateItemInput{ProductID: 11, Quantity: 5, UnitCost: cost("1.00")})
	_, err := svc.Receive(context.Background(), po.ID, ReceiveInput{Lines: []ReceiveLine{{ProductID: 11, ReceivedQuantity: -1}}})
	require.ErrorIs(t, err, ErrValidation)
}

func TestReceiveNotFound(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	_, err := svc.Receive(context.Background(), 404, ReceiveInput{Lines: []ReceiveLine{{ProductID: 1, ReceivedQuantity: 1}}})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCancelGuards(t *testing.T) {
	ctx := context.Background()

	for _, status := range []Status{StatusDraft, StatusSent, StatusConfirmed} {
		t.Run(string(status), func(t *testing.T) {
			repo := newMemoryRepo()
			svc := newTestService(repo)
			po := createOrder(t, svc, CreateItemInput{ProductID: 11, Quantity: 1, UnitCost: cost("1.00")})
			if status != StatusDraft {
				_, err := svc.UpdateStatus(ctx, po.ID, status, 1, "")
				require.NoError(t, err)
			}
			cancelled, err := svc.Cancel(ctx, po.ID, 1, "")
			require.NoError(t, err)
			require.Equal(t, StatusCancelled, cancelled.Status)
		})
	}

	t.Run("partially received", func(t *testing.T) {
		repo := newMemoryRepo()
		svc := newTestService(repo)
		po := createOrder(t, svc, CreateItemInput{ProductID: 11, Quantity: 5, UnitCost: cost("1.00")})
		_, err := svc.Receive(ctx, po.ID, ReceiveInput{Lines: []ReceiveLine{{ProductID: 11, ReceivedQuantity: 2}}})
		require.NoError(t, err)
		_, err = svc.Cancel(ctx, po.ID, 1, "")
		require.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("received", func(t *testing.T) {
		repo := newMemoryRepo()
		svc := newTestService(repo)
		po := createOrder(t, svc, CreateItemInput{ProductID: 11, Quantity: 5, UnitCost: cost("1.00")})
		_, err := svc.Receive(ctx, po.ID, ReceiveInput{Lines: []ReceiveLine{{ProductID: 11, ReceivedQuantity: 5}}})
		require.NoError(t, err)
		_, err = svc.Cancel(ctx, po.ID, 1, "")
		require.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestUpdateStatusStampsTimestampsOnce(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	po := createOrder(t, svc, CreateItemInput{ProductID: 11, Quantity: 1, UnitCost: cost("1.00")})

	sent, err := svc.UpdateStatus(ctx, po.ID, StatusSent, 1, "")
	require.NoError(t, err)
	require.NotNil(t, sent.SentAt)
	firstSentAt := *sent.SentAt

	_, err = svc.UpdateStatus(ctx, po.ID, StatusConfirmed, 1, "")
	require.NoError(t, err)

	again, err := svc.UpdateStatus(ctx, po.ID, StatusSent, 1, "")
	require.NoError(t, err)
	require.Equal(t, firstSentAt, *again.SentAt)

	received, err := svc.UpdateStatus(ctx, po.ID, StatusReceived, 1, "")
	require.NoError(t, err)
	require.NotNil(t, received.ReceivedAt)
	require.Len(t, received.StatusHistory, 5)
}

func TestUpdateStatusRejectsUnknown(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	po := createOrder(t, svc, CreateItemInput{ProductID: 11, Quantity: 1, UnitCost: cost("1.00")})
	_, err := svc.UpdateStatus(context.Background(), po.ID, Status("shipped"), 1, "")
	require.ErrorIs(t, err, ErrValidation)
}
