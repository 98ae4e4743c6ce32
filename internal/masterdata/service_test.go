package masterdata

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memoryRepo struct {
	mu        sync.Mutex
	nextID    int64
	shops     map[int64]Shop
	suppliers map[int64]Supplier
	products  map[int64]Product
	cats      map[int64]Category
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		shops:     map[int64]Shop{},
		suppliers: map[int64]Supplier{},
		products:  map[int64]Product{},
		cats:      map[int64]Category{},
	}
}

func (m *memoryRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memoryRepo) CreateShop(_ context.Context, s *Shop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.shops {
		if existing.Code == s.Code {
			return ErrDuplicate
		}
	}
	s.ID = m.id()
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	m.shops[s.ID] = *s
	return nil
}

func (m *memoryRepo) GetShop(_ context.Context, id int64) (Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shops[id]
	if !ok {
		return Shop{}, ErrNotFound
	}
	return s, nil
}

func (m *memoryRepo) ListShops(_ context.Context, f ListFilters) ([]Shop, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Shop
	for _, s := range m.shops {
		if f.Search != "" && !strings.Contains(strings.ToLower(s.Name), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, s)
	}
	return out, int64(len(out)), nil
}

func (m *memoryRepo) UpdateShop(_ context.Context, s *Shop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shops[s.ID]; !ok {
		return ErrNotFound
	}
	m.shops[s.ID] = *s
	return nil
}

func (m *memoryRepo) CreateCategory(_ context.Context, c *Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id()
	m.cats[c.ID] = *c
	return nil
}

func (m *memoryRepo) ListCategories(_ context.Context, shopID int64) ([]Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Category
	for _, c := range m.cats {
		if c.ShopID == shopID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryRepo) CreateSupplier(_ context.Context, s *Supplier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.suppliers {
		if existing.ShopID == s.ShopID && existing.Code == s.Code {
			return ErrDuplicate
		}
	}
	s.ID = m.id()
	m.suppliers[s.ID] = *s
	return nil
}

func (m *memoryRepo) GetSupplier(_ context.Context, id int64) (Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.suppliers[id]
	if !ok {
		return Supplier{}, ErrNotFound
	}
	return s, nil
}

func (m *memoryRepo) ListSuppliers(_ context.Context, f ListFilters) ([]Supplier, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Supplier
	for _, s := range m.suppliers {
		if s.ShopID == f.ShopID {
			out = append(out, s)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memoryRepo) UpdateSupplier(_ context.Context, s *Supplier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.suppliers[s.ID]; !ok {
		return ErrNotFound
	}
	m.suppliers[s.ID] = *s
	return nil
}

func (m *memoryRepo) CreateProduct(_ context.Context, p *Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.products {
		if existing.ShopID == p.ShopID && existing.SKU == p.SKU && existing.DeletedAt == nil {
			return ErrDuplicate
		}
	}
	p.ID = m.id()
	m.products[p.ID] = *p
	return nil
}

func (m *memoryRepo) GetProduct(_ context.Context, id int64) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok || p.DeletedAt != nil {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (m *memoryRepo) ListProducts(_ context.Context, f ListFilters) ([]Product, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Product
	for _, p := range m.products {
		if p.ShopID != f.ShopID || p.DeletedAt != nil {
			continue
		}
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

func (m *memoryRepo) UpdateProduct(_ context.Context, p *Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.products[p.ID]
	if !ok || existing.DeletedAt != nil {
		return ErrNotFound
	}
	m.products[p.ID] = *p
	return nil
}

func (m *memoryRepo) DeleteProduct(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok || p.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now()
	p.DeletedAt = &now
	p.IsActive = false
	m.products[id] = p
	return nil
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, nil, discardLogger())
}

func TestCreateShopValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	err := svc.CreateShop(context.Background(), &Shop{Code: "  ", Name: "Main"})
	require.ErrorIs(t, err, ErrValidation)

	shop := Shop{Code: "S1", Name: " Main Street ", IsActive: true}
	require.NoError(t, svc.CreateShop(context.Background(), &shop))
	require.NotZero(t, shop.ID)
	require.Equal(t, "Main Street", shop.Name)
}

func TestCreateShopDuplicateCode(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	require.NoError(t, svc.CreateShop(context.Background(), &Shop{Code: "S1", Name: "First"}))
	err := svc.CreateShop(context.Background(), &Shop{Code: "S1", Name: "Second"})
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestSupplierRatingBounds(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	err := svc.CreateSupplier(context.Background(), &Supplier{ShopID: 1, Code: "V1", Name: "Vendor", Rating: 6})
	require.ErrorIs(t, err, ErrValidation)

	sup := Supplier{ShopID: 1, Code: "V1", Name: "Vendor", Rating: 4}
	require.NoError(t, svc.CreateSupplier(context.Background(), &sup))
}

func TestProductRejectsNegativePricing(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	err := svc.CreateProduct(context.Background(), &Product{
		ShopID:   1,
		SKU:      "SKU-1",
		Name:     "Widget",
		UnitCost: decimal.NewFromInt(-1),
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestDeleteProductHidesIt(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	p := Product{ShopID: 1, SKU: "SKU-1", Name: "Widget", UnitCost: decimal.NewFromInt(2), Price: decimal.NewFromInt(3)}
	require.NoError(t, svc.CreateProduct(context.Background(), &p))

	require.NoError(t, svc.DeleteProduct(context.Background(), p.ID))

	_, err := svc.GetProduct(context.Background(), p.ID)
	require.ErrorIs(t, err, ErrNotFound)

	err = svc.DeleteProduct(context.Background(), p.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
