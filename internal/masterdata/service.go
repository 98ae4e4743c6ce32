package masterdata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stocklane/stocklane/internal/shared"
)

// RepositoryPort is the persistence surface the service depends on.
type RepositoryPort interface {
	CreateShop(ctx context.Context, s *Shop) error
	GetShop(ctx context.Context, id int64) (Shop, error)
	ListShops(ctx context.Context, f ListFilters) ([]Shop, int64, error)
	UpdateShop(ctx context.Context, s *Shop) error

	CreateCategory(ctx context.Context, c *Category) error
	ListCategories(ctx context.Context, shopID int64) ([]Category, error)

	CreateSupplier(ctx context.Context, s *Supplier) error
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
	ListSuppliers(ctx context.Context, f ListFilters) ([]Supplier, int64, error)
	UpdateSupplier(ctx context.Context, s *Supplier) error

	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context, f ListFilters) ([]Product, int64, error)
	UpdateProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, id int64) error
}

// ActivityPort records audit entries.
type ActivityPort interface {
	Record(ctx context.Context, log shared.ActivityLog) error
}

// Service implements master data use cases.
type Service struct {
	repo     RepositoryPort
	activity ActivityPort
	logger   *slog.Logger
}

func NewService(repo RepositoryPort, activity ActivityPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, activity: activity, logger: logger}
}

func (s *Service) CreateShop(ctx context.Context, shop *Shop) error {
	shop.Code = strings.TrimSpace(shop.Code)
	shop.Name = strings.TrimSpace(shop.Name)
	if shop.Code == "" || shop.Name == "" {
		return fmt.Errorf("%w: code and name are required", ErrValidation)
	}
	if err := s.repo.CreateShop(ctx, shop); err != nil {
		return err
	}
	s.recordActivity(ctx, "shop", shop.ID, "SHOP_CREATE", shop.Name)
	return nil
}

func (s *Service) GetShop(ctx context.Context, id int64) (Shop, error) {
	return s.repo.GetShop(ctx, id)
}

func (s *Service) ListShops(ctx context.Context, f ListFilters) ([]Shop, int64, error) {
	return s.repo.ListShops(ctx, f)
}

func (s *Service) UpdateShop(ctx context.Context, shop *Shop) error {
	if strings.TrimSpace(shop.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if err := s.repo.UpdateShop(ctx, shop); err != nil {
		return err
	}
	s.recordActivity(ctx, "shop", shop.ID, "SHOP_UPDATE", shop.Name)
	return nil
}

func (s *Service) CreateCategory(ctx context.Context, c *Category) error {
	c.Code = strings.TrimSpace(c.Code)
	c.Name = strings.TrimSpace(c.Name)
	if c.ShopID <= 0 || c.Code == "" || c.Name == "" {
		return fmt.Errorf("%w: shop_id, code and name are required", ErrValidation)
	}
	return s.repo.CreateCategory(ctx, c)
}

func (s *Service) ListCategories(ctx context.Context, shopID int64) ([]Category, error) {
	return s.repo.ListCategories(ctx, shopID)
}

func (s *Service) CreateSupplier(ctx context.Context, sup *Supplier) error {
	sup.Code = strings.TrimSpace(sup.Code)
	sup.Name = strings.TrimSpace(sup.Name)
	if sup.ShopID <= 0 || sup.Code == "" || sup.Name == "" {
		return fmt.Errorf("%w: shop_id, code and name are required", ErrValidation)
	}
	if sup.Rating < 0 || sup.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 0 and 5", ErrValidation)
	}
	if err := s.repo.CreateSupplier(ctx, sup); err != nil {
		return err
	}
	s.recordActivity(ctx, "supplier", sup.ID, "SUPPLIER_CREATE", sup.Name)
	return nil
}

func (s *Service) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

func (s *Service) ListSuppliers(ctx context.Context, f ListFilters) ([]Supplier, int64, error) {
	return s.repo.ListSuppliers(ctx, f)
}

func (s *Service) UpdateSupplier(ctx context.Context, sup *Supplier) error {
	if strings.TrimSpace(sup.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if sup.Rating < 0 || sup.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 0 and 5", ErrValidation)
	}
	if err := s.repo.UpdateSupplier(ctx, sup); err != nil {
		return err
	}
	s.recordActivity(ctx, "supplier", sup.ID, "SUPPLIER_UPDATE", sup.Name)
	return nil
}

func (s *Service) CreateProduct(ctx context.Context, p *Product) error {
	p.SKU = strings.TrimSpace(p.SKU)
	p.Name = strings.TrimSpace(p.Name)
	if p.ShopID <= 0 || p.SKU == "" || p.Name == "" {
		return fmt.Errorf("%w: shop_id, sku and name are required", ErrValidation)
	}
	if p.UnitCost.IsNegative() || p.Price.IsNegative() {
		return fmt.Errorf("%w: unit_cost and price must not be negative", ErrValidation)
	}
	if p.Quantity < 0 || p.GodownQty < 0 || p.StoreQty < 0 {
		return fmt.Errorf("%w: quantities must not be negative", ErrValidation)
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return err
	}
	s.recordActivity(ctx, "product", p.ID, "PRODUCT_CREATE", p.Name)
	return nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context, f ListFilters) ([]Product, int64, error) {
	return s.repo.ListProducts(ctx, f)
}

func (s *Service) UpdateProduct(ctx context.Context, p *Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if p.UnitCost.IsNegative() || p.Price.IsNegative() {
		return fmt.Errorf("%w: unit_cost and price must not be negative", ErrValidation)
	}
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return err
	}
	s.recordActivity(ctx, "product", p.ID, "PRODUCT_UPDATE", p.Name)
	return nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.recordActivity(ctx, "product", id, "PRODUCT_DELETE", "")
	return nil
}

func (s *Service) recordActivity(ctx context.Context, entity string, entityID int64, action, name string) {
	if s.activity == nil {
		return
	}
	var meta map[string]any
	if name != "" {
		meta = map[string]any{"name": name}
	}
	_ = s.activity.Record(ctx, shared.ActivityLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
