package masterdata

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Shop is one tenant of the system. All other records are shop-scoped.
type Shop struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Category represents a product category.
type Category struct {
	ID       int64  `json:"id"`
	ShopID   int64  `json:"shop_id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

// Supplier represents a vendor record.
type Supplier struct {
	ID            int64           `json:"id"`
	ShopID        int64           `json:"shop_id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	ContactName   string          `json:"contact_name"`
	Phone         string          `json:"phone"`
	Email         string          `json:"email"`
	Address       string          `json:"address"`
	PaymentTerms  string          `json:"payment_terms"`
	Rating        int             `json:"rating"`
	TotalOrders   int64           `json:"total_orders"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
	LastOrderDate *time.Time      `json:"last_order_date,omitempty"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Product represents a product entity. Quantity is the total on hand;
// godown and store quantities split it by location.
type Product struct {
	ID         int64           `json:"id"`
	ShopID     int64           `json:"shop_id"`
	SKU        string          `json:"sku"`
	Barcode    string          `json:"barcode"`
	Name       string          `json:"name"`
	CategoryID *int64          `json:"category_id,omitempty"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int64           `json:"quantity"`
	GodownQty  int64           `json:"godown_qty"`
	StoreQty   int64           `json:"store_qty"`
	IsActive   bool            `json:"is_active"`
	DeletedAt  *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ListFilters represents standard list filters.
type ListFilters struct {
	Page       int
	Limit      int
	ShopID     int64
	Search     string
	IsActive   *bool
	CategoryID *int64
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("masterdata: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("masterdata: invalid input")
	// ErrDuplicate indicates a code/SKU collision within a shop.
	ErrDuplicate = errors.New("masterdata: duplicate code")
)
