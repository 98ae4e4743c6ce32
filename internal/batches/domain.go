package batches

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Batch is a discrete received lot of a product with its own expiry date.
type Batch struct {
	ID          int64           `json:"id"`
	ShopID      int64           `json:"shop_id"`
	ProductID   int64           `json:"product_id"`
	BatchNumber string          `json:"batch_number"`
	Quantity    int64           `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	ExpiryDate  *time.Time      `json:"expiry_date,omitempty"`
	Expired     bool            `json:"expired"`
	ReceivedAt  time.Time       `json:"received_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ExpiryResult summarises one expiry check run.
type ExpiryResult struct {
	Checked int `json:"checked"`
	Expired int `json:"expired"`
}

// ListFilters narrows batch listings.
type ListFilters struct {
	ShopID    int64
	ProductID int64
	Expired   *bool
}

var (
	// ErrNotFound indicates a missing batch.
	ErrNotFound = errors.New("batches: not found")
)
