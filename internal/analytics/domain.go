package analytics

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// StockValue is the live valuation of a shop's inventory.
type StockValue struct {
	ShopID     int64           `json:"shop_id"`
	TotalQty   int64           `json:"total_qty"`
	TotalValue decimal.Decimal `json:"total_value"`
	AsOf       time.Time       `json:"as_of"`
}

// Valuation is one persisted nightly rollup row.
type Valuation struct {
	ID         int64           `json:"id"`
	ShopID     int64           `json:"shop_id"`
	ValuedAt   time.Time       `json:"valued_at"`
	TotalQty   int64           `json:"total_qty"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// RollupResult summarises one rollup sweep.
type RollupResult struct {
	Shops  int `json:"shops"`
	Failed int `json:"failed"`
}

// ErrNotFound indicates no valuation data for the shop.
var ErrNotFound = errors.New("analytics: not found")
