package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository provides postgres-backed analytics queries.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ActiveShopIDs lists shops included in the nightly rollup.
func (r *Repository) ActiveShopIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM shops WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ShopStockAggregate sums live product stock for one shop.
func (r *Repository) ShopStockAggregate(ctx context.Context, shopID int64) (int64, decimal.Decimal, error) {
	var qty int64
	var value decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0),
		       COALESCE(SUM(quantity * unit_cost), 0)
		FROM products
		WHERE shop_id = $1 AND deleted_at IS NULL`, shopID).Scan(&qty, &value)
	return qty, value, err
}

// UpsertValuation stores the rollup row for a shop and day. Re-running a
// rollup for the same day overwrites the earlier figures.
func (r *Repository) UpsertValuation(ctx context.Context, v Valuation) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO stock_valuations (shop_id, valued_at, total_qty, total_value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (shop_id, valued_at)
		DO UPDATE SET total_qty = EXCLUDED.total_qty, total_value = EXCLUDED.total_value`,
		v.ShopID, v.ValuedAt, v.TotalQty, v.TotalValue)
	return err
}

// ValuationHistory returns rollup rows for the shop within the window,
// newest first.
func (r *Repository) ValuationHistory(ctx context.Context, shopID int64, since time.Time) ([]Valuation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, shop_id, valued_at, total_qty, total_value
		FROM stock_valuations
		WHERE shop_id = $1 AND valued_at >= $2::date
		ORDER BY valued_at DESC`, shopID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Valuation
	for rows.Next() {
		var v Valuation
		if err := rows.Scan(&v.ID, &v.ShopID, &v.ValuedAt, &v.TotalQty, &v.TotalValue); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
