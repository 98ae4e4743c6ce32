package batches

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stocklane/stocklane/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	DueBatches(ctx context.Context, asOf time.Time) ([]Batch, error)
	MarkExpired(ctx context.Context, batchID int64) error
	AdjustProductStock(ctx context.Context, productID int64, delta int64) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// ListBatches returns batches, filtered and paginated.
func (r *Repository) ListBatches(ctx context.Context, limit, offset int, filters ListFilters) ([]Batch, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argNum := 1
	add := func(clause string, value any) {
		where += fmt.Sprintf(clause, argNum)
		args = append(args, value)
		argNum++
	}
	if filters.ShopID > 0 {
		add(` AND shop_id = $%d`, filters.ShopID)
	}
	if filters.ProductID > 0 {
		add(` AND product_id = $%d`, filters.ProductID)
	}
	if filters.Expired != nil {
		add(` AND expired = $%d`, *filters.Expired)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM batches`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := `SELECT id, shop_id, product_id, batch_number, quantity, unit_cost, expiry_date, expired, received_at, created_at
	FROM batches` + where + fmt.Sprintf(` ORDER BY expiry_date NULLS LAST, id LIMIT $%d OFFSET $%d`, argNum, argNum+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.ShopID, &b.ProductID, &b.BatchNumber, &b.Quantity, &b.UnitCost, &b.ExpiryDate, &b.Expired, &b.ReceivedAt, &b.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (tx *txRepo) DueBatches(ctx context.Context, asOf time.Time) ([]Batch, error) {
	rows, err := tx.tx.Query(ctx, `SELECT id, shop_id, product_id, batch_number, quantity, unit_cost, expiry_date, expired, received_at, created_at
		FROM batches
		WHERE NOT expired AND expiry_date IS NOT NULL AND expiry_date <= $1::date
		ORDER BY id
		FOR UPDATE`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var due []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.ShopID, &b.ProductID, &b.BatchNumber, &b.Quantity, &b.UnitCost, &b.ExpiryDate, &b.Expired, &b.ReceivedAt, &b.CreatedAt); err != nil {
			return nil, err
		}
		due = append(due, b)
	}
	return due, rows.Err()
}

func (tx *txRepo) MarkExpired(ctx context.Context, batchID int64) error {
	_, err := tx.tx.Exec(ctx, `UPDATE batches SET expired = TRUE WHERE id = $1`, batchID)
	return err
}

func (tx *txRepo) AdjustProductStock(ctx context.Context, productID int64, delta int64) error {
	_, err := tx.tx.Exec(ctx, `UPDATE products
		SET quantity = quantity + $1, godown_qty = godown_qty + $1, updated_at = NOW()
		WHERE id = $2`, delta, productID)
	return err
}
