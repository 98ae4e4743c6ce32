package purchasing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

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
	LockPurchaseOrder(ctx context.Context, poID int64) error
	NextNumber(ctx context.Context, year int) (int64, error)
	CreatePO(ctx context.Context, po PurchaseOrder) (int64, error)
	InsertLine(ctx context.Context, line LineItem) (int64, error)
	AppendHistory(ctx context.Context, poID int64, change StatusChange) error
	GetPOForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	SetStatus(ctx context.Context, poID int64, status Status, at time.Time) error
	MarkSent(ctx context.Context, poID int64, at time.Time) error
	MarkReceived(ctx context.Context, poID int64, at time.Time) error
	SetLineReceived(ctx context.Context, lineID int64, qty int64) error
	AdjustProductStock(ctx context.Context, productID int64, delta int64) error
	BumpSupplierStats(ctx context.Context, supplierID int64, orderTotal decimal.Decimal, at time.Time) error
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

// GetPO returns a purchase order with lines and status history.
func (r *Repository) GetPO(ctx context.Context, id int64) (PurchaseOrder, error) {
	return scanPO(ctx, r.pool, id, "")
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanPO(ctx context.Context, q querier, id int64, suffix string) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := q.QueryRow(ctx, `SELECT p.id, p.number, p.shop_id, p.supplier_id, COALESCE(s.name, '') AS supplier_name,
		p.status, p.subtotal, p.tax, p.shipping, p.total,
		p.expected_delivery_date, p.actual_delivery_date, p.sent_at, p.received_at,
		p.terms, p.notes, p.created_by, p.approved_by, p.approved_at, p.created_at, p.updated_at
		FROM purchase_orders p
		LEFT JOIN suppliers s ON s.id = p.supplier_id
		WHERE p.id=$1`+suffix, id).
		Scan(&po.ID, &po.Number, &po.ShopID, &po.SupplierID, &po.SupplierName, &po.Status,
			&po.Subtotal, &po.Tax, &po.Shipping, &po.Total,
			&po.ExpectedDeliveryDate, &po.ActualDeliveryDate, &po.SentAt, &po.ReceivedAt,
			&po.Terms, &po.Notes, &po.CreatedBy, &po.ApprovedBy, &po.ApprovedAt,
			&po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}

	rows, err := q.Query(ctx, `SELECT i.id, i.po_id, i.product_id, COALESCE(pr.name, '') AS product_name,
		i.quantity, i.unit_cost, i.line_total, i.received_quantity, i.notes
		FROM purchase_order_items i
		LEFT JOIN products pr ON pr.id = i.product_id
		WHERE i.po_id=$1 ORDER BY i.id`, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item LineItem
		if err := rows.Scan(&item.ID, &item.POID, &item.ProductID, &item.ProductName, &item.Quantity, &item.UnitCost, &item.LineTotal, &item.ReceivedQuantity, &item.Notes); err != nil {
			return PurchaseOrder{}, err
		}
		po.Items = append(po.Items, item)
	}
	if err := rows.Err(); err != nil {
		return PurchaseOrder{}, err
	}

	histRows, err := q.Query(ctx, `SELECT status, actor_id, note, changed_at
		FROM po_status_history WHERE po_id=$1 ORDER BY id`, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	defer histRows.Close()
	for histRows.Next() {
		var change StatusChange
		if err := histRows.Scan(&change.Status, &change.ActorID, &change.Note, &change.ChangedAt); err != nil {
			return PurchaseOrder{}, err
		}
		po.StatusHistory = append(po.StatusHistory, change)
	}
	if err := histRows.Err(); err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

// ListPOs returns purchase orders with supplier name, filtered and paginated.
func (r *Repository) ListPOs(ctx context.Context, limit, offset int, filters ListFilters) ([]POListItem, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argNum := 1
	add := func(clause string, value any) {
		where += fmt.Sprintf(clause, argNum)
		args = append(args, value)
		argNum++
	}
	if filters.ShopID > 0 {
		add(` AND p.shop_id = $%d`, filters.ShopID)
	}
	if filters.Status != "" {
		add(` AND p.status = $%d`, filters.Status)
	}
	if filters.SupplierID > 0 {
		add(` AND p.supplier_id = $%d`, filters.SupplierID)
	}
	if !filters.From.IsZero() {
		add(` AND p.created_at >= $%d`, filters.From)
	}
	if !filters.To.IsZero() {
		add(` AND p.created_at <= $%d`, filters.To)
	}
	if filters.Search != "" {
		add(` AND p.number ILIKE $%d`, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders p`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := `SELECT p.id, p.number, p.shop_id, p.supplier_id, COALESCE(s.name, '') AS supplier_name,
		p.status, p.total, p.expected_delivery_date, p.created_at
	FROM purchase_orders p
	LEFT JOIN suppliers s ON s.id = p.supplier_id` + where +
		` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir) +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, argNum, argNum+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []POListItem
	for rows.Next() {
		var item POListItem
		if err := rows.Scan(&item.ID, &item.Number, &item.ShopID, &item.SupplierID, &item.SupplierName,
			&item.Status, &item.Total, &item.ExpectedDeliveryDate, &item.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// sortOrder returns a safe ORDER BY clause for PO queries.
func sortOrder(sortBy, sortDir string) string {
	dir := "DESC"
	if sortDir == "asc" {
		dir = "ASC"
	}
	switch sortBy {
	case "number":
		return "p.number " + dir
	case "supplier":
		return "supplier_name " + dir
	case "expected_date":
		return "p.expected_delivery_date " + dir
	case "total":
		return "p.total " + dir
	case "status":
		return "p.status " + dir
	default:
		return "p.created_at DESC"
	}
}

// poLockSalt namespaces purchase-order advisory locks. XOR keeps the mapping
// from order id to lock key injective, so distinct orders never share a key.
const poLockSalt = int64(4401) << 32

func poLockKey(poID int64) int64 {
	return poLockSalt ^ poID
}

func (tx *txRepo) LockPurchaseOrder(ctx context.Context, poID int64) error {
	// Advisory lock scoped to the transaction serializes concurrent mutators
	// of the same order.
	_, err := tx.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, poLockKey(poID))
	return err
}

func (tx *txRepo) NextNumber(ctx context.Context, year int) (int64, error) {
	// The counter row is updated with a row lock, so sequence numbers never
	// repeat even under concurrent creation.
	var seq int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO po_counters (year, seq) VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET seq = po_counters.seq + 1
		RETURNING seq`, year).Scan(&seq)
	return seq, err
}

func (tx *txRepo) CreatePO(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO purchase_orders
		(number, shop_id, supplier_id, status, subtotal, tax, shipping, total,
		 expected_delivery_date, terms, notes, created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)
		RETURNING id`,
		po.Number, po.ShopID, po.SupplierID, po.Status,
		po.Subtotal, po.Tax, po.Shipping, po.Total,
		po.ExpectedDeliveryDate, po.Terms, po.Notes, po.CreatedBy, po.CreatedAt).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateNumber, po.Number)
		}
		return 0, err
	}
	return id, nil
}

func (tx *txRepo) InsertLine(ctx context.Context, line LineItem) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO purchase_order_items
		(po_id, product_id, quantity, unit_cost, line_total, received_quantity, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		line.POID, line.ProductID, line.Quantity, line.UnitCost, line.LineTotal, line.ReceivedQuantity, line.Notes).Scan(&id)
	return id, err
}

func (tx *txRepo) AppendHistory(ctx context.Context, poID int64, change StatusChange) error {
	_, err := tx.tx.Exec(ctx, `INSERT INTO po_status_history (po_id, status, actor_id, note, changed_at)
		VALUES ($1,$2,$3,$4,$5)`, poID, change.Status, change.ActorID, change.Note, change.ChangedAt)
	return err
}

func (tx *txRepo) GetPOForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	// FOR UPDATE OF keeps the row lock on the order itself; the outer-joined
	// supplier row must stay unlocked.
	return scanPO(ctx, tx.tx, id, " FOR UPDATE OF p")
}

func (tx *txRepo) SetStatus(ctx context.Context, poID int64, status Status, at time.Time) error {
	_, err := tx.tx.Exec(ctx, `UPDATE purchase_orders SET status=$1, updated_at=$2 WHERE id=$3`, status, at, poID)
	return err
}

func (tx *txRepo) MarkSent(ctx context.Context, poID int64, at time.Time) error {
	_, err := tx.tx.Exec(ctx, `UPDATE purchase_orders SET sent_at=$1 WHERE id=$2 AND sent_at IS NULL`, at, poID)
	return err
}

func (tx *txRepo) MarkReceived(ctx context.Context, poID int64, at time.Time) error {
	_, err := tx.tx.Exec(ctx, `UPDATE purchase_orders
		SET received_at=COALESCE(received_at, $1), actual_delivery_date=COALESCE(actual_delivery_date, $1::date)
		WHERE id=$2`, at, poID)
	return err
}

func (tx *txRepo) SetLineReceived(ctx context.Context, lineID int64, qty int64) error {
	_, err := tx.tx.Exec(ctx, `UPDATE purchase_order_items SET received_quantity=$1 WHERE id=$2`, qty, lineID)
	return err
}

func (tx *txRepo) AdjustProductStock(ctx context.Context, productID int64, delta int64) error {
	_, err := tx.tx.Exec(ctx, `UPDATE products
		SET quantity = quantity + $1, godown_qty = godown_qty + $1, updated_at = NOW()
		WHERE id = $2`, delta, productID)
	return err
}

func (tx *txRepo) BumpSupplierStats(ctx context.Context, supplierID int64, orderTotal decimal.Decimal, at time.Time) error {
	_, err := tx.tx.Exec(ctx, `UPDATE suppliers
		SET total_orders = total_orders + 1,
		    total_spent = total_spent + $1,
		    last_order_date = $2::date,
		    updated_at = NOW()
		WHERE id = $3`, orderTotal, at, supplierID)
	return err
}
