package masterdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides postgres-backed persistence for master data.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// --- shops ---

const shopCols = `id, code, name, address, is_active, created_at, updated_at`

func scanShop(row pgx.Row) (Shop, error) {
	var s Shop
	err := row.Scan(&s.ID, &s.Code, &s.Name, &s.Address, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *Repository) CreateShop(ctx context.Context, s *Shop) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO shops (code, name, address, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		s.Code, s.Name, s.Address, s.IsActive,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *Repository) GetShop(ctx context.Context, id int64) (Shop, error) {
	s, err := scanShop(r.pool.QueryRow(ctx,
		`SELECT `+shopCols+` FROM shops WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Shop{}, ErrNotFound
	}
	return s, err
}

func (r *Repository) ListShops(ctx context.Context, f ListFilters) ([]Shop, int64, error) {
	where := "TRUE"
	args := []any{}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where += fmt.Sprintf(" AND (name ILIKE $%d OR code ILIKE $%d)", len(args), len(args))
	}
	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		where += fmt.Sprintf(" AND is_active = $%d", len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM shops WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM shops WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`,
		shopCols, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Shop
	for rows.Next() {
		s, err := scanShop(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *Repository) UpdateShop(ctx context.Context, s *Shop) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE shops SET name = $1, address = $2, is_active = $3, updated_at = now()
		WHERE id = $4`,
		s.Name, s.Address, s.IsActive, s.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- categories ---

func (r *Repository) CreateCategory(ctx context.Context, c *Category) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO categories (shop_id, code, name, parent_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		c.ShopID, c.Code, c.Name, c.ParentID,
	).Scan(&c.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *Repository) ListCategories(ctx context.Context, shopID int64) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, shop_id, code, name, parent_id
		FROM categories WHERE shop_id = $1 ORDER BY name`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.ShopID, &c.Code, &c.Name, &c.ParentID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- suppliers ---

const supplierCols = `id, shop_id, code, name, contact_name, phone, email, address,
	payment_terms, rating, total_orders, total_spent, last_order_date, is_active, created_at, updated_at`

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.ShopID, &s.Code, &s.Name, &s.ContactName, &s.Phone, &s.Email,
		&s.Address, &s.PaymentTerms, &s.Rating, &s.TotalOrders, &s.TotalSpent, &s.LastOrderDate,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *Repository) CreateSupplier(ctx context.Context, s *Supplier) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO suppliers (shop_id, code, name, contact_name, phone, email, address, payment_terms, rating, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, total_orders, total_spent, created_at, updated_at`,
		s.ShopID, s.Code, s.Name, s.ContactName, s.Phone, s.Email, s.Address, s.PaymentTerms, s.Rating, s.IsActive,
	).Scan(&s.ID, &s.TotalOrders, &s.TotalSpent, &s.CreatedAt, &s.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *Repository) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	s, err := scanSupplier(r.pool.QueryRow(ctx,
		`SELECT `+supplierCols+` FROM suppliers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrNotFound
	}
	return s, err
}

func (r *Repository) ListSuppliers(ctx context.Context, f ListFilters) ([]Supplier, int64, error) {
	where := "shop_id = $1"
	args := []any{f.ShopID}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where += fmt.Sprintf(" AND (name ILIKE $%d OR code ILIKE $%d)", len(args), len(args))
	}
	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		where += fmt.Sprintf(" AND is_active = $%d", len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM suppliers WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`,
		supplierCols, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *Repository) UpdateSupplier(ctx context.Context, s *Supplier) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE suppliers SET name = $1, contact_name = $2, phone = $3, email = $4,
			address = $5, payment_terms = $6, rating = $7, is_active = $8, updated_at = now()
		WHERE id = $9`,
		s.Name, s.ContactName, s.Phone, s.Email, s.Address, s.PaymentTerms, s.Rating, s.IsActive, s.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SupplierInShop reports whether an active supplier belongs to the shop.
func (r *Repository) SupplierInShop(ctx context.Context, supplierID, shopID int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM suppliers WHERE id = $1 AND shop_id = $2 AND is_active
		)`, supplierID, shopID).Scan(&ok)
	return ok, err
}

// --- products ---

const productCols = `id, shop_id, sku, barcode, name, category_id, unit_cost, price,
	quantity, godown_qty, store_qty, is_active, deleted_at, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.ShopID, &p.SKU, &p.Barcode, &p.Name, &p.CategoryID,
		&p.UnitCost, &p.Price, &p.Quantity, &p.GodownQty, &p.StoreQty,
		&p.IsActive, &p.DeletedAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *Repository) CreateProduct(ctx context.Context, p *Product) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO products (shop_id, sku, barcode, name, category_id, unit_cost, price,
			quantity, godown_qty, store_qty, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`,
		p.ShopID, p.SKU, p.Barcode, p.Name, p.CategoryID, p.UnitCost, p.Price,
		p.Quantity, p.GodownQty, p.StoreQty, p.IsActive,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productCols+` FROM products WHERE id = $1 AND deleted_at IS NULL`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *Repository) ListProducts(ctx context.Context, f ListFilters) ([]Product, int64, error) {
	where := "shop_id = $1 AND deleted_at IS NULL"
	args := []any{f.ShopID}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where += fmt.Sprintf(" AND (name ILIKE $%d OR sku ILIKE $%d OR barcode ILIKE $%d)",
			len(args), len(args), len(args))
	}
	if f.CategoryID != nil {
		args = append(args, *f.CategoryID)
		where += fmt.Sprintf(" AND category_id = $%d", len(args))
	}
	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		where += fmt.Sprintf(" AND is_active = $%d", len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM products WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`,
		productCols, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *Repository) UpdateProduct(ctx context.Context, p *Product) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE products SET name = $1, barcode = $2, category_id = $3, unit_cost = $4,
			price = $5, is_active = $6, updated_at = now()
		WHERE id = $7 AND deleted_at IS NULL`,
		p.Name, p.Barcode, p.CategoryID, p.UnitCost, p.Price, p.IsActive, p.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE products SET deleted_at = now(), is_active = FALSE, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MissingProducts returns the ids from productIDs that do not exist as
// live products in the shop.
func (r *Repository) MissingProducts(ctx context.Context, shopID int64, productIDs []int64) ([]int64, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM products
		WHERE shop_id = $1 AND deleted_at IS NULL AND id = ANY($2)`,
		shopID, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	present := make(map[int64]bool, len(productIDs))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		present[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []int64
	for _, id := range productIDs {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
