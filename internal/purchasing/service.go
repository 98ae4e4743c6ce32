package purchasing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stocklane/stocklane/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPO(ctx context.Context, id int64) (PurchaseOrder, error)
	ListPOs(ctx context.Context, limit, offset int, filters ListFilters) ([]POListItem, int, error)
}

// MasterDataPort exposes the supplier/product lookups the engine depends on.
type MasterDataPort interface {
	SupplierInShop(ctx context.Context, supplierID, shopID int64) (bool, error)
	MissingProducts(ctx context.Context, shopID int64, productIDs []int64) ([]int64, error)
}

// ActivityPort reused from shared.
type ActivityPort interface {
	Record(ctx context.Context, log shared.ActivityLog) error
}

// Service orchestrates the purchase order lifecycle.
type Service struct {
	repo       RepositoryPort
	masterdata MasterDataPort
	activity   ActivityPort
	now        func() time.Time
}

// NewService constructs the purchasing service.
func NewService(repo RepositoryPort, masterdata MasterDataPort, activity ActivityPort) *Service {
	return &Service{repo: repo, masterdata: masterdata, activity: activity, now: time.Now}
}

// ListFilters narrows purchase order listings.
type ListFilters struct {
	ShopID     int64
	Status     string
	SupplierID int64
	From       time.Time
	To         time.Time
	Search     string
	SortBy     string
	SortDir    string
}

// POListItem is one row of the purchase order listing.
type POListItem struct {
	ID                   int64           `json:"id"`
	Number               string          `json:"number"`
	ShopID               int64           `json:"shop_id"`
	SupplierID           int64           `json:"supplier_id"`
	SupplierName         string          `json:"supplier_name"`
	Status               Status          `json:"status"`
	Total                decimal.Decimal `json:"total"`
	ExpectedDeliveryDate *time.Time      `json:"expected_delivery_date,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
}

// CreateInput describes the creation payload.
type CreateInput struct {
	ShopID               int64
	SupplierID           int64
	Items                []CreateItemInput
	ExpectedDeliveryDate *time.Time
	Terms                string
	Notes                string
	ActorID              int64
}

// CreateItemInput describes one ordered line.
type CreateItemInput struct {
	ProductID int64
	Quantity  int64
	UnitCost  decimal.Decimal
	Notes     string
}

// ReceiveInput carries cumulative received quantities per product.
type ReceiveInput struct {
	Lines   []ReceiveLine
	ActorID int64
	Note    string
}

// ReceiveLine sets the new cumulative received quantity for a product.
type ReceiveLine struct {
	ProductID        int64
	ReceivedQuantity int64
}

// ReceiveResult reports the updated order plus any input lines that matched no
// order line and were therefore not applied.
type ReceiveResult struct {
	Order   PurchaseOrder `json:"order"`
	Skipped []int64       `json:"skipped_product_ids"`
}

// Create validates references, computes totals and persists a draft order with
// the next sequential number for the year.
func (s *Service) Create(ctx context.Context, input CreateInput) (PurchaseOrder, error) {
	if input.ShopID == 0 || input.SupplierID == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: shop and supplier required", ErrValidation)
	}
	if len(input.Items) == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: at least one line item required", ErrValidation)
	}
	productIDs := make([]int64, 0, len(input.Items))
	for _, item := range input.Items {
		if item.ProductID == 0 {
			return PurchaseOrder{}, fmt.Errorf("%w: product required on every line", ErrValidation)
		}
		if item.Quantity < 1 {
			return PurchaseOrder{}, fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
		}
		if item.UnitCost.IsNegative() {
			return PurchaseOrder{}, fmt.Errorf("%w: unit cost must not be negative", ErrValidation)
		}
		productIDs = append(productIDs, item.ProductID)
	}

	ok, err := s.masterdata.SupplierInShop(ctx, input.SupplierID, input.ShopID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !ok {
		return PurchaseOrder{}, fmt.Errorf("%w: supplier %d", ErrNotFound, input.SupplierID)
	}
	missing, err := s.masterdata.MissingProducts(ctx, input.ShopID, productIDs)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if len(missing) > 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: product %d", ErrNotFound, missing[0])
	}

	now := s.now()
	subtotal := decimal.Zero
	items := make([]LineItem, 0, len(input.Items))
	for _, item := range input.Items {
		lineTotal := item.UnitCost.Mul(decimal.NewFromInt(item.Quantity))
		subtotal = subtotal.Add(lineTotal)
		items = append(items, LineItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitCost:  item.UnitCost,
			LineTotal: lineTotal,
			Notes:     item.Notes,
		})
	}
	tax := subtotal.Mul(TaxRate).Round(2)
	shipping := decimal.Zero
	po := PurchaseOrder{
		ShopID:               input.ShopID,
		SupplierID:           input.SupplierID,
		Status:               StatusDraft,
		Items:                items,
		Subtotal:             subtotal,
		Tax:                  tax,
		Shipping:             shipping,
		Total:                subtotal.Add(tax).Add(shipping),
		ExpectedDeliveryDate: input.ExpectedDeliveryDate,
		Terms:                input.Terms,
		Notes:                input.Notes,
		CreatedBy:            input.ActorID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		seq, err := tx.NextNumber(ctx, now.Year())
		if err != nil {
			return err
		}
		po.Number = fmt.Sprintf("PO-%d-%06d", now.Year(), seq)
		poID, err := tx.CreatePO(ctx, po)
		if err != nil {
			return err
		}
		po.ID = poID
		for i := range po.Items {
			po.Items[i].POID = poID
			lineID, err := tx.InsertLine(ctx, po.Items[i])
			if err != nil {
				return err
			}
			po.Items[i].ID = lineID
		}
		change := StatusChange{Status: StatusDraft, ActorID: input.ActorID, Note: "Purchase order created", ChangedAt: now}
		if err := tx.AppendHistory(ctx, poID, change); err != nil {
			return err
		}
		po.StatusHistory = append(po.StatusHistory, change)
		return tx.BumpSupplierStats(ctx, input.SupplierID, po.Total, now)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}

	s.recordActivity(ctx, input.ActorID, "PO_CREATE", po.ID, map[string]any{"number": po.Number, "total": po.Total.String()})
	return po, nil
}

// UpdateStatus is the administrative override: any enumerated status may be set
// regardless of the current one. First entry into sent or received stamps the
// corresponding timestamps once.
func (s *Service) UpdateStatus(ctx context.Context, poID int64, status Status, actorID int64, note string) (PurchaseOrder, error) {
	if !status.IsValid() {
		return PurchaseOrder{}, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	now := s.now()
	var updated PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockPurchaseOrder(ctx, poID); err != nil {
			return err
		}
		po, err := tx.GetPOForUpdate(ctx, poID)
		if err != nil {
			return err
		}
		if err := tx.SetStatus(ctx, poID, status, now); err != nil {
			return err
		}
		po.Status = status
		po.UpdatedAt = now
		if status == StatusSent && po.SentAt == nil {
			if err := tx.MarkSent(ctx, poID, now); err != nil {
				return err
			}
			po.SentAt = &now
		}
		if status == StatusReceived && po.ReceivedAt == nil {
			if err := tx.MarkReceived(ctx, poID, now); err != nil {
				return err
			}
			po.ReceivedAt = &now
			po.ActualDeliveryDate = &now
		}
		if note == "" {
			note = fmt.Sprintf("Status changed to %s", status)
		}
		change := StatusChange{Status: status, ActorID: actorID, Note: note, ChangedAt: now}
		if err := tx.AppendHistory(ctx, poID, change); err != nil {
			return err
		}
		po.StatusHistory = append(po.StatusHistory, change)
		updated = po
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordActivity(ctx, actorID, "PO_STATUS", poID, map[string]any{"status": string(status)})
	return updated, nil
}

// Receive applies cumulative received quantities against order lines, adjusts
// product stock by the per-line delta and derives the aggregate status. The
// whole operation runs in one transaction serialized per order.
func (s *Service) Receive(ctx context.Context, poID int64, input ReceiveInput) (ReceiveResult, error) {
	if len(input.Lines) == 0 {
		return ReceiveResult{}, fmt.Errorf("%w: no lines to receive", ErrValidation)
	}
	for _, line := range input.Lines {
		if line.ReceivedQuantity < 0 {
			return ReceiveResult{}, fmt.Errorf("%w: received quantity must not be negative", ErrValidation)
		}
	}

	now := s.now()
	var result ReceiveResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockPurchaseOrder(ctx, poID); err != nil {
			return err
		}
		po, err := tx.GetPOForUpdate(ctx, poID)
		if err != nil {
			return err
		}

		var skipped []int64
		for _, line := range input.Lines {
			idx := -1
			for i := range po.Items {
				if po.Items[i].ProductID == line.ProductID {
					idx = i
					break
				}
			}
			if idx < 0 {
				skipped = append(skipped, line.ProductID)
				continue
			}
			delta := line.ReceivedQuantity - po.Items[idx].ReceivedQuantity
			if delta == 0 {
				continue
			}
			po.Items[idx].ReceivedQuantity = line.ReceivedQuantity
			if err := tx.SetLineReceived(ctx, po.Items[idx].ID, line.ReceivedQuantity); err != nil {
				return err
			}
			// Downward corrections subtract the over-counted stock again so
			// product quantity stays consistent with cumulative receipts.
			if err := tx.AdjustProductStock(ctx, line.ProductID, delta); err != nil {
				return err
			}
		}

		switch {
		case po.fullyReceived():
			po.Status = StatusReceived
		case po.anyReceived():
			po.Status = StatusPartiallyReceived
		}
		if err := tx.SetStatus(ctx, poID, po.Status, now); err != nil {
			return err
		}
		if po.Status == StatusReceived && po.ReceivedAt == nil {
			if err := tx.MarkReceived(ctx, poID, now); err != nil {
				return err
			}
			po.ReceivedAt = &now
			po.ActualDeliveryDate = &now
		}
		change := StatusChange{Status: po.Status, ActorID: input.ActorID, Note: defaultNote(input.Note, "Items received"), ChangedAt: now}
		if err := tx.AppendHistory(ctx, poID, change); err != nil {
			return err
		}
		po.StatusHistory = append(po.StatusHistory, change)
		po.UpdatedAt = now
		result = ReceiveResult{Order: po, Skipped: skipped}
		return nil
	})
	if err != nil {
		return ReceiveResult{}, err
	}
	s.recordActivity(ctx, input.ActorID, "PO_RECEIVE", poID, map[string]any{
		"status":  string(result.Order.Status),
		"skipped": len(result.Skipped),
	})
	return result, nil
}

// Cancel marks the order cancelled. Orders with any recorded receipts cannot
// be cancelled.
func (s *Service) Cancel(ctx context.Context, poID int64, actorID int64, note string) (PurchaseOrder, error) {
	now := s.now()
	var updated PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockPurchaseOrder(ctx, poID); err != nil {
			return err
		}
		po, err := tx.GetPOForUpdate(ctx, poID)
		if err != nil {
			return err
		}
		if po.Status == StatusReceived || po.Status == StatusPartiallyReceived {
			return fmt.Errorf("%w: cannot cancel a %s order", ErrInvalidState, po.Status)
		}
		if err := tx.SetStatus(ctx, poID, StatusCancelled, now); err != nil {
			return err
		}
		change := StatusChange{Status: StatusCancelled, ActorID: actorID, Note: defaultNote(note, "Purchase order cancelled"), ChangedAt: now}
		if err := tx.AppendHistory(ctx, poID, change); err != nil {
			return err
		}
		po.Status = StatusCancelled
		po.UpdatedAt = now
		po.StatusHistory = append(po.StatusHistory, change)
		updated = po
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordActivity(ctx, actorID, "PO_CANCEL", poID, nil)
	return updated, nil
}

// Get returns the full purchase order with lines and history.
func (s *Service) Get(ctx context.Context, poID int64) (PurchaseOrder, error) {
	return s.repo.GetPO(ctx, poID)
}

// List returns a filtered page of purchase orders.
func (s *Service) List(ctx context.Context, limit, offset int, filters ListFilters) ([]POListItem, int, error) {
	return s.repo.ListPOs(ctx, limit, offset, filters)
}

func (s *Service) recordActivity(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.activity == nil {
		return
	}
	_ = s.activity.Record(ctx, shared.ActivityLog{ActorID: actorID, Action: action, Entity: "purchase_order", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func defaultNote(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
