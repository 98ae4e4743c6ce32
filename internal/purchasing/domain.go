package purchasing

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Purchase order lifecycle statuses.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusSent              Status = "sent"
	StatusConfirmed         Status = "confirmed"
	StatusPartiallyReceived Status = "partially_received"
	StatusReceived          Status = "received"
	StatusCancelled         Status = "cancelled"
)

// IsValid reports whether s is one of the enumerated statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusConfirmed, StatusPartiallyReceived, StatusReceived, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusReceived || s == StatusCancelled
}

// TaxRate is the fixed tax policy applied to every purchase order subtotal.
var TaxRate = decimal.NewFromFloat(0.08)

// PurchaseOrder is the aggregate for one order against a supplier.
type PurchaseOrder struct {
	ID           int64  `json:"id"`
	Number       string `json:"number"`
	ShopID       int64  `json:"shop_id"`
	SupplierID   int64  `json:"supplier_id"`
	SupplierName string `json:"supplier_name"`
	Status       Status `json:"status"`

	Items []LineItem `json:"items"`

	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`

	ExpectedDeliveryDate *time.Time `json:"expected_delivery_date,omitempty"`
	ActualDeliveryDate   *time.Time `json:"actual_delivery_date,omitempty"`
	SentAt               *time.Time `json:"sent_at,omitempty"`
	ReceivedAt           *time.Time `json:"received_at,omitempty"`

	Terms string `json:"terms"`
	Notes string `json:"notes"`

	CreatedBy  int64      `json:"created_by"`
	ApprovedBy *int64     `json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`

	StatusHistory []StatusChange `json:"status_history"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LineItem is one product entry within a purchase order.
type LineItem struct {
	ID               int64           `json:"id"`
	POID             int64           `json:"po_id"`
	ProductID        int64           `json:"product_id"`
	ProductName      string          `json:"product_name"`
	Quantity         int64           `json:"quantity"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	LineTotal        decimal.Decimal `json:"line_total"`
	ReceivedQuantity int64           `json:"received_quantity"`
	Notes            string          `json:"notes"`
}

// StatusChange is one append-only status history entry.
type StatusChange struct {
	Status    Status    `json:"status"`
	ActorID   int64     `json:"actor_id"`
	Note      string    `json:"note"`
	ChangedAt time.Time `json:"changed_at"`
}

// CompletionPercentage returns the rounded received/ordered ratio across all lines.
func (po *PurchaseOrder) CompletionPercentage() int {
	var ordered, received int64
	for _, item := range po.Items {
		ordered += item.Quantity
		received += item.ReceivedQuantity
	}
	if ordered <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(received) / float64(ordered)))
}

// DaysOverdue returns full days elapsed past the expected delivery date, zero
// when delivered, cancelled, not yet due, or no expected date is set.
func (po *PurchaseOrder) DaysOverdue(now time.Time) int {
	if po.Status == StatusReceived || po.Status == StatusCancelled {
		return 0
	}
	if po.ExpectedDeliveryDate == nil || !now.After(*po.ExpectedDeliveryDate) {
		return 0
	}
	days := int(math.Ceil(now.Sub(*po.ExpectedDeliveryDate).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}

// fullyReceived reports whether every line met or exceeded its ordered quantity.
func (po *PurchaseOrder) fullyReceived() bool {
	if len(po.Items) == 0 {
		return false
	}
	for _, item := range po.Items {
		if item.ReceivedQuantity < item.Quantity {
			return false
		}
	}
	return true
}

// anyReceived reports whether any line recorded a receipt.
func (po *PurchaseOrder) anyReceived() bool {
	for _, item := range po.Items {
		if item.ReceivedQuantity > 0 {
			return true
		}
	}
	return false
}

var (
	// ErrNotFound indicates the purchase order or a referenced record is missing.
	ErrNotFound = errors.New("purchasing: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("purchasing: invalid input")
	// ErrInvalidState occurs when an action violates the status workflow.
	ErrInvalidState = errors.New("purchasing: invalid state transition")
	// ErrDuplicateNumber indicates a PO number collision.
	ErrDuplicateNumber = errors.New("purchasing: duplicate order number")
)
