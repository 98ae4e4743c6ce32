package purchasing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stocklane/stocklane/internal/platform/httpx"
	"github.com/stocklane/stocklane/internal/shared"
)

// Handler manages purchase order endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers purchase order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/list", h.list)
	r.Post("/create", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}/status", h.updateStatus)
	r.Post("/{id}/receive", h.receive)
	r.Delete("/{id}", h.cancel)
}

type createRequest struct {
	ShopID               int64               `json:"shop_id" validate:"required"`
	SupplierID           int64               `json:"supplier_id" validate:"required"`
	Items                []createItemRequest `json:"items" validate:"required,min=1,dive"`
	ExpectedDeliveryDate *time.Time          `json:"expected_delivery_date"`
	Terms                string              `json:"terms"`
	Notes                string              `json:"notes"`
}

type createItemRequest struct {
	ProductID int64   `json:"product_id" validate:"required"`
	Quantity  int64   `json:"quantity" validate:"required,min=1"`
	UnitCost  float64 `json:"unit_cost" validate:"min=0"`
	Notes     string  `json:"notes"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note"`
}

type receiveRequest struct {
	Items []receiveItemRequest `json:"items" validate:"required,min=1,dive"`
	Note  string               `json:"note"`
}

type receiveItemRequest struct {
	ProductID        int64 `json:"product_id" validate:"required"`
	ReceivedQuantity int64 `json:"received_quantity" validate:"min=0"`
}

type orderResponse struct {
	PurchaseOrder
	CompletionPercentage int `json:"completion_percentage"`
	DaysOverdue          int `json:"days_overdue"`
}

func (h *Handler) respondOrder(w http.ResponseWriter, status int, po PurchaseOrder) {
	httpx.JSON(w, status, orderResponse{
		PurchaseOrder:        po,
		CompletionPercentage: po.CompletionPercentage(),
		DaysOverdue:          po.DaysOverdue(time.Now()),
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	shopID, _ := strconv.ParseInt(q.Get("shop_id"), 10, 64)
	supplierID, _ := strconv.ParseInt(q.Get("supplier_id"), 10, 64)
	filters := ListFilters{
		ShopID:     shopID,
		Status:     q.Get("status"),
		SupplierID: supplierID,
		Search:     q.Get("search"),
		SortBy:     q.Get("sort"),
		SortDir:    q.Get("dir"),
	}
	if from, err := time.Parse("2006-01-02", q.Get("from")); err == nil {
		filters.From = from
	}
	if to, err := time.Parse("2006-01-02", q.Get("to")); err == nil {
		filters.To = to.AddDate(0, 0, 1)
	}

	items, total, err := h.service.List(r.Context(), limit, (page-1)*limit, filters)
	if err != nil {
		h.respondErr(w, r, "list purchase orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.NewPagination(page, limit, total),
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateInput{
		ShopID:               req.ShopID,
		SupplierID:           req.SupplierID,
		ExpectedDeliveryDate: req.ExpectedDeliveryDate,
		Terms:                req.Terms,
		Notes:                req.Notes,
		ActorID:              shared.ActorFromContext(r.Context()),
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, CreateItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitCost:  decimal.NewFromFloat(item.UnitCost),
			Notes:     item.Notes,
		})
	}
	po, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondErr(w, r, "create purchase order", err)
		return
	}
	h.respondOrder(w, http.StatusCreated, po)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	po, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, "get purchase order", err)
		return
	}
	h.respondOrder(w, http.StatusOK, po)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	var req updateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	po, err := h.service.UpdateStatus(r.Context(), id, Status(req.Status), shared.ActorFromContext(r.Context()), req.Note)
	if err != nil {
		h.respondErr(w, r, "update purchase order status", err)
		return
	}
	h.respondOrder(w, http.StatusOK, po)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	var req receiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := ReceiveInput{ActorID: shared.ActorFromContext(r.Context()), Note: req.Note}
	for _, item := range req.Items {
		input.Lines = append(input.Lines, ReceiveLine{ProductID: item.ProductID, ReceivedQuantity: item.ReceivedQuantity})
	}
	result, err := h.service.Receive(r.Context(), id, input)
	if err != nil {
		h.respondErr(w, r, "receive purchase order items", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"order": orderResponse{
			PurchaseOrder:        result.Order,
			CompletionPercentage: result.Order.CompletionPercentage(),
			DaysOverdue:          result.Order.DaysOverdue(time.Now()),
		},
		"skipped_product_ids": result.Skipped,
	})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	po, err := h.service.Cancel(r.Context(), id, shared.ActorFromContext(r.Context()), r.URL.Query().Get("note"))
	if err != nil {
		h.respondErr(w, r, "cancel purchase order", err)
		return
	}
	h.respondOrder(w, http.StatusOK, po)
}

func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, ErrDuplicateNumber):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
