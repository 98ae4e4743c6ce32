package masterdata

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stocklane/stocklane/internal/platform/httpx"
	"github.com/stocklane/stocklane/internal/shared"
)

// Handler manages master data endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountShopRoutes registers shop routes.
func (h *Handler) MountShopRoutes(r chi.Router) {
	r.Get("/list", h.listShops)
	r.Post("/create", h.createShop)
	r.Get("/{id}", h.getShop)
	r.Put("/{id}", h.updateShop)
	r.Get("/{id}/categories", h.listCategories)
	r.Post("/{id}/categories", h.createCategory)
}

// MountSupplierRoutes registers supplier routes.
func (h *Handler) MountSupplierRoutes(r chi.Router) {
	r.Get("/list", h.listSuppliers)
	r.Post("/create", h.createSupplier)
	r.Get("/{id}", h.getSupplier)
	r.Put("/{id}", h.updateSupplier)
}

// MountProductRoutes registers product routes.
func (h *Handler) MountProductRoutes(r chi.Router) {
	r.Get("/list", h.listProducts)
	r.Post("/create", h.createProduct)
	r.Get("/{id}", h.getProduct)
	r.Put("/{id}", h.updateProduct)
	r.Delete("/{id}", h.deleteProduct)
}

func listFiltersFromQuery(r *http.Request) ListFilters {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	f := ListFilters{
		Page:   page,
		Limit:  limit,
		Search: q.Get("search"),
	}
	f.ShopID, _ = strconv.ParseInt(q.Get("shop_id"), 10, 64)
	if v := q.Get("is_active"); v != "" {
		active := v == "true" || v == "1"
		f.IsActive = &active
	}
	if v, err := strconv.ParseInt(q.Get("category_id"), 10, 64); err == nil && v > 0 {
		f.CategoryID = &v
	}
	return f
}

// --- shops ---

type shopRequest struct {
	Code     string `json:"code" validate:"required,max=32"`
	Name     string `json:"name" validate:"required,max=255"`
	Address  string `json:"address"`
	IsActive *bool  `json:"is_active"`
}

func (h *Handler) createShop(w http.ResponseWriter, r *http.Request) {
	var req shopRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	shop := Shop{Code: req.Code, Name: req.Name, Address: req.Address, IsActive: true}
	if req.IsActive != nil {
		shop.IsActive = *req.IsActive
	}
	if err := h.service.CreateShop(r.Context(), &shop); err != nil {
		h.respondErr(w, r, "create shop", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, shop)
}

func (h *Handler) getShop(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	shop, err := h.service.GetShop(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, "get shop", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shop)
}

func (h *Handler) listShops(w http.ResponseWriter, r *http.Request) {
	f := listFiltersFromQuery(r)
	shops, total, err := h.service.ListShops(r.Context(), f)
	if err != nil {
		h.respondErr(w, r, "list shops", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      shops,
		"pagination": shared.NewPagination(f.Page, f.Limit, int(total)),
	})
}

func (h *Handler) updateShop(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	var req shopRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	shop, err := h.service.GetShop(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, "get shop", err)
		return
	}
	shop.Name = req.Name
	shop.Address = req.Address
	if req.IsActive != nil {
		shop.IsActive = *req.IsActive
	}
	if err := h.service.UpdateShop(r.Context(), &shop); err != nil {
		h.respondErr(w, r, "update shop", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shop)
}

// --- categories ---

type categoryRequest struct {
	Code     string `json:"code" validate:"required,max=32"`
	Name     string `json:"name" validate:"required,max=255"`
	ParentID *int64 `json:"parent_id"`
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	shopID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	var req categoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	cat := Category{ShopID: shopID, Code: req.Code, Name: req.Name, ParentID: req.ParentID}
	if err := h.service.CreateCategory(r.Context(), &cat); err != nil {
		h.respondErr(w, r, "create category", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, cat)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	shopID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	cats, err := h.service.ListCategories(r.Context(), shopID)
	if err != nil {
		h.respondErr(w, r, "list categories", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": cats})
}

// --- suppliers ---

type supplierRequest struct {
	ShopID       int64  `json:"shop_id" validate:"required"`
	Code         string `json:"code" validate:"required,max=32"`
	Name         string `json:"name" validate:"required,max=255"`
	ContactName  string `json:"contact_name"`
	Phone        string `json:"phone"`
	Email        string `json:"email" validate:"omitempty,email"`
	Address      string `json:"address"`
	PaymentTerms string `json:"payment_terms"`
	Rating       int    `json:"rating" validate:"min=0,max=5"`
	IsActive     *bool  `json:"is_active"`
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sup := Supplier{
		ShopID:       req.ShopID,
		Code:         req.Code,
		Name:         req.Name,
		ContactName:  req.ContactName,
		Phone:        req.Phone,
		Email:        req.Email,
		Address:      req.Address,
		PaymentTerms: req.PaymentTerms,
		Rating:       req.Rating,
		IsActive:     true,
	}
	if req.IsActive != nil {
		sup.IsActive = *req.IsActive
	}
	if err := h.service.CreateSupplier(r.Context(), &sup); err != nil {
		h.respondErr(w, r, "create supplier", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sup)
}

func (h *Handler) getSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	sup, err := h.service.GetSupplier(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, "get supplier", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sup)
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	f := listFiltersFromQuery(r)
	sups, total, err := h.service.ListSuppliers(r.Context(), f)
	if err != nil {
		h.respondErr(w, r, "list suppliers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      sups,
		"pagination": shared.NewPagination(f.Page, f.Limit, int(total)),
	})
}

func (h *Handler) updateSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	var req supplierRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	sup, err := h.service.GetSupplier(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, "get supplier", err)
		return
	}
	sup.Name = req.Name
	sup.ContactName = req.ContactName
	sup.Phone = req.Phone
	sup.Email = req.Email
	sup.Address = req.Address
	sup.PaymentTerms = req.PaymentTerms
	sup.Rating = req.Rating
	if req.IsActive != nil {
		sup.IsActive = *req.IsActive
	}
	if err := h.service.UpdateSupplier(r.Context(), &sup); err != nil {
		h.respondErr(w, r, "update supplier", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sup)
}

// --- products ---

type productRequest struct {
	ShopID     int64   `json:"shop_id" validate:"required"`
	SKU        string  `json:"sku" validate:"required,max=64"`
	Barcode    string  `json:"barcode"`
	Name       string  `json:"name" validate:"required,max=255"`
	CategoryID *int64  `json:"category_id"`
	UnitCost   float64 `json:"unit_cost" validate:"min=0"`
	Price      float64 `json:"price" validate:"min=0"`
	Quantity   int64   `json:"quantity" validate:"min=0"`
	GodownQty  int64   `json:"godown_qty" validate:"min=0"`
	StoreQty   int64   `json:"store_qty" validate:"min=0"`
	IsActive   *bool   `json:"is_active"`
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p := Product{
		ShopID:     req.ShopID,
		SKU:        req.SKU,
		Barcode:    req.Barcode,
		Name:       req.Name,
		CategoryID: req.CategoryID,
		UnitCost:   decimal.NewFromFloat(req.UnitCost),
		Price:      decimal.NewFromFloat(req.Price),
		Quantity:   req.Quantity,
		GodownQty:  req.GodownQty,
		StoreQty:   req.StoreQty,
		IsActive:   true,
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if err := h.service.CreateProduct(r.Context(), &p); err != nil {
		h.respondErr(w, r, "create product", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	f := listFiltersFromQuery(r)
	products, total, err := h.service.ListProducts(r.Context(), f)
	if err != nil {
		h.respondErr(w, r, "list products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      products,
		"pagination": shared.NewPagination(f.Page, f.Limit, int(total)),
	})
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, "get product", err)
		return
	}
	p.Name = req.Name
	p.Barcode = req.Barcode
	p.CategoryID = req.CategoryID
	p.UnitCost = decimal.NewFromFloat(req.UnitCost)
	p.Price = decimal.NewFromFloat(req.Price)
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if err := h.service.UpdateProduct(r.Context(), &p); err != nil {
		h.respondErr(w, r, "update product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		h.respondErr(w, r, "delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
