package batches

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stocklane/stocklane/internal/platform/httpx"
	"github.com/stocklane/stocklane/internal/shared"
)

// Handler manages batch and expiry-run endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	runner  *Runner
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, runner *Runner) *Handler {
	return &Handler{logger: logger, service: service, runner: runner}
}

// MountRoutes registers batch routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/list", h.list)
	r.Post("/_run-expiry", h.runExpiry)
	r.Get("/_expiry-status", h.expiryStatus)
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
	productID, _ := strconv.ParseInt(q.Get("product_id"), 10, 64)
	filters := ListFilters{ShopID: shopID, ProductID: productID}
	if raw := q.Get("expired"); raw != "" {
		expired := raw == "true" || raw == "1"
		filters.Expired = &expired
	}

	items, total, err := h.service.List(r.Context(), limit, (page-1)*limit, filters)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("list batches", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.NewPagination(page, limit, total),
	})
}

func (h *Handler) runExpiry(w http.ResponseWriter, r *http.Request) {
	status, err := h.runner.Execute(r.Context())
	if err != nil {
		h.logger.Error("manual expiry run", slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, status)
		return
	}
	httpx.JSON(w, http.StatusOK, status)
}

func (h *Handler) expiryStatus(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.runner.Status())
}
