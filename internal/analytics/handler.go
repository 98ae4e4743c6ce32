package analytics

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stocklane/stocklane/internal/platform/httpx"
)

// Handler serves analytics endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers analytics routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock-value", h.stockValue)
	r.Get("/valuations", h.valuations)
	r.Post("/_run-rollup", h.runRollup)
}

func (h *Handler) stockValue(w http.ResponseWriter, r *http.Request) {
	shopID, err := strconv.ParseInt(r.URL.Query().Get("shop_id"), 10, 64)
	if err != nil || shopID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "shop_id is required")
		return
	}
	value, err := h.service.StockValue(r.Context(), shopID)
	if err != nil {
		h.respondErr(w, "stock value", err)
		return
	}
	httpx.JSON(w, http.StatusOK, value)
}

func (h *Handler) valuations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	shopID, err := strconv.ParseInt(q.Get("shop_id"), 10, 64)
	if err != nil || shopID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "shop_id is required")
		return
	}
	days, _ := strconv.Atoi(q.Get("days"))
	items, err := h.service.History(r.Context(), shopID, days)
	if err != nil {
		h.respondErr(w, "valuation history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

// runRollup triggers the nightly sweep out of band, mostly for operators.
func (h *Handler) runRollup(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RunValuationRollup(r.Context(), time.Now())
	if err != nil {
		h.respondErr(w, "run valuation rollup", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
