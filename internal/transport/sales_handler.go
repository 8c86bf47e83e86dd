package transport

import (
	"net/http"
	"time"

	"merchpos/internal/middleware"
	"merchpos/internal/repository"
	"merchpos/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SalesHandler handles HTTP requests for the sales log
type SalesHandler struct {
	salesService service.SalesService
	logger       *zap.Logger
}

// NewSalesHandler creates a new SalesHandler
func NewSalesHandler(salesService service.SalesService, logger *zap.Logger) *SalesHandler {
	return &SalesHandler{
		salesService: salesService,
		logger:       logger,
	}
}

// RegisterRoutes registers all sales routes
func (h *SalesHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/sales", func(r chi.Router) {
		r.Use(authMiddleware)

		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Get("/revenue", h.Revenue)
		r.Post("/{id}/ship", h.MarkShipped)
	})
}

// List returns sales matching the query filters, newest first
func (h *SalesHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSalesFilter(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	sales, err := h.salesService.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list sales", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list sales")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, sales)
}

// Get returns one sale with its item snapshot
func (h *SalesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid sale id")
		return
	}

	sale, err := h.salesService.Get(r.Context(), id)
	if err != nil {
		if err == repository.ErrSaleNotFound {
			middleware.RespondWithError(w, http.StatusNotFound, "sale not found")
			return
		}
		h.logger.Error("Failed to get sale", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get sale")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, sale)
}

// Revenue returns totals grouped by event or by day
func (h *SalesHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSalesFilter(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var totals map[string]float64
	if r.URL.Query().Get("group_by") == "day" {
		totals, err = h.salesService.RevenueByDay(r.Context(), filter)
	} else {
		totals, err = h.salesService.RevenueByEvent(r.Context(), filter)
	}
	if err != nil {
		h.logger.Error("Failed to aggregate revenue", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to aggregate revenue")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, totals)
}

// MarkShipped flips a sale's shipped flag
func (h *SalesHandler) MarkShipped(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid sale id")
		return
	}

	if err := h.salesService.MarkShipped(r.Context(), id); err != nil {
		if err == repository.ErrSaleNotFound {
			middleware.RespondWithError(w, http.StatusNotFound, "sale not found")
			return
		}
		h.logger.Error("Failed to mark sale shipped", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to mark sale shipped")
		return
	}

	h.logger.Info("Sale marked shipped", zap.String("sale_id", id.String()))
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "marked shipped"})
}

func parseSalesFilter(r *http.Request) (repository.SalesFilter, error) {
	q := r.URL.Query()
	filter := repository.SalesFilter{Event: q.Get("event")}

	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, err
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, err
		}
		// Inclusive through the end of the day
		filter.To = t.Add(24*time.Hour - time.Second)
	}
	if v := q.Get("shipped"); v != "" {
		shipped := v == "true"
		filter.Shipped = &shipped
	}

	return filter, nil
}
