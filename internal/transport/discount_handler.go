package transport

import (
	"errors"
	"net/http"

	"merchpos/internal/domain"
	"merchpos/internal/middleware"
	"merchpos/internal/repository"
	"merchpos/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DiscountRequest represents a discount upsert payload
type DiscountRequest struct {
	Name  string  `json:"name" validate:"required"`
	Type  string  `json:"type" validate:"required,oneof=flat percent"`
	Value float64 `json:"value" validate:"gte=0"`
}

// DiscountHandler handles HTTP requests for the discount catalog
type DiscountHandler struct {
	discountService service.DiscountService
	logger          *zap.Logger
}

// NewDiscountHandler creates a new DiscountHandler
func NewDiscountHandler(discountService service.DiscountService, logger *zap.Logger) *DiscountHandler {
	return &DiscountHandler{
		discountService: discountService,
		logger:          logger,
	}
}

// RegisterRoutes registers all discount routes
func (h *DiscountHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/discounts", func(r chi.Router) {
		r.Use(authMiddleware)

		r.Get("/", h.List)

		r.Group(func(r chi.Router) {
			r.Use(adminMiddleware)
			r.Put("/", h.Save)
			r.Delete("/{name}", h.Delete)
		})
	})
}

// List returns all discounts
func (h *DiscountHandler) List(w http.ResponseWriter, r *http.Request) {
	discounts, err := h.discountService.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list discounts", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list discounts")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, discounts)
}

// Save upserts a discount by name (admin only)
func (h *DiscountHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req DiscountRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	discount, err := h.discountService.Save(r.Context(), req.Name, domain.DiscountType(req.Type), req.Value)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDiscount) {
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Failed to save discount", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to save discount")
		return
	}

	h.logger.Info("Discount saved",
		zap.String("name", discount.Name),
		zap.String("type", string(discount.Type)),
		zap.Float64("value", discount.Value),
	)
	middleware.RespondWithJSON(w, http.StatusOK, discount)
}

// Delete removes a discount (admin only)
func (h *DiscountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.discountService.Delete(r.Context(), name); err != nil {
		if err == repository.ErrDiscountNotFound {
			middleware.RespondWithError(w, http.StatusNotFound, "discount not found")
			return
		}
		h.logger.Error("Failed to delete discount", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to delete discount")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "discount deleted"})
}
