package transport

import (
	"errors"
	"net/http"
	"strconv"

	"merchpos/internal/domain"
	"merchpos/internal/middleware"
	"merchpos/internal/repository"
	"merchpos/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AddItemRequest represents an add-to-cart payload
type AddItemRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Size      string `json:"size" validate:"required"`
	Qty       int    `json:"qty" validate:"required,gt=0"`
}

// UpdateLineRequest adjusts one cart line. QtyDelta shifts the quantity;
// Discount, when present, replaces the line's discount reference (empty
// string clears it).
type UpdateLineRequest struct {
	QtyDelta *int    `json:"qty_delta,omitempty"`
	Discount *string `json:"discount,omitempty"`
}

// CheckoutRequest represents the finalize payload
type CheckoutRequest struct {
	Contact *ContactRequest `json:"contact,omitempty"`
}

// ContactRequest is the buyer contact captured at checkout
type ContactRequest struct {
	Method string `json:"method" validate:"required,oneof=email text"`
	Detail string `json:"detail" validate:"required"`
}

// SessionResponse returns a fresh checkout session id
type SessionResponse struct {
	SessionID string `json:"session_id"`
}

// CartHandler handles HTTP requests for checkout sessions
type CartHandler struct {
	cartService     service.CartService
	checkoutService service.CheckoutService
	logger          *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(cartService service.CartService, checkoutService service.CheckoutService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		cartService:     cartService,
		checkoutService: checkoutService,
		logger:          logger,
	}
}

// RegisterRoutes registers all cart routes. The checkout route carries the
// extra rate limit middleware.
func (h *CartHandler) RegisterRoutes(r chi.Router, authMiddleware, rateLimitMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(authMiddleware)

		r.Post("/", h.CreateSession)
		r.Get("/{sid}", h.View)
		r.Delete("/{sid}", h.Clear)
		r.Post("/{sid}/items", h.AddItem)
		r.Patch("/{sid}/items/{index}", h.UpdateLine)
		r.Delete("/{sid}/items/{index}", h.RemoveLine)

		r.Group(func(r chi.Router) {
			r.Use(rateLimitMiddleware)
			r.Post("/{sid}/checkout", h.Checkout)
		})
	})
}

// CreateSession opens a new checkout session with an empty cart
func (h *CartHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sessionID := h.cartService.CreateSession()

	h.logger.Info("Checkout session opened", zap.String("session_id", sessionID))
	middleware.RespondWithJSON(w, http.StatusCreated, SessionResponse{SessionID: sessionID})
}

// View returns the priced cart
func (h *CartHandler) View(w http.ResponseWriter, r *http.Request) {
	view, err := h.cartService.View(r.Context(), chi.URLParam(r, "sid"))
	if err != nil {
		h.respondCartError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, view)
}

// AddItem merges an item into the cart
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := chi.URLParam(r, "sid")
	if err := h.cartService.AddItem(r.Context(), sessionID, req.ProductID, req.Size, req.Qty); err != nil {
		h.respondCartError(w, err)
		return
	}

	view, err := h.cartService.View(r.Context(), sessionID)
	if err != nil {
		h.respondCartError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, view)
}

// UpdateLine adjusts quantity and/or discount on one line
func (h *CartHandler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid line index")
		return
	}

	var req UpdateLineRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := chi.URLParam(r, "sid")

	if req.Discount != nil {
		if err := h.cartService.SetLineDiscount(r.Context(), sessionID, index, *req.Discount); err != nil {
			h.respondCartError(w, err)
			return
		}
	}

	if req.QtyDelta != nil && *req.QtyDelta != 0 {
		if err := h.cartService.ChangeQty(r.Context(), sessionID, index, *req.QtyDelta); err != nil {
			h.respondCartError(w, err)
			return
		}
	}

	view, err := h.cartService.View(r.Context(), sessionID)
	if err != nil {
		h.respondCartError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, view)
}

// RemoveLine deletes one line from the cart
func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid line index")
		return
	}

	sessionID := chi.URLParam(r, "sid")
	if err := h.cartService.RemoveLine(sessionID, index); err != nil {
		h.respondCartError(w, err)
		return
	}

	view, err := h.cartService.View(r.Context(), sessionID)
	if err != nil {
		h.respondCartError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, view)
}

// Clear empties the cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.cartService.Clear(chi.URLParam(r, "sid")); err != nil {
		h.respondCartError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "cart cleared"})
}

// Checkout finalizes the sale
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var contact *domain.Contact
	if req.Contact != nil {
		contact = &domain.Contact{
			Method: req.Contact.Method,
			Detail: req.Contact.Detail,
		}
	}

	sessionID := chi.URLParam(r, "sid")
	sale, err := h.checkoutService.Finalize(r.Context(), sessionID, contact)
	if err != nil {
		var conflict *repository.StockConflictError
		if errors.As(err, &conflict) {
			middleware.RespondWithErrorDetails(w, http.StatusConflict, "stock changed during checkout", map[string]interface{}{
				"conflicts": conflict.Conflicts,
			})
			return
		}

		h.respondCartError(w, err)
		return
	}

	h.logger.Info("Sale finalized",
		zap.String("sale_id", sale.ID.String()),
		zap.Int("items", len(sale.Items)),
		zap.Float64("total", sale.Total()),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, sale)
}

// respondCartError maps service errors onto HTTP responses
func (h *CartHandler) respondCartError(w http.ResponseWriter, err error) {
	var stockErr *service.CartStockError
	switch {
	case errors.As(err, &stockErr):
		middleware.RespondWithErrorDetails(w, http.StatusConflict, stockErr.Error(), map[string]interface{}{
			"product":   stockErr.ProductName,
			"size":      stockErr.Size,
			"requested": stockErr.Requested,
			"remaining": stockErr.Remaining,
		})
	case errors.Is(err, service.ErrSessionNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "checkout session not found")
	case errors.Is(err, service.ErrLineNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "cart line not found")
	case errors.Is(err, service.ErrInvalidSize):
		middleware.RespondWithError(w, http.StatusBadRequest, "product does not come in that size")
	case errors.Is(err, service.ErrEmptyCart):
		middleware.RespondWithError(w, http.StatusBadRequest, "cart is empty")
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	default:
		h.logger.Error("Cart operation failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "cart operation failed")
	}
}
