package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"merchpos/internal/domain"
	"merchpos/internal/repository"
	"merchpos/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubCatalog and friends are just enough of the repositories to drive the
// handlers through real services.
type stubCatalog struct {
	products map[int64]*domain.Product
}

func (s *stubCatalog) Create(ctx context.Context, p *domain.Product) error { return nil }
func (s *stubCatalog) Update(ctx context.Context, p *domain.Product) error { return nil }
func (s *stubCatalog) Delete(ctx context.Context, id int64) error          { return nil }

func (s *stubCatalog) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	out := *p
	out.Variants = append([]domain.Variant(nil), p.Variants...)
	return &out, nil
}

func (s *stubCatalog) List(ctx context.Context, category string, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	return nil, 0, nil
}

func (s *stubCatalog) RestockVariant(ctx context.Context, productID int64, size string, amount int) error {
	return nil
}

func (s *stubCatalog) DecrementVariantStock(ctx context.Context, productID int64, size string, amount int) error {
	p, ok := s.products[productID]
	if !ok {
		return repository.ErrProductNotFound
	}
	v := p.FindVariant(size)
	if v == nil {
		return repository.ErrVariantNotFound
	}
	if v.Stock < amount {
		return &repository.InsufficientStockError{ProductID: productID, Size: size, Requested: amount, Remaining: v.Stock}
	}
	v.Stock -= amount
	return nil
}

type stubDiscounts struct {
	discounts map[string]*domain.Discount
}

func (s *stubDiscounts) Upsert(ctx context.Context, d *domain.Discount) error { return nil }
func (s *stubDiscounts) Delete(ctx context.Context, name string) error        { return nil }

func (s *stubDiscounts) FindByName(ctx context.Context, name string) (*domain.Discount, error) {
	d, ok := s.discounts[strings.ToLower(name)]
	if !ok {
		return nil, repository.ErrDiscountNotFound
	}
	return d, nil
}

func (s *stubDiscounts) List(ctx context.Context) ([]*domain.Discount, error) { return nil, nil }

type stubSales struct {
	catalog *stubCatalog
	sales   map[uuid.UUID]*domain.Sale
}

func (s *stubSales) RecordSale(ctx context.Context, sale *domain.Sale) error {
	var conflicts []repository.LineConflict
	for _, item := range sale.Items {
		p, ok := s.catalog.products[item.ProductID]
		if !ok {
			conflicts = append(conflicts, repository.LineConflict{
				ProductID: item.ProductID, ProductName: item.ProductName,
				Size: item.Size, Requested: item.Qty,
			})
			continue
		}
		v := p.FindVariant(item.Size)
		if v == nil || v.Stock < item.Qty {
			remaining := 0
			if v != nil {
				remaining = v.Stock
			}
			conflicts = append(conflicts, repository.LineConflict{
				ProductID: item.ProductID, ProductName: item.ProductName,
				Size: item.Size, Requested: item.Qty, Remaining: remaining,
			})
		}
	}
	if len(conflicts) > 0 {
		return &repository.StockConflictError{Conflicts: conflicts}
	}
	for _, item := range sale.Items {
		if err := s.catalog.DecrementVariantStock(ctx, item.ProductID, item.Size, item.Qty); err != nil {
			return err
		}
	}
	s.sales[sale.ID] = sale
	return nil
}

func (s *stubSales) FindByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	sale, ok := s.sales[id]
	if !ok {
		return nil, repository.ErrSaleNotFound
	}
	return sale, nil
}

func (s *stubSales) List(ctx context.Context, filter repository.SalesFilter) ([]*domain.Sale, error) {
	return nil, nil
}

func (s *stubSales) MarkShipped(ctx context.Context, id uuid.UUID) error { return nil }

func (s *stubSales) RevenueByEvent(ctx context.Context, filter repository.SalesFilter) (map[string]float64, error) {
	return nil, nil
}

func (s *stubSales) RevenueByDay(ctx context.Context, filter repository.SalesFilter) (map[string]float64, error) {
	return nil, nil
}

func passthrough(next http.Handler) http.Handler { return next }

func newCartRouter(t *testing.T) (*chi.Mux, *stubCatalog) {
	t.Helper()

	catalog := &stubCatalog{products: map[int64]*domain.Product{
		1: {
			ID: 1, Name: "Tour Shirt", Category: "T-Shirt", Price: 20,
			Variants: []domain.Variant{
				{Size: "S", Stock: 5}, {Size: "M", Stock: 5}, {Size: "L", Stock: 5},
				{Size: "XL", Stock: 5}, {Size: "XXL", Stock: 5},
			},
			CreatedAt: time.Now(), UpdatedAt: time.Now(),
		},
	}}
	discounts := &stubDiscounts{discounts: map[string]*domain.Discount{
		"vip": {Name: "VIP", Type: domain.DiscountPercent, Value: 10},
	}}
	sales := &stubSales{catalog: catalog, sales: map[uuid.UUID]*domain.Sale{}}

	sessions := service.NewCartSessions()
	pricer := service.NewPricer(discounts)
	cartService := service.NewCartService(sessions, catalog, pricer)
	checkoutService := service.NewCheckoutService(sessions, catalog, sales, pricer)

	handler := NewCartHandler(cartService, checkoutService, zap.NewNop())
	router := chi.NewRouter()
	handler.RegisterRoutes(router, passthrough, passthrough)
	return router, catalog
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCartHandler_FullCheckoutFlow(t *testing.T) {
	router, catalog := newCartRouter(t)

	// Open a session.
	w := doJSON(t, router, "POST", "/api/cart", "")
	require.Equal(t, http.StatusCreated, w.Code)
	var session SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	sid := session.SessionID

	// Ring up three M shirts.
	w = doJSON(t, router, "POST", "/api/cart/"+sid+"/items", `{"product_id":1,"size":"M","qty":3}`)
	require.Equal(t, http.StatusOK, w.Code)

	// Attach the VIP discount to the line.
	w = doJSON(t, router, "PATCH", "/api/cart/"+sid+"/items/0", `{"discount":"VIP"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var view service.CartView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.Len(t, view.Lines, 1)
	assert.InDelta(t, 18, view.Lines[0].EffectivePrice, 1e-9)
	assert.InDelta(t, 54, view.Total, 1e-9)

	// Finalize.
	w = doJSON(t, router, "POST", "/api/cart/"+sid+"/checkout", `{}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var sale domain.Sale
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sale))
	assert.InDelta(t, 54, sale.Total(), 1e-9)

	// Stock moved, cart emptied.
	assert.Equal(t, 2, catalog.products[1].FindVariant("M").Stock)

	w = doJSON(t, router, "GET", "/api/cart/"+sid, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Empty(t, view.Lines)

	// A second checkout on the now-empty cart is rejected.
	w = doJSON(t, router, "POST", "/api/cart/"+sid+"/checkout", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCartHandler_AddItemRejectsOversell(t *testing.T) {
	router, _ := newCartRouter(t)

	w := doJSON(t, router, "POST", "/api/cart", "")
	var session SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	sid := session.SessionID

	w = doJSON(t, router, "POST", "/api/cart/"+sid+"/items", `{"product_id":1,"size":"M","qty":9}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCartHandler_CheckoutReportsStockConflicts(t *testing.T) {
	router, catalog := newCartRouter(t)

	w := doJSON(t, router, "POST", "/api/cart", "")
	var session SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	sid := session.SessionID

	w = doJSON(t, router, "POST", "/api/cart/"+sid+"/items", `{"product_id":1,"size":"M","qty":3}`)
	require.Equal(t, http.StatusOK, w.Code)

	// Stock moves underneath the open cart.
	catalog.products[1].FindVariant("M").Stock = 1

	w = doJSON(t, router, "POST", "/api/cart/"+sid+"/checkout", `{}`)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "conflicts")

	// The cart survives the failed checkout.
	w = doJSON(t, router, "GET", "/api/cart/"+sid, "")
	var view service.CartView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Len(t, view.Lines, 1)
}

func TestCartHandler_UnknownSessionIs404(t *testing.T) {
	router, _ := newCartRouter(t)

	w := doJSON(t, router, "GET", "/api/cart/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, "POST", "/api/cart/nope/items", `{"product_id":1,"size":"M","qty":1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCartHandler_InvalidPayloads(t *testing.T) {
	router, _ := newCartRouter(t)

	w := doJSON(t, router, "POST", "/api/cart", "")
	var session SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	sid := session.SessionID

	// Validation failure carries field errors.
	w = doJSON(t, router, "POST", "/api/cart/"+sid+"/items", `{"product_id":1,"size":"M","qty":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_errors")

	// Unknown size on a known product.
	w = doJSON(t, router, "POST", "/api/cart/"+sid+"/items", `{"product_id":1,"size":"XS","qty":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Bad line index.
	w = doJSON(t, router, "PATCH", "/api/cart/"+sid+"/items/abc", `{"discount":"VIP"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
