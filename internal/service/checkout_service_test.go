package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"merchpos/internal/domain"
	"merchpos/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkoutFixture struct {
	catalog  *memCatalog
	discounts *memDiscounts
	sales    *memSales
	sessions *CartSessions
	carts    CartService
	checkout CheckoutService
}

func newCheckoutFixture() *checkoutFixture {
	catalog := newMemCatalog()
	discounts := newMemDiscounts()
	sales := newMemSales(catalog)
	sessions := NewCartSessions()
	pricer := NewPricer(discounts)

	return &checkoutFixture{
		catalog:   catalog,
		discounts: discounts,
		sales:     sales,
		sessions:  sessions,
		carts:     NewCartService(sessions, catalog, pricer),
		checkout:  NewCheckoutService(sessions, catalog, sales, pricer),
	}
}

func TestCheckout_FinalizeRecordsSaleAndDecrementsStock(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture()

	shirt := sizedProduct(f.catalog, "Tour Shirt", 20, 5)
	require.NoError(t, f.discounts.Upsert(ctx, &domain.Discount{Name: "VIP", Type: domain.DiscountPercent, Value: 10}))

	sid := f.carts.CreateSession()
	require.NoError(t, f.carts.AddItem(ctx, sid, shirt.ID, "M", 3))
	require.NoError(t, f.carts.SetLineDiscount(ctx, sid, 0, "VIP"))

	view, err := f.carts.View(ctx, sid)
	require.NoError(t, err)
	assert.InDelta(t, 54, view.Total, 1e-9)

	sale, err := f.checkout.Finalize(ctx, sid, nil)
	require.NoError(t, err)
	require.NotNil(t, sale)

	assert.InDelta(t, 54, sale.Total(), 1e-9)
	require.Len(t, sale.Items, 1)
	assert.Equal(t, "Tour Shirt", sale.Items[0].ProductName)
	assert.Equal(t, "M", sale.Items[0].Size)
	assert.Equal(t, 3, sale.Items[0].Qty)
	assert.InDelta(t, 20, sale.Items[0].UnitPrice, 1e-9)
	assert.InDelta(t, 18, sale.Items[0].EffectivePrice, 1e-9)
	assert.Equal(t, "VIP", sale.Items[0].DiscountName)
	assert.Equal(t, time.Now().Format("2006-01-02"), sale.Event)
	assert.False(t, sale.Shipped)

	// Stock moved and the cart emptied.
	assert.Equal(t, 2, f.catalog.stock(shirt.ID, "M"))
	view, err = f.carts.View(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)

	// The sale was persisted.
	stored, err := f.sales.FindByID(ctx, sale.ID)
	require.NoError(t, err)
	assert.InDelta(t, 54, stored.Total(), 1e-9)
}

func TestCheckout_SaleSnapshotSurvivesDiscountChanges(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture()

	shirt := sizedProduct(f.catalog, "Tour Shirt", 20, 5)
	require.NoError(t, f.discounts.Upsert(ctx, &domain.Discount{Name: "VIP", Type: domain.DiscountPercent, Value: 10}))

	sid := f.carts.CreateSession()
	require.NoError(t, f.carts.AddItem(ctx, sid, shirt.ID, "M", 1))
	require.NoError(t, f.carts.SetLineDiscount(ctx, sid, 0, "VIP"))

	sale, err := f.checkout.Finalize(ctx, sid, nil)
	require.NoError(t, err)

	// Rewriting the discount after the fact must not reach the sale.
	require.NoError(t, f.discounts.Upsert(ctx, &domain.Discount{Name: "VIP", Type: domain.DiscountPercent, Value: 90}))

	stored, err := f.sales.FindByID(ctx, sale.ID)
	require.NoError(t, err)
	assert.InDelta(t, 18, stored.Total(), 1e-9)
}

func TestCheckout_EmptyCartIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture()

	sid := f.carts.CreateSession()
	_, err := f.checkout.Finalize(ctx, sid, nil)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckout_UnknownSessionIsRejected(t *testing.T) {
	f := newCheckoutFixture()

	_, err := f.checkout.Finalize(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCheckout_StockConflictLeavesEverythingUntouched(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture()

	shirt := sizedProduct(f.catalog, "Tour Shirt", 20, 5)
	hoodie := sizedProduct(f.catalog, "Tour Hoodie", 45, 5)

	sid := f.carts.CreateSession()
	require.NoError(t, f.carts.AddItem(ctx, sid, shirt.ID, "M", 2))
	require.NoError(t, f.carts.AddItem(ctx, sid, hoodie.ID, "L", 4))

	// Another terminal sells hoodies out from under this cart.
	require.NoError(t, f.catalog.DecrementVariantStock(ctx, hoodie.ID, "L", 3))

	_, err := f.checkout.Finalize(ctx, sid, nil)
	var conflict *repository.StockConflictError
	require.True(t, errors.As(err, &conflict))
	require.Len(t, conflict.Conflicts, 1)
	assert.Equal(t, "Tour Hoodie", conflict.Conflicts[0].ProductName)
	assert.Equal(t, 4, conflict.Conflicts[0].Requested)
	assert.Equal(t, 2, conflict.Conflicts[0].Remaining)

	// Nothing was decremented, nothing was recorded, the cart survives.
	assert.Equal(t, 5, f.catalog.stock(shirt.ID, "M"))
	assert.Equal(t, 2, f.catalog.stock(hoodie.ID, "L"))
	sales, err := f.sales.List(ctx, repository.SalesFilter{})
	require.NoError(t, err)
	assert.Empty(t, sales)

	view, err := f.carts.View(ctx, sid)
	require.NoError(t, err)
	assert.Len(t, view.Lines, 2)
}

func TestCheckout_ConflictReportListsEveryShortLine(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture()

	shirt := sizedProduct(f.catalog, "Tour Shirt", 20, 5)
	hoodie := sizedProduct(f.catalog, "Tour Hoodie", 45, 5)

	sid := f.carts.CreateSession()
	require.NoError(t, f.carts.AddItem(ctx, sid, shirt.ID, "S", 5))
	require.NoError(t, f.carts.AddItem(ctx, sid, hoodie.ID, "S", 5))

	require.NoError(t, f.catalog.DecrementVariantStock(ctx, shirt.ID, "S", 4))
	require.NoError(t, f.catalog.DecrementVariantStock(ctx, hoodie.ID, "S", 5))

	_, err := f.checkout.Finalize(ctx, sid, nil)
	var conflict *repository.StockConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Len(t, conflict.Conflicts, 2)
}

func TestCheckout_DeletedProductReportsAsConflict(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture()

	shirt := sizedProduct(f.catalog, "Tour Shirt", 20, 5)

	sid := f.carts.CreateSession()
	require.NoError(t, f.carts.AddItem(ctx, sid, shirt.ID, "M", 1))
	require.NoError(t, f.catalog.Delete(ctx, shirt.ID))

	_, err := f.checkout.Finalize(ctx, sid, nil)
	var conflict *repository.StockConflictError
	require.True(t, errors.As(err, &conflict))
	require.Len(t, conflict.Conflicts, 1)
	assert.Equal(t, 0, conflict.Conflicts[0].Remaining)
}

func TestCheckout_ContactIsAttachedToSale(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture()

	shirt := sizedProduct(f.catalog, "Tour Shirt", 20, 5)

	sid := f.carts.CreateSession()
	require.NoError(t, f.carts.AddItem(ctx, sid, shirt.ID, "M", 1))

	contact := &domain.Contact{Method: "email", Detail: "fan@example.com"}
	sale, err := f.checkout.Finalize(ctx, sid, contact)
	require.NoError(t, err)
	require.NotNil(t, sale.Contact)
	assert.Equal(t, "email", sale.Contact.Method)
	assert.Equal(t, "fan@example.com", sale.Contact.Detail)
}

func TestCheckout_SessionStaysUsableAfterSale(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture()

	shirt := sizedProduct(f.catalog, "Tour Shirt", 20, 5)

	sid := f.carts.CreateSession()
	require.NoError(t, f.carts.AddItem(ctx, sid, shirt.ID, "M", 2))
	_, err := f.checkout.Finalize(ctx, sid, nil)
	require.NoError(t, err)

	// The same session can run the next customer's order.
	require.NoError(t, f.carts.AddItem(ctx, sid, shirt.ID, "L", 1))
	sale, err := f.checkout.Finalize(ctx, sid, nil)
	require.NoError(t, err)
	assert.Len(t, sale.Items, 1)
}
