package service

import (
	"context"
	"testing"

	"merchpos/internal/domain"
	"merchpos/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogService_CreateSizedProductGetsDefaultRun(t *testing.T) {
	ctx := context.Background()
	svc := NewCatalogService(newMemCatalog())

	product, err := svc.CreateProduct(ctx, "Tour Shirt", "T-Shirt", 20, "M", true)
	require.NoError(t, err)

	require.Len(t, product.Variants, len(domain.DefaultSizes))
	for i, size := range domain.DefaultSizes {
		assert.Equal(t, size, product.Variants[i].Size)
		assert.Equal(t, 0, product.Variants[i].Stock)
	}
	assert.True(t, product.Sized())
}

func TestCatalogService_CreateSizelessProductGetsOneSize(t *testing.T) {
	ctx := context.Background()
	svc := NewCatalogService(newMemCatalog())

	product, err := svc.CreateProduct(ctx, "Logo Sticker", "Sticker", 3, "", false)
	require.NoError(t, err)

	require.Len(t, product.Variants, 1)
	assert.Equal(t, domain.OneSize, product.Variants[0].Size)
	assert.False(t, product.Sized())
}

func TestCatalogService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewCatalogService(newMemCatalog())

	_, err := svc.CreateProduct(ctx, "  ", "T-Shirt", 20, "", true)
	assert.ErrorIs(t, err, ErrInvalidProduct)

	_, err = svc.CreateProduct(ctx, "Tour Shirt", "T-Shirt", -1, "", true)
	assert.ErrorIs(t, err, ErrInvalidProduct)

	_, err = svc.CreateProduct(ctx, "Tour Shirt", "T-Shirt", 20, "X", true)
	assert.ErrorIs(t, err, ErrInvalidProduct)
}

func TestCatalogService_ToggleSizedToSizelessMergesStock(t *testing.T) {
	ctx := context.Background()
	catalog := newMemCatalog()
	svc := NewCatalogService(catalog)

	product, err := svc.CreateProduct(ctx, "Tour Shirt", "T-Shirt", 20, "", true)
	require.NoError(t, err)
	require.NoError(t, svc.Restock(ctx, product.ID, "M", 3))
	require.NoError(t, svc.Restock(ctx, product.ID, "L", 2))

	updated, err := svc.UpdateProduct(ctx, product.ID, "Tour Shirt", "T-Shirt", 20, "", false)
	require.NoError(t, err)

	require.Len(t, updated.Variants, 1)
	assert.Equal(t, domain.OneSize, updated.Variants[0].Size)
	assert.Equal(t, 5, updated.Variants[0].Stock)
}

func TestCatalogService_ToggleSizelessToSizedKeepsNothingInOneSize(t *testing.T) {
	ctx := context.Background()
	catalog := newMemCatalog()
	svc := NewCatalogService(catalog)

	product, err := svc.CreateProduct(ctx, "Poster", "Poster", 10, "", false)
	require.NoError(t, err)
	require.NoError(t, svc.Restock(ctx, product.ID, domain.OneSize, 7))

	updated, err := svc.UpdateProduct(ctx, product.ID, "Poster", "Poster", 10, "", true)
	require.NoError(t, err)

	require.Len(t, updated.Variants, len(domain.DefaultSizes))
	for _, v := range updated.Variants {
		assert.Equal(t, 0, v.Stock)
	}
}

func TestCatalogService_RestockValidation(t *testing.T) {
	ctx := context.Background()
	catalog := newMemCatalog()
	svc := NewCatalogService(catalog)

	product, err := svc.CreateProduct(ctx, "Tour Shirt", "T-Shirt", 20, "", true)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Restock(ctx, product.ID, "M", 0), ErrInvalidProduct)
	assert.ErrorIs(t, svc.Restock(ctx, product.ID, "M", -5), ErrInvalidProduct)
	assert.ErrorIs(t, svc.Restock(ctx, product.ID, "XS", 1), repository.ErrVariantNotFound)

	require.NoError(t, svc.Restock(ctx, product.ID, "M", 10))
	assert.Equal(t, 10, catalog.stock(product.ID, "M"))
}

func TestCatalogService_UpdateUnknownProduct(t *testing.T) {
	ctx := context.Background()
	svc := NewCatalogService(newMemCatalog())

	_, err := svc.UpdateProduct(ctx, 404, "Tour Shirt", "T-Shirt", 20, "", true)
	assert.ErrorIs(t, err, repository.ErrProductNotFound)
}

func TestCatalogService_ListClampsPaging(t *testing.T) {
	ctx := context.Background()
	catalog := newMemCatalog()
	svc := NewCatalogService(catalog)

	_, err := svc.CreateProduct(ctx, "Tour Shirt", "T-Shirt", 20, "", true)
	require.NoError(t, err)

	products, total, err := svc.ListProducts(ctx, "", 0, -1, "name", repository.SortOrderAsc)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, products, 1)
}
