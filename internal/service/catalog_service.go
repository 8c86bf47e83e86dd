package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"merchpos/internal/domain"
	"merchpos/internal/repository"
)

var (
	ErrInvalidProduct = errors.New("invalid product")
)

// CatalogService defines the catalog management operations: entering
// products, reshaping their size runs, and restocking. Stock only ever
// goes up here; the checkout pipeline is the only thing that takes it
// down.
type CatalogService interface {
	CreateProduct(ctx context.Context, name, category string, price float64, gender string, sized bool) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id int64, name, category string, price float64, gender string, sized bool) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context, category string, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error)
	Restock(ctx context.Context, id int64, size string, amount int) error
}

type catalogService struct {
	catalog repository.CatalogRepository
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(catalog repository.CatalogRepository) CatalogService {
	return &catalogService{catalog: catalog}
}

// CreateProduct enters a new product. Sized products get the default size
// run with zero stock; sizeless products get the single synthetic One
// Size variant.
func (s *catalogService) CreateProduct(ctx context.Context, name, category string, price float64, gender string, sized bool) (*domain.Product, error) {
	if err := validateProductFields(name, price, gender); err != nil {
		return nil, err
	}

	now := time.Now()
	product := &domain.Product{
		Name:      strings.TrimSpace(name),
		Category:  strings.TrimSpace(category),
		Price:     price,
		Gender:    gender,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if sized {
		for _, size := range domain.DefaultSizes {
			product.Variants = append(product.Variants, domain.Variant{Size: size})
		}
	} else {
		product.Variants = []domain.Variant{{Size: domain.OneSize}}
	}

	if err := s.catalog.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return product, nil
}

// UpdateProduct changes a product's attributes. Toggling a product from
// sized to sizeless merges all per-size stock into the One Size variant;
// toggling the other way keeps stock for sizes already present and adds
// the missing defaults empty.
func (s *catalogService) UpdateProduct(ctx context.Context, id int64, name, category string, price float64, gender string, sized bool) (*domain.Product, error) {
	if err := validateProductFields(name, price, gender); err != nil {
		return nil, err
	}

	product, err := s.catalog.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	product.Name = strings.TrimSpace(name)
	product.Category = strings.TrimSpace(category)
	product.Price = price
	product.Gender = gender
	product.UpdatedAt = time.Now()
	product.Variants = reshapeVariants(product.Variants, sized)

	if err := s.catalog.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	return product, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, id int64) error {
	return s.catalog.Delete(ctx, id)
}

func (s *catalogService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return s.catalog.FindByID(ctx, id)
}

func (s *catalogService) ListProducts(ctx context.Context, category string, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.catalog.List(ctx, category, page, pageSize, sortBy, sortOrder)
}

// Restock adds stock to one variant.
func (s *catalogService) Restock(ctx context.Context, id int64, size string, amount int) error {
	if amount < 1 {
		return fmt.Errorf("%w: restock amount must be at least 1", ErrInvalidProduct)
	}
	return s.catalog.RestockVariant(ctx, id, size, amount)
}

func validateProductFields(name string, price float64, gender string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if price < 0 {
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidProduct)
	}
	switch gender {
	case "M", "F", "":
	default:
		return fmt.Errorf("%w: gender must be M, F or empty", ErrInvalidProduct)
	}
	return nil
}

// reshapeVariants converts a variant set between sized and sizeless form
// without losing stock.
func reshapeVariants(variants []domain.Variant, sized bool) []domain.Variant {
	if !sized {
		sum := 0
		for _, v := range variants {
			sum += v.Stock
		}
		return []domain.Variant{{Size: domain.OneSize, Stock: sum}}
	}

	byVariantSize := map[string]int{}
	for _, v := range variants {
		byVariantSize[v.Size] = v.Stock
	}

	out := make([]domain.Variant, 0, len(domain.DefaultSizes))
	for _, size := range domain.DefaultSizes {
		out = append(out, domain.Variant{Size: size, Stock: byVariantSize[size]})
	}
	return out
}
