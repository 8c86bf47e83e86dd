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
	ErrInvalidDiscount = errors.New("invalid discount")
)

// DiscountService defines discount catalog management. Names are keys:
// saving under an existing name, in any letter case, overwrites it.
type DiscountService interface {
	Save(ctx context.Context, name string, discountType domain.DiscountType, value float64) (*domain.Discount, error)
	Delete(ctx context.Context, name string) error
	Get(ctx context.Context, name string) (*domain.Discount, error)
	List(ctx context.Context) ([]*domain.Discount, error)
}

type discountService struct {
	discounts repository.DiscountRepository
}

// NewDiscountService creates a new instance of DiscountService
func NewDiscountService(discounts repository.DiscountRepository) DiscountService {
	return &discountService{discounts: discounts}
}

// Save validates and upserts a discount. Values are clamped at entry:
// negative values are rejected outright and percent discounts above 100
// are rejected rather than allowed to price items below zero.
func (s *discountService) Save(ctx context.Context, name string, discountType domain.DiscountType, value float64) (*domain.Discount, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidDiscount)
	}
	if discountType != domain.DiscountFlat && discountType != domain.DiscountPercent {
		return nil, fmt.Errorf("%w: type must be flat or percent", ErrInvalidDiscount)
	}
	if value < 0 {
		return nil, fmt.Errorf("%w: value cannot be negative", ErrInvalidDiscount)
	}
	if discountType == domain.DiscountPercent && value > 100 {
		return nil, fmt.Errorf("%w: percent value cannot exceed 100", ErrInvalidDiscount)
	}

	now := time.Now()
	discount := &domain.Discount{
		Name:      strings.TrimSpace(name),
		Type:      discountType,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.discounts.Upsert(ctx, discount); err != nil {
		return nil, fmt.Errorf("failed to save discount: %w", err)
	}

	return discount, nil
}

func (s *discountService) Delete(ctx context.Context, name string) error {
	return s.discounts.Delete(ctx, name)
}

func (s *discountService) Get(ctx context.Context, name string) (*domain.Discount, error) {
	return s.discounts.FindByName(ctx, name)
}

func (s *discountService) List(ctx context.Context) ([]*domain.Discount, error) {
	return s.discounts.List(ctx)
}
