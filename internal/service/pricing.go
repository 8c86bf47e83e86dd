package service

import (
	"context"
	"fmt"

	"merchpos/internal/domain"
	"merchpos/internal/repository"
)

// Pricer computes line and order totals. It has no state of its own and
// never caches: totals are recomputed from the discount catalog on every
// read, so a discount change is always reflected in the next total.
type Pricer struct {
	discounts repository.DiscountRepository
}

// NewPricer creates a new Pricer backed by the discount catalog.
func NewPricer(discounts repository.DiscountRepository) *Pricer {
	return &Pricer{discounts: discounts}
}

// EffectiveUnitPrice resolves a line's discount reference and returns the
// unit price after it. A discount name that no longer resolves degrades
// silently to the undiscounted price.
func (p *Pricer) EffectiveUnitPrice(ctx context.Context, line domain.CartLine) (float64, error) {
	if line.DiscountName == "" {
		return line.UnitPrice, nil
	}

	discount, err := p.discounts.FindByName(ctx, line.DiscountName)
	if err != nil {
		if err == repository.ErrDiscountNotFound {
			return line.UnitPrice, nil
		}
		return 0, fmt.Errorf("failed to resolve discount %q: %w", line.DiscountName, err)
	}

	return discount.Apply(line.UnitPrice), nil
}

// PriceLine returns the total for one line: effective unit price times
// quantity.
func (p *Pricer) PriceLine(ctx context.Context, line domain.CartLine) (float64, error) {
	unit, err := p.EffectiveUnitPrice(ctx, line)
	if err != nil {
		return 0, err
	}
	return unit * float64(line.Qty), nil
}

// PriceOrder returns the sum of PriceLine over all lines.
func (p *Pricer) PriceOrder(ctx context.Context, lines []domain.CartLine) (float64, error) {
	var total float64
	for _, line := range lines {
		lineTotal, err := p.PriceLine(ctx, line)
		if err != nil {
			return 0, err
		}
		total += lineTotal
	}
	return total, nil
}
