package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"merchpos/internal/domain"
	"merchpos/internal/repository"

	"github.com/google/uuid"
)

const (
	// FinalizeTimeout bounds the storage work of one checkout. The
	// transaction either commits or rolls back within it; a timeout can
	// never leave a partial decrement behind.
	FinalizeTimeout = 10 * time.Second
)

// CheckoutService converts a cart into a permanent sale.
type CheckoutService interface {
	// Finalize re-validates the cart against current stock, decrements
	// every sold variant and appends the sale as one atomic transaction,
	// then clears the cart. On a stock conflict nothing is mutated and
	// the returned error lists every short line.
	Finalize(ctx context.Context, sessionID string, contact *domain.Contact) (*domain.Sale, error)
}

type checkoutService struct {
	sessions *CartSessions
	catalog  repository.CatalogRepository
	sales    repository.SalesRepository
	pricer   *Pricer

	// Serializes finalizations so two concurrent checkouts cannot both
	// validate against stock that only covers one of them. The guarded
	// UPDATE in the sales repository is the backstop.
	mu sync.Mutex
}

// NewCheckoutService creates a new instance of CheckoutService
func NewCheckoutService(
	sessions *CartSessions,
	catalog repository.CatalogRepository,
	sales repository.SalesRepository,
	pricer *Pricer,
) CheckoutService {
	return &checkoutService{
		sessions: sessions,
		catalog:  catalog,
		sales:    sales,
		pricer:   pricer,
	}
}

// Finalize runs the sale pipeline: validate, snapshot, commit, clear.
func (s *checkoutService) Finalize(ctx context.Context, sessionID string, contact *domain.Contact) (*domain.Sale, error) {
	cart, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines := cart.Lines()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	ctx, cancel := context.WithTimeout(ctx, FinalizeTimeout)
	defer cancel()

	if err := s.validateStock(ctx, lines); err != nil {
		return nil, err
	}

	sale, err := s.buildSale(ctx, lines, contact)
	if err != nil {
		return nil, err
	}

	// Stock is re-checked inside the transaction; the pre-validation
	// above only exists to report every conflict before any write is
	// attempted.
	if err := s.sales.RecordSale(ctx, sale); err != nil {
		return nil, err
	}

	cart.Clear()
	return sale, nil
}

// validateStock re-fetches every line's variant and collects all lines
// whose cart quantity no longer fits the current stock.
func (s *checkoutService) validateStock(ctx context.Context, lines []domain.CartLine) error {
	var conflicts []repository.LineConflict

	for _, line := range lines {
		product, err := s.catalog.FindByID(ctx, line.ProductID)
		if err != nil {
			if err == repository.ErrProductNotFound {
				conflicts = append(conflicts, repository.LineConflict{
					ProductID:   line.ProductID,
					ProductName: line.ProductName,
					Size:        line.Size,
					Requested:   line.Qty,
					Remaining:   0,
				})
				continue
			}
			return fmt.Errorf("failed to validate stock: %w", err)
		}

		variant := product.FindVariant(line.Size)
		if variant == nil || variant.Stock < line.Qty {
			remaining := 0
			if variant != nil {
				remaining = variant.Stock
			}
			conflicts = append(conflicts, repository.LineConflict{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Size:        line.Size,
				Requested:   line.Qty,
				Remaining:   remaining,
			})
		}
	}

	if len(conflicts) > 0 {
		return &repository.StockConflictError{Conflicts: conflicts}
	}
	return nil
}

// buildSale snapshots the cart with discounts resolved into effective
// prices. The snapshot is what the sales log keeps forever; later edits
// to products or discounts cannot reach it.
func (s *checkoutService) buildSale(ctx context.Context, lines []domain.CartLine, contact *domain.Contact) (*domain.Sale, error) {
	now := time.Now()
	sale := &domain.Sale{
		ID:        uuid.New(),
		CreatedAt: now,
		Event:     now.Format("2006-01-02"),
		Items:     make([]domain.SaleItem, 0, len(lines)),
		Contact:   contact,
		Shipped:   false,
	}

	for _, line := range lines {
		unit, err := s.pricer.EffectiveUnitPrice(ctx, line)
		if err != nil {
			return nil, err
		}
		sale.Items = append(sale.Items, domain.SaleItem{
			ProductID:      line.ProductID,
			ProductName:    line.ProductName,
			Size:           line.Size,
			Qty:            line.Qty,
			UnitPrice:      line.UnitPrice,
			EffectivePrice: unit,
			DiscountName:   line.DiscountName,
		})
	}

	return sale, nil
}
