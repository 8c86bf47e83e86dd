package service

import (
	"context"
	"fmt"

	"merchpos/internal/domain"
	"merchpos/internal/repository"
)

// PricedLine is a cart line with its discount resolved for display.
type PricedLine struct {
	domain.CartLine
	EffectivePrice float64 `json:"effective_price"`
	LineTotal      float64 `json:"line_total"`
}

// CartView is the priced state of one checkout session.
type CartView struct {
	SessionID string       `json:"session_id"`
	Lines     []PricedLine `json:"lines"`
	Total     float64      `json:"total"`
}

// CartService defines the checkout-session operations exposed to the
// terminal: building a cart against the catalog and pricing it.
type CartService interface {
	CreateSession() string
	DropSession(sessionID string)
	AddItem(ctx context.Context, sessionID string, productID int64, size string, qty int) error
	SetLineDiscount(ctx context.Context, sessionID string, index int, discountName string) error
	ChangeQty(ctx context.Context, sessionID string, index, delta int) error
	RemoveLine(sessionID string, index int) error
	Clear(sessionID string) error
	View(ctx context.Context, sessionID string) (*CartView, error)
}

type cartService struct {
	sessions *CartSessions
	catalog  repository.CatalogRepository
	pricer   *Pricer
}

// NewCartService creates a new instance of CartService
func NewCartService(sessions *CartSessions, catalog repository.CatalogRepository, pricer *Pricer) CartService {
	return &cartService{
		sessions: sessions,
		catalog:  catalog,
		pricer:   pricer,
	}
}

func (s *cartService) CreateSession() string {
	return s.sessions.Create()
}

func (s *cartService) DropSession(sessionID string) {
	s.sessions.Drop(sessionID)
}

// AddItem looks the product up in the catalog and merges it into the cart,
// enforcing the variant's current stock.
func (s *cartService) AddItem(ctx context.Context, sessionID string, productID int64, size string, qty int) error {
	cart, err := s.sessions.Get(sessionID)
	if err != nil {
		return err
	}

	product, err := s.catalog.FindByID(ctx, productID)
	if err != nil {
		if err == repository.ErrProductNotFound {
			return repository.ErrProductNotFound
		}
		return fmt.Errorf("failed to look up product: %w", err)
	}

	return cart.AddItem(product, size, qty)
}

func (s *cartService) SetLineDiscount(ctx context.Context, sessionID string, index int, discountName string) error {
	cart, err := s.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	return cart.SetLineDiscount(index, discountName)
}

// ChangeQty adjusts a line by delta. Increases re-run the add path so the
// cumulative quantity is checked against current stock; decreases never
// need a stock check and drop the line when it reaches zero.
func (s *cartService) ChangeQty(ctx context.Context, sessionID string, index, delta int) error {
	cart, err := s.sessions.Get(sessionID)
	if err != nil {
		return err
	}

	if delta == 0 {
		return nil
	}

	line, err := cart.Line(index)
	if err != nil {
		return err
	}

	if delta < 0 {
		return cart.DecreaseQty(index, -delta)
	}

	product, err := s.catalog.FindByID(ctx, line.ProductID)
	if err != nil {
		if err == repository.ErrProductNotFound {
			return repository.ErrProductNotFound
		}
		return fmt.Errorf("failed to look up product: %w", err)
	}

	return cart.AddItem(product, line.Size, delta)
}

func (s *cartService) RemoveLine(sessionID string, index int) error {
	cart, err := s.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	return cart.RemoveLine(index)
}

func (s *cartService) Clear(sessionID string) error {
	cart, err := s.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	cart.Clear()
	return nil
}

// View prices the cart line by line. Discounts are resolved fresh on every
// call rather than cached, so edits to the discount catalog show up
// immediately.
func (s *cartService) View(ctx context.Context, sessionID string) (*CartView, error) {
	cart, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	lines := cart.Lines()
	view := &CartView{
		SessionID: sessionID,
		Lines:     make([]PricedLine, 0, len(lines)),
	}

	for _, line := range lines {
		unit, err := s.pricer.EffectiveUnitPrice(ctx, line)
		if err != nil {
			return nil, err
		}
		lineTotal := unit * float64(line.Qty)
		view.Lines = append(view.Lines, PricedLine{
			CartLine:       line,
			EffectivePrice: unit,
			LineTotal:      lineTotal,
		})
		view.Total += lineTotal
	}

	return view, nil
}
