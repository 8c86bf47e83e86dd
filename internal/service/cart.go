package service

import (
	"errors"
	"fmt"
	"sync"

	"merchpos/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrInvalidSize     = errors.New("product does not come in that size")
	ErrLineNotFound    = errors.New("cart line not found")
	ErrSessionNotFound = errors.New("checkout session not found")
	ErrEmptyCart       = errors.New("cart is empty")
)

// CartStockError is returned when adding to the cart would exceed the
// variant's stock, counting what the cart already holds. Remaining is the
// capacity still available to this cart.
type CartStockError struct {
	ProductName string
	Size        string
	Requested   int
	Remaining   int
}

func (e *CartStockError) Error() string {
	return fmt.Sprintf("not enough stock of %s (%s): requested %d, only %d remaining",
		e.ProductName, e.Size, e.Requested, e.Remaining)
}

// Cart is the ordered set of lines for one in-progress order. It lives in
// memory for the duration of a checkout session and never touches storage;
// stock is only consulted (via the product passed to AddItem) and only
// mutated when the sale is finalized.
//
// Cart is not safe for concurrent use; CartSessions serializes access.
type Cart struct {
	lines []domain.CartLine
}

// NewCart returns an empty cart.
func NewCart() *Cart {
	return &Cart{lines: []domain.CartLine{}}
}

// AddItem merges qty units of (product, size) into the cart. An existing
// line for the pair grows instead of duplicating. The cumulative quantity
// is checked against the variant's stock at add time; finalization checks
// again, since stock may move underneath an open cart.
func (c *Cart) AddItem(product *domain.Product, size string, qty int) error {
	if qty < 1 {
		return fmt.Errorf("quantity must be at least 1, got %d", qty)
	}

	variant := product.FindVariant(size)
	if variant == nil {
		return ErrInvalidSize
	}

	existing := c.find(product.ID, size)
	inCart := 0
	if existing != nil {
		inCart = existing.Qty
	}

	if inCart+qty > variant.Stock {
		return &CartStockError{
			ProductName: product.Name,
			Size:        size,
			Requested:   qty,
			Remaining:   variant.Stock - inCart,
		}
	}

	if existing != nil {
		existing.Qty += qty
		return nil
	}

	c.lines = append(c.lines, domain.CartLine{
		ProductID:   product.ID,
		ProductName: product.Name,
		Size:        size,
		Qty:         qty,
		UnitPrice:   product.Price,
	})
	return nil
}

// SetLineDiscount attaches a discount reference to one line, or clears it
// when name is empty. The name is not validated here; an unknown name
// simply prices as no discount.
func (c *Cart) SetLineDiscount(index int, name string) error {
	if index < 0 || index >= len(c.lines) {
		return ErrLineNotFound
	}
	c.lines[index].DiscountName = name
	return nil
}

// DecreaseQty lowers a line's quantity by amount, dropping the line when
// it reaches zero. Decreases never need a stock check.
func (c *Cart) DecreaseQty(index, amount int) error {
	if index < 0 || index >= len(c.lines) {
		return ErrLineNotFound
	}
	c.lines[index].Qty -= amount
	if c.lines[index].Qty <= 0 {
		return c.RemoveLine(index)
	}
	return nil
}

// RemoveLine deletes one line, preserving the order of the rest.
func (c *Cart) RemoveLine(index int) error {
	if index < 0 || index >= len(c.lines) {
		return ErrLineNotFound
	}
	c.lines = append(c.lines[:index], c.lines[index+1:]...)
	return nil
}

// Clear empties the cart. Clearing an empty cart is a no-op.
func (c *Cart) Clear() {
	c.lines = c.lines[:0]
}

// Lines returns a copy of the cart's lines in order.
func (c *Cart) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Line returns a copy of one line.
func (c *Cart) Line(index int) (domain.CartLine, error) {
	if index < 0 || index >= len(c.lines) {
		return domain.CartLine{}, ErrLineNotFound
	}
	return c.lines[index], nil
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	return len(c.lines)
}

func (c *Cart) find(productID int64, size string) *domain.CartLine {
	for i := range c.lines {
		if c.lines[i].ProductID == productID && c.lines[i].Size == size {
			return &c.lines[i]
		}
	}
	return nil
}

// CartSessions holds the live carts of open checkout sessions, keyed by an
// opaque session id handed to the terminal.
type CartSessions struct {
	mu    sync.Mutex
	carts map[string]*Cart
}

// NewCartSessions creates an empty session table.
func NewCartSessions() *CartSessions {
	return &CartSessions{carts: make(map[string]*Cart)}
}

// Create opens a new session with an empty cart and returns its id.
func (s *CartSessions) Create() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	s.carts[id] = NewCart()
	return id
}

// Get returns the cart for a session.
func (s *CartSessions) Get(id string) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return cart, nil
}

// Drop discards a session and its cart.
func (s *CartSessions) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, id)
}
