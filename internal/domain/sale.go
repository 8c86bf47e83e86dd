package domain

import (
	"time"

	"github.com/google/uuid"
)

// Contact is the opaque buyer contact captured at checkout. Method is
// "email" or "text"; Detail holds the address or phone number.
type Contact struct {
	Method string `json:"method"`
	Detail string `json:"detail"`
}

// SaleItem is an immutable snapshot of one cart line at the moment a sale
// was finalized, with the discount already resolved into EffectivePrice.
type SaleItem struct {
	ProductID      int64   `json:"product_id" db:"product_id"`
	ProductName    string  `json:"product_name" db:"product_name"`
	Size           string  `json:"size" db:"size"`
	Qty            int     `json:"qty" db:"qty"`
	UnitPrice      float64 `json:"unit_price" db:"unit_price"`
	EffectivePrice float64 `json:"effective_price" db:"effective_price"`
	DiscountName   string  `json:"discount_name,omitempty" db:"discount_name"`
}

// Sale is one completed transaction. Items never change after creation;
// only Shipped may be flipped later by the shipping workflow.
type Sale struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	Event     string     `json:"event" db:"event"` // sale date, YYYY-MM-DD
	Items     []SaleItem `json:"items"`
	Contact   *Contact   `json:"contact,omitempty"`
	Shipped   bool       `json:"shipped" db:"shipped"`
}

// Total returns the revenue of the sale.
func (s *Sale) Total() float64 {
	var total float64
	for _, it := range s.Items {
		total += it.EffectivePrice * float64(it.Qty)
	}
	return total
}
