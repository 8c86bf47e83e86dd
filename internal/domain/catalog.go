package domain

import (
	"time"
)

// OneSize is the synthetic variant size assigned to products sold without
// a size run (stickers, posters, CDs).
const OneSize = "One Size"

// DefaultSizes is the size run assigned to new sized products.
var DefaultSizes = []string{"S", "M", "L", "XL", "XXL"}

// Product represents a merchandise item in the catalog. Every product
// carries at least one variant; sizeless products carry exactly one
// variant named OneSize.
type Product struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Category  string    `json:"category" db:"category"`
	Price     float64   `json:"price" db:"price"`
	Gender    string    `json:"gender" db:"gender"` // "M", "F" or ""
	Variants  []Variant `json:"variants"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Variant is one size/stock pairing of a product. Sizes are unique within
// a product. Stock is only ever decremented by sale finalization and only
// ever incremented by restock.
type Variant struct {
	Size  string `json:"size" db:"size"`
	Stock int    `json:"stock" db:"stock"`
}

// FindVariant returns the variant with the given size, or nil if the
// product has no such size.
func (p *Product) FindVariant(size string) *Variant {
	for i := range p.Variants {
		if p.Variants[i].Size == size {
			return &p.Variants[i]
		}
	}
	return nil
}

// Sized reports whether the product carries a real size run rather than
// the synthetic OneSize variant.
func (p *Product) Sized() bool {
	return len(p.Variants) != 1 || p.Variants[0].Size != OneSize
}

// DiscountType distinguishes flat currency discounts from percentage ones.
type DiscountType string

const (
	DiscountFlat    DiscountType = "flat"
	DiscountPercent DiscountType = "percent"
)

// Discount is a named price reduction. Names are unique case-insensitively;
// saving a discount under an existing name overwrites it.
type Discount struct {
	Name      string       `json:"name" db:"name"`
	Type      DiscountType `json:"type" db:"type"`
	Value     float64      `json:"value" db:"value"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

// Apply returns the unit price after this discount. The result never goes
// below zero, for flat discounts larger than the price as well as percent
// values above 100.
func (d *Discount) Apply(unitPrice float64) float64 {
	var price float64
	switch d.Type {
	case DiscountFlat:
		price = unitPrice - d.Value
	case DiscountPercent:
		price = unitPrice * (1 - d.Value/100)
	default:
		price = unitPrice
	}
	if price < 0 {
		return 0
	}
	return price
}
