package domain

// CartLine is one (product, size) entry in an in-progress order. UnitPrice
// is captured at add time; the discount is a reference by name, resolved
// at pricing time.
type CartLine struct {
	ProductID    int64   `json:"product_id"`
	ProductName  string  `json:"product_name"`
	Size         string  `json:"size"`
	Qty          int     `json:"qty"`
	UnitPrice    float64 `json:"unit_price"`
	DiscountName string  `json:"discount_name,omitempty"`
}
