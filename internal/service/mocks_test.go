package service

import (
	"context"
	"strings"
	"sync"

	"merchpos/internal/domain"
	"merchpos/internal/repository"

	"github.com/google/uuid"
)

// memCatalog is an in-memory CatalogRepository with the same stock
// semantics as the SQL implementation: decrements are guarded and refuse
// to drive stock negative.
type memCatalog struct {
	mu       sync.Mutex
	nextID   int64
	products map[int64]*domain.Product
}

func newMemCatalog() *memCatalog {
	return &memCatalog{nextID: 1, products: make(map[int64]*domain.Product)}
}

func (m *memCatalog) clone(p *domain.Product) *domain.Product {
	out := *p
	out.Variants = make([]domain.Variant, len(p.Variants))
	copy(out.Variants, p.Variants)
	return &out
}

func (m *memCatalog) Create(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	product.ID = m.nextID
	m.nextID++
	m.products[product.ID] = m.clone(product)
	return nil
}

func (m *memCatalog) Update(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	m.products[product.ID] = m.clone(product)
	return nil
}

func (m *memCatalog) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *memCatalog) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return m.clone(p), nil
}

func (m *memCatalog) List(ctx context.Context, category string, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.Product
	for _, p := range m.products {
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, m.clone(p))
	}
	return out, len(out), nil
}

func (m *memCatalog) RestockVariant(ctx context.Context, productID int64, size string, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok {
		return repository.ErrProductNotFound
	}
	v := p.FindVariant(size)
	if v == nil {
		return repository.ErrVariantNotFound
	}
	v.Stock += amount
	return nil
}

func (m *memCatalog) DecrementVariantStock(ctx context.Context, productID int64, size string, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok {
		return repository.ErrProductNotFound
	}
	v := p.FindVariant(size)
	if v == nil {
		return repository.ErrVariantNotFound
	}
	if v.Stock < amount {
		return &repository.InsufficientStockError{
			ProductID: productID,
			Size:      size,
			Requested: amount,
			Remaining: v.Stock,
		}
	}
	v.Stock -= amount
	return nil
}

// stock reads a variant's current stock directly, for assertions.
func (m *memCatalog) stock(productID int64, size string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok {
		return -1
	}
	v := p.FindVariant(size)
	if v == nil {
		return -1
	}
	return v.Stock
}

// memDiscounts is an in-memory DiscountRepository keyed case-insensitively
// by name.
type memDiscounts struct {
	mu        sync.Mutex
	discounts map[string]*domain.Discount
}

func newMemDiscounts() *memDiscounts {
	return &memDiscounts{discounts: make(map[string]*domain.Discount)}
}

func (m *memDiscounts) Upsert(ctx context.Context, discount *domain.Discount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := *discount
	m.discounts[strings.ToLower(discount.Name)] = &d
	return nil
}

func (m *memDiscounts) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(name)
	if _, ok := m.discounts[key]; !ok {
		return repository.ErrDiscountNotFound
	}
	delete(m.discounts, key)
	return nil
}

func (m *memDiscounts) FindByName(ctx context.Context, name string) (*domain.Discount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.discounts[strings.ToLower(name)]
	if !ok {
		return nil, repository.ErrDiscountNotFound
	}
	out := *d
	return &out, nil
}

func (m *memDiscounts) List(ctx context.Context) ([]*domain.Discount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*domain.Discount, 0, len(m.discounts))
	for _, d := range m.discounts {
		c := *d
		out = append(out, &c)
	}
	return out, nil
}

// memSales is an in-memory SalesRepository. RecordSale mirrors the SQL
// implementation's all-or-nothing contract against the catalog it is
// bound to.
type memSales struct {
	mu      sync.Mutex
	catalog *memCatalog
	sales   map[uuid.UUID]*domain.Sale
}

func newMemSales(catalog *memCatalog) *memSales {
	return &memSales{catalog: catalog, sales: make(map[uuid.UUID]*domain.Sale)}
}

func (m *memSales) RecordSale(ctx context.Context, sale *domain.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate every line before touching stock so a conflict leaves
	// nothing decremented, the same contract the transaction gives the
	// SQL implementation.
	var conflicts []repository.LineConflict
	for _, item := range sale.Items {
		p, err := m.catalog.FindByID(ctx, item.ProductID)
		if err != nil {
			conflicts = append(conflicts, repository.LineConflict{
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Size:        item.Size,
				Requested:   item.Qty,
				Remaining:   0,
			})
			continue
		}
		v := p.FindVariant(item.Size)
		if v == nil || v.Stock < item.Qty {
			remaining := 0
			if v != nil {
				remaining = v.Stock
			}
			conflicts = append(conflicts, repository.LineConflict{
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Size:        item.Size,
				Requested:   item.Qty,
				Remaining:   remaining,
			})
		}
	}
	if len(conflicts) > 0 {
		return &repository.StockConflictError{Conflicts: conflicts}
	}

	for _, item := range sale.Items {
		if err := m.catalog.DecrementVariantStock(ctx, item.ProductID, item.Size, item.Qty); err != nil {
			return err
		}
	}

	s := *sale
	s.Items = make([]domain.SaleItem, len(sale.Items))
	copy(s.Items, sale.Items)
	m.sales[sale.ID] = &s
	return nil
}

func (m *memSales) FindByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sales[id]
	if !ok {
		return nil, repository.ErrSaleNotFound
	}
	out := *s
	return &out, nil
}

func (m *memSales) List(ctx context.Context, filter repository.SalesFilter) ([]*domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.Sale
	for _, s := range m.sales {
		if filter.Event != "" && s.Event != filter.Event {
			continue
		}
		c := *s
		out = append(out, &c)
	}
	return out, nil
}

func (m *memSales) MarkShipped(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sales[id]
	if !ok {
		return repository.ErrSaleNotFound
	}
	s.Shipped = true
	return nil
}

func (m *memSales) RevenueByEvent(ctx context.Context, filter repository.SalesFilter) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]float64)
	for _, s := range m.sales {
		out[s.Event] += s.Total()
	}
	return out, nil
}

func (m *memSales) RevenueByDay(ctx context.Context, filter repository.SalesFilter) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]float64)
	for _, s := range m.sales {
		out[s.CreatedAt.Format("2006-01-02")] += s.Total()
	}
	return out, nil
}

func sizedProduct(catalog *memCatalog, name string, price float64, stock int) *domain.Product {
	variants := make([]domain.Variant, len(domain.DefaultSizes))
	for i, size := range domain.DefaultSizes {
		variants[i] = domain.Variant{Size: size, Stock: stock}
	}
	p := &domain.Product{
		Name:     name,
		Category: "T-Shirt",
		Price:    price,
		Variants: variants,
	}
	catalog.Create(context.Background(), p)
	return p
}
