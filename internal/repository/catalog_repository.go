package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"merchpos/internal/domain"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrVariantNotFound = errors.New("variant not found")
)

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// InsufficientStockError is returned when a stock decrement would drive a
// variant below zero. Remaining reports how many units are still available.
type InsufficientStockError struct {
	ProductID int64
	Size      string
	Requested int
	Remaining int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d size %q: requested %d, %d remaining",
		e.ProductID, e.Size, e.Requested, e.Remaining)
}

// CatalogRepository defines the interface for product and variant data access
type CatalogRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context, category string, page, pageSize int, sortBy string, sortOrder SortOrder) ([]*domain.Product, int, error)
	RestockVariant(ctx context.Context, productID int64, size string, amount int) error
	DecrementVariantStock(ctx context.Context, productID int64, size string, amount int) error
}

type catalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a new instance of CatalogRepository
func NewCatalogRepository(db *sql.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

// Create inserts a new product and its variants using parameterized queries
func (r *catalogRepository) Create(ctx context.Context, product *domain.Product) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO products (name, category, price, gender, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err = tx.QueryRowContext(
		ctx,
		query,
		product.Name,
		product.Category,
		product.Price,
		product.Gender,
		product.CreatedAt,
		product.UpdatedAt,
	).Scan(&product.ID)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	if err := r.insertVariants(ctx, tx, product.ID, product.Variants); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit product creation: %w", err)
	}

	return nil
}

// Update replaces a product's attributes and its variant set
func (r *catalogRepository) Update(ctx context.Context, product *domain.Product) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE products
		SET name = $2, category = $3, price = $4, gender = $5, updated_at = $6
		WHERE id = $1
	`

	result, err := tx.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Category,
		product.Price,
		product.Gender,
		product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM variants WHERE product_id = $1`, product.ID); err != nil {
		return fmt.Errorf("failed to clear variants: %w", err)
	}

	if err := r.insertVariants(ctx, tx, product.ID, product.Variants); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit product update: %w", err)
	}

	return nil
}

func (r *catalogRepository) insertVariants(ctx context.Context, tx *sql.Tx, productID int64, variants []domain.Variant) error {
	query := `
		INSERT INTO variants (product_id, size, stock, position)
		VALUES ($1, $2, $3, $4)
	`
	for i, v := range variants {
		if _, err := tx.ExecContext(ctx, query, productID, v.Size, v.Stock, i); err != nil {
			return fmt.Errorf("failed to insert variant %q: %w", v.Size, err)
		}
	}
	return nil
}

// Delete removes a product and its variants using parameterized queries
func (r *catalogRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM products WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product with its ordered variants
func (r *catalogRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `
		SELECT id, name, category, price, gender, created_at, updated_at
		FROM products
		WHERE id = $1
	`

	product := &domain.Product{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.Name,
		&product.Category,
		&product.Price,
		&product.Gender,
		&product.CreatedAt,
		&product.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	if err := r.loadVariants(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

func (r *catalogRepository) loadVariants(ctx context.Context, product *domain.Product) error {
	query := `
		SELECT size, stock
		FROM variants
		WHERE product_id = $1
		ORDER BY position ASC
	`

	rows, err := r.db.QueryContext(ctx, query, product.ID)
	if err != nil {
		return fmt.Errorf("failed to load variants: %w", err)
	}
	defer rows.Close()

	product.Variants = []domain.Variant{}
	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.Size, &v.Stock); err != nil {
			return fmt.Errorf("failed to scan variant: %w", err)
		}
		product.Variants = append(product.Variants, v)
	}

	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating variants: %w", err)
	}

	return nil
}

// List retrieves products with optional category filtering, pagination, and sorting
func (r *catalogRepository) List(ctx context.Context, category string, page, pageSize int, sortBy string, sortOrder SortOrder) ([]*domain.Product, int, error) {
	// Validate sort field to prevent SQL injection
	validSortFields := map[string]bool{
		"name":       true,
		"category":   true,
		"price":      true,
		"created_at": true,
	}

	if !validSortFields[sortBy] {
		sortBy = "name" // Default sort field
	}

	// Validate sort order
	if sortOrder != SortOrderAsc && sortOrder != SortOrderDesc {
		sortOrder = SortOrderAsc // Default sort order
	}

	// Build the WHERE clause
	whereClause := ""
	args := []interface{}{}
	argIndex := 1

	if strings.TrimSpace(category) != "" {
		whereClause = fmt.Sprintf("WHERE category = $%d", argIndex)
		args = append(args, category)
		argIndex++
	}

	// Count total products
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products %s", whereClause)
	var total int
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	// Calculate offset
	offset := (page - 1) * pageSize

	// Build the main query with sorting and pagination
	query := fmt.Sprintf(`
		SELECT id, name, category, price, gender, created_at, updated_at
		FROM products
		%s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, whereClause, sortBy, sortOrder, argIndex, argIndex+1)

	args = append(args, pageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product := &domain.Product{}
		err := rows.Scan(
			&product.ID,
			&product.Name,
			&product.Category,
			&product.Price,
			&product.Gender,
			&product.CreatedAt,
			&product.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}

	for _, product := range products {
		if err := r.loadVariants(ctx, product); err != nil {
			return nil, 0, err
		}
	}

	return products, total, nil
}

// RestockVariant increments a variant's stock by amount
func (r *catalogRepository) RestockVariant(ctx context.Context, productID int64, size string, amount int) error {
	query := `
		UPDATE variants
		SET stock = stock + $3
		WHERE product_id = $1 AND size = $2
	`

	result, err := r.db.ExecContext(ctx, query, productID, size, amount)
	if err != nil {
		return fmt.Errorf("failed to restock variant: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrVariantNotFound
	}

	return nil
}

// DecrementVariantStock atomically decrements a variant's stock. The guard
// in the UPDATE itself makes overselling impossible even under concurrent
// callers: the row is only touched while enough stock remains.
func (r *catalogRepository) DecrementVariantStock(ctx context.Context, productID int64, size string, amount int) error {
	query := `
		UPDATE variants
		SET stock = stock - $3
		WHERE product_id = $1 AND size = $2 AND stock >= $3
	`

	result, err := r.db.ExecContext(ctx, query, productID, size, amount)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var remaining int
		err := r.db.QueryRowContext(ctx,
			`SELECT stock FROM variants WHERE product_id = $1 AND size = $2`,
			productID, size,
		).Scan(&remaining)
		if err != nil {
			if err == sql.ErrNoRows {
				return ErrVariantNotFound
			}
			return fmt.Errorf("failed to read remaining stock: %w", err)
		}
		return &InsufficientStockError{
			ProductID: productID,
			Size:      size,
			Requested: amount,
			Remaining: remaining,
		}
	}

	return nil
}
