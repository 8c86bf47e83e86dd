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
	ErrDiscountNotFound = errors.New("discount not found")
)

// DiscountRepository defines the interface for discount data access.
// Discounts are keyed by name, case-insensitively; Upsert overwrites any
// existing discount with the same name.
type DiscountRepository interface {
	Upsert(ctx context.Context, discount *domain.Discount) error
	Delete(ctx context.Context, name string) error
	FindByName(ctx context.Context, name string) (*domain.Discount, error)
	List(ctx context.Context) ([]*domain.Discount, error)
}

type discountRepository struct {
	db *sql.DB
}

// NewDiscountRepository creates a new instance of DiscountRepository
func NewDiscountRepository(db *sql.DB) DiscountRepository {
	return &discountRepository{db: db}
}

// Upsert inserts a discount or overwrites the one sharing its name
func (r *discountRepository) Upsert(ctx context.Context, discount *domain.Discount) error {
	query := `
		INSERT INTO discounts (name_key, name, type, value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name_key)
		DO UPDATE SET name = EXCLUDED.name, type = EXCLUDED.type,
		              value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		strings.ToLower(discount.Name),
		discount.Name,
		discount.Type,
		discount.Value,
		discount.CreatedAt,
		discount.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert discount: %w", err)
	}

	return nil
}

// Delete removes a discount by name
func (r *discountRepository) Delete(ctx context.Context, name string) error {
	query := `DELETE FROM discounts WHERE name_key = $1`

	result, err := r.db.ExecContext(ctx, query, strings.ToLower(name))
	if err != nil {
		return fmt.Errorf("failed to delete discount: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrDiscountNotFound
	}

	return nil
}

// FindByName retrieves a discount by its case-insensitive name
func (r *discountRepository) FindByName(ctx context.Context, name string) (*domain.Discount, error) {
	query := `
		SELECT name, type, value, created_at, updated_at
		FROM discounts
		WHERE name_key = $1
	`

	discount := &domain.Discount{}
	err := r.db.QueryRowContext(ctx, query, strings.ToLower(name)).Scan(
		&discount.Name,
		&discount.Type,
		&discount.Value,
		&discount.CreatedAt,
		&discount.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDiscountNotFound
		}
		return nil, fmt.Errorf("failed to find discount by name: %w", err)
	}

	return discount, nil
}

// List retrieves all discounts ordered by name
func (r *discountRepository) List(ctx context.Context) ([]*domain.Discount, error) {
	query := `
		SELECT name, type, value, created_at, updated_at
		FROM discounts
		ORDER BY name_key ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list discounts: %w", err)
	}
	defer rows.Close()

	discounts := []*domain.Discount{}
	for rows.Next() {
		discount := &domain.Discount{}
		err := rows.Scan(
			&discount.Name,
			&discount.Type,
			&discount.Value,
			&discount.CreatedAt,
			&discount.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan discount: %w", err)
		}
		discounts = append(discounts, discount)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating discounts: %w", err)
	}

	return discounts, nil
}
