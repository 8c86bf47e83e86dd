package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"merchpos/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrSaleNotFound = errors.New("sale not found")
)

// LineConflict describes one cart line that failed stock validation at
// commit time.
type LineConflict struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Size        string `json:"size"`
	Requested   int    `json:"requested"`
	Remaining   int    `json:"remaining"`
}

// StockConflictError is returned when recording a sale would oversell one
// or more variants. No stock is decremented and no sale is written when
// this error is returned.
type StockConflictError struct {
	Conflicts []LineConflict
}

func (e *StockConflictError) Error() string {
	parts := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		parts[i] = fmt.Sprintf("%s (%s): requested %d, %d remaining", c.ProductName, c.Size, c.Requested, c.Remaining)
	}
	return "stock changed during checkout: " + strings.Join(parts, "; ")
}

// SalesFilter narrows ListSales results. Zero values mean "no filter".
type SalesFilter struct {
	Event   string
	From    time.Time
	To      time.Time
	Shipped *bool
}

// SalesRepository defines the interface for the append-only sales log.
type SalesRepository interface {
	// RecordSale decrements the stock of every sold variant and appends
	// the sale in a single transaction. It either fully applies or makes
	// no change at all.
	RecordSale(ctx context.Context, sale *domain.Sale) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error)
	List(ctx context.Context, filter SalesFilter) ([]*domain.Sale, error)
	MarkShipped(ctx context.Context, id uuid.UUID) error
	RevenueByEvent(ctx context.Context, filter SalesFilter) (map[string]float64, error)
	RevenueByDay(ctx context.Context, filter SalesFilter) (map[string]float64, error)
}

type salesRepository struct {
	db *sql.DB
}

// NewSalesRepository creates a new instance of SalesRepository
func NewSalesRepository(db *sql.DB) SalesRepository {
	return &salesRepository{db: db}
}

// RecordSale writes the sale and its stock decrements as one serializable
// transaction. Each decrement is guarded by `stock >= qty` in the UPDATE;
// a guard miss means stock moved between cart build-up and checkout, and
// the whole transaction is rolled back with a StockConflictError listing
// every short line.
func (r *salesRepository) RecordSale(ctx context.Context, sale *domain.Sale) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin sale transaction: %w", err)
	}
	defer tx.Rollback()

	var conflicts []LineConflict
	for _, item := range sale.Items {
		result, err := tx.ExecContext(ctx, `
			UPDATE variants
			SET stock = stock - $3
			WHERE product_id = $1 AND size = $2 AND stock >= $3
		`, item.ProductID, item.Size, item.Qty)
		if err != nil {
			return fmt.Errorf("failed to decrement stock: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}

		if rowsAffected == 0 {
			var remaining int
			err := tx.QueryRowContext(ctx,
				`SELECT stock FROM variants WHERE product_id = $1 AND size = $2`,
				item.ProductID, item.Size,
			).Scan(&remaining)
			if err != nil && err != sql.ErrNoRows {
				return fmt.Errorf("failed to read remaining stock: %w", err)
			}
			conflicts = append(conflicts, LineConflict{
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Size:        item.Size,
				Requested:   item.Qty,
				Remaining:   remaining,
			})
		}
	}

	if len(conflicts) > 0 {
		// The deferred rollback undoes any decrements already applied.
		return &StockConflictError{Conflicts: conflicts}
	}

	var contactMethod, contactDetail sql.NullString
	if sale.Contact != nil {
		contactMethod = sql.NullString{String: sale.Contact.Method, Valid: true}
		contactDetail = sql.NullString{String: sale.Contact.Detail, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, created_at, event, contact_method, contact_detail, shipped)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sale.ID, sale.CreatedAt, sale.Event, contactMethod, contactDetail, sale.Shipped)
	if err != nil {
		return fmt.Errorf("failed to insert sale: %w", err)
	}

	for _, item := range sale.Items {
		var discountName sql.NullString
		if item.DiscountName != "" {
			discountName = sql.NullString{String: item.DiscountName, Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, product_name, size, qty, unit_price, effective_price, discount_name)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, sale.ID, item.ProductID, item.ProductName, item.Size, item.Qty, item.UnitPrice, item.EffectivePrice, discountName)
		if err != nil {
			return fmt.Errorf("failed to insert sale item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sale: %w", err)
	}

	return nil
}

// FindByID retrieves a sale with its item snapshot
func (r *salesRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	query := `
		SELECT id, created_at, event, contact_method, contact_detail, shipped
		FROM sales
		WHERE id = $1
	`

	sale, err := scanSale(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("failed to find sale by ID: %w", err)
	}

	if err := r.loadItems(ctx, sale); err != nil {
		return nil, err
	}

	return sale, nil
}

// List retrieves sales matching the filter, newest first
func (r *salesRepository) List(ctx context.Context, filter SalesFilter) ([]*domain.Sale, error) {
	where, args := buildSalesWhere(filter)

	query := fmt.Sprintf(`
		SELECT s.id, s.created_at, s.event, s.contact_method, s.contact_detail, s.shipped
		FROM sales s
		%s
		ORDER BY s.created_at DESC
	`, where)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	defer rows.Close()

	sales := []*domain.Sale{}
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, sale)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sales: %w", err)
	}

	for _, sale := range sales {
		if err := r.loadItems(ctx, sale); err != nil {
			return nil, err
		}
	}

	return sales, nil
}

// MarkShipped flips a sale's shipped flag. Items stay untouched.
func (r *salesRepository) MarkShipped(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE sales SET shipped = TRUE WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark sale shipped: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrSaleNotFound
	}

	return nil
}

// RevenueByEvent sums sale revenue grouped by event tag
func (r *salesRepository) RevenueByEvent(ctx context.Context, filter SalesFilter) (map[string]float64, error) {
	return r.revenueGroupedBy(ctx, "s.event", filter)
}

// RevenueByDay sums sale revenue grouped by calendar day
func (r *salesRepository) RevenueByDay(ctx context.Context, filter SalesFilter) (map[string]float64, error) {
	return r.revenueGroupedBy(ctx, "to_char(s.created_at, 'YYYY-MM-DD')", filter)
}

func (r *salesRepository) revenueGroupedBy(ctx context.Context, groupExpr string, filter SalesFilter) (map[string]float64, error) {
	where, args := buildSalesWhere(filter)

	query := fmt.Sprintf(`
		SELECT %s AS bucket, COALESCE(SUM(i.effective_price * i.qty), 0)
		FROM sales s
		JOIN sale_items i ON i.sale_id = s.id
		%s
		GROUP BY bucket
		ORDER BY bucket
	`, groupExpr, where)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate revenue: %w", err)
	}
	defer rows.Close()

	totals := map[string]float64{}
	for rows.Next() {
		var bucket string
		var revenue float64
		if err := rows.Scan(&bucket, &revenue); err != nil {
			return nil, fmt.Errorf("failed to scan revenue row: %w", err)
		}
		totals[bucket] = revenue
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating revenue rows: %w", err)
	}

	return totals, nil
}

func (r *salesRepository) loadItems(ctx context.Context, sale *domain.Sale) error {
	query := `
		SELECT product_id, product_name, size, qty, unit_price, effective_price, discount_name
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, sale.ID)
	if err != nil {
		return fmt.Errorf("failed to load sale items: %w", err)
	}
	defer rows.Close()

	sale.Items = []domain.SaleItem{}
	for rows.Next() {
		var item domain.SaleItem
		var discountName sql.NullString
		if err := rows.Scan(
			&item.ProductID,
			&item.ProductName,
			&item.Size,
			&item.Qty,
			&item.UnitPrice,
			&item.EffectivePrice,
			&discountName,
		); err != nil {
			return fmt.Errorf("failed to scan sale item: %w", err)
		}
		item.DiscountName = discountName.String
		sale.Items = append(sale.Items, item)
	}

	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating sale items: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSale(row rowScanner) (*domain.Sale, error) {
	sale := &domain.Sale{}
	var contactMethod, contactDetail sql.NullString

	err := row.Scan(
		&sale.ID,
		&sale.CreatedAt,
		&sale.Event,
		&contactMethod,
		&contactDetail,
		&sale.Shipped,
	)
	if err != nil {
		return nil, err
	}

	if contactMethod.Valid || contactDetail.Valid {
		sale.Contact = &domain.Contact{
			Method: contactMethod.String,
			Detail: contactDetail.String,
		}
	}

	return sale, nil
}

func buildSalesWhere(filter SalesFilter) (string, []interface{}) {
	clauses := []string{}
	args := []interface{}{}
	argIndex := 1

	if strings.TrimSpace(filter.Event) != "" {
		clauses = append(clauses, fmt.Sprintf("s.event = $%d", argIndex))
		args = append(args, filter.Event)
		argIndex++
	}
	if !filter.From.IsZero() {
		clauses = append(clauses, fmt.Sprintf("s.created_at >= $%d", argIndex))
		args = append(args, filter.From)
		argIndex++
	}
	if !filter.To.IsZero() {
		clauses = append(clauses, fmt.Sprintf("s.created_at <= $%d", argIndex))
		args = append(args, filter.To)
		argIndex++
	}
	if filter.Shipped != nil {
		clauses = append(clauses, fmt.Sprintf("s.shipped = $%d", argIndex))
		args = append(args, *filter.Shipped)
		argIndex++
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}
