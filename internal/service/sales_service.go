package service

import (
	"context"

	"merchpos/internal/domain"
	"merchpos/internal/repository"

	"github.com/google/uuid"
)

// SalesService exposes the read side of the sales log plus the one narrow
// mutation it permits: flipping a sale's shipped flag.
type SalesService interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Sale, error)
	List(ctx context.Context, filter repository.SalesFilter) ([]*domain.Sale, error)
	MarkShipped(ctx context.Context, id uuid.UUID) error
	RevenueByEvent(ctx context.Context, filter repository.SalesFilter) (map[string]float64, error)
	RevenueByDay(ctx context.Context, filter repository.SalesFilter) (map[string]float64, error)
}

type salesService struct {
	sales repository.SalesRepository
}

// NewSalesService creates a new instance of SalesService
func NewSalesService(sales repository.SalesRepository) SalesService {
	return &salesService{sales: sales}
}

func (s *salesService) Get(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	return s.sales.FindByID(ctx, id)
}

func (s *salesService) List(ctx context.Context, filter repository.SalesFilter) ([]*domain.Sale, error) {
	return s.sales.List(ctx, filter)
}

func (s *salesService) MarkShipped(ctx context.Context, id uuid.UUID) error {
	return s.sales.MarkShipped(ctx, id)
}

func (s *salesService) RevenueByEvent(ctx context.Context, filter repository.SalesFilter) (map[string]float64, error) {
	return s.sales.RevenueByEvent(ctx, filter)
}

func (s *salesService) RevenueByDay(ctx context.Context, filter repository.SalesFilter) (map[string]float64, error) {
	return s.sales.RevenueByDay(ctx, filter)
}
