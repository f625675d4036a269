package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var (
	_ repository.BatchRepository    = (*BatchRepo)(nil)
	_ repository.LocationRepository = (*LocationRepo)(nil)
	_ repository.ProductRepository  = (*ProductRepo)(nil)
)

// BatchRepo lectura de lotes.
type BatchRepo struct {
	q Querier
}

// NewBatchRepository construye el adaptador de lotes.
func NewBatchRepository(q Querier) *BatchRepo {
	return &BatchRepo{q: q}
}

// GetByID obtiene un lote por ID.
func (r *BatchRepo) GetByID(ctx context.Context, id string) (*entity.Batch, error) {
	query := `
		SELECT id, organization_id, product_id, variant_id, location_id, unit_cost, expiration_date
		FROM batches WHERE id = $1`
	var b entity.Batch
	var variant *string
	err := r.q.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.OrganizationID, &b.ProductID, &variant, &b.LocationID, &b.UnitCost, &b.ExpirationDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	b.VariantID = deref(variant)
	return &b, nil
}

// LocationRepo lectura de ubicaciones.
type LocationRepo struct {
	q Querier
}

// NewLocationRepository construye el adaptador de ubicaciones.
func NewLocationRepository(q Querier) *LocationRepo {
	return &LocationRepo{q: q}
}

// GetByID obtiene una ubicación por ID.
func (r *LocationRepo) GetByID(ctx context.Context, id string) (*entity.Location, error) {
	var l entity.Location
	err := r.q.QueryRow(ctx, `SELECT id, organization_id, name FROM locations WHERE id = $1`, id).
		Scan(&l.ID, &l.OrganizationID, &l.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get location: %w", err)
	}
	return &l, nil
}

// ProductRepo lectura mínima de productos.
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador de productos.
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

// GetByID obtiene un producto por ID.
func (r *ProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	var p entity.Product
	err := r.q.QueryRow(ctx, `SELECT id, organization_id, sku, name FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.OrganizationID, &p.SKU, &p.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}
