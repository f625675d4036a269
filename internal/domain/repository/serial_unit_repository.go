package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// SerialUnitFilter filtros del listado de unidades. Search busca en serial, SKU y nombre del producto.
type SerialUnitFilter struct {
	OrganizationID string
	ProductID      string
	VariantID      string
	BatchID        string
	LocationID     string
	Status         entity.SerialStatus
	Search         string
	Limit          int
	Offset         int
}

// SerialUnitRepository define el puerto de persistencia para unidades serializadas.
type SerialUnitRepository interface {
	Create(ctx context.Context, unit *entity.SerialUnit) error
	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.SerialUnit, error)
	// GetForUpdate igual que GetByID pero bloquea la fila.
	GetForUpdate(ctx context.Context, id string) (*entity.SerialUnit, error)
	Update(ctx context.Context, unit *entity.SerialUnit) error
	Delete(ctx context.Context, id string) error
	// FindExistingSerials devuelve los números de serie que ya existen en la organización.
	FindExistingSerials(ctx context.Context, organizationID string, serials []string) ([]string, error)
	// List ordena por created_at descendente.
	List(ctx context.Context, filter SerialUnitFilter) ([]*entity.SerialUnit, int, error)
}
