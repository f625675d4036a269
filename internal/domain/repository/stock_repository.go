package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// StockLevelFilter filtros de consulta de agregados. OrganizationID vacío solo para super admin.
type StockLevelFilter struct {
	OrganizationID string
	ProductID      string
	VariantID      string
	LocationID     string
	Limit          int
	Offset         int
}

// StockLevelRepository define el puerto para consultar/actualizar el stock por llave.
// Usado dentro de transacciones para garantizar consistencia con el ledger.
type StockLevelRepository interface {
	// Get devuelve el agregado o nil si la llave nunca tuvo movimientos.
	Get(ctx context.Context, key entity.StockKey) (*entity.StockLevel, error)
	// GetForUpdate crea la fila en cero si no existe y la bloquea (SELECT FOR UPDATE).
	GetForUpdate(ctx context.Context, key entity.StockKey) (*entity.StockLevel, error)
	Save(ctx context.Context, level *entity.StockLevel) error
	List(ctx context.Context, filter StockLevelFilter) ([]*entity.StockLevel, error)
}
