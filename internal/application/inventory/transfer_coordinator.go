package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// TransferCoordinator valida el destino antes de delegar el traslado al registro.
// El orden de bloqueo entre las dos ubicaciones lo fija StockAggregate.LockKeys.
type TransferCoordinator struct {
	locations repository.LocationRepository
	registry  *SerialUnitRegistry
}

// NewTransferCoordinator construye el coordinador.
func NewTransferCoordinator(locations repository.LocationRepository, registry *SerialUnitRegistry) *TransferCoordinator {
	return &TransferCoordinator{locations: locations, registry: registry}
}

// Transfer traslada la unidad a targetLocationID. La ubicación debe existir y pertenecer
// a la organización de la unidad (domain.ErrNotFound en otro caso).
func (c *TransferCoordinator) Transfer(ctx context.Context, scope entity.Scope, unitID, targetLocationID string, meta TransitionMetadata) (*entity.SerialUnit, error) {
	if !scope.Valid() {
		return nil, domain.ErrForbidden
	}
	targetLocationID = strings.TrimSpace(targetLocationID)
	if unitID == "" || targetLocationID == "" {
		return nil, fmt.Errorf("%w: unidad y ubicación destino obligatorias", domain.ErrInvalidInput)
	}
	target, err := c.locations.GetByID(ctx, targetLocationID)
	if err != nil {
		return nil, err
	}
	if target == nil || !scope.Owns(target.OrganizationID) {
		return nil, fmt.Errorf("%w: ubicación %s", domain.ErrNotFound, targetLocationID)
	}
	return c.registry.Transfer(ctx, scope, unitID, target, meta)
}
