package inventory

import (
	"fmt"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// ValidMovementType indica si el tipo pertenece al catálogo de movimientos.
func ValidMovementType(m entity.MovementType) bool {
	switch m {
	case entity.MovementInitial, entity.MovementSale, entity.MovementReturn,
		entity.MovementTransferOut, entity.MovementTransferIn, entity.MovementAdjustment,
		entity.MovementDamage, entity.MovementExpiry, entity.MovementCompensation:
		return true
	}
	return false
}

// ValidateEntry reglas de una entrada de ledger antes de persistirla.
func ValidateEntry(e *entity.LedgerEntry) error {
	if e == nil {
		return fmt.Errorf("%w: entrada nula", domain.ErrInvalidInput)
	}
	if e.QuantityDelta == 0 {
		return fmt.Errorf("%w: quantity_delta no puede ser cero", domain.ErrInvalidInput)
	}
	if e.OrganizationID == "" || e.ProductID == "" || e.LocationID == "" {
		return fmt.Errorf("%w: organización, producto y ubicación son obligatorios", domain.ErrInvalidInput)
	}
	if e.TransactionID == "" {
		return fmt.Errorf("%w: transaction_id obligatorio", domain.ErrInvalidInput)
	}
	if !ValidMovementType(e.Type) {
		return fmt.Errorf("%w: tipo de movimiento %q", domain.ErrInvalidInput, e.Type)
	}
	switch e.Type {
	case entity.MovementInitial, entity.MovementReturn, entity.MovementTransferIn:
		if e.QuantityDelta < 0 {
			return fmt.Errorf("%w: %s requiere delta positivo", domain.ErrInvalidInput, e.Type)
		}
	case entity.MovementSale, entity.MovementTransferOut, entity.MovementDamage, entity.MovementExpiry:
		if e.QuantityDelta > 0 {
			return fmt.Errorf("%w: %s requiere delta negativo", domain.ErrInvalidInput, e.Type)
		}
	}
	if e.UnitCost.IsNegative() {
		return fmt.Errorf("%w: costo unitario negativo", domain.ErrInvalidInput)
	}
	return nil
}
