package inventory

import (
	"fmt"
	"strings"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// NegativeStockPolicy qué hacer cuando un movimiento de venta deja el stock en negativo.
type NegativeStockPolicy string

const (
	PolicyReject    NegativeStockPolicy = "reject"
	PolicyAllowWarn NegativeStockPolicy = "allow_warn"
)

// ParseNegativeStockPolicy interpreta el valor de configuración. Vacío equivale a reject.
func ParseNegativeStockPolicy(s string) (NegativeStockPolicy, error) {
	switch NegativeStockPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyReject:
		return PolicyReject, nil
	case PolicyAllowWarn:
		return PolicyAllowWarn, nil
	}
	return "", fmt.Errorf("%w: política de stock negativo %q", domain.ErrInvalidInput, s)
}

// IsSaleClass movimientos gobernados por la política de stock negativo.
func IsSaleClass(m entity.MovementType) bool {
	return m == entity.MovementSale || m == entity.MovementTransferOut
}

// IsAdjustmentClass movimientos que siempre pueden dejar stock negativo.
func IsAdjustmentClass(m entity.MovementType) bool {
	switch m {
	case entity.MovementAdjustment, entity.MovementDamage, entity.MovementExpiry, entity.MovementCompensation:
		return true
	}
	return false
}

// ApplyDelta calcula la nueva cantidad. negative indica que el resultado quedó bajo cero
// por un movimiento de venta permitido por la política (el llamador debe advertirlo).
func ApplyDelta(current, delta int64, movement entity.MovementType, policy NegativeStockPolicy) (newQty int64, negative bool, err error) {
	newQty = current + delta
	if newQty >= 0 || delta >= 0 {
		return newQty, false, nil
	}
	if IsAdjustmentClass(movement) {
		return newQty, false, nil
	}
	if policy == PolicyAllowWarn {
		return newQty, true, nil
	}
	return current, false, fmt.Errorf("%w: disponible %d, solicitado %d (%s)", domain.ErrInsufficientStock, current, -delta, movement)
}
