package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementType clasifica el motivo de un cambio de cantidad.
type MovementType string

// Tipos de movimiento del ledger.
const (
	MovementInitial      MovementType = "INITIAL"      // alta de unidades desde un lote
	MovementSale         MovementType = "SALE"         // venta
	MovementReturn       MovementType = "RETURN"       // devolución de cliente
	MovementTransferOut  MovementType = "TRANSFER_OUT" // salida por traslado (origen)
	MovementTransferIn   MovementType = "TRANSFER_IN"  // entrada por traslado (destino)
	MovementAdjustment   MovementType = "ADJUSTMENT"   // ajuste manual
	MovementDamage       MovementType = "DAMAGE"       // baja por daño
	MovementExpiry       MovementType = "EXPIRY"       // baja por vencimiento
	MovementCompensation MovementType = "COMPENSATION" // reverso de una unidad eliminada
)

// Tipos de referencia polimórfica del ledger.
const (
	ReferenceSerialUnit    = "serial_unit"
	ReferenceSalesOrder    = "sales_order"
	ReferencePurchaseOrder = "purchase_order"
	ReferenceAdjustment    = "adjustment"
)

// LedgerEntry registro inmutable de un evento que cambia cantidades.
// Seq es monotónico y define el orden total de las entradas de una misma llave.
type LedgerEntry struct {
	StockKey
	ID            string
	Seq           int64
	TransactionID string // agrupa las entradas de una misma unidad de trabajo
	Type          MovementType
	QuantityDelta int64 // con signo, nunca cero
	ReferenceType string
	ReferenceID   string
	UnitCost      decimal.Decimal
	BatchID       string
	SerialUnitID  string
	Notes         string
	CreatedBy     string
	CreatedAt     time.Time
}
