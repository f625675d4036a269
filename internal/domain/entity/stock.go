package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockKey identifica un agregado de stock: (organización, producto, variante, ubicación).
type StockKey struct {
	OrganizationID string
	ProductID      string
	VariantID      string // vacío si el producto no tiene variantes
	LocationID     string
}

// String representación estable de la llave (logs, ordenamiento, caché).
func (k StockKey) String() string {
	return k.OrganizationID + "/" + k.ProductID + "/" + k.VariantID + "@" + k.LocationID
}

// Less orden canónico de adquisición de bloqueos: ubicación, producto, variante, organización.
func (k StockKey) Less(o StockKey) bool {
	if k.LocationID != o.LocationID {
		return k.LocationID < o.LocationID
	}
	if k.ProductID != o.ProductID {
		return k.ProductID < o.ProductID
	}
	if k.VariantID != o.VariantID {
		return k.VariantID < o.VariantID
	}
	return k.OrganizationID < o.OrganizationID
}

// StockLevel cantidad disponible actual de una llave. Se crea perezosamente y nunca se borra.
// Invariante: QuantityOnHand == suma de QuantityDelta del ledger para la misma llave.
type StockLevel struct {
	StockKey
	QuantityOnHand int64
	AverageCost    decimal.Decimal // costo promedio ponderado de las entradas valorizadas
	UpdatedAt      time.Time
}
