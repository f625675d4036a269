package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Batch lote de compra/recepción. Lo administra catálogo/compras; aquí es solo lectura.
type Batch struct {
	ID             string
	OrganizationID string
	ProductID      string
	VariantID      string
	LocationID     string // ubicación por defecto de las unidades del lote
	UnitCost       decimal.Decimal
	ExpirationDate *time.Time
}
