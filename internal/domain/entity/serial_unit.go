package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// SerialStatus estado del ciclo de vida de una unidad serializada.
type SerialStatus string

// Estados de una unidad serializada.
const (
	StatusInStock   SerialStatus = "IN_STOCK"
	StatusReserved  SerialStatus = "RESERVED"
	StatusSold      SerialStatus = "SOLD"
	StatusReturned  SerialStatus = "RETURNED"
	StatusDamaged   SerialStatus = "DAMAGED"
	StatusExpired   SerialStatus = "EXPIRED"
	StatusInTransit SerialStatus = "IN_TRANSIT"
)

// SerialUnit una unidad física identificable (una fila por ítem).
type SerialUnit struct {
	ID             string
	SerialNumber   string // único por organización
	BatchID        string
	ProductID      string
	VariantID      string
	OrganizationID string
	LocationID     string
	Status         SerialStatus
	Cost           decimal.Decimal
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// StockKey llave del agregado donde la unidad cuenta actualmente.
func (u *SerialUnit) StockKey() StockKey {
	return StockKey{
		OrganizationID: u.OrganizationID,
		ProductID:      u.ProductID,
		VariantID:      u.VariantID,
		LocationID:     u.LocationID,
	}
}
