package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// CreateSerialUnitsRequest body para POST /api/serial-units.
type CreateSerialUnitsRequest struct {
	BatchID       string   `json:"batch_id"`
	SerialNumbers []string `json:"serial_numbers"`
	LocationID    string   `json:"location_id,omitempty"` // por defecto la ubicación del lote
	Notes         string   `json:"notes,omitempty"`
}

// TransitionRequest body para POST /api/serial-units/:id/transition.
type TransitionRequest struct {
	Status        string `json:"status"`
	SalesOrderID  string `json:"sales_order_id,omitempty"`
	ReferenceType string `json:"reference_type,omitempty"`
	ReferenceID   string `json:"reference_id,omitempty"`
	LocationID    string `json:"location_id,omitempty"` // destino al recibir un IN_TRANSIT
	Notes         string `json:"notes,omitempty"`
}

// TransferRequest body para POST /api/serial-units/:id/transfer.
type TransferRequest struct {
	TargetLocationID string `json:"target_location_id"`
	Notes            string `json:"notes,omitempty"`
}

// SerialUnitListQuery query string de GET /api/serial-units.
type SerialUnitListQuery struct {
	ProductID  string `query:"product_id"`
	VariantID  string `query:"variant_id"`
	BatchID    string `query:"batch_id"`
	LocationID string `query:"location_id"`
	Status     string `query:"status"`
	Search     string `query:"search"`
}

// SerialUnitResponse representación de una unidad.
type SerialUnitResponse struct {
	ID             string          `json:"id"`
	SerialNumber   string          `json:"serial_number"`
	BatchID        string          `json:"batch_id"`
	ProductID      string          `json:"product_id"`
	VariantID      string          `json:"variant_id,omitempty"`
	OrganizationID string          `json:"organization_id"`
	LocationID     string          `json:"location_id"`
	Status         string          `json:"status"`
	Cost           decimal.Decimal `json:"cost"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// SerialUnitListResponse página de unidades.
type SerialUnitListResponse struct {
	Items []SerialUnitResponse `json:"items"`
	Page  PageResponse         `json:"page"`
}

// SerialUnitFromEntity mapea la entidad a su respuesta.
func SerialUnitFromEntity(u *entity.SerialUnit) SerialUnitResponse {
	return SerialUnitResponse{
		ID:             u.ID,
		SerialNumber:   u.SerialNumber,
		BatchID:        u.BatchID,
		ProductID:      u.ProductID,
		VariantID:      u.VariantID,
		OrganizationID: u.OrganizationID,
		LocationID:     u.LocationID,
		Status:         string(u.Status),
		Cost:           u.Cost,
		Notes:          u.Notes,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

// SerialUnitsFromEntities mapea una lista (nunca devuelve nil).
func SerialUnitsFromEntities(units []*entity.SerialUnit) []SerialUnitResponse {
	out := make([]SerialUnitResponse, 0, len(units))
	for _, u := range units {
		out = append(out, SerialUnitFromEntity(u))
	}
	return out
}
