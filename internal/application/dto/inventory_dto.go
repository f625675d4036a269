package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// StockKeyQuery llave de stock en query string (organization_id solo para super admin).
type StockKeyQuery struct {
	OrganizationID string `query:"organization_id"`
	ProductID      string `query:"product_id"`
	VariantID      string `query:"variant_id"`
	LocationID     string `query:"location_id"`
}

// Key convierte la query en llave de dominio.
func (q StockKeyQuery) Key() entity.StockKey {
	return entity.StockKey{
		OrganizationID: q.OrganizationID,
		ProductID:      q.ProductID,
		VariantID:      q.VariantID,
		LocationID:     q.LocationID,
	}
}

// AdjustStockRequest body para POST /api/stock-levels/adjustments.
type AdjustStockRequest struct {
	ProductID   string           `json:"product_id"`
	VariantID   string           `json:"variant_id,omitempty"`
	LocationID  string           `json:"location_id"`
	Delta       int64            `json:"delta"`
	UnitCost    *decimal.Decimal `json:"unit_cost,omitempty"`
	Reason      string           `json:"reason"`
	ReferenceID string           `json:"reference_id,omitempty"`
}

// StockLevelResponse agregado de stock.
type StockLevelResponse struct {
	OrganizationID string          `json:"organization_id"`
	ProductID      string          `json:"product_id"`
	VariantID      string          `json:"variant_id,omitempty"`
	LocationID     string          `json:"location_id"`
	QuantityOnHand int64           `json:"quantity_on_hand"`
	AverageCost    decimal.Decimal `json:"average_cost"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// LedgerEntryResponse entrada del ledger.
type LedgerEntryResponse struct {
	ID            string          `json:"id"`
	Seq           int64           `json:"seq"`
	TransactionID string          `json:"transaction_id"`
	Type          string          `json:"type"`
	QuantityDelta int64           `json:"quantity_delta"`
	ProductID     string          `json:"product_id"`
	VariantID     string          `json:"variant_id,omitempty"`
	LocationID    string          `json:"location_id"`
	ReferenceType string          `json:"reference_type,omitempty"`
	ReferenceID   string          `json:"reference_id,omitempty"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	BatchID       string          `json:"batch_id,omitempty"`
	SerialUnitID  string          `json:"serial_unit_id,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedBy     string          `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// DiscrepancyResponse llave cuyo agregado no coincide con el ledger.
type DiscrepancyResponse struct {
	ProductID  string `json:"product_id"`
	VariantID  string `json:"variant_id,omitempty"`
	LocationID string `json:"location_id"`
	Aggregate  int64  `json:"aggregate"`
	LedgerSum  int64  `json:"ledger_sum"`
}

// ReconciliationResponse resultado de conciliar agregados contra el ledger.
type ReconciliationResponse struct {
	OrganizationID string                `json:"organization_id,omitempty"`
	Consistent     bool                  `json:"consistent"`
	KeysChecked    int                   `json:"keys_checked"`
	EntriesRead    int                   `json:"entries_read"`
	Discrepancies  []DiscrepancyResponse `json:"discrepancies"`
}

// StockLevelFromEntity mapea el agregado.
func StockLevelFromEntity(l *entity.StockLevel) StockLevelResponse {
	return StockLevelResponse{
		OrganizationID: l.OrganizationID,
		ProductID:      l.ProductID,
		VariantID:      l.VariantID,
		LocationID:     l.LocationID,
		QuantityOnHand: l.QuantityOnHand,
		AverageCost:    l.AverageCost,
		UpdatedAt:      l.UpdatedAt,
	}
}

// LedgerEntryFromEntity mapea la entrada.
func LedgerEntryFromEntity(e *entity.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:            e.ID,
		Seq:           e.Seq,
		TransactionID: e.TransactionID,
		Type:          string(e.Type),
		QuantityDelta: e.QuantityDelta,
		ProductID:     e.ProductID,
		VariantID:     e.VariantID,
		LocationID:    e.LocationID,
		ReferenceType: e.ReferenceType,
		ReferenceID:   e.ReferenceID,
		UnitCost:      e.UnitCost,
		BatchID:       e.BatchID,
		SerialUnitID:  e.SerialUnitID,
		Notes:         e.Notes,
		CreatedBy:     e.CreatedBy,
		CreatedAt:     e.CreatedAt,
	}
}
