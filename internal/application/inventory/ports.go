package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Garantiza atomicidad entre ledger, agregados y unidades: si fn falla no queda nada aplicado.
// Los errores de bloqueo/deadlock/serialización deben envolver domain.ErrLockContention.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		ledgerRepo repository.LedgerRepository,
		stockRepo repository.StockLevelRepository,
		unitRepo repository.SerialUnitRepository,
	) error) error
}

// SnapshotReader ejecuta lecturas sobre una foto consistente del almacenamiento.
// Las escrituras confirmadas por otras transacciones durante fn no son visibles.
type SnapshotReader interface {
	ReadSnapshot(ctx context.Context, fn func(
		ledgerRepo repository.LedgerRepository,
		stockRepo repository.StockLevelRepository,
	) error) error
}

// Tipos de evento de dominio.
const (
	EventUnitsCreated     = "serial_unit.created"
	EventUnitTransitioned = "serial_unit.transitioned"
	EventUnitTransferred  = "serial_unit.transferred"
	EventUnitDeleted      = "serial_unit.deleted"
	EventStockAdjusted    = "stock_level.adjusted"
)

// Event notificación emitida tras cada mutación confirmada.
type Event struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	OrganizationID string    `json:"organization_id"`
	UserID         string    `json:"user_id,omitempty"`
	SerialUnitID   string    `json:"serial_unit_id,omitempty"`
	ProductID      string    `json:"product_id,omitempty"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	NewStatus      string    `json:"new_status,omitempty"`
	QuantityDelta  int64     `json:"quantity_delta"`
	LocationID     string    `json:"location_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// EventPublisher entrega un evento a un sumidero externo (Redis, log).
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// EventEmitter encola eventos sin bloquear al llamador.
type EventEmitter interface {
	Emit(event Event)
}

// Hooks métricas del motor. Las implementaciones deben ser seguras para uso concurrente.
type Hooks interface {
	ObserveOperation(op string, elapsed time.Duration, err error)
	IncRetry(op string)
	IncConflict(op string)
	IncNegativeStock(movement entity.MovementType)
}

// NoopHooks no registra nada.
type NoopHooks struct{}

func (NoopHooks) ObserveOperation(string, time.Duration, error) {}
func (NoopHooks) IncRetry(string)                               {}
func (NoopHooks) IncConflict(string)                            {}
func (NoopHooks) IncNegativeStock(entity.MovementType)          {}

type noopEmitter struct{}

func (noopEmitter) Emit(Event) {}

// LabelRenderer genera el documento de etiquetas de las unidades de un lote.
type LabelRenderer interface {
	RenderLabels(batch *entity.Batch, product *entity.Product, units []*entity.SerialUnit) ([]byte, error)
}

// LedgerExporter serializa entradas del ledger a un archivo descargable.
type LedgerExporter interface {
	ExportLedger(entries []*entity.LedgerEntry) ([]byte, error)
}
