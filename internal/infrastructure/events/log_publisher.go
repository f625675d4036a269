package events

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

var _ inventory.EventPublisher = (*LogPublisher)(nil)

// LogPublisher escribe cada evento en el log estructurado. Sumidero por defecto sin Redis.
type LogPublisher struct {
	log *logger.Logger
}

func NewLogPublisher(log *logger.Logger) *LogPublisher {
	if log == nil {
		log = logger.Nop()
	}
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, e inventory.Event) error {
	p.log.Info().
		Str("event_id", e.ID).
		Str("event_type", e.Type).
		Str("organization_id", e.OrganizationID).
		Str("serial_unit_id", e.SerialUnitID).
		Str("previous_status", e.PreviousStatus).
		Str("new_status", e.NewStatus).
		Int64("quantity_delta", e.QuantityDelta).
		Time("occurred_at", e.OccurredAt).
		Msg("evento de inventario")
	return nil
}
