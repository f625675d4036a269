package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

var (
	_ inventory.Hooks       = (*Prometheus)(nil)
	_ inventory.DropCounter = (*Prometheus)(nil)
)

// Prometheus métricas del motor de inventario.
type Prometheus struct {
	operations    *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	retries       *prometheus.CounterVec
	conflicts     *prometheus.CounterVec
	negativeStock *prometheus.CounterVec
	droppedEvents *prometheus.CounterVec
}

// New crea y registra las métricas en reg (prometheus.DefaultRegisterer en producción).
func New(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stock_ledger",
			Name:      "operations_total",
			Help:      "Operaciones del motor por resultado.",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stock_ledger",
			Name:      "operation_duration_seconds",
			Help:      "Duración de las operaciones incluyendo reintentos.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stock_ledger",
			Name:      "retries_total",
			Help:      "Reintentos por contención de bloqueos.",
		}, []string{"op"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stock_ledger",
			Name:      "concurrency_conflicts_total",
			Help:      "Operaciones que agotaron los reintentos.",
		}, []string{"op"}),
		negativeStock: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stock_ledger",
			Name:      "negative_stock_total",
			Help:      "Movimientos que dejaron stock negativo (política allow_warn o ajustes).",
		}, []string{"movement"}),
		droppedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stock_ledger",
			Name:      "dropped_events_total",
			Help:      "Eventos descartados tras agotar la entrega o con la cola llena.",
		}, []string{"type"}),
	}
	for _, c := range []prometheus.Collector{p.operations, p.latency, p.retries, p.conflicts, p.negativeStock, p.droppedEvents} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ObserveOperation registra duración y resultado.
func (p *Prometheus) ObserveOperation(op string, elapsed time.Duration, err error) {
	p.operations.WithLabelValues(op, Outcome(err)).Inc()
	p.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (p *Prometheus) IncRetry(op string)    { p.retries.WithLabelValues(op).Inc() }
func (p *Prometheus) IncConflict(op string) { p.conflicts.WithLabelValues(op).Inc() }

func (p *Prometheus) IncNegativeStock(movement entity.MovementType) {
	p.negativeStock.WithLabelValues(string(movement)).Inc()
}

func (p *Prometheus) IncDroppedEvent(eventType string) {
	p.droppedEvents.WithLabelValues(eventType).Inc()
}

// Outcome etiqueta de resultado con cardinalidad acotada.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return "concurrency_conflict"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}
