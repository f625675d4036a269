package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// DispatcherConfig parámetros del despachador de eventos.
type DispatcherConfig struct {
	Buffer      int
	MaxAttempts int
	RetryDelay  time.Duration
}

// DropCounter cuenta eventos descartados (métrica).
type DropCounter interface {
	IncDroppedEvent(eventType string)
}

// EventDispatcher entrega eventos después del commit con una goroutine de fondo.
// Emit nunca bloquea: con el buffer lleno el evento se descarta y se registra.
// Entrega al menos una vez mientras el proceso viva (reintentos acotados por evento).
type EventDispatcher struct {
	publisher EventPublisher
	cfg       DispatcherConfig
	drops     DropCounter
	log       *logger.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
	once   sync.Once
}

// NewEventDispatcher construye el despachador; llamar Start para comenzar a entregar.
func NewEventDispatcher(publisher EventPublisher, cfg DispatcherConfig, drops DropCounter, log *logger.Logger) *EventDispatcher {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1024
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	if log == nil {
		log = logger.Nop()
	}
	return &EventDispatcher{
		publisher: publisher,
		cfg:       cfg,
		drops:     drops,
		log:       log.Named("events"),
		queue:     make(chan Event, cfg.Buffer),
		done:      make(chan struct{}),
	}
}

// Start lanza el worker. ctx corta los reintentos en curso; Close vacía la cola.
func (d *EventDispatcher) Start(ctx context.Context) {
	d.once.Do(func() {
		go d.loop(ctx)
	})
}

// Emit encola sin bloquear.
func (d *EventDispatcher) Emit(event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(event, "despachador cerrado")
		return
	}
	select {
	case d.queue <- event:
	default:
		d.drop(event, "buffer de eventos lleno")
	}
}

// Close deja de aceptar eventos y espera a que el worker entregue lo pendiente.
func (d *EventDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	started := true
	d.once.Do(func() { started = false })
	if started {
		<-d.done
	}
}

func (d *EventDispatcher) loop(ctx context.Context) {
	defer close(d.done)
	for ev := range d.queue {
		d.deliver(ctx, ev)
	}
}

func (d *EventDispatcher) deliver(ctx context.Context, ev Event) {
	b := retry.WithMaxRetries(uint64(d.cfg.MaxAttempts-1), retry.NewExponential(d.cfg.RetryDelay))
	attempts := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempts++
		if err := d.publisher.Publish(ctx, ev); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		d.log.Error().
			Err(err).
			Str("event_id", ev.ID).
			Str("event_type", ev.Type).
			Int("attempts", attempts).
			Msg("no se pudo publicar el evento")
		if d.drops != nil {
			d.drops.IncDroppedEvent(ev.Type)
		}
	}
}

func (d *EventDispatcher) drop(ev Event, reason string) {
	d.log.Error().
		Str("event_id", ev.ID).
		Str("event_type", ev.Type).
		Str("serial_unit_id", ev.SerialUnitID).
		Msg(reason)
	if d.drops != nil {
		d.drops.IncDroppedEvent(ev.Type)
	}
}
