package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// Settings parámetros del motor (ver INVENTORY_* en pkg/config).
type Settings struct {
	NegativePolicy inventory.NegativeStockPolicy
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	TxTimeout      time.Duration // 0 = sin límite propio, solo el del ctx
}

// DefaultSettings valores por defecto.
func DefaultSettings() Settings {
	return Settings{
		NegativePolicy: inventory.PolicyReject,
		MaxRetries:     3,
		RetryBaseDelay: 20 * time.Millisecond,
		RetryMaxDelay:  500 * time.Millisecond,
		TxTimeout:      5 * time.Second,
	}
}

// Deps dependencias compartidas por los casos de uso del motor.
// Ledger, Stock y Units son repositorios de lectura fuera de transacción.
type Deps struct {
	TxRunner  TxRunner
	Ledger    repository.LedgerRepository
	Stock     repository.StockLevelRepository
	Units     repository.SerialUnitRepository
	Batches   repository.BatchRepository
	Locations repository.LocationRepository
	Products  repository.ProductRepository
	Events    EventEmitter // nil = sin eventos
	Hooks     Hooks        // nil = NoopHooks
	Logger    *logger.Logger
	Settings  Settings
}

func (d Deps) withDefaults() Deps {
	if d.Events == nil {
		d.Events = noopEmitter{}
	}
	if d.Hooks == nil {
		d.Hooks = NoopHooks{}
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.Settings.NegativePolicy == "" {
		d.Settings.NegativePolicy = inventory.PolicyReject
	}
	return d
}

type txFunc func(
	ledgerRepo repository.LedgerRepository,
	stockRepo repository.StockLevelRepository,
	unitRepo repository.SerialUnitRepository,
) error

// unitOfWork ejecuta una operación mutante como una transacción acotada en tiempo.
// Ante contención de bloqueos repite la transacción completa con backoff exponencial;
// agotados los reintentos devuelve domain.ErrConcurrencyConflict.
type unitOfWork struct {
	tx       TxRunner
	settings Settings
	hooks    Hooks
	log      *logger.Logger
}

func newUnitOfWork(d Deps) *unitOfWork {
	return &unitOfWork{tx: d.TxRunner, settings: d.Settings, hooks: d.Hooks, log: d.Logger}
}

func (u *unitOfWork) backoff() retry.Backoff {
	base := u.settings.RetryBaseDelay
	if base <= 0 {
		base = time.Millisecond
	}
	b := retry.NewExponential(base)
	if u.settings.RetryMaxDelay > 0 {
		b = retry.WithCappedDuration(u.settings.RetryMaxDelay, b)
	}
	retries := u.settings.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return retry.WithMaxRetries(uint64(retries), b)
}

func (u *unitOfWork) run(ctx context.Context, op string, fn txFunc) error {
	start := time.Now()
	attempts := 0
	err := retry.Do(ctx, u.backoff(), func(ctx context.Context) error {
		attempts++
		if attempts > 1 {
			u.hooks.IncRetry(op)
			u.log.Debug().Str("op", op).Int("attempt", attempts).Msg("reintentando unidad de trabajo")
		}
		txCtx := ctx
		if u.settings.TxTimeout > 0 {
			var cancel context.CancelFunc
			txCtx, cancel = context.WithTimeout(ctx, u.settings.TxTimeout)
			defer cancel()
		}
		err := u.tx.Run(txCtx, func(
			ledgerRepo repository.LedgerRepository,
			stockRepo repository.StockLevelRepository,
			unitRepo repository.SerialUnitRepository,
		) error {
			return fn(ledgerRepo, stockRepo, unitRepo)
		})
		if errors.Is(err, domain.ErrLockContention) {
			return retry.RetryableError(err)
		}
		return err
	})
	if errors.Is(err, domain.ErrLockContention) {
		u.hooks.IncConflict(op)
		u.log.Warn().Str("op", op).Int("attempts", attempts).Err(err).Msg("contención de bloqueo persistente")
		err = fmt.Errorf("%w: %s tras %d intentos", domain.ErrConcurrencyConflict, op, attempts)
	}
	u.hooks.ObserveOperation(op, time.Since(start), err)
	return err
}
