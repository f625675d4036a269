package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fixtures
// ──────────────────────────────────────────────────────────────────────────────

const (
	orgID   = "org-1"
	otherID = "org-2"
	userID  = "user-1"
)

var (
	scope  = entity.Scope{OrganizationID: orgID, UserID: userID}
	keyL1  = entity.StockKey{OrganizationID: orgID, ProductID: "p-1", LocationID: "L1"}
	keyL2  = entity.StockKey{OrganizationID: orgID, ProductID: "p-1", LocationID: "L2"}
	batch1 = entity.Batch{ID: "B1", OrganizationID: orgID, ProductID: "p-1", LocationID: "L1", UnitCost: decimal.NewFromInt(100)}
)

// recorder captura eventos y métricas.
type recorder struct {
	mu        sync.Mutex
	events    []inventory.Event
	retries   int
	conflicts int
	negatives int
}

func (r *recorder) Emit(e inventory.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ObserveOperation(string, time.Duration, error) {}
func (r *recorder) IncRetry(string)                               { r.mu.Lock(); r.retries++; r.mu.Unlock() }
func (r *recorder) IncConflict(string)                            { r.mu.Lock(); r.conflicts++; r.mu.Unlock() }
func (r *recorder) IncNegativeStock(entity.MovementType)          { r.mu.Lock(); r.negatives++; r.mu.Unlock() }

func (r *recorder) Events() []inventory.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]inventory.Event(nil), r.events...)
}

type env struct {
	store       *memory.Store
	rec         *recorder
	deps        inventory.Deps
	registry    *inventory.SerialUnitRegistry
	coordinator *inventory.TransferCoordinator
	stock       *inventory.StockUseCase
}

func newEnv(t *testing.T, opts ...func(*inventory.Deps)) *env {
	t.Helper()
	store := memory.NewStore()
	store.PutBatch(batch1)
	store.PutBatch(entity.Batch{ID: "B-OTHER", OrganizationID: otherID, ProductID: "p-9", LocationID: "LX"})
	store.PutLocation(entity.Location{ID: "L1", OrganizationID: orgID, Name: "Bodega central"})
	store.PutLocation(entity.Location{ID: "L2", OrganizationID: orgID, Name: "Tienda norte"})
	store.PutLocation(entity.Location{ID: "LX", OrganizationID: otherID, Name: "Ajena"})
	store.PutProduct(entity.Product{ID: "p-1", OrganizationID: orgID, SKU: "TV-55", Name: "Televisor 55"})

	rec := &recorder{}
	settings := inventory.DefaultSettings()
	settings.RetryBaseDelay = time.Millisecond
	settings.RetryMaxDelay = 2 * time.Millisecond
	deps := inventory.Deps{
		TxRunner:  store,
		Ledger:    store.Ledger(),
		Stock:     store.StockLevels(),
		Units:     store.SerialUnits(),
		Batches:   store.Batches(),
		Locations: store.Locations(),
		Products:  store.Products(),
		Events:    rec,
		Hooks:     rec,
		Settings:  settings,
	}
	for _, o := range opts {
		o(&deps)
	}
	registry := inventory.NewSerialUnitRegistry(deps)
	return &env{
		store:       store,
		rec:         rec,
		deps:        deps,
		registry:    registry,
		coordinator: inventory.NewTransferCoordinator(deps.Locations, registry),
		stock:       inventory.NewStockUseCase(deps, nil),
	}
}

func (e *env) create(t *testing.T, serials ...string) []*entity.SerialUnit {
	t.Helper()
	units, err := e.registry.Create(context.Background(), scope, inventory.CreateUnitsInput{BatchID: "B1", SerialNumbers: serials})
	require.NoError(t, err)
	return units
}

func (e *env) onHand(t *testing.T, key entity.StockKey) int64 {
	t.Helper()
	lvl, err := e.store.StockLevels().Get(context.Background(), key)
	require.NoError(t, err)
	if lvl == nil {
		return 0
	}
	return lvl.QuantityOnHand
}

func (e *env) entries(t *testing.T, key entity.StockKey) []*entity.LedgerEntry {
	t.Helper()
	list, err := e.store.Ledger().ListByKey(context.Background(), key, 0, 0)
	require.NoError(t, err)
	return list
}

// assertLedgerMatches verifica quantity_on_hand == Σ quantity_delta para cada llave.
func (e *env) assertLedgerMatches(t *testing.T, keys ...entity.StockKey) {
	t.Helper()
	for _, k := range keys {
		sum, err := e.store.Ledger().SumByKey(context.Background(), k)
		require.NoError(t, err)
		require.Equal(t, sum, e.onHand(t, k), "llave %s", k)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// TxRunner con fallas inyectadas
// ──────────────────────────────────────────────────────────────────────────────

// contendedRunner devuelve ErrLockContention las primeras n veces y luego delega.
type contendedRunner struct {
	inner    inventory.TxRunner
	failures int
	calls    int
}

func (r *contendedRunner) Run(ctx context.Context, fn func(repository.LedgerRepository, repository.StockLevelRepository, repository.SerialUnitRepository) error) error {
	r.calls++
	if r.calls <= r.failures {
		return errors.Join(errors.New("could not obtain lock on row"), domain.ErrLockContention)
	}
	return r.inner.Run(ctx, fn)
}

// failingUnits falla el Update de unidades para simular un error a mitad de la transacción.
type failingUnits struct {
	repository.SerialUnitRepository
	err error
}

func (f failingUnits) Update(context.Context, *entity.SerialUnit) error { return f.err }

type failingRunner struct {
	inner inventory.TxRunner
	err   error
}

func (r failingRunner) Run(ctx context.Context, fn func(repository.LedgerRepository, repository.StockLevelRepository, repository.SerialUnitRepository) error) error {
	return r.inner.Run(ctx, func(l repository.LedgerRepository, s repository.StockLevelRepository, u repository.SerialUnitRepository) error {
		return fn(l, s, failingUnits{SerialUnitRepository: u, err: r.err})
	})
}
