package inventory_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	domaininv "github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// Create
// ──────────────────────────────────────────────────────────────────────────────

func TestCreate_DosSerialesIncrementanStock(t *testing.T) {
	e := newEnv(t)
	units := e.create(t, "SN-1", "SN-2")

	require.Len(t, units, 2)
	for _, u := range units {
		assert.Equal(t, entity.StatusInStock, u.Status)
		assert.Equal(t, "L1", u.LocationID)
		assert.True(t, batch1.UnitCost.Equal(u.Cost))
	}
	assert.Equal(t, int64(2), e.onHand(t, keyL1))

	entries := e.entries(t, keyL1)
	require.Len(t, entries, 2)
	for i, en := range entries {
		assert.Equal(t, entity.MovementInitial, en.Type)
		assert.Equal(t, int64(1), en.QuantityDelta)
		assert.Equal(t, entity.ReferenceSerialUnit, en.ReferenceType)
		assert.Equal(t, units[i].ID, en.SerialUnitID)
		assert.Equal(t, "B1", en.BatchID)
		assert.Equal(t, userID, en.CreatedBy)
	}
	assert.Equal(t, entries[0].TransactionID, entries[1].TransactionID)
	e.assertLedgerMatches(t, keyL1)

	events := e.rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, inventory.EventUnitsCreated, events[0].Type)
	assert.Equal(t, orgID, events[0].OrganizationID)
}

func TestCreate_SerialExistenteAbortaTodoElLote(t *testing.T) {
	e := newEnv(t)
	e.create(t, "SN-1")

	_, err := e.registry.Create(context.Background(), scope, inventory.CreateUnitsInput{BatchID: "B1", SerialNumbers: []string{"SN-1", "SN-2"}})
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Contains(t, err.Error(), "SN-1")

	assert.Equal(t, int64(1), e.onHand(t, keyL1))
	assert.Len(t, e.entries(t, keyL1), 1)
	_, total, err := e.store.SerialUnits().List(context.Background(), repository.SerialUnitFilter{OrganizationID: orgID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestCreate_Validaciones(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	cases := []struct {
		name  string
		scope entity.Scope
		in    inventory.CreateUnitsInput
		want  error
	}{
		{"sin seriales", scope, inventory.CreateUnitsInput{BatchID: "B1"}, domain.ErrInvalidInput},
		{"serial en blanco", scope, inventory.CreateUnitsInput{BatchID: "B1", SerialNumbers: []string{"SN-1", "  "}}, domain.ErrInvalidInput},
		{"serial demasiado largo", scope, inventory.CreateUnitsInput{BatchID: "B1", SerialNumbers: []string{"SN-1", strings.Repeat("X", 101)}}, domain.ErrInvalidInput},
		{"repetido en la solicitud", scope, inventory.CreateUnitsInput{BatchID: "B1", SerialNumbers: []string{"SN-1", " SN-1"}}, domain.ErrConflict},
		{"lote inexistente", scope, inventory.CreateUnitsInput{BatchID: "B9", SerialNumbers: []string{"SN-1"}}, domain.ErrNotFound},
		{"lote de otra organización", scope, inventory.CreateUnitsInput{BatchID: "B-OTHER", SerialNumbers: []string{"SN-1"}}, domain.ErrNotFound},
		{"ubicación de otra organización", scope, inventory.CreateUnitsInput{BatchID: "B1", SerialNumbers: []string{"SN-1"}, LocationID: "LX"}, domain.ErrNotFound},
		{"ámbito vacío", entity.Scope{}, inventory.CreateUnitsInput{BatchID: "B1", SerialNumbers: []string{"SN-1"}}, domain.ErrForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.registry.Create(ctx, tc.scope, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Empty(t, e.entries(t, keyL1))

	units, err := e.registry.Create(ctx, scope, inventory.CreateUnitsInput{BatchID: "B1", SerialNumbers: []string{strings.Repeat("ñ", 100)}})
	require.NoError(t, err, "el límite se cuenta en caracteres")
	require.Len(t, units, 1)
}

func TestCreate_SuperAdminOperaSobreOtraOrganizacion(t *testing.T) {
	e := newEnv(t)
	admin := entity.Scope{UserID: "root", SuperAdmin: true}
	units, err := e.registry.Create(context.Background(), admin, inventory.CreateUnitsInput{BatchID: "B-OTHER", SerialNumbers: []string{"X-1"}})
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, otherID, units[0].OrganizationID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Transition
// ──────────────────────────────────────────────────────────────────────────────

func TestTransition_VentaConOrden(t *testing.T) {
	e := newEnv(t)
	units := e.create(t, "SN-1", "SN-2")

	sold, err := e.registry.Transition(context.Background(), scope, units[0].ID, entity.StatusSold, inventory.TransitionMetadata{SalesOrderID: "42"})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSold, sold.Status)
	assert.Equal(t, int64(1), e.onHand(t, keyL1))

	entries := e.entries(t, keyL1)
	require.Len(t, entries, 3)
	last := entries[2]
	assert.Equal(t, entity.MovementSale, last.Type)
	assert.Equal(t, int64(-1), last.QuantityDelta)
	assert.Equal(t, entity.ReferenceSalesOrder, last.ReferenceType)
	assert.Equal(t, "42", last.ReferenceID)
	e.assertLedgerMatches(t, keyL1)
}

func TestTransition_SoldAInStockEsInvalida(t *testing.T) {
	e := newEnv(t)
	units := e.create(t, "SN-1")
	ctx := context.Background()
	_, err := e.registry.Transition(ctx, scope, units[0].ID, entity.StatusSold, inventory.TransitionMetadata{})
	require.NoError(t, err)

	_, err = e.registry.Transition(ctx, scope, units[0].ID, entity.StatusInStock, inventory.TransitionMetadata{})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	u, err := e.registry.Get(ctx, scope, units[0].ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSold, u.Status)
	assert.Len(t, e.entries(t, keyL1), 2)
}

func TestTransition_ReservaNoEscribeLedger(t *testing.T) {
	e := newEnv(t)
	units := e.create(t, "SN-1")
	ctx := context.Background()

	u, err := e.registry.Transition(ctx, scope, units[0].ID, entity.StatusReserved, inventory.TransitionMetadata{})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusReserved, u.Status)
	assert.Len(t, e.entries(t, keyL1), 1)
	assert.Equal(t, int64(1), e.onHand(t, keyL1))
}

func TestTransition_CicloDevolucion(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, "SN-1")[0].ID
	ctx := context.Background()
	for _, st := range []entity.SerialStatus{entity.StatusReserved, entity.StatusSold, entity.StatusReturned, entity.StatusInStock} {
		_, err := e.registry.Transition(ctx, scope, id, st, inventory.TransitionMetadata{})
		require.NoError(t, err, st)
	}
	assert.Equal(t, int64(1), e.onHand(t, keyL1))
	types := []entity.MovementType{}
	for _, en := range e.entries(t, keyL1) {
		types = append(types, en.Type)
	}
	assert.Equal(t, []entity.MovementType{entity.MovementInitial, entity.MovementSale, entity.MovementReturn}, types)
	e.assertLedgerMatches(t, keyL1)
}

func TestTransition_EnTransitoLlegaADestino(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, "SN-1")[0].ID
	ctx := context.Background()

	_, err := e.registry.Transition(ctx, scope, id, entity.StatusInTransit, inventory.TransitionMetadata{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), e.onHand(t, keyL1))

	u, err := e.registry.Transition(ctx, scope, id, entity.StatusInStock, inventory.TransitionMetadata{LocationID: "L2"})
	require.NoError(t, err)
	assert.Equal(t, "L2", u.LocationID)
	assert.Equal(t, int64(1), e.onHand(t, keyL2))
	e.assertLedgerMatches(t, keyL1, keyL2)
}

func TestTransition_FueraDeAmbitoEsNotFound(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, "SN-1")[0].ID
	other := entity.Scope{OrganizationID: otherID, UserID: "u2"}
	_, err := e.registry.Transition(context.Background(), other, id, entity.StatusSold, inventory.TransitionMetadata{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.registry.Get(context.Background(), other, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransition_EstadoDesconocido(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, "SN-1")[0].ID
	_, err := e.registry.Transition(context.Background(), scope, id, "LOST", inventory.TransitionMetadata{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTransition_FallaAMitadRevierteTodo(t *testing.T) {
	boom := errors.New("disk full")
	e := newEnv(t)
	id := e.create(t, "SN-1")[0].ID

	broken := inventory.NewSerialUnitRegistry(withRunner(e.deps, failingRunner{inner: e.store, err: boom}))
	_, err := broken.Transition(context.Background(), scope, id, entity.StatusSold, inventory.TransitionMetadata{})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, int64(1), e.onHand(t, keyL1))
	assert.Len(t, e.entries(t, keyL1), 1)
	u, err := e.registry.Get(context.Background(), scope, id)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInStock, u.Status)
}

// ──────────────────────────────────────────────────────────────────────────────
// Política de stock negativo
// ──────────────────────────────────────────────────────────────────────────────

func TestVenta_StockNegativoSegunPolitica(t *testing.T) {
	drain := func(t *testing.T, e *env) string {
		id := e.create(t, "SN-1")[0].ID
		_, err := e.stock.Adjust(context.Background(), scope, inventory.AdjustStockInput{ProductID: "p-1", LocationID: "L1", Delta: -1, Reason: "conteo físico"})
		require.NoError(t, err)
		return id
	}

	t.Run("reject", func(t *testing.T) {
		e := newEnv(t)
		id := drain(t, e)
		_, err := e.registry.Transition(context.Background(), scope, id, entity.StatusSold, inventory.TransitionMetadata{})
		require.ErrorIs(t, err, domain.ErrInsufficientStock)
		assert.Equal(t, int64(0), e.onHand(t, keyL1))
	})

	t.Run("allow_warn", func(t *testing.T) {
		e := newEnv(t, func(d *inventory.Deps) { d.Settings.NegativePolicy = domaininv.PolicyAllowWarn })
		id := drain(t, e)
		_, err := e.registry.Transition(context.Background(), scope, id, entity.StatusSold, inventory.TransitionMetadata{})
		require.NoError(t, err)
		assert.Equal(t, int64(-1), e.onHand(t, keyL1))
		assert.Equal(t, 1, e.rec.negatives)
		e.assertLedgerMatches(t, keyL1)
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Transfer
// ──────────────────────────────────────────────────────────────────────────────

func TestTransfer_MueveUnidadEntreUbicaciones(t *testing.T) {
	e := newEnv(t)
	units := e.create(t, "SN-1", "SN-2")

	u, err := e.coordinator.Transfer(context.Background(), scope, units[1].ID, "L2", inventory.TransitionMetadata{})
	require.NoError(t, err)
	assert.Equal(t, "L2", u.LocationID)
	assert.Equal(t, entity.StatusInStock, u.Status)

	assert.Equal(t, int64(1), e.onHand(t, keyL1))
	assert.Equal(t, int64(1), e.onHand(t, keyL2))

	out := e.entries(t, keyL1)
	require.Len(t, out, 3)
	assert.Equal(t, entity.MovementTransferOut, out[2].Type)
	assert.Equal(t, int64(-1), out[2].QuantityDelta)
	in := e.entries(t, keyL2)
	require.Len(t, in, 1)
	assert.Equal(t, entity.MovementTransferIn, in[0].Type)
	assert.Equal(t, int64(1), in[0].QuantityDelta)
	assert.Equal(t, out[2].TransactionID, in[0].TransactionID)
	e.assertLedgerMatches(t, keyL1, keyL2)
}

func TestTransfer_Rechazos(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	units := e.create(t, "SN-1", "SN-2")
	_, err := e.registry.Transition(ctx, scope, units[1].ID, entity.StatusReserved, inventory.TransitionMetadata{})
	require.NoError(t, err)

	_, err = e.coordinator.Transfer(ctx, scope, units[0].ID, "L1", inventory.TransitionMetadata{})
	assert.ErrorIs(t, err, domain.ErrConflict, "misma ubicación")

	_, err = e.coordinator.Transfer(ctx, scope, units[0].ID, "L404", inventory.TransitionMetadata{})
	assert.ErrorIs(t, err, domain.ErrNotFound, "destino inexistente")

	_, err = e.coordinator.Transfer(ctx, scope, units[0].ID, "LX", inventory.TransitionMetadata{})
	assert.ErrorIs(t, err, domain.ErrNotFound, "destino de otra organización")

	_, err = e.coordinator.Transfer(ctx, scope, units[1].ID, "L2", inventory.TransitionMetadata{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "unidad reservada")

	assert.Equal(t, int64(2), e.onHand(t, keyL1))
	assert.Equal(t, int64(0), e.onHand(t, keyL2))
}

// ──────────────────────────────────────────────────────────────────────────────
// Delete
// ──────────────────────────────────────────────────────────────────────────────

func TestDelete_CompensaYBorraUnidad(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.create(t, "SN-1")[0].ID
	_, err := e.coordinator.Transfer(ctx, scope, id, "L2", inventory.TransitionMetadata{})
	require.NoError(t, err)

	require.NoError(t, e.registry.Delete(ctx, scope, id))

	assert.Equal(t, int64(0), e.onHand(t, keyL1))
	assert.Equal(t, int64(0), e.onHand(t, keyL2))
	l2 := e.entries(t, keyL2)
	require.Len(t, l2, 2)
	assert.Equal(t, entity.MovementCompensation, l2[1].Type)
	assert.Equal(t, int64(-1), l2[1].QuantityDelta)
	assert.Len(t, e.entries(t, keyL1), 2, "el ledger de origen no se modifica")

	_, err = e.registry.Get(ctx, scope, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	e.assertLedgerMatches(t, keyL1, keyL2)

	// El serial queda libre para volver a registrarse.
	e.create(t, "SN-1")
}

func TestDelete_UnidadVendidaEsConflicto(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.create(t, "SN-1")[0].ID
	_, err := e.registry.Transition(ctx, scope, id, entity.StatusSold, inventory.TransitionMetadata{})
	require.NoError(t, err)

	err = e.registry.Delete(ctx, scope, id)
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Len(t, e.entries(t, keyL1), 2)
}

func TestDelete_UnidadDanadaNoGeneraCompensacion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.create(t, "SN-1")[0].ID
	_, err := e.registry.Transition(ctx, scope, id, entity.StatusDamaged, inventory.TransitionMetadata{})
	require.NoError(t, err)

	require.NoError(t, e.registry.Delete(ctx, scope, id))
	assert.Len(t, e.entries(t, keyL1), 2)
	assert.Equal(t, int64(0), e.onHand(t, keyL1))
}

// ──────────────────────────────────────────────────────────────────────────────
// Concurrencia
// ──────────────────────────────────────────────────────────────────────────────

func TestUnitOfWork_ReintentaContencion(t *testing.T) {
	e := newEnv(t)
	runner := &contendedRunner{inner: e.store, failures: 2}
	registry := inventory.NewSerialUnitRegistry(withRunner(e.deps, runner))

	_, err := registry.Create(context.Background(), scope, inventory.CreateUnitsInput{BatchID: "B1", SerialNumbers: []string{"SN-1"}})
	require.NoError(t, err)
	assert.Equal(t, 3, runner.calls)
	assert.Equal(t, 2, e.rec.retries)
	assert.Equal(t, int64(1), e.onHand(t, keyL1))
}

func TestUnitOfWork_ReintentosAgotados(t *testing.T) {
	e := newEnv(t)
	runner := &contendedRunner{inner: e.store, failures: 100}
	deps := withRunner(e.deps, runner)
	deps.Settings.MaxRetries = 2
	registry := inventory.NewSerialUnitRegistry(deps)

	_, err := registry.Create(context.Background(), scope, inventory.CreateUnitsInput{BatchID: "B1", SerialNumbers: []string{"SN-1"}})
	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	assert.Equal(t, 3, runner.calls)
	assert.Equal(t, 1, e.rec.conflicts)
	assert.Equal(t, int64(0), e.onHand(t, keyL1))
}

func TestConcurrencia_TrasladosOpuestosMantienenInvariante(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.create(t, "A-1", "A-2", "A-3", "A-4")
	batch2 := batch1
	batch2.ID, batch2.LocationID = "B2", "L2"
	e.store.PutBatch(batch2)
	b, err := e.registry.Create(ctx, scope, inventory.CreateUnitsInput{BatchID: "B2", SerialNumbers: []string{"B-1", "B-2", "B-3", "B-4"}})
	require.NoError(t, err)

	errs := make(chan error, 8)
	for i := range a {
		go func(id string) {
			_, err := e.coordinator.Transfer(ctx, scope, id, "L2", inventory.TransitionMetadata{})
			errs <- err
		}(a[i].ID)
		go func(id string) {
			_, err := e.coordinator.Transfer(ctx, scope, id, "L1", inventory.TransitionMetadata{})
			errs <- err
		}(b[i].ID)
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-errs)
	}
	assert.Equal(t, int64(4), e.onHand(t, keyL1))
	assert.Equal(t, int64(4), e.onHand(t, keyL2))
	e.assertLedgerMatches(t, keyL1, keyL2)
}

// lockLog registra el orden en que una transacción pide bloqueos de filas.
type lockLog struct {
	mu    sync.Mutex
	locks []string
}

func (l *lockLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locks = append(l.locks, s)
}

type lockingStock struct {
	repository.StockLevelRepository
	log *lockLog
}

func (r lockingStock) GetForUpdate(ctx context.Context, key entity.StockKey) (*entity.StockLevel, error) {
	r.log.add("stock:" + key.LocationID)
	return r.StockLevelRepository.GetForUpdate(ctx, key)
}

type lockingUnits struct {
	repository.SerialUnitRepository
	log *lockLog
}

func (r lockingUnits) GetForUpdate(ctx context.Context, id string) (*entity.SerialUnit, error) {
	r.log.add("unit")
	return r.SerialUnitRepository.GetForUpdate(ctx, id)
}

type lockingRunner struct {
	inner inventory.TxRunner
	log   *lockLog
}

func (r lockingRunner) Run(ctx context.Context, fn func(repository.LedgerRepository, repository.StockLevelRepository, repository.SerialUnitRepository) error) error {
	return r.inner.Run(ctx, func(l repository.LedgerRepository, s repository.StockLevelRepository, u repository.SerialUnitRepository) error {
		return fn(l, lockingStock{StockLevelRepository: s, log: r.log}, lockingUnits{SerialUnitRepository: u, log: r.log})
	})
}

func TestTransfer_BloqueaEnOrdenCanonico(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	units := e.create(t, "SN-1")
	_, err := e.coordinator.Transfer(ctx, scope, units[0].ID, "L2", inventory.TransitionMetadata{})
	require.NoError(t, err)

	log := &lockLog{}
	registry := inventory.NewSerialUnitRegistry(withRunner(e.deps, lockingRunner{inner: e.store, log: log}))
	coordinator := inventory.NewTransferCoordinator(e.deps.Locations, registry)

	// L2 -> L1: el origen es L2 pero L1 se bloquea primero.
	_, err = coordinator.Transfer(ctx, scope, units[0].ID, "L1", inventory.TransitionMetadata{})
	require.NoError(t, err)
	assert.Equal(t, []string{"unit", "stock:L1", "stock:L2"}, log.locks)

	log.locks = nil
	_, err = coordinator.Transfer(ctx, scope, units[0].ID, "L2", inventory.TransitionMetadata{})
	require.NoError(t, err)
	assert.Equal(t, []string{"unit", "stock:L1", "stock:L2"}, log.locks)
	e.assertLedgerMatches(t, keyL1, keyL2)
}

// ──────────────────────────────────────────────────────────────────────────────
// Consultas
// ──────────────────────────────────────────────────────────────────────────────

func TestList_FiltraPorEstadoYBusqueda(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	units := e.create(t, "SN-1", "SN-2", "XY-3")
	_, err := e.registry.Transition(ctx, scope, units[0].ID, entity.StatusSold, inventory.TransitionMetadata{})
	require.NoError(t, err)

	got, total, err := e.registry.List(ctx, scope, repository.SerialUnitFilter{Status: entity.StatusInStock})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, got, 2)

	got, _, err = e.registry.List(ctx, scope, repository.SerialUnitFilter{Search: "sn-"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, _, err = e.registry.List(ctx, scope, repository.SerialUnitFilter{Search: "televisor"})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	// Fuera de super admin el filtro de organización del llamador se ignora.
	got, _, err = e.registry.List(ctx, scope, repository.SerialUnitFilter{OrganizationID: otherID})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, _, err = e.registry.List(ctx, scope, repository.SerialUnitFilter{Status: "LOST"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func withRunner(d inventory.Deps, r inventory.TxRunner) inventory.Deps {
	d.TxRunner = r
	return d
}
