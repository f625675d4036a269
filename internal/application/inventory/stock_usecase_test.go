package inventory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

func TestAdjust_RegistraAjusteConMotivo(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	lvl, err := e.stock.Adjust(ctx, scope, inventory.AdjustStockInput{
		ProductID: "p-1", LocationID: "L1", Delta: 5, UnitCost: decimal.NewFromInt(10), Reason: "recepción sin serial",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), lvl.QuantityOnHand)
	assert.True(t, decimal.NewFromInt(10).Equal(lvl.AverageCost))

	lvl, err = e.stock.Adjust(ctx, scope, inventory.AdjustStockInput{ProductID: "p-1", LocationID: "L1", Delta: -7, Reason: "merma"})
	require.NoError(t, err, "los ajustes pueden dejar stock negativo")
	assert.Equal(t, int64(-2), lvl.QuantityOnHand)

	entries := e.entries(t, keyL1)
	require.Len(t, entries, 2)
	assert.Equal(t, entity.MovementAdjustment, entries[1].Type)
	assert.Equal(t, "merma", entries[1].Notes)
	assert.Equal(t, entity.ReferenceAdjustment, entries[1].ReferenceType)
	e.assertLedgerMatches(t, keyL1)

	events := e.rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, inventory.EventStockAdjusted, events[1].Type)
	assert.Equal(t, int64(-7), events[1].QuantityDelta)
}

func TestAdjust_Validaciones(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	cases := map[string]struct {
		in   inventory.AdjustStockInput
		want error
	}{
		"delta cero":            {inventory.AdjustStockInput{ProductID: "p-1", LocationID: "L1", Reason: "x"}, domain.ErrInvalidInput},
		"sin motivo":            {inventory.AdjustStockInput{ProductID: "p-1", LocationID: "L1", Delta: 1}, domain.ErrInvalidInput},
		"ubicación ajena":       {inventory.AdjustStockInput{ProductID: "p-1", LocationID: "LX", Delta: 1, Reason: "x"}, domain.ErrNotFound},
		"costo negativo":        {inventory.AdjustStockInput{ProductID: "p-1", LocationID: "L1", Delta: 1, Reason: "x", UnitCost: decimal.NewFromInt(-1)}, domain.ErrInvalidInput},
		"sin producto":          {inventory.AdjustStockInput{LocationID: "L1", Delta: 1, Reason: "x"}, domain.ErrInvalidInput},
		"ubicación inexistente": {inventory.AdjustStockInput{ProductID: "p-1", LocationID: "L404", Delta: 1, Reason: "x"}, domain.ErrNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.stock.Adjust(ctx, scope, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestListLevelsYLedger(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	units := e.create(t, "SN-1", "SN-2")
	_, err := e.coordinator.Transfer(ctx, scope, units[0].ID, "L2", inventory.TransitionMetadata{})
	require.NoError(t, err)

	levels, err := e.stock.ListLevels(ctx, scope, repository.StockLevelFilter{ProductID: "p-1"})
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, "L1", levels[0].LocationID)
	assert.Equal(t, int64(1), levels[0].QuantityOnHand)

	entries, err := e.stock.Ledger(ctx, scope, entity.StockKey{ProductID: "p-1", LocationID: "L2"}, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.MovementTransferIn, entries[0].Type)

	_, err = e.stock.Ledger(ctx, scope, entity.StockKey{OrganizationID: otherID, ProductID: "p-1", LocationID: "L2"}, 0, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = e.stock.Ledger(ctx, scope, entity.StockKey{ProductID: "p-1"}, 0, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

type fakeExporter struct{ got []*entity.LedgerEntry }

func (f *fakeExporter) ExportLedger(entries []*entity.LedgerEntry) ([]byte, error) {
	f.got = entries
	return []byte("xlsx"), nil
}

func TestExportLedger_UsaExportador(t *testing.T) {
	e := newEnv(t)
	e.create(t, "SN-1", "SN-2", "SN-3")
	exp := &fakeExporter{}
	uc := inventory.NewStockUseCase(e.deps, exp)

	out, err := uc.ExportLedger(context.Background(), scope, entity.StockKey{ProductID: "p-1", LocationID: "L1"})
	require.NoError(t, err)
	assert.Equal(t, []byte("xlsx"), out)
	assert.Len(t, exp.got, 3)

	_, err = e.stock.ExportLedger(context.Background(), scope, entity.StockKey{ProductID: "p-1", LocationID: "L1"})
	assert.Error(t, err, "sin exportador configurado")
}

// ──────────────────────────────────────────────────────────────────────────────
// Reconciliación
// ──────────────────────────────────────────────────────────────────────────────

func TestReconcile_ConsistenteTrasOperaciones(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	units := e.create(t, "SN-1", "SN-2", "SN-3")
	_, err := e.coordinator.Transfer(ctx, scope, units[0].ID, "L2", inventory.TransitionMetadata{})
	require.NoError(t, err)
	_, err = e.registry.Transition(ctx, scope, units[1].ID, entity.StatusSold, inventory.TransitionMetadata{SalesOrderID: "7"})
	require.NoError(t, err)
	require.NoError(t, e.registry.Delete(ctx, scope, units[2].ID))

	uc := inventory.NewReconcileUseCase(e.store, nil)
	report, err := uc.Reconcile(ctx, scope, repository.StockLevelFilter{})
	require.NoError(t, err)
	assert.True(t, report.Consistent(), "%+v", report.Discrepancies)
	assert.Equal(t, 2, report.KeysChecked)
	assert.Equal(t, 7, report.EntriesRead)
}

func TestReconcile_DetectaDesvio(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.create(t, "SN-1")

	// Corrupción deliberada del agregado sin entrada de ledger.
	lvl, err := e.store.StockLevels().Get(ctx, keyL1)
	require.NoError(t, err)
	lvl.QuantityOnHand = 9
	require.NoError(t, e.store.StockLevels().Save(ctx, lvl))

	uc := inventory.NewReconcileUseCase(e.store, nil)
	report, err := uc.Reconcile(ctx, scope, repository.StockLevelFilter{})
	require.NoError(t, err)
	require.Len(t, report.Discrepancies, 1)
	assert.Equal(t, keyL1, report.Discrepancies[0].Key)
	assert.Equal(t, int64(9), report.Discrepancies[0].Aggregate)
	assert.Equal(t, int64(1), report.Discrepancies[0].LedgerSum)

	_, err = uc.Reconcile(ctx, entity.Scope{SuperAdmin: true}, repository.StockLevelFilter{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// writeBeforeList confirma una escritura en el almacenamiento justo antes de leer el ledger.
type writeBeforeList struct {
	repository.LedgerRepository
	write func()
}

func (w writeBeforeList) List(ctx context.Context, f repository.LedgerFilter) ([]*entity.LedgerEntry, error) {
	w.write()
	return w.LedgerRepository.List(ctx, f)
}

type interleavedSnapshot struct {
	inner inventory.SnapshotReader
	write func()
}

func (s interleavedSnapshot) ReadSnapshot(ctx context.Context, fn func(repository.LedgerRepository, repository.StockLevelRepository) error) error {
	return s.inner.ReadSnapshot(ctx, func(l repository.LedgerRepository, st repository.StockLevelRepository) error {
		return fn(writeBeforeList{LedgerRepository: l, write: s.write}, st)
	})
}

func TestReconcile_EscrituraConcurrenteNoGeneraDesvio(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.create(t, "SN-1", "SN-2")

	uc := inventory.NewReconcileUseCase(interleavedSnapshot{
		inner: e.store,
		write: func() {
			_, err := e.stock.Adjust(ctx, scope, inventory.AdjustStockInput{ProductID: "p-1", LocationID: "L1", Delta: 3, Reason: "recepción"})
			require.NoError(t, err)
		},
	}, nil)
	report, err := uc.Reconcile(ctx, scope, repository.StockLevelFilter{})
	require.NoError(t, err)
	assert.True(t, report.Consistent(), "%+v", report.Discrepancies)
	assert.Equal(t, 1, report.KeysChecked)
	assert.Equal(t, 2, report.EntriesRead, "la foto no ve el ajuste confirmado durante la lectura")

	assert.Equal(t, int64(5), e.onHand(t, keyL1))
	report, err = inventory.NewReconcileUseCase(e.store, nil).Reconcile(ctx, scope, repository.StockLevelFilter{})
	require.NoError(t, err)
	assert.True(t, report.Consistent(), "%+v", report.Discrepancies)
	assert.Equal(t, 3, report.EntriesRead)
}

// ──────────────────────────────────────────────────────────────────────────────
// Etiquetas
// ──────────────────────────────────────────────────────────────────────────────

type fakeRenderer struct {
	product *entity.Product
	units   []*entity.SerialUnit
}

func (f *fakeRenderer) RenderLabels(_ *entity.Batch, p *entity.Product, units []*entity.SerialUnit) ([]byte, error) {
	f.product, f.units = p, units
	return []byte("%PDF"), nil
}

func TestBatchLabels(t *testing.T) {
	e := newEnv(t)
	e.create(t, "SN-1", "SN-2")
	r := &fakeRenderer{}
	uc := inventory.NewLabelsUseCase(e.deps, r)

	out, err := uc.BatchLabels(context.Background(), scope, "B1")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), out)
	assert.Len(t, r.units, 2)
	assert.Equal(t, "TV-55", r.product.SKU)

	_, err = uc.BatchLabels(context.Background(), scope, "B-OTHER")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// Despachador de eventos
// ──────────────────────────────────────────────────────────────────────────────

type flakyPublisher struct {
	failures int
	calls    int
	got      []inventory.Event
}

func (p *flakyPublisher) Publish(_ context.Context, e inventory.Event) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("redis caído")
	}
	p.got = append(p.got, e)
	return nil
}

type dropCounter struct{ n int }

func (d *dropCounter) IncDroppedEvent(string) { d.n++ }

func TestEventDispatcher_ReintentaYEntrega(t *testing.T) {
	pub := &flakyPublisher{failures: 2}
	drops := &dropCounter{}
	d := inventory.NewEventDispatcher(pub, inventory.DispatcherConfig{Buffer: 4, MaxAttempts: 3, RetryDelay: 1}, drops, nil)
	d.Start(context.Background())

	d.Emit(inventory.Event{ID: "e1", Type: inventory.EventUnitsCreated})
	d.Close()

	require.Len(t, pub.got, 1)
	assert.Equal(t, "e1", pub.got[0].ID)
	assert.Equal(t, 3, pub.calls)
	assert.Equal(t, 0, drops.n)
}

func TestEventDispatcher_BufferLlenoDescarta(t *testing.T) {
	pub := &flakyPublisher{}
	drops := &dropCounter{}
	d := inventory.NewEventDispatcher(pub, inventory.DispatcherConfig{Buffer: 1}, drops, nil)

	// Sin Start el worker no consume: el segundo evento no cabe.
	d.Emit(inventory.Event{ID: "e1"})
	d.Emit(inventory.Event{ID: "e2"})
	assert.Equal(t, 1, drops.n)

	d.Close()
	d.Emit(inventory.Event{ID: "e3"})
	assert.Equal(t, 2, drops.n)
}

func TestEventDispatcher_ReintentosAgotadosCuentaDescarte(t *testing.T) {
	pub := &flakyPublisher{failures: 10}
	drops := &dropCounter{}
	d := inventory.NewEventDispatcher(pub, inventory.DispatcherConfig{Buffer: 2, MaxAttempts: 2, RetryDelay: 1}, drops, nil)
	d.Start(context.Background())
	d.Emit(inventory.Event{ID: "e1"})
	d.Close()

	assert.Equal(t, 2, pub.calls)
	assert.Empty(t, pub.got)
	assert.Equal(t, 1, drops.n)
}
