package inventory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
)

var allStatuses = []entity.SerialStatus{
	entity.StatusInStock, entity.StatusReserved, entity.StatusSold, entity.StatusReturned,
	entity.StatusDamaged, entity.StatusExpired, entity.StatusInTransit,
}

// ──────────────────────────────────────────────────────────────────────────────
// Tabla de transiciones
// ──────────────────────────────────────────────────────────────────────────────

func TestLookupTransition_Aristas(t *testing.T) {
	cases := []struct {
		from, to entity.SerialStatus
		delta    int64
		movement entity.MovementType
	}{
		{entity.StatusInStock, entity.StatusReserved, 0, ""},
		{entity.StatusInStock, entity.StatusSold, -1, entity.MovementSale},
		{entity.StatusInStock, entity.StatusInTransit, -1, entity.MovementTransferOut},
		{entity.StatusInStock, entity.StatusDamaged, -1, entity.MovementDamage},
		{entity.StatusInStock, entity.StatusExpired, -1, entity.MovementExpiry},
		{entity.StatusReserved, entity.StatusInStock, 0, ""},
		{entity.StatusReserved, entity.StatusSold, -1, entity.MovementSale},
		{entity.StatusInTransit, entity.StatusInStock, 1, entity.MovementTransferIn},
		{entity.StatusSold, entity.StatusReturned, 1, entity.MovementReturn},
		{entity.StatusReturned, entity.StatusInStock, 0, ""},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			tr, ok := inventory.LookupTransition(tc.from, tc.to)
			require.True(t, ok)
			assert.Equal(t, tc.to, tr.To)
			assert.Equal(t, tc.delta, tr.Delta)
			assert.Equal(t, tc.movement, tr.Movement)
		})
	}
}

func TestLookupTransition_SoldAInStockRechazada(t *testing.T) {
	_, ok := inventory.LookupTransition(entity.StatusSold, entity.StatusInStock)
	assert.False(t, ok, "SOLD -> IN_STOCK debe pasar por RETURNED")
}

func TestLookupTransition_EstadoDesconocido(t *testing.T) {
	_, ok := inventory.LookupTransition("LOST", entity.StatusInStock)
	assert.False(t, ok)
	assert.False(t, inventory.IsKnownStatus("LOST"))
}

func TestTerminales(t *testing.T) {
	assert.True(t, inventory.IsTerminal(entity.StatusDamaged))
	assert.True(t, inventory.IsTerminal(entity.StatusExpired))
	assert.False(t, inventory.IsTerminal(entity.StatusSold))
	assert.Empty(t, inventory.AllowedTargets(entity.StatusDamaged))
}

func TestTodosLosEstadosAlcanzablesDesdeInStock(t *testing.T) {
	reach := inventory.ReachableFrom(entity.StatusInStock)
	for _, s := range allStatuses {
		assert.True(t, inventory.IsKnownStatus(s), s)
		assert.True(t, reach[s], "%s debe ser alcanzable", s)
	}
	assert.Len(t, reach, len(allStatuses))
}

// ──────────────────────────────────────────────────────────────────────────────
// Política de stock negativo
// ──────────────────────────────────────────────────────────────────────────────

func TestParseNegativeStockPolicy(t *testing.T) {
	p, err := inventory.ParseNegativeStockPolicy("")
	require.NoError(t, err)
	assert.Equal(t, inventory.PolicyReject, p)

	p, err = inventory.ParseNegativeStockPolicy(" ALLOW_WARN ")
	require.NoError(t, err)
	assert.Equal(t, inventory.PolicyAllowWarn, p)

	_, err = inventory.ParseNegativeStockPolicy("ignore")
	assert.Error(t, err)
}

func TestApplyDelta(t *testing.T) {
	t.Run("venta sin stock con reject", func(t *testing.T) {
		q, neg, err := inventory.ApplyDelta(0, -1, entity.MovementSale, inventory.PolicyReject)
		require.Error(t, err)
		assert.Equal(t, int64(0), q)
		assert.False(t, neg)
	})
	t.Run("venta sin stock con allow_warn", func(t *testing.T) {
		q, neg, err := inventory.ApplyDelta(0, -1, entity.MovementSale, inventory.PolicyAllowWarn)
		require.NoError(t, err)
		assert.Equal(t, int64(-1), q)
		assert.True(t, neg)
	})
	t.Run("ajuste siempre permitido", func(t *testing.T) {
		q, neg, err := inventory.ApplyDelta(1, -3, entity.MovementAdjustment, inventory.PolicyReject)
		require.NoError(t, err)
		assert.Equal(t, int64(-2), q)
		assert.False(t, neg)
	})
	t.Run("entrada sobre negativo", func(t *testing.T) {
		q, _, err := inventory.ApplyDelta(-2, 1, entity.MovementReturn, inventory.PolicyReject)
		require.NoError(t, err)
		assert.Equal(t, int64(-1), q)
	})
}
