package inventory

import (
	"sort"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// Replay reconstruye las cantidades por llave sumando las entradas en orden de secuencia.
func Replay(entries []*entity.LedgerEntry) map[entity.StockKey]int64 {
	ordered := make([]*entity.LedgerEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	out := make(map[entity.StockKey]int64)
	for _, e := range ordered {
		out[e.StockKey] += e.QuantityDelta
	}
	return out
}

// Discrepancy diferencia entre el agregado y lo que dice el ledger para una llave.
type Discrepancy struct {
	Key       entity.StockKey
	Aggregate int64
	LedgerSum int64
}

// Reconcile compara agregados contra el replay del ledger. Llaves con ledger y sin agregado
// cuentan con agregado 0. El resultado sale ordenado por llave.
func Reconcile(levels []*entity.StockLevel, entries []*entity.LedgerEntry) []Discrepancy {
	sums := Replay(entries)
	seen := make(map[entity.StockKey]bool, len(levels))
	var out []Discrepancy
	for _, l := range levels {
		seen[l.StockKey] = true
		if sum := sums[l.StockKey]; sum != l.QuantityOnHand {
			out = append(out, Discrepancy{Key: l.StockKey, Aggregate: l.QuantityOnHand, LedgerSum: sum})
		}
	}
	for key, sum := range sums {
		if !seen[key] && sum != 0 {
			out = append(out, Discrepancy{Key: key, LedgerSum: sum})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}

// SortKeys ordena llaves en el orden canónico de bloqueo y elimina repetidas.
func SortKeys(keys []entity.StockKey) []entity.StockKey {
	uniq := make([]entity.StockKey, 0, len(keys))
	seen := make(map[entity.StockKey]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			uniq = append(uniq, k)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i].Less(uniq[j]) })
	return uniq
}
