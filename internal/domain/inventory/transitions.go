package inventory

import (
	"fmt"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// Transition una arista permitida de la máquina de estados de unidades serializadas.
// Delta es el efecto sobre la cantidad en la ubicación afectada; Movement es vacío cuando Delta == 0.
type Transition struct {
	To       entity.SerialStatus
	Delta    int64
	Movement entity.MovementType
}

// transitionTable estado actual -> destinos permitidos. Cualquier par ausente es inválido.
var transitionTable = map[entity.SerialStatus][]Transition{
	entity.StatusInStock: {
		{To: entity.StatusReserved},
		{To: entity.StatusSold, Delta: -1, Movement: entity.MovementSale},
		{To: entity.StatusInTransit, Delta: -1, Movement: entity.MovementTransferOut},
		{To: entity.StatusDamaged, Delta: -1, Movement: entity.MovementDamage},
		{To: entity.StatusExpired, Delta: -1, Movement: entity.MovementExpiry},
	},
	entity.StatusReserved: {
		{To: entity.StatusInStock},
		{To: entity.StatusSold, Delta: -1, Movement: entity.MovementSale},
	},
	entity.StatusInTransit: {
		{To: entity.StatusInStock, Delta: 1, Movement: entity.MovementTransferIn},
	},
	entity.StatusSold: {
		{To: entity.StatusReturned, Delta: 1, Movement: entity.MovementReturn},
	},
	entity.StatusReturned: {
		{To: entity.StatusInStock},
	},
	entity.StatusDamaged: nil,
	entity.StatusExpired: nil,
}

func init() {
	if err := validateTable(transitionTable); err != nil {
		panic(err)
	}
}

// validateTable revisa que la tabla sea cerrada y coherente: todo destino es un estado conocido,
// sin aristas repetidas, movimiento presente si y solo si hay delta, y todo estado alcanzable desde IN_STOCK.
func validateTable(table map[entity.SerialStatus][]Transition) error {
	for from, edges := range table {
		seen := make(map[entity.SerialStatus]bool, len(edges))
		for _, t := range edges {
			if _, ok := table[t.To]; !ok {
				return fmt.Errorf("transición %s -> %s: destino desconocido", from, t.To)
			}
			if seen[t.To] {
				return fmt.Errorf("transición %s -> %s duplicada", from, t.To)
			}
			seen[t.To] = true
			if (t.Delta == 0) != (t.Movement == "") {
				return fmt.Errorf("transición %s -> %s: delta %d con movimiento %q", from, t.To, t.Delta, t.Movement)
			}
			if t.Delta != 0 && !ValidMovementType(t.Movement) {
				return fmt.Errorf("transición %s -> %s: movimiento %q desconocido", from, t.To, t.Movement)
			}
		}
	}
	reach := reachable(table, entity.StatusInStock)
	for status := range table {
		if !reach[status] {
			return fmt.Errorf("estado %s no alcanzable desde %s", status, entity.StatusInStock)
		}
	}
	return nil
}

// LookupTransition devuelve la arista from -> to, o false si no está en la tabla.
func LookupTransition(from, to entity.SerialStatus) (Transition, bool) {
	for _, t := range transitionTable[from] {
		if t.To == to {
			return t, true
		}
	}
	return Transition{}, false
}

// IsKnownStatus indica si el estado pertenece a la máquina.
func IsKnownStatus(s entity.SerialStatus) bool {
	_, ok := transitionTable[s]
	return ok
}

// AllowedTargets destinos permitidos desde un estado (copia).
func AllowedTargets(from entity.SerialStatus) []entity.SerialStatus {
	edges := transitionTable[from]
	out := make([]entity.SerialStatus, 0, len(edges))
	for _, t := range edges {
		out = append(out, t.To)
	}
	return out
}

// IsTerminal indica si el estado no tiene salidas.
func IsTerminal(s entity.SerialStatus) bool {
	return IsKnownStatus(s) && len(transitionTable[s]) == 0
}

// ReachableFrom conjunto de estados alcanzables desde start (incluido).
func ReachableFrom(start entity.SerialStatus) map[entity.SerialStatus]bool {
	return reachable(transitionTable, start)
}

func reachable(table map[entity.SerialStatus][]Transition, start entity.SerialStatus) map[entity.SerialStatus]bool {
	seen := map[entity.SerialStatus]bool{start: true}
	queue := []entity.SerialStatus{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, t := range table[cur] {
			if !seen[t.To] {
				seen[t.To] = true
				queue = append(queue, t.To)
			}
		}
	}
	return seen
}
