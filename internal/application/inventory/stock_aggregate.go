package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// StockChange un cambio de cantidad sobre una llave con su entrada de ledger asociada.
type StockChange struct {
	Key           entity.StockKey
	Delta         int64
	Movement      entity.MovementType
	ReferenceType string
	ReferenceID   string
	UnitCost      decimal.Decimal
	BatchID       string
	SerialUnitID  string
	Notes         string
}

// StockAggregate mantiene stock_levels siempre junto con el ledger, dentro de la transacción del llamador.
type StockAggregate struct {
	ledger *TransactionLedger
	policy inventory.NegativeStockPolicy
	hooks  Hooks
	log    *logger.Logger
	now    func() time.Time
}

// NewStockAggregate construye el agregado con la política de stock negativo configurada.
func NewStockAggregate(ledger *TransactionLedger, policy inventory.NegativeStockPolicy, hooks Hooks, log *logger.Logger) *StockAggregate {
	if hooks == nil {
		hooks = NoopHooks{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &StockAggregate{ledger: ledger, policy: policy, hooks: hooks, log: log, now: time.Now}
}

// LockKeys bloquea las filas de las llaves en orden canónico (ubicación, producto, variante)
// creándolas en cero si no existen.
func (a *StockAggregate) LockKeys(ctx context.Context, stockRepo repository.StockLevelRepository, keys ...entity.StockKey) (map[entity.StockKey]*entity.StockLevel, error) {
	locked := make(map[entity.StockKey]*entity.StockLevel, len(keys))
	for _, key := range inventory.SortKeys(keys) {
		level, err := stockRepo.GetForUpdate(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("lock stock %s: %w", key, err)
		}
		locked[key] = level
	}
	return locked, nil
}

// UpdateStock aplica un único cambio: bloquea, valida la política, guarda el agregado y agrega el ledger.
func (a *StockAggregate) UpdateStock(
	ctx context.Context,
	ledgerRepo repository.LedgerRepository,
	stockRepo repository.StockLevelRepository,
	txID, createdBy string,
	change StockChange,
) (*entity.StockLevel, error) {
	levels, err := a.Apply(ctx, ledgerRepo, stockRepo, txID, createdBy, change)
	if err != nil {
		return nil, err
	}
	return levels[change.Key], nil
}

// Apply aplica varios cambios en una sola transacción. Todas las filas se bloquean primero
// en orden canónico; cada cambio genera una entrada de ledger y cada llave se guarda una vez.
// Si un cambio viola la política de stock negativo no se escribe nada.
func (a *StockAggregate) Apply(
	ctx context.Context,
	ledgerRepo repository.LedgerRepository,
	stockRepo repository.StockLevelRepository,
	txID, createdBy string,
	changes ...StockChange,
) (map[entity.StockKey]*entity.StockLevel, error) {
	if len(changes) == 0 {
		return map[entity.StockKey]*entity.StockLevel{}, nil
	}
	keys := make([]entity.StockKey, 0, len(changes))
	for _, c := range changes {
		keys = append(keys, c.Key)
	}
	levels, err := a.LockKeys(ctx, stockRepo, keys...)
	if err != nil {
		return nil, err
	}

	// Validación completa antes de escribir.
	type pending struct {
		change   StockChange
		negative bool
	}
	work := make([]pending, 0, len(changes))
	running := make(map[entity.StockKey]int64, len(levels))
	for key, level := range levels {
		running[key] = level.QuantityOnHand
	}
	for _, c := range changes {
		newQty, negative, err := inventory.ApplyDelta(running[c.Key], c.Delta, c.Movement, a.policy)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Key, err)
		}
		running[c.Key] = newQty
		work = append(work, pending{change: c, negative: negative})
	}

	now := a.now().UTC()
	for _, p := range work {
		c := p.change
		level := levels[c.Key]
		if c.Delta > 0 && !c.UnitCost.IsZero() {
			level.AverageCost = inventory.WeightedAverageCost(level.QuantityOnHand, level.AverageCost, c.Delta, c.UnitCost)
		}
		level.QuantityOnHand += c.Delta
		entry := &entity.LedgerEntry{
			StockKey:      c.Key,
			TransactionID: txID,
			Type:          c.Movement,
			QuantityDelta: c.Delta,
			ReferenceType: c.ReferenceType,
			ReferenceID:   c.ReferenceID,
			UnitCost:      c.UnitCost,
			BatchID:       c.BatchID,
			SerialUnitID:  c.SerialUnitID,
			Notes:         c.Notes,
			CreatedBy:     createdBy,
			CreatedAt:     now,
		}
		if err := a.ledger.Append(ctx, ledgerRepo, entry); err != nil {
			return nil, err
		}
		if p.negative {
			a.hooks.IncNegativeStock(c.Movement)
			a.log.Warn().
				Str("stock_key", c.Key.String()).
				Str("movement", string(c.Movement)).
				Int64("quantity_on_hand", level.QuantityOnHand).
				Str("transaction_id", txID).
				Msg("stock negativo permitido por política allow_warn")
		}
	}

	for _, key := range inventory.SortKeys(keys) {
		level := levels[key]
		level.UpdatedAt = now
		if err := stockRepo.Save(ctx, level); err != nil {
			return nil, fmt.Errorf("save stock %s: %w", key, err)
		}
	}
	return levels, nil
}
