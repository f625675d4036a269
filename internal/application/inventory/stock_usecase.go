package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// AdjustStockInput ajuste manual de cantidad (productos no serializados o correcciones de conteo).
type AdjustStockInput struct {
	ProductID   string
	VariantID   string
	LocationID  string
	Delta       int64
	UnitCost    decimal.Decimal
	Reason      string
	ReferenceID string
}

// StockUseCase ajustes y consultas de agregados y ledger.
type StockUseCase struct {
	deps     Deps
	uow      *unitOfWork
	stock    *StockAggregate
	exporter LedgerExporter
	log      *logger.Logger
}

// NewStockUseCase construye el caso de uso. exporter puede ser nil si no se exporta a archivo.
func NewStockUseCase(d Deps, exporter LedgerExporter) *StockUseCase {
	d = d.withDefaults()
	return &StockUseCase{
		deps:     d,
		uow:      newUnitOfWork(d),
		stock:    NewStockAggregate(NewTransactionLedger(), d.Settings.NegativePolicy, d.Hooks, d.Logger),
		exporter: exporter,
		log:      d.Logger.Named("stock"),
	}
}

// Adjust registra un movimiento ADJUSTMENT con motivo. Puede dejar el stock en negativo.
func (uc *StockUseCase) Adjust(ctx context.Context, scope entity.Scope, in AdjustStockInput) (*entity.StockLevel, error) {
	if !scope.Valid() || scope.OrganizationID == "" {
		return nil, domain.ErrForbidden
	}
	if in.ProductID == "" || in.LocationID == "" {
		return nil, fmt.Errorf("%w: product_id y location_id obligatorios", domain.ErrInvalidInput)
	}
	if in.Delta == 0 {
		return nil, fmt.Errorf("%w: delta no puede ser cero", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, fmt.Errorf("%w: motivo obligatorio", domain.ErrInvalidInput)
	}
	if in.UnitCost.IsNegative() {
		return nil, fmt.Errorf("%w: costo unitario negativo", domain.ErrInvalidInput)
	}
	loc, err := uc.deps.Locations.GetByID(ctx, in.LocationID)
	if err != nil {
		return nil, err
	}
	if loc == nil || loc.OrganizationID != scope.OrganizationID {
		return nil, fmt.Errorf("%w: ubicación %s", domain.ErrNotFound, in.LocationID)
	}

	key := entity.StockKey{
		OrganizationID: scope.OrganizationID,
		ProductID:      in.ProductID,
		VariantID:      in.VariantID,
		LocationID:     in.LocationID,
	}
	refID := in.ReferenceID
	if refID == "" {
		refID = uuid.New().String()
	}
	txID := uuid.New().String()
	var level *entity.StockLevel
	err = uc.uow.run(ctx, "stock.adjust", func(
		ledgerRepo repository.LedgerRepository,
		stockRepo repository.StockLevelRepository,
		_ repository.SerialUnitRepository,
	) error {
		l, err := uc.stock.UpdateStock(ctx, ledgerRepo, stockRepo, txID, scope.UserID, StockChange{
			Key:           key,
			Delta:         in.Delta,
			Movement:      entity.MovementAdjustment,
			ReferenceType: entity.ReferenceAdjustment,
			ReferenceID:   refID,
			UnitCost:      in.UnitCost,
			Notes:         strings.TrimSpace(in.Reason),
		})
		level = l
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info().
		Str("stock_key", key.String()).
		Int64("delta", in.Delta).
		Int64("quantity_on_hand", level.QuantityOnHand).
		Str("reason", in.Reason).
		Msg("ajuste de stock")
	uc.deps.Events.Emit(Event{
		ID:             uuid.New().String(),
		Type:           EventStockAdjusted,
		OrganizationID: key.OrganizationID,
		UserID:         scope.UserID,
		ProductID:      key.ProductID,
		QuantityDelta:  in.Delta,
		LocationID:     key.LocationID,
		OccurredAt:     time.Now().UTC(),
	})
	return level, nil
}

// ListLevels agregados visibles en el ámbito.
func (uc *StockUseCase) ListLevels(ctx context.Context, scope entity.Scope, filter repository.StockLevelFilter) ([]*entity.StockLevel, error) {
	if !scope.Valid() {
		return nil, domain.ErrForbidden
	}
	if !scope.SuperAdmin {
		filter.OrganizationID = scope.OrganizationID
	}
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	return uc.deps.Stock.List(ctx, filter)
}

// Ledger entradas de una llave en orden de secuencia.
func (uc *StockUseCase) Ledger(ctx context.Context, scope entity.Scope, key entity.StockKey, limit, offset int) ([]*entity.LedgerEntry, error) {
	if err := uc.checkKey(scope, &key); err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)
	return uc.deps.Ledger.ListByKey(ctx, key, limit, offset)
}

// ExportLedger todas las entradas de la llave serializadas por el exportador configurado.
func (uc *StockUseCase) ExportLedger(ctx context.Context, scope entity.Scope, key entity.StockKey) ([]byte, error) {
	if uc.exporter == nil {
		return nil, fmt.Errorf("exportador de ledger no configurado")
	}
	if err := uc.checkKey(scope, &key); err != nil {
		return nil, err
	}
	entries, err := uc.deps.Ledger.ListByKey(ctx, key, 0, 0)
	if err != nil {
		return nil, err
	}
	return uc.exporter.ExportLedger(entries)
}

func (uc *StockUseCase) checkKey(scope entity.Scope, key *entity.StockKey) error {
	if !scope.Valid() {
		return domain.ErrForbidden
	}
	if key.OrganizationID == "" {
		key.OrganizationID = scope.OrganizationID
	}
	if !scope.Owns(key.OrganizationID) {
		return fmt.Errorf("%w: organización %s", domain.ErrNotFound, key.OrganizationID)
	}
	if key.OrganizationID == "" || key.ProductID == "" || key.LocationID == "" {
		return fmt.Errorf("%w: product_id y location_id obligatorios", domain.ErrInvalidInput)
	}
	return nil
}
