package inventory

import (
	"context"
	"fmt"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// ReconcileReport resultado de comparar agregados contra el ledger de una organización.
type ReconcileReport struct {
	OrganizationID string
	KeysChecked    int
	EntriesRead    int
	Discrepancies  []inventory.Discrepancy
}

// Consistent indica que no hubo diferencias.
func (r *ReconcileReport) Consistent() bool { return len(r.Discrepancies) == 0 }

// ReconcileUseCase verifica quantity_on_hand == Σ quantity_delta por llave.
// Suma en la base (SumByKey) y además reproduce las entradas en orden de secuencia.
// Todas las lecturas de una corrida comparten la misma foto.
type ReconcileUseCase struct {
	snapshots SnapshotReader
	log       *logger.Logger
}

// NewReconcileUseCase construye el caso de uso.
func NewReconcileUseCase(snapshots SnapshotReader, log *logger.Logger) *ReconcileUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &ReconcileUseCase{snapshots: snapshots, log: log.Named("reconcile")}
}

// Reconcile revisa todas las llaves de la organización; filter acota por producto/ubicación/variante.
func (uc *ReconcileUseCase) Reconcile(ctx context.Context, scope entity.Scope, filter repository.StockLevelFilter) (*ReconcileReport, error) {
	if !scope.Valid() {
		return nil, domain.ErrForbidden
	}
	if filter.OrganizationID == "" || !scope.SuperAdmin {
		filter.OrganizationID = scope.OrganizationID
	}
	if filter.OrganizationID == "" {
		return nil, fmt.Errorf("%w: organización obligatoria", domain.ErrInvalidInput)
	}
	filter.Limit, filter.Offset = 0, 0

	var report *ReconcileReport
	err := uc.snapshots.ReadSnapshot(ctx, func(ledgerRepo repository.LedgerRepository, stockRepo repository.StockLevelRepository) error {
		levels, err := stockRepo.List(ctx, filter)
		if err != nil {
			return err
		}
		entries, err := ledgerRepo.List(ctx, repository.LedgerFilter{
			OrganizationID: filter.OrganizationID,
			ProductID:      filter.ProductID,
			VariantID:      filter.VariantID,
			LocationID:     filter.LocationID,
		})
		if err != nil {
			return err
		}

		report = &ReconcileReport{
			OrganizationID: filter.OrganizationID,
			KeysChecked:    len(levels),
			EntriesRead:    len(entries),
			Discrepancies:  inventory.Reconcile(levels, entries),
		}

		// Doble verificación contra la suma calculada en el almacenamiento.
		for _, l := range levels {
			sum, err := ledgerRepo.SumByKey(ctx, l.StockKey)
			if err != nil {
				return err
			}
			if sum != l.QuantityOnHand && !hasKey(report.Discrepancies, l.StockKey) {
				report.Discrepancies = append(report.Discrepancies, inventory.Discrepancy{Key: l.StockKey, Aggregate: l.QuantityOnHand, LedgerSum: sum})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, d := range report.Discrepancies {
		uc.log.Error().
			Str("stock_key", d.Key.String()).
			Int64("aggregate", d.Aggregate).
			Int64("ledger_sum", d.LedgerSum).
			Msg("agregado no coincide con el ledger")
	}
	uc.log.Info().
		Str("organization_id", report.OrganizationID).
		Int("keys", report.KeysChecked).
		Int("entries", report.EntriesRead).
		Int("discrepancies", len(report.Discrepancies)).
		Msg("reconciliación terminada")
	return report, nil
}

func hasKey(ds []inventory.Discrepancy, key entity.StockKey) bool {
	for _, d := range ds {
		if d.Key == key {
			return true
		}
	}
	return false
}
