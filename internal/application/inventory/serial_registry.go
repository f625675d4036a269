package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	// maxSerialLength coincide con serial_units.serial_number VARCHAR(100).
	maxSerialLength = 100
)

// CreateUnitsInput alta de unidades serializadas desde un lote.
// LocationID vacío usa la ubicación por defecto del lote.
type CreateUnitsInput struct {
	BatchID       string
	SerialNumbers []string
	LocationID    string
	Notes         string
}

// TransitionMetadata datos opcionales de una transición.
// SalesOrderID se registra como referencia sales_order:<id>; LocationID es el destino de IN_TRANSIT -> IN_STOCK.
type TransitionMetadata struct {
	SalesOrderID  string
	ReferenceType string
	ReferenceID   string
	LocationID    string
	Notes         string
}

// SerialUnitRegistry máquina de estados de unidades serializadas con efectos de cantidad.
type SerialUnitRegistry struct {
	deps  Deps
	uow   *unitOfWork
	stock *StockAggregate
	log   *logger.Logger
	now   func() time.Time
}

// NewSerialUnitRegistry construye el registro.
func NewSerialUnitRegistry(d Deps) *SerialUnitRegistry {
	d = d.withDefaults()
	return &SerialUnitRegistry{
		deps:  d,
		uow:   newUnitOfWork(d),
		stock: NewStockAggregate(NewTransactionLedger(), d.Settings.NegativePolicy, d.Hooks, d.Logger),
		log:   d.Logger.Named("serial_registry"),
		now:   time.Now,
	}
}

// Create da de alta N unidades IN_STOCK, N entradas INITIAL (+1) y un incremento de N en el agregado.
// Es todo o nada: un serial repetido aborta el lote completo con domain.ErrConflict.
func (r *SerialUnitRegistry) Create(ctx context.Context, scope entity.Scope, in CreateUnitsInput) ([]*entity.SerialUnit, error) {
	if !scope.Valid() {
		return nil, domain.ErrForbidden
	}
	if strings.TrimSpace(in.BatchID) == "" {
		return nil, fmt.Errorf("%w: batch_id obligatorio", domain.ErrInvalidInput)
	}
	serials, err := normalizeSerials(in.SerialNumbers)
	if err != nil {
		return nil, err
	}

	batch, err := r.deps.Batches.GetByID(ctx, in.BatchID)
	if err != nil {
		return nil, err
	}
	if batch == nil || !scope.Owns(batch.OrganizationID) {
		return nil, fmt.Errorf("%w: lote %s", domain.ErrNotFound, in.BatchID)
	}
	locationID := batch.LocationID
	if in.LocationID != "" {
		if _, err := r.resolveLocation(ctx, in.LocationID, batch.OrganizationID); err != nil {
			return nil, err
		}
		locationID = in.LocationID
	}
	if locationID == "" {
		return nil, fmt.Errorf("%w: el lote no tiene ubicación por defecto", domain.ErrInvalidInput)
	}

	key := entity.StockKey{
		OrganizationID: batch.OrganizationID,
		ProductID:      batch.ProductID,
		VariantID:      batch.VariantID,
		LocationID:     locationID,
	}
	txID := uuid.New().String()
	var created []*entity.SerialUnit

	err = r.uow.run(ctx, "serial_unit.create", func(
		ledgerRepo repository.LedgerRepository,
		stockRepo repository.StockLevelRepository,
		unitRepo repository.SerialUnitRepository,
	) error {
		created = nil
		existing, err := unitRepo.FindExistingSerials(ctx, batch.OrganizationID, serials)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			sort.Strings(existing)
			return fmt.Errorf("%w: seriales ya registrados: %s", domain.ErrConflict, strings.Join(existing, ", "))
		}

		now := r.now().UTC()
		changes := make([]StockChange, 0, len(serials))
		for _, sn := range serials {
			unit := &entity.SerialUnit{
				ID:             uuid.New().String(),
				SerialNumber:   sn,
				BatchID:        batch.ID,
				ProductID:      batch.ProductID,
				VariantID:      batch.VariantID,
				OrganizationID: batch.OrganizationID,
				LocationID:     locationID,
				Status:         entity.StatusInStock,
				Cost:           batch.UnitCost,
				Notes:          in.Notes,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := unitRepo.Create(ctx, unit); err != nil {
				return err
			}
			created = append(created, unit)
			changes = append(changes, StockChange{
				Key:           key,
				Delta:         1,
				Movement:      entity.MovementInitial,
				ReferenceType: entity.ReferenceSerialUnit,
				ReferenceID:   unit.ID,
				UnitCost:      batch.UnitCost,
				BatchID:       batch.ID,
				SerialUnitID:  unit.ID,
				Notes:         in.Notes,
			})
		}
		_, err = r.stock.Apply(ctx, ledgerRepo, stockRepo, txID, scope.UserID, changes...)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Str("batch_id", batch.ID).
		Str("stock_key", key.String()).
		Int("units", len(created)).
		Str("transaction_id", txID).
		Msg("unidades serializadas creadas")
	for _, u := range created {
		r.emit(scope, EventUnitsCreated, u, "", 1)
	}
	return created, nil
}

// Transition cambia el estado de una unidad según la tabla de transiciones y aplica el efecto de cantidad.
func (r *SerialUnitRegistry) Transition(ctx context.Context, scope entity.Scope, id string, newStatus entity.SerialStatus, meta TransitionMetadata) (*entity.SerialUnit, error) {
	if !scope.Valid() {
		return nil, domain.ErrForbidden
	}
	if id == "" {
		return nil, fmt.Errorf("%w: id obligatorio", domain.ErrInvalidInput)
	}
	if !inventory.IsKnownStatus(newStatus) {
		return nil, fmt.Errorf("%w: estado %q", domain.ErrInvalidInput, newStatus)
	}
	var destination *entity.Location
	if meta.LocationID != "" {
		loc, err := r.deps.Locations.GetByID(ctx, meta.LocationID)
		if err != nil {
			return nil, err
		}
		if loc == nil || !scope.Owns(loc.OrganizationID) {
			return nil, fmt.Errorf("%w: ubicación %s", domain.ErrNotFound, meta.LocationID)
		}
		destination = loc
	}

	txID := uuid.New().String()
	var (
		result   *entity.SerialUnit
		previous entity.SerialStatus
		applied  inventory.Transition
		affected string
	)
	err := r.uow.run(ctx, "serial_unit.transition", func(
		ledgerRepo repository.LedgerRepository,
		stockRepo repository.StockLevelRepository,
		unitRepo repository.SerialUnitRepository,
	) error {
		unit, err := r.lockUnit(ctx, unitRepo, scope, id)
		if err != nil {
			return err
		}
		previous = unit.Status
		tr, ok := inventory.LookupTransition(unit.Status, newStatus)
		if !ok {
			return fmt.Errorf("%w: %s -> %s (permitidos: %v)", domain.ErrInvalidTransition, unit.Status, newStatus, inventory.AllowedTargets(unit.Status))
		}
		applied = tr

		key := unit.StockKey()
		if unit.Status == entity.StatusInTransit && tr.To == entity.StatusInStock && destination != nil {
			if destination.OrganizationID != unit.OrganizationID {
				return fmt.Errorf("%w: ubicación %s", domain.ErrNotFound, destination.ID)
			}
			key.LocationID = destination.ID
		}
		affected = key.LocationID

		if tr.Delta != 0 {
			refType, refID := transitionReference(unit, meta)
			change := StockChange{
				Key:           key,
				Delta:         tr.Delta,
				Movement:      tr.Movement,
				ReferenceType: refType,
				ReferenceID:   refID,
				UnitCost:      unit.Cost,
				BatchID:       unit.BatchID,
				SerialUnitID:  unit.ID,
				Notes:         meta.Notes,
			}
			if _, err := r.stock.UpdateStock(ctx, ledgerRepo, stockRepo, txID, scope.UserID, change); err != nil {
				return err
			}
		}

		unit.Status = tr.To
		unit.LocationID = key.LocationID
		if meta.Notes != "" {
			unit.Notes = meta.Notes
		}
		unit.UpdatedAt = r.now().UTC()
		if err := unitRepo.Update(ctx, unit); err != nil {
			return err
		}
		result = unit
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Str("serial_unit_id", result.ID).
		Str("from", string(previous)).
		Str("to", string(result.Status)).
		Int64("delta", applied.Delta).
		Str("location_id", affected).
		Msg("transición de unidad serializada")
	r.emit(scope, EventUnitTransitioned, result, previous, applied.Delta)
	return result, nil
}

// Transfer mueve una unidad IN_STOCK a otra ubicación: TRANSFER_OUT (-1) en origen y TRANSFER_IN (+1)
// en destino dentro de la misma transacción. La unidad termina IN_STOCK en el destino.
// target debe venir resuelto por el llamador (ver TransferCoordinator).
func (r *SerialUnitRegistry) Transfer(ctx context.Context, scope entity.Scope, id string, target *entity.Location, meta TransitionMetadata) (*entity.SerialUnit, error) {
	if !scope.Valid() {
		return nil, domain.ErrForbidden
	}
	if id == "" || target == nil || target.ID == "" {
		return nil, fmt.Errorf("%w: id y ubicación destino obligatorios", domain.ErrInvalidInput)
	}

	txID := uuid.New().String()
	var (
		result *entity.SerialUnit
		source string
	)
	err := r.uow.run(ctx, "serial_unit.transfer", func(
		ledgerRepo repository.LedgerRepository,
		stockRepo repository.StockLevelRepository,
		unitRepo repository.SerialUnitRepository,
	) error {
		unit, err := r.lockUnit(ctx, unitRepo, scope, id)
		if err != nil {
			return err
		}
		if target.OrganizationID != unit.OrganizationID {
			return fmt.Errorf("%w: ubicación %s", domain.ErrNotFound, target.ID)
		}
		if unit.LocationID == target.ID {
			return fmt.Errorf("%w: la unidad ya está en %s", domain.ErrConflict, target.ID)
		}
		out, okOut := inventory.LookupTransition(unit.Status, entity.StatusInTransit)
		in, okIn := inventory.LookupTransition(entity.StatusInTransit, entity.StatusInStock)
		if unit.Status != entity.StatusInStock || !okOut || !okIn {
			return fmt.Errorf("%w: solo se trasladan unidades %s (actual %s)", domain.ErrInvalidTransition, entity.StatusInStock, unit.Status)
		}

		source = unit.LocationID
		from := unit.StockKey()
		to := from
		to.LocationID = target.ID
		changes := []StockChange{
			{
				Key:           from,
				Delta:         out.Delta,
				Movement:      out.Movement,
				ReferenceType: entity.ReferenceSerialUnit,
				ReferenceID:   unit.ID,
				UnitCost:      unit.Cost,
				BatchID:       unit.BatchID,
				SerialUnitID:  unit.ID,
				Notes:         meta.Notes,
			},
			{
				Key:           to,
				Delta:         in.Delta,
				Movement:      in.Movement,
				ReferenceType: entity.ReferenceSerialUnit,
				ReferenceID:   unit.ID,
				UnitCost:      unit.Cost,
				BatchID:       unit.BatchID,
				SerialUnitID:  unit.ID,
				Notes:         meta.Notes,
			},
		}
		if _, err := r.stock.Apply(ctx, ledgerRepo, stockRepo, txID, scope.UserID, changes...); err != nil {
			return err
		}

		unit.LocationID = target.ID
		unit.Status = in.To
		unit.UpdatedAt = r.now().UTC()
		if err := unitRepo.Update(ctx, unit); err != nil {
			return err
		}
		result = unit
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Str("serial_unit_id", result.ID).
		Str("from_location_id", source).
		Str("to_location_id", target.ID).
		Str("transaction_id", txID).
		Msg("unidad trasladada")
	r.emit(scope, EventUnitTransferred, result, entity.StatusInStock, 0)
	return result, nil
}

// Delete elimina una unidad no vendida. El ledger no se toca: se agregan entradas COMPENSATION
// que revierten el efecto neto de la unidad en cada llave y luego se borra la fila.
func (r *SerialUnitRegistry) Delete(ctx context.Context, scope entity.Scope, id string) error {
	if !scope.Valid() {
		return domain.ErrForbidden
	}
	if id == "" {
		return fmt.Errorf("%w: id obligatorio", domain.ErrInvalidInput)
	}

	txID := uuid.New().String()
	var (
		removed *entity.SerialUnit
		net     int64
	)
	err := r.uow.run(ctx, "serial_unit.delete", func(
		ledgerRepo repository.LedgerRepository,
		stockRepo repository.StockLevelRepository,
		unitRepo repository.SerialUnitRepository,
	) error {
		net = 0
		unit, err := r.lockUnit(ctx, unitRepo, scope, id)
		if err != nil {
			return err
		}
		if unit.Status == entity.StatusSold {
			return fmt.Errorf("%w: la unidad %s está vendida", domain.ErrConflict, unit.SerialNumber)
		}
		deltas, err := ledgerRepo.NetBySerialUnit(ctx, unit.ID)
		if err != nil {
			return err
		}
		changes := make([]StockChange, 0, len(deltas))
		for _, d := range deltas {
			if d.Delta == 0 {
				continue
			}
			net -= d.Delta
			changes = append(changes, StockChange{
				Key:           d.Key,
				Delta:         -d.Delta,
				Movement:      entity.MovementCompensation,
				ReferenceType: entity.ReferenceSerialUnit,
				ReferenceID:   unit.ID,
				UnitCost:      unit.Cost,
				BatchID:       unit.BatchID,
				SerialUnitID:  unit.ID,
				Notes:         "eliminación de unidad " + unit.SerialNumber,
			})
		}
		if _, err := r.stock.Apply(ctx, ledgerRepo, stockRepo, txID, scope.UserID, changes...); err != nil {
			return err
		}
		if err := unitRepo.Delete(ctx, unit.ID); err != nil {
			return err
		}
		removed = unit
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Info().
		Str("serial_unit_id", removed.ID).
		Str("serial_number", removed.SerialNumber).
		Int64("compensation", net).
		Msg("unidad eliminada con compensación")
	r.emit(scope, EventUnitDeleted, removed, removed.Status, net)
	return nil
}

// Get obtiene una unidad visible en el ámbito.
func (r *SerialUnitRegistry) Get(ctx context.Context, scope entity.Scope, id string) (*entity.SerialUnit, error) {
	if !scope.Valid() {
		return nil, domain.ErrForbidden
	}
	unit, err := r.deps.Units.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if unit == nil || !scope.Owns(unit.OrganizationID) {
		return nil, fmt.Errorf("%w: unidad %s", domain.ErrNotFound, id)
	}
	return unit, nil
}

// List unidades filtradas, más recientes primero. Fuera de super admin se fuerza la organización del ámbito.
func (r *SerialUnitRegistry) List(ctx context.Context, scope entity.Scope, filter repository.SerialUnitFilter) ([]*entity.SerialUnit, int, error) {
	if !scope.Valid() {
		return nil, 0, domain.ErrForbidden
	}
	if !scope.SuperAdmin {
		filter.OrganizationID = scope.OrganizationID
	}
	if filter.Status != "" && !inventory.IsKnownStatus(filter.Status) {
		return nil, 0, fmt.Errorf("%w: estado %q", domain.ErrInvalidInput, filter.Status)
	}
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	return r.deps.Units.List(ctx, filter)
}

func (r *SerialUnitRegistry) lockUnit(ctx context.Context, unitRepo repository.SerialUnitRepository, scope entity.Scope, id string) (*entity.SerialUnit, error) {
	unit, err := unitRepo.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if unit == nil || !scope.Owns(unit.OrganizationID) {
		return nil, fmt.Errorf("%w: unidad %s", domain.ErrNotFound, id)
	}
	if !inventory.IsKnownStatus(unit.Status) {
		return nil, fmt.Errorf("unidad %s con estado desconocido %q", id, unit.Status)
	}
	return unit, nil
}

func (r *SerialUnitRegistry) resolveLocation(ctx context.Context, id, organizationID string) (*entity.Location, error) {
	loc, err := r.deps.Locations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if loc == nil || loc.OrganizationID != organizationID {
		return nil, fmt.Errorf("%w: ubicación %s", domain.ErrNotFound, id)
	}
	return loc, nil
}

func (r *SerialUnitRegistry) emit(scope entity.Scope, typ string, u *entity.SerialUnit, previous entity.SerialStatus, delta int64) {
	r.deps.Events.Emit(Event{
		ID:             uuid.New().String(),
		Type:           typ,
		OrganizationID: u.OrganizationID,
		UserID:         scope.UserID,
		SerialUnitID:   u.ID,
		ProductID:      u.ProductID,
		PreviousStatus: string(previous),
		NewStatus:      string(u.Status),
		QuantityDelta:  delta,
		LocationID:     u.LocationID,
		OccurredAt:     r.now().UTC(),
	})
}

// transitionReference referencia polimórfica de la entrada de ledger de una transición.
func transitionReference(u *entity.SerialUnit, meta TransitionMetadata) (string, string) {
	switch {
	case meta.SalesOrderID != "":
		return entity.ReferenceSalesOrder, meta.SalesOrderID
	case meta.ReferenceType != "" && meta.ReferenceID != "":
		return meta.ReferenceType, meta.ReferenceID
	}
	return entity.ReferenceSerialUnit, u.ID
}

// normalizeSerials recorta espacios y rechaza vacíos o repetidos dentro de la misma solicitud.
func normalizeSerials(in []string) ([]string, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: serial_numbers vacío", domain.ErrInvalidInput)
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	var dups []string
	for _, raw := range in {
		sn := strings.TrimSpace(raw)
		if sn == "" {
			return nil, fmt.Errorf("%w: serial vacío", domain.ErrInvalidInput)
		}
		if utf8.RuneCountInString(sn) > maxSerialLength {
			return nil, fmt.Errorf("%w: serial %q supera %d caracteres", domain.ErrInvalidInput, sn, maxSerialLength)
		}
		if seen[sn] {
			dups = append(dups, sn)
			continue
		}
		seen[sn] = true
		out = append(out, sn)
	}
	if len(dups) > 0 {
		return nil, fmt.Errorf("%w: seriales repetidos en la solicitud: %s", domain.ErrConflict, strings.Join(dups, ", "))
	}
	return out, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
