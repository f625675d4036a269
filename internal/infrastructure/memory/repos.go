package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var (
	_ repository.LedgerRepository     = (*LedgerRepo)(nil)
	_ repository.StockLevelRepository = (*StockLevelRepo)(nil)
	_ repository.SerialUnitRepository = (*SerialUnitRepo)(nil)
	_ repository.BatchRepository      = (*BatchRepo)(nil)
	_ repository.LocationRepository   = (*LocationRepo)(nil)
	_ repository.ProductRepository    = (*ProductRepo)(nil)
)

// ──────────────────────────────────────────────────────────────────────────────
// Ledger
// ──────────────────────────────────────────────────────────────────────────────

// LedgerRepo ledger en memoria (solo agrega).
type LedgerRepo struct{ src source }

func (r *LedgerRepo) Append(ctx context.Context, e *entity.LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.src.write(func(st *state) error {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		st.seq++
		e.Seq = st.seq
		st.ledger = append(st.ledger, *e)
		return nil
	})
}

func (r *LedgerRepo) ListByKey(_ context.Context, key entity.StockKey, limit, offset int) ([]*entity.LedgerEntry, error) {
	return r.collect(func(e *entity.LedgerEntry) bool { return e.StockKey == key }, limit, offset)
}

// List filtros vacíos no restringen. El slice interno ya está en orden de secuencia.
func (r *LedgerRepo) List(_ context.Context, f repository.LedgerFilter) ([]*entity.LedgerEntry, error) {
	return r.collect(func(e *entity.LedgerEntry) bool {
		return (f.OrganizationID == "" || e.OrganizationID == f.OrganizationID) &&
			(f.ProductID == "" || e.ProductID == f.ProductID) &&
			(f.VariantID == "" || e.VariantID == f.VariantID) &&
			(f.LocationID == "" || e.LocationID == f.LocationID)
	}, f.Limit, f.Offset)
}

func (r *LedgerRepo) collect(match func(e *entity.LedgerEntry) bool, limit, offset int) ([]*entity.LedgerEntry, error) {
	var out []*entity.LedgerEntry
	err := r.src.read(func(st *state) error {
		skipped := 0
		for i := range st.ledger {
			e := st.ledger[i]
			if !match(&e) {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			out = append(out, &e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (r *LedgerRepo) SumByKey(_ context.Context, key entity.StockKey) (int64, error) {
	var sum int64
	err := r.src.read(func(st *state) error {
		for _, e := range st.ledger {
			if e.StockKey == key {
				sum += e.QuantityDelta
			}
		}
		return nil
	})
	return sum, err
}

func (r *LedgerRepo) NetBySerialUnit(_ context.Context, serialUnitID string) ([]repository.KeyDelta, error) {
	var out []repository.KeyDelta
	err := r.src.read(func(st *state) error {
		net := map[entity.StockKey]int64{}
		for _, e := range st.ledger {
			if e.SerialUnitID == serialUnitID {
				net[e.StockKey] += e.QuantityDelta
			}
		}
		for k, d := range net {
			if d != 0 {
				out = append(out, repository.KeyDelta{Key: k, Delta: d})
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out, err
}

// ──────────────────────────────────────────────────────────────────────────────
// Stock levels
// ──────────────────────────────────────────────────────────────────────────────

// StockLevelRepo agregados en memoria.
type StockLevelRepo struct{ src source }

func (r *StockLevelRepo) Get(_ context.Context, key entity.StockKey) (*entity.StockLevel, error) {
	var out *entity.StockLevel
	err := r.src.read(func(st *state) error {
		if l, ok := st.levels[key]; ok {
			out = &l
		}
		return nil
	})
	return out, err
}

// GetForUpdate crea la fila en cero si no existe; el bloqueo lo da el mutex del Store.
func (r *StockLevelRepo) GetForUpdate(ctx context.Context, key entity.StockKey) (*entity.StockLevel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out entity.StockLevel
	err := r.src.write(func(st *state) error {
		l, ok := st.levels[key]
		if !ok {
			l = entity.StockLevel{StockKey: key, UpdatedAt: time.Now().UTC()}
			st.levels[key] = l
		}
		out = l
		return nil
	})
	return &out, err
}

func (r *StockLevelRepo) Save(ctx context.Context, level *entity.StockLevel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.src.write(func(st *state) error {
		st.levels[level.StockKey] = *level
		return nil
	})
}

func (r *StockLevelRepo) List(_ context.Context, f repository.StockLevelFilter) ([]*entity.StockLevel, error) {
	var all []*entity.StockLevel
	err := r.src.read(func(st *state) error {
		for k, l := range st.levels {
			if f.OrganizationID != "" && k.OrganizationID != f.OrganizationID {
				continue
			}
			if f.ProductID != "" && k.ProductID != f.ProductID {
				continue
			}
			if f.VariantID != "" && k.VariantID != f.VariantID {
				continue
			}
			if f.LocationID != "" && k.LocationID != f.LocationID {
				continue
			}
			l := l
			all = append(all, &l)
		}
		return nil
	})
	sort.Slice(all, func(i, j int) bool { return all[i].StockKey.Less(all[j].StockKey) })
	return paginate(all, f.Limit, f.Offset), err
}

// ──────────────────────────────────────────────────────────────────────────────
// Serial units
// ──────────────────────────────────────────────────────────────────────────────

// SerialUnitRepo unidades serializadas en memoria.
type SerialUnitRepo struct{ src source }

func (r *SerialUnitRepo) Create(ctx context.Context, u *entity.SerialUnit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.src.write(func(st *state) error {
		if u.ID == "" {
			u.ID = uuid.New().String()
		}
		sk := serialKey(u.OrganizationID, u.SerialNumber)
		if _, exists := st.serials[sk]; exists {
			return fmt.Errorf("%w: serial %s duplicado", domain.ErrConflict, u.SerialNumber)
		}
		if _, exists := st.units[u.ID]; exists {
			return fmt.Errorf("%w: unidad %s duplicada", domain.ErrConflict, u.ID)
		}
		st.units[u.ID] = *u
		st.serials[sk] = u.ID
		return nil
	})
}

func (r *SerialUnitRepo) GetByID(_ context.Context, id string) (*entity.SerialUnit, error) {
	var out *entity.SerialUnit
	err := r.src.read(func(st *state) error {
		if u, ok := st.units[id]; ok {
			out = &u
		}
		return nil
	})
	return out, err
}

func (r *SerialUnitRepo) GetForUpdate(ctx context.Context, id string) (*entity.SerialUnit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *SerialUnitRepo) Update(ctx context.Context, u *entity.SerialUnit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.src.write(func(st *state) error {
		prev, ok := st.units[u.ID]
		if !ok {
			return fmt.Errorf("%w: unidad %s", domain.ErrNotFound, u.ID)
		}
		if prev.SerialNumber != u.SerialNumber || prev.OrganizationID != u.OrganizationID {
			delete(st.serials, serialKey(prev.OrganizationID, prev.SerialNumber))
			st.serials[serialKey(u.OrganizationID, u.SerialNumber)] = u.ID
		}
		st.units[u.ID] = *u
		return nil
	})
}

func (r *SerialUnitRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.src.write(func(st *state) error {
		u, ok := st.units[id]
		if !ok {
			return fmt.Errorf("%w: unidad %s", domain.ErrNotFound, id)
		}
		delete(st.units, id)
		delete(st.serials, serialKey(u.OrganizationID, u.SerialNumber))
		return nil
	})
}

func (r *SerialUnitRepo) FindExistingSerials(_ context.Context, organizationID string, serials []string) ([]string, error) {
	var out []string
	err := r.src.read(func(st *state) error {
		for _, sn := range serials {
			if _, ok := st.serials[serialKey(organizationID, sn)]; ok {
				out = append(out, sn)
			}
		}
		return nil
	})
	return out, err
}

func (r *SerialUnitRepo) List(_ context.Context, f repository.SerialUnitFilter) ([]*entity.SerialUnit, int, error) {
	products := r.src.products()
	search := strings.ToLower(f.Search)
	var all []*entity.SerialUnit
	err := r.src.read(func(st *state) error {
		for _, u := range st.units {
			if f.OrganizationID != "" && u.OrganizationID != f.OrganizationID {
				continue
			}
			if f.ProductID != "" && u.ProductID != f.ProductID {
				continue
			}
			if f.VariantID != "" && u.VariantID != f.VariantID {
				continue
			}
			if f.BatchID != "" && u.BatchID != f.BatchID {
				continue
			}
			if f.LocationID != "" && u.LocationID != f.LocationID {
				continue
			}
			if f.Status != "" && u.Status != f.Status {
				continue
			}
			if search != "" && !matchesSearch(u, products[u.ProductID], search) {
				continue
			}
			u := u
			all = append(all, &u)
		}
		return nil
	})
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].SerialNumber > all[j].SerialNumber
	})
	return paginate(all, f.Limit, f.Offset), len(all), err
}

func matchesSearch(u entity.SerialUnit, p entity.Product, search string) bool {
	return strings.Contains(strings.ToLower(u.SerialNumber), search) ||
		strings.Contains(strings.ToLower(p.SKU), search) ||
		strings.Contains(strings.ToLower(p.Name), search)
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// ──────────────────────────────────────────────────────────────────────────────
// Catálogo (solo lectura)
// ──────────────────────────────────────────────────────────────────────────────

// BatchRepo lotes registrados con PutBatch.
type BatchRepo struct{ store *Store }

func (r *BatchRepo) GetByID(_ context.Context, id string) (*entity.Batch, error) {
	r.store.catalogMu.RLock()
	defer r.store.catalogMu.RUnlock()
	if b, ok := r.store.batches[id]; ok {
		return &b, nil
	}
	return nil, nil
}

// LocationRepo ubicaciones registradas con PutLocation.
type LocationRepo struct{ store *Store }

func (r *LocationRepo) GetByID(_ context.Context, id string) (*entity.Location, error) {
	r.store.catalogMu.RLock()
	defer r.store.catalogMu.RUnlock()
	if l, ok := r.store.locations[id]; ok {
		return &l, nil
	}
	return nil, nil
}

// ProductRepo productos registrados con PutProduct.
type ProductRepo struct{ store *Store }

func (r *ProductRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	r.store.catalogMu.RLock()
	defer r.store.catalogMu.RUnlock()
	if p, ok := r.store.products[id]; ok {
		return &p, nil
	}
	return nil, nil
}
