// Package memory implementa el almacenamiento del motor en memoria, con la misma semántica
// transaccional que PostgreSQL: cada Run trabaja sobre una copia del estado y solo la publica
// si la función termina sin error y el contexto sigue vivo.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var (
	_ inventory.TxRunner       = (*Store)(nil)
	_ inventory.SnapshotReader = (*Store)(nil)
)

type state struct {
	units   map[string]entity.SerialUnit
	serials map[string]string // organización + serial -> id
	levels  map[entity.StockKey]entity.StockLevel
	ledger  []entity.LedgerEntry
	seq     int64
}

func newState() *state {
	return &state{
		units:   map[string]entity.SerialUnit{},
		serials: map[string]string{},
		levels:  map[entity.StockKey]entity.StockLevel{},
	}
}

func (s *state) clone() *state {
	c := &state{
		units:   make(map[string]entity.SerialUnit, len(s.units)),
		serials: make(map[string]string, len(s.serials)),
		levels:  make(map[entity.StockKey]entity.StockLevel, len(s.levels)),
		ledger:  make([]entity.LedgerEntry, len(s.ledger), len(s.ledger)+8),
		seq:     s.seq,
	}
	for k, v := range s.units {
		c.units[k] = v
	}
	for k, v := range s.serials {
		c.serials[k] = v
	}
	for k, v := range s.levels {
		c.levels[k] = v
	}
	copy(c.ledger, s.ledger)
	return c
}

func serialKey(organizationID, serial string) string {
	return organizationID + "\x00" + serial
}

// Store almacenamiento en memoria. Las transacciones se serializan con un único mutex,
// por lo que nunca hay contención de bloqueos que reintentar.
type Store struct {
	mu    sync.RWMutex
	state *state

	catalogMu sync.RWMutex
	batches   map[string]entity.Batch
	locations map[string]entity.Location
	products  map[string]entity.Product
}

// NewStore crea un almacenamiento vacío.
func NewStore() *Store {
	return &Store{
		state:     newState(),
		batches:   map[string]entity.Batch{},
		locations: map[string]entity.Location{},
		products:  map[string]entity.Product{},
	}
}

// Run ejecuta fn sobre una copia del estado; si fn falla o el ctx se cancela nada se publica.
func (s *Store) Run(ctx context.Context, fn func(
	ledgerRepo repository.LedgerRepository,
	stockRepo repository.StockLevelRepository,
	unitRepo repository.SerialUnitRepository,
) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txView{st: s.state.clone(), store: s}
	if err := fn(&LedgerRepo{src: tx}, &StockLevelRepo{src: tx}, &SerialUnitRepo{src: tx}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	s.state = tx.st
	return nil
}

// ReadSnapshot ejecuta fn sobre una copia del estado confirmado tomada al inicio.
// Lo que fn escriba en la copia se descarta.
func (s *Store) ReadSnapshot(ctx context.Context, fn func(
	ledgerRepo repository.LedgerRepository,
	stockRepo repository.StockLevelRepository,
) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	s.mu.RLock()
	snap := &txView{st: s.state.clone(), store: s}
	s.mu.RUnlock()
	return fn(&LedgerRepo{src: snap}, &StockLevelRepo{src: snap})
}

// Ledger repositorio de lectura sobre el estado confirmado.
func (s *Store) Ledger() *LedgerRepo { return &LedgerRepo{src: committed{s}} }

// StockLevels repositorio de lectura sobre el estado confirmado.
func (s *Store) StockLevels() *StockLevelRepo { return &StockLevelRepo{src: committed{s}} }

// SerialUnits repositorio de lectura sobre el estado confirmado.
func (s *Store) SerialUnits() *SerialUnitRepo { return &SerialUnitRepo{src: committed{s}} }

// Batches colaborador de lotes.
func (s *Store) Batches() *BatchRepo { return &BatchRepo{store: s} }

// Locations colaborador de ubicaciones.
func (s *Store) Locations() *LocationRepo { return &LocationRepo{store: s} }

// Products colaborador de productos.
func (s *Store) Products() *ProductRepo { return &ProductRepo{store: s} }

// PutBatch registra un lote (datos de catálogo para desarrollo y tests).
func (s *Store) PutBatch(b entity.Batch) {
	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()
	s.batches[b.ID] = b
}

// PutLocation registra una ubicación.
func (s *Store) PutLocation(l entity.Location) {
	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()
	s.locations[l.ID] = l
}

// PutProduct registra un producto.
func (s *Store) PutProduct(p entity.Product) {
	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()
	s.products[p.ID] = p
}

// source acceso al estado: la copia de una transacción o el estado confirmado.
type source interface {
	read(fn func(st *state) error) error
	write(fn func(st *state) error) error
	products() map[string]entity.Product
}

type txView struct {
	st    *state
	store *Store
}

func (t *txView) read(fn func(st *state) error) error  { return fn(t.st) }
func (t *txView) write(fn func(st *state) error) error { return fn(t.st) }
func (t *txView) products() map[string]entity.Product  { return t.store.productSnapshot() }

type committed struct{ s *Store }

func (c committed) read(fn func(st *state) error) error {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return fn(c.s.state)
}

// write fuera de Run: se aplica directamente con el lock exclusivo.
func (c committed) write(fn func(st *state) error) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	next := c.s.state.clone()
	if err := fn(next); err != nil {
		return err
	}
	c.s.state = next
	return nil
}

func (c committed) products() map[string]entity.Product { return c.s.productSnapshot() }

func (s *Store) productSnapshot() map[string]entity.Product {
	s.catalogMu.RLock()
	defer s.catalogMu.RUnlock()
	out := make(map[string]entity.Product, len(s.products))
	for k, v := range s.products {
		out[k] = v
	}
	return out
}
