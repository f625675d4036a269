package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// KeyDelta cantidad neta de una llave.
type KeyDelta struct {
	Key   entity.StockKey
	Delta int64
}

// LedgerFilter filtros de lectura del ledger.
type LedgerFilter struct {
	OrganizationID string
	ProductID      string
	VariantID      string
	LocationID     string
	Limit          int
	Offset         int
}

// LedgerRepository puerto del ledger: solo inserción y lectura, nunca update ni delete.
type LedgerRepository interface {
	// Append persiste la entrada y asigna ID, Seq y CreatedAt.
	Append(ctx context.Context, entry *entity.LedgerEntry) error
	// ListByKey entradas de una llave en orden de secuencia ascendente.
	ListByKey(ctx context.Context, key entity.StockKey, limit, offset int) ([]*entity.LedgerEntry, error)
	// List entradas filtradas en orden de secuencia ascendente. Limit 0 = sin límite.
	List(ctx context.Context, filter LedgerFilter) ([]*entity.LedgerEntry, error)
	SumByKey(ctx context.Context, key entity.StockKey) (int64, error)
	// NetBySerialUnit efecto neto por llave de las entradas de una unidad (llaves con neto cero se omiten).
	NetBySerialUnit(ctx context.Context, serialUnitID string) ([]KeyDelta, error)
}
