package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.StockLevelRepository = (*StockLevelRepo)(nil)

// StockLevelRepo agregados de stock sobre PostgreSQL (usable con pool o tx).
type StockLevelRepo struct {
	q Querier
}

// NewStockLevelRepository construye el adaptador de agregados. Pasar pool o tx (Querier).
func NewStockLevelRepository(q Querier) *StockLevelRepo {
	return &StockLevelRepo{q: q}
}

const stockLevelColumns = `organization_id, product_id, variant_id, location_id, quantity_on_hand, average_cost, updated_at`

const stockKeyWhere = `organization_id = $1 AND product_id = $2 AND variant_id IS NOT DISTINCT FROM $3 AND location_id = $4`

// Get devuelve el agregado o nil si no existe.
func (r *StockLevelRepo) Get(ctx context.Context, key entity.StockKey) (*entity.StockLevel, error) {
	query := `SELECT ` + stockLevelColumns + ` FROM stock_levels WHERE ` + stockKeyWhere
	l, err := scanStockLevel(r.q.QueryRow(ctx, query, keyArgs(key)...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock level: %w", err)
	}
	return l, nil
}

// GetForUpdate crea la fila en cero si no existe y la bloquea hasta el fin de la transacción.
func (r *StockLevelRepo) GetForUpdate(ctx context.Context, key entity.StockKey) (*entity.StockLevel, error) {
	insert := `
		INSERT INTO stock_levels (organization_id, product_id, variant_id, location_id, quantity_on_hand, average_cost, updated_at)
		VALUES ($1, $2, $3, $4, 0, 0, $5)
		ON CONFLICT ON CONSTRAINT stock_levels_key DO NOTHING`
	args := append(keyArgs(key), time.Now().UTC())
	if _, err := r.q.Exec(ctx, insert, args...); err != nil {
		return nil, fmt.Errorf("ensure stock level: %w", err)
	}
	query := `SELECT ` + stockLevelColumns + ` FROM stock_levels WHERE ` + stockKeyWhere + ` FOR UPDATE`
	l, err := scanStockLevel(r.q.QueryRow(ctx, query, keyArgs(key)...))
	if err != nil {
		return nil, fmt.Errorf("lock stock level: %w", err)
	}
	return l, nil
}

// Save actualiza cantidad y costo promedio. La fila debe existir (GetForUpdate).
func (r *StockLevelRepo) Save(ctx context.Context, l *entity.StockLevel) error {
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = time.Now().UTC()
	}
	query := `UPDATE stock_levels SET quantity_on_hand = $5, average_cost = $6, updated_at = $7 WHERE ` + stockKeyWhere
	args := append(keyArgs(l.StockKey), l.QuantityOnHand, l.AverageCost, l.UpdatedAt)
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update stock level: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update stock level %s: fila inexistente", l.StockKey)
	}
	return nil
}

// List agregados filtrados, ordenados en orden canónico de llave. Limit 0 = sin límite.
func (r *StockLevelRepo) List(ctx context.Context, f repository.StockLevelFilter) ([]*entity.StockLevel, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + stockLevelColumns + ` FROM stock_levels WHERE 1=1`)
	args := []any{}
	pos := 1
	for _, c := range []struct{ col, val string }{
		{"organization_id", f.OrganizationID},
		{"product_id", f.ProductID},
		{"variant_id", f.VariantID},
		{"location_id", f.LocationID},
	} {
		if c.val == "" {
			continue
		}
		b.WriteString(fmt.Sprintf(" AND %s = $%d", c.col, pos))
		args = append(args, c.val)
		pos++
	}
	b.WriteString(" ORDER BY location_id, product_id, variant_id NULLS FIRST, organization_id")
	query, args := withPage(b.String(), args, f.Limit, f.Offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stock levels: %w", err)
	}
	defer rows.Close()
	var out []*entity.StockLevel
	for rows.Next() {
		l, err := scanStockLevel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock level: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func keyArgs(k entity.StockKey) []any {
	return []any{k.OrganizationID, k.ProductID, nullable(k.VariantID), k.LocationID}
}

func scanStockLevel(row pgx.Row) (*entity.StockLevel, error) {
	var l entity.StockLevel
	var variant *string
	var cost decimal.Decimal
	if err := row.Scan(&l.OrganizationID, &l.ProductID, &variant, &l.LocationID, &l.QuantityOnHand, &cost, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.VariantID = deref(variant)
	l.AverageCost = cost
	return &l, nil
}
