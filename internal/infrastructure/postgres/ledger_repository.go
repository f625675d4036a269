package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.LedgerRepository = (*LedgerRepo)(nil)

// LedgerRepo ledger append-only sobre PostgreSQL. La tabla tiene un trigger que rechaza UPDATE/DELETE.
type LedgerRepo struct {
	q Querier
}

// NewLedgerRepository construye el adaptador del ledger. Pasar pool o tx (Querier).
func NewLedgerRepository(q Querier) *LedgerRepo {
	return &LedgerRepo{q: q}
}

const ledgerColumns = `id, seq, organization_id, product_id, variant_id, location_id, transaction_id, type,
	quantity_delta, reference_type, reference_id, unit_cost, batch_id, serial_unit_id, notes, created_by, created_at`

// Append inserta la entrada; la base asigna seq.
func (r *LedgerRepo) Append(ctx context.Context, e *entity.LedgerEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO ledger_entries (id, organization_id, product_id, variant_id, location_id, transaction_id, type,
			quantity_delta, reference_type, reference_id, unit_cost, batch_id, serial_unit_id, notes, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING seq`
	err := r.q.QueryRow(ctx, query,
		e.ID, e.OrganizationID, e.ProductID, nullable(e.VariantID), e.LocationID, e.TransactionID, string(e.Type),
		e.QuantityDelta, nullable(e.ReferenceType), nullable(e.ReferenceID), e.UnitCost, nullable(e.BatchID),
		nullable(e.SerialUnitID), nullable(e.Notes), nullable(e.CreatedBy), e.CreatedAt,
	).Scan(&e.Seq)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// ListByKey entradas de una llave ordenadas por seq.
func (r *LedgerRepo) ListByKey(ctx context.Context, key entity.StockKey, limit, offset int) ([]*entity.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries
		WHERE organization_id = $1 AND product_id = $2 AND variant_id IS NOT DISTINCT FROM $3 AND location_id = $4
		ORDER BY seq`
	args := []any{key.OrganizationID, key.ProductID, nullable(key.VariantID), key.LocationID}
	query, args = withPage(query, args, limit, offset)
	return r.query(ctx, query, args...)
}

// List entradas filtradas por los campos no vacíos, ordenadas por seq.
func (r *LedgerRepo) List(ctx context.Context, f repository.LedgerFilter) ([]*entity.LedgerEntry, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE 1=1`)
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
	b.WriteString(" ORDER BY seq")
	query, args := withPage(b.String(), args, f.Limit, f.Offset)
	return r.query(ctx, query, args...)
}

// SumByKey suma de deltas de la llave (0 si no hay entradas).
func (r *LedgerRepo) SumByKey(ctx context.Context, key entity.StockKey) (int64, error) {
	query := `
		SELECT COALESCE(SUM(quantity_delta), 0)::bigint FROM ledger_entries
		WHERE organization_id = $1 AND product_id = $2 AND variant_id IS NOT DISTINCT FROM $3 AND location_id = $4`
	var sum int64
	if err := r.q.QueryRow(ctx, query, key.OrganizationID, key.ProductID, nullable(key.VariantID), key.LocationID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum ledger: %w", err)
	}
	return sum, nil
}

// NetBySerialUnit efecto neto por llave de una unidad, omitiendo llaves en cero.
func (r *LedgerRepo) NetBySerialUnit(ctx context.Context, serialUnitID string) ([]repository.KeyDelta, error) {
	query := `
		SELECT organization_id, product_id, variant_id, location_id, SUM(quantity_delta)::bigint
		FROM ledger_entries WHERE serial_unit_id = $1
		GROUP BY organization_id, product_id, variant_id, location_id
		HAVING SUM(quantity_delta) <> 0
		ORDER BY location_id, product_id, variant_id NULLS FIRST, organization_id`
	rows, err := r.q.Query(ctx, query, serialUnitID)
	if err != nil {
		return nil, fmt.Errorf("net by serial unit: %w", err)
	}
	defer rows.Close()
	var out []repository.KeyDelta
	for rows.Next() {
		var kd repository.KeyDelta
		var variant *string
		if err := rows.Scan(&kd.Key.OrganizationID, &kd.Key.ProductID, &variant, &kd.Key.LocationID, &kd.Delta); err != nil {
			return nil, fmt.Errorf("scan net by serial unit: %w", err)
		}
		kd.Key.VariantID = deref(variant)
		out = append(out, kd)
	}
	return out, rows.Err()
}

func (r *LedgerRepo) query(ctx context.Context, query string, args ...any) ([]*entity.LedgerEntry, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()
	var out []*entity.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanLedgerEntry(row pgx.Row) (*entity.LedgerEntry, error) {
	var e entity.LedgerEntry
	var variant, refType, refID, batch, unit, notes, createdBy *string
	var typ string
	err := row.Scan(
		&e.ID, &e.Seq, &e.OrganizationID, &e.ProductID, &variant, &e.LocationID, &e.TransactionID, &typ,
		&e.QuantityDelta, &refType, &refID, &e.UnitCost, &batch, &unit, &notes, &createdBy, &e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}
	e.Type = entity.MovementType(typ)
	e.VariantID = deref(variant)
	e.ReferenceType = deref(refType)
	e.ReferenceID = deref(refID)
	e.BatchID = deref(batch)
	e.SerialUnitID = deref(unit)
	e.Notes = deref(notes)
	e.CreatedBy = deref(createdBy)
	return &e, nil
}

// withPage agrega LIMIT/OFFSET parametrizados; limit 0 = sin límite.
func withPage(query string, args []any, limit, offset int) (string, []any) {
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}
