package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.SerialUnitRepository = (*SerialUnitRepo)(nil)

// SerialUnitRepo unidades serializadas sobre PostgreSQL (usable con pool o tx).
type SerialUnitRepo struct {
	q Querier
}

// NewSerialUnitRepository construye el adaptador de unidades. Pasar pool o tx (Querier).
func NewSerialUnitRepository(q Querier) *SerialUnitRepo {
	return &SerialUnitRepo{q: q}
}

const serialUnitColumns = `u.id, u.serial_number, u.batch_id, u.product_id, u.variant_id, u.organization_id,
	u.location_id, u.status, u.cost, u.notes, u.created_at, u.updated_at`

// Create inserta la unidad. Un serial repetido en la organización devuelve ErrConflict.
func (r *SerialUnitRepo) Create(ctx context.Context, u *entity.SerialUnit) error {
	query := `
		INSERT INTO serial_units (id, serial_number, batch_id, product_id, variant_id, organization_id,
			location_id, status, cost, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		u.ID, u.SerialNumber, u.BatchID, u.ProductID, nullable(u.VariantID), u.OrganizationID,
		u.LocationID, string(u.Status), u.Cost, nullable(u.Notes), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: serial %s", domain.ErrConflict, u.SerialNumber)
		}
		return fmt.Errorf("insert serial unit: %w", err)
	}
	return nil
}

// GetByID obtiene una unidad por ID.
func (r *SerialUnitRepo) GetByID(ctx context.Context, id string) (*entity.SerialUnit, error) {
	return r.get(ctx, `SELECT `+serialUnitColumns+` FROM serial_units u WHERE u.id = $1`, id)
}

// GetForUpdate obtiene y bloquea la fila de la unidad.
func (r *SerialUnitRepo) GetForUpdate(ctx context.Context, id string) (*entity.SerialUnit, error) {
	return r.get(ctx, `SELECT `+serialUnitColumns+` FROM serial_units u WHERE u.id = $1 FOR UPDATE`, id)
}

func (r *SerialUnitRepo) get(ctx context.Context, query, id string) (*entity.SerialUnit, error) {
	u, err := scanSerialUnit(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get serial unit: %w", err)
	}
	return u, nil
}

// Update persiste estado, ubicación y notas.
func (r *SerialUnitRepo) Update(ctx context.Context, u *entity.SerialUnit) error {
	u.UpdatedAt = time.Now().UTC()
	query := `UPDATE serial_units SET status = $2, location_id = $3, notes = $4, updated_at = $5 WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, u.ID, string(u.Status), u.LocationID, nullable(u.Notes), u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update serial unit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete elimina la fila; el ledger conserva su historia (serial_unit_id sin FK).
func (r *SerialUnitRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM serial_units WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete serial unit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FindExistingSerials devuelve los seriales que ya existen en la organización.
func (r *SerialUnitRepo) FindExistingSerials(ctx context.Context, organizationID string, serials []string) ([]string, error) {
	if len(serials) == 0 {
		return nil, nil
	}
	rows, err := r.q.Query(ctx,
		`SELECT serial_number FROM serial_units WHERE organization_id = $1 AND serial_number = ANY($2) ORDER BY serial_number`,
		organizationID, serials)
	if err != nil {
		return nil, fmt.Errorf("find existing serials: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan serial: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// List unidades filtradas con total para paginación. Search aplica ILIKE sobre serial, SKU y nombre.
func (r *SerialUnitRepo) List(ctx context.Context, f repository.SerialUnitFilter) ([]*entity.SerialUnit, int, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + serialUnitColumns + `, COUNT(*) OVER() AS total
		FROM serial_units u LEFT JOIN products p ON p.id = u.product_id WHERE 1=1`)
	args := []any{}
	pos := 1
	for _, c := range []struct{ col, val string }{
		{"u.organization_id", f.OrganizationID},
		{"u.product_id", f.ProductID},
		{"u.variant_id", f.VariantID},
		{"u.batch_id", f.BatchID},
		{"u.location_id", f.LocationID},
		{"u.status", string(f.Status)},
	} {
		if c.val == "" {
			continue
		}
		b.WriteString(fmt.Sprintf(" AND %s = $%d", c.col, pos))
		args = append(args, c.val)
		pos++
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		b.WriteString(fmt.Sprintf(" AND (u.serial_number ILIKE $%d OR p.sku ILIKE $%d OR p.name ILIKE $%d)", pos, pos, pos))
		args = append(args, "%"+s+"%")
		pos++
	}
	b.WriteString(" ORDER BY u.created_at DESC, u.id")
	query, args := withPage(b.String(), args, f.Limit, f.Offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list serial units: %w", err)
	}
	defer rows.Close()
	var (
		out   []*entity.SerialUnit
		total int
	)
	for rows.Next() {
		var u entity.SerialUnit
		var variant, notes *string
		var status string
		if err := rows.Scan(
			&u.ID, &u.SerialNumber, &u.BatchID, &u.ProductID, &variant, &u.OrganizationID,
			&u.LocationID, &status, &u.Cost, &notes, &u.CreatedAt, &u.UpdatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan serial unit: %w", err)
		}
		u.VariantID = deref(variant)
		u.Notes = deref(notes)
		u.Status = entity.SerialStatus(status)
		out = append(out, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(out) == 0 && f.Offset > 0 {
		// Página vacía fuera de rango: el total sigue siendo útil para el cliente.
		if err := r.q.QueryRow(ctx, countQuery(b.String()), args[:pos-1]...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count serial units: %w", err)
		}
	}
	return out, total, nil
}

// countQuery reutiliza el FROM/WHERE de la consulta de listado.
func countQuery(listQuery string) string {
	from := strings.Index(listQuery, "FROM serial_units")
	order := strings.LastIndex(listQuery, " ORDER BY")
	return `SELECT COUNT(*) ` + listQuery[from:order]
}

func scanSerialUnit(row pgx.Row) (*entity.SerialUnit, error) {
	var u entity.SerialUnit
	var variant, notes *string
	var status string
	err := row.Scan(
		&u.ID, &u.SerialNumber, &u.BatchID, &u.ProductID, &variant, &u.OrganizationID,
		&u.LocationID, &status, &u.Cost, &notes, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.VariantID = deref(variant)
	u.Notes = deref(notes)
	u.Status = entity.SerialStatus(status)
	return &u, nil
}
