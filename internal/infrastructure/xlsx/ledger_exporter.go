// Package xlsx exporta el ledger de movimientos a Excel.
package xlsx

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

var _ inventory.LedgerExporter = (*LedgerExporter)(nil)

const sheetName = "Ledger"

var header = []interface{}{
	"seq", "fecha", "tipo", "cantidad", "producto", "variante", "ubicacion",
	"costo_unitario", "referencia_tipo", "referencia_id", "unidad", "lote", "transaccion", "usuario", "notas",
}

// LedgerExporter genera un .xlsx con una fila por entrada, en el orden recibido.
type LedgerExporter struct{}

func NewLedgerExporter() *LedgerExporter { return &LedgerExporter{} }

// ExportLedger escribe el libro y devuelve sus bytes.
func (e *LedgerExporter) ExportLedger(entries []*entity.LedgerEntry) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), sheetName); err != nil {
		return nil, fmt.Errorf("xlsx: hoja: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("xlsx: encabezado: %w", err)
	}

	row := 2
	for _, le := range entries {
		cost, _ := le.UnitCost.Float64()
		excelRow := []interface{}{
			le.Seq,
			le.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			string(le.Type),
			le.QuantityDelta,
			le.ProductID,
			le.VariantID,
			le.LocationID,
			cost,
			le.ReferenceType,
			le.ReferenceID,
			le.SerialUnitID,
			le.BatchID,
			le.TransactionID,
			le.CreatedBy,
			le.Notes,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, fmt.Errorf("xlsx: celda: %w", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &excelRow); err != nil {
			return nil, fmt.Errorf("xlsx: fila %d: %w", row, err)
		}
		row++
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("xlsx: escribir: %w", err)
	}
	return buf.Bytes(), nil
}
