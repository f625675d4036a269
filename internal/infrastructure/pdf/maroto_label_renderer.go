// Package pdf genera la hoja de etiquetas de un lote: una etiqueta por unidad serializada
// con QR del número de serie, en grilla de tres columnas sobre A4.
//
//	┌───────────────────────────────────────────────┐
//	│  HEADER: Producto + SKU │ Lote + Vencimiento    │
//	│  ───────────────────────────────────────────  │
//	│  [QR serial] [QR serial] [QR serial]          │
//	│   SERIAL-1    SERIAL-2    SERIAL-3            │
//	│  ...                                          │
//	└───────────────────────────────────────────────┘
package pdf

import (
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

const labelsPerRow = 3

// ── Renderer ──────────────────────────────────────────────────────────────────

var _ inventory.LabelRenderer = (*MarotoLabelRenderer)(nil)

// MarotoLabelRenderer implementa inventory.LabelRenderer usando Maroto v2.
type MarotoLabelRenderer struct{}

// NewMarotoLabelRenderer construye el generador.
func NewMarotoLabelRenderer() *MarotoLabelRenderer { return &MarotoLabelRenderer{} }

// RenderLabels genera el PDF y devuelve sus bytes.
func (g *MarotoLabelRenderer) RenderLabels(batch *entity.Batch, product *entity.Product, units []*entity.SerialUnit) ([]byte, error) {
	if batch == nil || product == nil {
		return nil, fmt.Errorf("pdf: lote y producto requeridos")
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Etiquetas lote "+batch.ID, true).
		Build()

	m := maroto.New(cfg)
	m.AddRows(headerRow(batch, product))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))

	for i := 0; i < len(units); i += labelsPerRow {
		end := min(i+labelsPerRow, len(units))
		m.AddRows(labelRow(product, units[i:end]))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: producto + SKU (izq) y lote + vencimiento (der).
func headerRow(batch *entity.Batch, product *entity.Product) core.Row {
	expiry := "-"
	if batch.ExpirationDate != nil {
		expiry = batch.ExpirationDate.Format("02/01/2006")
	}
	return row.New(16).Add(
		col.New(7).Add(
			text.New(product.Name, props.Text{
				Style: fontstyle.Bold, Size: 12, Color: colorPrimary, Top: 1,
			}),
			text.New("SKU: "+product.SKU, props.Text{Size: 9, Top: 8, Color: colorGray}),
		),
		col.New(5).Add(
			text.New("LOTE "+batch.ID, props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right, Top: 1,
			}),
			text.New("Vence: "+expiry, props.Text{
				Size: 8, Align: align.Right, Top: 8, Color: colorGray,
			}),
		),
	)
}

// labelRow hasta tres etiquetas; las columnas sobrantes quedan vacías.
func labelRow(product *entity.Product, units []*entity.SerialUnit) core.Row {
	cols := make([]core.Col, 0, labelsPerRow)
	for _, u := range units {
		cols = append(cols, col.New(12/labelsPerRow).Add(
			code.NewQr(u.SerialNumber, props.Rect{Percent: 70, Center: false, Left: 9, Top: 2}),
			text.New(u.SerialNumber, props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Center, Top: 38,
			}),
			text.New(product.SKU, props.Text{
				Size: 7, Align: align.Center, Top: 43, Color: colorGray,
			}),
		))
	}
	for len(cols) < labelsPerRow {
		cols = append(cols, col.New(12/labelsPerRow))
	}
	return row.New(50).Add(cols...)
}
