package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// StockHandler agregados, ledger, ajustes y conciliación (protegido).
type StockHandler struct {
	stock     *inventory.StockUseCase
	reconcile *inventory.ReconcileUseCase
}

// NewStockHandler construye el handler.
func NewStockHandler(stock *inventory.StockUseCase, reconcile *inventory.ReconcileUseCase) *StockHandler {
	return &StockHandler{stock: stock, reconcile: reconcile}
}

// ListLevels godoc
// @Summary      Listar niveles de stock
// @Tags         stock-levels
// @Security     Bearer
// @Produce      json
// @Param        product_id   query  string  false  "Producto"
// @Param        variant_id   query  string  false  "Variante"
// @Param        location_id  query  string  false  "Ubicación"
// @Param        limit        query  int     false  "Máximo 500"
// @Param        offset       query  int     false  "Desplazamiento"
// @Success      200  {array}   dto.StockLevelResponse
// @Router       /api/stock-levels [get]
func (h *StockHandler) ListLevels(c *fiber.Ctx) error {
	scope := ScopeFrom(c)
	if !scope.Valid() {
		return unauthorized(c)
	}
	var q dto.StockKeyQuery
	var page dto.PageRequest
	if err := c.QueryParser(&q); err != nil {
		return badBody(c)
	}
	if err := c.QueryParser(&page); err != nil {
		return badBody(c)
	}
	page.DefaultPage()
	levels, err := h.stock.ListLevels(c.UserContext(), scope, repository.StockLevelFilter{
		OrganizationID: q.OrganizationID,
		ProductID:      q.ProductID,
		VariantID:      q.VariantID,
		LocationID:     q.LocationID,
		Limit:          page.Limit,
		Offset:         page.Offset,
	})
	if err != nil {
		return writeError(c, err)
	}
	out := make([]dto.StockLevelResponse, 0, len(levels))
	for _, l := range levels {
		out = append(out, dto.StockLevelFromEntity(l))
	}
	return c.JSON(out)
}

// Ledger godoc
// @Summary      Ledger de una llave de stock
// @Description  Entradas en orden de secuencia. product_id y location_id son obligatorios.
// @Tags         stock-levels
// @Security     Bearer
// @Produce      json
// @Param        product_id   query  string  true   "Producto"
// @Param        variant_id   query  string  false  "Variante"
// @Param        location_id  query  string  true   "Ubicación"
// @Param        limit        query  int     false  "Máximo 500"
// @Param        offset       query  int     false  "Desplazamiento"
// @Success      200  {array}   dto.LedgerEntryResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/stock-levels/ledger [get]
func (h *StockHandler) Ledger(c *fiber.Ctx) error {
	scope := ScopeFrom(c)
	if !scope.Valid() {
		return unauthorized(c)
	}
	var q dto.StockKeyQuery
	var page dto.PageRequest
	if err := c.QueryParser(&q); err != nil {
		return badBody(c)
	}
	if err := c.QueryParser(&page); err != nil {
		return badBody(c)
	}
	page.DefaultPage()
	entries, err := h.stock.Ledger(c.UserContext(), scope, q.Key(), page.Limit, page.Offset)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]dto.LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.LedgerEntryFromEntity(e))
	}
	return c.JSON(out)
}

// ExportLedger godoc
// @Summary      Exportar ledger a Excel
// @Tags         stock-levels
// @Security     Bearer
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        product_id   query  string  true   "Producto"
// @Param        variant_id   query  string  false  "Variante"
// @Param        location_id  query  string  true   "Ubicación"
// @Success      200  {file}    file
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/stock-levels/ledger/export [get]
func (h *StockHandler) ExportLedger(c *fiber.Ctx) error {
	scope := ScopeFrom(c)
	if !scope.Valid() {
		return unauthorized(c)
	}
	var q dto.StockKeyQuery
	if err := c.QueryParser(&q); err != nil {
		return badBody(c)
	}
	raw, err := h.stock.ExportLedger(c.UserContext(), scope, q.Key())
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="ledger.xlsx"`)
	return c.Send(raw)
}

// Adjust godoc
// @Summary      Ajuste manual de stock
// @Description  Movimiento ADJUSTMENT con motivo obligatorio; puede dejar stock negativo.
// @Tags         stock-levels
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.AdjustStockRequest  true  "product_id, location_id, delta, reason"
// @Success      201   {object}  dto.StockLevelResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/stock-levels/adjustments [post]
func (h *StockHandler) Adjust(c *fiber.Ctx) error {
	scope := ScopeFrom(c)
	if !scope.Valid() {
		return unauthorized(c)
	}
	var in dto.AdjustStockRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	cost := decimal.Zero
	if in.UnitCost != nil {
		cost = *in.UnitCost
	}
	level, err := h.stock.Adjust(c.UserContext(), scope, inventory.AdjustStockInput{
		ProductID:   in.ProductID,
		VariantID:   in.VariantID,
		LocationID:  in.LocationID,
		Delta:       in.Delta,
		UnitCost:    cost,
		Reason:      in.Reason,
		ReferenceID: in.ReferenceID,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.StockLevelFromEntity(level))
}

// Reconcile godoc
// @Summary      Conciliar agregados contra el ledger
// @Tags         stock-levels
// @Security     Bearer
// @Produce      json
// @Param        organization_id  query  string  false  "Solo super admin"
// @Param        product_id       query  string  false  "Producto"
// @Param        location_id      query  string  false  "Ubicación"
// @Success      200  {object}  dto.ReconciliationResponse
// @Router       /api/stock-levels/reconciliation [get]
func (h *StockHandler) Reconcile(c *fiber.Ctx) error {
	scope := ScopeFrom(c)
	if !scope.Valid() {
		return unauthorized(c)
	}
	var q dto.StockKeyQuery
	if err := c.QueryParser(&q); err != nil {
		return badBody(c)
	}
	report, err := h.reconcile.Reconcile(c.UserContext(), scope, repository.StockLevelFilter{
		OrganizationID: q.OrganizationID,
		ProductID:      q.ProductID,
		VariantID:      q.VariantID,
		LocationID:     q.LocationID,
	})
	if err != nil {
		return writeError(c, err)
	}
	out := dto.ReconciliationResponse{
		OrganizationID: report.OrganizationID,
		Consistent:     report.Consistent(),
		KeysChecked:    report.KeysChecked,
		EntriesRead:    report.EntriesRead,
		Discrepancies:  make([]dto.DiscrepancyResponse, 0, len(report.Discrepancies)),
	}
	for _, d := range report.Discrepancies {
		out.Discrepancies = append(out.Discrepancies, dto.DiscrepancyResponse{
			ProductID:  d.Key.ProductID,
			VariantID:  d.Key.VariantID,
			LocationID: d.Key.LocationID,
			Aggregate:  d.Aggregate,
			LedgerSum:  d.LedgerSum,
		})
	}
	return c.JSON(out)
}
