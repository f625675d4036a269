package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// SerialUnitHandler maneja las peticiones HTTP de unidades serializadas (protegido).
type SerialUnitHandler struct {
	registry *inventory.SerialUnitRegistry
	transfer *inventory.TransferCoordinator
	labels   *inventory.LabelsUseCase
}

// NewSerialUnitHandler construye el handler.
func NewSerialUnitHandler(registry *inventory.SerialUnitRegistry, transfer *inventory.TransferCoordinator, labels *inventory.LabelsUseCase) *SerialUnitHandler {
	return &SerialUnitHandler{registry: registry, transfer: transfer, labels: labels}
}

// Create godoc
// @Summary      Dar de alta unidades desde un lote
// @Description  Todo o nada: si algún serial ya existe en la organización no se crea ninguna unidad.
// @Tags         serial-units
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateSerialUnitsRequest  true  "batch_id, serial_numbers, location_id opcional"
// @Success      201   {array}   dto.SerialUnitResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/serial-units [post]
func (h *SerialUnitHandler) Create(c *fiber.Ctx) error {
	scope := ScopeFrom(c)
	if !scope.Valid() {
		return unauthorized(c)
	}
	var in dto.CreateSerialUnitsRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	units, err := h.registry.Create(c.UserContext(), scope, inventory.CreateUnitsInput{
		BatchID:       in.BatchID,
		SerialNumbers: in.SerialNumbers,
		LocationID:    in.LocationID,
		Notes:         in.Notes,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SerialUnitsFromEntities(units))
}

// List godoc
// @Summary      Listar unidades
// @Description  Filtros opcionales; search busca en serial, SKU y nombre de producto. Más recientes primero.
// @Tags         serial-units
// @Security     Bearer
// @Produce      json
// @Param        product_id   query  string  false  "Producto"
// @Param        variant_id   query  string  false  "Variante"
// @Param        batch_id     query  string  false  "Lote"
// @Param        location_id  query  string  false  "Ubicación"
// @Param        status       query  string  false  "Estado"
// @Param        search       query  string  false  "Texto libre"
// @Param        limit        query  int     false  "Máximo 500 (por defecto 50)"
// @Param        offset       query  int     false  "Desplazamiento"
// @Success      200  {object}  dto.SerialUnitListResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/serial-units [get]
func (h *SerialUnitHandler) List(c *fiber.Ctx) error {
	scope := ScopeFrom(c)
	if !scope.Valid() {
		return unauthorized(c)
	}
	var q dto.SerialUnitListQuery
	var page dto.PageRequest
	if err := c.QueryParser(&q); err != nil {
		return badBody(c)
	}
	if err := c.QueryParser(&page); err != nil {
		return badBody(c)
	}
	page.DefaultPage()
	units, total, err := h.registry.List(c.UserContext(), scope, repository.SerialUnitFilter{
		ProductID:  q.ProductID,
		VariantID:  q.VariantID,
		BatchID:    q.BatchID,
		LocationID: q.LocationID,
		Status:     entity.SerialStatus(q.Status),
		Search:     q.Search,
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.SerialUnitListResponse{
		Items: dto.SerialUnitsFromEntities(units),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Total: total},
	})
}

// GetByID godoc
// @Summary      Obtener unidad por ID
// @Tags         serial-units
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "ID de la unidad"
// @Success      200  {object}  dto.SerialUnitResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/serial-units/{id} [get]
func (h *SerialUnitHandler) GetByID(c *fiber.Ctx) error {
	scope := ScopeFrom(c)
	if !scope.Valid() {
		return unauthorized(c)
	}
	unit, err := h.registry.Get(c.UserContext(), scope, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.SerialUnitFromEntity(unit))
}

// Transition godoc
// @Summary      Cambiar estado de una unidad
// @Description  Solo transiciones de la tabla de estados; sales_order_id queda como referencia del ledger.
// @Tags         serial-units
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                 true  "ID de la unidad"
// @Param        body  body  dto.TransitionRequest  true  "status destino y metadatos"
// @Success      200   {object}  dto.SerialUnitResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/serial-units/{id}/transition [post]
func (h *SerialUnitHandler) Transition(c *fiber.Ctx) error {
	scope := ScopeFrom(c)
	if !scope.Valid() {
		return unauthorized(c)
	}
	var in dto.TransitionRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	unit, err := h.registry.Transition(c.UserContext(), scope, c.Params("id"), entity.SerialStatus(in.Status), inventory.TransitionMetadata{
		SalesOrderID:  in.SalesOrderID,
		ReferenceType: in.ReferenceType,
		ReferenceID:   in.ReferenceID,
		LocationID:    in.LocationID,
		Notes:         in.Notes,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.SerialUnitFromEntity(unit))
}

// Transfer godoc
// @Summary      Trasladar una unidad a otra ubicación
// @Description  Salida en origen y entrada en destino en una sola transacción.
// @Tags         serial-units
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string               true  "ID de la unidad"
// @Param        body  body  dto.TransferRequest  true  "target_location_id"
// @Success      200   {object}  dto.SerialUnitResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/serial-units/{id}/transfer [post]
func (h *SerialUnitHandler) Transfer(c *fiber.Ctx) error {
	scope := ScopeFrom(c)
	if !scope.Valid() {
		return unauthorized(c)
	}
	var in dto.TransferRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	unit, err := h.transfer.Transfer(c.UserContext(), scope, c.Params("id"), in.TargetLocationID, inventory.TransitionMetadata{Notes: in.Notes})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.SerialUnitFromEntity(unit))
}

// Delete godoc
// @Summary      Eliminar una unidad
// @Description  Revierte su efecto en el stock con entradas COMPENSATION. Una unidad vendida no se elimina.
// @Tags         serial-units
// @Security     Bearer
// @Param        id   path  string  true  "ID de la unidad"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/serial-units/{id} [delete]
func (h *SerialUnitHandler) Delete(c *fiber.Ctx) error {
	scope := ScopeFrom(c)
	if !scope.Valid() {
		return unauthorized(c)
	}
	if err := h.registry.Delete(c.UserContext(), scope, c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// BatchLabels godoc
// @Summary      Etiquetas PDF de un lote
// @Tags         serial-units
// @Security     Bearer
// @Produce      application/pdf
// @Param        id   path  string  true  "ID del lote"
// @Success      200  {file}    file
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/batches/{id}/labels [get]
func (h *SerialUnitHandler) BatchLabels(c *fiber.Ctx) error {
	scope := ScopeFrom(c)
	if !scope.Valid() {
		return unauthorized(c)
	}
	id := c.Params("id")
	raw, err := h.labels.BatchLabels(c.UserContext(), scope, id)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="etiquetas_`+id+`.pdf"`)
	return c.Send(raw)
}
