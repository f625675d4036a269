package http

import (
	"os"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Registry  *inventory.SerialUnitRegistry
	Transfer  *inventory.TransferCoordinator
	Labels    *inventory.LabelsUseCase
	Stock     *inventory.StockUseCase
	Reconcile *inventory.ReconcileUseCase
	JWTSecret string
	JWTIssuer string

	ServiceName string
	// Gatherer origen de /metrics; nil desactiva el endpoint.
	Gatherer prometheus.Gatherer
	// SwaggerFile se sirve en /docs solo si el archivo existe.
	SwaggerFile string
}

// Router registra las rutas operativas y de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": deps.ServiceName})
	})
	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
	if deps.SwaggerFile != "" {
		if _, err := os.Stat(deps.SwaggerFile); err == nil {
			// Swagger UI en local: http://localhost:<port>/docs
			app.Use(swagger.New(swagger.Config{
				BasePath: "/",
				FilePath: deps.SwaggerFile,
				Path:     "docs",
				Title:    "Stock Ledger API",
			}))
		}
	}

	// Rutas protegidas (requieren Bearer Token)
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret, deps.JWTIssuer))

	readers := RequireRole(entity.RoleAdmin, entity.RoleBodeguero, entity.RoleVendedor)
	warehouse := RequireRole(entity.RoleAdmin, entity.RoleBodeguero)
	adminOnly := RequireRole(entity.RoleAdmin)

	// Serial units
	units := api.Group("/serial-units")
	unitHandler := NewSerialUnitHandler(deps.Registry, deps.Transfer, deps.Labels)
	units.Post("/", warehouse, unitHandler.Create)
	units.Get("/", readers, unitHandler.List)
	units.Get("/:id", readers, unitHandler.GetByID)
	// vendedor registra ventas y reservas
	units.Post("/:id/transition", readers, unitHandler.Transition)
	units.Post("/:id/transfer", warehouse, unitHandler.Transfer)
	units.Delete("/:id", adminOnly, unitHandler.Delete)

	api.Get("/batches/:id/labels", warehouse, unitHandler.BatchLabels)

	// Stock levels
	levels := api.Group("/stock-levels")
	stockHandler := NewStockHandler(deps.Stock, deps.Reconcile)
	levels.Get("/", readers, stockHandler.ListLevels)
	levels.Get("/ledger", readers, stockHandler.Ledger)
	levels.Get("/ledger/export", warehouse, stockHandler.ExportLedger)
	levels.Post("/adjustments", warehouse, stockHandler.Adjust)
	levels.Get("/reconciliation", adminOnly, stockHandler.Reconcile)
}
