package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	domaininv "github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/events"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/metrics"
	infrapdf "github.com/jhoicas/stock-ledger/internal/infrastructure/pdf"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	infraxlsx "github.com/jhoicas/stock-ledger/internal/infrastructure/xlsx"
	httpRouter "github.com/jhoicas/stock-ledger/internal/interfaces/http"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("storage", cfg.Storage.Driver).
		Str("negative_stock_policy", cfg.Inventory.NegativeStockPolicy).
		Msg("iniciando aplicación")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	policy, err := domaininv.ParseNegativeStockPolicy(cfg.Inventory.NegativeStockPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("política de stock negativo")
	}

	deps := inventory.Deps{
		Logger: log,
		Settings: inventory.Settings{
			NegativePolicy: policy,
			MaxRetries:     cfg.Inventory.MaxRetries,
			RetryBaseDelay: cfg.Inventory.RetryBaseDelay,
			RetryMaxDelay:  cfg.Inventory.RetryMaxDelay,
			TxTimeout:      cfg.Inventory.TxTimeout,
		},
	}

	var snapshots inventory.SnapshotReader
	switch cfg.Storage.Driver {
	case "memory":
		// Solo desarrollo: catálogo vacío y estado perdido al reiniciar.
		store := memory.NewStore()
		deps.TxRunner = store
		snapshots = store
		deps.Ledger = store.Ledger()
		deps.Stock = store.StockLevels()
		deps.Units = store.SerialUnits()
		deps.Batches = store.Batches()
		deps.Locations = store.Locations()
		deps.Products = store.Products()
		log.Warn().Msg("almacenamiento en memoria: los datos no persisten")
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		runner := postgres.NewTxRunner(pool, cfg.Inventory.LockTimeout)
		deps.TxRunner = runner
		snapshots = runner
		deps.Ledger = postgres.NewLedgerRepository(pool)
		deps.Stock = postgres.NewStockLevelRepository(pool)
		deps.Units = postgres.NewSerialUnitRepository(pool)
		deps.Batches = postgres.NewBatchRepository(pool)
		deps.Locations = postgres.NewLocationRepository(pool)
		deps.Products = postgres.NewProductRepository(pool)
	}

	var (
		gatherer prometheus.Gatherer
		drops    inventory.DropCounter
	)
	if cfg.Metrics.Enabled {
		hooks, err := metrics.New(prometheus.DefaultRegisterer)
		if err != nil {
			log.Fatal().Err(err).Msg("registrar métricas")
		}
		deps.Hooks = hooks
		drops = hooks
		gatherer = prometheus.DefaultGatherer
	}

	var publisher inventory.EventPublisher = events.NewLogPublisher(log.Named("events"))
	if cfg.Events.RedisAddr != "" {
		redisPub, err := events.NewRedisPublisher(ctx, cfg.Events)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer func() { _ = redisPub.Close() }()
		publisher = redisPub
	}
	dispatcher := inventory.NewEventDispatcher(publisher, inventory.DispatcherConfig{
		Buffer:      cfg.Events.Buffer,
		MaxAttempts: cfg.Events.MaxAttempts,
	}, drops, log)
	dispatcher.Start(ctx)
	deps.Events = dispatcher

	registry := inventory.NewSerialUnitRegistry(deps)
	transferCoordinator := inventory.NewTransferCoordinator(deps.Locations, registry)
	labelsUC := inventory.NewLabelsUseCase(deps, infrapdf.NewMarotoLabelRenderer())
	stockUC := inventory.NewStockUseCase(deps, infraxlsx.NewLedgerExporter())
	reconcileUC := inventory.NewReconcileUseCase(snapshots, log)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	httpRouter.Router(app, httpRouter.RouterDeps{
		Registry:    registry,
		Transfer:    transferCoordinator,
		Labels:      labelsUC,
		Stock:       stockUC,
		Reconcile:   reconcileUC,
		JWTSecret:   cfg.JWT.Secret,
		JWTIssuer:   cfg.JWT.Issuer,
		ServiceName: cfg.App.Name,
		Gatherer:    gatherer,
		SwaggerFile: cfg.Docs.SwaggerFile,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	// Después del servidor: ya no llegan operaciones nuevas, se entregan los eventos pendientes.
	dispatcher.Close()

	log.Info().Msg("aplicación detenida")
}
