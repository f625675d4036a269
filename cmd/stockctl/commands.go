package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "stockctl",
		Short:        "Operaciones de mantenimiento del ledger de stock",
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newReconcileCommand())
	return root
}

func newMigrateCommand() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones pendientes (goose)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := postgres.Migrate(ctx, cfg.DB); err != nil {
				return err
			}
			log.Info().Msg("migraciones aplicadas")
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Tiempo máximo de la migración")
	return cmd
}

func newReconcileCommand() *cobra.Command {
	var (
		organizationID string
		productID      string
		locationID     string
		asJSON         bool
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compara cada agregado de stock con la suma de su ledger",
		Long: `Recorre los niveles de stock de una organización y los compara con la suma de
las entradas del ledger y con una reproducción ordenada de las mismas.

Sale con código 1 si encuentra diferencias.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if organizationID == "" {
				return fmt.Errorf("--organization es obligatorio")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})

			pool, err := postgres.NewPool(cmd.Context(), cfg.DB)
			if err != nil {
				return err
			}
			defer pool.Close()

			uc := inventory.NewReconcileUseCase(postgres.NewTxRunner(pool, 0), log)
			scope := entity.Scope{SuperAdmin: true}
			report, err := uc.Reconcile(cmd.Context(), scope, repository.StockLevelFilter{
				OrganizationID: organizationID,
				ProductID:      productID,
				LocationID:     locationID,
			})
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "llaves: %d  entradas: %d  diferencias: %d\n",
					report.KeysChecked, report.EntriesRead, len(report.Discrepancies))
				for _, d := range report.Discrepancies {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s  agregado=%d  ledger=%d\n", d.Key, d.Aggregate, d.LedgerSum)
				}
			}
			if !report.Consistent() {
				return fmt.Errorf("%d llaves no coinciden con el ledger", len(report.Discrepancies))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&organizationID, "organization", "", "Organización a conciliar")
	cmd.Flags().StringVar(&productID, "product", "", "Acotar a un producto")
	cmd.Flags().StringVar(&locationID, "location", "", "Acotar a una ubicación")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Salida en JSON")
	return cmd
}
