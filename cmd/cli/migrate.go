package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/laala/laala-api/pkg/config"
	"github.com/laala/laala-api/pkg/database"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd, func(pool *database.ConnectionPool, cfg *config.Config) error {
					if err := database.RunMigrations(pool.GetDB()); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
					return database.CheckTables(cmd.Context(), pool.GetDB(), append(cfg.Collections.Tables(), "documents")...)
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print migration status",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd, func(pool *database.ConnectionPool, _ *config.Config) error {
					return database.MigrationStatus(pool.GetDB())
				})
			},
		},
	)
	return cmd
}

func withDatabase(cmd *cobra.Command, fn func(pool *database.ConnectionPool, cfg *config.Config) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.StoreDriver != "postgres" {
		return fmt.Errorf("migrations need STORE_DRIVER=postgres, got %q", cfg.StoreDriver)
	}
	pool, err := database.NewConnectionPool(cmd.Context(), &database.Config{URL: cfg.DatabaseURL, MaxOpenConns: 2}, slog.Default())
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(pool, cfg)
}
