package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edgard/polybot/internal/config"
	"github.com/edgard/polybot/internal/database"
	"github.com/edgard/polybot/internal/logger"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)

			db, err := database.NewDB(database.Options{
				Driver:       cfg.Database.Driver,
				DSN:          cfg.Database.DSN,
				MaxOpenConns: cfg.Database.MaxOpenConns,
			})
			if err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
			database.CloseDB(db)

			log.Info("Database migrations applied", "driver", cfg.Database.Driver)
			return nil
		},
	}
}
