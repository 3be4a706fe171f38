package main

import (
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/config"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/store/postgres"
	"github.com/Tanmoy095/rent-counter-billing/shared/logger"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format, "billing-service")
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		db, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		return postgres.Migrate(cmd.Context(), db, log)
	},
}
