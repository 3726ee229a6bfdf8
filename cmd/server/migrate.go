package main

import (
	"github.com/spf13/cobra"

	"github.com/pesio-ai/be-fund-distributions/internal/repository"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			return repository.Migrate(cfg.Database.DSN(), cfg.Database.Database, log.Logger)
		},
	}
}
