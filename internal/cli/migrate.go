package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuongbtq/claims-pipeline/internal/storage"
	"github.com/cuongbtq/claims-pipeline/shared/logger"
	"github.com/cuongbtq/claims-pipeline/shared/postgresql"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(true)
			if err != nil {
				return err
			}

			appLogger, err := logger.New(cfg.LoggerConfig())
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer appLogger.Close()

			dbClient, err := postgresql.NewClient(cfg.PostgreSQLConfig(), appLogger.Logger)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer dbClient.Close()

			return storage.Migrate(cmd.Context(), dbClient.GetDB().DB, appLogger.Logger)
		},
	}
}
