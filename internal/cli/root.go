// Package cli holds the claims-service commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cuongbtq/claims-pipeline/internal/config"
	"github.com/cuongbtq/claims-pipeline/shared/logger"
)

const configPathEnv = "CLAIMS_SERVICE_CONFIG_PATH"

type rootOptions struct {
	configPath string
	envFile    string
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	defaultConfigPath := os.Getenv(configPathEnv)
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/config.yaml"
	}

	cmd := &cobra.Command{
		Use:           "claims-service",
		Short:         "Claims submission pipeline",
		Long:          `claims-service schedules claim submission and status polling jobs against external rails, behind a network safety gate.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(opts.envFile); err != nil {
				slog.Debug("No .env file loaded", slog.String("path", opts.envFile))
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "path to configuration file (env "+configPathEnv+")")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the configuration")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newGateCmd(opts),
	)

	return cmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		logger.NewDefault().Error("Command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// loadConfig reads the configuration, validating it when validate is set
func (o *rootOptions) loadConfig(validate bool) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}

	return cfg, nil
}
