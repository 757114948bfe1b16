// Package main provides the enrich CLI, which runs enrichment directly
// against the record store without Temporal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/enrichment-service/internal/app"
	"github.com/helixir/enrichment-service/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	envFile  string
	logLevel string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich bibliographic records with abstracts, preprint links and open-access status",
	Example: `enrich run
enrich run --all --no-second-pass
enrich record 7b0e2f3c-5d1a-4c8e-9f1a-0c2b3d4e5f60
enrich report 7b0e2f3c-5d1a-4c8e-9f1a-0c2b3d4e5f60`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; the environment may already be set.
		if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	rootCmd.Version = Version

	rootCmd.AddCommand(runCmd, recordCmd, reportCmd)
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}

// withServices loads configuration, wires the enrichment stack and calls fn
// with a context cancelled on SIGINT or SIGTERM.
func withServices(fn func(ctx context.Context, cfg *config.Config, svc *app.Services, logger zerolog.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger := app.NewLogger(cfg.Logging).With().Str("component", "cli").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := app.New(ctx, cfg, app.Options{ServiceName: "enrichment-cli"}, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	return fn(ctx, cfg, svc, logger)
}
