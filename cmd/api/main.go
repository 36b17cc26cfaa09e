package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"workhub/api/internal/config"
	"workhub/api/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "workhub",
	Short: "Workhub document and collaboration API",
	Long: `Workhub serves the knowledge base, tasks, intelligence feed,
chat assistant and daily summaries over HTTP.

Running without a subcommand starts the server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, intelCmd)
	intelCmd.AddCommand(intelGenerateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and builds the process logger shared by
// every subcommand.
func bootstrap() (config.Config, *zap.Logger, error) {
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
