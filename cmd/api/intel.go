package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"workhub/api/internal/ai"
	"workhub/api/internal/config"
	"workhub/api/internal/intel"
	"workhub/api/internal/store"
)

var intelCmd = &cobra.Command{
	Use:   "intel",
	Short: "Intelligence feed maintenance",
}

var intelGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run one intelligence generation immediately",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx := cmd.Context()
		db, err := openDatabase(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		model, err := newModel(ctx, cfg, logger)
		if err != nil {
			return err
		}
		posts, err := intel.NewGenerator(model, store.NewPostgresStore(db), logger).Generate(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "generated %d intelligence posts\n", len(posts))
		return nil
	},
}

// newModel returns the Gemini client, or the disabled client when no API key
// is configured.
func newModel(ctx context.Context, cfg config.Config, logger *zap.Logger) (ai.Client, error) {
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		logger.Warn("GEMINI_API_KEY not set, generative features are disabled")
		return ai.Disabled{}, nil
	}
	client, err := ai.NewGenAI(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("generative model client: %w", err)
	}
	return client, nil
}
