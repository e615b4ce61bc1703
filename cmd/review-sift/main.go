// Package main provides the review-sift CLI: batch evaluation, one-off
// classification, dataset cleaning, model management, and an embedded
// server mode.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/reviewsift/review-sift/internal/config"
	"github.com/reviewsift/review-sift/internal/pkg/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "review-sift",
		Short: "Review Sift - review quality classification",
		Long: `Review Sift classifies location reviews into quality categories
(Valid, SpamAds, LowQuality, RantWithoutVisit) with a fine-tuned
transformer running on ONNX Runtime.

Run 'review-sift evaluate' to score a labeled dataset.
Run 'review-sift serve' to start the HTTP server and web UI.
Run 'review-sift --help' for available commands.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		evaluateCmd(),
		classifyCmd(),
		cleanCmd(),
		modelsCmd(),
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads configuration honoring the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	log := logger.New(level, cfg.Log.Format)

	return cfg, log, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("review-sift %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}
