// Package main provides the review-sift-server binary: the HTTP server
// with the classification API, dataset labelling, runtime settings,
// metrics, and the web UI.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/reviewsift/review-sift/internal/config"
	"github.com/reviewsift/review-sift/internal/pkg/logger"
	"github.com/reviewsift/review-sift/internal/server"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "review-sift-server",
		Short: "Review Sift Server - review classification over HTTP",
		Long: `Review Sift Server classifies location reviews into quality
categories with a fine-tuned transformer running on ONNX Runtime.

The server exposes:
  - REST API on :8080 (configurable) for classification and labelling
  - Web UI on the same port (optional)
  - Prometheus metrics on /metrics

Examples:
  review-sift-server                       # Start with defaults
  review-sift-server --port 9090           # Custom HTTP port
  review-sift-server --no-web              # API only
  review-sift-server -c config.yaml        # Config file`,
		RunE:         runServer,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringP("config", "c", "", "config file path")
	rootCmd.Flags().BoolP("verbose", "v", false, "verbose logging")
	rootCmd.Flags().IntP("port", "p", 0, "HTTP server port (overrides config)")
	rootCmd.Flags().String("host", "", "HTTP server host (overrides config)")
	rootCmd.Flags().Bool("no-web", false, "disable web UI")
	rootCmd.Flags().String("model_path", "", "model artifact directory (overrides config)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("review-sift-server %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Host, _ = cmd.Flags().GetString("host")
	}
	if noWeb, _ := cmd.Flags().GetBool("no-web"); noWeb {
		cfg.EnableWeb = false
	}
	if modelPath, _ := cmd.Flags().GetString("model_path"); modelPath != "" {
		cfg.Model.Path = modelPath
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	log := logger.New(level, cfg.Log.Format)

	log.Info("Starting Review Sift Server",
		"version", version,
		"addr", cfg.Address(),
		"model", cfg.Model.Name,
	)

	srv, err := server.New(cfg, version, log)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		log.Info("Shutdown signal received", "signal", sig.String())
	}

	return srv.Stop(context.Background())
}
