package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/reviewsift/review-sift/internal/server"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Review Sift HTTP server",
		Long: `Start the HTTP server with the classification API, dataset
labelling, runtime settings, metrics, and the web UI.`,
		RunE: runServe,
	}

	cmd.Flags().IntP("port", "p", 0, "HTTP server port (overrides config)")
	cmd.Flags().String("host", "", "HTTP server host (overrides config)")
	cmd.Flags().Bool("no-web", false, "disable web UI")
	cmd.Flags().String("model_path", "", "model artifact directory (overrides config)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
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
