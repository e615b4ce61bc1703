package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/reviewsift/review-sift/internal/bus"
	"github.com/reviewsift/review-sift/internal/models"
)

func modelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage classification models",
	}

	cmd.AddCommand(modelsPullCmd(), modelsListCmd())
	return cmd
}

func modelsPullCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull <repo-id>",
		Short: "Pull a model's artifacts from the hub",
		Long: `Download a model's ONNX weights, config, and vocabulary into the
local models directory.

Examples:
  review-sift models pull org/review-noise-deberta-v3-small`,
		Args: cobra.ExactArgs(1),
		RunE: runModelsPull,
	}

	cmd.Flags().String("token", "", "hub access token (overrides config)")
	return cmd
}

func runModelsPull(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	repoID := args[0]
	token := cfg.Hub.Token
	if v, _ := cmd.Flags().GetString("token"); v != "" {
		token = v
	}

	hub := models.NewHubClient(models.HubConfig{
		Endpoint: cfg.Hub.Endpoint,
		Token:    token,
	})
	store := models.NewStore(cfg.Hub.ModelsDir)
	puller := models.NewPuller(hub, store, log)

	var bar *progressbar.ProgressBar
	lastFile := ""
	manifest, err := puller.Pull(cmd.Context(), repoID, func(p models.PullProgress) {
		if p.File != lastFile {
			lastFile = p.File
			bar = progressbar.DefaultBytes(p.Total,
				fmt.Sprintf("pulling %s (%d/%d)", p.File, p.FileIndex, p.FileCount))
		}
		if bar != nil {
			_ = bar.Set64(p.Downloaded)
		}
	})
	if err != nil {
		return err
	}

	publishEvent(cmd.Context(), cfg.Bus, log, bus.NewEvent("cli", bus.EventModelPulled, bus.ModelPulledPayload{
		Model:    manifest.Name,
		Revision: manifest.Revision,
		Files:    len(manifest.Files),
		Bytes:    manifest.Size,
	}))

	fmt.Printf("Pulled %s\n", manifest.ID)
	fmt.Printf("  revision: %s\n", manifest.Revision)
	fmt.Printf("  files:    %d\n", len(manifest.Files))
	fmt.Printf("  size:     %.1f MB\n", float64(manifest.Size)/(1<<20))
	fmt.Printf("  path:     %s\n", store.Dir(manifest.Name))
	return nil
}

func modelsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known and downloaded models",
		RunE:  runModelsList,
	}
}

func runModelsList(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store := models.NewStore(cfg.Hub.ModelsDir)
	infos, err := store.Infos()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tID\tDOWNLOADED\tDEFAULT\tSIZE")
	for _, info := range infos {
		size := "-"
		if info.Size > 0 {
			size = fmt.Sprintf("%.1f MB", float64(info.Size)/(1<<20))
		}
		fmt.Fprintf(w, "%s\t%s\t%v\t%v\t%s\n", info.Name, info.ID, info.Downloaded, info.IsDefault, size)
	}
	return w.Flush()
}
