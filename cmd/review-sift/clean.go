package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/reviewsift/review-sift/internal/dataset"
)

func cleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Convert a raw review dump into a clean CSV",
		Long: `Read a raw review dump (JSON Lines or a JSON array), drop rows
missing required fields, normalize text, and write a CSV with a
stable schema.

Examples:
  review-sift clean --input reviews.json --output reviews.csv`,
		RunE: runClean,
	}

	cmd.Flags().String("input", "", "raw review dump path (required)")
	cmd.Flags().String("output", "", "output CSV path (defaults to input with .csv extension)")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runClean(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	inputPath, _ := cmd.Flags().GetString("input")
	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath == "" {
		outputPath = replaceExt(inputPath, ".csv")
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("cleaning"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)

	cleaner := dataset.NewCleaner(log)
	cleaner.OnProgress = func(rowsIn int) {
		bar.Describe(fmt.Sprintf("cleaning (%d rows)", rowsIn))
		_ = bar.Add(1)
	}

	stats, err := cleaner.CleanFile(cmd.Context(), inputPath, outputPath)
	if err != nil {
		return err
	}
	_ = bar.Finish()

	publishEvent(cmd.Context(), cfg.Bus, log, datasetCleanedEvent(inputPath, outputPath, stats))

	fmt.Printf("Cleaned %s -> %s\n", inputPath, outputPath)
	fmt.Printf("  rows in:  %d\n", stats.RowsIn)
	fmt.Printf("  rows out: %d\n", stats.RowsOut)
	fmt.Printf("  dropped:  %d\n", stats.Dropped)
	return nil
}

func replaceExt(path, ext string) string {
	if i := strings.LastIndex(path, "."); i > strings.LastIndexByte(path, '/') {
		return path[:i] + ext
	}
	return path + ext
}
