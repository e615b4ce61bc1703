package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/reviewsift/review-sift/internal/classifier"
	"github.com/reviewsift/review-sift/internal/dataset"
	"github.com/reviewsift/review-sift/internal/evaluation"
	"github.com/reviewsift/review-sift/internal/settings"
)

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate the classifier on a labeled CSV dataset",
		Long: `Classify every row of a labeled CSV and report accuracy,
per-class precision/recall/F1, and the confusion matrix.

Examples:
  review-sift evaluate --data_path reviews.csv
  review-sift evaluate --data_path reviews.csv --text_col review --label_col category
  review-sift evaluate --data_path reviews.csv --out report.json`,
		RunE: runEvaluate,
	}

	cmd.Flags().String("model_path", "", "model artifact directory (overrides config)")
	cmd.Flags().String("data_path", "", "labeled CSV dataset path (required)")
	cmd.Flags().String("text_col", "", "text column name (overrides config)")
	cmd.Flags().String("label_col", "", "label column name (overrides config)")
	cmd.Flags().Int("batch_size", 0, "rows per inference call (overrides config)")
	cmd.Flags().Int("workers", 0, "concurrent evaluation workers (overrides config)")
	cmd.Flags().String("out", "", "write the JSON report to this path")
	_ = cmd.MarkFlagRequired("data_path")

	return cmd
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	dataPath, _ := cmd.Flags().GetString("data_path")
	outPath, _ := cmd.Flags().GetString("out")

	if modelPath, _ := cmd.Flags().GetString("model_path"); modelPath != "" {
		cfg.Model.Path = modelPath
	}
	// Operator-persisted runtime settings sit between the static config
	// and explicit flags.
	rs := settings.Load(cfg.Datasets.Dir, settings.RuntimeSettings{
		TextColumn:  cfg.Eval.TextColumn,
		LabelColumn: cfg.Eval.LabelColumn,
		BatchSize:   cfg.Eval.BatchSize,
		Workers:     cfg.Eval.Workers,
	})

	textCol := rs.TextColumn
	if v, _ := cmd.Flags().GetString("text_col"); v != "" {
		textCol = v
	}
	labelCol := rs.LabelColumn
	if v, _ := cmd.Flags().GetString("label_col"); v != "" {
		labelCol = v
	}
	batchSize := rs.BatchSize
	if v, _ := cmd.Flags().GetInt("batch_size"); v > 0 {
		batchSize = v
	}
	workers := rs.Workers
	if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
		workers = v
	}

	rows, err := dataset.ReadLabeled(dataPath, textCol, labelCol)
	if err != nil {
		return err
	}

	engine, err := classifier.NewEngine(cfg.Model, log)
	if err != nil {
		return err
	}
	defer engine.Close()

	bar := progressbar.NewOptions(len(rows),
		progressbar.OptionSetDescription("evaluating"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)

	runner := evaluation.NewRunner(engine, log, evaluation.Options{
		Dataset:   dataPath,
		BatchSize: batchSize,
		Workers:   workers,
		OnProgress: func(done, total int) {
			_ = bar.Set(done)
		},
	})

	report, err := runner.Run(cmd.Context(), rows)
	if err != nil {
		return err
	}
	_ = bar.Finish()

	publishEvent(cmd.Context(), cfg.Bus, log, evaluationCompletedEvent(report))

	fmt.Print(report.Text())

	if outPath != "" {
		data, err := report.JSON()
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		if err := os.WriteFile(outPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Printf("\nReport written to %s\n", outPath)
	}

	return nil
}
