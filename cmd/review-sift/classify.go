package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	clientpkg "github.com/reviewsift/review-sift/internal/client"
	"github.com/reviewsift/review-sift/internal/classifier"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <text>",
		Short: "Classify a single review text",
		Long: `Classify one review and print the predicted label with the full
confidence distribution.

With --server the request goes to a running Review Sift server;
otherwise the model loads locally.

Examples:
  review-sift classify "Great food, friendly staff!"
  review-sift classify --server http://localhost:8080 "Visit my shop at deals.example"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runClassify,
	}

	cmd.Flags().String("model_path", "", "model artifact directory (overrides config)")
	cmd.Flags().String("server", "", "classify via a running server instead of loading the model")

	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")

	serverURL, _ := cmd.Flags().GetString("server")
	if serverURL != "" {
		return classifyRemote(cmd, serverURL, text)
	}
	return classifyLocal(cmd, text)
}

func classifyRemote(cmd *cobra.Command, serverURL, text string) error {
	cfg := clientpkg.DefaultConfig()
	cfg.BaseURL = serverURL
	c := clientpkg.New(cfg)

	result, err := c.Classify(cmd.Context(), text)
	if err != nil {
		return err
	}

	printClassification(result.DisplayName, result.Model, result.Confidences)
	return nil
}

func classifyLocal(cmd *cobra.Command, text string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if modelPath, _ := cmd.Flags().GetString("model_path"); modelPath != "" {
		cfg.Model.Path = modelPath
	}

	engine, err := classifier.NewEngine(cfg.Model, log)
	if err != nil {
		return err
	}
	defer engine.Close()

	result, err := engine.Classify(cmd.Context(), text)
	if err != nil {
		if classifier.IsEmptyText(err) {
			return fmt.Errorf("review text is empty after cleaning")
		}
		return err
	}

	printClassification(result.Label.DisplayName(), result.Model, result.ConfidenceMap())
	return nil
}

func printClassification(displayName, model string, confidences map[string]float64) {
	fmt.Printf("Label: %s\n", displayName)
	fmt.Printf("Model: %s\n", model)
	fmt.Println("Confidences:")

	names := make([]string, 0, len(confidences))
	for name := range confidences {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return confidences[names[i]] > confidences[names[j]]
	})
	for _, name := range names {
		fmt.Printf("  %-18s %6.2f%%\n", name, confidences[name]*100)
	}
}
