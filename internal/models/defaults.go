package models

// DefaultModels returns the known classification models. The fine-tuned
// DeBERTa checkpoint is the one the rest of the application assumes.
var DefaultModels = []ModelInfo{
	{
		ID:          "reviewsift/review-noise-deberta-v3-small",
		Name:        "review-noise-deberta-v3-small",
		DisplayName: "Review Noise DeBERTa v3 Small",
		Description: "DeBERTa-v3-small fine-tuned on labelled location reviews for the four noise categories (Valid, Spam/Ads, Low Quality, Rant Without Visit)",
		MaxTokens:   512,
		Downloaded:  false,
		IsDefault:   true,
		Size:        567000000, // ~540MB ONNX export
		DownloadURL: "https://huggingface.co/reviewsift/review-noise-deberta-v3-small",
	},
	{
		ID:          "reviewsift/review-noise-deberta-v3-small-quantized",
		Name:        "review-noise-deberta-v3-small-quantized",
		DisplayName: "Review Noise DeBERTa v3 Small (int8)",
		Description: "Quantized export of the fine-tuned classifier for CPU-only deployments; slightly lower accuracy, roughly a quarter of the size",
		MaxTokens:   512,
		Downloaded:  false,
		IsDefault:   false,
		Size:        145000000, // ~140MB
		DownloadURL: "https://huggingface.co/reviewsift/review-noise-deberta-v3-small-quantized",
	},
}

// DefaultModel returns the default classifier entry.
func DefaultModel() ModelInfo {
	for _, m := range DefaultModels {
		if m.IsDefault {
			return m
		}
	}
	return DefaultModels[0]
}
