// Package classifier runs the fine-tuned review noise model.
package classifier

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/reviewsift/review-sift/internal/config"
	"github.com/reviewsift/review-sift/internal/onnx"
	"github.com/reviewsift/review-sift/internal/pkg/errors"
	"github.com/reviewsift/review-sift/internal/pkg/logger"
	"github.com/reviewsift/review-sift/internal/review"
	textproc "github.com/reviewsift/review-sift/internal/text"
)

// ErrEmptyText is returned by Classify when the input has no content
// after preprocessing. Interactive surfaces show a notice; the batch
// runner records the row as unscored.
var ErrEmptyText = errors.ValidationError("review text is empty")

// IsEmptyText reports whether the error is the empty-input marker.
func IsEmptyText(err error) bool {
	return err == ErrEmptyText
}

// logitsRunner is the slice of onnx.Session the engine depends on.
type logitsRunner interface {
	RunLogits(inputIDs, attentionMask []int64, shape []int64) (*onnx.Tensor, error)
}

// Engine loads the model once at startup and serves classification
// calls over it. The loaded weights are shared, read-only state; the
// engine itself is safe for concurrent use.
type Engine struct {
	cfg       config.ModelConfig
	log       *logger.Logger
	runtime   *onnx.Runtime
	session   logitsRunner
	tokenizer *onnx.Tokenizer
	cache     *PredictionCache
	modelName string
	budget    time.Duration
}

// NewEngine initializes the ONNX runtime, validates the model manifest
// and loads tokenizer and weights from cfg.Path. All failures here are
// fatal: callers should exit rather than retry.
func NewEngine(cfg config.ModelConfig, log *logger.Logger) (*Engine, error) {
	device := onnx.DeviceCPU
	switch cfg.Device {
	case "cuda":
		device = onnx.DeviceCUDA
	case "tensorrt":
		device = onnx.DeviceTensorRT
	}

	runtimeCfg := onnx.DefaultRuntimeConfig()
	runtimeCfg.Device = device
	runtimeCfg.CUDADeviceID = cfg.CUDADevice

	runtime, err := onnx.NewRuntime(runtimeCfg)
	if err != nil {
		return nil, err
	}

	manifest, err := loadManifest(cfg.Path)
	if err != nil {
		runtime.Close()
		return nil, err
	}

	modelName := cfg.Name
	if modelName == "" {
		modelName = manifest.name()
	}
	if modelName == "" {
		modelName = filepath.Base(cfg.Path)
	}

	tokCfg := onnx.TokenizerConfig{
		MaxLength:  cfg.MaxSeqLength,
		Truncation: onnx.Truncation(cfg.Truncation),
	}
	tokenizer, err := onnx.NewTokenizer(cfg.Path, tokCfg)
	if err != nil {
		runtime.Close()
		return nil, err
	}

	modelPath := filepath.Join(cfg.Path, "model.onnx")
	session, err := runtime.LoadSession("classifier", modelPath)
	if err != nil {
		tokenizer.Close()
		runtime.Close()
		return nil, err
	}

	log.WithModel(modelName).Info("model loaded",
		"path", cfg.Path,
		"device", string(runtime.ActualDevice()),
		"max_seq_length", cfg.MaxSeqLength,
		"truncation", cfg.Truncation,
	)
	if runtime.DeviceFallback() {
		log.Warn("requested device unavailable",
			"requested", string(runtime.Device()),
			"actual", string(runtime.ActualDevice()),
		)
	}

	return &Engine{
		cfg:       cfg,
		log:       log.WithComponent("classifier"),
		runtime:   runtime,
		session:   session,
		tokenizer: tokenizer,
		modelName: modelName,
		budget:    time.Duration(cfg.InferenceTimeout) * time.Second,
	}, nil
}

// SetCache enables prediction caching. Pass nil to disable.
func (e *Engine) SetCache(cache *PredictionCache) {
	e.cache = cache
}

// Classify runs the full pipeline on raw user text: preprocess,
// tokenize, infer, normalize. Empty input returns ErrEmptyText.
func (e *Engine) Classify(ctx context.Context, raw string) (*review.PredictionResult, error) {
	cleaned, empty := textproc.Clean(raw)
	if empty {
		return nil, ErrEmptyText
	}

	if e.cache != nil {
		if res, ok := e.cache.Get(e.modelName, cleaned); ok {
			return res, nil
		}
	}

	results, err := e.classifyBatch(ctx, []string{cleaned})
	if err != nil {
		return nil, err
	}

	res := results[0]
	if e.cache != nil {
		e.cache.Set(e.modelName, cleaned, res)
	}
	return res, nil
}

// ClassifyBatch classifies already-preprocessed texts, chunked by the
// configured batch size. Results align with the input order. Raw user
// input goes through Classify instead.
func (e *Engine) ClassifyBatch(ctx context.Context, texts []string) ([]*review.PredictionResult, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([]*review.PredictionResult, len(texts))

	// Serve what the cache already has, then infer the rest.
	uncached := make([]int, 0, len(texts))
	uncachedTexts := make([]string, 0, len(texts))
	for i, text := range texts {
		if e.cache != nil {
			if res, ok := e.cache.Get(e.modelName, text); ok {
				results[i] = res
				continue
			}
		}
		uncached = append(uncached, i)
		uncachedTexts = append(uncachedTexts, text)
	}

	batchSize := e.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 16
	}

	for i := 0; i < len(uncachedTexts); i += batchSize {
		end := i + batchSize
		if end > len(uncachedTexts) {
			end = len(uncachedTexts)
		}

		batch, err := e.classifyBatch(ctx, uncachedTexts[i:end])
		if err != nil {
			return nil, err
		}

		for j, res := range batch {
			idx := uncached[i+j]
			results[idx] = res
			if e.cache != nil {
				e.cache.Set(e.modelName, uncachedTexts[i+j], res)
			}
		}
	}

	return results, nil
}

// classifyBatch runs one model call over a single chunk.
func (e *Engine) classifyBatch(ctx context.Context, texts []string) ([]*review.PredictionResult, error) {
	start := time.Now()

	enc, err := e.tokenizer.EncodeFixed(texts)
	if err != nil {
		return nil, err
	}

	logits, err := e.runWithBudget(ctx, enc)
	if err != nil {
		return nil, err
	}

	shape := logits.Shape()
	if len(shape) != 2 || int(shape[0]) != len(texts) || shape[1] != int64(review.NumLabels) {
		return nil, errors.InferenceError(
			fmt.Sprintf("unexpected logits shape %v, want [%d %d]", shape, len(texts), review.NumLabels), nil)
	}

	perCall := time.Since(start) / time.Duration(len(texts))

	results := make([]*review.PredictionResult, len(texts))
	for i, text := range texts {
		row, err := logits.Row(i)
		if err != nil {
			return nil, errors.InferenceError("reading logits row", err)
		}

		confidences := softmax(row)
		results[i] = &review.PredictionResult{
			Text:        text,
			Label:       argmax(confidences),
			Confidences: confidences,
			Model:       e.modelName,
			Duration:    perCall,
		}
	}

	return results, nil
}

// runWithBudget executes the forward pass under the configured time
// budget. A run that exceeds the budget is reported as an inference
// error, never left hanging.
func (e *Engine) runWithBudget(ctx context.Context, enc *onnx.BatchEncoding) (*onnx.Tensor, error) {
	if e.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.budget)
		defer cancel()
	}

	type runResult struct {
		logits *onnx.Tensor
		err    error
	}

	// Buffered so the goroutine can finish after a timeout without
	// leaking.
	ch := make(chan runResult, 1)
	go func() {
		logits, err := e.session.RunLogits(enc.InputIDs, enc.AttentionMask, enc.Shape())
		ch <- runResult{logits, err}
	}()

	select {
	case <-ctx.Done():
		return nil, errors.InferenceError("inference exceeded time budget", ctx.Err())
	case res := <-ch:
		return res.logits, res.err
	}
}

// softmax converts raw logits to a probability distribution. The max
// logit is subtracted first so large values cannot overflow.
func softmax(logits []float32) [review.NumLabels]float64 {
	var out [review.NumLabels]float64

	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}

	sum := 0.0
	for i, v := range logits {
		exp := math.Exp(float64(v - maxLogit))
		out[i] = exp
		sum += exp
	}
	for i := range out {
		out[i] /= sum
	}

	return out
}

// argmax returns the label with the highest probability. Ties break to
// the lowest label index.
func argmax(confidences [review.NumLabels]float64) review.Label {
	best := 0
	for i := 1; i < review.NumLabels; i++ {
		if confidences[i] > confidences[best] {
			best = i
		}
	}
	return review.Label(best)
}

// HealthStatus reports engine health.
type HealthStatus struct {
	Healthy        bool   `json:"healthy"`
	ModelLoaded    bool   `json:"model_loaded"`
	Model          string `json:"model"`
	Device         string `json:"device"`
	DeviceFallback bool   `json:"device_fallback,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Health returns the engine health status.
func (e *Engine) Health() HealthStatus {
	status := HealthStatus{
		Healthy:     e.session != nil,
		ModelLoaded: e.session != nil,
		Model:       e.modelName,
		Device:      e.cfg.Device,
	}

	if e.runtime != nil {
		status.Device = string(e.runtime.ActualDevice())
		status.DeviceFallback = e.runtime.DeviceFallback()
		if e.runtime.ActualDevice() == onnx.DeviceStub {
			status.Healthy = false
			status.Error = "ONNX Runtime unavailable"
		}
	}

	if !status.ModelLoaded {
		status.Healthy = false
		status.Error = "model not loaded"
	}

	return status
}

// ModelName returns the loaded model's name.
func (e *Engine) ModelName() string {
	return e.modelName
}

// MaxSeqLength returns the fixed tokenizer sequence length.
func (e *Engine) MaxSeqLength() int {
	return e.cfg.MaxSeqLength
}

// CacheStats returns prediction cache statistics, if caching is on.
func (e *Engine) CacheStats() (CacheStats, bool) {
	if e.cache == nil {
		return CacheStats{}, false
	}
	return e.cache.Stats(), true
}

// Close releases the tokenizer, session and runtime.
func (e *Engine) Close() error {
	var lastErr error

	if e.tokenizer != nil {
		if err := e.tokenizer.Close(); err != nil {
			lastErr = err
		}
	}
	if e.runtime != nil {
		if err := e.runtime.Close(); err != nil {
			lastErr = err
		}
	}

	return lastErr
}
