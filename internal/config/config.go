// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Host string `envconfig:"SIFT_HOST" yaml:"host"`
	Port int    `envconfig:"SIFT_PORT" yaml:"port"`

	// Feature flags
	EnableWeb bool `envconfig:"SIFT_ENABLE_WEB" yaml:"enable_web"`

	// Model configuration
	Model ModelConfig `yaml:"model"`

	// Evaluation configuration
	Eval EvalConfig `yaml:"eval"`

	// Cache configuration
	Cache CacheConfig `yaml:"cache"`

	// Bus configuration
	Bus BusConfig `yaml:"bus"`

	// Hub configuration
	Hub HubConfig `yaml:"hub"`

	// Datasets configuration
	Datasets DatasetsConfig `yaml:"datasets"`

	// Logging configuration
	Log LogConfig `yaml:"log"`

	// Security configuration
	Security SecurityConfig `yaml:"security"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics"`
}

// ModelConfig holds classifier model settings.
type ModelConfig struct {
	// Path is the model artifact directory (config, vocabulary, weights).
	Path             string `envconfig:"SIFT_MODEL_PATH" yaml:"path"`
	Name             string `envconfig:"SIFT_MODEL_NAME" yaml:"name"`
	Device           string `envconfig:"SIFT_DEVICE" yaml:"device"`
	CUDADevice       int    `envconfig:"SIFT_CUDA_DEVICE" yaml:"cuda_device"`
	MaxSeqLength     int    `envconfig:"SIFT_MAX_SEQ_LENGTH" yaml:"max_seq_length"`
	Truncation       string `envconfig:"SIFT_TRUNCATION" yaml:"truncation"` // head or tail
	BatchSize        int    `envconfig:"SIFT_BATCH_SIZE" yaml:"batch_size"`
	InferenceTimeout int    `envconfig:"SIFT_INFERENCE_TIMEOUT" yaml:"inference_timeout"` // seconds, 0 = no budget
}

// EvalConfig holds batch evaluation settings.
type EvalConfig struct {
	TextColumn  string `envconfig:"SIFT_TEXT_COL" yaml:"text_column"`
	LabelColumn string `envconfig:"SIFT_LABEL_COL" yaml:"label_column"`
	BatchSize   int    `envconfig:"SIFT_EVAL_BATCH_SIZE" yaml:"batch_size"`
	Workers     int    `envconfig:"SIFT_EVAL_WORKERS" yaml:"workers"`
}

// CacheConfig holds prediction cache settings.
type CacheConfig struct {
	Enabled bool `envconfig:"SIFT_CACHE_ENABLED" yaml:"enabled"`
	Size    int  `envconfig:"SIFT_CACHE_SIZE" yaml:"size"`
	TTL     int  `envconfig:"SIFT_CACHE_TTL" yaml:"ttl"` // seconds, 0 = no expiry
}

// BusConfig holds event bus settings.
type BusConfig struct {
	Type         string `envconfig:"SIFT_BUS_TYPE" yaml:"type"`
	KafkaBrokers string `envconfig:"SIFT_KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaTopic   string `envconfig:"SIFT_KAFKA_TOPIC" yaml:"kafka_topic"`
	KafkaGroup   string `envconfig:"SIFT_KAFKA_GROUP" yaml:"kafka_group"`
	LogPath      string `envconfig:"SIFT_BUS_LOG" yaml:"log_path"` // empty = no event log
}

// HubConfig holds model hub settings.
type HubConfig struct {
	Endpoint  string `envconfig:"SIFT_HUB_ENDPOINT" yaml:"endpoint"`
	Token     string `envconfig:"SIFT_HUB_TOKEN" yaml:"token"`
	ModelsDir string `envconfig:"SIFT_MODELS_DIR" yaml:"models_dir"`
}

// DatasetsConfig holds labelled dataset store settings.
type DatasetsConfig struct {
	Dir           string `envconfig:"SIFT_DATASETS_DIR" yaml:"dir"`
	MaxUploadMB   int    `envconfig:"SIFT_MAX_UPLOAD_MB" yaml:"max_upload_mb"`
	RetainResults bool   `envconfig:"SIFT_RETAIN_RESULTS" yaml:"retain_results"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"SIFT_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"SIFT_LOG_FORMAT" yaml:"format"`
	File   string `envconfig:"SIFT_LOG_FILE" yaml:"file"`
}

// SecurityConfig holds security settings.
type SecurityConfig struct {
	RateLimit   int    `envconfig:"SIFT_RATE_LIMIT" yaml:"rate_limit"` // req/sec per client, 0 = disabled
	CORSOrigins string `envconfig:"SIFT_CORS_ORIGINS" yaml:"cors_origins"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled  bool   `envconfig:"SIFT_METRICS_ENABLED" yaml:"enabled"`
	Path     string `envconfig:"SIFT_METRICS_PATH" yaml:"path"`
	RedisURL string `envconfig:"SIFT_METRICS_REDIS_URL" yaml:"redis_url"` // empty = no persistence
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Host = "0.0.0.0"
	cfg.Port = 8080
	cfg.EnableWeb = true

	cfg.Model = ModelConfig{
		Path:             "./models/review-noise-deberta-v3-small",
		Name:             "review-noise-deberta-v3-small",
		Device:           "cpu",
		MaxSeqLength:     512,
		Truncation:       "head",
		BatchSize:        16,
		InferenceTimeout: 30,
	}

	cfg.Eval = EvalConfig{
		TextColumn:  "text",
		LabelColumn: "label",
		BatchSize:   16,
		Workers:     4,
	}

	cfg.Cache = CacheConfig{
		Enabled: true,
		Size:    10000,
		TTL:     0,
	}

	cfg.Bus = BusConfig{
		Type:       "memory",
		KafkaTopic: "reviewsift.events",
		KafkaGroup: "review-sift",
	}

	cfg.Hub = HubConfig{
		Endpoint:  "https://huggingface.co",
		ModelsDir: "./models",
	}

	cfg.Datasets = DatasetsConfig{
		Dir:           "./data/labelled",
		MaxUploadMB:   50,
		RetainResults: true,
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}

	cfg.Security = SecurityConfig{
		RateLimit:   0,
		CORSOrigins: "*",
	}

	cfg.Metrics = MetricsConfig{
		Enabled: true,
		Path:    "/metrics",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	// Model validation
	validDevices := map[string]bool{"cpu": true, "cuda": true, "tensorrt": true}
	if !validDevices[c.Model.Device] {
		errs = append(errs, fmt.Sprintf("invalid device: %s (must be cpu, cuda, or tensorrt)", c.Model.Device))
	}

	validTruncation := map[string]bool{"head": true, "tail": true}
	if !validTruncation[c.Model.Truncation] {
		errs = append(errs, fmt.Sprintf("invalid truncation policy: %s (must be head or tail)", c.Model.Truncation))
	}

	if c.Model.MaxSeqLength < 8 {
		errs = append(errs, "max_seq_length must be at least 8")
	}

	if c.Model.BatchSize < 1 {
		errs = append(errs, "model batch_size must be positive")
	}

	if c.Model.InferenceTimeout < 0 {
		errs = append(errs, "inference_timeout must not be negative")
	}

	// Eval validation
	if c.Eval.TextColumn == "" {
		errs = append(errs, "eval text_column must not be empty")
	}

	if c.Eval.LabelColumn == "" {
		errs = append(errs, "eval label_column must not be empty")
	}

	if c.Eval.BatchSize < 1 {
		errs = append(errs, "eval batch_size must be positive")
	}

	if c.Eval.Workers < 1 {
		errs = append(errs, "eval workers must be positive")
	}

	// Cache validation
	if c.Cache.Size < 1 {
		errs = append(errs, "cache size must be positive")
	}

	// Bus validation
	validBusTypes := map[string]bool{"memory": true, "kafka": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be memory or kafka)", c.Bus.Type))
	}

	if c.Bus.Type == "kafka" && c.Bus.KafkaBrokers == "" {
		errs = append(errs, "kafka_brokers must be set when bus type is kafka")
	}

	// Datasets validation
	if c.Datasets.MaxUploadMB < 1 {
		errs = append(errs, "max_upload_mb must be positive")
	}

	// Log validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Address returns the server address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Log.Level == "debug"
}
