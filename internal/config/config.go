package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	ProviderONNX        = "onnx"
	ProviderRekognition = "rekognition"
	ProviderMock        = "mock"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`
	LogFile     string `envconfig:"LOG_FILE"`

	// Requests
	ScratchDir         string        `envconfig:"SCRATCH_DIR" default:"uploads"`
	MaxUploadMB        int           `envconfig:"MAX_UPLOAD_MB" default:"10"`
	DownloadTimeout    time.Duration `envconfig:"DOWNLOAD_TIMEOUT" default:"15s"`
	MaxDownloadBytes   int64         `envconfig:"MAX_DOWNLOAD_BYTES" default:"20971520"`
	RateLimitPerMinute int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`

	// Swap pipeline
	MaxTargetWidth     int `envconfig:"MAX_TARGET_WIDTH" default:"640"`
	JPEGQuality        int `envconfig:"JPEG_QUALITY" default:"95"`
	MaxConcurrentSwaps int `envconfig:"MAX_CONCURRENT_SWAPS" default:"2"`
	MaxImagePixels     int `envconfig:"MAX_IMAGE_PIXELS" default:"40000000"`

	// Providers
	FaceProvider string `envconfig:"FACE_PROVIDER" default:"onnx"`
	SwapProvider string `envconfig:"SWAP_PROVIDER" default:"onnx"`
	AWSRegion    string `envconfig:"AWS_REGION" default:"us-east-1"`

	// Models
	ModelsDir       string  `envconfig:"MODELS_DIR" default:"models"`
	DetectorModel   string  `envconfig:"DETECTOR_MODEL" default:"det_10g.onnx"`
	RecognizerModel string  `envconfig:"RECOGNIZER_MODEL" default:"w600k_r50.onnx"`
	SwapperModel    string  `envconfig:"SWAPPER_MODEL" default:"inswapper_128.onnx"`
	EmapPath        string  `envconfig:"EMAP_PATH" default:"emap.bin"`
	ORTLibraryPath  string  `envconfig:"ORT_LIBRARY_PATH" default:"onnxruntime.so"`
	DetectSize      int     `envconfig:"DETECT_SIZE" default:"640"`
	DetectThreshold float32 `envconfig:"DETECT_THRESHOLD" default:"0.5"`

	// Database (optional, enables the swap audit trail)
	DatabaseURL      string        `envconfig:"DATABASE_URL"`
	AutoMigrate      bool          `envconfig:"AUTO_MIGRATE" default:"false"`
	SwapJobRetention time.Duration `envconfig:"SWAP_JOB_RETENTION" default:"720h"`
	StatsInterval    time.Duration `envconfig:"STATS_INTERVAL" default:"1m"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.FaceProvider {
	case ProviderONNX, ProviderRekognition, ProviderMock:
	default:
		return fmt.Errorf("unknown FACE_PROVIDER %q (supported: %s, %s, %s)",
			c.FaceProvider, ProviderONNX, ProviderRekognition, ProviderMock)
	}
	switch c.SwapProvider {
	case ProviderONNX, ProviderMock:
	default:
		return fmt.Errorf("unknown SWAP_PROVIDER %q (supported: %s, %s)",
			c.SwapProvider, ProviderONNX, ProviderMock)
	}
	if c.MaxTargetWidth <= 0 {
		return errors.New("MAX_TARGET_WIDTH must be positive")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return errors.New("JPEG_QUALITY must be between 1 and 100")
	}
	if c.MaxConcurrentSwaps <= 0 {
		return errors.New("MAX_CONCURRENT_SWAPS must be positive")
	}
	if c.MaxImagePixels <= 0 {
		return errors.New("MAX_IMAGE_PIXELS must be positive")
	}
	if c.DatabaseURL != "" && c.StatsInterval <= 0 {
		return errors.New("STATS_INTERVAL must be positive when DATABASE_URL is set")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ModelPath resolves a model file name against MODELS_DIR.
func (c *Config) ModelPath(name string) string {
	if filepath.IsAbs(name) || c.ModelsDir == "" {
		return name
	}
	return filepath.Join(c.ModelsDir, name)
}

// NeedsONNX reports whether any configured provider runs local ONNX models.
// The rekognition analyzer still embeds faces with the local recognizer.
func (c *Config) NeedsONNX() bool {
	return c.FaceProvider == ProviderONNX || c.FaceProvider == ProviderRekognition || c.SwapProvider == ProviderONNX
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) BodyLimit() int {
	return c.MaxUploadMB * 1024 * 1024
}
