// Package config - Service configuration: defaults, .env files and NUTRI_*
// environment overrides, validated before use.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config is the complete service configuration.
type Config struct {
	Service    ServiceConfig    `json:"service"`
	Preprocess PreprocessConfig `json:"preprocess"`
	Detectors  DetectorsConfig  `json:"detectors"`
	Delegate   DelegateConfig   `json:"delegate"`
	Catalog    CatalogConfig    `json:"catalog"`
	Store      StoreConfig      `json:"store"`
	Server     ServerConfig     `json:"server"`
	Log        LogConfig        `json:"log"`
}

// ServiceConfig holds pipeline-wide settings.
type ServiceConfig struct {
	// DefaultCulturalContext is used when a request names none.
	DefaultCulturalContext string `json:"default_cultural_context"`
	// QualityFloor is the minimum candidate confidence kept by the fuser.
	QualityFloor float64 `json:"quality_floor"`
}

// PreprocessConfig holds quality thresholds and enhancement strengths.
type PreprocessConfig struct {
	// AnalysisMaxSide bounds the longest side of images fed to the extractors.
	AnalysisMaxSide int     `json:"analysis_max_side"`
	BrightnessLow   float64 `json:"brightness_low"`
	BrightnessHigh  float64 `json:"brightness_high"`
	ContrastLow     float64 `json:"contrast_low"`
	SharpnessLow    float64 `json:"sharpness_low"`
	NoiseLow        float64 `json:"noise_low"`
	// SaturationBoost is the unconditional saturation increase in percent.
	SaturationBoost float64 `json:"saturation_boost"`
}

// DetectorsConfig controls the detector worker pool.
type DetectorsConfig struct {
	Workers      int           `json:"workers"`
	LocalTimeout time.Duration `json:"local_timeout"`
}

// MaxDelegateBudget is the longest the delegate stage may run.
const MaxDelegateBudget = 10 * time.Second

// DelegateConfig selects and configures the external detection backend.
type DelegateConfig struct {
	// Backend is one of none, http, openai, rekognition, ocr.
	Backend       string        `json:"backend"`
	Endpoint      string        `json:"endpoint"`
	Timeout       time.Duration `json:"timeout"`
	Retries       int           `json:"retries"`
	Backoff       time.Duration `json:"backoff"`
	// Budget bounds the whole stage, retries and backoffs included. It may
	// not exceed MaxDelegateBudget.
	Budget        time.Duration `json:"budget"`
	OpenAIAPIKey  string        `json:"-"`
	OpenAIModel   string        `json:"openai_model"`
	AWSRegion     string        `json:"aws_region"`
	MaxLabels     int           `json:"max_labels"`
	MinConfidence float64       `json:"min_confidence"`
	OCRLanguage   string        `json:"ocr_language"`
}

// CatalogConfig configures the nutrition catalog tiers.
type CatalogConfig struct {
	// Path is an optional JSON file overriding the built-in table.
	Path          string        `json:"path"`
	RemoteURL     string        `json:"remote_url"`
	RemoteAppID   string        `json:"-"`
	RemoteAppKey  string        `json:"-"`
	RemoteTimeout time.Duration `json:"remote_timeout"`
}

// StoreConfig configures result persistence.
type StoreConfig struct {
	// SQLitePath disables persistence when empty.
	SQLitePath string `json:"sqlite_path"`
	QueueSize  int    `json:"queue_size"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string        `json:"addr"`
	MaxUploadBytes  int64         `json:"max_upload_bytes"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// DefaultConfig returns a production-ready configuration with sensible defaults.
//
// Returns:
//   - Config: Default configuration
//
// @example
// cfg := config.DefaultConfig()
// cfg.Delegate.Backend = "http"
// cfg.Delegate.Endpoint = "http://vision:8000/detect"
func DefaultConfig() Config {
	return Config{
		Service: ServiceConfig{
			DefaultCulturalContext: "sri_lankan",
			QualityFloor:           0.3,
		},
		Preprocess: PreprocessConfig{
			AnalysisMaxSide: 256,
			BrightnessLow:   0.4,
			BrightnessHigh:  1.6,
			ContrastLow:     0.6,
			SharpnessLow:    0.5,
			NoiseLow:        0.6,
			SaturationBoost: 20,
		},
		Detectors: DetectorsConfig{
			Workers:      4,
			LocalTimeout: 2 * time.Second,
		},
		Delegate: DelegateConfig{
			Backend:       "none",
			Timeout:       8 * time.Second,
			Retries:       1,
			Backoff:       250 * time.Millisecond,
			Budget:        MaxDelegateBudget,
			OpenAIModel:   "gpt-4o-mini",
			MaxLabels:     20,
			MinConfidence: 60,
			OCRLanguage:   "eng",
		},
		Catalog: CatalogConfig{
			RemoteTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			QueueSize: 64,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			MaxUploadBytes:  10 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, the given .env files (missing
// files are skipped) and NUTRI_* environment variables, then validates it.
//
// Arguments:
//   - envFiles: Optional .env files, loaded in order without overriding
//     variables that are already set.
//
// Returns:
//   - Config: The validated configuration.
//   - error: An error if a file is malformed or a value is invalid.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, errors.Wrapf(err, "load env file %s", f)
		}
	}

	cfg := DefaultConfig()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// lookupFunc matches os.LookupEnv.
type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.setString("NUTRI_DEFAULT_CULTURAL_CONTEXT", &c.Service.DefaultCulturalContext)
	e.setFloat("NUTRI_QUALITY_FLOOR", &c.Service.QualityFloor)

	e.setInt("NUTRI_ANALYSIS_MAX_SIDE", &c.Preprocess.AnalysisMaxSide)
	e.setFloat("NUTRI_SATURATION_BOOST", &c.Preprocess.SaturationBoost)

	e.setInt("NUTRI_DETECTOR_WORKERS", &c.Detectors.Workers)
	e.setDuration("NUTRI_LOCAL_DETECTOR_TIMEOUT", &c.Detectors.LocalTimeout)

	e.setString("NUTRI_DELEGATE_BACKEND", &c.Delegate.Backend)
	e.setString("NUTRI_DELEGATE_ENDPOINT", &c.Delegate.Endpoint)
	e.setDuration("NUTRI_DELEGATE_TIMEOUT", &c.Delegate.Timeout)
	e.setInt("NUTRI_DELEGATE_RETRIES", &c.Delegate.Retries)
	e.setDuration("NUTRI_DELEGATE_BACKOFF", &c.Delegate.Backoff)
	e.setDuration("NUTRI_DELEGATE_BUDGET", &c.Delegate.Budget)
	e.setString("OPENAI_API_KEY", &c.Delegate.OpenAIAPIKey)
	e.setString("NUTRI_OPENAI_MODEL", &c.Delegate.OpenAIModel)
	e.setString("AWS_REGION", &c.Delegate.AWSRegion)
	e.setInt("NUTRI_DELEGATE_MAX_LABELS", &c.Delegate.MaxLabels)
	e.setFloat("NUTRI_DELEGATE_MIN_CONFIDENCE", &c.Delegate.MinConfidence)
	e.setString("NUTRI_OCR_LANGUAGE", &c.Delegate.OCRLanguage)

	e.setString("NUTRI_CATALOG_PATH", &c.Catalog.Path)
	e.setString("NUTRI_CATALOG_REMOTE_URL", &c.Catalog.RemoteURL)
	e.setString("EDAMAM_APP_ID", &c.Catalog.RemoteAppID)
	e.setString("EDAMAM_APP_KEY", &c.Catalog.RemoteAppKey)
	e.setDuration("NUTRI_CATALOG_REMOTE_TIMEOUT", &c.Catalog.RemoteTimeout)

	e.setString("NUTRI_SQLITE_PATH", &c.Store.SQLitePath)
	e.setInt("NUTRI_STORE_QUEUE_SIZE", &c.Store.QueueSize)

	e.setString("NUTRI_HTTP_ADDR", &c.Server.Addr)
	e.setInt64("NUTRI_MAX_UPLOAD_BYTES", &c.Server.MaxUploadBytes)
	e.setDuration("NUTRI_SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)

	e.setString("NUTRI_LOG_LEVEL", &c.Log.Level)
	e.setBool("NUTRI_LOG_DEVELOPMENT", &c.Log.Development)

	return e.err
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Service.DefaultCulturalContext == "":
		return errors.New("service.default_cultural_context must not be empty")
	case c.Service.QualityFloor < 0 || c.Service.QualityFloor > 1:
		return errors.Errorf("service.quality_floor %.2f outside [0,1]", c.Service.QualityFloor)
	case c.Detectors.Workers < 1:
		return errors.Errorf("detectors.workers must be positive, got %d", c.Detectors.Workers)
	case c.Detectors.LocalTimeout <= 0:
		return errors.New("detectors.local_timeout must be positive")
	case c.Delegate.Timeout <= 0:
		return errors.New("delegate.timeout must be positive")
	case c.Delegate.Retries < 0:
		return errors.New("delegate.retries must not be negative")
	case c.Delegate.Budget <= 0 || c.Delegate.Budget > MaxDelegateBudget:
		return errors.Errorf("delegate.budget %s outside (0,%s]", c.Delegate.Budget, MaxDelegateBudget)
	case c.Store.QueueSize < 1:
		return errors.New("store.queue_size must be positive")
	}

	switch c.Delegate.Backend {
	case "none", "ocr":
	case "http":
		if c.Delegate.Endpoint == "" {
			return errors.New("delegate.endpoint is required for the http backend")
		}
	case "openai":
		if c.Delegate.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required for the openai backend")
		}
	case "rekognition":
		if c.Delegate.AWSRegion == "" {
			return errors.New("AWS_REGION is required for the rekognition backend")
		}
	default:
		return errors.Errorf("unknown delegate backend %q", c.Delegate.Backend)
	}

	if c.Catalog.RemoteURL != "" && (c.Catalog.RemoteAppID == "" || c.Catalog.RemoteAppKey == "") {
		return errors.New("EDAMAM_APP_ID and EDAMAM_APP_KEY are required with a remote catalog")
	}
	return nil
}

// envReader applies typed overrides and keeps the first parse error.
type envReader struct {
	lookup lookupFunc
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = errors.Wrapf(err, "parse %s", key)
	}
}

func (e *envReader) setString(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) setInt(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) setInt64(key string, dst *int64) {
	if v, ok := e.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) setFloat(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) setBool(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) setDuration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = d
	}
}
