// Package delegate - Transports to external food detection services.
//
// A Backend sends one meal photo (plus the user's text and cultural context)
// to a remote recognizer and normalizes whatever it answers into candidates.
// The detector package wraps a Backend with timeouts and a retry.
package delegate

import (
	"context"
	"strings"

	"github.com/nvr-ai/go-nutrition/common"
	"github.com/nvr-ai/go-nutrition/config"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Backend names accepted by New.
const (
	BackendNone        = "none"
	BackendHTTP        = "http"
	BackendOpenAI      = "openai"
	BackendRekognition = "rekognition"
	BackendOCR         = "ocr"
)

var (
	// ErrStatus is returned when a service answers with a non-2xx status.
	ErrStatus = errors.New("delegate: unexpected status")
	// ErrEmptyResponse is returned when a service answers with no content.
	ErrEmptyResponse = errors.New("delegate: empty response")
)

// Request is one photo sent to a backend.
type Request struct {
	// Image is JPEG encoded.
	Image []byte
	// Width and Height are the pixel size of Image, used to convert relative
	// boxes.
	Width           int
	Height          int
	UserID          string
	Text            string
	CulturalContext string
}

// Backend is an external food recognizer.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string
	// Detect returns the foods the service recognized.
	Detect(ctx context.Context, req Request) ([]common.Candidate, error)
}

// New builds the backend selected by cfg.Backend. It returns a nil Backend and
// no error for "none".
//
// Arguments:
// - ctx: Used while loading cloud credentials.
// - cfg: The delegate configuration.
// - catalogKeys: Food names the OCR backend matches against.
// - logger: Logger for backend diagnostics; nil disables logging.
//
// Returns:
// - Backend: The selected backend, or nil when disabled.
// - error: An error if the backend cannot be constructed.
//
// @example
// backend, err := delegate.New(ctx, cfg.Delegate, cat.Keys(), logger)
func New(ctx context.Context, cfg config.DelegateConfig, catalogKeys []string, logger *zap.Logger) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendNone:
		return nil, nil
	case BackendHTTP:
		return NewHTTPBackend(cfg.Endpoint, cfg.Timeout, logger), nil
	case BackendOpenAI:
		return NewOpenAIBackend(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.Endpoint, logger), nil
	case BackendRekognition:
		return NewRekognitionBackend(ctx, cfg.AWSRegion, cfg.MaxLabels, cfg.MinConfidence, logger)
	case BackendOCR:
		return NewOCRBackend(cfg.OCRLanguage, catalogKeys, logger), nil
	}
	return nil, errors.Errorf("delegate: unknown backend %q", cfg.Backend)
}

// NormalizeName maps a free-form label onto the catalog key convention:
// lower case with spaces and hyphens replaced by underscores.
func NormalizeName(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
