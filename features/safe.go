// Package features - Numeric texture, color and shape descriptors of meal
// images, consumed by the heuristic detectors.
//
// Every scalar is computed behind a guard: a panic or a non-finite result is
// replaced by FallbackScalar and logged at debug level, so a degenerate image
// never aborts detection.
package features

import (
	"fmt"
	"math"

	"github.com/nvr-ai/go-nutrition/logging"
	"go.uber.org/zap"
)

// FallbackScalar replaces any descriptor that failed to compute.
const FallbackScalar = 0.5

// Extractor computes descriptors and logs degraded values.
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates an extractor. A nil logger disables logging.
func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logging.Component(logger, "features")}
}

// scalar evaluates fn, substituting FallbackScalar on error, panic or NaN/Inf.
func (e *Extractor) scalar(name string, fn func() (float64, error)) (v float64) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("feature fallback", zap.String("feature", name), zap.String("panic", fmt.Sprint(r)))
			v = FallbackScalar
		}
	}()

	v, err := fn()
	if err != nil {
		e.logger.Debug("feature fallback", zap.String("feature", name), zap.Error(err))
		return FallbackScalar
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		e.logger.Debug("feature fallback", zap.String("feature", name), zap.Float64("value", v))
		return FallbackScalar
	}
	return v
}

// guard runs fn and reports whether it completed without panicking.
func (e *Extractor) guard(name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("feature group failed", zap.String("feature", name), zap.String("panic", fmt.Sprint(r)))
			ok = false
		}
	}()
	fn()
	return true
}

// entropy returns the Shannon entropy (bits) of a histogram.
func entropy(hist []float64) float64 {
	var total float64
	for _, v := range hist {
		total += v
	}
	if total == 0 {
		return 0
	}
	var h float64
	for _, v := range hist {
		if v <= 0 {
			continue
		}
		p := v / total
		h -= p * math.Log2(p)
	}
	return h
}

// meanStd returns the mean and population standard deviation of values.
func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	for _, v := range values {
		d := v - mean
		std += d * d
	}
	return mean, math.Sqrt(std / float64(len(values)))
}
