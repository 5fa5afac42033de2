// Package detector - The four independent food detection strategies and the
// worker pool that runs them side by side.
//
// Every strategy implements Detector. RunAll isolates them from each other: an
// error, timeout or panic in one strategy turns into an Outcome with no
// candidates and zero weight, and never affects the others.
package detector

import (
	"context"
	"image"
	"time"

	"github.com/nvr-ai/go-nutrition/common"
	"github.com/pkg/errors"
)

// Trust weights of the strategies.
const (
	WeightDelegate  = 0.90
	WeightHeuristic = 0.75
	WeightKeyword   = 0.80
	WeightPattern   = 0.60
)

// ErrSkipped is returned by a detector that had nothing to work with, such as
// the keyword detector without text. It yields zero weight without a warning.
var ErrSkipped = errors.New("detector skipped")

// Input is the shared, read-only input of every detector.
type Input struct {
	// Image is the preprocessed photo.
	Image image.Image
	// Analysis is a downscaled copy of Image used by the feature extractors.
	Analysis image.Image
	// Original holds the uploaded bytes.
	Original        []byte
	UserID          string
	Text            string
	CulturalContext string
	// Features shares descriptors of Analysis between detectors. Optional.
	Features *Features
}

// AnalysisScale returns the factor mapping Analysis coordinates to Image
// coordinates.
func (in Input) AnalysisScale() float64 {
	if in.Image == nil || in.Analysis == nil || in.Analysis.Bounds().Dx() == 0 {
		return 1
	}
	return float64(in.Image.Bounds().Dx()) / float64(in.Analysis.Bounds().Dx())
}

// Detector is one food detection strategy.
type Detector interface {
	// Name returns the method tag stamped on the detector's candidates.
	Name() common.Method
	// Weight returns the a-priori trust of the strategy.
	Weight() float64
	// Detect returns the candidates found in the input.
	Detect(ctx context.Context, in Input) ([]common.Candidate, error)
}

// Timeouter is implemented by detectors that need a budget other than the
// pool's local timeout.
type Timeouter interface {
	Timeout() time.Duration
}

// Outcome is the result of one detector run.
type Outcome struct {
	Method     common.Method      `json:"method"`
	Candidates []common.Candidate `json:"candidates"`
	// Weight is the detector's trust weight, or 0 when it failed or skipped.
	Weight  float64       `json:"weight"`
	Err     error         `json:"-"`
	Elapsed time.Duration `json:"elapsed"`
}

// Failed reports whether the detector errored, timed out or panicked.
func (o Outcome) Failed() bool {
	return o.Err != nil && !errors.Is(o.Err, ErrSkipped)
}
