package detector

import (
	"context"
	"math"

	"github.com/nvr-ai/go-nutrition/common"
	"github.com/nvr-ai/go-nutrition/features"
	"github.com/nvr-ai/go-nutrition/logging"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Area thresholds of the color heuristics, as image fractions.
const (
	CurryAreaThreshold = 0.10
	RiceAreaThreshold  = 0.15
	// ContextGuessConfidence is the confidence of the cultural-context guess.
	ContextGuessConfidence = 0.5
)

// Heuristic detects foods from color, texture and contour descriptors.
type Heuristic struct {
	extractor      *features.Extractor
	defaultContext string
	logger         *zap.Logger
}

// NewHeuristic creates the heuristic CV detector.
//
// Arguments:
// - extractor: The feature extractor, shared with other detectors.
// - defaultContext: The cultural context that enables the generic meal guess.
// - logger: Logger for descriptor summaries; nil disables logging.
//
// Returns:
// - *Heuristic: The detector.
func NewHeuristic(extractor *features.Extractor, defaultContext string, logger *zap.Logger) *Heuristic {
	return &Heuristic{
		extractor:      extractor,
		defaultContext: defaultContext,
		logger:         logging.Component(logger, "heuristic_detector"),
	}
}

// Name implements Detector.
func (h *Heuristic) Name() common.Method { return common.MethodHeuristicCV }

// Weight implements Detector.
func (h *Heuristic) Weight() float64 { return WeightHeuristic }

// Detect implements Detector.
func (h *Heuristic) Detect(ctx context.Context, in Input) ([]common.Candidate, error) {
	if in.Image == nil && in.Analysis == nil {
		return nil, errors.New("heuristic detector: no image")
	}
	f := featuresFor(in, h.extractor)

	color := f.Color()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	texture := f.Texture()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	shape := f.Shape()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.logger.Debug("descriptors",
		zap.Int("contours", len(shape.Contours)),
		zap.Float64("glcm_homogeneity", texture.GLCMHomogeneity),
		zap.Float64("local_variance", texture.LocalVariance),
		zap.Int("color_matches", len(color.Matches)))

	box := shape.LargestBox(in.AnalysisScale())
	candidate := func(name string, confidence float64) common.Candidate {
		c := common.Candidate{Name: name, Confidence: confidence, Method: common.MethodHeuristicCV}
		if box != nil {
			b := *box
			c.BBox = &b
		}
		return c
	}

	var out []common.Candidate
	for _, m := range color.Matches {
		frac := m.AreaPercent / 100
		switch m.Class {
		case features.ClassCurry:
			if frac >= CurryAreaThreshold {
				out = append(out, candidate("curry_dish", colorConfidence(frac)))
			}
		case features.ClassRice:
			if frac >= RiceAreaThreshold {
				out = append(out, candidate("rice", colorConfidence(frac)))
			}
		case features.ClassChicken:
			out = append(out, candidate("chicken", m.Confidence))
		case features.ClassVegetable:
			out = append(out, candidate("vegetables", m.Confidence))
		}
	}

	if len(out) == 0 && in.CulturalContext != "" && in.CulturalContext == h.defaultContext {
		out = append(out, candidate("rice_and_curry", ContextGuessConfidence))
	}
	return out, nil
}

func colorConfidence(frac float64) float64 {
	return math.Min(features.MaxMatchConfidence, 0.3+frac)
}
