// Package portion - Converts the size of a detected food region into a portion
// bucket and gram weight, optionally calibrated by a reference object of known
// real size (a plate, bowl or spoon) visible in the photo.
package portion

import (
	"math"
	"sort"
	"strings"

	"github.com/nvr-ai/go-nutrition/catalog"
	"github.com/nvr-ai/go-nutrition/common"
	"github.com/nvr-ai/go-nutrition/logging"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Estimation constants.
const (
	// DefaultArea is the pixel area assumed for foods without a bounding box.
	DefaultArea = 10000.0
	// DefaultPixelsPerCM is the uncalibrated image scale.
	DefaultPixelsPerCM = 10.0
	// DepthCM is the assumed food depth used to turn area into volume.
	DepthCM = 2.0

	// SmallMaxML and MediumMaxML bound the small and medium buckets.
	SmallMaxML  = 150.0
	MediumMaxML = 400.0

	// EstimateConfidence is the confidence of an area-based estimate.
	EstimateConfidence = 0.7
	// ExplicitConfidence is the confidence of a portion named by a detector.
	ExplicitConfidence = 0.8
	// FallbackConfidence and FallbackGrams describe the fallback portion.
	FallbackConfidence = 0.3
	FallbackGrams      = 100.0
)

// ReferenceKind is an object of known real size.
type ReferenceKind string

// Supported reference objects.
const (
	ReferencePlate ReferenceKind = "plate"
	ReferenceBowl  ReferenceKind = "bowl"
	ReferenceSpoon ReferenceKind = "spoon"
)

var referenceSizesCM = map[ReferenceKind]float64{
	ReferencePlate: 26,
	ReferenceBowl:  15,
	ReferenceSpoon: 15,
}

// Reference is a reference object and its measured extent in pixels on the
// analyzed image (diameter for plates and bowls, length for spoons).
type Reference struct {
	Kind        ReferenceKind `json:"kind"`
	PixelExtent float64       `json:"pixel_extent"`
}

// RealSizeCM returns the real extent of a reference object.
func RealSizeCM(kind ReferenceKind) (float64, bool) {
	cm, ok := referenceSizesCM[ReferenceKind(strings.ToLower(string(kind)))]
	return cm, ok
}

// Grams per bucket: small, medium, large.
type grams [3]float64

var gramTable = map[string]grams{
	"rice":       {80, 150, 250},
	"curry":      {60, 120, 200},
	"kottu":      {150, 250, 400},
	"dal":        {50, 100, 150},
	"chicken":    {60, 120, 180},
	"fish":       {60, 100, 150},
	"hoppers":    {40, 80, 120},
	"vegetables": {40, 80, 150},
}

var genericGrams = grams{50, 100, 200}

// tableKeys are sorted longest first, then lexicographically.
var tableKeys = func() []string {
	keys := make([]string, 0, len(gramTable))
	for k := range gramTable {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// GramsFor returns the gram weight of one portion bucket of a food. The
// food's own table is used when its name is a table key or contains one
// (longest key first), otherwise the generic table.
//
// Arguments:
// - name: The food name.
// - size: The portion bucket.
//
// Returns:
// - float64: The gram weight.
//
// @example
//
//	GramsFor("chicken_curry", common.PortionLarge) // 180, the chicken table
func GramsFor(name string, size common.PortionSize) float64 {
	table := genericGrams
	key := catalog.NormalizeKey(name)
	if t, ok := gramTable[key]; ok {
		table = t
	} else {
		for _, k := range tableKeys {
			if strings.Contains(key, k) {
				table = gramTable[k]
				break
			}
		}
	}

	switch size {
	case common.PortionSmall:
		return table[0]
	case common.PortionLarge:
		return table[2]
	default:
		return table[1]
	}
}

// Bucket maps a volume in millilitres onto a portion bucket.
func Bucket(volumeML float64) common.PortionSize {
	switch {
	case volumeML <= SmallMaxML:
		return common.PortionSmall
	case volumeML <= MediumMaxML:
		return common.PortionMedium
	default:
		return common.PortionLarge
	}
}

// Explicit builds the portion for a size hint given by a detector.
func Explicit(name string, size common.PortionSize) common.Portion {
	return common.Portion{
		Size:       size,
		Grams:      GramsFor(name, size),
		Confidence: ExplicitConfidence,
		Method:     common.MethodExplicit,
	}
}

// Fallback is the conservative portion used when estimation fails.
func Fallback() common.Portion {
	return common.Portion{
		Size:       common.PortionMedium,
		Grams:      FallbackGrams,
		Confidence: FallbackConfidence,
		Method:     common.MethodFallback,
	}
}

// Estimator attaches portions to detected foods.
type Estimator struct {
	logger *zap.Logger
}

// New creates an Estimator.
func New(logger *zap.Logger) *Estimator {
	return &Estimator{logger: logging.Component(logger, "portion")}
}

// Estimate returns copies of foods with portions attached. Foods that already
// carry an explicit portion keep it; every other food gets an area estimate,
// or the fallback portion when estimation fails.
//
// Arguments:
// - foods: The validated foods.
// - refs: Reference objects seen in the photo; may be empty.
//
// Returns:
// - []common.DetectedFood: New values; the input slice is not modified.
func (e *Estimator) Estimate(foods []common.DetectedFood, refs []Reference) []common.DetectedFood {
	out := make([]common.DetectedFood, len(foods))
	ppcm, calibrated := PixelsPerCM(refs)

	for i, food := range foods {
		if food.EstimatedPortion.Method == common.MethodExplicit && !food.EstimatedPortion.IsZero() {
			out[i] = food.WithPortion(food.EstimatedPortion)
			continue
		}

		p, err := e.estimate(food, ppcm, calibrated)
		if err != nil {
			e.logger.Warn("portion estimate failed",
				zap.String("food", food.Name),
				zap.Error(err))
			p = Fallback()
		}
		out[i] = food.WithPortion(p)
	}
	return out
}

func (e *Estimator) estimate(food common.DetectedFood, ppcm float64, calibrated bool) (p common.Portion, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()

	areaPx := DefaultArea
	if food.BBox != nil {
		areaPx = food.BBox.Area()
	}
	if math.IsNaN(areaPx) || math.IsInf(areaPx, 0) || areaPx <= 0 {
		return common.Portion{}, errors.Errorf("invalid region area %v", areaPx)
	}

	var areaCM2 float64
	if calibrated {
		areaCM2 = areaPx / (ppcm * ppcm)
	} else {
		areaCM2 = areaPx * 1.0 / (DefaultPixelsPerCM * DefaultPixelsPerCM)
	}
	volume := areaCM2 * DepthCM
	size := Bucket(volume)

	e.logger.Debug("portion estimated",
		zap.String("food", food.Name),
		zap.Float64("area_px", areaPx),
		zap.Float64("volume_ml", volume),
		zap.String("size", string(size)),
		zap.Bool("calibrated", calibrated))

	return common.Portion{
		Size:       size,
		Grams:      GramsFor(food.Name, size),
		Confidence: EstimateConfidence,
		Method:     common.MethodAreaEstimate,
	}, nil
}

// PixelsPerCM derives the image scale from the first usable reference object.
func PixelsPerCM(refs []Reference) (float64, bool) {
	for _, ref := range refs {
		cm, ok := RealSizeCM(ref.Kind)
		if !ok || ref.PixelExtent <= 0 || math.IsNaN(ref.PixelExtent) || math.IsInf(ref.PixelExtent, 0) {
			continue
		}
		return ref.PixelExtent / cm, true
	}
	return DefaultPixelsPerCM, false
}
