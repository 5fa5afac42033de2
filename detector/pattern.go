package detector

import (
	"context"
	"image"

	"github.com/nvr-ai/go-nutrition/common"
	"github.com/nvr-ai/go-nutrition/features"
	"github.com/nvr-ai/go-nutrition/images"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Pattern detector thresholds and confidences.
const (
	PlateConfidence       = 0.6
	MixedDishConfidence   = 0.5
	MixedDishVarianceMin  = 0.02
	circleMinRadiusFactor = 0.15
)

// Circle is a detected circle in analysis coordinates.
type Circle struct {
	X, Y, Radius float64
}

// Pattern is the last-resort detector: plates found as circles and busy
// textures reported as a mixed dish.
type Pattern struct {
	extractor *features.Extractor
}

// NewPattern creates the pattern recognition detector.
func NewPattern(extractor *features.Extractor) *Pattern {
	return &Pattern{extractor: extractor}
}

// Name implements Detector.
func (p *Pattern) Name() common.Method { return common.MethodPattern }

// Weight implements Detector.
func (p *Pattern) Weight() float64 { return WeightPattern }

// Detect implements Detector.
func (p *Pattern) Detect(ctx context.Context, in Input) ([]common.Candidate, error) {
	img := in.Analysis
	if img == nil {
		img = in.Image
	}
	if img == nil {
		return nil, errors.New("pattern detector: no image")
	}

	var out []common.Candidate

	circles, err := FindCircles(img)
	if err != nil {
		return nil, err
	}
	if len(circles) > 0 {
		largest := circles[0]
		for _, c := range circles[1:] {
			if c.Radius > largest.Radius {
				largest = c
			}
		}
		scale := in.AnalysisScale()
		out = append(out, common.Candidate{
			Name:       "plated_meal",
			Confidence: PlateConfidence,
			Method:     common.MethodPattern,
			BBox: &common.BoundingBox{
				X1: (largest.X - largest.Radius) * scale,
				Y1: (largest.Y - largest.Radius) * scale,
				X2: (largest.X + largest.Radius) * scale,
				Y2: (largest.Y + largest.Radius) * scale,
			},
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if featuresFor(in, p.extractor).Texture().LocalVariance > MixedDishVarianceMin {
		out = append(out, common.Candidate{
			Name:       "mixed_dish",
			Confidence: MixedDishConfidence,
			Method:     common.MethodPattern,
		})
	}
	return out, nil
}

// FindCircles runs a Hough circle transform on the blurred grey image and
// returns circles whose radius is at least 15% of the shorter image side.
func FindCircles(img image.Image) ([]Circle, error) {
	gray, err := images.GrayMat(img)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.MedianBlur(gray, &blurred, 5)

	bounds := img.Bounds()
	short := min(bounds.Dx(), bounds.Dy())
	minRadius := int(float64(short) * circleMinRadiusFactor)

	circles := gocv.NewMat()
	defer circles.Close()
	gocv.HoughCirclesWithParams(blurred, &circles, gocv.HoughGradient, 1, float64(short)/4, 100, 40, minRadius, short/2)

	out := make([]Circle, 0, circles.Cols())
	for i := 0; i < circles.Cols(); i++ {
		v := circles.GetVecfAt(0, i)
		if len(v) < 3 {
			continue
		}
		out = append(out, Circle{X: float64(v[0]), Y: float64(v[1]), Radius: float64(v[2])})
	}
	return out, nil
}
