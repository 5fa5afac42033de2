// Package preprocess - Image quality assessment and adaptive enhancement.
//
// A Preprocessor measures brightness, contrast, sharpness and noise of a meal
// photo and applies a fixed sequence of corrections gated on those metrics:
// brightness, CLAHE contrast, unsharp mask, bilateral denoise and a final
// saturation boost. Each correction that fails returns its input unchanged.
package preprocess

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/nvr-ai/go-nutrition/common"
	"github.com/nvr-ai/go-nutrition/config"
	"github.com/nvr-ai/go-nutrition/images"
	"github.com/nvr-ai/go-nutrition/logging"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Correction names reported in Result.Applied.
const (
	BrightnessBoost     = "brightness_boost"
	BrightnessReduction = "brightness_reduction"
	ContrastCLAHE       = "clahe"
	UnsharpMask         = "unsharp_mask"
	Denoise             = "denoise"
	SaturationBoost     = "saturation_boost"
)

const (
	brightnessScale = 128.0
	contrastScale   = 64.0
	sharpnessScale  = 1000.0
	noiseScale      = 25.0
	// maxBrightnessShift bounds the brightness correction in percent.
	maxBrightnessShift = 50.0
)

// Result is the enhanced image and the quality measured before enhancement.
type Result struct {
	Image   image.Image         `json:"-"`
	Quality common.ImageQuality `json:"quality"`
	// Applied lists the corrections that ran, in order.
	Applied []string `json:"applied"`
}

// Measurement is the quality of an image plus the unclamped brightness used
// for correction decisions.
type Measurement struct {
	Quality       common.ImageQuality
	RawBrightness float64
	MeanLuma      float64
}

// Preprocessor assesses and enhances images.
type Preprocessor struct {
	cfg    config.PreprocessConfig
	logger *zap.Logger
}

// New creates a Preprocessor.
//
// Arguments:
// - cfg: Correction thresholds and strengths.
// - logger: Logger for degraded steps; nil disables logging.
//
// Returns:
// - *Preprocessor: The preprocessor.
func New(cfg config.PreprocessConfig, logger *zap.Logger) *Preprocessor {
	return &Preprocessor{cfg: cfg, logger: logging.Component(logger, "preprocess")}
}

// Process measures img and applies the corrections its metrics call for.
//
// When the metrics cannot be computed the original image is returned with a
// neutral quality and no corrections.
//
// Arguments:
// - img: The decoded photo.
//
// Returns:
// - Result: The enhanced image, the measured quality and applied corrections.
func (p *Preprocessor) Process(img image.Image) (res Result) {
	res = Result{Image: img, Quality: common.NeutralImageQuality(), Applied: []string{}}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("preprocess failed", zap.String("panic", fmt.Sprint(r)))
			res = Result{Image: img, Quality: common.NeutralImageQuality(), Applied: []string{}}
		}
	}()

	m, err := Assess(img)
	if err != nil {
		p.logger.Warn("quality assessment failed", zap.Error(err))
		return res
	}
	res.Quality = m.Quality

	out := img
	apply := func(name string, fn func(image.Image) (image.Image, error)) {
		next, ok := p.step(name, out, fn)
		if ok {
			out = next
			res.Applied = append(res.Applied, name)
		}
	}

	switch {
	case m.RawBrightness < p.cfg.BrightnessLow:
		apply(BrightnessBoost, func(in image.Image) (image.Image, error) {
			return adjustBrightness(in, m.MeanLuma), nil
		})
	case m.RawBrightness > p.cfg.BrightnessHigh:
		apply(BrightnessReduction, func(in image.Image) (image.Image, error) {
			return adjustBrightness(in, m.MeanLuma), nil
		})
	}
	if m.Quality.Contrast < p.cfg.ContrastLow {
		apply(ContrastCLAHE, claheLightness)
	}
	if m.Quality.Sharpness < p.cfg.SharpnessLow {
		apply(UnsharpMask, unsharpMask)
	}
	if m.Quality.Noise < p.cfg.NoiseLow {
		apply(Denoise, bilateralDenoise)
	}
	if p.cfg.SaturationBoost != 0 {
		apply(SaturationBoost, func(in image.Image) (image.Image, error) {
			return imaging.AdjustSaturation(in, p.cfg.SaturationBoost), nil
		})
	}

	res.Image = out
	return res
}

// step runs one correction, returning its input when it fails or panics.
func (p *Preprocessor) step(name string, in image.Image, fn func(image.Image) (image.Image, error)) (out image.Image, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Debug("correction skipped", zap.String("correction", name), zap.String("panic", fmt.Sprint(r)))
			out, ok = in, false
		}
	}()

	out, err := fn(in)
	if err != nil || out == nil {
		p.logger.Debug("correction skipped", zap.String("correction", name), zap.Error(err))
		return in, false
	}
	return out, true
}

// Assess computes the quality metrics of img.
//
// Returns:
// - Measurement: Clamped metrics plus the raw brightness.
// - error: An error if the image is empty or OpenCV fails.
//
// @example
// m, err := preprocess.Assess(img)
// if err == nil && m.RawBrightness < 0.4 { ... }
func Assess(img image.Image) (Measurement, error) {
	var m Measurement
	if img == nil || img.Bounds().Empty() {
		return m, errors.New("assess: empty image")
	}

	luma := images.Luminance(img)
	m.MeanLuma = luma.Mean()
	m.RawBrightness = m.MeanLuma / brightnessScale

	gray, err := images.GrayMat(img)
	if err != nil {
		return m, errors.Wrap(err, "assess")
	}
	defer gray.Close()

	sharp, err := laplacianVariance(gray)
	if err != nil {
		return m, errors.Wrap(err, "assess sharpness")
	}
	residual, err := medianResidual(gray)
	if err != nil {
		return m, errors.Wrap(err, "assess noise")
	}

	q := common.ImageQuality{
		Brightness: math.Min(m.RawBrightness, 1),
		Contrast:   math.Min(luma.StdDev()/contrastScale, 1),
		Sharpness:  math.Min(sharp/sharpnessScale, 1),
		Noise:      1 - math.Min(residual/noiseScale, 1),
	}
	q.OverallQuality = math.Min(1, 0.2*m.RawBrightness+0.3*q.Contrast+0.4*q.Sharpness+0.1*q.Noise)

	for _, v := range []float64{q.Brightness, q.Contrast, q.Sharpness, q.Noise, q.OverallQuality} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return m, errors.New("assess: non-finite metric")
		}
	}
	m.Quality = q
	return m, nil
}

// laplacianVariance returns the variance of the Laplacian of the grey image.
func laplacianVariance(gray gocv.Mat) (float64, error) {
	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)
	if lap.Empty() {
		return 0, errors.New("laplacian produced an empty mat")
	}

	mean := gocv.NewMat()
	defer mean.Close()
	std := gocv.NewMat()
	defer std.Close()
	gocv.MeanStdDev(lap, &mean, &std)
	if std.Empty() {
		return 0, errors.New("mean std dev produced an empty mat")
	}

	sd := std.GetDoubleAt(0, 0)
	return sd * sd, nil
}

// medianResidual returns the mean absolute difference between the grey image
// and its 3x3 median-filtered copy. Flat or smoothly shaded regions contribute
// zero, isolated speckles contribute their full deviation.
func medianResidual(gray gocv.Mat) (float64, error) {
	med := gocv.NewMat()
	defer med.Close()
	gocv.MedianBlur(gray, &med, 3)
	if med.Empty() {
		return 0, errors.New("median blur produced an empty mat")
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gray, med, &diff)

	return diff.Mean().Val1, nil
}
