package preprocess

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/nvr-ai/go-nutrition/images"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// CLAHE parameters for the Lab lightness channel.
const (
	claheClipLimit = 2.0
	claheTileSize  = 8
)

// Unsharp mask: out = 1.5*img - 0.5*blur(img).
const (
	unsharpSigma       = 3.0
	unsharpImageWeight = 1.5
	unsharpBlurWeight  = -0.5
)

// Bilateral filter diameter and sigmas.
const (
	bilateralDiameter = 9
	bilateralSigma    = 75.0
)

// adjustBrightness shifts the image towards a mean luma of 128. The shift is
// expressed as an imaging percentage and bounded by maxBrightnessShift.
func adjustBrightness(img image.Image, meanLuma float64) image.Image {
	pct := (brightnessScale - meanLuma) / 255 * 100
	if pct > maxBrightnessShift {
		pct = maxBrightnessShift
	} else if pct < -maxBrightnessShift {
		pct = -maxBrightnessShift
	}
	return imaging.AdjustBrightness(img, pct)
}

// claheLightness equalizes the L channel of the Lab representation.
func claheLightness(img image.Image) (image.Image, error) {
	return withMat(img, func(src gocv.Mat, dst *gocv.Mat) error {
		lab := gocv.NewMat()
		defer lab.Close()
		gocv.CvtColor(src, &lab, gocv.ColorBGRToLab)

		channels := gocv.Split(lab)
		defer func() {
			for _, c := range channels {
				c.Close()
			}
		}()
		if len(channels) != 3 {
			return errors.Errorf("lab split returned %d channels", len(channels))
		}

		clahe := gocv.NewCLAHEWithParams(claheClipLimit, image.Pt(claheTileSize, claheTileSize))
		defer clahe.Close()

		equalized := gocv.NewMat()
		clahe.Apply(channels[0], &equalized)
		channels[0].Close()
		channels[0] = equalized

		merged := gocv.NewMat()
		defer merged.Close()
		gocv.Merge(channels, &merged)

		gocv.CvtColor(merged, dst, gocv.ColorLabToBGR)
		return nil
	})
}

// unsharpMask sharpens by subtracting a Gaussian-blurred copy.
func unsharpMask(img image.Image) (image.Image, error) {
	return withMat(img, func(src gocv.Mat, dst *gocv.Mat) error {
		blurred := gocv.NewMat()
		defer blurred.Close()
		gocv.GaussianBlur(src, &blurred, image.Pt(0, 0), unsharpSigma, unsharpSigma, gocv.BorderDefault)
		if blurred.Empty() {
			return errors.New("gaussian blur produced an empty mat")
		}
		gocv.AddWeighted(src, unsharpImageWeight, blurred, unsharpBlurWeight, 0, dst)
		return nil
	})
}

// bilateralDenoise smooths noise while keeping edges.
func bilateralDenoise(img image.Image) (image.Image, error) {
	return withMat(img, func(src gocv.Mat, dst *gocv.Mat) error {
		gocv.BilateralFilter(src, dst, bilateralDiameter, bilateralSigma, bilateralSigma)
		return nil
	})
}

// withMat converts img to a BGR Mat, runs fn and converts the result back.
func withMat(img image.Image, fn func(src gocv.Mat, dst *gocv.Mat) error) (image.Image, error) {
	src, err := images.ToMat(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()

	if err := fn(src, &dst); err != nil {
		return nil, err
	}
	return images.FromMat(dst)
}
