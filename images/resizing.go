package images

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Downscale shrinks an image so that its longest side is at most maxSide,
// preserving the aspect ratio. Images already within bounds are returned as is.
//
// Arguments:
//   - img: The image to shrink.
//   - maxSide: The maximum width or height in pixels.
//
// Returns:
//   - image.Image: The resized (or original) image.
func Downscale(img image.Image, maxSide int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if maxSide <= 0 || (width <= maxSide && height <= maxSide) {
		return img
	}

	// Passing 0 for one dimension makes resize keep the aspect ratio.
	if width >= height {
		return resize.Resize(uint(maxSide), 0, img, resize.Lanczos3)
	}
	return resize.Resize(0, uint(maxSide), img, resize.Lanczos3)
}

// ToMat converts a Go image into a BGR gocv.Mat. The caller owns the Mat and
// must Close it.
//
// Returns:
//   - gocv.Mat: An 8-bit, 3-channel Mat.
//   - error: An error if the conversion fails or produces an empty Mat.
func ToMat(img image.Image) (gocv.Mat, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "image to mat")
	}
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), errors.New("image to mat: empty result")
	}
	return mat, nil
}

// FromMat converts a gocv.Mat back into a Go image. The Mat is not closed.
func FromMat(mat gocv.Mat) (image.Image, error) {
	if mat.Empty() {
		return nil, errors.New("mat to image: empty mat")
	}
	img, err := mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "mat to image")
	}
	return img, nil
}

// GrayMat converts a Go image into a single channel 8-bit Mat.
func GrayMat(img image.Image) (gocv.Mat, error) {
	bgr, err := ToMat(img)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer bgr.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)
	if gray.Empty() {
		gray.Close()
		return gocv.NewMat(), errors.New("bgr to gray: empty result")
	}
	return gray, nil
}
