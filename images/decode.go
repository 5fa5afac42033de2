package images

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/rwcarlsen/goexif/exif"

	// Registers the WebP decoder with image.Decode.
	_ "golang.org/x/image/webp"
)

// ErrUndecodable is returned when request bytes are not a supported raster image.
var ErrUndecodable = errors.New("image data could not be decoded")

// Decode decodes raw request bytes into an image, honouring the EXIF
// orientation of JPEG photos taken on phones.
//
// Arguments:
// - data: Encoded image bytes (JPEG, PNG, GIF or WebP).
//
// Returns:
// - image.Image: The decoded, upright image.
// - Format: The sniffed encoding.
// - error: ErrUndecodable (wrapped) when the payload can't be decoded.
//
// @example
// img, format, err := images.Decode(body)
//
//	if errors.Is(err, images.ErrUndecodable) {
//	    // reject request
//	}
func Decode(data []byte) (image.Image, Format, error) {
	if len(data) == 0 {
		return nil, FormatUnknown, errors.Wrap(ErrUndecodable, "empty payload")
	}

	format := Sniff(data)
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, errors.Wrapf(ErrUndecodable, "%s: %v", format, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, format, errors.Wrap(ErrUndecodable, "zero sized image")
	}

	if format == FormatJPEG {
		img = Orient(img, ReadOrientation(data))
	}

	return img, format, nil
}

// ReadOrientation returns the EXIF orientation tag (1-8), or 1 when the data
// carries no readable EXIF block.
func ReadOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// Orient transforms an image so that EXIF orientation o becomes upright.
func Orient(img image.Image, o int) image.Image {
	switch o {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	}
	return img
}

// EncodeJPEG re-encodes an image as JPEG at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, errors.Wrap(err, "encode jpeg")
	}
	return buf.Bytes(), nil
}
