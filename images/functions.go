// Package images - provides the pixel-level helpers shared by the preprocessing,
// feature extraction and detection stages: decoding, resampling, single-channel
// planes, color space conversion and row-parallel execution.
package images

import (
	"image"
	"math"
	"runtime"
	"sync"
)

// Clamp restricts a value to the given range.
//
// Arguments:
// - value: The value to clamp.
// - min: The minimum allowed value.
// - max: The maximum allowed value.
//
// Returns:
// - The clamped value.
//
// @example
// clamped := Clamp(300.5, 0, 255) // Returns 255
// clamped := Clamp(-10.0, 0, 255) // Returns 0
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Parallel executes a function in parallel across multiple goroutines.
//
// Arguments:
// - dataSize: The size of the data to process.
// - fn: Function to execute for each partition (receives start and end indices).
//
// @example
//
//	Parallel(height, func(start, end int) {
//	    for y := start; y < end; y++ {
//	        // Process row y
//	    }
//	})
func Parallel(dataSize int, fn func(partStart, partEnd int)) {
	numGoroutines := runtime.NumCPU()

	// For small data sizes the goroutine overhead isn't worth it.
	if dataSize < numGoroutines*2 {
		fn(0, dataSize)
		return
	}

	partSize := dataSize / numGoroutines

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		partStart := i * partSize
		partEnd := partStart + partSize

		// Last partition gets any remaining data.
		if i == numGoroutines-1 {
			partEnd = dataSize
		}

		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(partStart, partEnd)
	}

	wg.Wait()
}

// EdgeMode defines how to handle coordinates that are out of bounds.
type EdgeMode string

const (
	// ClampEdgeMode clamps the coordinate to the nearest valid value.
	ClampEdgeMode EdgeMode = "clamp"
	// MirrorEdgeMode mirrors the coordinate around the edge.
	MirrorEdgeMode EdgeMode = "mirror"
	// WrapEdgeMode wraps the coordinate around the edge.
	WrapEdgeMode EdgeMode = "wrap"
)

// MapCoord maps a coordinate to a valid value based on the edge mode.
//
// Arguments:
// - coord: The coordinate to map.
// - max: The exclusive upper bound of the coordinate.
// - mode: The edge mode to use.
func MapCoord(coord, max int, mode EdgeMode) int {
	switch mode {
	case MirrorEdgeMode:
		for coord < 0 || coord >= max {
			if coord < 0 {
				coord = -coord - 1
			} else {
				coord = 2*max - coord - 1
			}
		}
		return coord
	case WrapEdgeMode:
		return (coord%max + max) % max
	default:
		if coord < 0 {
			return 0
		} else if coord >= max {
			return max - 1
		}
		return coord
	}
}

// Plane is a single-channel image stored row-major as float64 samples.
type Plane struct {
	Width  int
	Height int
	Pix    []float64
}

// NewPlane allocates a zeroed plane.
func NewPlane(width, height int) *Plane {
	return &Plane{Width: width, Height: height, Pix: make([]float64, width*height)}
}

// At returns the sample at (x, y) with clamped edges.
func (p *Plane) At(x, y int) float64 {
	x = MapCoord(x, p.Width, ClampEdgeMode)
	y = MapCoord(y, p.Height, ClampEdgeMode)
	return p.Pix[y*p.Width+x]
}

// Set writes the sample at (x, y).
func (p *Plane) Set(x, y int, v float64) {
	p.Pix[y*p.Width+x] = v
}

// Len returns the number of samples.
func (p *Plane) Len() int {
	return len(p.Pix)
}

// Mean returns the arithmetic mean of all samples, 0 for an empty plane.
func (p *Plane) Mean() float64 {
	if len(p.Pix) == 0 {
		return 0
	}
	var sum float64
	for _, v := range p.Pix {
		sum += v
	}
	return sum / float64(len(p.Pix))
}

// StdDev returns the population standard deviation of all samples.
func (p *Plane) StdDev() float64 {
	n := len(p.Pix)
	if n == 0 {
		return 0
	}
	mean := p.Mean()
	var acc float64
	for _, v := range p.Pix {
		d := v - mean
		acc += d * d
	}
	return math.Sqrt(acc / float64(n))
}

// rgb8 returns the 8-bit RGB components of the pixel at (x, y).
func rgb8(img image.Image, x, y int) (r, g, b float64) {
	cr, cg, cb, _ := img.At(x, y).RGBA()
	return float64(cr >> 8), float64(cg >> 8), float64(cb >> 8)
}

// Luminance converts an image into a BT.709 luma plane in the 0-255 range.
//
// @example
// luma := Luminance(img)
// brightness := luma.Mean() / 128
func Luminance(img image.Image) *Plane {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	dst := NewPlane(width, height)

	// ITU-R BT.709 luma coefficients.
	const (
		redWeight   = 0.2126
		greenWeight = 0.7152
		blueWeight  = 0.0722
	)

	Parallel(height, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			for x := 0; x < width; x++ {
				r, g, b := rgb8(img, bounds.Min.X+x, bounds.Min.Y+y)
				dst.Pix[y*width+x] = r*redWeight + g*greenWeight + b*blueWeight
			}
		}
	})

	return dst
}

// RGBPlanes splits an image into 8-bit red, green and blue planes.
func RGBPlanes(img image.Image) (r, g, b *Plane) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	r, g, b = NewPlane(width, height), NewPlane(width, height), NewPlane(width, height)

	Parallel(height, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			for x := 0; x < width; x++ {
				i := y*width + x
				r.Pix[i], g.Pix[i], b.Pix[i] = rgb8(img, bounds.Min.X+x, bounds.Min.Y+y)
			}
		}
	})

	return r, g, b
}

// HSV converts one 8-bit RGB triple to hue, saturation and value on the
// OpenCV 8-bit scale: H in [0,180), S and V in [0,255].
func HSV(r, g, b float64) (h, s, v float64) {
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	delta := max - min

	v = max
	if max > 0 {
		s = delta / max * 255
	}
	if delta == 0 {
		return 0, s, v
	}

	switch max {
	case r:
		h = 60 * math.Mod((g-b)/delta, 6)
	case g:
		h = 60 * ((b-r)/delta + 2)
	default:
		h = 60 * ((r-g)/delta + 4)
	}
	if h < 0 {
		h += 360
	}
	return h / 2, s, v
}

// ToHSV converts an image into hue, saturation and value planes using the
// OpenCV 8-bit scale.
func ToHSV(img image.Image) (h, s, v *Plane) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	h, s, v = NewPlane(width, height), NewPlane(width, height), NewPlane(width, height)

	Parallel(height, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			for x := 0; x < width; x++ {
				r, g, b := rgb8(img, bounds.Min.X+x, bounds.Min.Y+y)
				i := y*width + x
				h.Pix[i], s.Pix[i], v.Pix[i] = HSV(r, g, b)
			}
		}
	})

	return h, s, v
}
