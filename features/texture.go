package features

import (
	"image"
	"math"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-nutrition/images"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// TextureFeatures summarizes local texture of an image.
type TextureFeatures struct {
	// Uniformity is the entropy of the rotation-invariant uniform LBP histogram.
	Uniformity float64 `json:"uniformity"`
	// Entropy is the entropy of the raw 256-code LBP histogram.
	Entropy float64 `json:"entropy"`

	// Co-occurrence properties averaged over 0, 45, 90 and 135 degrees.
	GLCMContrast      float64 `json:"glcm_contrast"`
	GLCMDissimilarity float64 `json:"glcm_dissimilarity"`
	GLCMHomogeneity   float64 `json:"glcm_homogeneity"`
	GLCMEnergy        float64 `json:"glcm_energy"`

	// Gabor bank responses (4 orientations x 3 frequencies) reduced over filters.
	GaborMean float64 `json:"gabor_mean"`
	GaborStd  float64 `json:"gabor_std"`
	GaborMax  float64 `json:"gabor_max"`

	// LocalVariance is the mean 8x8 block variance normalized by 255^2.
	LocalVariance float64 `json:"local_variance"`
}

const (
	glcmLevels      = 16
	gaborKernelSize = 11
	gaborMaxSide    = 96
	varianceBlock   = 8
)

var (
	gaborOrientations = []float32{0, math32.Pi / 4, math32.Pi / 2, 3 * math32.Pi / 4}
	gaborFrequencies  = []float32{0.1, 0.25, 0.4}
)

// lbpOffsets lists the 8 radius-1 neighbours in circular order.
var lbpOffsets = [8][2]int{{-1, -1}, {0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}}

// glcmOffsets are the (dx, dy) steps for 0, 45, 90 and 135 degrees.
var glcmOffsets = [4][2]int{{1, 0}, {1, -1}, {0, -1}, {-1, -1}}

// Texture computes texture descriptors for img.
//
// Arguments:
// - img: The (already downscaled) image to describe.
//
// Returns:
// - TextureFeatures with every failed scalar replaced by FallbackScalar.
func (e *Extractor) Texture(img image.Image) TextureFeatures {
	luma := images.Luminance(img)

	var f TextureFeatures

	riu, codes, lbpErr := lbpHistograms(luma)
	f.Uniformity = e.scalar("lbp_uniformity", func() (float64, error) { return entropy(riu), lbpErr })
	f.Entropy = e.scalar("lbp_entropy", func() (float64, error) { return entropy(codes), lbpErr })

	props, glcmErr := glcmProperties(luma)
	f.GLCMContrast = e.scalar("glcm_contrast", func() (float64, error) { return props[0], glcmErr })
	f.GLCMDissimilarity = e.scalar("glcm_dissimilarity", func() (float64, error) { return props[1], glcmErr })
	f.GLCMHomogeneity = e.scalar("glcm_homogeneity", func() (float64, error) { return props[2], glcmErr })
	f.GLCMEnergy = e.scalar("glcm_energy", func() (float64, error) { return props[3], glcmErr })

	var responses []float64
	gaborOK := e.guard("gabor", func() {
		var err error
		responses, err = gaborResponses(images.Luminance(images.Downscale(img, gaborMaxSide)))
		if err != nil {
			panic(err)
		}
	})
	var gaborErr error
	if !gaborOK || len(responses) == 0 {
		gaborErr = errors.New("gabor bank unavailable")
	}
	gMean, gStd := meanStd(responses)
	f.GaborMean = e.scalar("gabor_mean", func() (float64, error) { return gMean, gaborErr })
	f.GaborStd = e.scalar("gabor_std", func() (float64, error) { return gStd, gaborErr })
	f.GaborMax = e.scalar("gabor_max", func() (float64, error) { return maxOf(responses), gaborErr })

	f.LocalVariance = e.scalar("local_variance", func() (float64, error) { return localVariance(luma) })

	return f
}

// lbpHistograms returns the 10-bin rotation-invariant uniform (riu2) histogram
// and the 256-bin raw code histogram of a luma plane.
func lbpHistograms(p *images.Plane) ([]float64, []float64, error) {
	if p.Width < 3 || p.Height < 3 {
		return nil, nil, errors.Errorf("lbp needs at least 3x3 pixels, got %dx%d", p.Width, p.Height)
	}

	riu := make([]float64, 10)
	codes := make([]float64, 256)

	for y := 1; y < p.Height-1; y++ {
		for x := 1; x < p.Width-1; x++ {
			center := p.At(x, y)
			var code, ones, transitions int
			var bits [8]int
			for i, off := range lbpOffsets {
				if p.At(x+off[0], y+off[1]) >= center {
					bits[i] = 1
					code |= 1 << uint(i)
					ones++
				}
			}
			for i := 0; i < 8; i++ {
				if bits[i] != bits[(i+1)%8] {
					transitions++
				}
			}
			codes[code]++
			if transitions <= 2 {
				riu[ones]++
			} else {
				riu[9]++
			}
		}
	}

	return riu, codes, nil
}

// glcmProperties returns contrast, dissimilarity, homogeneity and energy of a
// symmetric, normalized co-occurrence matrix averaged over four angles.
func glcmProperties(p *images.Plane) ([4]float64, error) {
	var out [4]float64
	if p.Width < 2 || p.Height < 2 {
		return out, errors.Errorf("glcm needs at least 2x2 pixels, got %dx%d", p.Width, p.Height)
	}

	quantized := make([]int, len(p.Pix))
	for i, v := range p.Pix {
		q := int(v * glcmLevels / 256)
		if q >= glcmLevels {
			q = glcmLevels - 1
		} else if q < 0 {
			q = 0
		}
		quantized[i] = q
	}

	for _, off := range glcmOffsets {
		var matrix [glcmLevels][glcmLevels]float64
		var total float64
		for y := 0; y < p.Height; y++ {
			ny := y + off[1]
			if ny < 0 || ny >= p.Height {
				continue
			}
			for x := 0; x < p.Width; x++ {
				nx := x + off[0]
				if nx < 0 || nx >= p.Width {
					continue
				}
				i := quantized[y*p.Width+x]
				j := quantized[ny*p.Width+nx]
				matrix[i][j]++
				matrix[j][i]++
				total += 2
			}
		}
		if total == 0 {
			return out, errors.New("glcm has no pixel pairs")
		}

		var contrast, dissimilarity, homogeneity, asm float64
		for i := 0; i < glcmLevels; i++ {
			for j := 0; j < glcmLevels; j++ {
				pij := matrix[i][j] / total
				if pij == 0 {
					continue
				}
				d := float64(i - j)
				contrast += pij * d * d
				dissimilarity += pij * math.Abs(d)
				homogeneity += pij / (1 + d*d)
				asm += pij * pij
			}
		}
		out[0] += contrast / 4
		out[1] += dissimilarity / 4
		out[2] += homogeneity / 4
		out[3] += math.Sqrt(asm) / 4
	}

	return out, nil
}

// gaborKernel builds a zero-mean real Gabor kernel.
func gaborKernel(theta, frequency float32) []float64 {
	const gamma = float32(0.5)
	sigma := math32.Min(0.56/frequency, 3)
	radius := gaborKernelSize / 2

	kernel := make([]float64, gaborKernelSize*gaborKernelSize)
	sinT, cosT := math32.Sincos(theta)
	var sum float64
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			fx, fy := float32(x), float32(y)
			xr := fx*cosT + fy*sinT
			yr := -fx*sinT + fy*cosT
			envelope := math32.Exp(-(xr*xr + gamma*gamma*yr*yr) / (2 * sigma * sigma))
			v := float64(envelope * math32.Cos(2*math32.Pi*frequency*xr))
			kernel[(y+radius)*gaborKernelSize+(x+radius)] = v
			sum += v
		}
	}

	mean := sum / float64(len(kernel))
	for i := range kernel {
		kernel[i] -= mean
	}
	return kernel
}

// gaborResponses returns the mean absolute response of every filter in the bank
// on a luma plane scaled to [0,1]. Edges are replicated.
func gaborResponses(luma *images.Plane) ([]float64, error) {
	if luma.Len() == 0 {
		return nil, errors.New("gabor: empty plane")
	}

	src := gocv.NewMatWithSize(luma.Height, luma.Width, gocv.MatTypeCV64F)
	defer src.Close()
	pix, err := src.DataPtrFloat64()
	if err != nil {
		return nil, errors.Wrap(err, "gabor source")
	}
	for i, v := range luma.Pix {
		pix[i] = v / 255
	}

	kernel := gocv.NewMatWithSize(gaborKernelSize, gaborKernelSize, gocv.MatTypeCV64F)
	defer kernel.Close()
	weights, err := kernel.DataPtrFloat64()
	if err != nil {
		return nil, errors.Wrap(err, "gabor kernel")
	}

	resp := gocv.NewMat()
	defer resp.Close()

	responses := make([]float64, 0, len(gaborOrientations)*len(gaborFrequencies))
	for _, theta := range gaborOrientations {
		for _, freq := range gaborFrequencies {
			copy(weights, gaborKernel(theta, freq))
			gocv.Filter2D(src, &resp, gocv.MatTypeCV64F, kernel, image.Pt(-1, -1), 0, gocv.BorderReplicate)

			out, err := resp.DataPtrFloat64()
			if err != nil {
				return nil, errors.Wrap(err, "gabor response")
			}
			var acc float64
			for _, v := range out {
				acc += math.Abs(v)
			}
			responses = append(responses, acc/float64(len(out)))
		}
	}
	return responses, nil
}

// localVariance returns the mean variance of non-overlapping 8x8 blocks,
// normalized by 255^2.
func localVariance(p *images.Plane) (float64, error) {
	if p.Width < varianceBlock || p.Height < varianceBlock {
		return 0, errors.Errorf("local variance needs at least %dx%d pixels", varianceBlock, varianceBlock)
	}

	var sum float64
	var blocks int
	block := make([]float64, 0, varianceBlock*varianceBlock)
	for by := 0; by+varianceBlock <= p.Height; by += varianceBlock {
		for bx := 0; bx+varianceBlock <= p.Width; bx += varianceBlock {
			block = block[:0]
			for y := by; y < by+varianceBlock; y++ {
				block = append(block, p.Pix[y*p.Width+bx:y*p.Width+bx+varianceBlock]...)
			}
			_, std := meanStd(block)
			sum += std * std
			blocks++
		}
	}
	return sum / float64(blocks) / (255 * 255), nil
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
