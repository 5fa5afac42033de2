package features

import (
	"image"
	"image/color"
	"math"
	"runtime"
	"sort"

	"github.com/nvr-ai/go-nutrition/images"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ChannelStats is the mean and standard deviation of one channel.
type ChannelStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// ColorMoments are the first three moments of one RGB channel.
type ColorMoments struct {
	Mean     float64 `json:"mean"`
	Std      float64 `json:"std"`
	Skewness float64 `json:"skewness"`
}

// DominantColor is one k-means cluster centre and its share of the pixels.
type DominantColor struct {
	Color      color.RGBA `json:"color"`
	Percentage float64    `json:"percentage"`
	Hue        float64    `json:"hue"`
	Saturation float64    `json:"saturation"`
	Value      float64    `json:"value"`
}

// FoodColorMatch is a food class whose color range covers part of the image.
type FoodColorMatch struct {
	Class       string  `json:"class"`
	AreaPercent float64 `json:"area_percent"`
	Confidence  float64 `json:"confidence"`
}

// ColorFeatures summarizes the color content of an image.
type ColorFeatures struct {
	// RGB holds red, green and blue channel statistics.
	RGB [3]ChannelStats `json:"rgb"`
	// HSV holds hue, saturation and value statistics on the OpenCV 8-bit scale.
	HSV            [3]ChannelStats  `json:"hsv"`
	Moments        [3]ColorMoments  `json:"moments"`
	DominantColors []DominantColor  `json:"dominant_colors"`
	Matches        []FoodColorMatch `json:"matches"`
}

// hsvRange is an inclusive OpenCV-scale HSV box.
type hsvRange struct {
	hMin, hMax float64
	sMin, sMax float64
	vMin, vMax float64
}

func (r hsvRange) contains(h, s, v float64) bool {
	return h >= r.hMin && h <= r.hMax && s >= r.sMin && s <= r.sMax && v >= r.vMin && v <= r.vMax
}

// foodColorClass is a food class described by one or more HSV ranges.
type foodColorClass struct {
	class  string
	ranges []hsvRange
}

// Food color classes.
const (
	ClassRice      = "rice"
	ClassCurry     = "curry"
	ClassChicken   = "chicken"
	ClassVegetable = "vegetables"
)

// Hue wraps at 180, so reddish curry spans both ends of the range.
var foodColorClasses = []foodColorClass{
	{class: ClassRice, ranges: []hsvRange{{0, 180, 0, 40, 170, 255}}},
	{class: ClassCurry, ranges: []hsvRange{{0, 12, 90, 255, 60, 255}, {165, 180, 90, 255, 60, 255}}},
	{class: ClassChicken, ranges: []hsvRange{{13, 25, 60, 190, 90, 230}}},
	{class: ClassVegetable, ranges: []hsvRange{{35, 85, 60, 255, 40, 255}}},
}

const (
	// MinMatchArea is the smallest image share a color match must cover.
	MinMatchArea = 0.05
	// MaxMatchConfidence caps color-match confidence.
	MaxMatchConfidence = 0.85
	dominantClusters   = 5
	kmeansIterations   = 10
	kmeansEpsilon      = 1.0
	kmeansAttempts     = 3
	kmeansSeed         = 42
	kmeansMaxSamples   = 4096
)

// Color computes color descriptors for img.
//
// Arguments:
// - img: The (already downscaled) image to describe.
//
// Returns:
// - ColorFeatures with failed scalars replaced by FallbackScalar.
func (e *Extractor) Color(img image.Image) ColorFeatures {
	var f ColorFeatures

	r, g, b := images.RGBPlanes(img)
	h, s, v := images.ToHSV(img)

	for i, p := range []*images.Plane{r, g, b} {
		p := p
		f.RGB[i].Mean = e.scalar("rgb_mean", func() (float64, error) { return nonEmpty(p, p.Mean) })
		f.RGB[i].Std = e.scalar("rgb_std", func() (float64, error) { return nonEmpty(p, p.StdDev) })
		m := moments(p.Pix)
		f.Moments[i].Mean = e.scalar("moment_mean", func() (float64, error) { return m.Mean, emptyErr(p) })
		f.Moments[i].Std = e.scalar("moment_std", func() (float64, error) { return m.Std, emptyErr(p) })
		f.Moments[i].Skewness = e.scalar("moment_skewness", func() (float64, error) { return m.Skewness, emptyErr(p) })
	}
	for i, p := range []*images.Plane{h, s, v} {
		p := p
		f.HSV[i].Mean = e.scalar("hsv_mean", func() (float64, error) { return nonEmpty(p, p.Mean) })
		f.HSV[i].Std = e.scalar("hsv_std", func() (float64, error) { return nonEmpty(p, p.StdDev) })
	}

	e.guard("dominant_colors", func() {
		var err error
		f.DominantColors, err = dominantColors(r, g, b, dominantClusters)
		if err != nil {
			panic(err)
		}
	})
	e.guard("food_color_matches", func() {
		f.Matches = matchFoodColors(h, s, v)
	})

	return f
}

// AreaFraction returns the share of pixels whose HSV value falls in the
// ranges of class, or 0 for an unknown class.
func AreaFraction(img image.Image, class string) float64 {
	h, s, v := images.ToHSV(img)
	for _, c := range foodColorClasses {
		if c.class == class {
			return classFraction(c, h, s, v)
		}
	}
	return 0
}

func classFraction(c foodColorClass, h, s, v *images.Plane) float64 {
	if h.Len() == 0 {
		return 0
	}
	var hits int
	for i := range h.Pix {
		for _, rg := range c.ranges {
			if rg.contains(h.Pix[i], s.Pix[i], v.Pix[i]) {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(h.Len())
}

// matchFoodColors returns classes covering at least MinMatchArea of the image,
// with confidence min(0.85, 0.3 + area fraction), largest area first.
func matchFoodColors(h, s, v *images.Plane) []FoodColorMatch {
	var matches []FoodColorMatch
	for _, c := range foodColorClasses {
		frac := classFraction(c, h, s, v)
		if frac < MinMatchArea {
			continue
		}
		matches = append(matches, FoodColorMatch{
			Class:       c.class,
			AreaPercent: frac * 100,
			Confidence:  math.Min(MaxMatchConfidence, 0.3+frac),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].AreaPercent > matches[j].AreaPercent
	})
	return matches
}

// moments returns mean, standard deviation and skewness of values.
func moments(values []float64) ColorMoments {
	mean, std := meanStd(values)
	m := ColorMoments{Mean: mean, Std: std}
	if std == 0 || len(values) == 0 {
		return m
	}
	var third float64
	for _, v := range values {
		d := (v - mean) / std
		third += d * d * d
	}
	m.Skewness = third / float64(len(values))
	return m
}

// dominantColors clusters sampled pixel colors with OpenCV k-means++ and
// returns the cluster centres sorted by share, largest first. The RNG is
// reseeded before every run so the result is deterministic.
func dominantColors(r, g, b *images.Plane, k int) ([]DominantColor, error) {
	n := r.Len()
	if n == 0 {
		return nil, errors.New("dominant colors: empty image")
	}

	stride := 1
	if n > kmeansMaxSamples {
		stride = n / kmeansMaxSamples
	}
	rows := (n + stride - 1) / stride
	if rows < k {
		k = rows
	}

	data := gocv.NewMatWithSize(rows, 3, gocv.MatTypeCV32F)
	defer data.Close()
	samples, err := data.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "dominant colors samples")
	}
	for row, i := 0, 0; row < rows; row, i = row+1, i+stride {
		samples[row*3] = float32(r.Pix[i])
		samples[row*3+1] = float32(g.Pix[i])
		samples[row*3+2] = float32(b.Pix[i])
	}

	labels := gocv.NewMat()
	defer labels.Close()
	centres := gocv.NewMat()
	defer centres.Close()

	criteria := gocv.NewTermCriteria(gocv.Count|gocv.EPS, kmeansIterations, kmeansEpsilon)
	runtime.LockOSThread()
	gocv.SetRNGSeed(kmeansSeed)
	gocv.KMeans(data, k, &labels, criteria, kmeansAttempts, gocv.KMeansPPCenters, &centres)
	runtime.UnlockOSThread()
	if labels.Rows() != rows || centres.Rows() != k {
		return nil, errors.Errorf("dominant colors: kmeans returned %d labels and %d centres", labels.Rows(), centres.Rows())
	}

	// Identical centres can split one color across clusters; merge them.
	counts := map[color.RGBA]int{}
	for row := 0; row < rows; row++ {
		c := int(labels.GetIntAt(row, 0))
		counts[centreColor(centres, c)]++
	}

	out := make([]DominantColor, 0, len(counts))
	for c, count := range counts {
		hue, sat, val := images.HSV(float64(c.R), float64(c.G), float64(c.B))
		out = append(out, DominantColor{
			Color:      c,
			Percentage: float64(count) / float64(rows) * 100,
			Hue:        hue,
			Saturation: sat,
			Value:      val,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Percentage != out[j].Percentage {
			return out[i].Percentage > out[j].Percentage
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}

func centreColor(centres gocv.Mat, row int) color.RGBA {
	channel := func(col int) uint8 {
		return uint8(images.Clamp(math.Round(float64(centres.GetFloatAt(row, col))), 0, 255))
	}
	return color.RGBA{R: channel(0), G: channel(1), B: channel(2), A: 255}
}

func emptyErr(p *images.Plane) error {
	if p.Len() == 0 {
		return errors.New("empty plane")
	}
	return nil
}

func nonEmpty(p *images.Plane, fn func() float64) (float64, error) {
	if err := emptyErr(p); err != nil {
		return 0, err
	}
	return fn(), nil
}
