package features

import (
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/nvr-ai/go-nutrition/common"
	"github.com/nvr-ai/go-nutrition/images"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ContourDescriptor describes one closed outer contour.
type ContourDescriptor struct {
	Area           float64         `json:"area"`
	Perimeter      float64         `json:"perimeter"`
	Circularity    float64         `json:"circularity"`
	AspectRatio    float64         `json:"aspect_ratio"`
	Rectangularity float64         `json:"rectangularity"`
	Convexity      float64         `json:"convexity"`
	HuMoments      [7]float64      `json:"hu_moments"`
	Bounds         image.Rectangle `json:"-"`
}

// ShapeFeatures lists the significant contours of an image, largest first.
type ShapeFeatures struct {
	Contours        []ContourDescriptor `json:"contours"`
	MeanCircularity float64             `json:"mean_circularity"`
	MeanConvexity   float64             `json:"mean_convexity"`
}

// Largest returns the largest contour, or nil when none was found.
func (s ShapeFeatures) Largest() *ContourDescriptor {
	if len(s.Contours) == 0 {
		return nil
	}
	return &s.Contours[0]
}

// LargestBox returns the bounding box of the largest contour scaled by factor,
// or nil when no contour was found.
func (s ShapeFeatures) LargestBox(factor float64) *common.BoundingBox {
	largest := s.Largest()
	if largest == nil {
		return nil
	}
	r := largest.Bounds
	return &common.BoundingBox{
		X1: float64(r.Min.X) * factor,
		Y1: float64(r.Min.Y) * factor,
		X2: float64(r.Max.X) * factor,
		Y2: float64(r.Max.Y) * factor,
	}
}

const (
	// MinContourArea drops contours smaller than this many square pixels.
	MinContourArea = 50.0
	maxContours    = 20
	cannyLow       = 50
	cannyHigh      = 150
)

// Shape finds external contours with Canny edges and describes each one.
//
// Arguments:
// - img: The (already downscaled) image to describe.
//
// Returns:
// - ShapeFeatures; empty when OpenCV fails or no contour passes MinContourArea.
func (e *Extractor) Shape(img image.Image) ShapeFeatures {
	var out ShapeFeatures

	var contours gocv.PointsVector
	if !e.guard("contours", func() {
		var err error
		contours, err = findContours(img)
		if err != nil {
			panic(err)
		}
	}) {
		return out
	}
	defer contours.Close()

	for i := 0; i < contours.Size(); i++ {
		var d ContourDescriptor
		ok := e.guard("contour_descriptor", func() {
			var err error
			d, err = describeContour(contours.At(i))
			if err != nil {
				panic(err)
			}
		})
		if !ok || d.Area < MinContourArea {
			continue
		}
		out.Contours = append(out.Contours, d)
	}

	sort.SliceStable(out.Contours, func(i, j int) bool { return out.Contours[i].Area > out.Contours[j].Area })
	if len(out.Contours) > maxContours {
		out.Contours = out.Contours[:maxContours]
	}

	circ := make([]float64, len(out.Contours))
	conv := make([]float64, len(out.Contours))
	for i, c := range out.Contours {
		circ[i], conv[i] = c.Circularity, c.Convexity
	}
	out.MeanCircularity = e.scalar("mean_circularity", func() (float64, error) {
		m, _ := meanStd(circ)
		return m, nil
	})
	out.MeanConvexity = e.scalar("mean_convexity", func() (float64, error) {
		m, _ := meanStd(conv)
		return m, nil
	})

	return out
}

// findContours returns the external contours of the Canny edge map. The
// caller closes the result.
func findContours(img image.Image) (gocv.PointsVector, error) {
	gray, err := images.GrayMat(img)
	if err != nil {
		return gocv.PointsVector{}, err
	}
	defer gray.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, cannyLow, cannyHigh)
	if edges.Empty() {
		return gocv.PointsVector{}, errors.New("canny produced an empty edge map")
	}

	return gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple), nil
}

// DescribeContour computes geometric descriptors of a closed polygon.
//
// Arguments:
// - pts: The polygon vertices in order. The closing edge is implicit.
//
// Returns:
// - ContourDescriptor: The descriptors.
// - error: An error when the polygon has fewer than 3 vertices or no area.
//
// @example
// d, err := DescribeContour([]image.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}})
// // d.Area == 100, d.Convexity == 1
func DescribeContour(pts []image.Point) (ContourDescriptor, error) {
	pv := gocv.NewPointVectorFromPoints(pts)
	defer pv.Close()
	return describeContour(pv)
}

func describeContour(pv gocv.PointVector) (ContourDescriptor, error) {
	var d ContourDescriptor
	if pv.Size() < 3 {
		return d, errors.Errorf("contour needs at least 3 points, got %d", pv.Size())
	}

	d.Area = gocv.ContourArea(pv)
	if d.Area == 0 {
		return d, errors.New("contour has zero area")
	}

	d.Perimeter = gocv.ArcLength(pv, true)
	if d.Perimeter > 0 {
		d.Circularity = 4 * math.Pi * d.Area / (d.Perimeter * d.Perimeter)
	}

	d.Bounds = gocv.BoundingRect(pv)
	w, h := float64(d.Bounds.Dx()), float64(d.Bounds.Dy())
	if h > 0 {
		d.AspectRatio = w / h
	}
	if w*h > 0 {
		d.Rectangularity = d.Area / (w * h)
	}

	hull := gocv.NewMat()
	defer hull.Close()
	gocv.ConvexHull(pv, &hull, false, true)
	hullPoints := gocv.NewPointVectorFromMat(hull)
	defer hullPoints.Close()
	if hullArea := gocv.ContourArea(hullPoints); hullArea > 0 {
		d.Convexity = d.Area / hullArea
	}

	hu, err := contourHuMoments(pv, d.Bounds)
	if err != nil {
		return d, err
	}
	for i, v := range hu {
		d.HuMoments[i] = logScale(v)
	}
	return d, nil
}

// contourHuMoments rasterizes the contour into a mask covering its bounds
// and returns the seven Hu invariants of the mask's normalized central
// moments.
func contourHuMoments(pv gocv.PointVector, bounds image.Rectangle) ([7]float64, error) {
	var hu [7]float64

	pts := pv.ToPoints()
	shifted := make([]image.Point, len(pts))
	for i, p := range pts {
		shifted[i] = p.Sub(bounds.Min)
	}
	poly := gocv.NewPointsVectorFromPoints([][]image.Point{shifted})
	defer poly.Close()

	mask := gocv.NewMatWithSize(bounds.Dy(), bounds.Dx(), gocv.MatTypeCV8UC1)
	defer mask.Close()
	mask.SetTo(gocv.NewScalar(0, 0, 0, 0))
	gocv.FillPoly(&mask, poly, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	m := gocv.Moments(mask, true)
	if m["m00"] == 0 {
		return hu, errors.New("contour mask is empty")
	}

	n20, n11, n02 := m["nu20"], m["nu11"], m["nu02"]
	n30, n21, n12, n03 := m["nu30"], m["nu21"], m["nu12"], m["nu03"]

	a := n30 + n12
	b := n21 + n03
	c := n30 - 3*n12
	e := 3*n21 - n03

	hu[0] = n20 + n02
	hu[1] = (n20-n02)*(n20-n02) + 4*n11*n11
	hu[2] = c*c + e*e
	hu[3] = a*a + b*b
	hu[4] = c*a*(a*a-3*b*b) + e*b*(3*a*a-b*b)
	hu[5] = (n20-n02)*(a*a-b*b) + 4*n11*a*b
	hu[6] = e*a*(a*a-3*b*b) - c*b*(3*a*a-b*b)
	return hu, nil
}

// logScale maps h to -sign(h)*log10|h| and 0 to 0.
func logScale(h float64) float64 {
	if h == 0 || math.IsNaN(h) {
		return 0
	}
	s := 1.0
	if h < 0 {
		s = -1
	}
	return -s * math.Log10(math.Abs(h))
}
