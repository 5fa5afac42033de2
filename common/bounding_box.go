package common

import (
	"fmt"
	"image"
	"math"
)

// BoundingBox is an axis-aligned region in pixel coordinates of the analysed
// image. X2 and Y2 are exclusive, like image.Rectangle.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// BoxFromRect converts an image.Rectangle into a BoundingBox.
func BoxFromRect(r image.Rectangle) *BoundingBox {
	r = r.Canon()
	return &BoundingBox{
		X1: float64(r.Min.X),
		Y1: float64(r.Min.Y),
		X2: float64(r.Max.X),
		Y2: float64(r.Max.Y),
	}
}

func (b *BoundingBox) String() string {
	return fmt.Sprintf("(%.1f, %.1f), (%.1f, %.1f)", b.X1, b.Y1, b.X2, b.Y2)
}

// ToRect converts the bounding box to an image.Rectangle.
//
// This won't be entirely precise due to conversion to integral rectangles,
// but it is only used for cropping and overlap estimates.
//
// Returns:
// - An image.Rectangle with canonicalized coordinates.
//
// @example
// box := BoundingBox{X1: 100.5, Y1: 100.5, X2: 200.5, Y2: 300.5}
// rect := box.ToRect() // (100,100)-(200,300)
func (b *BoundingBox) ToRect() image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2)).Canon()
}

// Width returns the horizontal extent of the box, never negative.
func (b *BoundingBox) Width() float64 {
	return math.Abs(b.X2 - b.X1)
}

// Height returns the vertical extent of the box, never negative.
func (b *BoundingBox) Height() float64 {
	return math.Abs(b.Y2 - b.Y1)
}

// Area returns the area of the box in square pixels.
//
// @example
// box := BoundingBox{X1: 0, Y1: 0, X2: 100, Y2: 50}
// area := box.Area() // 5000
func (b *BoundingBox) Area() float64 {
	return b.Width() * b.Height()
}

// Intersection calculates the intersection area between two bounding boxes.
//
// Arguments:
// - other: The other bounding box to calculate intersection with.
//
// Returns:
// - The area of intersection in square pixels.
//
// @example
// box1 := BoundingBox{X1: 0, Y1: 0, X2: 100, Y2: 100}
// box2 := BoundingBox{X1: 50, Y1: 50, X2: 150, Y2: 150}
// area := box1.Intersection(&box2) // 2500 (50x50 overlap)
func (b *BoundingBox) Intersection(other *BoundingBox) float64 {
	ix1 := math.Max(math.Min(b.X1, b.X2), math.Min(other.X1, other.X2))
	iy1 := math.Max(math.Min(b.Y1, b.Y2), math.Min(other.Y1, other.Y2))
	ix2 := math.Min(math.Max(b.X1, b.X2), math.Max(other.X1, other.X2))
	iy2 := math.Min(math.Max(b.Y1, b.Y2), math.Max(other.Y1, other.Y2))
	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}
	return (ix2 - ix1) * (iy2 - iy1)
}

// IoU calculates the Intersection over Union between two bounding boxes.
//
// Returns:
// - The IoU value between 0 and 1, 0 when both boxes are empty.
//
// @example
// box1 := BoundingBox{X1: 0, Y1: 0, X2: 100, Y2: 100}
// box2 := BoundingBox{X1: 50, Y1: 50, X2: 150, Y2: 150}
// iou := box1.IoU(&box2) // ~0.143 (2500/17500)
func (b *BoundingBox) IoU(other *BoundingBox) float64 {
	inter := b.Intersection(other)
	union := b.Area() + other.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
