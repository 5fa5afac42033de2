package common

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundingBoxIoU(t *testing.T) {
	tests := []struct {
		name     string
		a, b     BoundingBox
		expected float64
	}{
		{
			name:     "partial overlap",
			a:        BoundingBox{X1: 0, Y1: 0, X2: 100, Y2: 100},
			b:        BoundingBox{X1: 50, Y1: 50, X2: 150, Y2: 150},
			expected: 2500.0 / 17500.0,
		},
		{
			name:     "identical",
			a:        BoundingBox{X1: 10, Y1: 10, X2: 20, Y2: 20},
			b:        BoundingBox{X1: 10, Y1: 10, X2: 20, Y2: 20},
			expected: 1,
		},
		{
			name:     "disjoint",
			a:        BoundingBox{X1: 0, Y1: 0, X2: 10, Y2: 10},
			b:        BoundingBox{X1: 20, Y1: 20, X2: 30, Y2: 30},
			expected: 0,
		},
		{
			name:     "both empty",
			a:        BoundingBox{},
			b:        BoundingBox{},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, tt.a.IoU(&tt.b), 1e-9)
		})
	}
}

func TestBoundingBoxArea(t *testing.T) {
	box := BoxFromRect(image.Rect(40, 30, 0, 0))
	assert.Equal(t, 1200.0, box.Area())
	assert.Equal(t, image.Rect(0, 0, 40, 30), box.ToRect())

	inverted := BoundingBox{X1: 10, Y1: 10, X2: 0, Y2: 0}
	assert.Equal(t, 100.0, inverted.Area())
}

func TestParsePortionSize(t *testing.T) {
	size, ok := ParsePortionSize("large")
	assert.True(t, ok)
	assert.Equal(t, PortionLarge, size)

	_, ok = ParsePortionSize("enormous")
	assert.False(t, ok)
}

func TestDetectedFoodWithPortion(t *testing.T) {
	food := DetectedFood{Name: "rice"}
	next := food.WithPortion(Portion{Size: PortionSmall, Grams: 80, Confidence: 0.7})

	assert.True(t, food.EstimatedPortion.IsZero())
	assert.Equal(t, 0.7, next.PortionAccuracy)
	assert.Equal(t, PortionSmall, next.EstimatedPortion.Size)
}
