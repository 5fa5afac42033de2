package portion

import (
	"math"
	"testing"

	"github.com/nvr-ai/go-nutrition/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucket(t *testing.T) {
	tests := []struct {
		volume   float64
		expected common.PortionSize
	}{
		{0, common.PortionSmall},
		{150, common.PortionSmall},
		{150.1, common.PortionMedium},
		{400, common.PortionMedium},
		{401, common.PortionLarge},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Bucket(tt.volume), "volume %v", tt.volume)
	}
}

func TestGramsFor(t *testing.T) {
	tests := []struct {
		name     string
		food     string
		size     common.PortionSize
		expected float64
	}{
		{"rice small", "rice", common.PortionSmall, 80},
		{"kottu large", "Kottu", common.PortionLarge, 400},
		{"hoppers medium", "hoppers", common.PortionMedium, 80},
		{"contained key", "fried_rice", common.PortionMedium, 150},
		{"longest contained key", "chicken_curry", common.PortionLarge, 180},
		{"generic small", "pizza", common.PortionSmall, 50},
		{"generic large", "pizza", common.PortionLarge, 200},
		{"unknown bucket is medium", "dal", "", 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GramsFor(tt.food, tt.size))
		})
	}
}

func TestPixelsPerCM(t *testing.T) {
	ppcm, ok := PixelsPerCM(nil)
	assert.False(t, ok)
	assert.Equal(t, DefaultPixelsPerCM, ppcm)

	ppcm, ok = PixelsPerCM([]Reference{
		{Kind: "tray", PixelExtent: 100},
		{Kind: ReferencePlate, PixelExtent: 0},
		{Kind: ReferenceBowl, PixelExtent: 300},
	})
	require.True(t, ok)
	assert.InDelta(t, 20.0, ppcm, 1e-9)

	ppcm, ok = PixelsPerCM([]Reference{{Kind: "PLATE", PixelExtent: 520}})
	require.True(t, ok)
	assert.InDelta(t, 20.0, ppcm, 1e-9)
}

func TestEstimateAreaBuckets(t *testing.T) {
	e := New(nil)

	foods := []common.DetectedFood{
		// 100x100 px -> 100 cm² -> 200 ml
		{Name: "rice", BBox: &common.BoundingBox{X2: 100, Y2: 100}},
		// 50x50 px -> 25 cm² -> 50 ml
		{Name: "curry", BBox: &common.BoundingBox{X2: 50, Y2: 50}},
		// 200x200 px -> 400 cm² -> 800 ml
		{Name: "kottu", BBox: &common.BoundingBox{X2: 200, Y2: 200}},
		// default area 10000 px -> medium
		{Name: "pizza"},
	}

	out := e.Estimate(foods, nil)
	require.Len(t, out, 4)

	expected := []struct {
		size  common.PortionSize
		grams float64
	}{
		{common.PortionMedium, 150},
		{common.PortionSmall, 60},
		{common.PortionLarge, 400},
		{common.PortionMedium, 100},
	}
	for i, exp := range expected {
		p := out[i].EstimatedPortion
		assert.Equal(t, exp.size, p.Size, out[i].Name)
		assert.Equal(t, exp.grams, p.Grams, out[i].Name)
		assert.Equal(t, common.MethodAreaEstimate, p.Method)
		assert.Equal(t, EstimateConfidence, p.Confidence)
		assert.Equal(t, EstimateConfidence, out[i].PortionAccuracy)
	}

	// inputs untouched
	assert.True(t, foods[0].EstimatedPortion.IsZero())
}

func TestEstimateWithReference(t *testing.T) {
	e := New(nil)
	food := common.DetectedFood{Name: "rice", BBox: &common.BoundingBox{X2: 100, Y2: 100}}

	// plate 26 cm across 130 px: 5 px/cm, so 10000 px² is 400 cm² and 800 ml.
	out := e.Estimate([]common.DetectedFood{food}, []Reference{{Kind: ReferencePlate, PixelExtent: 130}})
	assert.Equal(t, common.PortionLarge, out[0].EstimatedPortion.Size)
	assert.Equal(t, 250.0, out[0].EstimatedPortion.Grams)

	// bowl 15 cm across 600 px: 40 px/cm, so 10000 px² is 6.25 cm² and 12.5 ml.
	out = e.Estimate([]common.DetectedFood{food}, []Reference{{Kind: ReferenceBowl, PixelExtent: 600}})
	assert.Equal(t, common.PortionSmall, out[0].EstimatedPortion.Size)
	assert.Equal(t, 80.0, out[0].EstimatedPortion.Grams)
}

func TestEstimateKeepsExplicit(t *testing.T) {
	e := New(nil)
	explicit := Explicit("dal", common.PortionLarge)
	food := common.DetectedFood{Name: "dal", EstimatedPortion: explicit, BBox: &common.BoundingBox{X2: 10, Y2: 10}}

	out := e.Estimate([]common.DetectedFood{food}, nil)
	assert.Equal(t, explicit, out[0].EstimatedPortion)
	assert.Equal(t, 150.0, out[0].EstimatedPortion.Grams)
	assert.Equal(t, ExplicitConfidence, out[0].PortionAccuracy)
}

func TestEstimateFallback(t *testing.T) {
	e := New(nil)
	foods := []common.DetectedFood{
		{Name: "rice", BBox: &common.BoundingBox{X1: 10, Y1: 10, X2: 10, Y2: 50}},
		{Name: "curry", BBox: &common.BoundingBox{X2: math.NaN(), Y2: 10}},
	}

	out := e.Estimate(foods, nil)
	for _, f := range out {
		assert.Equal(t, Fallback(), f.EstimatedPortion, f.Name)
		assert.Equal(t, FallbackConfidence, f.PortionAccuracy)
	}
}

func TestEstimateEmpty(t *testing.T) {
	out := New(nil).Estimate(nil, nil)
	assert.Empty(t, out)
}
