package detector

import (
	"image"
	"sync"

	"github.com/nvr-ai/go-nutrition/features"
)

// Features computes the descriptors of one analysis image at most once, so
// detectors running concurrently can share them.
type Features struct {
	extractor *features.Extractor
	img       image.Image

	textureOnce sync.Once
	texture     features.TextureFeatures
	colorOnce   sync.Once
	color       features.ColorFeatures
	shapeOnce   sync.Once
	shape       features.ShapeFeatures
}

// NewFeatures creates a lazy descriptor set for img.
func NewFeatures(extractor *features.Extractor, img image.Image) *Features {
	if extractor == nil {
		extractor = features.NewExtractor(nil)
	}
	return &Features{extractor: extractor, img: img}
}

// Texture returns the texture descriptors.
func (f *Features) Texture() features.TextureFeatures {
	f.textureOnce.Do(func() { f.texture = f.extractor.Texture(f.img) })
	return f.texture
}

// Color returns the color descriptors.
func (f *Features) Color() features.ColorFeatures {
	f.colorOnce.Do(func() { f.color = f.extractor.Color(f.img) })
	return f.color
}

// Shape returns the contour descriptors.
func (f *Features) Shape() features.ShapeFeatures {
	f.shapeOnce.Do(func() { f.shape = f.extractor.Shape(f.img) })
	return f.shape
}

// featuresFor returns the shared descriptors of in, creating a private set
// when the caller supplied none.
func featuresFor(in Input, extractor *features.Extractor) *Features {
	if in.Features != nil {
		return in.Features
	}
	img := in.Analysis
	if img == nil {
		img = in.Image
	}
	return NewFeatures(extractor, img)
}
