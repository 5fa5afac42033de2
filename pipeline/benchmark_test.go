package pipeline

import (
	"context"
	"testing"

	"github.com/nvr-ai/go-nutrition/common"
	"github.com/nvr-ai/go-nutrition/config"
	"github.com/nvr-ai/go-nutrition/detector"
)

// BenchmarkAnalyzeLocal runs the full pipeline with the built-in local
// detectors and no delegate backend.
func BenchmarkAnalyzeLocal(b *testing.B) {
	o := New(config.DefaultConfig(), Dependencies{}, nil)
	req := Request{Image: mealPNG(b), Text: "rice and dhal curry", MealType: "lunch"}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = o.Analyze(context.Background(), req)
	}
}

// BenchmarkAnalyzeStagesOnly isolates the stages after detection by using
// a fixed mock detector.
func BenchmarkAnalyzeStagesOnly(b *testing.B) {
	o := New(config.DefaultConfig(), Dependencies{Detectors: []detector.Detector{
		&MockDetector{method: common.MethodDelegate, weight: detector.WeightDelegate,
			candidates: []common.Candidate{{Name: "rice", Confidence: 0.9}, {Name: "dal", Confidence: 0.7}}},
	}}, nil)
	req := Request{Image: mealPNG(b)}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = o.Analyze(context.Background(), req)
	}
}

// BenchmarkFallback measures the undecodable-image path.
func BenchmarkFallback(b *testing.B) {
	o := New(config.DefaultConfig(), Dependencies{Detectors: []detector.Detector{}}, nil)
	req := Request{Image: []byte("not an image")}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = o.Analyze(context.Background(), req)
	}
}
