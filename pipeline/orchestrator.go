// Package pipeline - Sequences the analysis stages for one meal photo, owns
// request ids, timing and the top-level fallback, and feeds running stats and
// persistence.
package pipeline

import (
	"context"
	"encoding/json"
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/nvr-ai/go-nutrition/catalog"
	"github.com/nvr-ai/go-nutrition/common"
	"github.com/nvr-ai/go-nutrition/config"
	"github.com/nvr-ai/go-nutrition/delegate"
	"github.com/nvr-ai/go-nutrition/detector"
	"github.com/nvr-ai/go-nutrition/features"
	"github.com/nvr-ai/go-nutrition/fusion"
	"github.com/nvr-ai/go-nutrition/images"
	"github.com/nvr-ai/go-nutrition/insights"
	"github.com/nvr-ai/go-nutrition/logging"
	"github.com/nvr-ai/go-nutrition/nutrition"
	"github.com/nvr-ai/go-nutrition/portion"
	"github.com/nvr-ai/go-nutrition/preprocess"
	"github.com/nvr-ai/go-nutrition/profiler"
	"github.com/nvr-ai/go-nutrition/quality"
	"github.com/nvr-ai/go-nutrition/store"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Stage names recorded in StageTimings.
const (
	StageDecode     = "decode"
	StagePreprocess = "preprocess"
	StageDetect     = "detect"
	StageValidate   = "validate"
	StagePortions   = "portions"
	StageNutrition  = "nutrition"
	StageQuality    = "quality"
	StageInsights   = "insights"
)

// Enqueuer accepts records for asynchronous persistence.
type Enqueuer interface {
	Enqueue(rec store.Record) bool
}

// Dependencies are the collaborators of an Orchestrator. Nil fields get
// defaults: the built-in catalog, no remote tier, no delegate backend, no
// persistence and no process profiler.
type Dependencies struct {
	Catalog  catalog.Catalog
	Remote   catalog.Catalog
	Backend  delegate.Backend
	Sink     Enqueuer
	Profiler *profiler.Profiler
	// Detectors replaces the standard four detectors.
	Detectors []detector.Detector
}

// Orchestrator runs the analysis pipeline.
type Orchestrator struct {
	cfg          config.Config
	preprocessor *preprocess.Preprocessor
	extractor    *features.Extractor
	pool         *detector.Pool
	detectors    []detector.Detector
	fuser        *fusion.Fuser
	portions     *portion.Estimator
	aggregator   *nutrition.Aggregator
	scorer       *quality.Scorer
	insights     *insights.Generator
	stats        *RunningStats
	profiler     *profiler.Profiler
	sink         Enqueuer
	logger       *zap.Logger
	pipeline     []stage

	now   func() time.Time
	newID func() string
}

// New creates an Orchestrator.
//
// Arguments:
// - cfg: The service configuration.
// - deps: Collaborators; zero values get defaults.
// - logger: The root logger; nil disables logging.
//
// Returns:
// - *Orchestrator: A ready orchestrator.
func New(cfg config.Config, deps Dependencies, logger *zap.Logger) *Orchestrator {
	logger = logging.OrNop(logger)
	extractor := features.NewExtractor(logger)

	local := deps.Catalog
	if local == nil {
		local = catalog.NewDefault()
	}

	detectors := deps.Detectors
	if detectors == nil {
		detectors = []detector.Detector{
			detector.NewDelegate(deps.Backend, cfg.Delegate, logger),
			detector.NewHeuristic(extractor, cfg.Service.DefaultCulturalContext, logger),
			detector.NewKeyword(),
			detector.NewPattern(extractor),
		}
	}

	o := &Orchestrator{
		cfg:          cfg,
		preprocessor: preprocess.New(cfg.Preprocess, logger),
		extractor:    extractor,
		pool:         detector.NewPool(cfg.Detectors, logger),
		detectors:    detectors,
		fuser:        fusion.New(cfg.Service.QualityFloor, fusion.Chain(local, deps.Remote), logger),
		portions:     portion.New(logger),
		aggregator:   nutrition.New(logger),
		scorer:       quality.New(logger),
		insights:     insights.New(logger),
		stats:        &RunningStats{},
		profiler:     deps.Profiler,
		sink:         deps.Sink,
		logger:       logging.Component(logger, "pipeline"),
		now:          time.Now,
		newID:        func() string { return uuid.New().String() },
	}
	o.pipeline = o.stages()
	return o
}

// Stats returns the running stats snapshot.
func (o *Orchestrator) Stats() Stats {
	return o.stats.Snapshot()
}

// analysisContext accumulates stage outputs for one request.
type analysisContext struct {
	req       Request
	mealType  MealType
	culture   string
	decoded   image.Image
	prepared  preprocess.Result
	analysis  image.Image
	outcomes  []detector.Outcome
	foods     []common.DetectedFood
	nutrition nutrition.Analysis
	quality   quality.Analysis
	insights  insights.Insights
}

type stage struct {
	name string
	run  func(ctx context.Context, ac *analysisContext) error
}

func (o *Orchestrator) stages() []stage {
	return []stage{
		{StageDecode, o.decode},
		{StagePreprocess, o.preprocess},
		{StageDetect, o.detect},
		{StageValidate, o.validate},
		{StagePortions, o.estimatePortions},
		{StageNutrition, o.aggregate},
		{StageQuality, o.score},
		{StageInsights, o.generateInsights},
	}
}

// Analyze runs every stage for one request. It never fails: errors and panics
// escaping a stage produce a hardcore_fallback result.
//
// Arguments:
// - ctx: Bounds detector and catalog I/O.
// - req: The request.
//
// Returns:
// - *AnalysisResult: The result, also folded into the running stats and
// queued for persistence.
func (o *Orchestrator) Analyze(ctx context.Context, req Request) *AnalysisResult {
	start := o.now()
	id := o.newID()
	timer := profiler.NewStageTimer(o.profiler)

	ac := &analysisContext{req: req}
	ac.mealType, ac.culture = o.normalize(req)

	logger := o.logger.With(zap.String("analysis_id", id), zap.String("user_id", req.UserID))

	var res *AnalysisResult
	if err := o.runStages(ctx, ac, timer); err != nil {
		logger.Error("analysis failed", zap.Error(err))
		res = o.fallback(ac, err)
	} else {
		res = o.assemble(ac)
	}

	res.AnalysisID = id
	res.UserID = req.UserID
	res.Timestamp = start
	res.StageTimings = timer.Seconds()
	res.ProcessingTimeSeconds = o.now().Sub(start).Seconds()

	o.stats.Update(res.AnalysisQuality.OverallConfidence, res.ProcessingTimeSeconds)
	if o.profiler != nil {
		o.profiler.RecordMetric("overall_confidence", res.AnalysisQuality.OverallConfidence)
	}
	o.persist(res, logger)

	logger.Info("analysis complete",
		zap.String("method", res.Method),
		zap.Int("foods", len(res.DetectedFoods)),
		zap.Float64("confidence", res.AnalysisQuality.OverallConfidence),
		zap.Float64("seconds", res.ProcessingTimeSeconds))
	return res
}

func (o *Orchestrator) normalize(req Request) (MealType, string) {
	mealType, ok := ParseMealType(req.MealType)
	if !ok {
		o.logger.Warn("invalid meal type, using snack", zap.String("meal_type", req.MealType))
	}
	culture := catalog.NormalizeKey(req.CulturalContext)
	if culture == "" {
		culture = o.cfg.Service.DefaultCulturalContext
	}
	return mealType, culture
}

func (o *Orchestrator) runStages(ctx context.Context, ac *analysisContext, timer *profiler.StageTimer) (err error) {
	current := ""
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("stage %s panicked: %v", current, r)
		}
	}()

	for _, s := range o.pipeline {
		current = s.name
		done := timer.Start(s.name)
		err = s.run(ctx, ac)
		done()
		if err != nil {
			return errors.Wrapf(err, "stage %s", s.name)
		}
	}
	return nil
}

func (o *Orchestrator) decode(_ context.Context, ac *analysisContext) error {
	img, format, err := images.Decode(ac.req.Image)
	if err != nil {
		return err
	}
	o.logger.Debug("decoded image",
		zap.String("format", string(format)),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()))
	ac.decoded = img
	return nil
}

func (o *Orchestrator) preprocess(_ context.Context, ac *analysisContext) error {
	ac.prepared = o.preprocessor.Process(ac.decoded)
	ac.analysis = images.Downscale(ac.prepared.Image, o.cfg.Preprocess.AnalysisMaxSide)
	return nil
}

func (o *Orchestrator) detect(ctx context.Context, ac *analysisContext) error {
	in := detector.Input{
		Image:           ac.prepared.Image,
		Analysis:        ac.analysis,
		Original:        ac.req.Image,
		UserID:          ac.req.UserID,
		Text:            ac.req.Text,
		CulturalContext: ac.culture,
		Features:        detector.NewFeatures(o.extractor, ac.analysis),
	}
	ac.outcomes = o.pool.RunAll(ctx, in, o.detectors)
	return nil
}

func (o *Orchestrator) validate(ctx context.Context, ac *analysisContext) error {
	ac.foods = o.fuser.Fuse(ctx, ac.outcomes)
	return nil
}

func (o *Orchestrator) estimatePortions(_ context.Context, ac *analysisContext) error {
	ac.foods = o.portions.Estimate(ac.foods, ac.req.ReferenceObjects)
	return nil
}

func (o *Orchestrator) aggregate(_ context.Context, ac *analysisContext) error {
	ac.nutrition = o.aggregator.Aggregate(ac.foods, ac.req.DietaryRestrictions)
	return nil
}

func (o *Orchestrator) score(_ context.Context, ac *analysisContext) error {
	weights := make([]float64, len(ac.outcomes))
	for i, out := range ac.outcomes {
		weights[i] = out.Weight
	}
	ac.quality = o.scorer.Score(weights, ac.foods, ac.prepared.Quality)
	return nil
}

func (o *Orchestrator) generateInsights(_ context.Context, ac *analysisContext) error {
	ac.insights = o.insights.Generate(ac.nutrition, ac.foods, ac.culture)
	return nil
}

func (o *Orchestrator) assemble(ac *analysisContext) *AnalysisResult {
	return &AnalysisResult{
		DetectedFoods:     ac.foods,
		NutritionAnalysis: ac.nutrition,
		AnalysisQuality:   ac.quality,
		Insights:          ac.insights,
		MealType:          ac.mealType,
		TextDescription:   ac.req.Text,
		CulturalContext:   ac.culture,
		ImageQuality:      ac.prepared.Quality,
		Method:            MethodEnsemble,
	}
}

func (o *Orchestrator) fallback(ac *analysisContext, err error) *AnalysisResult {
	return &AnalysisResult{
		DetectedFoods:     []common.DetectedFood{},
		NutritionAnalysis: nutrition.Empty(),
		AnalysisQuality: quality.Analysis{
			OverallConfidence: FallbackConfidence,
			DetectionAccuracy: FallbackConfidence,
			PortionAccuracy:   FallbackConfidence,
			NutritionAccuracy: FallbackConfidence,
			Recommendations:   []string{quality.RecommendManualCheck},
			Warnings:          []string{err.Error()},
		},
		Insights:        insights.Generic(),
		MealType:        ac.mealType,
		TextDescription: ac.req.Text,
		CulturalContext: ac.culture,
		Method:          MethodFallback,
		Error:           err.Error(),
	}
}

func (o *Orchestrator) persist(res *AnalysisResult, logger *zap.Logger) {
	if o.sink == nil {
		return
	}
	doc, err := json.Marshal(res)
	if err != nil {
		logger.Warn("encode result for persistence", zap.Error(err))
		return
	}
	o.sink.Enqueue(store.Record{
		ID:         res.AnalysisID,
		UserID:     res.UserID,
		CreatedAt:  res.Timestamp,
		Method:     res.Method,
		Confidence: res.AnalysisQuality.OverallConfidence,
		Document:   doc,
	})
}
