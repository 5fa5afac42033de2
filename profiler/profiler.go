// Package profiler - Per-request stage timing and process-wide timing and
// metric aggregates for the analysis pipeline.
package profiler

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/nvr-ai/go-nutrition/logging"
	"go.uber.org/zap"
)

// Profiler aggregates stage durations and custom metrics across requests.
//
// Aggregates keep min and max over the process lifetime and a mean over the
// last MaxSamples values.
type Profiler struct {
	reportInterval time.Duration
	maxSamples     int
	logger         *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	startTime time.Time
	running   bool

	stages  map[string]*TimeTracker
	metrics map[string]*MetricTracker
}

// TimeTracker tracks timing statistics for one stage.
type TimeTracker struct {
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// MetricTracker tracks statistics for one custom metric.
type MetricTracker struct {
	values []float64
	sum    float64
	min    float64
	max    float64
	count  int64
}

// Options configures the profiler.
type Options struct {
	// ReportInterval is how often Start logs a report (default: 1m).
	ReportInterval time.Duration
	// MaxSamples bounds the rolling window of each tracker (default: 600).
	MaxSamples int
}

// StageStats summarizes one stage, in seconds.
type StageStats struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

// MetricStats summarizes one custom metric.
type MetricStats struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

// Stats is a snapshot of the profiler.
type Stats struct {
	UptimeSeconds float64                `json:"uptime_seconds"`
	Goroutines    int                    `json:"goroutines"`
	HeapAlloc     uint64                 `json:"heap_alloc"`
	Stages        map[string]StageStats  `json:"stages"`
	Metrics       map[string]MetricStats `json:"metrics"`
}

// New creates a profiler.
//
// Arguments:
// - opts: Configuration options for the profiler.
// - logger: Logger for periodic reports; nil disables logging.
//
// Returns:
// - *Profiler: A configured profiler; reporting starts with Start.
func New(opts Options, logger *zap.Logger) *Profiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = time.Minute
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Profiler{
		reportInterval: opts.ReportInterval,
		maxSamples:     opts.MaxSamples,
		logger:         logging.Component(logger, "profiler"),
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
		stages:         make(map[string]*TimeTracker),
		metrics:        make(map[string]*MetricTracker),
	}
}

// Start begins periodic reporting. Calling it twice is a no-op.
func (p *Profiler) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-p.ctx.Done():
				return
			case <-ticker.C:
				p.Report()
			}
		}
	}()
}

// Stop ends periodic reporting and waits for the reporter to exit.
func (p *Profiler) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

// Record adds one stage duration.
func (p *Profiler) Record(stage string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, exists := p.stages[stage]
	if !exists {
		tracker = &TimeTracker{minTime: d, maxTime: d}
		p.stages[stage] = tracker
	}

	tracker.durations = append(tracker.durations, d)
	if len(tracker.durations) > p.maxSamples {
		tracker.totalTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}

	tracker.totalTime += d
	tracker.count++

	if d < tracker.minTime {
		tracker.minTime = d
	}
	if d > tracker.maxTime {
		tracker.maxTime = d
	}
}

// RecordMetric adds one value of a custom metric.
func (p *Profiler) RecordMetric(name string, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, exists := p.metrics[name]
	if !exists {
		tracker = &MetricTracker{min: value, max: value}
		p.metrics[name] = tracker
	}

	tracker.values = append(tracker.values, value)
	if len(tracker.values) > p.maxSamples {
		tracker.sum -= tracker.values[0]
		tracker.values = tracker.values[1:]
	}

	tracker.sum += value
	tracker.count++

	if value < tracker.min {
		tracker.min = value
	}
	if value > tracker.max {
		tracker.max = value
	}
}

// Stats returns a snapshot of every stage and metric.
func (p *Profiler) Stats() Stats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := Stats{
		UptimeSeconds: time.Since(p.startTime).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		HeapAlloc:     mem.HeapAlloc,
		Stages:        make(map[string]StageStats, len(p.stages)),
		Metrics:       make(map[string]MetricStats, len(p.metrics)),
	}
	for name, t := range p.stages {
		if len(t.durations) == 0 {
			continue
		}
		stats.Stages[name] = StageStats{
			Count: t.count,
			Min:   t.minTime.Seconds(),
			Max:   t.maxTime.Seconds(),
			Mean:  (t.totalTime / time.Duration(len(t.durations))).Seconds(),
		}
	}
	for name, m := range p.metrics {
		if len(m.values) == 0 {
			continue
		}
		stats.Metrics[name] = MetricStats{
			Count: m.count,
			Min:   m.min,
			Max:   m.max,
			Mean:  m.sum / float64(len(m.values)),
		}
	}
	return stats
}

// Report logs the current stats, one line per stage.
func (p *Profiler) Report() {
	stats := p.Stats()

	names := make([]string, 0, len(stats.Stages))
	for name := range stats.Stages {
		names = append(names, name)
	}
	sort.Strings(names)

	p.logger.Info("profiler report",
		zap.Duration("uptime", time.Duration(stats.UptimeSeconds*float64(time.Second)).Truncate(time.Millisecond)),
		zap.Int("goroutines", stats.Goroutines),
		zap.Uint64("heap_alloc", stats.HeapAlloc))
	for _, name := range names {
		s := stats.Stages[name]
		p.logger.Info("stage timing",
			zap.String("stage", name),
			zap.Int64("count", s.Count),
			zap.Float64("mean", s.Mean),
			zap.Float64("min", s.Min),
			zap.Float64("max", s.Max))
	}
}

// StageTimer records the stage durations of a single request and forwards
// them to a Profiler. A nil profiler keeps the durations local.
type StageTimer struct {
	profiler *Profiler

	mu        sync.Mutex
	durations map[string]time.Duration
}

// NewTimer creates a StageTimer reporting to p.
func (p *Profiler) NewTimer() *StageTimer {
	return NewStageTimer(p)
}

// NewStageTimer creates a StageTimer reporting to p, which may be nil.
func NewStageTimer(p *Profiler) *StageTimer {
	return &StageTimer{profiler: p, durations: make(map[string]time.Duration)}
}

// Start begins timing a stage.
//
// Arguments:
// - stage: The stage name.
//
// Returns:
// - func(): Call when the stage completes.
//
// @example
//
//	done := timer.Start("decode")
//	img, _, err := images.Decode(data)
//	done()
func (t *StageTimer) Start(stage string) func() {
	start := time.Now()
	return func() {
		t.Record(stage, time.Since(start))
	}
}

// Record adds a duration to a stage. Repeated stages accumulate.
func (t *StageTimer) Record(stage string, d time.Duration) {
	t.mu.Lock()
	t.durations[stage] += d
	t.mu.Unlock()

	if t.profiler != nil {
		t.profiler.Record(stage, d)
	}
}

// Seconds returns every recorded stage in seconds.
func (t *StageTimer) Seconds() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]float64, len(t.durations))
	for stage, d := range t.durations {
		out[stage] = d.Seconds()
	}
	return out
}
