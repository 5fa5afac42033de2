package detector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nvr-ai/go-nutrition/common"
	"github.com/nvr-ai/go-nutrition/config"
	"github.com/nvr-ai/go-nutrition/logging"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Pool runs detectors on a bounded set of workers.
type Pool struct {
	workers      int
	localTimeout time.Duration
	logger       *zap.Logger
}

// NewPool creates a detector pool.
//
// Arguments:
// - cfg: Worker count and the default per-detector timeout.
// - logger: Logger for detector failures; nil disables logging.
//
// Returns:
// - *Pool: The pool.
func NewPool(cfg config.DetectorsConfig, logger *zap.Logger) *Pool {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		workers:      workers,
		localTimeout: cfg.LocalTimeout,
		logger:       logging.Component(logger, "detector"),
	}
}

type job struct {
	index    int
	detector Detector
}

// RunAll runs every detector against in and returns one Outcome per detector,
// in the order the detectors were given.
//
// Arguments:
// - ctx: Cancels all outstanding detectors.
// - in: The shared input.
// - detectors: The strategies to run.
//
// Returns:
// - []Outcome: One outcome per detector.
func (p *Pool) RunAll(ctx context.Context, in Input, detectors []Detector) []Outcome {
	outcomes := make([]Outcome, len(detectors))
	jobs := make(chan job, len(detectors))

	var wg sync.WaitGroup
	for w := 0; w < min(p.workers, len(detectors)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				outcomes[task.index] = p.run(ctx, in, task.detector)
			}
		}()
	}

	for i, d := range detectors {
		jobs <- job{index: i, detector: d}
	}
	close(jobs)
	wg.Wait()

	return outcomes
}

type detectResult struct {
	candidates []common.Candidate
	err        error
}

// run executes one detector under its timeout and converts any failure into a
// zero-weight outcome.
func (p *Pool) run(ctx context.Context, in Input, d Detector) Outcome {
	start := time.Now()
	out := Outcome{Method: d.Name()}

	timeout := p.localTimeout
	if t, ok := d.(Timeouter); ok && t.Timeout() > 0 {
		timeout = t.Timeout()
	}
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan detectResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- detectResult{err: errors.Errorf("panic: %s", fmt.Sprint(r))}
			}
		}()
		candidates, err := d.Detect(runCtx, in)
		done <- detectResult{candidates: candidates, err: err}
	}()

	var res detectResult
	select {
	case res = <-done:
	case <-runCtx.Done():
		res = detectResult{err: errors.Wrap(runCtx.Err(), "detector timed out")}
	}
	out.Elapsed = time.Since(start)

	if res.err != nil {
		out.Err = res.err
		if errors.Is(res.err, ErrSkipped) {
			p.logger.Debug("detector skipped", zap.String("method", string(d.Name())))
		} else {
			p.logger.Warn("detector failed",
				zap.String("method", string(d.Name())),
				zap.Duration("elapsed", out.Elapsed),
				zap.Error(res.err))
		}
		return out
	}

	out.Weight = d.Weight()
	out.Candidates = make([]common.Candidate, 0, len(res.candidates))
	for _, c := range res.candidates {
		if c.Method == "" {
			c.Method = d.Name()
		}
		out.Candidates = append(out.Candidates, c)
	}
	return out
}
