package detector

import (
	"context"
	"time"

	"github.com/nvr-ai/go-nutrition/common"
	"github.com/nvr-ai/go-nutrition/config"
	"github.com/nvr-ai/go-nutrition/delegate"
	"github.com/nvr-ai/go-nutrition/images"
	"github.com/nvr-ai/go-nutrition/logging"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DelegateJPEGQuality is the quality of the JPEG sent to the backend.
const DelegateJPEGQuality = 90

// Delegate forwards the photo to an external recognizer.
type Delegate struct {
	backend delegate.Backend
	timeout time.Duration
	retries int
	backoff time.Duration
	budget  time.Duration
	logger  *zap.Logger
}

// NewDelegate wraps a backend. A nil backend makes the detector skip.
//
// Arguments:
// - backend: The external recognizer, or nil.
// - cfg: Per-attempt timeout, retry count, backoff and stage budget. A budget
//   outside (0, config.MaxDelegateBudget] is capped to the maximum.
// - logger: Logger for retries; nil disables logging.
//
// Returns:
// - *Delegate: The detector.
func NewDelegate(backend delegate.Backend, cfg config.DelegateConfig, logger *zap.Logger) *Delegate {
	budget := cfg.Budget
	if budget <= 0 || budget > config.MaxDelegateBudget {
		budget = config.MaxDelegateBudget
	}
	return &Delegate{
		backend: backend,
		timeout: cfg.Timeout,
		retries: max(cfg.Retries, 0),
		backoff: cfg.Backoff,
		budget:  budget,
		logger:  logging.Component(logger, "delegate_detector"),
	}
}

// Name implements Detector.
func (d *Delegate) Name() common.Method { return common.MethodDelegate }

// Weight implements Detector.
func (d *Delegate) Weight() float64 { return WeightDelegate }

// Timeout implements Timeouter. Attempts and backoffs share the stage budget.
func (d *Delegate) Timeout() time.Duration { return d.budget }

// Detect implements Detector.
func (d *Delegate) Detect(ctx context.Context, in Input) ([]common.Candidate, error) {
	if d.backend == nil {
		return nil, ErrSkipped
	}
	if in.Image == nil {
		return nil, errors.New("delegate detector: no image")
	}

	encoded, err := images.EncodeJPEG(in.Image, DelegateJPEGQuality)
	if err != nil {
		return nil, errors.Wrap(err, "encode delegate image")
	}
	bounds := in.Image.Bounds()
	req := delegate.Request{
		Image:           encoded,
		Width:           bounds.Dx(),
		Height:          bounds.Dy(),
		UserID:          in.UserID,
		Text:            in.Text,
		CulturalContext: in.CulturalContext,
	}

	ctx, cancel := context.WithTimeout(ctx, d.budget)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= d.retries; attempt++ {
		if attempt > 0 {
			if ctx.Err() != nil {
				break
			}
			d.logger.Debug("retrying delegate",
				zap.String("backend", d.backend.Name()),
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(lastErr, ctx.Err().Error())
			case <-time.After(d.backoff):
			}
		}

		candidates, err := d.attempt(ctx, req)
		if err == nil {
			return candidates, nil
		}
		lastErr = err
	}
	return nil, errors.Wrapf(lastErr, "delegate %s failed", d.backend.Name())
}

// attempt calls the backend once, bounded by the per-attempt timeout or the
// time left in the stage budget, whichever is shorter.
func (d *Delegate) attempt(ctx context.Context, req delegate.Request) ([]common.Candidate, error) {
	timeout := d.timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, errors.Wrap(context.DeadlineExceeded, "delegate budget exhausted")
		}
		if timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	candidates, err := d.backend.Detect(ctx, req)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		candidates[i].Method = common.MethodDelegate
	}
	return candidates, nil
}
