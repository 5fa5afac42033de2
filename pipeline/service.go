package pipeline

import (
	"context"

	"github.com/nvr-ai/go-nutrition/catalog"
	"github.com/nvr-ai/go-nutrition/config"
	"github.com/nvr-ai/go-nutrition/delegate"
	"github.com/nvr-ai/go-nutrition/logging"
	"github.com/nvr-ai/go-nutrition/profiler"
	"github.com/nvr-ai/go-nutrition/store"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Service is an Orchestrator together with the resources built for it from
// configuration.
type Service struct {
	*Orchestrator

	Profiler *profiler.Profiler
	History  *store.SQLiteSink

	async  *store.AsyncSink
	logger *zap.Logger
}

// NewService wires the catalog tiers, delegate backend, persistence and
// profiler described by cfg.
//
// Arguments:
// - ctx: Used while loading backend credentials.
// - cfg: The validated configuration.
// - logger: The root logger; nil disables logging.
//
// Returns:
// - *Service: The service; release it with Close.
// - error: An error if the catalog file, backend or database cannot be set up.
func NewService(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Service, error) {
	logger = logging.OrNop(logger)

	local := catalog.NewDefault()
	if cfg.Catalog.Path != "" {
		n, err := local.LoadJSON(cfg.Catalog.Path)
		if err != nil {
			return nil, errors.Wrap(err, "load catalog overrides")
		}
		logger.Info("catalog overrides loaded", zap.String("path", cfg.Catalog.Path), zap.Int("records", n))
	}

	var remote catalog.Catalog
	if cfg.Catalog.RemoteURL != "" {
		remote = catalog.NewRemote(cfg.Catalog.RemoteURL, cfg.Catalog.RemoteAppID, cfg.Catalog.RemoteAppKey,
			cfg.Catalog.RemoteTimeout, logger)
	}

	backend, err := delegate.New(ctx, cfg.Delegate, local.Keys(), logger)
	if err != nil {
		return nil, errors.Wrap(err, "create delegate backend")
	}

	s := &Service{
		Profiler: profiler.New(profiler.Options{}, logger),
		logger:   logging.Component(logger, "service"),
	}

	deps := Dependencies{
		Catalog:  local,
		Remote:   remote,
		Backend:  backend,
		Profiler: s.Profiler,
	}
	if cfg.Store.SQLitePath != "" {
		s.History, err = store.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, errors.Wrap(err, "open result store")
		}
		s.async = store.NewAsync(s.History, cfg.Store.QueueSize, logger)
		deps.Sink = s.async
	}

	s.Orchestrator = New(cfg, deps, logger)

	backendName := delegate.BackendNone
	if backend != nil {
		backendName = backend.Name()
	}
	s.logger.Info("service ready",
		zap.String("delegate", backendName),
		zap.Bool("remote_catalog", remote != nil),
		zap.Bool("persistence", s.History != nil))
	return s, nil
}

// Close drains pending writes, stops the profiler and closes the database.
func (s *Service) Close(ctx context.Context) error {
	s.Profiler.Stop()

	var firstErr error
	if s.async != nil {
		if err := s.async.Close(ctx); err != nil {
			firstErr = errors.Wrap(err, "drain persistence queue")
		}
	}
	if s.History != nil {
		if err := s.History.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "close result store")
		}
	}
	return firstErr
}
