package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/nvr-ai/go-nutrition/config"
	"github.com/nvr-ai/go-nutrition/controller"
	"github.com/nvr-ai/go-nutrition/logging"
	"github.com/nvr-ai/go-nutrition/pipeline"
	"github.com/nvr-ai/go-nutrition/util"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func main() {
	var (
		envFile      string
		imagePath    string
		dirPath      string
		serve        bool
		historyUser  string
		historyLimit int
		userID       string
		mealType     string
		text         string
		restrictions string
		culture      string
	)
	flag.StringVar(&envFile, "env", ".env", "Path to .env file (skipped when missing)")
	flag.StringVar(&imagePath, "image", "", "Analyze one image file and print the result as JSON")
	flag.StringVar(&dirPath, "dir", "", "Analyze every image in a directory, printing one JSON result per line")
	flag.BoolVar(&serve, "serve", false, "Start the HTTP server")
	flag.StringVar(&historyUser, "history", "", "Print stored analyses of a user")
	flag.IntVar(&historyLimit, "limit", 20, "Maximum number of history entries")
	flag.StringVar(&userID, "user", "cli", "User id for -image")
	flag.StringVar(&mealType, "meal", "snack", "Meal type for -image")
	flag.StringVar(&text, "text", "", "Meal description for -image")
	flag.StringVar(&restrictions, "restrictions", "", "Comma separated dietary restrictions for -image")
	flag.StringVar(&culture, "culture", "", "Cultural context for -image")
	flag.Parse()

	cfg, err := config.Load(envFile)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := pipeline.NewService(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("create service", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := svc.Close(closeCtx); err != nil {
			logger.Warn("close service", zap.Error(err))
		}
	}()

	newRequest := func() pipeline.Request {
		return pipeline.Request{
			UserID:              userID,
			MealType:            mealType,
			Text:                text,
			DietaryRestrictions: splitList(restrictions),
			CulturalContext:     culture,
		}
	}

	switch {
	case serve:
		err = runServer(ctx, cfg, svc, logger)
	case imagePath != "":
		err = analyzeFile(ctx, svc, imagePath, cfg.Server.MaxUploadBytes, newRequest())
	case dirPath != "":
		err = analyzeDir(ctx, svc, dirPath, cfg.Server.MaxUploadBytes, newRequest(), logger)
	case historyUser != "":
		err = printHistory(ctx, svc, historyUser, historyLimit)
	default:
		flag.Usage()
		return
	}
	if err != nil {
		logger.Error("command failed", zap.Error(err))
	}
}

func runServer(ctx context.Context, cfg config.Config, svc *pipeline.Service, logger *zap.Logger) error {
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	opts := controller.Options{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Profiler:       svc.Profiler,
	}
	if svc.History != nil {
		opts.History = svc.History
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: controller.New(svc, opts, logger).Router(),
	}

	svc.Profiler.Start()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return errors.Wrap(srv.Shutdown(shutdownCtx), "shutdown")
}

func analyzeFile(ctx context.Context, svc *pipeline.Service, path string, maxBytes int64, req pipeline.Request) error {
	f, err := util.LoadImageFile(path, maxBytes)
	if err != nil {
		return err
	}
	req.Image = f.Data
	return printJSON(svc.Analyze(ctx, req))
}

func analyzeDir(ctx context.Context, svc *pipeline.Service, dir string, maxBytes int64, req pipeline.Request, logger *zap.Logger) error {
	files, err := util.LoadDirectoryImageFiles(dir, maxBytes)
	if err != nil {
		return err
	}
	logger.Info("analyzing directory", zap.String("dir", dir), zap.Int("images", len(files)))

	enc := json.NewEncoder(os.Stdout)
	for _, f := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		req.Image = f.Data
		if err := enc.Encode(svc.Analyze(ctx, req)); err != nil {
			return errors.Wrap(err, "encode output")
		}
	}
	return nil
}

func printHistory(ctx context.Context, svc *pipeline.Service, userID string, limit int) error {
	if svc.History == nil {
		return errors.New("history requires NUTRI_SQLITE_PATH")
	}
	records, err := svc.History.ListByUser(ctx, userID, limit)
	if err != nil {
		return err
	}
	docs := make([]json.RawMessage, 0, len(records))
	for _, rec := range records {
		docs = append(docs, json.RawMessage(rec.Document))
	}
	return printJSON(docs)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "encode output")
}

func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
