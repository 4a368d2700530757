package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"oct-review-service/internal/adapters"
	"oct-review-service/internal/analysis"
	"oct-review-service/internal/api/handlers"
	"oct-review-service/internal/config"
	"oct-review-service/internal/logger"
	"oct-review-service/internal/persistence"
	"oct-review-service/internal/services"
	"oct-review-service/internal/storage"
	"oct-review-service/internal/viewer"
)

const serviceName = "oct-review-service"

type options struct {
	ConfigPath string `short:"c" long:"config" description:"Path to a YAML config file"`
	Addr       string `long:"addr" description:"HTTP listen address, overrides the config"`
	LogLevel   string `long:"log_level" description:"debug, info, warn or error, overrides the config"`
}

func main() {
	var opts options
	if _, err := flags.ParseArgs(&opts, os.Args[1:]); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if opts.Addr != "" {
		cfg.HTTP.Addr = opts.Addr
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("service exited", zap.Error(err))
	}
}

func viewerOptions(cfg config.ViewerConfig) viewer.Options {
	return viewer.Options{
		Transform: viewer.TransformOptions{
			MinScale:   cfg.MinScale,
			MaxScale:   cfg.MaxScale,
			ZoomFactor: cfg.ZoomFactor,
			WheelStep:  cfg.WheelStep,
		},
		Layers:    viewer.DefaultLayers(),
		Opacity:   cfg.DefaultOpacity,
		MaxHeight: cfg.MaxViewportHeight,
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := persistence.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open patient store: %w", err)
	}
	defer func() {
		if err := closeRepo(); err != nil {
			log.Warn("closing patient store", zap.Error(err))
		}
	}()

	media, err := storage.New(cfg.Media)
	if err != nil {
		return fmt.Errorf("open media store: %w", err)
	}
	analyzer, err := analysis.New(cfg.Analysis, log)
	if err != nil {
		return fmt.Errorf("analysis client: %w", err)
	}
	queue := adapters.NewInMemoryQueueAdapter(log)

	patients := services.NewPatientService(repo, log)
	exams := services.NewExaminationService(patients, analyzer, media, log)
	reports := services.NewReportService(patients, media, queue, log)
	viewers := services.NewViewerService(patients, media, viewerOptions(cfg.Viewer), log)
	viewers.SetSessionTTL(cfg.Viewer.SessionTTL)
	reports.SetStatusTTL(cfg.Reports.StatusTTL)
	if err := reports.Start(ctx); err != nil {
		return err
	}
	go viewers.RunJanitor(ctx)
	go reports.RunJanitor(ctx)

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		BodyLimit:             cfg.HTTP.BodyLimitMB * 1024 * 1024,
		DisableStartupMessage: true,
	})
	handlers.RegisterRoutes(app,
		handlers.NewPatientHandler(patients, log),
		handlers.NewExaminationHandler(exams, log),
		handlers.NewReportHandler(reports, log),
		handlers.NewViewerHandler(viewers, log),
		handlers.NewMediaHandler(media, log),
	)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening",
			zap.String("addr", cfg.HTTP.Addr),
			zap.String("store", cfg.Store.Driver),
			zap.String("media", cfg.Media.Driver),
			zap.String("analysis", cfg.Analysis.Mode),
		)
		serveErr <- app.Listen(cfg.HTTP.Addr)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if err := reports.Stop(shutdownCtx); err != nil {
		log.Warn("stopping report service", zap.Error(err))
	}
	if err := queue.StopAll(shutdownCtx); err != nil {
		log.Warn("stopping queue consumers", zap.Error(err))
	}
	return nil
}
