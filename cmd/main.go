package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/oralscan/internal/adapters/http/api"
	"github.com/okian/oralscan/internal/adapters/http/swagger"
	"github.com/okian/oralscan/internal/config"
	"github.com/okian/oralscan/internal/domain/imaging"
	"github.com/okian/oralscan/internal/domain/model"
	"github.com/okian/oralscan/pkg/logger"
	"github.com/okian/oralscan/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 30 * time.Second
	writeTimeout              = 60 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	recordCountInterval       = time.Minute
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Custom system metrics replace the default Go collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitWith(os.Stdout, logger.Format(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg); err != nil {
		log.Error(ctx, "service stopped with error", logger.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	labels, err := model.NewLabels(cfg.ClassNames)
	if err != nil {
		return err
	}
	layout, err := imaging.ParseLayout(cfg.InputLayout)
	if err != nil {
		return err
	}
	normalizer := imaging.NewNormalizer(imaging.WithSize(cfg.ImageSize), imaging.WithLayout(layout))

	runners, shutdownRuntime, err := loadRunners(ctx, cfg, labels, normalizer.Shape())
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownRuntime(); err != nil {
			log.Error(ctx, "onnx runtime shutdown failed", logger.Error(err))
		}
	}()

	c, err := build(ctx, cfg, labels, normalizer, runners)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Error(ctx, "resource cleanup failed", logger.Error(err))
		}
	}()

	go startMetricsTicker(ctx, metrics.RefreshInterval(), updateSystemMetrics)
	if sample := recordSampler(ctx, cfg, c.svc); sample != nil {
		go startMetricsTicker(ctx, recordCountInterval, sample)
	}

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)

	opts := []api.Option{
		api.WithMaxUploadBytes(cfg.MaxUploadBytes),
		api.WithLocation(cfg.Location()),
	}
	if cfg.JWTSecret != "" {
		opts = append(opts, api.WithAuthenticator(api.NewAuthenticator(cfg.JWTSecret)))
	} else {
		log.Warn(ctx, "jwt_secret not set; identity is taken from X-User-ID or user_id unverified")
	}
	api.NewServer(c.svc, opts...).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
