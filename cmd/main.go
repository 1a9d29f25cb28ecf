package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/stemai/internal/adapters/audiofile"
	"github.com/okian/stemai/internal/adapters/demucs"
	"github.com/okian/stemai/internal/adapters/http/api"
	"github.com/okian/stemai/internal/adapters/http/site"
	"github.com/okian/stemai/internal/adapters/http/swagger"
	"github.com/okian/stemai/internal/adapters/repository"
	app "github.com/okian/stemai/internal/app"
	"github.com/okian/stemai/internal/config"
	"github.com/okian/stemai/internal/domain/separation"
	"github.com/okian/stemai/pkg/logger"
	"github.com/okian/stemai/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants. Uploads and stem downloads are large, so
// body timeouts are generous.
const (
	readTimeout               = 5 * time.Minute
	writeTimeout              = 5 * time.Minute
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitWith(os.Stdout, cfg.LogFormat); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := buildService(ctx, cfg, loggerInstance)
	if err != nil {
		loggerInstance.Error(ctx, "failed to build service", logger.Error(err))
		os.Exit(1)
	}
	if err := svc.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		os.Exit(1)
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "service shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// buildService wires the configured separator, store and decoder into a
// service. The service is not started.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, error) {
	handle, err := newSeparator(cfg, log)
	if err != nil {
		return nil, err
	}

	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithStemLabels(cfg.StemLabels),
		app.WithSeparator(handle),
		app.WithDecoder(audiofile.NewDecoder(
			audiofile.WithFFmpeg(cfg.FFmpegBin),
			audiofile.WithSampleRate(cfg.SampleRate),
			audiofile.WithLogger(log.Named("audiofile")),
		)),
		app.WithUploadDir(cfg.UploadDir),
		app.WithOutputDir(cfg.OutputDir),
		app.WithMaxUploadBytes(cfg.MaxUploadBytes()),
		app.WithMaxJobList(cfg.MaxJobList),
	}

	if cfg.MongoURI != "" {
		store, err := repository.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("connect job store: %w", err)
		}
		log.Info(ctx, "using MongoDB job store", logger.String("database", cfg.MongoDatabase))
		opts = append(opts, app.WithStore(store))
	}

	return app.New(opts...), nil
}

// newSeparator returns a lazily initialized handle for the configured backend.
func newSeparator(cfg *config.Config, log logger.Logger) (*separation.Handle, error) {
	switch cfg.Separator {
	case config.SeparatorSimulated:
		labels := cfg.StemLabels
		simOpts := []separation.SimulatedOption{
			separation.WithGains(cfg.SimulatedGains, 0),
			separation.WithLatencyRange(
				time.Duration(cfg.SimulatedLatencyMinMS)*time.Millisecond,
				time.Duration(cfg.SimulatedLatencyMaxMS)*time.Millisecond,
			),
		}
		return separation.NewHandle(func(context.Context) (separation.Separator, error) {
			return separation.NewSimulated(labels, simOpts...), nil
		}, labels), nil
	case config.SeparatorDemucs:
		factory := demucs.Factory(
			demucs.WithBinary(cfg.DemucsBin),
			demucs.WithModel(cfg.DemucsModel),
			demucs.WithStemMap(cfg.StemMap),
			demucs.WithLogger(log.Named("demucs")),
		)
		return separation.NewHandle(factory, cfg.StemLabels), nil
	default:
		return nil, fmt.Errorf("%w: unknown separator %q", config.ErrInvalidConfig, cfg.Separator)
	}
}

// newMux registers docs, API and front end routes.
func newMux(ctx context.Context, cfg *config.Config, svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, api.WithMaxUploadBytes(cfg.MaxUploadBytes())).Register(ctx, mux)
	site.Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
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

// updateServiceMetrics refreshes gauges derived from service stats.
// GetStats updates queue, store and worker gauges itself once started.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if started, _ := stats["started"].(bool); !started {
		if workerCount, ok := stats["workerCount"].(int); ok {
			metrics.UpdateWorkerCount(workerCount)
		}
		metrics.UpdateQueueSize(0)
	}
	if queueSize, ok := stats["queueSize"].(int); ok {
		metrics.UpdateQueueCapacity(queueSize)
	}
}
