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

	"github.com/okian/mlscore/internal/adapters/http/api"
	"github.com/okian/mlscore/internal/adapters/http/swagger"
	app "github.com/okian/mlscore/internal/app"
	"github.com/okian/mlscore/internal/config"
	"github.com/okian/mlscore/internal/server"
	"github.com/okian/mlscore/pkg/logger"
	"github.com/okian/mlscore/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	nanosecondsPerMillisecond = 1e6
)

func main() {
	os.Exit(run())
}

// run wires the process and returns its exit status.
func run() int {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Get().Error(ctx, "failed to load config", logger.Error(err))
		return 1
	}

	if cfg.LogFormat != logger.FormatText {
		if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
			logger.Get().Warn(ctx, "invalid log_format; keeping text", logger.String("log_format", cfg.LogFormat), logger.Error(err))
		}
	}
	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metricsManager := metrics.Configure(
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithRefreshInterval(cfg.MetricsRefresh()),
		metrics.WithCustomLabels(map[string]string{"model": cfg.Model}),
	)

	svc := app.New(
		app.WithLogger(loggerInstance.Named("service")),
		app.WithModel(cfg.Model),
		app.WithScoringLatency(cfg.ScoringLatency()),
	)
	if err := svc.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		return 1
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx, metricsManager.RefreshInterval())

	srv := server.New(cfg.Addr(), newHandler(ctx, cfg, svc, loggerInstance),
		server.WithLogger(loggerInstance.Named("http")),
		server.WithReadTimeout(cfg.ReadTimeout()),
		server.WithReadHeaderTimeout(cfg.ReadHeaderTimeout()),
		server.WithWriteTimeout(cfg.WriteTimeout()),
		server.WithIdleTimeout(cfg.IdleTimeout()),
		server.WithShutdownTimeout(cfg.ShutdownTimeout()),
	)

	if err := srv.Run(ctx); err != nil {
		if errors.Is(err, server.ErrBind) {
			loggerInstance.Error(ctx, "failed to bind listen address", logger.String("addr", cfg.Addr()), logger.Error(err))
			return 1
		}
		loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
		return 1
	}
	return 0
}

// newHandler builds the routing table for cfg.
func newHandler(ctx context.Context, cfg *config.Config, svc *app.Service, l logger.Logger) http.Handler {
	mux := http.NewServeMux()

	if cfg.DocsEnabled {
		swagger.Register(ctx, mux)
	}

	apiServer := api.NewServer(svc,
		api.WithLogger(l.Named("api")),
		api.WithMaxBodyBytes(cfg.MaxBodyBytes),
		api.WithMaxFeatures(cfg.MaxFeatures),
		api.WithMetricsEndpoint(cfg.MetricsEnabled),
	)
	apiServer.Register(ctx, mux)

	return mux
}

// startSystemMetricsUpdater refreshes system metrics every interval until ctx ends.
func startSystemMetricsUpdater(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	updateSystemMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
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
