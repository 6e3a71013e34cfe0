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

	"github.com/okian/drowsywatch/internal/adapters/audio"
	"github.com/okian/drowsywatch/internal/adapters/camera"
	"github.com/okian/drowsywatch/internal/adapters/detector/asset"
	"github.com/okian/drowsywatch/internal/adapters/detector/sidecar"
	"github.com/okian/drowsywatch/internal/adapters/detector/stub"
	"github.com/okian/drowsywatch/internal/adapters/display"
	"github.com/okian/drowsywatch/internal/adapters/http/api"
	"github.com/okian/drowsywatch/internal/adapters/http/site"
	"github.com/okian/drowsywatch/internal/adapters/http/swagger"
	"github.com/okian/drowsywatch/internal/adapters/http/ws"
	"github.com/okian/drowsywatch/internal/adapters/repository"
	app "github.com/okian/drowsywatch/internal/app"
	"github.com/okian/drowsywatch/internal/config"
	"github.com/okian/drowsywatch/internal/domain/alert"
	"github.com/okian/drowsywatch/pkg/logger"
	"github.com/okian/drowsywatch/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
	maxQueryLimit             = 10_000
)

func init() { //nolint:gochecknoinits // HighGUI must stay on the main thread
	runtime.LockOSThread()
}

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		// Use fmt for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	code := run()
	if err := logger.Sync(); err != nil {
		os.Stderr.WriteString("failed to close log file: " + err.Error() + "\n")
	}
	os.Exit(code)
}

func run() int {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> .env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}
	if cfg.LogFile != "" {
		if err := logger.Init(logger.WithFile(cfg.LogFile)); err != nil {
			os.Stderr.WriteString("failed to open log file: " + err.Error() + "\n")
			return 1
		}
	}
	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	detector, err := newDetector(ctx, cfg, loggerInstance)
	if err != nil {
		loggerInstance.Error(ctx, "landmark detector unavailable", logger.Error(err))
		return 1
	}

	dev, err := camera.Open(cfg.Camera.Index,
		camera.WithSize(cfg.Camera.Width, cfg.Camera.Height),
		camera.WithLogger(loggerInstance.Named("camera")),
	)
	if err != nil {
		loggerInstance.Error(ctx, "cannot open camera", logger.Int("index", cfg.Camera.Index), logger.Error(err))
		_ = detector.Close()
		return 1
	}

	var disp app.Display = display.Nop{}
	if cfg.Display.Enabled {
		disp = camera.NewWindow(cfg.Display.Title, dev)
	}

	hub := ws.NewHub(ws.WithLogger(loggerInstance.Named("ws")))
	defer hub.Close()

	svc := app.New(
		app.WithLogger(loggerInstance.Named("monitor")),
		app.WithCamera(dev),
		app.WithDetector(detector),
		app.WithDisplay(disp),
		app.WithAlerter(newAlerter(ctx, cfg, loggerInstance)),
		app.WithStore(repository.NewSessionStore()),
		app.WithThresholds(alert.Thresholds(cfg.Thresholds)),
		app.WithModelPath(cfg.Detector.ModelPath),
		app.WithReadBackoff(cfg.Camera.ReadBackoff()),
		app.WithMaxReadFailures(cfg.Camera.MaxReadFailures),
		app.WithMaxFPS(cfg.Camera.MaxFPS),
		app.WithQueueSize(cfg.QueueSize),
		app.WithSink("websocket", hub),
	)
	defer svc.Stop()
	if err := svc.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start monitor", logger.Error(err))
		return 1
	}

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	// Start service metrics updater
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc, hub),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
		}
	}()

	// The frame loop owns the main thread until quit, signal or camera loss.
	code := 0
	if err := svc.Run(ctx); err != nil {
		loggerInstance.Error(ctx, "monitoring ended", logger.Error(err))
		code = 1
	}
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
	return code
}

// newMux registers every HTTP surface on a fresh mux.
func newMux(ctx context.Context, svc *app.Service, stream http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	// Register API docs under /api-docs
	swagger.Register(ctx, mux)

	// Register business API routes with the service dependency.
	apiServer := api.NewServer(svc, svc, stream, maxQueryLimit)
	apiServer.Register(ctx, mux)

	// Dashboard catches everything else.
	site.Register(ctx, mux)
	return mux
}

// newDetector makes sure the model file exists and connects the sidecar.
// Without a sidecar URL the stub detector is used and the model is skipped.
func newDetector(ctx context.Context, cfg *config.Config, l logger.Logger) (app.Detector, error) {
	if cfg.Detector.URL == "" {
		l.Warn(ctx, "no detector url configured; using stub detector (no faces will be found)")
		return stub.Detector{}, nil
	}
	if err := asset.Ensure(ctx, cfg.Detector.ModelPath, cfg.Detector.ModelURLs,
		asset.WithRetries(cfg.Detector.DownloadRetries),
		asset.WithLogger(l.Named("asset")),
	); err != nil {
		return nil, err
	}
	return sidecar.NewClient(sidecar.Config{
		BaseURL: cfg.Detector.URL,
		Timeout: cfg.Detector.Timeout(),
	}), nil
}

// newAlerter returns the audio player, or a silent one when audio is off or
// the sound cannot be played.
func newAlerter(ctx context.Context, cfg *config.Config, l logger.Logger) app.Alerter {
	if !cfg.Audio.Enabled {
		return audio.Nop{}
	}
	p, err := audio.NewPlayer(cfg.Audio.Path,
		audio.WithCommand(cfg.Audio.Command),
		audio.WithLogger(l.Named("audio")),
	)
	if err != nil {
		l.Warn(ctx, "audio alerts disabled", logger.String("path", cfg.Audio.Path), logger.Error(err))
		return audio.Nop{}
	}
	return p
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval) // Update every 10 seconds
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
	ticker := time.NewTicker(serviceMetricsInterval) // Update every 5 seconds
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

// updateServiceMetrics refreshes gauges that are not set on the hot path.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	metrics.UpdateVigilanceScore(svc.Snapshot(context.Background()).Vigilance)
}
