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

	"github.com/go-chi/chi/v5"

	"github.com/okian/swiss/internal/adapters/http/api"
	"github.com/okian/swiss/internal/adapters/http/site"
	"github.com/okian/swiss/internal/adapters/http/swagger"
	"github.com/okian/swiss/internal/adapters/notify"
	"github.com/okian/swiss/internal/adapters/repository"
	service "github.com/okian/swiss/internal/app"
	"github.com/okian/swiss/internal/config"
	"github.com/okian/swiss/internal/domain/pairing"
	"github.com/okian/swiss/pkg/logger"
	"github.com/okian/swiss/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// The logger may not be available yet.
		_, _ = os.Stderr.WriteString("swiss: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.WithLevel(cfg.LogLevel), logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	metrics.SetEnabled(cfg.MetricsEnabled)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	publisher, err := openPublisher(cfg, log)
	if err != nil {
		_ = store.Close()
		return err
	}
	engine, err := newEngine(cfg)
	if err != nil {
		_ = store.Close()
		_ = publisher.Close()
		return err
	}

	svc := service.New(
		service.WithLogger(log),
		service.WithStore(store),
		service.WithPublisher(publisher),
		service.WithEngine(engine),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.ReportQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithDefaultTopCut(cfg.DefaultTopCut),
		service.WithMaxPlayers(cfg.MaxPlayers),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	// Stop closes the store and the publisher.
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("store", cfg.Store),
			logger.String("tie_break", cfg.TieBreak))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// openStore selects the persistence backend.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		s, err := repository.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	default:
		return repository.NewMemoryStore(), nil
	}
}

// openPublisher prefers an external NATS server, then an embedded one,
// then the in-process fan-out.
func openPublisher(cfg *config.Config, log logger.Logger) (notify.Publisher, error) {
	opts := []notify.Option{
		notify.WithSubjectPrefix(cfg.NATSSubjectPrefix),
		notify.WithLogger(log.Named("notify")),
	}
	switch {
	case cfg.NATSURL != "":
		p, err := notify.NewNATSPublisher(cfg.NATSURL, opts...)
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		return p, nil
	case cfg.NATSEmbedded:
		p, err := notify.NewEmbeddedNATSPublisher(opts...)
		if err != nil {
			return nil, fmt.Errorf("start embedded nats: %w", err)
		}
		log.Info(context.Background(), "embedded nats ready", logger.String("url", p.URL()))
		return p, nil
	default:
		return notify.NewLocalPublisher(opts...), nil
	}
}

func newEngine(cfg *config.Config) (*pairing.Engine, error) {
	tb, err := pairing.ParseTieBreak(cfg.TieBreak)
	if err != nil {
		return nil, err
	}
	opts := []pairing.Option{pairing.WithTieBreak(tb)}
	if cfg.PairingSeed != 0 {
		opts = append(opts, pairing.WithSeed(cfg.PairingSeed))
	}
	return pairing.NewEngine(opts...), nil
}

// newRouter mounts the business API, API docs and landing page on one router.
func newRouter(ctx context.Context, cfg *config.Config, svc *service.Service) chi.Router {
	apiServer := api.NewServer(svc, svc, api.WithCORSOrigins(cfg.CORSOrigins))
	r := apiServer.Router()
	apiServer.Register(ctx, r)
	swagger.Register(ctx, r)
	site.Register(ctx, r)
	return r
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
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
