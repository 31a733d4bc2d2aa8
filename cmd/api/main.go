package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/mindbridge-triage/cmd/mainconfig"
	"github.com/wolfman30/mindbridge-triage/internal/api/router"
	"github.com/wolfman30/mindbridge-triage/internal/app/bootstrap"
	"github.com/wolfman30/mindbridge-triage/internal/catalog"
	appconfig "github.com/wolfman30/mindbridge-triage/internal/config"
	"github.com/wolfman30/mindbridge-triage/internal/conversation"
	"github.com/wolfman30/mindbridge-triage/internal/directory"
	"github.com/wolfman30/mindbridge-triage/internal/events"
	httpmiddleware "github.com/wolfman30/mindbridge-triage/internal/http/middleware"
	"github.com/wolfman30/mindbridge-triage/internal/notify"
	"github.com/wolfman30/mindbridge-triage/internal/observability/metrics"
	"github.com/wolfman30/mindbridge-triage/internal/triage"
	"github.com/wolfman30/mindbridge-triage/pkg/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	mainconfig.LoadEnv()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting mindbridge triage API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited")
}

// application holds the wired server and its background workers.
type application struct {
	handler   http.Handler
	manager   *conversation.Manager
	janitor   *conversation.Janitor
	deliverer *events.Deliverer
	limiter   httpmiddleware.Limiter
	closers   []io.Closer
}

func (a *application) Close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api: listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return app.janitor.Run(gctx) })
	g.Go(func() error { return app.deliverer.Start(gctx) })
	if ml, ok := app.limiter.(*httpmiddleware.MemoryLimiter); ok {
		g.Go(func() error { return ml.Run(gctx, 5*time.Minute, 10*time.Minute) })
	}

	return g.Wait()
}

func buildApplication(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*application, error) {
	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("catalog loaded",
		"scenarios", len(cat.Scenarios),
		"resources", len(cat.Resources),
		"providers", len(cat.Providers),
	)

	metricsHandler, triageMetrics := setupMetrics()
	app := &application{}

	var awsCfg *aws.Config
	if mainconfig.NeedsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("api: load aws config: %w", err)
		}
		awsCfg = &loaded
	}

	llmClient, llmCloser, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, llmCloser)

	engine := triage.NewEngine(cat, triage.EngineConfig{
		MaxResults: cfg.MaxResults,
		MinScore:   cfg.MinScenarioScore,
	}, logger)
	composer := conversation.NewComposer(bootstrap.BuildReplyGenerator(cfg, llmClient), cfg.ReplyTimeout, logger, triageMetrics)
	app.manager = conversation.NewManager(engine, logger,
		conversation.WithMaxTurns(cfg.MaxTurns),
		conversation.WithIdleTimeout(cfg.SessionIdleTimeout),
		conversation.WithMetrics(triageMetrics),
		conversation.WithComposer(composer),
	)
	app.janitor = conversation.NewJanitor(app.manager, logger).WithInterval(cfg.SessionSweepInterval)

	outbox := events.NewOutbox(events.DefaultOutboxCapacity)
	notifier := notify.NewEscalationNotifier(bootstrap.BuildEmailSender(cfg, awsCfg, logger), cfg.EscalationEmailTo, logger, triageMetrics)
	app.deliverer = events.NewDeliverer(outbox, notifier, logger)

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		app.closers = append(app.closers, redisClient)
	}
	app.limiter = bootstrap.BuildRateLimiter(cfg, redisClient, logger)

	app.handler = router.New(&router.Config{
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(app.manager, outbox, logger),
		DirectoryHandler:    directory.NewHandler(directory.New(cat, logger), logger),
		MetricsHandler:      metricsHandler,
		RateLimiter:         app.limiter,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		ActiveSessions:      app.manager.ActiveSessions,
	})
	return app, nil
}

func loadCatalog(cfg *appconfig.Config) (*catalog.Catalog, error) {
	if cfg.CatalogDir == "" {
		cat, err := catalog.Default()
		if err != nil {
			return nil, fmt.Errorf("api: load embedded catalog: %w", err)
		}
		return cat, nil
	}
	cat, err := catalog.LoadDir(cfg.CatalogDir)
	if err != nil {
		return nil, fmt.Errorf("api: load catalog from %s: %w", cfg.CatalogDir, err)
	}
	return cat, nil
}

// setupMetrics registers triage metrics on a dedicated registry and returns
// the /metrics handler for it.
func setupMetrics() (http.Handler, *metrics.TriageMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}), metrics.NewTriageMetrics(reg)
}
