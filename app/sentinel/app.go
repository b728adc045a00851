// Package sentinel wires together every component of the governance-proposal
// monitoring pipeline (§4), following the teacher's app/indexer.App
// convention of one Initialize func that builds everything and one App{} that
// owns Start/Stop.
package sentinel

import (
	"context"
	"net/http"
	"time"

	"github.com/govsentinel/sentinel/pkg/adminhttp"
	"github.com/govsentinel/sentinel/pkg/advice"
	"github.com/govsentinel/sentinel/pkg/analysis"
	"github.com/govsentinel/sentinel/pkg/analyzer"
	"github.com/govsentinel/sentinel/pkg/analyzer/providers"
	"github.com/govsentinel/sentinel/pkg/chain"
	"github.com/govsentinel/sentinel/pkg/config"
	"github.com/govsentinel/sentinel/pkg/delivery"
	"github.com/govsentinel/sentinel/pkg/logging"
	"github.com/govsentinel/sentinel/pkg/postgres"
	"github.com/govsentinel/sentinel/pkg/redisx"
	"github.com/govsentinel/sentinel/pkg/scheduler"
	"github.com/govsentinel/sentinel/pkg/subscriber"
	sentinaltemporal "github.com/govsentinel/sentinel/pkg/temporal"
	"github.com/govsentinel/sentinel/pkg/utils"
	"github.com/govsentinel/sentinel/pkg/watcher"
	"go.uber.org/zap"
)

// App owns the process's Scheduler and administrative HTTP server, mirroring
// the teacher's App{Worker, TemporalClient, Logger} shape.
type App struct {
	Scheduler *scheduler.Scheduler
	Admin     *adminhttp.Controller
	Server    *http.Server
	Postgres  postgres.Client
	Redis     *redisx.Client
	Logger    *zap.Logger
}

// Initialize builds every component named in §4 and returns a ready-to-Start App.
func Initialize(ctx context.Context) *App {
	logger, err := logging.New()
	if err != nil {
		panic(err)
	}

	pg, err := postgres.New(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to initialize postgres", zap.Error(err))
	}

	if err := watcher.InitSchema(ctx, &pg); err != nil {
		logger.Fatal("Unable to initialize cursor schema", zap.Error(err))
	}
	if err := analysis.InitSchema(ctx, &pg); err != nil {
		logger.Fatal("Unable to initialize analysis schema", zap.Error(err))
	}
	if err := delivery.InitSchema(ctx, &pg); err != nil {
		logger.Fatal("Unable to initialize delivery schema", zap.Error(err))
	}
	if err := subscriber.InitSchema(ctx, &pg); err != nil {
		logger.Fatal("Unable to initialize subscriber schema", zap.Error(err))
	}

	redisClient, err := redisx.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to initialize redis", zap.Error(err))
	}

	temporalClient, err := sentinaltemporal.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to establish temporal connection", zap.Error(err))
	}

	chains, err := config.LoadChains()
	if err != nil {
		logger.Fatal("Unable to load chain configuration", zap.Error(err))
	}

	chainFactory := chain.NewHTTPFactory(logger)
	cursors := watcher.NewPostgresStore(&pg)

	hybrid := buildAnalyzer(logger)
	analysisStore := analysis.NewPostgresStore(&pg)
	cache := analysis.NewCache(analysisStore, logger)
	pipeline := analyzer.NewPipeline(cache, hybrid)

	directory := subscriber.NewPostgresDirectory(&pg)
	matcher := subscriber.NewMatcher(directory, redisClient, logger)

	deliveryStore := delivery.NewPostgresStore(&pg)
	notifier := buildNotifier(logger)
	gate := delivery.NewGate(deliveryStore, notifier, logger)

	fanOutPoolSize := utils.EnvInt("FANOUT_POOL_SIZE", 32)
	fanOut := advice.NewFanOut(pipeline, gate, logger, fanOutPoolSize)

	sched := scheduler.New(scheduler.DefaultConfig(), scheduler.Deps{
		Temporal:     temporalClient,
		Chains:       chains,
		ChainFactory: chainFactory,
		Cursors:      cursors,
		Matcher:      matcher,
		Pipeline:     pipeline,
		Hybrid:       hybrid,
		FanOut:       fanOut,
		Gate:         gate,
		Analyses:     analysisStore,
		Logger:       logger,
	})
	sched.Build()

	admin := adminhttp.NewController(sched, logger)

	addr := utils.Env("ADDR", ":3000")
	server := &http.Server{
		Addr:              addr,
		Handler:           admin.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		Scheduler: sched,
		Admin:     admin,
		Server:    server,
		Postgres:  pg,
		Redis:     redisClient,
		Logger:    logger,
	}
}

// buildAnalyzer wires the Hybrid Analyzer's provider fallback chain from
// ANALYZER_PROVIDERS (§4.4), following the teacher's provider-fallback shape
// where each provider is tried in a fixed configured order.
func buildAnalyzer(logger *zap.Logger) *analyzer.Analyzer {
	cfg := analyzer.DefaultConfig()
	cfg.APIKey = utils.Env("ANALYZER_API_KEY", "")
	cfg.Model = utils.Env("ANALYZER_MODEL", "")
	cfg.BaseURL = utils.Env("ANALYZER_BASE_URL", "")

	var provs []analyzer.Provider
	for _, name := range config.ProviderNames() {
		switch name {
		case "anthropic":
			provs = append(provs, providers.NewAnthropic(cfg))
		case "openai":
			provs = append(provs, providers.NewOpenAI(cfg))
		case "local":
			provs = append(provs, providers.NewLocal(cfg))
		default:
			logger.Warn("sentinel: unknown analyzer provider ignored", zap.String("provider", name))
		}
	}
	if len(provs) == 0 {
		provs = append(provs, providers.NewLocal(cfg))
	}

	return analyzer.New(provs, logger)
}

// buildNotifier selects the Delivery Gate's transport per NOTIFIER_KIND (§4.7.1).
func buildNotifier(logger *zap.Logger) delivery.Notifier {
	if config.NotifierKind() != "smtp" {
		return delivery.NewLogNotifier(logger)
	}
	return delivery.NewSMTPNotifier(delivery.SMTPConfig{
		Host:     utils.Env("SMTP_HOST", "localhost"),
		Port:     utils.Env("SMTP_PORT", "587"),
		Username: utils.Env("SMTP_USERNAME", ""),
		Password: utils.Env("SMTP_PASSWORD", ""),
		From:     utils.Env("SMTP_FROM", "govsentinel@localhost"),
	}, logger)
}

// Start starts the Scheduler's Temporal workers and the administrative HTTP
// server, then blocks until ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	go func() {
		if err := a.Scheduler.Start(ctx); err != nil {
			a.Logger.Fatal("scheduler stopped with error", zap.Error(err))
		}
	}()

	go func() {
		a.Logger.Info("adminhttp: listening", zap.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error("adminhttp: server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	a.Stop()
}

// Stop shuts down the admin HTTP server and closes the process's storage clients.
func (a *App) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("adminhttp: graceful shutdown failed", zap.Error(err))
	}

	if err := a.Redis.Close(); err != nil {
		a.Logger.Warn("redis: close failed", zap.Error(err))
	}
	a.Postgres.Close()
	a.Logger.Info("さようなら!")
}
