package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flightbook/internal/api"
	"flightbook/internal/backend"
	"flightbook/internal/config"
	"flightbook/internal/database"
	"flightbook/internal/domain"
	"flightbook/internal/events"
	"flightbook/internal/export"
	"flightbook/internal/logging"
	"flightbook/internal/metrics"
	"flightbook/internal/repository"
	"flightbook/internal/service"
	"flightbook/internal/syncer"
	"flightbook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	store := repository.NewFailoverStore(db, repository.NewMemoryStore(), logger)

	if len(os.Args) > 1 && os.Args[1] == "export" {
		return exportQueue(cfg, store, logger)
	}

	redisClient := initRedis(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startMetrics(ctx, cfg, logger)

	bus := events.NewEventBus()
	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Connectivity.HealthPath, &http.Client{Timeout: cfg.Backend.Timeout})

	policy := syncer.Policy{MaxRetries: cfg.Sync.MaxRetries, RetentionWindow: cfg.Sync.RetentionWindow}
	executor := syncer.NewExecutor(store, client, policy, logger)
	var deadLetters *repository.RedisDeadLetter
	if redisClient != nil {
		deadLetters = repository.NewRedisDeadLetter(redisClient, cfg.Agent.DeadLetterKey)
		executor.WithDeadLetter(deadLetters)
	}

	opts := syncer.Options{ItemDelay: cfg.Sync.ItemDelay, LockTTL: cfg.Sync.LockTTL}
	orchestrator := syncer.NewOrchestrator(store, executor, opts, logger).WithEvents(bus)

	monitor := worker.NewConnectivityMonitor(client, cfg.Connectivity.CheckInterval, cfg.Connectivity.MaxBackoff, logger)
	scheduler := worker.NewScheduler(orchestrator, monitor, cfg.Sync.Interval, cfg.Sync.PurgeInterval, logger)

	wake, agentRunning := initAgent(ctx, cfg, redisClient, store, executor, monitor, bus, logger)

	queue := service.NewQueueService(store, bus, logger)
	deps := api.Deps{
		Queue:        queue,
		Bookings:     service.NewOfflineBookingService(queue, store, wake, logger),
		Session:      service.NewSessionService(store),
		Preferences:  service.NewPreferenceService(store, queue),
		PriceAlerts:  service.NewPriceAlertService(queue),
		Sync:         orchestrator,
		Scheduler:    scheduler,
		Connectivity: monitor,
		Events:       bus,
	}
	if agentRunning {
		deps.Wake = wake
	}
	if deadLetters != nil {
		deps.DeadLetters = deadLetters
	}

	go monitor.Run(ctx)
	go scheduler.Run(ctx)
	go database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup")).Start(ctx)

	if !cfg.API.Enabled {
		logger.Warn().Msg("HTTP API is disabled in config, running sync workers only")
		<-ctx.Done()
		return nil
	}

	httpServer := api.NewHTTPServer(cfg.API, deps, logger)
	return startServer(ctx, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, logging.Component(baseLogger, "api-main"), closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = repository.Close(redisClient)
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initAgent wires background replay. With Redis the agent runs as its own
// process and completions are relayed back onto the local bus; without it an
// in-process agent consumes a channel wake queue.
func initAgent(
	ctx context.Context,
	cfg *config.Config,
	redisClient *redis.Client,
	store domain.Store,
	executor *syncer.Executor,
	monitor *worker.ConnectivityMonitor,
	bus *events.EventBus,
	logger *zerolog.Logger,
) (domain.WakeQueue, bool) {
	if redisClient != nil {
		wake := worker.NewRedisWakeQueue(redisClient, cfg.Agent.WakeQueueKey)
		go func() {
			if err := events.RelayToBus(ctx, redisClient, cfg.Agent.EventsChannel, bus, logger, nil); err != nil {
				logger.Error().Err(err).Msg("event relay stopped")
			}
		}()
		return wake, true
	}

	wake := worker.NewChanWakeQueue(8)
	if !cfg.Agent.Enabled {
		return wake, false
	}

	opts := syncer.Options{ItemDelay: cfg.Sync.ItemDelay, LockTTL: cfg.Sync.LockTTL}
	agentOrchestrator := syncer.NewOrchestrator(store, executor, opts, logging.Component(logger, "agent"))
	agent := worker.NewReplayAgent(agentOrchestrator, wake, bus, logger).WithConnectivity(monitor)
	go agent.Run(ctx)
	return wake, true
}

func exportQueue(cfg *config.Config, store domain.QueueStore, logger *zerolog.Logger) error {
	items, err := store.GetAll(context.Background())
	if err != nil {
		return fmt.Errorf("read queue: %w", err)
	}
	path, err := export.SaveQueueReport(cfg.Exports.Path, items, time.Now())
	if err != nil {
		return err
	}
	logger.Info().Str("path", path).Int("items", len(items)).Msg("queue report written")
	return nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("sync service started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("sync service stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
