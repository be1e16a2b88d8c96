package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"flightbook/internal/backend"
	"flightbook/internal/config"
	"flightbook/internal/database"
	"flightbook/internal/events"
	"flightbook/internal/logging"
	"flightbook/internal/repository"
	"flightbook/internal/syncer"
	"flightbook/internal/worker"

	"github.com/rs/zerolog"
)

// The agent replays queued mutations on wake requests pushed to Redis, so
// replay continues after every client has gone away.
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
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if cfg.Redis.Address == "" {
		return errors.New("agent requires redis.address for the wake queue")
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	redisClient := repository.NewRedisClient(cfg.Redis)
	defer (func() { _ = repository.Close(redisClient) })()
	if err := repository.Ping(context.Background(), redisClient); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := repository.NewFailoverStore(db, repository.NewMemoryStore(), logger)
	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Connectivity.HealthPath, &http.Client{Timeout: cfg.Backend.Timeout})

	policy := syncer.Policy{MaxRetries: cfg.Sync.MaxRetries, RetentionWindow: cfg.Sync.RetentionWindow}
	executor := syncer.NewExecutor(store, client, policy, logger).
		WithDeadLetter(repository.NewRedisDeadLetter(redisClient, cfg.Agent.DeadLetterKey))

	opts := syncer.Options{ItemDelay: cfg.Sync.ItemDelay, LockTTL: cfg.Sync.LockTTL}
	orchestrator := syncer.NewOrchestrator(store, executor, opts, logger)

	wake := worker.NewRedisWakeQueue(redisClient, cfg.Agent.WakeQueueKey)
	broadcaster := events.NewRedisBroadcaster(redisClient, cfg.Agent.EventsChannel)
	monitor := worker.NewConnectivityMonitor(client, cfg.Connectivity.CheckInterval, cfg.Connectivity.MaxBackoff, logger)
	agent := worker.NewReplayAgent(orchestrator, wake, broadcaster, logger).WithConnectivity(monitor)
	go monitor.Run(ctx)

	logger.Info().
		Str("wake_key", cfg.Agent.WakeQueueKey).
		Str("owner", orchestrator.Owner()).
		Msg("agent configured")

	agent.Run(ctx)

	logger.Info().Msg("replay agent stopped")
	return nil
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

	return cfg, logging.Component(baseLogger, "agent-main"), closer, nil
}
