/**
 * @description
 * This is the main entry point for the signer-service. It wires together the
 * configuration, Redis-backed queues, the stage workers, the cron-based
 * queue maintenance, the RabbitMQ stage-event producer, and the HTTP API,
 * then runs until a termination signal arrives.
 */
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/transfa/signer-service/internal/api"
	"github.com/transfa/signer-service/internal/app"
	"github.com/transfa/signer-service/internal/config"
	"github.com/transfa/signer-service/internal/domain"
	"github.com/transfa/signer-service/internal/queue"
	"github.com/transfa/signer-service/internal/store"
	"github.com/transfa/signer-service/pkg/rabbitmq"
	"github.com/transfa/signer-service/pkg/refeeclient"
	"github.com/transfa/signer-service/pkg/tronclient"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load application configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Establish the Redis connection shared by queues, caches and the
	// keystore.
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("unable to parse redis URL", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("unable to connect to redis", "error", err)
		os.Exit(1)
	}
	logger.Info("redis connection established")

	// Stage-event producer; the service keeps running without RabbitMQ.
	var events rabbitmq.Publisher
	producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, cfg.EventExchange, logger)
	if err != nil {
		logger.Warn("rabbitmq unavailable, stage events disabled", "error", err)
		events = &rabbitmq.FallbackProducer{Logger: logger}
	} else {
		events = producer
	}
	defer events.Close()

	// Stage queues share the polling cadence and attempt budget.
	queueOpts := queue.Options{
		MaxAttempts: cfg.PollingMaxAttempts,
		Backoff:     cfg.PollingInterval(),
		Lease:       cfg.JobLease(),
	}
	balanceQ := queue.New("balance", redisClient, queueOpts)
	activationQ := queue.New("activation", redisClient, queueOpts)
	resourcesQ := queue.New("resources", redisClient, queueOpts)
	notificationQ := queue.New("notification", redisClient, queueOpts)
	queues := app.Queues{
		Balance:      balanceQ,
		Activation:   activationQ,
		Resources:    resourcesQ,
		Notification: notificationQ,
	}

	// Storage layers over the shared Redis connection.
	wallets := store.NewWalletRepository(redisClient, cfg.KeyTTL())
	guard := store.NewRequestGuard(redisClient, cfg.RequestTTL())
	keys, err := store.NewKeyRepository(redisClient, cfg.AppKey)
	if err != nil {
		logger.Error("unable to initialize keystore", "error", err)
		os.Exit(1)
	}

	// Chain and provisioner clients.
	ledger := tronclient.NewClient(cfg.TronAPIBaseURL, cfg.TronAPIKey)
	provisioner := refeeclient.NewClient(cfg.ReFeeBaseURL, cfg.ReFeeAPIKey)

	deps := app.Deps{
		Ledger:      ledger,
		Provisioner: provisioner,
		Queues:      queues,
		Wallets:     wallets,
		Events:      events,
	}
	factory := app.NewCryptoServiceFactory(deps, keys, cfg, logger)
	manager := app.NewManager(factory, queues, wallets, cfg.PollingInterval(), logger)
	transactions := app.NewTransactionService(queues, logger)

	// Stage workers. Resource polling is fanned out but throttled against
	// the node provider's quota; the other stages run serially.
	limiter := app.NewRedisRateLimiter(redisClient, "ledger", int64(cfg.LedgerCallsPerSec), time.Second)
	signer := domain.NewSigner(cfg.SignerSecret)
	workers := []*queue.Worker{
		queue.NewWorker(balanceQ, app.NewBalanceWorker(factory, queues, logger).Handle, 1, logger),
		queue.NewWorker(activationQ, app.NewActivationWorker(factory, ledger, logger).Handle, 1, logger),
		queue.NewWorker(resourcesQ, app.NewResourcesWorker(factory, ledger, limiter, logger).Handle, cfg.ResourceConcurrency, logger),
		queue.NewWorker(notificationQ, app.NewNotificationWorker(&http.Client{Timeout: 30 * time.Second}, signer, logger).Handle, 1, logger),
	}
	for _, w := range workers {
		go w.Run(ctx)
	}
	logger.Info("stage workers started", "count", len(workers))

	// Queue maintenance runs on a cron schedule.
	scheduler := app.NewScheduler([]*queue.Queue{balanceQ, activationQ, resourcesQ, notificationQ}, logger)
	scheduler.Start()

	// HTTP API.
	handlers := api.NewHandlers(manager, transactions, keys, guard, logger)
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: api.Routes(handlers, signer, cfg.SecurityEnabled),
	}
	go func() {
		logger.Info("starting server", "port", cfg.ServerPort, "env", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			cancel()
		}
	}()

	// Wait for termination signal to gracefully shut down.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	cancel()
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	logger.Info("service stopped gracefully")
}
