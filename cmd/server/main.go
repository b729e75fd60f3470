package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ricirt/chatpulse/internal/api"
	"github.com/ricirt/chatpulse/internal/api/handler"
	"github.com/ricirt/chatpulse/internal/config"
	"github.com/ricirt/chatpulse/internal/db"
	"github.com/ricirt/chatpulse/internal/metrics"
	"github.com/ricirt/chatpulse/internal/provider"
	"github.com/ricirt/chatpulse/internal/queue"
	"github.com/ricirt/chatpulse/internal/ratelimiter"
	"github.com/ricirt/chatpulse/internal/repository"
	"github.com/ricirt/chatpulse/internal/resolver"
	"github.com/ricirt/chatpulse/internal/service"
	"github.com/ricirt/chatpulse/internal/sweeper"
	"github.com/ricirt/chatpulse/internal/worker"
)

// stores groups the repositories one driver provides.
type stores struct {
	jobs       repository.NotificationRepository
	containers repository.ContainerRepository
	messages   repository.MessageRepository
	users      repository.UserRepository
	ping       handler.Pinger
	close      func()
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file, using process environment")
	}

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx := context.Background()

	// ---- storage ----
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer st.close()
	bounded := repository.NewTimeoutStore(st.jobs, st.containers, st.messages, st.users, cfg.StoreTimeout)
	st.jobs, st.containers, st.messages, st.users = bounded, bounded, bounded, bounded

	// ---- push transport ----
	prov, err := newProvider(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to create push transport", zap.Error(err))
	}
	logger.Info("push transport ready", zap.String("transport", cfg.Transport))

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	q := queue.New()
	metrics.RegisterQueueDepth(reg, q.Depths)
	limiter := ratelimiter.New(cfg.RateLimit)
	res := resolver.New(st.users, cfg.ResolverConcurrency, logger)

	svc := service.NewNotificationService(st.containers, st.jobs, res, q, logger)
	svc.OnEnqueued = m.OnEnqueued

	onSent, onFailed, onRetry, onTokenCleared := m.WorkerHooks()
	dispatcher := worker.NewDispatcher(st.jobs, st.users, prov, limiter, worker.DispatcherConfig{
		Backoff:     cfg.RetryBackoff,
		MaxAttempts: cfg.MaxAttempts,
		ClaimLease:  cfg.ClaimLease,
		Timeout:     cfg.DispatchTimeout,
	}, worker.MetricHooks{
		OnSent:         onSent,
		OnFailed:       onFailed,
		OnRetry:        onRetry,
		OnTokenCleared: onTokenCleared,
	}, logger)

	sw := sweeper.New(st.containers, st.messages, st.jobs, st.users, sweeper.Config{
		MaxBatch:               cfg.MaxBatch,
		NotificationRetention:  cfg.NotificationRetention,
		NotificationPurgeLimit: cfg.NotificationPurgeLimit,
	}, logger)
	sw.OnSweep = m.OnSweep

	// ---- background workers ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	pool := worker.NewPool(cfg.Workers, q, dispatcher, logger)
	pool.Start(workerCtx)

	var background worker.Group

	pending := worker.NewPendingWorker(st.jobs, q, cfg.PendingPollInterval, cfg.PendingPollLimit, logger)
	background.Go(workerCtx, pending.Run)

	messagePurge := worker.NewSweepWorker(sweeper.SweepMessages, cfg.MessagePurgeInterval,
		func(ctx context.Context) error {
			_, err := sw.PurgeMessages(ctx)
			return err
		}, logger)
	background.Go(workerCtx, messagePurge.Run)

	notificationPurge := worker.NewSweepWorker(sweeper.SweepNotifications, cfg.NotificationPurgeInterval,
		func(ctx context.Context) error {
			_, err := sw.PurgeNotifications(ctx)
			return err
		}, logger)
	background.Go(workerCtx, notificationPurge.Run)

	// ---- HTTP server ----
	router := api.NewRouter(api.Deps{
		Service:    svc,
		Dispatcher: dispatcher,
		Sweeper:    sw,
		Queue:      q,
		Gatherer:   reg,
		Store:      st.ping,
		Logger:     logger,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new events.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Stop workers and sweeps. Jobs still queued in memory stay pending
	// in the store and are picked up by the poller after restart.
	cancelWorkers()

	// 3. Wait for in-flight deliveries, polls and sweep batches to finish
	// before the deferred store close.
	pool.Wait()
	background.Wait()

	logger.Info("server stopped cleanly")
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.StoreDriver == config.StoreMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		mem := repository.NewMemoryStore()
		return &stores{jobs: mem, containers: mem, messages: mem, users: mem, close: func() {}}, nil
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("database migrations applied")

	chat := repository.NewPgChatStore(pool)
	return &stores{
		jobs:       repository.NewPgNotificationRepository(pool),
		containers: chat,
		messages:   chat,
		users:      chat,
		ping:       pool,
		close:      pool.Close,
	}, nil
}

func newProvider(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	if cfg.Transport == config.TransportSNS {
		return provider.NewSNSProvider(ctx, provider.SNSConfig{
			Region:      cfg.SNSRegion,
			EndpointURL: cfg.AWSEndpointURL,
			AccessKeyID: cfg.AWSAccessKeyID,
			SecretKey:   cfg.AWSSecretKey,
		})
	}
	return provider.NewWebhookProvider(cfg.ProviderBaseURL, cfg.ProviderTimeout), nil
}
