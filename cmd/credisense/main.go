package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"credisense/internal/applicant"
	"credisense/internal/assessment"
	"credisense/internal/common/aws"
	"credisense/internal/common/camunda"
	"credisense/internal/common/config"
	"credisense/internal/common/database"
	"credisense/internal/common/logger"
	"credisense/internal/common/observability"
	"credisense/internal/common/predictor"
	"credisense/internal/orchestrator"
	"credisense/internal/web"
	acr "credisense/internal/workers/assessment/assess-credit-risk"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewWithOptions(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting credisense",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("predictor", cfg.Predictor.BaseURL),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}
	defer obs.Shutdown(context.Background())

	tracerProvider, err := observability.NewTracerProvider(cfg.App.Name, cfg.App.Version, cfg.Tracing)
	if err != nil {
		zapLog.Fatal("tracing init failed", zap.Error(err))
	}
	zapLog.Info("tracing configured", zap.String("exporter", cfg.Tracing.Exporter))

	ctx := context.Background()
	checks := map[string]web.ReadinessCheck{}

	// --- Session store ---
	var store orchestrator.Store
	switch cfg.Session.Store {
	case config.SessionStoreRedis:
		var redis *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()

		store = orchestrator.NewRedisStore(redis, cfg.Session.KeyPrefix, config.GetDuration(cfg.Session.TTL))
		checks["redis"] = redis.Ping
		zapLog.Info("redis session store connected")
	default:
		store = orchestrator.NewMemoryStore(config.GetDuration(cfg.Session.TTL))
		zapLog.Info("using in-memory session store")
	}

	// --- Assessment pipeline ---
	predictClient := predictor.NewClient(cfg.Predictor, log, obs)
	service := assessment.NewService(applicant.NewValidator(), predictClient, log)

	var opts []orchestrator.Option
	if cfg.Notifications.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.SNS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		opts = append(opts, orchestrator.WithNotifier(
			orchestrator.NewSNSNotifier(snsClient, cfg.Notifications.SNS.TopicARN, log),
		))
		zapLog.Info("sns notifications enabled", zap.String("topic", cfg.Notifications.SNS.TopicARN))
	}
	orch := orchestrator.New(service, store, log, opts...)

	// --- BPMN worker ---
	var zeebe *camunda.Client
	var workers []*camunda.CamundaWorker
	if cfg.Camunda.Enabled {
		zeebe, err = camunda.NewClient(cfg.Camunda.BrokerAddress, config.GetDuration(cfg.Camunda.RequestTimeout))
		if err != nil {
			zapLog.Fatal("zeebe client failed", zap.Error(err))
		}
		checks["zeebe"] = zeebe.HealthCheck
		zapLog.Info("zeebe client connected", zap.String("gateway", cfg.Camunda.BrokerAddress))

		wc := acr.FromWorkerConfig(config.GetWorkerConfig(cfg, acr.TaskType))
		if err := wc.Validate(); err != nil {
			zapLog.Fatal("invalid worker config", zap.String("taskType", acr.TaskType), zap.Error(err))
		}
		if wc.Enabled {
			handler := acr.NewHandler(wc, service, log, obs)
			workers = append(workers, camunda.NewWorker(zeebe.GetClient(), acr.TaskType, camunda.WorkerOptions{
				MaxJobsActive: wc.MaxJobsActive,
				Timeout:       wc.Timeout,
			}, handler, zapLog))
		} else {
			zapLog.Info("worker disabled", zap.String("taskType", acr.TaskType))
		}
	}

	// --- HTTP server ---
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	server, err := web.NewServer(web.Options{
		Orchestrator: orch,
		Service:      service,
		Logger:       log,
		CookieName:   cfg.Server.CookieName,
		SecureCookie: cfg.Server.SecureCookie,
		Checks:       checks,
	})
	if err != nil {
		zapLog.Fatal("web server init failed", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.Handler(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}
	go func() {
		zapLog.Info("http server listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}
	for _, w := range workers {
		w.Stop()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("error closing zeebe client", zap.Error(err))
		}
	}

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("tracer provider shutdown failed", zap.Error(err))
	}

	zapLog.Info("credisense stopped gracefully")
}
