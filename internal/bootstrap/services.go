package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/adsafe/moderation-api/config"
	"github.com/adsafe/moderation-api/internal/adapters/kafka"
	"github.com/adsafe/moderation-api/internal/data"
	"github.com/adsafe/moderation-api/internal/ml"
	"github.com/adsafe/moderation-api/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Moderation      *service.ModerationService
	AsyncModeration *service.AsyncModerationService
	Cache           *service.PredictionCache
	Classifier      *ml.Classifier
	Producer        *kafka.Producer
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices wires repositories, the classifier, and the domain services.
// The classifier is loaded eagerly so a missing or corrupt model file fails
// startup instead of the first request.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service dependencies are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	classifier := ml.NewClassifier(ml.Options{
		ModelPath: cfg.ML.ModelPath,
		Logger:    logger,
	})
	if err := classifier.Load(ctx); err != nil {
		return ServiceContainer{}, fmt.Errorf("load classifier: %w", err)
	}

	adRepo := data.NewAdRepo(deps.DB)
	resultRepo := data.NewModerationResultRepo(deps.DB)

	predictionCache := service.NewPredictionCache(service.PredictionCacheOptions{
		Cache:         data.NewRedisCacheRepo(deps.RedisClient),
		Logger:        logger,
		PredictionTTL: cfg.Cache.PredictionTTL,
		TaskTTL:       cfg.Cache.TaskTTL,
	})

	moderation, err := service.NewModerationService(service.ModerationServiceOptions{
		Ads:        adRepo,
		Results:    resultRepo,
		Classifier: classifier,
		Cache:      predictionCache,
		Logger:     logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create moderation service: %w", err)
	}

	producer := kafka.NewProducer(kafka.ProducerOptions{
		Brokers: cfg.Kafka.BrokerList(),
		Timeout: cfg.Kafka.ProducerTimeout,
	})

	asyncModeration, err := service.NewAsyncModerationService(service.AsyncModerationServiceOptions{
		Ads:      adRepo,
		Results:  resultRepo,
		Producer: producer,
		Cache:    predictionCache,
		Topic:    cfg.Kafka.TopicModeration,
		Logger:   logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create async moderation service: %w", err)
	}

	return ServiceContainer{
		Moderation:      moderation,
		AsyncModeration: asyncModeration,
		Cache:           predictionCache,
		Classifier:      classifier,
		Producer:        producer,
	}, nil
}

// Close releases resources held by the container.
func (c ServiceContainer) Close(logger *slog.Logger) {
	if c.Producer != nil {
		closeQuietly(c.Producer, "service producer", logger)
	}
	if c.Classifier != nil {
		c.Classifier.Unload()
	}
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// RunServicesWithShutdown starts all enabled services and manages their
// lifecycle. It blocks until a shutdown signal is received or a service
// fails; on either, all services are stopped and their loops drained.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	if len(enabled) == 0 {
		return errors.New("no services enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)

	if enabled[config.ServiceModeWorker] {
		logger.Info("service enabled", "service", "worker")
		group.Go(func() error {
			if runErr := RunModerationWorker(gctx, ModerationWorkerConfig{
				DB:          cfg.DB,
				RedisClient: cfg.RedisClient,
				Logger:      logger,
				Kafka:       cfg.Config.Kafka,
				MaxRetries:  cfg.Config.Worker.MaxRetries,
				RetryDelay:  cfg.Config.Worker.RetryDelay,
				Classifier:  cfg.Services.Classifier,
			}); runErr != nil {
				return fmt.Errorf("moderation worker failed: %w", runErr)
			}
			return nil
		})
	}

	if enabled[config.ServiceModeDLQMonitor] {
		logger.Info("service enabled", "service", "dlq-monitor")
		group.Go(func() error {
			if runErr := RunDLQMonitor(gctx, DLQMonitorConfig{
				Logger: logger,
				Kafka:  cfg.Config.Kafka,
			}); runErr != nil {
				return fmt.Errorf("dlq monitor failed: %w", runErr)
			}
			return nil
		})
	}

	waitErr := group.Wait()
	if waitErr != nil {
		logger.Error("service error", "error", waitErr)
		return waitErr
	}

	logger.Info("all services stopped")
	return nil
}
