package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tracefold/anonymizer/internal/anonymizer"
	"github.com/tracefold/anonymizer/internal/application/anonymization"
	"github.com/tracefold/anonymizer/internal/application/audit"
	appchat "github.com/tracefold/anonymizer/internal/application/chat"
	"github.com/tracefold/anonymizer/internal/config"
	domainchat "github.com/tracefold/anonymizer/internal/domain/chat"
	"github.com/tracefold/anonymizer/internal/infrastructure/database/postgres"
	"github.com/tracefold/anonymizer/internal/infrastructure/database/postgres/repositories"
	"github.com/tracefold/anonymizer/internal/infrastructure/database/redis"
	"github.com/tracefold/anonymizer/internal/infrastructure/messaging/kafka"
	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/logging"
	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/prometheus"
	"github.com/tracefold/anonymizer/internal/infrastructure/storage/minio"
	"github.com/tracefold/anonymizer/internal/intelligence/common"
	"github.com/tracefold/anonymizer/internal/intelligence/entity"
	"github.com/tracefold/anonymizer/internal/intelligence/intent"
	apihttp "github.com/tracefold/anonymizer/internal/interfaces/http"
	"github.com/tracefold/anonymizer/internal/interfaces/http/handlers"
	"github.com/tracefold/anonymizer/internal/interfaces/http/middleware"
	"github.com/tracefold/anonymizer/internal/response"
)

// auditConsumerGroup is the Kafka consumer group for the archive pipeline.
// All service replicas share it so each audit event is archived once.
const auditConsumerGroup = "audit-archiver"

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the anonymization HTTP service",
		Long:  "Starts the HTTP API together with the audit archive consumer and the\nchat-log retention purger, and blocks until SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger, err := newCLILogger(cfg, opts)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, logger)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	logger.Info("starting anonymizerd",
		logging.String("version", Version),
		logging.String("commit", GitCommit),
		logging.Int("port", cfg.Server.Port),
	)

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "anonymizer",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return err
	}
	metrics := prometheus.NewAppMetrics(collector)

	labels, matcher, err := buildDetection(cfg)
	if err != nil {
		return err
	}

	// Model serving clients are lazy: registration never dials, so a slow
	// or absent endpoint cannot block startup.
	registry := common.NewRegistry()
	defer registry.Close()

	clientCfg := common.ClientConfig{
		BaseURL:    cfg.Model.BaseURL,
		Timeout:    cfg.Model.Timeout,
		MaxRetries: cfg.Model.MaxRetries,
	}
	for _, model := range []string{cfg.Model.EntityModel, cfg.Model.IntentModel} {
		if err := registry.Register(model, func() (common.ServingClient, error) {
			return common.NewHTTPServingClient(clientCfg, logger)
		}); err != nil {
			return err
		}
	}
	entityHandle, err := registry.Get(cfg.Model.EntityModel)
	if err != nil {
		return err
	}
	intentHandle, err := registry.Get(cfg.Model.IntentModel)
	if err != nil {
		return err
	}

	recognizer := entity.NewRecognizer(entityHandle, entity.Config{
		Model:               cfg.Model.EntityModel,
		ConfidenceThreshold: cfg.Model.ConfidenceThreshold,
	}, logger)
	classifier := intent.NewClassifier(intentHandle, cfg.Model.IntentModel, logger)

	engine := anonymizer.NewEngine(recognizer, matcher, labels,
		anonymizer.Policy(cfg.Anonymizer.OverlapPolicy), logger)
	batch := anonymizer.NewBatchRunner(engine, anonymizer.BatchConfig{
		Concurrency:     cfg.Batch.Concurrency,
		DocumentTimeout: cfg.Batch.DocumentTimeout,
	}, logger)

	// Infrastructure.
	conn, err := postgres.NewConnection(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer conn.Close()
	chatRepo := repositories.NewChatRepo(conn, logger)

	redisClient, err := redis.NewClient(cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	cache := redis.NewCache(redisClient, logger)

	publisher, err := kafka.NewPublisher(cfg.Kafka, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	minioClient, err := minio.NewClient(cfg.MinIO, logger)
	if err != nil {
		return err
	}
	archive := minio.NewAuditArchive(minioClient, logger)
	archiver := audit.NewArchiver(archive, metrics, logger)
	consumer, err := kafka.NewConsumer(cfg.Kafka, auditConsumerGroup, archiver.Handle, logger)
	if err != nil {
		return err
	}
	defer consumer.Close()

	// Chat pipeline.
	kb, err := response.LoadKnowledgeBase(cfg.Chat.KnowledgeBasePath)
	if err != nil {
		return err
	}
	generator, err := response.NewGenerator(kb, response.Config{
		ConfidenceThreshold: cfg.Chat.ConfidenceThreshold,
		Fallback:            cfg.Chat.FallbackMessage,
	}, logger)
	if err != nil {
		return err
	}

	anonSvc := anonymization.NewService(engine, batch, publisher, metrics, logger)

	var persistRepo domainchat.Repository
	if cfg.Chat.PersistLogs {
		persistRepo = chatRepo
	}
	chatSvc := appchat.NewService(persistRepo, recognizer, classifier, engine, generator, logger,
		appchat.WithCache(cache),
		appchat.WithPublisher(publisher),
		appchat.WithMetrics(metrics),
	)

	purger := appchat.NewPurger(chatRepo, logger,
		appchat.WithLocker(redis.NewMutex(redisClient, "chat-retention")),
	)

	healthHandler := handlers.NewHealthHandler(Version, metrics,
		handlers.CheckerFunc{ComponentName: "postgres", Fn: conn.HealthCheck},
		handlers.CheckerFunc{ComponentName: "redis", Fn: cache.Ping},
		handlers.CheckerFunc{ComponentName: "minio", Fn: minioClient.HealthCheck},
	)

	router := apihttp.NewRouter(apihttp.RouterConfig{
		AnonymizeHandler: handlers.NewAnonymizeHandler(anonSvc, logger),
		ChatHandler:      handlers.NewChatHandler(chatSvc, logger),
		HealthHandler:    healthHandler,
		Logger:           logger,
		Metrics:          metrics,
		MetricsCollector: collector,
		CORS: &middleware.CORSConfig{
			AllowedOrigins: cfg.Server.CORSOrigins,
		},
		RateLimit: &middleware.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimitRPS,
			BurstSize:         cfg.Server.RateLimitBurst,
		},
	})
	server := apihttp.NewServer("", cfg.Server.Port, router, logger)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		return server.Stop(context.Background())
	})
	g.Go(func() error { return consumer.Run(gctx) })
	g.Go(func() error { return archiver.Run(gctx) })
	if cfg.Chat.PersistLogs {
		g.Go(func() error { return purger.Run(gctx) })
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("service exited with error", logging.Err(err))
		return err
	}
	logger.Info("anonymizerd stopped")
	return nil
}
