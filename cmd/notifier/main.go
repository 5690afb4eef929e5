package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/paycollect/loan-notifier/internal/client"
	"github.com/paycollect/loan-notifier/internal/config"
	"github.com/paycollect/loan-notifier/internal/domain"
	"github.com/paycollect/loan-notifier/internal/handler"
	"github.com/paycollect/loan-notifier/internal/infra/postgresql"
	"github.com/paycollect/loan-notifier/internal/infra/postgresql/migrations"
	infraredis "github.com/paycollect/loan-notifier/internal/infra/redis"
	"github.com/paycollect/loan-notifier/internal/observability"
	"github.com/paycollect/loan-notifier/internal/policy"
	"github.com/paycollect/loan-notifier/internal/queue"
	"github.com/paycollect/loan-notifier/internal/repository"
	"github.com/paycollect/loan-notifier/internal/sender"
	"github.com/paycollect/loan-notifier/internal/service"
	"github.com/paycollect/loan-notifier/internal/strategy"
	"github.com/paycollect/loan-notifier/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("notifier exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	defer rabbit.Close()

	metrics := observability.NewMetrics()

	recordRepo := repository.NewGormRecordRepo(db)
	planRepo := repository.NewGormPlanRepo(db)
	attemptRepo := repository.NewGormAttemptRepo(db)

	taskStore := queue.NewRedisTaskStore(rdb)
	dispatcher := service.NewDispatcher(recordRepo, taskStore, logger)

	planner := service.NewPlanner(recordRepo, dispatcher, strategy.Default(), strategy.DefaultCatalog(), cfg.CompanyName, logger)
	testPlanner := service.NewTestPlanner(recordRepo, dispatcher, strategy.Default(), strategy.DefaultCatalog(), cfg.CompanyName, logger)

	canceller := service.NewCanceller(recordRepo, dispatcher, logger)
	canceller.SetMetrics(metrics)

	rescheduler := service.NewRescheduler(recordRepo, dispatcher, logger)
	rescheduler.SetMetrics(metrics)

	creditClient, err := buildCreditClient(cfg)
	if err != nil {
		return err
	}

	senders, err := buildSenderRegistry(cfg)
	if err != nil {
		return err
	}

	rateLimiter, err := infraredis.NewSendRateLimiter(rdb, cfg.SendRatePerSec)
	if err != nil {
		return fmt.Errorf("rate limiter initialization failed: %w", err)
	}

	window := policy.Window{
		StartHour:       cfg.WindowStartHour,
		EndHour:         cfg.WindowEndHour,
		WeekendsAllowed: cfg.WindowWeekendsAllowed,
		HolidaysAllowed: cfg.WindowHolidaysAllowed,
		Location:        cfg.Location(),
	}

	executor, err := service.NewExecutor(
		recordRepo, attemptRepo, senders, creditClient, dispatcher,
		rateLimiter, window, cfg.DailyNotificationCap, cfg.RetryMaxAttempts, logger,
	)
	if err != nil {
		return fmt.Errorf("executor initialization failed: %w", err)
	}
	executor.SetMetrics(metrics)

	planService := service.NewPlanService(planRepo, recordRepo, planner, canceller, logger)

	poller, err := service.NewStatusPoller(
		planRepo, creditClient, canceller,
		cfg.PollerBatchSize, cfg.PollerCheckInterval(), cfg.PollerCron, logger,
	)
	if err != nil {
		return fmt.Errorf("status poller initialization failed: %w", err)
	}
	poller.SetMetrics(metrics)

	publisher := queue.NewRabbitMQPublisher(rabbit)
	scanner := service.NewTaskScanner(taskStore, publisher, cfg.ScannerInterval(), 0, logger)
	scanner.SetMetrics(metrics)

	consumer := queue.NewRabbitMQConsumer(rabbit, taskStore, cfg.RetryBackoffBase(), cfg.WorkerConcurrency, logger)
	workers, err := service.NewWorkerService(consumer, executor, cfg.WorkerConcurrency, logger)
	if err != nil {
		return fmt.Errorf("worker service initialization failed: %w", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterPlanRoutes(app, planService); err != nil {
		return fmt.Errorf("failed to register plan routes: %w", err)
	}
	if err := handler.RegisterNotificationRoutes(app, rescheduler, canceller, poller, planService, testPlanner); err != nil {
		return fmt.Errorf("failed to register notification routes: %w", err)
	}

	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(metrics.Handler())
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metricsHandler(c.Context())
		return nil
	})

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server starting", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-groupCtx.Done()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	g.Go(func() error { return scanner.Start(groupCtx) })
	g.Go(func() error { return poller.Start(groupCtx) })
	g.Go(func() error { return workers.Start(groupCtx) })

	logger.Info("loan notifier started",
		zap.Int("workerConcurrency", cfg.WorkerConcurrency),
		zap.String("company", cfg.CompanyName),
		zap.String("timezone", cfg.Timezone),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("loan notifier stopped")
	return nil
}

func buildCreditClient(cfg *config.Config) (client.CreditClient, error) {
	restyClient := resty.New()
	restyClient.SetHeader("X-Api-Key", cfg.CreditAPIKey)

	creditClient, err := client.NewHTTPCreditClientWithClient(cfg.CreditAPIURL, restyClient)
	if err != nil {
		return nil, fmt.Errorf("credit client initialization failed: %w", err)
	}
	return creditClient, nil
}

func buildSenderRegistry(cfg *config.Config) (*sender.Registry, error) {
	registry := sender.NewRegistry()

	gateways := map[domain.Channel]struct {
		name     string
		endpoint string
	}{
		domain.ChannelSMS:    {"sms-gateway", cfg.SMSGatewayURL},
		domain.ChannelPush:   {"push-gateway", cfg.PushGatewayURL},
		domain.ChannelAICall: {"voice-gateway", cfg.VoiceGatewayURL},
	}
	for channel, gw := range gateways {
		s, err := sender.NewWebhookSender(gw.name, gw.endpoint)
		if err != nil {
			return nil, fmt.Errorf("%s initialization failed: %w", gw.name, err)
		}
		registry.Register(channel, s)
	}

	emailClient := resty.New()
	emailClient.SetHeader("X-Api-Key", cfg.EmailAPIKey)
	emailSender, err := sender.NewEmailSenderWithClient(cfg.EmailAPIURL, strategy.DefaultEmailTemplateIDs(), emailClient)
	if err != nil {
		return nil, fmt.Errorf("email sender initialization failed: %w", err)
	}
	registry.Register(domain.ChannelEmail, emailSender)

	return registry, nil
}
