package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ligth279/xilov5-overhual/internal/config"
	"github.com/ligth279/xilov5-overhual/internal/database"
	"github.com/ligth279/xilov5-overhual/internal/evaluation"
	"github.com/ligth279/xilov5-overhual/internal/handler"
	"github.com/ligth279/xilov5-overhual/internal/middleware"
	"github.com/ligth279/xilov5-overhual/internal/repository"
	"github.com/ligth279/xilov5-overhual/internal/router"
	"github.com/ligth279/xilov5-overhual/internal/service"
	"github.com/ligth279/xilov5-overhual/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := repository.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis not configured, attempt state and chat memory are kept in process")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	guard, err := ai.New(ai.Config{
		Provider:        cfg.AIProvider,
		BaseURL:         cfg.ModelBaseURL,
		Model:           cfg.ModelName,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		Timeout:         cfg.ModelTimeout,
		Logger:          logger,
	})
	if err != nil {
		log.Fatalf("failed to configure ai provider: %v", err)
	}
	var model ai.Generator
	if guard != nil {
		model = guard
	} else {
		logger.Warn().Msg("ai provider disabled, wrong answers fall back to predefined hints")
	}

	lessonRepo, err := repository.NewFileLessonRepository(cfg.LessonsDir)
	if err != nil {
		log.Fatalf("failed to load lessons: %v", err)
	}

	var (
		attempts   repository.AttemptStore
		chatMemory repository.ChatMemory
	)
	if redisClient != nil {
		attempts = repository.NewRedisAttemptStore(redisClient, cfg.AttemptTTL)
		chatMemory = repository.NewRedisChatMemory(redisClient, cfg.ChatHistorySize, cfg.AttemptTTL)
	} else {
		attempts = repository.NewMemoryAttemptStore(cfg.AttemptTTL)
		chatMemory = repository.NewMemoryChatMemory(cfg.ChatHistorySize)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	evaluator := evaluation.NewEvaluator(
		evaluation.NewModelCategorizer(model, evaluation.CategorizerConfig{
			Temperature: cfg.ModelTemp,
			MaxTokens:   cfg.ModelMaxTokens,
		}),
		evaluation.WithSpellingThreshold(cfg.SpellingCutoff),
		evaluation.WithLogger(logger),
	)

	lessonService := service.NewLessonService(lessonRepo, redisClient, cfg.CacheTTL, logger)
	progressService := service.NewProgressService(repository.NewProgressRepository(db), logger)
	evaluationService := service.NewEvaluationService(service.EvaluationDeps{
		Lessons:     lessonService,
		Evaluator:   evaluator,
		Attempts:    attempts,
		Progress:    progressService,
		Logs:        repository.NewEvaluationLogRepository(db),
		Events:      service.NewEventPublisher(redisClient, natsConn, logger),
		MaxAttempts: cfg.MaxAttempts,
	}, logger)
	chatService := service.NewChatService(model, chatMemory, lessonService, logger)
	statusService := service.NewStatusService(model, cfg.AIProvider, logger)

	consumerCtx, stopConsumers := context.WithCancel(context.Background())
	defer stopConsumers()
	if natsConn != nil {
		if err := progressService.ConsumeEvaluations(consumerCtx, natsConn); err != nil {
			log.Fatalf("failed to subscribe to evaluation events: %v", err)
		}
	}

	probes := []handler.HealthProbe{
		{Name: "database", Check: database.SQLProbe(db)},
		{Name: "lessons", Check: func(ctx context.Context) error {
			_, err := lessonService.ListGrades(ctx)
			return err
		}},
	}
	if redisClient != nil {
		probes = append(probes, handler.HealthProbe{Name: "redis", Check: database.RedisProbe(redisClient)})
	}
	if natsConn != nil {
		probes = append(probes, handler.HealthProbe{Name: "nats", Check: database.NATSProbe(natsConn)})
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    2 * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:         &logger,
		AllowedOrigins: cfg.AllowedOrigins,
		AccessLog:      cfg.AppEnv == "development",
	})
	router.Register(app, cfg, router.Dependencies{
		LessonHandler:     handler.NewLessonHandler(lessonService, cfg.JWTSecret, logger),
		EvaluationHandler: handler.NewEvaluationHandler(evaluationService, chatService, validate, logger),
		ProgressHandler:   handler.NewProgressHandler(progressService, lessonService, validate, logger),
		ChatHandler:       handler.NewChatHandler(chatService, validate, logger),
		StatusHandler:     handler.NewStatusHandler(statusService, logger),
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		HealthProbes:      probes,
	})

	logger.Info().
		Str("addr", cfg.HTTPAddress()).
		Str("provider", cfg.AIProvider).
		Bool("auth", cfg.AuthEnabled()).
		Bool("durable_events", natsConn != nil).
		Msg("starting xilo tutor api")

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
