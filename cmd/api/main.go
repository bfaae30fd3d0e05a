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
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/bodylens/bodylens-go-api/internal/config"
	"github.com/bodylens/bodylens-go-api/internal/database"
	"github.com/bodylens/bodylens-go-api/internal/handler"
	"github.com/bodylens/bodylens-go-api/internal/middleware"
	"github.com/bodylens/bodylens-go-api/internal/models"
	"github.com/bodylens/bodylens-go-api/internal/repository"
	"github.com/bodylens/bodylens-go-api/internal/router"
	"github.com/bodylens/bodylens-go-api/internal/scoring"
	"github.com/bodylens/bodylens-go-api/internal/service"
	"github.com/bodylens/bodylens-go-api/internal/window"
	"github.com/bodylens/bodylens-go-api/pkg/imagefetch"
	"github.com/bodylens/bodylens-go-api/pkg/vlm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	var evaluationRepo repository.EvaluationRepository
	if cfg.DatabaseURL != "" {
		db, err := database.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		if err := db.AutoMigrate(&models.Evaluation{}); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
		evaluationRepo = repository.NewEvaluationRepository(db)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var publisher service.InterventionPublisher
	if cfg.NATSURL != "" {
		natsPublisher, err := service.NewNATSInterventionPublisher(cfg.NATSURL, logger)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	} else {
		publisher = service.NewLogInterventionPublisher(logger)
	}

	scorer, err := buildScorer(cfg, logger)
	if err != nil {
		log.Fatalf("failed to create scorer: %v", err)
	}

	fetcher := imagefetch.New(imagefetch.Config{
		CacheDir:   cfg.FetchCacheDir,
		Timeout:    cfg.FetchTimeout,
		MaxRetries: cfg.FetchMaxRetries,
		Referer:    cfg.FetchReferer,
		Logger:     logger,
	})

	windows := window.NewStore(window.Config{
		Size:                  cfg.WindowSize,
		MinProb:               cfg.WindowMinProb,
		InterventionThreshold: cfg.InterventionThreshold,
	}, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())

	evaluationService := service.NewEvaluationService(
		scorer,
		fetcher,
		windows,
		evaluationRepo,
		redisClient,
		publisher,
		validate,
		service.EvaluationConfig{
			Thresholds: scoring.Thresholds{
				Margin:              cfg.MarginThreshold,
				BorderlineAbsMargin: cfg.BorderlineAbsMargin,
				DiffMin:             cfg.DiffMin,
				Gate:                cfg.GateThreshold,
				TotalVoteRequire:    cfg.TotalVoteRequire,
			},
			GateFastPairs:  cfg.GateFastPairs,
			CacheTTL:       cfg.EvalCacheTTL,
			DefaultTimeout: cfg.InferenceTimeout,
		},
		logger,
	)

	evaluationHandler := handler.NewEvaluationHandler(evaluationService, logger)
	windowHandler := handler.NewWindowHandler(evaluationService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    10 * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})

	var jwtMiddleware fiber.Handler
	if cfg.JWTSecret != "" {
		jwtMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}

	router.Register(app, cfg, router.Dependencies{
		EvaluationHandler: evaluationHandler,
		WindowHandler:     windowHandler,
		JWTMiddleware:     jwtMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func buildScorer(cfg config.Config, logger zerolog.Logger) (vlm.Scorer, error) {
	switch cfg.ScorerProvider {
	case config.ProviderOpenAI:
		return vlm.NewOpenAIScorer(vlm.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
			Logger: logger,
		})
	default:
		return vlm.NewHTTPScorer(vlm.HTTPConfig{
			Endpoint: cfg.InferenceURL,
			Timeout:  cfg.InferenceTimeout,
			Logger:   logger,
		})
	}
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
