package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"chromance-server/internal/config"
	"chromance-server/internal/handler"
	"chromance-server/internal/lock"
	"chromance-server/internal/messaging"
	"chromance-server/internal/middleware"
	"chromance-server/internal/repository"
	"chromance-server/internal/service"
	"chromance-server/migrations"
	"chromance-server/pkg/ai"
	"chromance-server/pkg/database"
	"chromance-server/pkg/logger"
	"chromance-server/pkg/migration"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	encoding := "json"
	if cfg.Env == "development" {
		encoding = "console"
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: encoding})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// PostgreSQL
	db, err := database.New(ctx, database.Config{DSN: cfg.GetDSN(), MaxConns: cfg.DBMaxConns})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	migrator := migration.NewMigrator(migration.Config{
		MigrationsPath: ".",
		MigrationsFS:   migrations.FS,
	}, db.Pool)
	if err := migrator.Up(ctx); err != nil {
		log.Fatal("Failed to apply migrations", zap.Error(err))
	}

	// Redis turn locks
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()

	// RabbitMQ game events
	rabbitConn, err := amqp091.Dial(cfg.RabbitMQURL)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer func() { _ = rabbitConn.Close() }()

	events, err := messaging.NewRabbitMQGameEventPublisher(rabbitConn, cfg.EventExchange)
	if err != nil {
		log.Fatal("Failed to create event publisher", zap.Error(err))
	}
	defer func() { _ = events.Close() }()

	// Language-model oracle
	oracle, err := ai.New(ai.Config{
		APIKey:         cfg.OracleAPIKey,
		BaseURL:        cfg.OracleBaseURL,
		ModelName:      cfg.OracleModel,
		EmbeddingModel: cfg.OracleEmbeddingModel,
		Timeout:        cfg.OracleTimeout,
		MaxRetries:     cfg.OracleMaxRetries,
	})
	if err != nil {
		log.Fatal("Failed to create oracle client", zap.Error(err))
	}

	// Repositories
	campaignRepo := repository.NewPgCampaignRepository(db.Pool, log)
	progressRepo := repository.NewPgProgressRepository(db.Pool, log)
	narrativeRepo := repository.NewPgNarrativeRepository(db.Pool, log)
	characterRepo := repository.NewPgCharacterRepository(db, log)

	// Services
	tracker := service.NewProgressionTracker(progressRepo, campaignRepo, log)
	assembler := service.NewContextAssembler(narrativeRepo, oracle, service.ContextConfig{
		RecentWindow:     cfg.ContextRecentWindow,
		TopK:             cfg.ContextTopK,
		ArchiveTopK:      cfg.ContextArchiveTopK,
		LoreFloor:        cfg.ContextLoreFloor,
		TokenBudget:      cfg.ContextTokenBudget,
		RetrievalTimeout: cfg.ContextRetrievalTimeout,
	}, log)
	rewards := service.NewRewardEngine(progressRepo, characterRepo, log)
	lore := service.NewLoreExtractor(narrativeRepo, oracle, oracle, log)
	locker := lock.NewRedisTurnLocker(redisClient, cfg.TurnLockTTL, log)

	orchestrator := service.NewNarrativeOrchestrator(
		campaignRepo, progressRepo, characterRepo, narrativeRepo,
		tracker, assembler, rewards, lore,
		oracle, oracle, locker, events, log,
	)

	// HTTP
	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	prom := ginprometheus.NewPrometheus("chromance")
	prom.Use(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(middleware.Auth(cfg.JWTSecret, log))
	handler.NewNarrativeHandler(orchestrator, log).RegisterRoutes(api)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("Server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server stopped unexpectedly", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
		os.Exit(1)
	}
	log.Info("Server stopped")
}
