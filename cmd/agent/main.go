// Package main - точка входа интеллектуального агента "Обучение"
// платформы Medsenger. Агент ведёт локальное зеркало подключённых
// контрактов, каталог обучающих курсов и начисляет баллы за
// пройденные уроки.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация use cases (Commands/Queries)
// - Infrastructure: реализация репозиториев, клиент платформы
// - Interface: HTTP endpoints протокола агентов
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/medsenger/education-agent/config"

	// Application layer
	"github.com/medsenger/education-agent/internal/application/command"
	"github.com/medsenger/education-agent/internal/application/eventhandler"
	"github.com/medsenger/education-agent/internal/application/query"

	// Infrastructure layer
	"github.com/medsenger/education-agent/internal/domain/course"
	"github.com/medsenger/education-agent/internal/infrastructure/external/medsenger"
	"github.com/medsenger/education-agent/internal/infrastructure/messaging"
	"github.com/medsenger/education-agent/internal/infrastructure/persistence/postgres"
	"github.com/medsenger/education-agent/internal/infrastructure/persistence/redis"
	"github.com/medsenger/education-agent/internal/infrastructure/service"

	// Interface layer
	httpserver "github.com/medsenger/education-agent/internal/interface/http"

	// Packages
	"github.com/medsenger/education-agent/pkg/circuitbreaker"
	"github.com/medsenger/education-agent/pkg/logger"
	"github.com/medsenger/education-agent/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting Medsenger education agent",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	var dbConn *postgres.Connection
	if cfg.Database.URL != "" {
		dbConn, err = postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	} else {
		dbConn, err = postgres.NewConnection(ctx, postgres.DefaultConfig())
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("running database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	contractRepo := postgres.NewContractRepository(dbConn)
	pgCourseRepo := postgres.NewCourseRepository(dbConn)
	enrollmentRepo := postgres.NewEnrollmentRepository(dbConn)
	completionRepo := postgres.NewCompletionRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ REDIS (кеш каталога, опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var courseRepo course.Repository = pgCourseRepo

	useCatalogCache := !cfg.Redis.Disabled &&
		cfg.Features.IsEnabled(config.FeatureCatalogRedisCache, nil)
	if useCatalogCache {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err := redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, catalog served from Postgres", "error", err)
		} else {
			defer redisCache.Close()
			catalogCache := redis.NewCatalogCache(redisCache)
			courseRepo = redis.NewCachedCourseRepository(pgCourseRepo, catalogCache,
				redis.WithCatalogTTL(cfg.Redis.CatalogTTL))
			log.Info("Redis connection established, catalog cache enabled")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	eventBusConfig := messaging.DefaultInMemoryEventBusConfig()
	eventBusConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(eventBusConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. КЛИЕНТ ПЛАТФОРМЫ MEDSENGER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing Medsenger client...")
	clientConfig := medsenger.DefaultClientConfig(cfg.Medsenger.Host, cfg.Medsenger.APIKey)
	clientConfig.AgentID = cfg.Medsenger.AgentID
	clientConfig.Timeout = cfg.Medsenger.RequestTimeout
	clientConfig.Debug = cfg.Medsenger.Debug
	clientConfig.Logger = log
	clientConfig.Retrier = retry.New(
		retry.WithMaxAttempts(cfg.Medsenger.MaxRetries),
		retry.WithInitialDelay(cfg.Medsenger.RetryBaseDelay),
		retry.WithMaxDelay(cfg.Medsenger.RetryMaxDelay),
	)
	clientConfig.Breaker = circuitbreaker.New("medsenger-api",
		circuitbreaker.WithFailureThreshold(cfg.Medsenger.CircuitBreakerThreshold),
		circuitbreaker.WithTimeout(cfg.Medsenger.CircuitBreakerTimeout),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		}),
	)
	medsengerClient := medsenger.NewClient(clientConfig)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. СЕРВИСЫ ДОСТАВКИ СООБЩЕНИЙ
	// ─────────────────────────────────────────────────────────────────────────
	lessonSender := service.NewLessonSenderService(medsengerClient, log)
	resultNotifier := service.NewResultNotifierService(medsengerClient, eventBus, log)
	idGenerator := service.NewIDGenerator()
	tokenGenerator := service.NewAgentTokenGenerator()

	// ─────────────────────────────────────────────────────────────────────────
	// 10. APPLICATION LAYER (Commands, Queries)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")

	initializeContract := command.NewInitializeContractHandler(
		contractRepo, courseRepo, enrollmentRepo, idGenerator, tokenGenerator, eventBus)
	processOrder := command.NewProcessOrderHandler(
		contractRepo, courseRepo, enrollmentRepo, idGenerator, eventBus)
	removeContract := command.NewRemoveContractHandler(
		contractRepo, enrollmentRepo, eventBus)
	saveContractCourses := command.NewSaveContractCoursesHandler(
		contractRepo, courseRepo, enrollmentRepo, idGenerator, eventBus)
	submitLesson := command.NewSubmitLessonHandler(
		courseRepo, enrollmentRepo, enrollmentRepo, idGenerator, eventBus)

	agentStatus := query.NewGetAgentStatusHandler(contractRepo, courseRepo)
	contractCourses := query.NewGetContractCoursesHandler(contractRepo, courseRepo, enrollmentRepo)
	lessonQuery := query.NewGetLessonHandler(courseRepo, enrollmentRepo, completionRepo)
	coursePreview := query.NewGetCoursePreviewHandler(courseRepo)

	// ─────────────────────────────────────────────────────────────────────────
	// 11. РЕГИСТРАЦИЯ EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("registering event handlers...")

	if cfg.Features.IsEnabled(config.FeatureMessagingFirstLesson, nil) {
		onEnrollment := eventhandler.NewOnEnrollmentCreatedHandler(courseRepo, lessonSender, log)
		if err := eventBus.Subscribe(onEnrollment.EventType(), onEnrollment.Handle); err != nil {
			return fmt.Errorf("failed to subscribe enrollment handler: %w", err)
		}
	}

	if cfg.Features.IsEnabled(config.FeatureMessagingResultMessages, nil) {
		onScored := eventhandler.NewOnLessonScoredHandler(resultNotifier, log)
		if err := eventBus.Subscribe(onScored.EventType(), onScored.Handle); err != nil {
			return fmt.Errorf("failed to subscribe scoring handler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 12. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing HTTP server...")

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.APIKey = cfg.Medsenger.APIKey
	httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute

	httpDeps := httpserver.Dependencies{
		InitializeContract:  initializeContract,
		ProcessOrder:        processOrder,
		RemoveContract:      removeContract,
		SaveContractCourses: saveContractCourses,
		SubmitLesson:        submitLesson,
		AgentStatus:         agentStatus,
		ContractCourses:     contractCourses,
		Lesson:              lessonQuery,
		CoursePreview:       coursePreview,
		Contracts:           contractRepo,
		Courses:             courseRepo,
		Ledger:              enrollmentRepo,
		LessonSender:        lessonSender,
		Logger:              logger.Default(),
		HealthCheck:         dbConn.Ping,
	}

	httpServer := httpserver.NewServer(httpConfig, httpDeps)

	// ─────────────────────────────────────────────────────────────────────────
	// 13. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", "address", httpServer.Address())
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	log.Info("education agent is running", "http_address", httpServer.Address())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		log.Error("service error", "error", err)
		return err
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
		return err
	}

	// Event bus и база данных закрываются через defer: шина дожидается
	// незавершённых обработчиков, чтобы не потерять исходящие сообщения.

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	switch cfg.Observability.LogLevel {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" || cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}
