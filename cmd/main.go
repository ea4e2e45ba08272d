package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/mrsorbate/KADR.app-sub000/config"
	"github.com/mrsorbate/KADR.app-sub000/db"
	"github.com/mrsorbate/KADR.app-sub000/fixtures"
	"github.com/mrsorbate/KADR.app-sub000/handlers"
	"github.com/mrsorbate/KADR.app-sub000/realtime"
	"github.com/mrsorbate/KADR.app-sub000/repositories"
	api "github.com/mrsorbate/KADR.app-sub000/routes"
	"github.com/mrsorbate/KADR.app-sub000/services"
	"github.com/mrsorbate/KADR.app-sub000/storage"
)

func main() {
	// Загрузка конфигурации до логгера: уровень логирования берётся из неё
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	handlers.SetLogger(logger)
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("timezone", cfg.TeamTimezone),
		slog.Bool("fixture_sync", cfg.Fixtures.SyncEnabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	if err := db.Migrate(ctx, dbConn); err != nil {
		logger.Error("failed to apply schema", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("database connection established")

	// Архив сырых ответов фида (Cloudflare R2), без ключей отключён
	var archive storage.PayloadArchive = storage.NopArchive{}
	r2cfg := storage.R2Config{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
	}
	if r2cfg.Enabled() {
		r2, err := storage.NewR2PayloadArchive(ctx, r2cfg)
		if err != nil {
			logger.Error("failed to initialize R2 payload archive", slog.Any("error", err))
			os.Exit(1)
		}
		archive = r2
		logger.Info("R2 payload archive initialized", slog.String("bucket", cfg.R2BucketName))
	}

	importLog, err := storage.NewBoltImportLog(cfg.ImportLog)
	if err != nil {
		logger.Error("failed to open import log", slog.String("path", cfg.ImportLog), slog.Any("error", err))
		os.Exit(1)
	}
	defer importLog.Close()

	// Инициализация WebSocket Hub
	wsHub := realtime.NewHub(logger)
	go wsHub.Run(ctx)
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	txManager := repositories.NewTxManager(dbConn, logger)
	occurrenceRepo := repositories.NewPostgresOccurrenceRepository(dbConn)
	responseRepo := repositories.NewPostgresResponseRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	tombstoneRepo := repositories.NewPostgresTombstoneRepository(dbConn)

	// Инициализация сервисов
	expirer := services.NewTentativeExpirer(responseRepo, time.Now, logger)

	occurrenceService := services.NewOccurrenceService(services.OccurrenceServiceDeps{
		Tx:          txManager,
		Occurrences: occurrenceRepo,
		Responses:   responseRepo,
		Teams:       teamRepo,
		Tombstones:  tombstoneRepo,
		Expirer:     expirer,
		Broadcaster: wsHub,
		Location:    cfg.Location,
		Logger:      logger,
	})
	responseService := services.NewResponseService(txManager, occurrenceRepo, responseRepo, teamRepo, expirer, wsHub, time.Now, logger)

	var feed services.FixtureFeed
	if cfg.Fixtures.BaseURL != "" {
		feed = fixtures.NewClient(fixtures.ClientConfig{
			BaseURL: cfg.Fixtures.BaseURL,
			Token:   cfg.Fixtures.Token,
			Timeout: cfg.Fixtures.Timeout,
			Logger:  logger,
		})
	}
	fixtureService := services.NewFixtureService(services.FixtureServiceDeps{
		Tx:          txManager,
		Occurrences: occurrenceRepo,
		Responses:   responseRepo,
		Teams:       teamRepo,
		Feed:        feed,
		Archive:     archive,
		ImportLog:   importLog,
		Expirer:     expirer,
		Broadcaster: wsHub,
		Location:    cfg.Location,
		Logger:      logger,
	})
	logger.Info("Services initialized")

	// Планировщик импорта игр
	var scheduler *services.ImportScheduler
	if cfg.Fixtures.SyncEnabled {
		scheduler, err = services.NewImportScheduler(services.ImportSchedulerConfig{
			Schedule: cfg.Fixtures.SyncSchedule,
			Location: cfg.Location,
			Timeout:  10 * time.Minute,
		}, teamRepo, fixtureService, logger)
		if err != nil {
			logger.Error("failed to create import scheduler", slog.Any("error", err))
			os.Exit(1)
		}
		scheduler.Start()
		logger.Info("Fixture import scheduler started", slog.String("schedule", cfg.Fixtures.SyncSchedule))
	}

	// Инициализация обработчиков HTTP
	occurrenceHandler := handlers.NewOccurrenceHandler(occurrenceService, cfg.Location)
	responseHandler := handlers.NewResponseHandler(responseService)
	fixtureHandler := handlers.NewFixtureHandler(fixtureService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, occurrenceService, cfg.AllowedOrigins)

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		api.Options{JWTSecret: cfg.JWTSecretKey, AllowedOrigins: cfg.AllowedOrigins},
		occurrenceHandler,
		responseHandler,
		fixtureHandler,
		webSocketHandler,
	)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second, // ручной импорт ждёт фид
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	if scheduler != nil {
		// ждём текущий цикл импорта, но не дольше таймаута завершения
		select {
		case <-scheduler.Stop().Done():
		case <-time.After(15 * time.Second):
			logger.Warn("import scheduler did not stop in time")
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("failed to force close server", slog.Any("error", closeErr))
		}
	} else {
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
