package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stroybirzha/backend/internal/config"
	"github.com/stroybirzha/backend/internal/db"
	"github.com/stroybirzha/backend/internal/goroutine"
	httpHandlers "github.com/stroybirzha/backend/internal/http/handlers"
	httpRouter "github.com/stroybirzha/backend/internal/http/router"
	"github.com/stroybirzha/backend/internal/logger"
	"github.com/stroybirzha/backend/internal/mailer"
	"github.com/stroybirzha/backend/internal/repository"
	"github.com/stroybirzha/backend/internal/service"
	"github.com/stroybirzha/backend/internal/storage"
	"github.com/stroybirzha/backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Инициализируем вспомогательные сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	docsStorage, err := storage.NewDocsStorage(cfg.DocsStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	projectRepo := repository.NewProjectRepository(dbConn)
	bidRepo := repository.NewBidRepository(dbConn)
	messageRepo := repository.NewMessageRepository(dbConn)
	evaluationRepo := repository.NewEvaluationRepository(dbConn)
	mediaRepo := repository.NewMediaRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// Сервисы.
	authService := service.NewAuthService(userRepo, tokenManager)
	notificationService := service.NewNotificationService(notificationRepo)
	projectService := service.NewProjectService(projectRepo, docsStorage)
	bidService := service.NewBidService(bidRepo, projectRepo, userRepo)
	lifecycleService := service.NewLifecycleService(projectRepo, bidRepo, evaluationRepo, messageRepo, userRepo, cfg.MinCommentLength)
	messageService := service.NewMessageService(messageRepo, bidRepo, projectRepo)

	// Вебсокеты.
	hub := ws.NewHub(ctx)
	hub.SetNotificationSaver(ws.NewNotificationServiceAdapter(notificationService))
	go hub.Run()

	mail := mailer.NewLogMailer()

	bidService.SetHub(hub)
	bidService.SetMailer(mail)
	lifecycleService.SetHub(hub)
	lifecycleService.SetMailer(mail)
	messageService.SetHub(hub)

	// Фоновая чистка протухших сессий.
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := userRepo.DeleteExpiredSessions(ctx); err != nil {
					logger.Log.WithError(err).Warn("main: не удалось почистить сессии")
				} else if n > 0 {
					logger.Log.WithField("count", n).Debug("main: удалены протухшие сессии")
				}
			}
		}
	})

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	profileHandler := httpHandlers.NewProfileHandler(userRepo, evaluationRepo)
	projectHandler := httpHandlers.NewProjectHandler(projectService, lifecycleService)
	bidHandler := httpHandlers.NewBidHandler(bidService)
	messageHandler := httpHandlers.NewMessageHandler(messageService)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	mediaHandler := httpHandlers.NewMediaHandler(mediaRepo, docsStorage)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Роутер.
	engine := httpRouter.SetupRouter(
		cfg,
		authHandler,
		profileHandler,
		projectHandler,
		bidHandler,
		messageHandler,
		notificationHandler,
		mediaHandler,
		wsHandler,
		healthHandler,
		tokenManager,
	)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
