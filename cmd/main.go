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

	"github.com/padeliga/matchday/config"
	"github.com/padeliga/matchday/db"
	"github.com/padeliga/matchday/handlers"
	"github.com/padeliga/matchday/live"
	"github.com/padeliga/matchday/notify"
	"github.com/padeliga/matchday/repositories"
	"github.com/padeliga/matchday/routes"
	"github.com/padeliga/matchday/scheduler"
	"github.com/padeliga/matchday/services"
	"github.com/padeliga/matchday/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	// Avatar storage is optional: without R2 credentials uploads are disabled
	// but the rest of the engine runs normally.
	var uploader storage.FileUploader
	if cfg.R2AccountID != "" {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	}

	// Without WhatsApp credentials outbound messages go to the log.
	var sender notify.Sender = notify.NewLogSender(logger)
	if cfg.WhatsAppToken != "" {
		sender, err = notify.NewWhatsAppSender(notify.WhatsAppConfig{
			Token:   cfg.WhatsAppToken,
			PhoneID: cfg.WhatsAppPhoneID,
		})
		if err != nil {
			logger.Error("failed to initialize WhatsApp sender", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("WhatsApp sender initialized")
	}

	hub := live.NewHub()
	go hub.Run()

	playerRepo := repositories.NewPostgresPlayerRepository(dbConn)
	courtRepo := repositories.NewPostgresCourtRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	adminRepo := repositories.NewPostgresAdminRepository(dbConn)

	// One lock registry serves every service, so a scan and a direct response
	// touching the same match serialize on the same critical section.
	matchLocks := services.NewMatchLocks()

	cancellationService := services.NewCancellationService(matchRepo, playerRepo, sender, hub, cfg.Engine, logger)
	replacementService := services.NewReplacementService(playerRepo, matchRepo, courtRepo, cancellationService, sender, hub, cfg.Engine, logger)
	confirmationService := services.NewConfirmationService(playerRepo, matchRepo, courtRepo, replacementService, cancellationService, sender, hub, cfg.Engine, matchLocks, logger)
	matchmakingService := services.NewMatchmakingService(playerRepo, matchRepo, courtRepo, sender, hub, cfg.Engine, logger)
	matchService := services.NewMatchService(matchRepo, playerRepo, courtRepo, cancellationService, replacementService, sender, hub, cfg.Engine, matchLocks, logger)
	playerService := services.NewPlayerService(playerRepo, uploader, logger)
	authService := services.NewAuthService(adminRepo, logger)
	logger.Info("services initialized")

	sched := scheduler.New(confirmationService, matchmakingService, cfg.ScanInterval, cfg.MatchmakingHour, logger)
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go sched.Run(schedulerCtx)

	router := routes.InitRoutes(routes.Handlers{
		Auth:      handlers.NewAuthHandler(authService, cfg.JWTSecretKey),
		Player:    handlers.NewPlayerHandler(playerService),
		Match:     handlers.NewMatchHandler(matchService, matchmakingService, confirmationService, cancellationService),
		Webhook:   handlers.NewWebhookHandler(confirmationService),
		WebSocket: handlers.NewWebSocketHandler(hub, logger),
		Health:    handlers.NewHealthHandler(dbConn),
	}, cfg.JWTSecretKey)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		stopScheduler()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
}
