package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeiKhy/linkgate/internal/config"
	"github.com/SergeiKhy/linkgate/internal/handler"
	"github.com/SergeiKhy/linkgate/internal/logger"
	"github.com/SergeiKhy/linkgate/internal/middleware"
	"github.com/SergeiKhy/linkgate/internal/service"
	"go.uber.org/zap"
)

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	zapLogger, err := logger.New(cfg.App.LogLevel, cfg.App.Env)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx := context.Background()

	// Хранилища
	st, err := openStores(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to open storage", zap.Error(err))
	}
	defer st.Close()

	// Сервисы
	linkService := service.NewLinkService(st.links, st.cache, cfg.Storage.LinkCacheTTL, zapLogger)
	adService := service.NewAdService(st.ads)
	authService := service.NewAuthService(cfg.Auth.AdminPassword, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// Worker pool событий воронки
	eventProcessor := service.NewEventProcessor(st.events, st.links, zapLogger)
	eventProcessor.Start()
	defer eventProcessor.Stop()

	gateService := service.NewGateService(linkService, st.sessions, eventProcessor, zapLogger,
		service.WithSessionTTL(cfg.Gate.SessionTTL),
	)

	if cfg.App.SeedDemo {
		if err := service.SeedDemo(ctx, linkService, adService, zapLogger); err != nil {
			zapLogger.Fatal("Failed to seed demo data", zap.Error(err))
		}
	}

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		CleanupInterval:   time.Minute,
	})
	defer rateLimiter.Stop()

	router := handler.NewRouter(handler.Services{
		Links:  linkService,
		Ads:    adService,
		Gate:   gateService,
		Events: eventProcessor,
		Auth:   authService,
	}, rateLimiter, zapLogger)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zapLogger.Info("Server starting",
			zap.String("port", cfg.App.Port),
			zap.String("storage", cfg.Storage.Driver),
			zap.String("sessions", cfg.Storage.SessionStore),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		zapLogger.Info("Shutting down server...", zap.String("signal", sig.String()))
	case err := <-serverErr:
		zapLogger.Error("Server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}
