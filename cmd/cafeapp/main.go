// Package main запускает HTTP-сервер витрины кафе.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/igorprost60-bit/cafe-app/internal/config"
	"github.com/igorprost60-bit/cafe-app/internal/handler"
	"github.com/igorprost60-bit/cafe-app/internal/middleware"
	"github.com/igorprost60-bit/cafe-app/internal/notify"
	"github.com/igorprost60-bit/cafe-app/internal/repository"
	"github.com/igorprost60-bit/cafe-app/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	callTimeout := time.Duration(cfg.RequestTimeout) * time.Second

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), callTimeout)
	if err := repo.EnsureSuperadmin(startupCtx, cfg.SuperadminID, "Superadmin"); err != nil {
		cancelStartup()
		sugar.Fatalw("superadmin seed error", "error", err.Error())
	}
	cancelStartup()

	var notifier service.Notifier
	if cfg.BotToken != "" {
		notifier = notify.NewClient(cfg.BotAPIAddress, cfg.BotToken, callTimeout)
	}

	svc := service.NewService(repo, notifier, logger, cfg.SuperadminID, cfg.MediaBaseURL, callTimeout)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.BotToken)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск фоновой отправки уведомлений о принятых заказах
	g.Go(func() error {
		svc.StartNotificationDispatcher(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting cafe-app server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
