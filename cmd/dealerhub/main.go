// Package main запускает HTTP-сервер сервиса dealerhub.
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

	"github.com/mmeshcher/dealerhub-system/internal/config"
	"github.com/mmeshcher/dealerhub-system/internal/handler"
	"github.com/mmeshcher/dealerhub-system/internal/identity"
	"github.com/mmeshcher/dealerhub-system/internal/middleware"
	"github.com/mmeshcher/dealerhub-system/internal/repository"
	"github.com/mmeshcher/dealerhub-system/internal/service"
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

	var identityClient service.IdentityProvider
	if cfg.IdentityProviderAddress != "" {
		identityClient = identity.NewClient(cfg.IdentityProviderAddress)
	}

	svc := service.NewService(repo, identityClient)
	defer svc.Close()

	bootstrapCtx, bootstrapCancel := context.WithTimeout(context.Background(), 10*time.Second)
	admin, err := svc.BootstrapAdmin(bootstrapCtx, service.BootstrapAdminParams{
		Name:         cfg.AdminName,
		Email:        cfg.AdminEmail,
		MobileNumber: cfg.AdminMobileNumber,
		Password:     cfg.AdminPassword,
	})
	bootstrapCancel()
	if err != nil {
		sugar.Fatalw("admin bootstrap error", "error", err.Error())
	}
	if admin != nil {
		sugar.Infow("root admin account ready", "id", admin.ID)
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting dealerhub server", "addr", cfg.RunAddress)
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
