package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ashwinyue/next-intent/internal/config"
	"github.com/ashwinyue/next-intent/internal/database"
	"github.com/ashwinyue/next-intent/internal/handler"
	"github.com/ashwinyue/next-intent/internal/repository"
	"github.com/ashwinyue/next-intent/internal/router"
	"github.com/ashwinyue/next-intent/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	// 设置 Gin 模式
	gin.SetMode(cfg.Server.Mode)

	repos, pinger, closeDB, err := openRepositories(cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	services, err := service.NewServices(repos, cfg, redisClient, log)
	if err != nil {
		return fmt.Errorf("failed to init services: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 订阅其他实例的模型失效通知
	go services.Classifier.WatchInvalidations(ctx)

	handlers := handler.NewHandlers(services, pinger)
	r := router.SetupRouter(handlers, services, log)

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr), zap.String("version", cfg.App.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}

// openRepositories 按配置选择 PostgreSQL 或内存存储
func openRepositories(cfg *config.Config, log *zap.Logger) (*repository.Repositories, handler.Pinger, func(), error) {
	if cfg.Database.IsMemory() {
		log.Warn("using in-memory storage, data is lost on restart")
		return repository.NewMemoryRepositories(), nil, func() {}, nil
	}

	db, err := database.New(cfg, true)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Info("database connected", zap.String("dbname", cfg.Database.DBName))

	closeDB := func() {
		if err := db.Close(); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}
	return repository.NewRepositories(db.DB), db, closeDB, nil
}
