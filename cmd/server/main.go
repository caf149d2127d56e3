package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/sidechain/profiles/internal/auth"
	"github.com/zfogg/sidechain/profiles/internal/cache"
	"github.com/zfogg/sidechain/profiles/internal/config"
	"github.com/zfogg/sidechain/profiles/internal/database"
	"github.com/zfogg/sidechain/profiles/internal/handlers"
	"github.com/zfogg/sidechain/profiles/internal/logger"
	"github.com/zfogg/sidechain/profiles/internal/metrics"
	"github.com/zfogg/sidechain/profiles/internal/repository"
	"github.com/zfogg/sidechain/profiles/internal/server"
	"github.com/zfogg/sidechain/profiles/internal/stream"
	"github.com/zfogg/sidechain/profiles/internal/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServer()
	if err != nil {
		return err
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()

	logger.Log.Info("=== Sidechain profile API starting ===",
		zap.String("environment", cfg.Environment),
		zap.String("db_driver", cfg.DBDriver),
	)

	tp, err := telemetry.InitTracer(telemetry.Config{
		ServiceName:  server.ServiceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTelEndpoint,
		Enabled:      cfg.OTelEnabled,
		SamplingRate: cfg.OTelSamplingRate,
	})
	if err != nil {
		logger.Warn("Tracing disabled", zap.Error(err))
	}
	metrics.Initialize()

	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		return err
	}

	h := handlers.NewHandlers(db, repository.NewUserRepository(db))

	if cfg.RedisHost != "" {
		redisClient, err := cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
		if err != nil {
			logger.Warn("Continuing without profile cache", zap.Error(err))
		} else {
			defer redisClient.Close()
			h.SetProfileCache(cache.NewRedisProfileCache(redisClient, cfg.ProfileTTL))
		}
	}

	if cfg.StreamAPIKey != "" {
		mirror, err := stream.NewProfileMirror(cfg.StreamAPIKey, cfg.StreamAPISecret)
		if err != nil {
			logger.Warn("Continuing without chat profile mirror", zap.Error(err))
		} else {
			h.SetMirror(mirror)
		}
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	tokens := auth.NewTokenService([]byte(cfg.JWTSecret), cfg.TokenTTL)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.NewRouter(h, tokens),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Log.Info("Profile API listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info("Shutting down server...")

		// give outstanding requests 30 seconds to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
			logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Log.Info("Server exited")
	return nil
}
