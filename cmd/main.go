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

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"pdf-query-system/internal/ai"
	"pdf-query-system/internal/app"
	"pdf-query-system/internal/config"
	"pdf-query-system/internal/database"
	"pdf-query-system/internal/logger"
	"pdf-query-system/internal/queue"
	"pdf-query-system/internal/storage"
	"pdf-query-system/internal/telemetry"
	"pdf-query-system/middleware"
	"pdf-query-system/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	if err := run(cfg); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server exited")
}

func run(cfg *config.Config) error {
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTracer(ctx)
	}()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}

	db := database.NewManager(cfg.MongoURI, cfg.DBName)
	store, err := storage.New(cfg)
	if err != nil {
		return err
	}

	// Redis is optional: without it the rate limiter and answer cache are off.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = config.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, continuing without cache and rate limiting", "error", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	pdfService := services.NewPDFService(cfg, db, store, metrics)
	if cfg.AsyncProcessing {
		opt, err := queue.RedisConnOpt(cfg)
		if err != nil {
			return err
		}
		queueClient := queue.NewClient(opt)
		defer queueClient.Close()
		pdfService.SetQueue(queueClient)
	}

	var answerer services.Answerer
	gemini, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTier)
	if err != nil {
		logger.Warn("Question answering disabled", "error", err)
	} else {
		answerer = gemini
		defer gemini.Close()
	}

	var cache services.AnswerCache
	if rdb != nil && cfg.AnswerCacheTTL > 0 {
		cache = services.NewRedisAnswerCache(rdb, time.Duration(cfg.AnswerCacheTTL)*time.Second)
	}

	deps := &app.Deps{
		Config:  cfg,
		DB:      db,
		Storage: store,
		PDFs:    pdfService,
		Queries: services.NewQueryService(db, pdfService, answerer, cache, cfg.MaxContextChars, metrics),
	}

	var mw []gin.HandlerFunc
	if cfg.TracingEnabled {
		mw = append(mw, middleware.TracingMiddleware(), middleware.EnrichTrace())
	}
	mw = append(mw, middleware.MetricsMiddleware(metrics))

	application := app.New(cfg, db, store, app.Options{
		Middleware:    mw,
		APIMiddleware: []gin.HandlerFunc{middleware.RateLimitMiddleware(rdb, cfg)},
		Groups:        deps.RouteGroups(),
	})

	if err := application.Init(ctx); err != nil {
		return err
	}

	cron := services.NewCronService(pdfService, cfg.StaleSweepCron, time.Duration(cfg.StaleProcessingMinutes)*time.Minute)
	if err := cron.Start(); err != nil {
		logger.Warn("Stale PDF sweep disabled", "error", err)
	} else {
		defer cron.Stop()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           application.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "port", cfg.Port, "title", config.ServiceTitle)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var listenErr error
	select {
	case sig := <-quit:
		logger.Info("Shutting down server", "signal", sig.String())
	case listenErr = <-serveErr:
		logger.Error("Listener failed", "error", listenErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeoutDuration())
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	if err := application.Shutdown(ctx); err != nil {
		return err
	}
	return listenErr
}
