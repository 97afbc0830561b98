package main

import (
	"context"
	"log"

	"github.com/hibiken/asynq"

	"pdf-query-system/internal/config"
	"pdf-query-system/internal/database"
	"pdf-query-system/internal/logger"
	"pdf-query-system/internal/queue"
	"pdf-query-system/internal/storage"
	"pdf-query-system/internal/telemetry"
	"pdf-query-system/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StartupTimeoutDuration())
	defer cancel()

	db := database.NewManager(cfg.MongoURI, cfg.DBName)
	if err := db.Connect(ctx); err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer db.Disconnect(context.Background())

	store, err := storage.New(cfg)
	if err != nil {
		log.Fatal("Failed to create storage client:", err)
	}
	if err := store.Configure(ctx); err != nil {
		log.Fatal("Failed to configure media storage:", err)
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}

	redisOpt, err := queue.RedisConnOpt(cfg)
	if err != nil {
		log.Fatal("Invalid Redis configuration:", err)
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				queue.QueueCritical: 6,
				queue.QueueDefault:  3,
			},
			ShutdownTimeout: cfg.ShutdownTimeoutDuration(),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	pdfService := services.NewPDFService(cfg, db, store, metrics)
	processor := queue.NewTaskProcessor(pdfService)

	logger.Info("Starting Asynq worker", "concurrency", 10, "storage", store.Name())

	// Run blocks until SIGINT/SIGTERM
	if err := server.Run(queue.NewServeMux(processor)); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
