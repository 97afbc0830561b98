package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"pdf-query-system/internal/config"
	"pdf-query-system/internal/database"
	"pdf-query-system/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/migrate <command>")
		fmt.Println("Commands:")
		fmt.Println("  ensure-indexes  - Create the queries indexes (pdf_id, created_at)")
		fmt.Println("  verify-indexes  - Check that the queries indexes exist")
		os.Exit(1)
	}

	command := os.Args[1]

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.InitLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StartupTimeoutDuration())
	defer cancel()

	manager := database.NewManager(cfg.MongoURI, cfg.DBName)
	if err := manager.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer manager.Disconnect(context.Background())

	db, err := manager.Database()
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	start := time.Now()
	switch command {
	case "ensure-indexes":
		names, err := database.EnsureQueryIndexes(ctx, db)
		if err != nil {
			log.Fatalf("Index creation failed: %v", err)
		}
		pdfNames, err := database.EnsurePDFIndexes(ctx, db)
		if err != nil {
			log.Fatalf("Index creation failed: %v", err)
		}
		logger.Info("indexes ensured", "queries", names, "pdfs", pdfNames, "duration", time.Since(start).String())

	case "verify-indexes":
		if err := database.VerifyQueryIndexes(ctx, db); err != nil {
			log.Fatalf("Verification failed: %v", err)
		}
		logger.Info("indexes verified", "collection", database.QueriesCollection)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}
