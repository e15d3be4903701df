package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/flexprice/recurring/internal/config"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/postgres"
	"github.com/joho/godotenv"
)

func main() {
	// Parse command line flags
	dryRun := flag.Bool("dry-run", false, "Print migration SQL without executing it")
	flag.Parse()

	if *dryRun {
		if err := postgres.WriteMigrations(os.Stdout); err != nil {
			log.Fatalf("Failed to print migrations: %v", err)
		}
		return
	}

	// .env is optional, real deployments set the environment directly
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	logger.Infow("Connecting to database", "host", cfg.Postgres.Host)
	db, err := postgres.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalw("Failed to connect to postgres", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Running database migrations...")
	applied, err := db.Migrate(ctx)
	if err != nil {
		logger.Fatalw("Failed to apply migrations", "applied", applied, "error", err)
	}
	logger.Infow("Migration completed successfully", "applied", applied)

	fmt.Println("Migration process completed")
}
