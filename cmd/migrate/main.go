// Command migrate creates the service's tables in the configured MySQL
// database.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/joho/godotenv"

	"qr-ordering/internal/config"
	"qr-ordering/internal/logger"
	"qr-ordering/internal/storage"
)

func main() {
	envFile := flag.String("env-file", ".env", "Path to .env file")
	timeout := flag.Duration("timeout", time.Minute, "Migration timeout")
	flag.Parse()

	log := logger.NewLogger()
	defer log.Close()

	if err := godotenv.Load(*envFile); err != nil {
		log.Warn("ENV", "No "+*envFile+" file, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("CONFIG", "Invalid configuration: "+err.Error())
	}

	store, err := storage.NewMySQLStore(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", "Failed to connect: "+err.Error())
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := storage.Migrate(ctx, store.DB(), log); err != nil {
		log.Fatal("MIGRATE", "Migration failed: "+err.Error())
	}
	log.LogProcess("MIGRATE", "Migration completed successfully")
}
