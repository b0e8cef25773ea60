package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"strings"

	"distribution-service/internal/adapters/postgres"
	"distribution-service/internal/config"
	"distribution-service/internal/platform/db"
	"distribution-service/internal/platform/logging"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logging.New(config.Get("LOG_LEVEL", "info"))

	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found (using environment variables)")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if strings.TrimSpace(databaseURL) == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	conn, err := db.Open(ctx, databaseURL)
	if err != nil {
		log.WithError(err).Fatal("connect")
	}
	defer conn.Close()

	seedPath := config.Get("SEED_PATH", "data/seeds/distribution.json")
	if err := initAndSeed(ctx, conn, seedPath, log); err != nil {
		log.WithError(err).Fatal("database setup failed")
	}
}

func initAndSeed(ctx context.Context, conn *sql.DB, seedPath string, log logrus.FieldLogger) error {
	log.Info("Initializing database schema...")
	if err := postgres.InitSchema(ctx, conn); err != nil {
		return err
	}
	log.Info("Schema ready.")

	log.WithField("seed_path", seedPath).Info("Seeding database...")
	if err := postgres.SeedFromJSON(ctx, conn, seedPath); err != nil {
		return err
	}
	log.Info("Seeding complete.")

	return nil
}
