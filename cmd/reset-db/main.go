package main

import (
	"github.com/sirupsen/logrus"

	"backoffice-backend/shared/config"
	"backoffice-backend/shared/database"
	"backoffice-backend/shared/logger"
)

func main() {
	cfg := config.GetConfig()
	logger.Init(cfg.Server.LogLevel, cfg.IsProduction())
	logrus.Info("🗑️ Starting database reset...")

	db, err := database.Open(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("database connection failed")
	}

	if err := database.ResetDatabase(db); err != nil {
		logrus.WithError(err).Fatal("database reset failed")
	}

	logrus.Info("✅ Database reset completed - all tables dropped!")
	logrus.Info("💡 Run 'go run ./cmd/seed' to recreate tables and seed data")
}
