package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"backoffice-backend/shared/config"
	"backoffice-backend/shared/database"
	"backoffice-backend/shared/logger"
)

func main() {
	cfg := config.GetConfig()
	logger.Init(cfg.Server.LogLevel, cfg.IsProduction())
	logrus.Info("🌱 Starting database seeding...")

	if err := database.InitDatabase(); err != nil {
		logrus.WithError(err).Fatal("failed to initialize database")
	}
	defer database.CloseDatabase()

	if err := database.SeedDatabase(context.Background(), database.GetDB(), cfg); err != nil {
		logrus.WithError(err).Fatal("failed to seed database")
	}

	logrus.Info("✅ Database seeding completed successfully!")
}
