package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"backoffice-backend/docs"
	"backoffice-backend/shared/config"
	"backoffice-backend/shared/database"
	"backoffice-backend/shared/logger"
	"backoffice-backend/shared/services"
	"backoffice-backend/shared/storage"
	"backoffice-backend/shared/utils/cache"
	"backoffice-backend/shared/utils/idgen"
	"backoffice-backend/system-service/handlers"
	"backoffice-backend/system-service/middleware"
	"backoffice-backend/system-service/realtime"
)

func main() {
	cfg := config.GetConfig()
	logger.Init(cfg.Server.LogLevel, cfg.IsProduction())
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := idgen.SetNode(cfg.Server.NodeID); err != nil {
		logrus.WithError(err).Fatal("❌ Invalid NODE_ID")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.InitDatabase(); err != nil {
		logrus.WithError(err).Fatal("❌ Failed to initialize database")
	}
	defer database.CloseDatabase()

	deps := services.Deps{
		DB:       database.GetDB(),
		Security: cfg.Security,
		MaxDepth: cfg.Tree.MaxDepth,
	}

	if cm := cache.GetCacheManager(); cm != nil {
		deps.Cache = cm
		defer cm.Close()
	}

	if store, err := storage.NewMinIOStore(ctx, cfg.MinIO); err != nil {
		logrus.WithError(err).Warn("⚠️ MinIO unavailable, image uploads disabled")
	} else {
		deps.Objects = store
	}

	hub := realtime.NewHub(cfg.Server.FrontendURL)
	go hub.Run(ctx)
	deps.Events = hub

	limiter := middleware.NewRateLimiter(cfg.RateLimit)
	go limiter.Cleanup(ctx, 5*time.Minute, 24*time.Hour)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.Server.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Client-Id", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(limiter.Middleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "System Service is running", "port": cfg.Server.Port})
	})

	docs.SwaggerInfo.BasePath = "/api/v1"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	handlers.RegisterRoutes(router, deps, hub.ServeWS)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithField("port", cfg.Server.Port).Info("🚀 System Service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("❌ Server failed")
		}
	}()

	<-ctx.Done()
	logrus.Info("🛑 Shutting down System Service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("graceful shutdown failed")
	}
}
