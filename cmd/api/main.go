package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"casei/internal/cache"
	"casei/internal/config"
	"casei/internal/database"
	"casei/internal/gcmd"
	"casei/internal/handlers"
	"casei/internal/kms"
	"casei/internal/logger"
	"casei/internal/middleware"
	"casei/internal/services"
	"casei/internal/validator"

	_ "casei/internal/docs" // Import swagger docs
)

// @title           CASEI API
// @version         1.0
// @description     Moderated metadata service for airborne and field campaign inventories. Every edit is a change request that moves through review before it is published.

// @host      localhost:8080
// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey PipelineKey
// @in header
// @name X-API-Key

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()
	ctx := context.Background()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Redis is optional; without it every cache call is a miss
	cacheService, closeCache := cache.Connect(ctx, appConfig.RedisURL)
	defer closeCache()

	validator.Register()

	db := dbManager.DB()
	httpClient := &http.Client{Timeout: appConfig.RequestTimeout}

	userService := services.NewUserService(db, services.WithLockout(appConfig.MaxLoginAttempts, appConfig.LockoutDuration))
	permissionService := services.NewPermissionService(db, cacheService)
	changeService := services.NewChangeService(db, cacheService)
	recommendationService := services.NewRecommendationService(db)
	auditService := services.NewAuditService(db)
	deployService := services.NewDeployService(services.DeployConfig{
		Token:      appConfig.GithubToken,
		Repo:       appConfig.GithubRepo,
		WorkflowID: appConfig.GithubWorkflowID,
		Branch:     appConfig.GithubBranch,
		APIURL:     appConfig.GithubAPIURL,
	}, httpClient)

	if err := permissionService.Seed(ctx); err != nil {
		return fmt.Errorf("failed to seed permission groups: %w", err)
	}

	syncer := gcmd.NewSyncer(db, kms.NewClient(appConfig.KMSBaseURL, httpClient),
		changeService, recommendationService, userService, appConfig.GcmdSyncUser)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.Metrics())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/api/health", func(c *gin.Context) {
		if err := dbManager.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "cache": cacheService.IsAvailable()})
	})

	handlers.RegisterRoutes(router, handlers.Services{
		Users:           userService,
		Permissions:     permissionService,
		Changes:         changeService,
		ApprovalLogs:    services.NewApprovalLogService(db),
		Published:       services.NewPublishedService(db, cacheService),
		Recommendations: recommendationService,
		Deploy:          deployService,
		Audit:           auditService,
		GcmdSync:        syncer,
		PipelineAPIKey:  appConfig.PipelineAPIKey,
		ReportDir:       appConfig.ReportDir,
	})

	go reportPoolStats(dbManager)

	if !appConfig.DeployConfigured() {
		log.Warn("GitHub deploy workflow is not configured; /api/admin/deploy will fail")
	}

	log.Infof("Starting CASEI server on port %s", appConfig.Port)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}

func reportPoolStats(m *database.Manager) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		middleware.SetDBConnectionsOpen(m.OpenConnections())
	}
}
