package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/renkeyss/cchbot-20241209-01/api"
	"github.com/renkeyss/cchbot-20241209-01/config"
	"github.com/renkeyss/cchbot-20241209-01/database"
	"github.com/renkeyss/cchbot-20241209-01/line"
	"github.com/renkeyss/cchbot-20241209-01/middleware"
	"github.com/renkeyss/cchbot-20241209-01/models"
	"github.com/renkeyss/cchbot-20241209-01/repository"
	"github.com/renkeyss/cchbot-20241209-01/services"
)

func main() {
	// Load application configuration. Missing LINE credentials abort here.
	config.LoadConfig()

	// Initialize database connection for the message log.
	db, err := database.Init()
	if err != nil {
		log.Fatalf("FATAL: [Main] Failed to initialize database: %v", err)
	}
	runMigrations(db)

	// Initialize LINE client
	lineClient := line.NewClient(
		config.AppConfig.Line.ChannelSecret,
		config.AppConfig.Line.ChannelToken,
		config.AppConfig.Line.APIBaseURL,
	)

	// Initialize Repositories
	quotaRepo := repository.NewQuotaRepository(config.AppConfig.DailyLimit)
	messageRepo := repository.NewMessageRepository(db)
	log.Println("INFO: [Main] Repositories initialized.")

	// Initialize Services
	intentService := services.NewIntentService(config.AppConfig.Messages.Introduction)
	backendService := services.NewBackendService(config.AppConfig.OpenAI, config.AppConfig.Assistant)
	log.Println("INFO: [Main] Services initialized.")

	// Initialize API Handler with all dependencies
	apiHandler := api.NewAPIHandler(lineClient, quotaRepo, messageRepo, intentService, backendService)
	log.Println("INFO: [Main] API Handler initialized.")

	// Create Gin engine
	r := gin.New()
	r.SetTrustedProxies(nil)

	// Register middlewares
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Cors())
	log.Println("INFO: [Main] Middlewares registered.")

	registerRoutes(r, apiHandler)
	log.Println("INFO: [Main] Routes registered.")

	serverPort := ":" + config.AppConfig.Server.Port
	log.Printf("INFO: [Main] Starting server on port %s", serverPort)
	if err := r.Run(serverPort); err != nil {
		log.Fatalf("FATAL: [Main] Server failed to start: %v", err)
	}
}

func runMigrations(db *gorm.DB) {
	log.Println("INFO: [Main] Running database migrations...")
	if err := db.AutoMigrate(&models.MessageLog{}); err != nil {
		log.Fatalf("FATAL: [Main] Failed to auto-migrate database: %v", err)
	}
	log.Println("INFO: [Main] Database migration completed.")
}

func registerRoutes(r *gin.Engine, handler *api.APIHandler) {
	// LINE platform webhook
	r.POST("/callback", handler.CallbackHandler)

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Admin endpoints
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/history/:userID", handler.HistoryHandler)
	}
}
