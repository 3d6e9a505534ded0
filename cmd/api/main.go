package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"treasure-tower-backend/internal/config"
	"treasure-tower-backend/internal/handlers"
	"treasure-tower-backend/internal/middleware"
	"treasure-tower-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
		log.SetFormatter(&log.JSONFormatter{})
	}

	redisService, err := services.NewRedisService(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisService.Close()

	serverSeed := cfg.ServerSeed
	if serverSeed == "" {
		serverSeed, err = services.GenerateServerSeed()
		if err != nil {
			log.Fatalf("Failed to generate server seed: %v", err)
		}
	}

	gameEngine := services.NewGameEngine(redisService, serverSeed)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			gameEngine.CleanupStaleRounds(10 * time.Minute)
		}
	}()

	gameHandler := handlers.NewGameHandler(redisService)
	roundHandler := handlers.NewRoundHandler(gameEngine)
	depositHandler := handlers.NewDepositHandler(redisService)
	withdrawHandler := handlers.NewWithdrawHandler(redisService)
	adminHandler := handlers.NewAdminHandler(redisService)

	router := gin.Default()
	router.Use(middleware.CORSMiddleware())

	router.GET("/health", adminHandler.Health)

	api := router.Group("/api")
	api.Use(middleware.RateLimitMiddleware(redisService))
	{
		api.POST("/bet", gameHandler.PlaceBet)
		api.POST("/cashout", gameHandler.Cashout)
		api.GET("/balance", gameHandler.GetBalance)
		api.GET("/transactions", gameHandler.GetTransactions)

		api.POST("/deposit", depositHandler.RecordDeposit)

		api.POST("/withdraw", withdrawHandler.RequestWithdrawal)
		api.GET("/withdraw", withdrawHandler.GetWithdrawalHistory)

		rounds := api.Group("/rounds")
		{
			rounds.POST("/start", roundHandler.StartRound)
			rounds.POST("/reveal", roundHandler.Reveal)
			rounds.POST("/cashout", roundHandler.CashOut)
			rounds.POST("/reset", roundHandler.Reset)
			rounds.GET("/active", roundHandler.ActiveRound)
		}

		fair := api.Group("/fair")
		{
			fair.GET("/verification", roundHandler.GetVerificationData)
			fair.POST("/verify", roundHandler.VerifyRound)
		}

		admin := api.Group("/admin")
		admin.Use(middleware.AdminAuthMiddleware(cfg.AdminAPIKey))
		{
			admin.GET("/withdrawals", adminHandler.ListWithdrawals)
			admin.PUT("/withdrawals", adminHandler.UpdateWithdrawal)
			admin.POST("/withdrawals/batch", adminHandler.BatchUpdateWithdrawals)
			admin.GET("/health", adminHandler.Health)
		}
	}

	log.WithField("port", cfg.Port).Info("Server starting")
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
