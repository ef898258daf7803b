package main

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"visitauto/config"
	"visitauto/database"
	"visitauto/handlers"
	"visitauto/middleware"
	"visitauto/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.GetAppConfig()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Printf("Warning: database unavailable, runs will not be persisted: %v", err)
		db = nil
	} else if err := database.EnsureSchema(db); err != nil {
		log.Fatalf("Could not create schema: %v", err)
	}

	jwtService := services.NewJWTService(cfg.JWTSecret)
	authHandler := handlers.NewAuthHandler(jwtService)
	automationHandler := handlers.NewAutomationHandler(cfg.Automation, db)

	limiters := middleware.CreateRateLimiters()

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.POST("/api/auth/login", limiters["auth"].Limit(), authHandler.Login)

	api := r.Group("/api", handlers.AuthMiddleware(jwtService), limiters["general"].Limit())
	{
		api.POST("/automation/run", limiters["automation"].Limit(), automationHandler.Run)
		api.GET("/automation/runs", automationHandler.ListRuns)
		api.GET("/automation/runs/:id", automationHandler.GetRun)
	}

	log.Printf("Starting server on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
