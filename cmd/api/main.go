package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/greenledger/verifier/internal/config"
	"github.com/greenledger/verifier/internal/handlers"
	"github.com/greenledger/verifier/internal/middleware"
	"github.com/greenledger/verifier/internal/models"
	"github.com/greenledger/verifier/internal/p2p"
	"github.com/greenledger/verifier/internal/services"
	"github.com/greenledger/verifier/internal/storage"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.toml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Warning: failed to load config from %s: %v", configPath, err)
		log.Println("Using default configuration")
		cfg = config.DefaultConfig()
	}

	// Initialize database
	db, err := storage.New(cfg.Database.DatabaseURL())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		execPath, err := os.Executable()
		if err == nil {
			execDir := filepath.Dir(execPath)
			migrationsPath = filepath.Join(execDir, "..", "..", "migrations")
		} else {
			migrationsPath = "./migrations"
		}
	}
	if err := db.Migrate(migrationsPath); err != nil {
		log.Printf("Warning: migrations failed: %v", err)
	}

	// Initialize services
	authService := services.NewAuthService(db)
	registryService := services.NewRegistryService(db)
	deviceService := services.NewDeviceService(db)
	listingService := services.NewListingService(db, registryService)
	fraudService := services.NewFraudService(db,
		cfg.Verification.FraudWindowSecs,
		cfg.Verification.FraudScanThreshold,
		cfg.Verification.FraudBurstPerSec)
	verifyService := services.NewVerifyService(registryService, registryService, fraudService,
		time.Duration(cfg.Verification.FetchTimeoutSecs)*time.Second)

	// Initialize P2P relay node
	p2pNode, err := p2p.NewNode(cfg.P2P.ListenAddresses, cfg.P2P.EnableTCP, cfg.P2P.EnableQUIC)
	if err != nil {
		log.Fatalf("Failed to create P2P node: %v", err)
	}
	defer p2pNode.Close()

	if err := p2pNode.Start(); err != nil {
		log.Fatalf("Failed to start P2P node: %v", err)
	}
	p2pNode.ServeLookups(registryService)

	log.Printf("P2P relay node started with ID: %s", p2pNode.Host().ID().String())

	// Set up HTTP server
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Initialize handlers
	jwtSecret := os.Getenv("JWT_SECRET")
	authHandler := handlers.NewAuthHandler(authService, jwtSecret)
	batchHandler := handlers.NewBatchHandler(registryService)
	verifyHandler := handlers.NewVerifyHandler(verifyService, fraudService, cfg.Verification.EnforceChecksum)
	listingHandler := handlers.NewListingHandler(listingService)
	deviceHandler := handlers.NewDeviceHandler(deviceService, verifyService)

	// API routes
	api := router.Group("/api/v1")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.GET("/profile", middleware.JWTMiddleware(jwtSecret), authHandler.Profile)
		}

		// Batch routes
		batches := api.Group("/batches")
		{
			batches.GET("/:tokenId", batchHandler.Get)
			batches.GET("/:tokenId/provenance", batchHandler.GetProvenance)

			protected := batches.Group("")
			protected.Use(middleware.JWTMiddleware(jwtSecret))
			{
				protected.POST("", middleware.RequireRole(models.RoleFarmer), batchHandler.Create)
				protected.GET("", batchHandler.List)
				protected.POST("/:tokenId/provenance", batchHandler.AppendProvenance)
			}
		}

		// Verification routes (public: consumers scan without accounts)
		api.GET("/verify/:tokenId", verifyHandler.Verify)
		api.POST("/verify/scan", verifyHandler.Scan)
		api.GET("/qr/:tokenId", verifyHandler.GenerateQR)
		api.GET("/verify/:tokenId/scans",
			middleware.JWTMiddleware(jwtSecret), middleware.RequireRole(models.RoleAdmin),
			verifyHandler.ScanHistory)

		// Marketplace routes
		listings := api.Group("/listings")
		{
			listings.GET("", listingHandler.Browse)

			protected := listings.Group("")
			protected.Use(middleware.JWTMiddleware(jwtSecret))
			{
				protected.POST("", middleware.RequireRole(models.RoleFarmer), listingHandler.Create)
				protected.POST("/:id/close", listingHandler.Close)
			}
		}

		// Scanner device routes
		devices := api.Group("/devices")
		{
			devices.POST("/register", deviceHandler.Register)
			devices.GET("", middleware.JWTMiddleware(jwtSecret), middleware.RequireRole(models.RoleAdmin), deviceHandler.List)
			devices.POST("/verify",
				middleware.DeviceAuthMiddleware(deviceService.GetAPIKeyHash, services.HashDeviceKey),
				deviceHandler.Verify)
		}
	}

	// Start HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("Verifier HTTP server starting on %s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Println("Server exited")
}
