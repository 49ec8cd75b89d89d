package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wiki-backend/internal/config"
	"wiki-backend/internal/db"
	"wiki-backend/internal/middleware"
	"wiki-backend/internal/page"
	"wiki-backend/internal/user"
	"wiki-backend/internal/worker"
	"wiki-backend/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Connect to database
	db.ConnectDb()
	defer db.CloseDb()

	// Migrate database schema
	db.Migrate()

	// Seed database with initial data (for development)
	db.SeedData()

	// Initialize Redis cache
	cache := redis.NewCache(config.AppConfig.RedisAddress)

	// Background pool for cache maintenance
	pool := worker.NewWorkerPool(4, 1000)
	defer pool.Shutdown()

	// Initialize repositories
	userRepo := user.NewRepository(db.AppDb)
	pageRepo := page.NewRepository(db.AppDb)
	// Initialize services
	userService := user.NewService(userRepo)
	pageService := page.NewService(pageRepo, userService, cache, pool)
	// Initialize handlers
	userHandler := user.NewHandler(userService)
	pageHandler := page.NewHandler(pageService)

	authMiddleware := &middleware.Auth{Users: userService}

	// Initialize Gin router
	router := gin.Default()
	router.Use(middleware.ErrorHandler())

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}

	if config.AppConfig.Environment == "development" {
		// Allow all origins in development
		corsConfig.AllowAllOrigins = true
	} else {
		// Restrict origins in production
		corsConfig.AllowOrigins = []string{config.AppConfig.FrontendAddress}
	}
	router.Use(cors.New(corsConfig))

	api := router.Group("/api")

	// Auth routes
	api.POST("/auth/register", userHandler.Register)
	api.POST("/auth/login", userHandler.Login)

	// User routes
	api.GET("/users/me", authMiddleware.Required(), userHandler.Me)
	api.GET("/users/list", authMiddleware.Required(), userHandler.List)
	api.GET("/users/admin/users", authMiddleware.Required(), userHandler.AdminList)
	api.PUT("/users/admin/users/:id/block", authMiddleware.Required(), userHandler.Block)
	api.PUT("/users/admin/users/:id/unblock", authMiddleware.Required(), userHandler.Unblock)

	// Page routes; listing, search, popular and single fetch degrade to
	// guest access on missing/invalid credentials
	api.GET("/pages", authMiddleware.Optional(), pageHandler.ShowTree)
	api.GET("/pages/popular", authMiddleware.Optional(), pageHandler.ShowPopular)
	api.GET("/pages/:id", authMiddleware.Optional(), pageHandler.ShowPage)
	api.POST("/pages", authMiddleware.Required(), pageHandler.Create)
	api.PUT("/pages/:id", authMiddleware.Required(), pageHandler.Update)
	api.DELETE("/pages/:id", authMiddleware.Required(), pageHandler.Delete)
	api.GET("/pages/:id/history", authMiddleware.Required(), pageHandler.ShowHistory)
	api.POST("/pages/:id/restore/:versionId", authMiddleware.Required(), pageHandler.Restore)
	api.GET("/pages/:id/collaborators", authMiddleware.Required(), pageHandler.ListCollaborators)
	api.POST("/pages/:id/collaborators", authMiddleware.Required(), pageHandler.AddCollaborator)
	api.POST("/pages/:id/like", authMiddleware.Required(), pageHandler.Like)
	api.DELETE("/pages/:id/like", authMiddleware.Required(), pageHandler.Unlike)
	api.GET("/pages/:id/likes", authMiddleware.Required(), pageHandler.ShowLikes)

	// Search
	api.GET("/search", authMiddleware.Optional(), pageHandler.Search)

	// Server configuration
	serverPort := config.AppConfig.ServerPort
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverPort),
		Handler: router.Handler(),
	}

	// Start server
	go func() {
		log.Printf("Server listening on port %s", serverPort)
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Println("Server shutdown error:", err)
	}

	<-ctx.Done()
	log.Println("Server shutdown complete")
}
