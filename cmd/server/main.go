package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"
	"github.com/localnerve/jam-build-minisdb/internal/config"
	"github.com/localnerve/jam-build-minisdb/internal/database"
	"github.com/localnerve/jam-build-minisdb/internal/handlers"
	"github.com/localnerve/jam-build-minisdb/internal/middleware"
	"github.com/localnerve/jam-build-minisdb/internal/services"
	"github.com/localnerve/jam-build-minisdb/internal/types"

	_ "github.com/localnerve/jam-build-minisdb/docs/api" // Swagger docs
)

// @title MinisDB API
// @version 1.0.0
// @description Go Fiber data service for the shared miniatures library
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/localnerve/jam-build-minisdb
// @contact.email info@localnerve.com

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database (app pool)
	appDB, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to app database: %v", err)
	}
	defer database.Close(appDB)

	// Connect to database (user pool)
	userDB, err := database.ConnectUser(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to user database: %v", err)
	}
	defer database.Close(userDB)

	// Run auto-migrations
	if err := database.AutoMigrate(appDB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: false,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())

	// Prometheus metrics
	prometheus := fiberprometheus.New("minisdb")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Health endpoint (app pool, no auth)
	app.Get("/health", func(c *fiber.Ctx) error {
		result := services.HealthCheck(cfg, appDB)
		status := fiber.StatusOK
		if result.Status != "healthy" {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(result)
	})

	// API routes under /api
	api := app.Group("/api")

	// Version middleware
	api.Use(middleware.VersionMiddleware())

	// Create handlers
	miniHandler := &handlers.MiniatureHandler{DB: userDB, AppDB: appDB}
	profileHandler := &handlers.ProfileHandler{DB: userDB}

	authUser := middleware.AuthUser(cfg)

	// Miniature library routes (pose lookup is public)
	api.Get("/minis/pose", miniHandler.GetMiniatureByPose)
	api.Get("/minis", authUser, miniHandler.ListMyMiniatures)
	api.Post("/minis", authUser, miniHandler.SaveMiniature)

	// Profile routes (all require user authentication)
	api.Get("/profile", authUser, profileHandler.GetMyProfile)
	api.Post("/profile", authUser, profileHandler.UpsertProfile)
	api.Post("/profile/ensure", authUser, profileHandler.EnsureProfile)
	api.Post("/profile/avatar", authUser, profileHandler.AttachAvatar)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":    fiber.StatusNotFound,
			"message":   "[404] Resource Not Found",
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
		})
	})

	// Authorizer initializes lazily on the first authenticated request
	log.Printf("Authorizer will be initialized on first authenticated request")

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	// Start server
	port := cfg.Port
	log.Printf("Starting server on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Println("Server stopped")
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := "unknown"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	if e, ok := err.(*types.CustomError); ok {
		code = e.Code
		message = e.Message
		errorType = e.Type
	}

	// Map nickname errors that escape the handlers
	nicknameConflict := false
	switch {
	case strings.HasPrefix(message, "E_NICKNAME_TAKEN"):
		nicknameConflict = true
		errorType = "profile.conflict.nickname"
		code = fiber.StatusConflict
	case strings.HasPrefix(message, "E_NICKNAME_INVALID"):
		errorType = "profile.validation.nickname"
		code = fiber.StatusBadRequest
	}

	return c.Status(code).JSON(fiber.Map{
		"status":           code,
		"message":          message,
		"ok":               false,
		"nicknameConflict": nicknameConflict,
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"url":              c.OriginalURL(),
		"type":             errorType,
	})
}
