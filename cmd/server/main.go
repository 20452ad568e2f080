package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"

	"github.com/attrkit/eavdb/internal/config"
	"github.com/attrkit/eavdb/internal/database"
	"github.com/attrkit/eavdb/internal/handlers"
	"github.com/attrkit/eavdb/internal/middleware"
	"github.com/attrkit/eavdb/internal/types"

	_ "github.com/attrkit/eavdb/docs/api" // Swagger docs
)

// @title EAVDB API
// @version 1.0.0
// @description Dynamic attribute catalog service with multi-database support
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/attrkit/eavdb

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

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

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
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
	prometheus := fiberprometheus.New("eavdb")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API routes under /api
	api := app.Group("/api")

	// Version middleware
	api.Use(middleware.VersionMiddleware())

	// Create handlers
	schemaHandler := &handlers.SchemaHandler{DB: db}
	catalogHandler := &handlers.CatalogHandler{DB: db}
	healthHandler := &handlers.HealthHandler{Config: cfg, DB: db}

	// Health route
	api.Get("/health", healthHandler.GetHealth)

	// Schema administration routes (public GET, admin mutations)
	schemas := api.Group("/schemas")
	schemas.Get("/", schemaHandler.GetSchemata)
	schemas.Get("/:id", schemaHandler.GetSchema)
	schemas.Post("/", middleware.AuthAdmin(), schemaHandler.CreateSchema)
	schemas.Put("/:id", middleware.AuthAdmin(), schemaHandler.UpdateSchema)
	schemas.Delete("/:id", middleware.AuthAdmin(), schemaHandler.DeleteSchema)
	schemas.Post("/:id/choices", middleware.AuthAdmin(), schemaHandler.AddChoice)
	schemas.Delete("/choices/:id", middleware.AuthAdmin(), schemaHandler.DeleteChoice)

	// Catalog routes (public reads and queries, user mutations)
	catalog := api.Group("/catalog")
	catalog.Get("/rubrics", catalogHandler.GetRubrics)
	catalog.Post("/rubrics", middleware.AuthUser(), catalogHandler.CreateRubric)
	catalog.Get("/items/:id", catalogHandler.GetItem)
	catalog.Post("/items", middleware.AuthUser(), catalogHandler.CreateItem)
	catalog.Put("/items/:id/attributes", middleware.AuthUser(), catalogHandler.SetItemAttributes)
	catalog.Post("/items/query", catalogHandler.QueryItems)

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

	// Authorizer client is created lazily by the auth middleware
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

	// Check if it's a Fiber error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Check if it's an application error with its own code and type
	if e, ok := err.(*types.CustomError); ok {
		code = e.Code
		message = e.Message
		errorType = e.Type
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    code,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}
