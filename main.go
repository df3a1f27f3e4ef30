package main

import (
	"context"
	"log"
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"crewmeet/config"
	"crewmeet/middleware"
	"crewmeet/routes"
	"crewmeet/services"
	"crewmeet/worker"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "CREWMEET: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Sentry for constraint-violation reporting
	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry initialization failed: %v", err)
		}
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Confirmed-flow events go to redis when enabled, logs otherwise
	notifier := services.NewNotifier(config.AppConfig.Redis)

	// Initialize and start the constraint sweep worker
	enforcer := services.NewActiveTeamService(config.DB, log.New(os.Stdout, "SWEEP: ", log.LstdFlags))
	constraintWorker := worker.NewConstraintWorker(config.DB, enforcer, config.AppConfig.ConstraintSweepInterval, log.New(os.Stdout, "SWEEP: ", log.LstdFlags))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go constraintWorker.Start(ctx)

	// Setup routes
	routes.SetupRoutes(app, config.DB, notifier)

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
