package main

import (
	"log"
	"os"
	"strings"

	"devnotify/internal/api"
	"devnotify/internal/auth"
	"devnotify/internal/database"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	if err := auth.Configure(auth.ConfigFromEnv()); err != nil {
		log.Fatal("FATAL: ", err)
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./data/devnotify.db"
	}
	db, err := database.Initialize(dbPath)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	// Migrations are opt-in
	if os.Getenv("RUN_MIGRATIONS") == "true" {
		log.Println("Running database migrations...")
		if err := api.MigrateAddDeliveredAt(db); err != nil {
			log.Printf("Migration error (delivered_at): %v", err)
		}
	} else {
		log.Println("Migrations skipped (set RUN_MIGRATIONS=true to enable)")
	}

	enableWorkers := os.Getenv("ENABLE_WORKERS")
	if enableWorkers == "" {
		enableWorkers = "true"
	}
	if enableWorkers == "true" {
		schedule := os.Getenv("DELIVERY_SCHEDULE")
		worker, err := api.StartDeliveryWorker(db, schedule)
		if err != nil {
			log.Fatal("Failed to start delivery worker:", err)
		}
		defer worker.Stop()
		log.Println("Reminder delivery worker started")
	} else {
		log.Println("Background workers disabled (set ENABLE_WORKERS=true to enable)")
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: api.ErrorHandler,
	})

	app.Use(logger.New())

	allowedOrigins := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS"))
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:5173"
		log.Println("WARNING: Using default ALLOWED_ORIGINS. Set ALLOWED_ORIGINS env var for production.")
	} else if allowedOrigins != "*" {
		parts := strings.Split(allowedOrigins, ",")
		for i, p := range parts {
			parts[i] = strings.TrimSpace(p)
		}
		allowedOrigins = strings.Join(parts, ",")
	}
	log.Printf("CORS allowed origins: %s", allowedOrigins)

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, x-auth-token",
		AllowCredentials: true,
	}))

	api.SetupRoutes(app, db)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5000"
	}

	log.Printf("Server starting on port %s", port)
	log.Fatal(app.Listen(":" + port))
}
