// cmd/server/main.go
// Entry point for the club API server: the member-facing lottery submission
// routes, the staff lottery administration routes, and the websocket feed that
// pushes run results to clients watching a date.
package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"

	"github.com/fairwaygreens/club-api/internal/config"
	"github.com/fairwaygreens/club-api/internal/database"
	"github.com/fairwaygreens/club-api/internal/handlers"
	"github.com/fairwaygreens/club-api/internal/lottery"
	"github.com/fairwaygreens/club-api/internal/middleware"
	"github.com/fairwaygreens/club-api/internal/websocket"
)

func main() {
	cfg := config.Load()

	// Structured logger for the allocation engine. HTTP request logging stays
	// on fiber's own middleware below.
	appLog := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		appLog.SetLevel(level)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Migrations run on startup so the schema is in sync before the first
	// request lands.
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	// The allocation engine. All lottery runs go through this one processor;
	// the advisory lock inside the store serializes runs per date across
	// every server instance sharing the database.
	proc := lottery.NewProcessor(lottery.NewGormStore(db), appLog)

	// Websocket hub for pushing run results to clients watching a date.
	hub := websocket.NewHub()
	go hub.Run()

	app := fiber.New(fiber.Config{
		AppName: "Club API",
	})

	app.Use(logger.New())
	app.Use(cors.New())

	// Liveness check for the load balancer, no auth.
	app.Get("/health", handlers.HealthCheck)

	// Websocket subscription: /ws/lottery/2026-04-10. Upgrade rejects plain
	// HTTP requests before the connection is hijacked.
	app.Use("/ws", websocket.Upgrade)
	app.Get("/ws/lottery/:date", websocket.Serve(hub))

	// Everything under /api/v1 requires a valid JWT; Auth also syncs the
	// member row so handlers can trust c.Locals("memberID").
	api := app.Group("/api/v1", middleware.Auth(cfg, db))

	// Member-facing lottery entry routes.
	api.Post("/lottery/entries", handlers.SubmitEntry(db))
	api.Get("/lottery/entries", handlers.GetEntries(db))
	api.Patch("/lottery/entries/:id", handlers.UpdateEntry(db))
	api.Delete("/lottery/entries/:id", handlers.CancelEntry(db))

	// Group submissions: a leader enters on behalf of a party that shares one outcome.
	api.Post("/lottery/groups", handlers.CreateGroup(db))
	api.Get("/lottery/groups", handlers.GetGroups(db))
	api.Delete("/lottery/groups/:id", handlers.CancelGroup(db))

	// Staff administration. RequireRole sits after Auth, so the role local is
	// always populated by the time it runs.
	admin := api.Group("/admin", middleware.RequireRole("admin", "staff"))
	admin.Post("/lottery/run", handlers.RunLottery(proc, hub))
	admin.Post("/lottery/reset-adjustments", middleware.RequireRole("admin"), handlers.ResetAdjustments(proc))
	admin.Get("/lottery/results/:date", handlers.GetResults(db))
	admin.Put("/tee-sheet/:date", handlers.UpsertTeeSheet(db))
	admin.Get("/tee-sheet/:date", handlers.GetTeeSheet(db))

	log.Printf("Starting server on port %s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
