package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/auth"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/middleware"
)

// Routes groups the handlers mounted on the ops server
type Routes struct {
	Health *HealthHandler
	Ops    *OpsHandler
	Jobs   *JobHandler
	Auth   fiber.Handler
}

// Register mounts public routes at the root and the rest under /api
func Register(app *fiber.App, r Routes) {
	app.Get("/health", r.Health.Check)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api", r.Auth)
	api.Get("/stats", r.Ops.Stats)
	api.Get("/users/:userId/quota", r.Ops.Quota)
	api.Get("/users/:userId/history", r.Ops.History)

	operator := middleware.RequireRole(auth.RoleOperator)
	api.Get("/info", operator, r.Jobs.Info)
	api.Post("/jobs", operator, r.Jobs.Create)
}
