package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/algoprep/algoprep-api/internal/config"
	"github.com/algoprep/algoprep-api/internal/handler"
	"github.com/algoprep/algoprep-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	TicketHandler       *handler.TicketHandler
	ChatHandler         *handler.ChatHandler
	RealtimeHandler     *handler.RealtimeHandler
	NotificationHandler *handler.NotificationHandler
	QuestionHandler     *handler.QuestionHandler
	PlannerHandler      *handler.PlannerHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.TicketHandler != nil {
		tickets := api.Group("/tickets", jwtMiddleware)
		deps.TicketHandler.Register(tickets)
	}

	if deps.ChatHandler != nil {
		chat := api.Group("/chat", jwtMiddleware)
		deps.ChatHandler.Register(chat)
	}

	if deps.RealtimeHandler != nil {
		realtime := api.Group("/realtime", jwtMiddleware)
		deps.RealtimeHandler.Register(realtime)
	}

	if deps.NotificationHandler != nil {
		notifications := api.Group("/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
	}

	if deps.QuestionHandler != nil {
		questions := api.Group("/questions", jwtMiddleware)
		deps.QuestionHandler.Register(questions)
	}

	if deps.PlannerHandler != nil {
		planner := api.Group("/planner", jwtMiddleware)
		deps.PlannerHandler.Register(planner)
	}
}
