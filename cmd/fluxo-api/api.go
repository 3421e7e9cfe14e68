// Package main provides the Fluxo API server implementation.
package main

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/fluxohq/fluxo/pkg/eventbus"
	"github.com/fluxohq/fluxo/pkg/persistence"
	"github.com/fluxohq/fluxo/pkg/services"
	"github.com/fluxohq/fluxo/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	jwtSecret   string
	tokenTTL    time.Duration
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	jwtSecret string,
	tokenTTL time.Duration,
) (*API, error) {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		jwtSecret:   jwtSecret,
		tokenTTL:    tokenTTL,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

func (a *API) App() (*fiber.App, error) {
	graphService := services.NewGraph(a.persistence, a.eventBus, a.logger)
	credentialService := services.NewCredential(a.persistence.Credentials(), a.logger)

	authService, err := services.NewAuth(a.persistence.Users(), a.jwtSecret, a.tokenTTL, a.logger)
	if err != nil {
		return nil, err
	}

	handlers := web.NewAPIHandlers(graphService, authService, credentialService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Fluxo API")
	})

	auth := app.Group("/auth")
	auth.Post("/signup", handlers.Signup)
	auth.Post("/signin", handlers.Signin)
	auth.Get("/me", handlers.RequireAuth(handlers.GetCurrentUser))

	w := app.Group("/workflows")
	w.Get("/", handlers.RequireAuth(handlers.GetWorkflows))
	w.Post("/", handlers.RequireAuth(handlers.CreateWorkflow))
	w.Get("/:id", handlers.RequireAuth(handlers.GetWorkflow))
	w.Patch("/:id", handlers.RequireAuth(handlers.UpdateWorkflow))
	w.Delete("/:id", handlers.RequireAuth(handlers.DeleteWorkflow))

	cr := app.Group("/credentials")
	cr.Get("/", handlers.RequireAuth(handlers.GetCredentials))
	cr.Post("/", handlers.RequireAuth(handlers.CreateCredential))
	cr.Get("/:id", handlers.RequireAuth(handlers.GetCredential))
	cr.Patch("/:id", handlers.RequireAuth(handlers.UpdateCredential))
	cr.Delete("/:id", handlers.RequireAuth(handlers.DeleteCredential))

	app.Get("/health", handlers.HealthCheck)

	return app, nil
}

func (a *API) Start(port int) error {
	app, err := a.App()
	if err != nil {
		return err
	}

	return app.Listen(":" + strconv.Itoa(port))
}
