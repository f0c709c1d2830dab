// Package main provides the pipeline API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/clinicflow/clinicflow/pkg/broadcast"
	"github.com/clinicflow/clinicflow/pkg/persistence"
	"github.com/clinicflow/clinicflow/pkg/taskqueue"
	"github.com/clinicflow/clinicflow/pkg/web"
	"github.com/clinicflow/clinicflow/pkg/workflow"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	deliverer   broadcast.Deliverer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	deliverer broadcast.Deliverer,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		deliverer:   deliverer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	broadcaster := broadcast.NewBroadcaster(a.persistence.EventRepository(), a.logger, a.deliverer)
	tasks := taskqueue.NewManager(a.persistence, broadcaster, a.logger)
	engine := workflow.NewEngine(a.persistence, tasks, broadcaster, a.logger)

	handlers := web.NewAPIHandlers(engine, tasks, broadcaster, a.persistence, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("ClinicFlow API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.ListWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Post("/:id/transitions", handlers.ExecuteTransition)
	w.Get("/:id/actions", handlers.GetTransitionLog)
	w.Get("/:id/tasks", handlers.WorkflowTasks)
	w.Post("/:id/events", handlers.BroadcastEvent)
	w.Get("/:id/events", handlers.EventHistory)

	t := app.Group("/tasks")
	t.Post("/", handlers.CreateTask)
	t.Get("/my", handlers.MyTasks)
	t.Patch("/:id/status", handlers.UpdateTaskStatus)
	t.Post("/:id/assign", handlers.AssignTask)

	c := app.Group("/clinics/:clinicId")
	c.Post("/tasks/reprioritize", handlers.ReprioritizeTasks)
	c.Post("/tasks/auto-assign", handlers.AutoAssignTasks)
	c.Get("/dashboard", handlers.DashboardSummary)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
