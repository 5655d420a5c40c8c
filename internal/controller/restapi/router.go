package restapi

import (
	"github.com/andreyxaxa/Submission-Pipeline/config"
	v1 "github.com/andreyxaxa/Submission-Pipeline/internal/controller/restapi/v1"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

// @title Submission pipeline
// @version 1.0.0
// @host localhost:8080
// @BasePath /v1
func NewRouter(app *fiber.App, cfg *config.Config, uc v1.UseCases, l logger.Interface) {
	// Swagger
	if cfg.Swagger.Enabled {
		app.Get("/swagger/*", swagger.HandlerDefault)
	}

	// K8s probe
	app.Get("/healthz", func(ctx *fiber.Ctx) error {
		return ctx.SendStatus(fiber.StatusOK)
	})

	// Routers
	apiV1Group := app.Group("/v1")
	{
		v1.NewRoutes(apiV1Group, uc, l)
	}
}
