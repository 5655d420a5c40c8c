package v1

import (
	"net/http"

	"github.com/andreyxaxa/Submission-Pipeline/internal/controller/restapi/v1/request"
	"github.com/andreyxaxa/Submission-Pipeline/internal/dto"
	"github.com/gofiber/fiber/v2"
)

func (r *V1) scalingConfigs(ctx *fiber.Ctx) error {
	return ctx.Status(http.StatusOK).JSON(r.scaling.Configs())
}

func (r *V1) scalingConfig(ctx *fiber.Ctx) error {
	cfg, err := r.scaling.Config(ctx.Params("queue"))
	if err != nil {
		return r.failure(ctx, err, "scalingConfig")
	}

	return ctx.Status(http.StatusOK).JSON(cfg)
}

// @Summary 	Update a scaling policy
// @Description Changes bounds, thresholds or timings. Current workers are clamped into the new bounds.
// @Tags 		scaling
// @Accept 		json
// @Produce 	json
// @Param 		queue path string true "Queue name"
// @Param 		request body dto.ScalingPatch true "Fields to change"
// @Success 	200 {object} entity.ScalingConfig
// @Failure 	400 {object} response.Error "Invalid bounds"
// @Failure 	404 {object} response.Error "Unknown queue"
// @Router 		/v1/scaling/{queue} [patch]
func (r *V1) patchScaling(ctx *fiber.Ctx) error {
	var patch dto.ScalingPatch
	if err := ctx.BodyParser(&patch); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}

	cfg, err := r.scaling.Patch(ctx.Params("queue"), patch)
	if err != nil {
		return r.failure(ctx, err, "patchScaling")
	}

	return ctx.Status(http.StatusOK).JSON(cfg)
}

// @Summary 	Set worker count manually
// @Tags 		scaling
// @Accept 		json
// @Produce 	json
// @Param 		queue path string true "Queue name"
// @Param 		request body request.SetWorkers true "Workers"
// @Success 	200 {object} entity.ScalingEvent
// @Failure 	400 {object} response.Error "Outside [min, max]"
// @Failure 	404 {object} response.Error "Unknown queue"
// @Router 		/v1/scaling/{queue}/workers [post]
func (r *V1) setWorkers(ctx *fiber.Ctx) error {
	var req request.SetWorkers
	if err := ctx.BodyParser(&req); err != nil || req.Workers == nil {
		return errorResponse(ctx, http.StatusBadRequest, "workers is required")
	}

	ev, err := r.scaling.SetWorkers(ctx.Params("queue"), *req.Workers)
	if err != nil {
		return r.failure(ctx, err, "setWorkers")
	}

	return ctx.Status(http.StatusOK).JSON(ev)
}

func (r *V1) scalingMetrics(ctx *fiber.Ctx) error {
	m, err := r.scaling.Metrics(ctx.UserContext())
	if err != nil {
		return r.failure(ctx, err, "scalingMetrics")
	}

	return ctx.Status(http.StatusOK).JSON(m)
}

func (r *V1) scalingHistory(ctx *fiber.Ctx) error {
	return ctx.Status(http.StatusOK).JSON(r.scaling.History())
}
