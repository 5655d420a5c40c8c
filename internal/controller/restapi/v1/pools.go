package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/controller/restapi/v1/request"
	"github.com/andreyxaxa/Submission-Pipeline/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/Submission-Pipeline/internal/dto"
	"github.com/gofiber/fiber/v2"
)

func (r *V1) listPools(ctx *fiber.Ctx) error {
	return ctx.Status(http.StatusOK).JSON(r.pools.List())
}

func (r *V1) getPool(ctx *fiber.Ctx) error {
	p, err := r.pools.Get(ctx.Params("id"))
	if err != nil {
		return r.failure(ctx, err, "getPool")
	}

	return ctx.Status(http.StatusOK).JSON(p)
}

// @Summary 	Update a worker pool
// @Tags 		pools
// @Accept 		json
// @Produce 	json
// @Param 		id path string true "Pool ID"
// @Param 		request body dto.PoolPatch true "Fields to change"
// @Success 	200 {object} entity.WorkerPoolDefinition
// @Failure 	400 {object} response.Error "Concurrency out of range"
// @Failure 	404 {object} response.Error "Unknown pool"
// @Router 		/v1/pools/{id} [patch]
func (r *V1) patchPool(ctx *fiber.Ctx) error {
	var patch dto.PoolPatch
	if err := ctx.BodyParser(&patch); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}

	p, err := r.pools.Patch(ctx.UserContext(), ctx.Params("id"), patch)
	if err != nil {
		return r.failure(ctx, err, "patchPool")
	}

	return ctx.Status(http.StatusOK).JSON(p)
}

func (r *V1) poolAction(action func(context.Context, string) error, where string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if err := action(ctx.UserContext(), ctx.Params("id")); err != nil {
			return r.failure(ctx, err, where)
		}

		return ctx.Status(http.StatusOK).JSON(response.Ok{Ok: true})
	}
}

func (r *V1) pausePool(ctx *fiber.Ctx) error {
	return r.poolAction(r.pools.Pause, "pausePool")(ctx)
}

func (r *V1) resumePool(ctx *fiber.Ctx) error {
	return r.poolAction(r.pools.Resume, "resumePool")(ctx)
}

func (r *V1) enablePool(ctx *fiber.Ctx) error {
	return r.poolAction(r.pools.Enable, "enablePool")(ctx)
}

func (r *V1) disablePool(ctx *fiber.Ctx) error {
	return r.poolAction(r.pools.Disable, "disablePool")(ctx)
}

// @Summary 	Remove finished jobs
// @Description Removes completed and failed jobs older than grace from the pool's queue
// @Tags 		pools
// @Accept 		json
// @Produce 	json
// @Param 		id path string true "Pool ID"
// @Param 		request body request.Clean false "Grace period"
// @Success 	200 {object} response.Cleaned
// @Failure 	400 {object} response.Error "Invalid grace"
// @Failure 	404 {object} response.Error "Unknown pool"
// @Router 		/v1/pools/{id}/clean [post]
func (r *V1) cleanPool(ctx *fiber.Ctx) error {
	var req request.Clean
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
		}
	}

	var grace time.Duration
	if req.Grace != "" {
		var err error
		grace, err = time.ParseDuration(req.Grace)
		if err != nil || grace < 0 {
			return errorResponse(ctx, http.StatusBadRequest, "grace must be a non-negative duration")
		}
	}

	id := ctx.Params("id")

	n, err := r.pools.Clean(ctx.UserContext(), id, grace)
	if err != nil {
		return r.failure(ctx, err, "cleanPool")
	}

	return ctx.Status(http.StatusOK).JSON(response.Cleaned{PoolID: id, Removed: n})
}

func (r *V1) poolStats(ctx *fiber.Ctx) error {
	s, err := r.pools.Stats(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return r.failure(ctx, err, "poolStats")
	}

	return ctx.Status(http.StatusOK).JSON(s)
}

func (r *V1) allPoolStats(ctx *fiber.Ctx) error {
	s, err := r.pools.AllStats(ctx.UserContext())
	if err != nil {
		return r.failure(ctx, err, "allPoolStats")
	}

	return ctx.Status(http.StatusOK).JSON(s)
}
