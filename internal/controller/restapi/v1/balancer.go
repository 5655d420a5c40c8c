package v1

import (
	"net/http"

	"github.com/andreyxaxa/Submission-Pipeline/internal/controller/restapi/v1/request"
	"github.com/andreyxaxa/Submission-Pipeline/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/Submission-Pipeline/internal/dto"
	"github.com/gofiber/fiber/v2"
)

func (r *V1) getStrategy(ctx *fiber.Ctx) error {
	return ctx.Status(http.StatusOK).JSON(response.Strategy{Strategy: r.balancer.Strategy()})
}

// @Summary 	Switch load balancing strategy
// @Tags 		balancer
// @Accept 		json
// @Produce 	json
// @Param 		request body request.Strategy true "round-robin, least-connections, weighted or health-based"
// @Success 	200 {object} response.Strategy
// @Failure 	400 {object} response.Error "Unknown strategy"
// @Router 		/v1/balancer/strategy [put]
func (r *V1) setStrategy(ctx *fiber.Ctx) error {
	var req request.Strategy
	if err := ctx.BodyParser(&req); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}

	if err := r.balancer.SetStrategy(req.Strategy); err != nil {
		return r.failure(ctx, err, "setStrategy")
	}

	return ctx.Status(http.StatusOK).JSON(response.Strategy{Strategy: r.balancer.Strategy()})
}

func (r *V1) listNodes(ctx *fiber.Ctx) error {
	nodes, err := r.balancer.Nodes(ctx.Params("queue"))
	if err != nil {
		return r.failure(ctx, err, "listNodes")
	}

	return ctx.Status(http.StatusOK).JSON(nodes)
}

func (r *V1) addNode(ctx *fiber.Ctx) error {
	var req request.AddNode
	if err := ctx.BodyParser(&req); err != nil || req.WorkerID == "" {
		return errorResponse(ctx, http.StatusBadRequest, "worker_id is required")
	}

	n, err := r.balancer.AddNode(ctx.Params("queue"), req.WorkerID, req.Weight)
	if err != nil {
		return r.failure(ctx, err, "addNode")
	}

	return ctx.Status(http.StatusCreated).JSON(n)
}

func (r *V1) patchNode(ctx *fiber.Ctx) error {
	var patch dto.NodePatch
	if err := ctx.BodyParser(&patch); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}

	n, err := r.balancer.PatchNode(ctx.Params("queue"), ctx.Params("id"), patch)
	if err != nil {
		return r.failure(ctx, err, "patchNode")
	}

	return ctx.Status(http.StatusOK).JSON(n)
}

func (r *V1) removeNode(ctx *fiber.Ctx) error {
	if err := r.balancer.RemoveNode(ctx.Params("queue"), ctx.Params("id")); err != nil {
		return r.failure(ctx, err, "removeNode")
	}

	return ctx.SendStatus(http.StatusNoContent)
}

func (r *V1) balancerMetrics(ctx *fiber.Ctx) error {
	return ctx.Status(http.StatusOK).JSON(r.balancer.Metrics())
}

func (r *V1) resetBalancerMetrics(ctx *fiber.Ctx) error {
	r.balancer.ResetMetrics()

	return ctx.Status(http.StatusOK).JSON(response.Ok{Ok: true})
}
