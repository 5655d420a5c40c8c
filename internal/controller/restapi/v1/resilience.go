package v1

import (
	"net/http"

	"github.com/andreyxaxa/Submission-Pipeline/internal/controller/restapi/v1/response"
	"github.com/gofiber/fiber/v2"
)

func (r *V1) circuits(ctx *fiber.Ctx) error {
	c, err := r.resilience.Circuits(ctx.UserContext())
	if err != nil {
		return r.failure(ctx, err, "circuits")
	}

	return ctx.Status(http.StatusOK).JSON(c)
}

// @Summary 	Force a circuit closed
// @Tags 		resilience
// @Produce 	json
// @Param 		name path string true "Circuit name"
// @Success 	200 {object} response.Ok
// @Router 		/v1/resilience/circuits/{name}/reset [post]
func (r *V1) resetCircuit(ctx *fiber.Ctx) error {
	if err := r.resilience.ResetCircuit(ctx.UserContext(), ctx.Params("name")); err != nil {
		return r.failure(ctx, err, "resetCircuit")
	}

	return ctx.Status(http.StatusOK).JSON(response.Ok{Ok: true})
}

func (r *V1) bulkheads(ctx *fiber.Ctx) error {
	b, err := r.resilience.Bulkheads(ctx.UserContext())
	if err != nil {
		return r.failure(ctx, err, "bulkheads")
	}

	return ctx.Status(http.StatusOK).JSON(b)
}
