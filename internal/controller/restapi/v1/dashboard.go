package v1

import (
	"net/http"

	"github.com/andreyxaxa/Submission-Pipeline/internal/dto"
	"github.com/gofiber/fiber/v2"
)

// @Summary 	Operational overview
// @Description Pool stats, scaling, balancer, dead-letter, circuit, bulkhead and flag state in one document
// @Tags 		dashboard
// @Produce 	json
// @Success 	200 {object} dto.Dashboard
// @Router 		/v1/dashboard [get]
func (r *V1) dashboard(ctx *fiber.Ctx) error {
	c := ctx.UserContext()

	pools, err := r.pools.AllStats(c)
	if err != nil {
		return r.failure(ctx, err, "dashboard - pools")
	}

	scaling, err := r.scaling.Metrics(c)
	if err != nil {
		return r.failure(ctx, err, "dashboard - scaling")
	}

	dlq, err := r.dlq.Metrics(c)
	if err != nil {
		return r.failure(ctx, err, "dashboard - dlq")
	}

	circuits, err := r.resilience.Circuits(c)
	if err != nil {
		return r.failure(ctx, err, "dashboard - circuits")
	}

	bulkheads, err := r.resilience.Bulkheads(c)
	if err != nil {
		return r.failure(ctx, err, "dashboard - bulkheads")
	}

	flags, err := r.flags.List(c)
	if err != nil {
		return r.failure(ctx, err, "dashboard - flags")
	}

	return ctx.Status(http.StatusOK).JSON(dto.Dashboard{
		Pools:     pools,
		Scaling:   scaling,
		Balancer:  r.balancer.Metrics(),
		DLQ:       dlq,
		Circuits:  circuits,
		Bulkheads: bulkheads,
		Flags:     flags,
	})
}
