package v1

import (
	"net/http"

	"github.com/andreyxaxa/Submission-Pipeline/internal/controller/restapi/v1/request"
	"github.com/andreyxaxa/Submission-Pipeline/internal/controller/restapi/v1/response"
	"github.com/gofiber/fiber/v2"
)

// @Summary 	List dead-lettered jobs
// @Tags 		dlq
// @Produce 	json
// @Param 		queue path string true "Queue name"
// @Success 	200 {array} entity.Job
// @Failure 	404 {object} response.Error "Unknown queue"
// @Router 		/v1/dlq/{queue} [get]
func (r *V1) failedJobs(ctx *fiber.Ctx) error {
	jobs, err := r.dlq.Failed(ctx.UserContext(), ctx.Params("queue"))
	if err != nil {
		return r.failure(ctx, err, "failedJobs")
	}

	return ctx.Status(http.StatusOK).JSON(jobs)
}

// @Summary 	Requeue a dead-lettered job
// @Description Resets attempts and puts the job back on its queue. requeued is false when the job is not in the failed state.
// @Tags 		dlq
// @Accept 		json
// @Produce 	json
// @Param 		request body request.Requeue true "Job"
// @Success 	200 {object} response.Requeued
// @Failure 	400 {object} response.Error
// @Failure 	404 {object} response.Error "Unknown queue"
// @Router 		/v1/dlq/requeue [post]
func (r *V1) requeue(ctx *fiber.Ctx) error {
	var req request.Requeue
	if err := ctx.BodyParser(&req); err != nil || req.QueueName == "" || req.JobID == "" {
		return errorResponse(ctx, http.StatusBadRequest, "queueName and jobId are required")
	}

	ok, err := r.dlq.Requeue(ctx.UserContext(), req.QueueName, req.JobID)
	if err != nil {
		return r.failure(ctx, err, "requeue")
	}

	return ctx.Status(http.StatusOK).JSON(response.Requeued{Requeued: ok})
}

// @Summary 	Purge dead-lettered jobs
// @Tags 		dlq
// @Produce 	json
// @Param 		queue path string true "Queue name"
// @Success 	200 {object} response.Purged
// @Failure 	404 {object} response.Error "Unknown queue"
// @Router 		/v1/dlq/{queue} [delete]
func (r *V1) purge(ctx *fiber.Ctx) error {
	queue := ctx.Params("queue")

	n, err := r.dlq.Purge(ctx.UserContext(), queue)
	if err != nil {
		return r.failure(ctx, err, "purge")
	}

	return ctx.Status(http.StatusOK).JSON(response.Purged{Queue: queue, Purged: n})
}

// @Summary 	Dead-letter counts per queue
// @Tags 		dlq
// @Produce 	json
// @Success 	200 {object} map[string]int
// @Router 		/v1/dlq/metrics [get]
func (r *V1) dlqMetrics(ctx *fiber.Ctx) error {
	m, err := r.dlq.Metrics(ctx.UserContext())
	if err != nil {
		return r.failure(ctx, err, "dlqMetrics")
	}

	return ctx.Status(http.StatusOK).JSON(m)
}
