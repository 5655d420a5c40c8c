package v1

import (
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

func NewRoutes(apiV1Group fiber.Router, uc UseCases, l logger.Interface) {
	r := &V1{
		subs:       uc.Submissions,
		flags:      uc.Flags,
		dlq:        uc.DeadLetter,
		pools:      uc.Pools,
		scaling:    uc.Scaling,
		balancer:   uc.Balancer,
		resilience: uc.Resilience,
		logger:     l,
	}

	submissions := apiV1Group.Group("/submissions")
	{
		submissions.Post("", r.submit)
		submissions.Get("/:id", r.getSubmission)
	}

	flags := apiV1Group.Group("/flags")
	{
		flags.Get("", r.listFlags)
		flags.Patch("/:name", r.setFlag)
	}

	dlq := apiV1Group.Group("/dlq")
	{
		dlq.Get("/metrics", r.dlqMetrics)
		dlq.Post("/requeue", r.requeue)
		dlq.Get("/:queue", r.failedJobs)
		dlq.Delete("/:queue", r.purge)
	}

	pools := apiV1Group.Group("/pools")
	{
		pools.Get("", r.listPools)
		pools.Get("/stats", r.allPoolStats)
		pools.Get("/:id", r.getPool)
		pools.Patch("/:id", r.patchPool)
		pools.Get("/:id/stats", r.poolStats)
		pools.Post("/:id/pause", r.pausePool)
		pools.Post("/:id/resume", r.resumePool)
		pools.Post("/:id/enable", r.enablePool)
		pools.Post("/:id/disable", r.disablePool)
		pools.Post("/:id/clean", r.cleanPool)
	}

	apiV1Group.Get("/dashboard", r.dashboard)

	scaling := apiV1Group.Group("/scaling")
	{
		scaling.Get("", r.scalingConfigs)
		scaling.Get("/metrics", r.scalingMetrics)
		scaling.Get("/history", r.scalingHistory)
		scaling.Get("/:queue", r.scalingConfig)
		scaling.Patch("/:queue", r.patchScaling)
		scaling.Post("/:queue/workers", r.setWorkers)
	}

	balancer := apiV1Group.Group("/balancer")
	{
		balancer.Get("/strategy", r.getStrategy)
		balancer.Put("/strategy", r.setStrategy)
		balancer.Get("/metrics", r.balancerMetrics)
		balancer.Post("/metrics/reset", r.resetBalancerMetrics)
		balancer.Get("/:queue/nodes", r.listNodes)
		balancer.Post("/:queue/nodes", r.addNode)
		balancer.Patch("/:queue/nodes/:id", r.patchNode)
		balancer.Delete("/:queue/nodes/:id", r.removeNode)
	}

	resilience := apiV1Group.Group("/resilience")
	{
		resilience.Get("/circuits", r.circuits)
		resilience.Post("/circuits/:name/reset", r.resetCircuit)
		resilience.Get("/bulkheads", r.bulkheads)
	}
}
