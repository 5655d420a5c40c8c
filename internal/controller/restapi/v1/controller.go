package v1

import (
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
)

type V1 struct {
	subs       usecase.SubmissionUseCase
	flags      usecase.FlagUseCase
	dlq        usecase.DeadLetterUseCase
	pools      usecase.WorkerPoolUseCase
	scaling    usecase.ScalingUseCase
	balancer   usecase.BalancerUseCase
	resilience usecase.ResilienceUseCase
	logger     logger.Interface
}

// UseCases groups everything the v1 handlers depend on.
type UseCases struct {
	Submissions usecase.SubmissionUseCase
	Flags       usecase.FlagUseCase
	DeadLetter  usecase.DeadLetterUseCase
	Pools       usecase.WorkerPoolUseCase
	Scaling     usecase.ScalingUseCase
	Balancer    usecase.BalancerUseCase
	Resilience  usecase.ResilienceUseCase
}
