package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/internal/infrastructure"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
)

type Policy struct {
	Attempts int            `json:"attempts"`
	Backoff  entity.Backoff `json:"backoff"`
}

var DefaultPolicies = map[entity.JobType]Policy{
	entity.JobVerifyDocument: {Attempts: 3, Backoff: entity.Backoff{Type: "exponential", Delay: 2 * time.Second}},
	entity.JobCreatePayment:  {Attempts: 3, Backoff: entity.Backoff{Type: "exponential", Delay: 2 * time.Second}},
	entity.JobSendEmail:      {Attempts: 2, Backoff: entity.Backoff{Type: "exponential", Delay: time.Second}},
}

// Producer adds typed jobs to the broker, behind a bulkhead per job type.
type Producer struct {
	broker   infrastructure.Broker
	bulkhead usecase.Isolator
	policies map[entity.JobType]Policy
	logger   logger.Interface
	now      func() time.Time
}

func New(b infrastructure.Broker, bulkhead usecase.Isolator, policies map[entity.JobType]Policy, l logger.Interface) *Producer {
	if policies == nil {
		policies = DefaultPolicies
	}

	return &Producer{
		broker:   b,
		bulkhead: bulkhead,
		policies: policies,
		logger:   l,
		now:      time.Now,
	}
}

// Enqueue reports false when a job with jobID already exists.
func (p *Producer) Enqueue(ctx context.Context, jobType entity.JobType, jobID string, payload any, priority string) (bool, error) {
	if !jobType.Valid() {
		return false, fmt.Errorf("Producer - Enqueue - %q: %w", jobType, errs.ErrUnknownJobType)
	}

	prio, ok := entity.ParsePriority(priority)
	if !ok {
		return false, fmt.Errorf("Producer - Enqueue - %q: %w", priority, errs.ErrUnknownPriority)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("Producer - Enqueue - json.Marshal: %w", err)
	}

	policy, ok := p.policies[jobType]
	if !ok {
		policy = DefaultPolicies[jobType]
	}
	now := p.now()

	job := &entity.Job{
		ID:          jobID,
		Queue:       jobType.Queue(),
		Type:        jobType,
		Payload:     raw,
		Priority:    prio,
		MaxAttempts: policy.Attempts,
		Backoff:     policy.Backoff,
		State:       entity.JobWaiting,
		CreatedAt:   now,
		ScheduledAt: now,
	}

	var added bool

	err = p.bulkhead.Execute(ctx, string(jobType), func(ctx context.Context) error {
		var addErr error
		added, addErr = p.broker.Add(ctx, job)

		return addErr
	})
	if err != nil {
		return false, fmt.Errorf("Producer - Enqueue - %s: %w", jobID, err)
	}

	if !added {
		p.logger.Debug("Producer - Enqueue - job %s already queued", jobID)
	}

	return added, nil
}
