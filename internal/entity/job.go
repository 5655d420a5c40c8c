package entity

import (
	"encoding/json"
	"time"
)

type JobType string

const (
	JobVerifyDocument JobType = "verify_document"
	JobCreatePayment  JobType = "create_payment"
	JobSendEmail      JobType = "send_email"
)

// JobTypes lists every job type. Each type is served by the queue of the same name.
var JobTypes = []JobType{JobVerifyDocument, JobCreatePayment, JobSendEmail}

func (t JobType) Queue() string {
	return string(t)
}

func (t JobType) Valid() bool {
	for _, jt := range JobTypes {
		if jt == t {
			return true
		}
	}

	return false
}

type Priority int

const (
	PriorityCritical Priority = 0
	PriorityHigh     Priority = 1
	PriorityNormal   Priority = 2
	PriorityLow      Priority = 3
)

var priorityNames = map[string]Priority{
	"critical": PriorityCritical,
	"high":     PriorityHigh,
	"normal":   PriorityNormal,
	"low":      PriorityLow,
}

// ParsePriority maps a priority name to its numeric value; an empty name is normal.
func ParsePriority(name string) (Priority, bool) {
	if name == "" {
		return PriorityNormal, true
	}
	p, ok := priorityNames[name]

	return p, ok
}

type JobState string

const (
	JobWaiting   JobState = "waiting"
	JobDelayed   JobState = "delayed"
	JobActive    JobState = "active"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

type Backoff struct {
	Type  string        `json:"type"`
	Delay time.Duration `json:"delay"`
}

// Next returns the delay before retry number attempt (1-based).
func (b Backoff) Next(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if b.Type != "exponential" {
		return b.Delay
	}
	shift := attempt - 1
	if shift > 20 {
		shift = 20
	}

	return b.Delay * time.Duration(1<<shift)
}

type Job struct {
	ID       string          `json:"id"`
	Queue    string          `json:"queue"`
	Type     JobType         `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Priority Priority        `json:"priority"`

	Attempts    int     `json:"attempts"`
	MaxAttempts int     `json:"max_attempts"`
	Backoff     Backoff `json:"backoff"`

	State     JobState `json:"state"`
	LastError *string  `json:"last_error,omitempty"`
	WorkerID  *string  `json:"worker_id,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// ProcessingTime is the wall time of the last attempt, zero while unfinished.
func (j *Job) ProcessingTime() time.Duration {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}

	return j.FinishedAt.Sub(*j.StartedAt)
}

type QueueCounts struct {
	Waiting   int  `json:"waiting"`
	Active    int  `json:"active"`
	Completed int  `json:"completed"`
	Failed    int  `json:"failed"`
	Delayed   int  `json:"delayed"`
	Paused    bool `json:"paused"`
}
