package broker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
)

type memJob struct {
	job entity.Job
	seq uint64
}

// MemoryBroker is a process-local broker with the same ordering and retry
// rules as PostgresBroker.
type MemoryBroker struct {
	mu     sync.Mutex
	jobs   map[string]*memJob
	paused map[string]bool
	seq    uint64
	now    func() time.Time
}

type MemoryOption func(*MemoryBroker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(b *MemoryBroker) {
		b.now = now
	}
}

func NewMemoryBroker(opts ...MemoryOption) *MemoryBroker {
	b := &MemoryBroker{
		jobs:   make(map[string]*memJob),
		paused: make(map[string]bool),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

func (b *MemoryBroker) Add(_ context.Context, job *entity.Job) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.jobs[job.ID]; ok {
		return false, nil
	}

	b.seq++
	cp := *job
	cp.State = entity.JobWaiting
	cp.Attempts = 0
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = b.now()
	}
	if cp.ScheduledAt.IsZero() {
		cp.ScheduledAt = cp.CreatedAt
	}
	b.jobs[job.ID] = &memJob{job: cp, seq: b.seq}

	return true, nil
}

func (b *MemoryBroker) Reserve(_ context.Context, queue, workerID string) (*entity.Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.paused[queue] {
		return nil, nil
	}

	now := b.now()

	var next *memJob
	for _, mj := range b.jobs {
		if !b.due(mj, queue, now) {
			continue
		}
		if next == nil || less(mj, next) {
			next = mj
		}
	}
	if next == nil {
		return nil, nil
	}

	wid := workerID
	next.job.State = entity.JobActive
	next.job.Attempts++
	next.job.WorkerID = &wid
	next.job.StartedAt = &now
	next.job.FinishedAt = nil

	cp := next.job

	return &cp, nil
}

func (b *MemoryBroker) due(mj *memJob, queue string, now time.Time) bool {
	if mj.job.Queue != queue {
		return false
	}
	if mj.job.State != entity.JobWaiting && mj.job.State != entity.JobDelayed {
		return false
	}

	return !mj.job.ScheduledAt.After(now)
}

func less(a, b *memJob) bool {
	if a.job.Priority != b.job.Priority {
		return a.job.Priority < b.job.Priority
	}
	if !a.job.CreatedAt.Equal(b.job.CreatedAt) {
		return a.job.CreatedAt.Before(b.job.CreatedAt)
	}

	return a.seq < b.seq
}

func (b *MemoryBroker) active(id string) (*memJob, error) {
	mj, ok := b.jobs[id]
	if !ok || mj.job.State != entity.JobActive {
		return nil, errs.ErrRecordNotFound
	}

	return mj, nil
}

func (b *MemoryBroker) Complete(_ context.Context, job *entity.Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	mj, err := b.active(job.ID)
	if err != nil {
		return fmt.Errorf("MemoryBroker - Complete: %w", err)
	}

	now := b.now()
	mj.job.State = entity.JobCompleted
	mj.job.FinishedAt = &now

	job.State = entity.JobCompleted
	job.FinishedAt = &now

	return nil
}

func (b *MemoryBroker) Fail(_ context.Context, job *entity.Job, cause error) (entity.JobState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	mj, err := b.active(job.ID)
	if err != nil {
		return "", fmt.Errorf("MemoryBroker - Fail: %w", err)
	}

	now := b.now()
	reason := cause.Error()

	next := entity.JobFailed
	if !errs.IsFatal(cause) && mj.job.Attempts < mj.job.MaxAttempts {
		next = entity.JobDelayed
		mj.job.ScheduledAt = now.Add(mj.job.Backoff.Next(mj.job.Attempts))
	}

	mj.job.State = next
	mj.job.LastError = &reason
	mj.job.FinishedAt = &now

	job.State = next
	job.LastError = &reason
	job.FinishedAt = &now

	return next, nil
}

func (b *MemoryBroker) Reclaim(_ context.Context, queue string, staleAfter time.Duration) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	cutoff := now.Add(-staleAfter)
	reason := ErrReclaimed.Error()

	n := 0
	for _, mj := range b.jobs {
		j := &mj.job
		if j.Queue != queue || j.State != entity.JobActive || j.StartedAt == nil || !j.StartedAt.Before(cutoff) {
			continue
		}

		j.State = entity.JobFailed
		if j.Attempts < j.MaxAttempts {
			j.State = entity.JobDelayed
		}
		j.ScheduledAt = now
		j.LastError = &reason
		j.WorkerID = nil
		j.FinishedAt = &now
		n++
	}

	return n, nil
}

func (b *MemoryBroker) Counts(_ context.Context, queue string) (entity.QueueCounts, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	c := entity.QueueCounts{Paused: b.paused[queue]}

	for _, mj := range b.jobs {
		if mj.job.Queue != queue {
			continue
		}
		switch mj.job.State {
		case entity.JobWaiting, entity.JobDelayed:
			if mj.job.ScheduledAt.After(now) {
				c.Delayed++
			} else {
				c.Waiting++
			}
		case entity.JobActive:
			c.Active++
		case entity.JobCompleted:
			c.Completed++
		case entity.JobFailed:
			c.Failed++
		}
	}

	return c, nil
}

func (b *MemoryBroker) CompletedSince(_ context.Context, queue string, since time.Time) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, mj := range b.jobs {
		if mj.job.Queue == queue && mj.job.State == entity.JobCompleted &&
			mj.job.FinishedAt != nil && !mj.job.FinishedAt.Before(since) {
			n++
		}
	}

	return n, nil
}

func (b *MemoryBroker) RecentCompleted(_ context.Context, queue string, limit int) ([]*entity.Job, error) {
	return b.collect(queue, entity.JobCompleted, limit), nil
}

func (b *MemoryBroker) Failed(_ context.Context, queue string) ([]*entity.Job, error) {
	return b.collect(queue, entity.JobFailed, 0), nil
}

// collect returns copies of jobs in state, most recently finished first.
func (b *MemoryBroker) collect(queue string, state entity.JobState, limit int) []*entity.Job {
	b.mu.Lock()
	defer b.mu.Unlock()

	var jobs []*entity.Job
	for _, mj := range b.jobs {
		if mj.job.Queue == queue && mj.job.State == state {
			cp := mj.job
			jobs = append(jobs, &cp)
		}
	}

	sort.Slice(jobs, func(i, j int) bool {
		return finishedAt(jobs[i]).After(finishedAt(jobs[j]))
	})

	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}

	return jobs
}

func finishedAt(j *entity.Job) time.Time {
	if j.FinishedAt == nil {
		return j.CreatedAt
	}

	return *j.FinishedAt
}

func (b *MemoryBroker) Retry(_ context.Context, queue, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	mj, ok := b.jobs[id]
	if !ok || mj.job.Queue != queue || mj.job.State != entity.JobFailed {
		return false, nil
	}

	mj.job.State = entity.JobWaiting
	mj.job.Attempts = 0
	mj.job.ScheduledAt = b.now()
	mj.job.WorkerID = nil
	mj.job.StartedAt = nil
	mj.job.FinishedAt = nil

	return true, nil
}

func (b *MemoryBroker) PurgeFailed(_ context.Context, queue string) (int, error) {
	return b.remove(func(j *entity.Job) bool {
		return j.Queue == queue && j.State == entity.JobFailed
	}), nil
}

func (b *MemoryBroker) Clean(_ context.Context, queue string, grace time.Duration, state entity.JobState) (int, error) {
	cutoff := b.now().Add(-grace)

	return b.remove(func(j *entity.Job) bool {
		return j.Queue == queue && j.State == state && finishedAt(j).Before(cutoff)
	}), nil
}

func (b *MemoryBroker) remove(match func(*entity.Job) bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for id, mj := range b.jobs {
		if match(&mj.job) {
			delete(b.jobs, id)
			n++
		}
	}

	return n
}

func (b *MemoryBroker) Pause(_ context.Context, queue string) error {
	b.mu.Lock()
	b.paused[queue] = true
	b.mu.Unlock()

	return nil
}

func (b *MemoryBroker) Resume(_ context.Context, queue string) error {
	b.mu.Lock()
	delete(b.paused, queue)
	b.mu.Unlock()

	return nil
}

// Get returns a copy of a job regardless of state.
func (b *MemoryBroker) Get(id string) (*entity.Job, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	mj, ok := b.jobs[id]
	if !ok {
		return nil, false
	}
	cp := mj.job

	return &cp, true
}
