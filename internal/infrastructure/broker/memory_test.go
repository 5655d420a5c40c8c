package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newJob(id string, p entity.Priority, at time.Time) *entity.Job {
	return &entity.Job{
		ID:          id,
		Queue:       "verify_document",
		Type:        entity.JobVerifyDocument,
		Priority:    p,
		MaxAttempts: 3,
		Backoff:     entity.Backoff{Type: "exponential", Delay: 2 * time.Second},
		CreatedAt:   at,
		ScheduledAt: at,
	}
}

func TestReserveOrdersByPriorityThenArrival(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewMemoryBroker(WithClock(clock.Now))
	ctx := context.Background()

	_, _ = b.Add(ctx, newJob("low", entity.PriorityLow, clock.t))
	_, _ = b.Add(ctx, newJob("normal-1", entity.PriorityNormal, clock.t.Add(time.Millisecond)))
	_, _ = b.Add(ctx, newJob("normal-2", entity.PriorityNormal, clock.t.Add(2*time.Millisecond)))
	_, _ = b.Add(ctx, newJob("critical", entity.PriorityCritical, clock.t.Add(3*time.Millisecond)))

	want := []string{"critical", "normal-1", "normal-2", "low"}
	for _, id := range want {
		job, err := b.Reserve(ctx, "verify_document", "w1")
		if err != nil {
			t.Fatalf("reserve: %v", err)
		}
		if job == nil || job.ID != id {
			t.Fatalf("reserved %v, want %s", job, id)
		}
	}

	job, err := b.Reserve(ctx, "verify_document", "w1")
	if err != nil || job != nil {
		t.Fatalf("expected empty queue, got %v, %v", job, err)
	}
}

func TestAddDeduplicatesByID(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	added, _ := b.Add(ctx, newJob("verify_document-1", entity.PriorityNormal, time.Now()))
	if !added {
		t.Fatal("first add rejected")
	}
	added, _ = b.Add(ctx, newJob("verify_document-1", entity.PriorityNormal, time.Now()))
	if added {
		t.Fatal("duplicate add accepted")
	}

	c, _ := b.Counts(ctx, "verify_document")
	if c.Waiting != 1 {
		t.Fatalf("waiting = %d, want 1", c.Waiting)
	}
}

func TestFailRetriesWithExponentialBackoffThenDeadLetters(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewMemoryBroker(WithClock(clock.Now))
	ctx := context.Background()
	cause := errors.New("storage timeout")

	_, _ = b.Add(ctx, newJob("j", entity.PriorityNormal, clock.t))

	delays := []time.Duration{2 * time.Second, 4 * time.Second}
	for i, d := range delays {
		job, _ := b.Reserve(ctx, "verify_document", "w1")
		if job == nil {
			t.Fatalf("attempt %d: nothing reserved", i+1)
		}
		state, err := b.Fail(ctx, job, cause)
		if err != nil || state != entity.JobDelayed {
			t.Fatalf("attempt %d: state %s, err %v", i+1, state, err)
		}

		clock.Advance(d - time.Millisecond)
		if job, _ := b.Reserve(ctx, "verify_document", "w1"); job != nil {
			t.Fatalf("attempt %d: reserved before backoff elapsed", i+1)
		}
		clock.Advance(time.Millisecond)
	}

	job, _ := b.Reserve(ctx, "verify_document", "w1")
	if job == nil || job.Attempts != 3 {
		t.Fatalf("third attempt = %+v", job)
	}
	state, _ := b.Fail(ctx, job, cause)
	if state != entity.JobFailed {
		t.Fatalf("state after last attempt = %s, want failed", state)
	}

	failed, _ := b.Failed(ctx, "verify_document")
	if len(failed) != 1 || *failed[0].LastError != "storage timeout" {
		t.Fatalf("failed list = %+v", failed)
	}
}

func TestFatalErrorSkipsRetries(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	_, _ = b.Add(ctx, newJob("j", entity.PriorityNormal, time.Now()))
	job, _ := b.Reserve(ctx, "verify_document", "w1")

	state, err := b.Fail(ctx, job, errs.Fatal(errs.ErrInvalidDocument))
	if err != nil || state != entity.JobFailed {
		t.Fatalf("state %s, err %v", state, err)
	}
}

func TestPausedQueueReservesNothing(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	_, _ = b.Add(ctx, newJob("j", entity.PriorityNormal, time.Now()))
	_ = b.Pause(ctx, "verify_document")

	if job, _ := b.Reserve(ctx, "verify_document", "w1"); job != nil {
		t.Fatal("reserved from paused queue")
	}
	c, _ := b.Counts(ctx, "verify_document")
	if !c.Paused || c.Waiting != 1 {
		t.Fatalf("counts = %+v", c)
	}

	_ = b.Resume(ctx, "verify_document")
	if job, _ := b.Reserve(ctx, "verify_document", "w1"); job == nil {
		t.Fatal("nothing reserved after resume")
	}
}

func TestRetryAndPurgeFailed(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		_, _ = b.Add(ctx, newJob(id, entity.PriorityNormal, time.Now()))
		job, _ := b.Reserve(ctx, "verify_document", "w1")
		_, _ = b.Fail(ctx, job, errs.Fatal(errors.New("bad")))
	}

	ok, _ := b.Retry(ctx, "verify_document", "a")
	if !ok {
		t.Fatal("retry of failed job returned false")
	}
	ok, _ = b.Retry(ctx, "verify_document", "missing")
	if ok {
		t.Fatal("retry of unknown job returned true")
	}

	job, _ := b.Get("a")
	if job.State != entity.JobWaiting || job.Attempts != 0 {
		t.Fatalf("requeued job = %+v", job)
	}

	n, _ := b.PurgeFailed(ctx, "verify_document")
	if n != 1 {
		t.Fatalf("purged = %d, want 1", n)
	}
}

func TestReclaimReturnsStaleActiveJobs(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewMemoryBroker(WithClock(clock.Now))
	ctx := context.Background()

	retryable := newJob("retryable", entity.PriorityNormal, clock.t)
	exhausted := newJob("exhausted", entity.PriorityNormal, clock.t.Add(time.Millisecond))
	exhausted.MaxAttempts = 1
	_, _ = b.Add(ctx, retryable)
	_, _ = b.Add(ctx, exhausted)

	for i := 0; i < 2; i++ {
		if job, err := b.Reserve(ctx, "verify_document", "crashed-worker"); err != nil || job == nil {
			t.Fatalf("reserve %d: %v, %v", i, job, err)
		}
	}

	clock.Advance(30 * time.Second)
	if n, _ := b.Reclaim(ctx, "verify_document", time.Minute); n != 0 {
		t.Fatalf("reclaimed %d fresh jobs", n)
	}

	clock.Advance(time.Minute)
	n, err := b.Reclaim(ctx, "verify_document", time.Minute)
	if err != nil || n != 2 {
		t.Fatalf("Reclaim = %d, %v, want 2", n, err)
	}

	counts, _ := b.Counts(ctx, "verify_document")
	if counts.Active != 0 || counts.Waiting != 1 || counts.Failed != 1 {
		t.Fatalf("counts after reclaim = %+v", counts)
	}

	job, err := b.Reserve(ctx, "verify_document", "w2")
	if err != nil || job == nil || job.ID != "retryable" || job.Attempts != 2 {
		t.Fatalf("re-reserved %+v, %v", job, err)
	}

	dead, _ := b.Failed(ctx, "verify_document")
	if len(dead) != 1 || dead[0].ID != "exhausted" || *dead[0].LastError != ErrReclaimed.Error() {
		t.Fatalf("dead-lettered %+v", dead)
	}
}
