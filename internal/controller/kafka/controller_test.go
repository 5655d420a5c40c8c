package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/dto"
	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/internal/repo/memory"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/resilience"
	"github.com/andreyxaxa/Submission-Pipeline/internal/usecase/submission"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/logger"
	"github.com/segmentio/kafka-go"
)

type fakeConsumer struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
	closed    bool
}

func (f *fakeConsumer) ReadEvent(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-f.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (f *fakeConsumer) CommitEvent(_ context.Context, m kafka.Message) error {
	f.mu.Lock()
	f.committed = append(f.committed, m.Offset)
	f.mu.Unlock()

	return nil
}

func (f *fakeConsumer) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()

	return nil
}

func (f *fakeConsumer) commits() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.committed)
}

func message(t *testing.T, offset int64, key string, in any) kafka.Message {
	t.Helper()

	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	return kafka.Message{
		Offset:  offset,
		Value:   b,
		Headers: []kafka.Header{{Key: IdempotencyHeader, Value: []byte(key)}},
	}
}

func TestIntakeStoresAndCommits(t *testing.T) {
	l := logger.New("disabled")
	store := memory.NewStore()
	subsRepo := memory.NewSubmissionRepo(store)
	guard := resilience.NewIdempotencyGuard(memory.NewIdempotencyRepo(store),
		resilience.StaticFlags{entity.FlagIdempotency: true}, l)
	subs := submission.New(subsRepo, memory.NewOutboxRepo(store), store, guard, l)

	fc := &fakeConsumer{msgs: make(chan kafka.Message, 4)}
	c := New(subs, fc, l, time.Second, time.Second, 2)

	in := dto.SubmitInput{
		ApplicantID: "portal-42",
		Email:       "someone@example.com",
		Amount:      900,
		Currency:    "GBP",
		Documents:   []entity.Document{{Key: "k", Name: "id.png", DeclaredType: "png"}},
	}

	fc.msgs <- message(t, 1, "req-1", in)
	fc.msgs <- message(t, 2, "req-1", in) // redelivery of the same request
	fc.msgs <- message(t, 3, "req-2", dto.SubmitInput{ApplicantID: "broken"})
	fc.msgs <- kafka.Message{Offset: 4, Value: []byte("{")}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for fc.commits() < 4 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d messages committed", fc.commits())
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if subsRepo.Count() != 1 {
		t.Fatalf("submissions = %d, want 1", subsRepo.Count())
	}
	if !fc.closed {
		t.Fatal("consumer not closed")
	}
}
