package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

func TestWithinTransactionRollsBackOnError(t *testing.T) {
	store := NewStore()
	subs := NewSubmissionRepo(store)
	outbox := NewOutboxRepo(store)
	ctx := context.Background()

	sub := &entity.Submission{ID: uuid.New(), Status: entity.StatusSubmitted}
	if err := subs.Create(ctx, sub); err != nil {
		t.Fatalf("create: %v", err)
	}

	boom := errors.New("boom")
	err := store.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := subs.UpdateStatus(ctx, sub.ID, entity.StatusVerifying, 10, nil); err != nil {
			return err
		}
		msg, err := entity.NewOutboxMessage(sub.ID, entity.EventDocumentVerified, map[string]string{})
		if err != nil {
			return err
		}
		if err := outbox.Create(ctx, msg); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, err := subs.GetByID(ctx, sub.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != entity.StatusSubmitted {
		t.Fatalf("status = %s, want submitted", got.Status)
	}
	if outbox.Len() != 0 {
		t.Fatalf("outbox rows = %d, want 0", outbox.Len())
	}
}

func TestOutboxUnprocessedOrdering(t *testing.T) {
	store := NewStore()
	outbox := NewOutboxRepo(store)
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		msg, _ := entity.NewOutboxMessage(uuid.New(), entity.EventDocumentUploaded, map[string]int{"n": i})
		ids = append(ids, msg.ID)
		if err := outbox.Create(ctx, msg); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if err := outbox.MarkProcessed(ctx, ids[0]); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := outbox.RecordFailure(ctx, ids[1], "down"); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	msgs, err := outbox.GetUnprocessed(ctx, 10)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != ids[1] || msgs[1].ID != ids[2] {
		t.Fatalf("unexpected batch: %+v", msgs)
	}
	if msgs[0].Attempts != 1 || msgs[0].LastError == nil || *msgs[0].LastError != "down" {
		t.Fatalf("failure not recorded: %+v", msgs[0])
	}

	n, err := outbox.DeleteProcessedBefore(ctx, time.Now().Add(time.Second))
	if err != nil || n != 1 {
		t.Fatalf("delete processed = %d, %v", n, err)
	}
}

func TestIdempotencyFirstLiveRecordWins(t *testing.T) {
	repo := NewIdempotencyRepo(NewStore())
	ctx := context.Background()
	now := time.Now()

	_ = repo.Save(ctx, &entity.IdempotencyRecord{Key: "k", Result: []byte(`1`), ExpiresAt: now.Add(time.Hour)})
	_ = repo.Save(ctx, &entity.IdempotencyRecord{Key: "k", Result: []byte(`2`), ExpiresAt: now.Add(time.Hour)})

	rec, err := repo.Get(ctx, "k", now)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(rec.Result) != "1" {
		t.Fatalf("result = %s, want 1", rec.Result)
	}

	if _, err = repo.Get(ctx, "k", now.Add(2*time.Hour)); !errors.Is(err, errs.ErrRecordNotFound) {
		t.Fatalf("expired record returned: %v", err)
	}
	if n, _ := repo.DeleteExpired(ctx, now.Add(2*time.Hour)); n != 1 {
		t.Fatalf("deleted = %d, want 1", n)
	}
}
