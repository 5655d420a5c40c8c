package statestore

import (
	"context"
	"testing"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
)

func TestMemoryBulkheadNeverExceedsCapacity(t *testing.T) {
	s := NewMemoryBulkheadStore()
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		usage, ok, _ := s.TryAcquire(ctx, "create_payment", 2)
		if !ok || usage != i {
			t.Fatalf("acquire %d: usage %d ok %v", i, usage, ok)
		}
	}
	if usage, ok, _ := s.TryAcquire(ctx, "create_payment", 2); ok || usage != 2 {
		t.Fatalf("third acquire: usage %d ok %v", usage, ok)
	}

	_ = s.Release(ctx, "create_payment")
	_ = s.Release(ctx, "create_payment")
	_ = s.Release(ctx, "create_payment")
	if n, _ := s.Usage(ctx, "create_payment"); n != 0 {
		t.Fatalf("usage after releases = %d", n)
	}
}

func TestDecodeCircuit(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)

	tests := []struct {
		name string
		vals map[string]string
		want entity.Circuit
	}{
		{
			name: "missing hash is closed",
			vals: map[string]string{},
			want: entity.Circuit{Name: "payment_gateway", State: entity.CircuitClosed},
		},
		{
			name: "open with failures",
			vals: map[string]string{fieldState: "OPEN", fieldFailureCount: "3", fieldLastFailure: "1700000000000"},
			want: entity.Circuit{Name: "payment_gateway", State: entity.CircuitOpen, FailureCount: 3, LastFailureTime: at},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeCircuit("payment_gateway", tt.vals)
			if got.Name != tt.want.Name || got.State != tt.want.State ||
				got.FailureCount != tt.want.FailureCount || !got.LastFailureTime.Equal(tt.want.LastFailureTime) {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
