package entity

import (
	"testing"
	"time"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusSubmitted, StatusVerifying, true},
		{StatusVerifying, StatusVerified, true},
		{StatusVerifying, StatusVerificationFailed, true},
		{StatusVerificationFailed, StatusVerifying, true},
		{StatusVerified, StatusProcessingPayment, true},
		{StatusProcessingPayment, StatusPaymentFailed, true},
		{StatusPaymentFailed, StatusProcessingPayment, true},
		{StatusPaymentInitiated, StatusEmailSent, true},
		{StatusEmailSent, StatusCompleted, true},

		{StatusSubmitted, StatusCompleted, false},
		{StatusVerified, StatusVerifying, false},
		{StatusPaymentInitiated, StatusProcessingPayment, false},
		{StatusCompleted, StatusSubmitted, false},
		{StatusVerificationFailed, StatusProcessingPayment, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %t, want %t", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestProgressNeverDecreasesAlongHappyPath(t *testing.T) {
	path := []Status{
		StatusSubmitted, StatusVerifying, StatusVerified, StatusProcessingPayment,
		StatusPaymentInitiated, StatusEmailSent, StatusCompleted,
	}

	for i := 1; i < len(path); i++ {
		if !path[i-1].CanTransitionTo(path[i]) {
			t.Fatalf("%s -> %s not allowed", path[i-1], path[i])
		}
		if path[i].Progress() <= path[i-1].Progress() {
			t.Fatalf("progress %s=%d not above %s=%d", path[i], path[i].Progress(), path[i-1], path[i-1].Progress())
		}
	}

	if !StatusCompleted.Terminal() || StatusCompleted.Progress() != 100 {
		t.Fatal("completed must be terminal at 100")
	}
	if Status("archived").Valid() {
		t.Fatal("unknown status reported valid")
	}
}

func TestBackoffNext(t *testing.T) {
	exp := Backoff{Type: "exponential", Delay: time.Second}
	for attempt, want := range map[int]time.Duration{0: time.Second, 1: time.Second, 2: 2 * time.Second, 3: 4 * time.Second} {
		if got := exp.Next(attempt); got != want {
			t.Errorf("exponential attempt %d = %s, want %s", attempt, got, want)
		}
	}

	fixed := Backoff{Type: "fixed", Delay: 3 * time.Second}
	if fixed.Next(5) != 3*time.Second {
		t.Errorf("fixed = %s", fixed.Next(5))
	}
}
