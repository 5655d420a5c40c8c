package errs

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrRecordNotFound    = errors.New("record not found")
	ErrAlreadyExists     = errors.New("record already exists")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidDocument   = errors.New("invalid document")
	ErrInvalidTransition = errors.New("invalid status transition")

	ErrUnknownJobType  = errors.New("unknown job type")
	ErrUnknownPriority = errors.New("unknown priority")
	ErrUnknownQueue    = errors.New("unknown queue")
	ErrUnknownPool     = errors.New("unknown worker pool")
	ErrUnknownStrategy = errors.New("unknown load balancing strategy")
	ErrUnknownWorker   = errors.New("unknown worker node")

	ErrInvalidWorkerCount = errors.New("invalid worker count")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrNoHealthyWorker    = errors.New("no healthy worker node")

	ErrCircuitOpen  = errors.New("circuit open")
	ErrBulkheadFull = errors.New("bulkhead capacity exceeded")
)

// CircuitOpenError is returned when a call is short-circuited by an open breaker.
type CircuitOpenError struct {
	Name         string
	FailureCount int
	Threshold    int
	RetryAfter   time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit %q is open (failures %d/%d), retry after %s",
		e.Name, e.FailureCount, e.Threshold, e.RetryAfter.Round(time.Millisecond))
}

func (e *CircuitOpenError) Unwrap() error { return ErrCircuitOpen }

// CapacityError is returned when a bulkhead rejects work.
type CapacityError struct {
	Name     string
	Capacity int
	Usage    int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("bulkhead %q is full (%d/%d in use)", e.Name, e.Usage, e.Capacity)
}

func (e *CapacityError) Unwrap() error { return ErrBulkheadFull }

// FatalError marks a job failure that must not be retried.
type FatalError struct {
	Cause error
}

func (e *FatalError) Error() string { return e.Cause.Error() }
func (e *FatalError) Unwrap() error { return e.Cause }

func Fatal(err error) error {
	if err == nil {
		return nil
	}

	return &FatalError{Cause: err}
}

func IsFatal(err error) bool {
	var fe *FatalError

	return errors.As(err, &fe)
}
