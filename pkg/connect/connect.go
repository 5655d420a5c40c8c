// Package connect retries startup connections to backing services.
package connect

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Retry calls dial until it succeeds, attempts are used up or ctx is done.
// At least one attempt is always made.
func Retry(ctx context.Context, name string, attempts int, pause time.Duration, dial func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error

	for left := attempts; left > 0; left-- {
		if err = dial(ctx); err == nil {
			return nil
		}

		if left == 1 {
			break
		}

		log.Printf("%s is trying to connect, attempts left: %d", name, left-1)

		t := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			t.Stop()

			return fmt.Errorf("%s - connect: %w", name, errors.Join(err, ctx.Err()))
		case <-t.C:
		}
	}

	return fmt.Errorf("%s - connect - attempts exhausted: %w", name, err)
}
