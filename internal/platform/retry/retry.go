package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Policy describes a bounded retry loop with a fixed delay between attempts.
// Delays go through the injected clock so callers can test without sleeping.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
	Clock       clockwork.Clock
	OnRetry     func(attempt int, err error)
}

type Operation[T any] func() (T, error)
type VoidOperation func() error

func Do[T any](ctx context.Context, p Policy, op Operation[T]) (T, error) {
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		val, err := op()
		if err == nil {
			return val, nil
		}

		if attempt == p.MaxAttempts {
			var zero T
			return zero, fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, err)
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		select {
		case <-clock.After(p.Backoff):
		case <-ctx.Done():
			var zero T
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}

	panic("unreachable: MaxAttempts must be >= 1")
}

func DoVoid(ctx context.Context, p Policy, op VoidOperation) error {
	_, err := Do(ctx, p, func() (struct{}, error) { return struct{}{}, op() })
	return err
}
