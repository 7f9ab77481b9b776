package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robgallardof/multig/internal/platform/retry"
)

var fastPolicy = retry.Policy{
	MaxAttempts: 3,
	Backoff:     1 * time.Millisecond,
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	_, err := retry.Do(context.Background(), fastPolicy, func() (struct{}, error) {
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy, func() (struct{}, error) {
		calls++
		if calls < 3 {
			return struct{}{}, errors.New("transient")
		}
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy, func() (struct{}, error) {
		calls++
		return struct{}{}, errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDo_OnRetryObservesAttempts(t *testing.T) {
	var attempts []int
	p := fastPolicy
	p.OnRetry = func(attempt int, err error) { attempts = append(attempts, attempt) }

	_, _ = retry.Do(context.Background(), p, func() (struct{}, error) {
		return struct{}{}, errors.New("transient")
	})

	// Final attempt does not call OnRetry; there is no delay after it.
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Fatalf("expected OnRetry for attempts [1 2], got %v", attempts)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := retry.Policy{MaxAttempts: 3, Backoff: time.Hour}
	_, err := retry.Do(ctx, p, func() (struct{}, error) {
		return struct{}{}, errors.New("transient")
	})
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation error, got %v", err)
	}
}

func TestDoVoid(t *testing.T) {
	calls := 0
	err := retry.DoVoid(context.Background(), fastPolicy, func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}
