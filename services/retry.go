package services

import (
	"context"
	"errors"
	"time"

	"github.com/osmangurlek/arxiv-trend-radar/models"
)

// RetryPolicy wiederholt Aufrufe externer Dienste bei Drosselung.
// Versuch n (ab 1) wartet vor dem nächsten Versuch n * Unit.
type RetryPolicy struct {
	MaxAttempts int
	Unit        time.Duration
	// Retryable entscheidet, ob ein Fehler wiederholt wird (Standard: RateLimitError).
	Retryable func(error) bool
	// Sleep wartet d oder bis ctx endet; in Tests ersetzbar.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry wird vor jeder Wartezeit aufgerufen.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultRetryPolicy entspricht drei Versuchen mit 10s, 20s Wartezeit.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Unit: 10 * time.Second}
}

// Backoff liefert die Wartezeit nach dem fehlgeschlagenen Versuch attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return time.Duration(attempt) * p.Unit
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return models.IsRateLimit(err)
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry ruft fn gemäß policy auf. Nicht wiederholbare Fehler werden sofort zurückgegeben,
// nach dem letzten Versuch ein ExhaustedRetriesError.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	var zero T
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		if !p.retryable(err) {
			return zero, err
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}
		wait := p.Backoff(attempt)
		var rl *models.RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > wait {
			wait = rl.RetryAfter
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}
		if err := p.sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
	return zero, &models.ExhaustedRetriesError{Attempts: maxAttempts, Err: lastErr}
}
