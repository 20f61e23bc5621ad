package backoff

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Policy retries an operation with bounded exponential backoff and jitter.
// Sleep and Jitter are injectable so tests can run with a fake clock.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Sleep       func(time.Duration)
	Jitter      func() float64 // in [0, 1)
}

// New creates a policy with real sleeping and jitter.
func New(maxAttempts int, baseDelay time.Duration) *Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    30 * time.Second,
		Sleep:       time.Sleep,
		Jitter:      rand.Float64,
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps an error so Do stops retrying and returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op until it succeeds, returns a permanent error, the context is
// cancelled, or MaxAttempts is reached. The last error is returned.
func (p *Policy) Do(ctx context.Context, op func() error) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op()
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}
		p.Sleep(p.delay(attempt))
	}

	return lastErr
}

// delay computes the wait before the next attempt: base doubled per attempt
// plus up to one base of jitter, capped at MaxDelay.
func (p *Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt-1)
	if p.Jitter != nil {
		d += time.Duration(p.Jitter() * float64(p.BaseDelay))
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
