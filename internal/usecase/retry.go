package usecase

import (
	"context"
	"time"

	"github.com/semmidev/netvault/internal/domain"
)

// RetryPolicy wraps a single attempt with bounded retries and exponential
// backoff. Only errors the Classify predicate accepts are retried; anything
// else propagates on first failure. After the attempt ceiling the last
// error propagates.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Classify reports whether an error is worth retrying.
	Classify func(error) bool

	logger Logger
}

func NewRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration, logger Logger) *RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		Classify:    domain.Transient,
		logger:      logger,
	}
}

// Do invokes fn up to MaxAttempts times. The label names the device in
// retry logs. Context cancellation aborts the backoff sleep.
func (p *RetryPolicy) Do(ctx context.Context, label string, fn func() error) error {
	delay := p.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !p.Classify(err) {
			return err
		}
		if attempt >= p.MaxAttempts {
			return err
		}

		p.logger.Warnf("[%s] Attempt %d/%d failed, retrying in %s: %v",
			label, attempt, p.MaxAttempts, delay, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}
