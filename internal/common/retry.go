package common

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryableFunc is one attempt of an operation.
type RetryableFunc func() error

// Config holds the retry behaviour. The zero value is not usable; use defaultConfig.
type Config struct {
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	retryIf      func(error) bool
}

// Option configures Do.
type Option func(*Config)

// WithMaxRetries sets how many retries follow the first attempt. Default 3.
func WithMaxRetries(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithInitialDelay sets the delay before the first retry. Default 1s.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.initialDelay = d
		}
	}
}

// WithMaxDelay caps the backoff. Default 30s.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.maxDelay = d
		}
	}
}

// WithMultiplier sets the backoff growth factor. Default 2.
func WithMultiplier(m float64) Option {
	return func(c *Config) {
		if m >= 1 {
			c.multiplier = m
		}
	}
}

// WithRetryIf restricts retries to errors accepted by fn. Errors wrapped with
// Permanent are never retried regardless of fn.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *Config) {
		if fn != nil {
			c.retryIf = fn
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		maxRetries:   3,
		initialDelay: time.Second,
		maxDelay:     30 * time.Second,
		multiplier:   2.0,
		retryIf:      func(error) bool { return true },
	}
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs fn until it succeeds, the retry budget is spent, a permanent error is
// returned, or ctx is done. The returned error wraps the last attempt's error.
//
//	err := common.Do(ctx, send,
//	    common.WithMaxRetries(3),
//	    common.WithInitialDelay(500*time.Millisecond),
//	)
func Do(ctx context.Context, fn RetryableFunc, opts ...Option) error {
	if fn == nil {
		return errors.New("retry: function cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	delay := cfg.initialDelay
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
		if !cfg.retryIf(lastErr) {
			return lastErr
		}
		if attempt >= cfg.maxRetries {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted during backoff (attempt %d/%d): %w", attempt+1, cfg.maxRetries, ctx.Err())
		case <-timer.C:
		}

		delay = nextDelay(delay, cfg.maxDelay, cfg.multiplier)
	}

	return fmt.Errorf("retry failed after %d attempts: %w", cfg.maxRetries+1, lastErr)
}

func nextDelay(current, max time.Duration, multiplier float64) time.Duration {
	next := time.Duration(float64(current) * multiplier)
	if next > max || next <= 0 {
		return max
	}
	return next
}
