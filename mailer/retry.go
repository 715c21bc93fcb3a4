package mailer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultAttempts       = 3
	DefaultTimeout        = 60 * time.Second
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 10 * time.Second
)

// RetryConfig bounds delivery attempts.
type RetryConfig struct {
	Attempts       int
	Timeout        time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns three attempts of 60s each with backoff from
// 1s doubling up to 10s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:       DefaultAttempts,
		Timeout:        DefaultTimeout,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
	}
}

// Retrying retries a dispatcher with a per-attempt timeout and exponential
// backoff between attempts.
type Retrying struct {
	next   Dispatcher
	cfg    RetryConfig
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetrying wraps next. Non-positive Attempts or Timeout and a negative
// InitialBackoff fall back to defaults. A zero InitialBackoff retries
// immediately.
func NewRetrying(next Dispatcher, cfg RetryConfig, logger *zap.Logger) *Retrying {
	def := DefaultRetryConfig()
	if cfg.Attempts <= 0 {
		cfg.Attempts = def.Attempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.InitialBackoff < 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{next: next, cfg: cfg, logger: logger, sleep: sleepContext}
}

// Send tries next up to the configured number of attempts. Invalid messages
// are not retried.
func (r *Retrying) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	backoff := r.cfg.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= r.cfg.Attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		id, err := r.next.Send(attemptCtx, msg)
		cancel()
		if err == nil {
			return id, nil
		}
		lastErr = err
		if errors.Is(err, ErrInvalidMessage) {
			return "", err
		}

		r.logger.Warn("email dispatch attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.cfg.Attempts),
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
		if attempt == r.cfg.Attempts {
			break
		}
		if err := r.sleep(ctx, backoff); err != nil {
			return "", err
		}
		backoff *= 2
		if backoff > r.cfg.MaxBackoff {
			backoff = r.cfg.MaxBackoff
		}
	}
	if errors.Is(lastErr, ErrDispatchFailed) {
		return "", lastErr
	}
	return "", errors.Join(ErrDispatchFailed, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
