package mailer

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttled paces sends through a token bucket so bursts of account
// creation do not trip provider rate limits.
type Throttled struct {
	next    Dispatcher
	limiter *rate.Limiter
}

// NewThrottled allows perSecond sends with the given burst.
func NewThrottled(next Dispatcher, perSecond float64, burst int) *Throttled {
	if burst < 1 {
		burst = 1
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Send waits for a token, then forwards to the wrapped dispatcher.
func (t *Throttled) Send(ctx context.Context, msg Message) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return t.next.Send(ctx, msg)
}
