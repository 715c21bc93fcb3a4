package verification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTTL is how long an issued code stays redeemable.
	DefaultTTL = 10 * time.Minute
	// DefaultMaxAttempts caps failed redemptions per record.
	DefaultMaxAttempts = 5
	// DefaultRetention is how long records are kept after creation.
	DefaultRetention = 24 * time.Hour
)

// Config holds ledger thresholds.
type Config struct {
	TTL         time.Duration
	MaxAttempts int
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithCodeGenerator overrides code generation.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(l *Ledger) {
		if gen != nil {
			l.newCode = gen
		}
	}
}

// Ledger issues and redeems verification codes.
type Ledger struct {
	store       Store
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
	newCode     func() (string, error)
}

// NewLedger returns a ledger over store.
func NewLedger(store Store, cfg Config, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("verification store required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("verification TTL must be > 0")
	}
	if cfg.MaxAttempts <= 0 {
		return nil, errors.New("verification MaxAttempts must be > 0")
	}

	l := &Ledger{
		store:       store,
		ttl:         cfg.TTL,
		maxAttempts: cfg.MaxAttempts,
		now:         time.Now,
		newCode:     NewCode,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Issue creates a fresh record for email and kind.
func (l *Ledger) Issue(ctx context.Context, email string, kind Kind, subject Subject) (*Record, error) {
	if email == "" || !kind.Valid() {
		return nil, errors.New("verification issue requires email and kind")
	}
	code, err := l.newCode()
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	now := l.now()
	rec := &Record{
		ID:          id.String(),
		Email:       email,
		Token:       code,
		Kind:        kind,
		ExpiresAt:   now.Add(l.ttl),
		MaxAttempts: l.maxAttempts,
		Subject:     subject,
		CreatedAt:   now,
	}
	if err := l.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Redeem consumes token for email and kind and returns the redeemed record.
//
// Failures are ErrNotFound, ErrTooManyAttempts, ErrAlreadyUsed, ErrExpired
// and ErrInvalidToken. Every failure except ErrNotFound and
// ErrTooManyAttempts counts one attempt against the latest record.
// Concurrent redemptions of one code succeed at most once.
func (l *Ledger) Redeem(ctx context.Context, email, token string, kind Kind) (*Record, error) {
	now := l.now()

	rec, err := l.store.FindRedeemable(ctx, email, token, kind, now)
	switch {
	case err == nil:
		consumed, err := l.store.Consume(ctx, rec.ID, token, now)
		switch {
		case err == nil:
			return consumed, nil
		case errors.Is(err, ErrTooManyAttempts):
			return nil, ErrTooManyAttempts
		case errors.Is(err, ErrAlreadyUsed), errors.Is(err, ErrExpired),
			errors.Is(err, ErrInvalidToken), errors.Is(err, ErrNotFound):
			// Changed since the lookup: redeemed, reissued or discarded by
			// a concurrent call. Account for it as a failed attempt.
		default:
			return nil, err
		}
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	latest, err := l.store.Latest(ctx, email, kind)
	if err != nil {
		return nil, err
	}
	if latest.Exhausted() {
		return nil, ErrTooManyAttempts
	}

	var failure error
	switch {
	case latest.IsUsed:
		failure = ErrAlreadyUsed
	case !latest.ExpiresAt.After(now):
		failure = ErrExpired
	default:
		failure = ErrInvalidToken
	}

	if _, err := l.store.RecordFailure(ctx, latest.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return nil, failure
}

// Reissue replaces the code and expiry of the latest unused record for
// email and kind and resets its attempt budget.
func (l *Ledger) Reissue(ctx context.Context, email string, kind Kind) (*Record, error) {
	latest, err := l.store.Latest(ctx, email, kind)
	if err != nil {
		return nil, err
	}
	if latest.IsUsed {
		return nil, ErrAlreadyUsed
	}

	code, err := l.newCode()
	if err != nil {
		return nil, err
	}
	latest.Token = code
	latest.ExpiresAt = l.now().Add(l.ttl)
	latest.Attempts = 0
	latest.IsBlocked = false
	if err := l.store.Update(ctx, latest); err != nil {
		return nil, err
	}
	return latest, nil
}

// Release reverts a redemption so the record can be redeemed again.
func (l *Ledger) Release(ctx context.Context, rec *Record) error {
	if rec == nil {
		return nil
	}
	cp := rec.clone()
	cp.IsUsed = false
	cp.UsedAt = nil
	return l.store.Update(ctx, cp)
}

// Discard deletes a record. Deleting a missing record succeeds.
func (l *Ledger) Discard(ctx context.Context, id string) error {
	err := l.store.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
