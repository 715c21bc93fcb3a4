package verification

import (
	"context"
	"errors"
	"testing"
	"time"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLedger(t *testing.T, store Store, clock *testClock) *Ledger {
	t.Helper()
	l, err := NewLedger(store, Config{TTL: DefaultTTL, MaxAttempts: DefaultMaxAttempts}, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewLedger failed: %v", err)
	}
	return l
}

func newMemoryLedger(t *testing.T) (*Ledger, *MemoryStore, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(DefaultRetention, clock.Now)
	return newTestLedger(t, store, clock), store, clock
}

func wrongCode(code string) string {
	if code == "123456" {
		return "654321"
	}
	return "123456"
}

func TestIssueProducesSixDigitCode(t *testing.T) {
	l, _, clock := newMemoryLedger(t)
	rec, err := l.Issue(context.Background(), "a@acme.io", KindHospitalRegistration, Subject{TenantID: "HOSP0001", AdminID: "a1"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if !ValidCodeFormat(rec.Token) {
		t.Fatalf("unexpected code %q", rec.Token)
	}
	if !rec.ExpiresAt.Equal(clock.now.Add(10 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", rec.ExpiresAt)
	}
	if rec.Attempts != 0 || rec.MaxAttempts != 5 || rec.IsUsed || rec.IsBlocked {
		t.Fatalf("unexpected initial state %+v", rec)
	}
}

func TestRedeemExactlyOnce(t *testing.T) {
	l, _, _ := newMemoryLedger(t)
	ctx := context.Background()
	rec, _ := l.Issue(ctx, "a@acme.io", KindHospitalRegistration, Subject{TenantID: "HOSP0001"})

	got, err := l.Redeem(ctx, "a@acme.io", rec.Token, KindHospitalRegistration)
	if err != nil {
		t.Fatalf("first redeem failed: %v", err)
	}
	if got.Subject.TenantID != "HOSP0001" || !got.IsUsed || got.UsedAt == nil {
		t.Fatalf("unexpected redeemed record %+v", got)
	}
	if got.Attempts != 0 {
		t.Fatalf("successful redeem must not count an attempt, got %d", got.Attempts)
	}

	if _, err := l.Redeem(ctx, "a@acme.io", rec.Token, KindHospitalRegistration); !errors.Is(err, ErrAlreadyUsed) {
		t.Fatalf("expected ErrAlreadyUsed, got %v", err)
	}
}

func TestRedeemExpiredCountsAttempt(t *testing.T) {
	l, store, clock := newMemoryLedger(t)
	ctx := context.Background()
	rec, _ := l.Issue(ctx, "a@acme.io", KindHospitalRegistration, Subject{})

	clock.Advance(10 * time.Minute)
	if _, err := l.Redeem(ctx, "a@acme.io", rec.Token, KindHospitalRegistration); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	latest, _ := store.Latest(ctx, "a@acme.io", KindHospitalRegistration)
	if latest.Attempts != 1 {
		t.Fatalf("expected attempts 1, got %d", latest.Attempts)
	}
}

func TestRedeemBlocksAfterMaxAttempts(t *testing.T) {
	l, store, _ := newMemoryLedger(t)
	ctx := context.Background()
	rec, _ := l.Issue(ctx, "a@acme.io", KindHospitalRegistration, Subject{})
	bad := wrongCode(rec.Token)

	for i := 0; i < DefaultMaxAttempts; i++ {
		if _, err := l.Redeem(ctx, "a@acme.io", bad, KindHospitalRegistration); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("attempt %d: expected ErrInvalidToken, got %v", i+1, err)
		}
	}

	if _, err := l.Redeem(ctx, "a@acme.io", rec.Token, KindHospitalRegistration); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts for correct code, got %v", err)
	}
	if _, err := l.Redeem(ctx, "a@acme.io", bad, KindHospitalRegistration); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}

	latest, _ := store.Latest(ctx, "a@acme.io", KindHospitalRegistration)
	if !latest.IsBlocked || latest.Attempts != DefaultMaxAttempts {
		t.Fatalf("expected blocked record with %d attempts, got %+v", DefaultMaxAttempts, latest)
	}
}

func TestRedeemUnknownEmail(t *testing.T) {
	l, _, _ := newMemoryLedger(t)
	if _, err := l.Redeem(context.Background(), "nobody@x.io", "123456", KindHospitalRegistration); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedeemKindIsolation(t *testing.T) {
	l, _, _ := newMemoryLedger(t)
	ctx := context.Background()
	rec, _ := l.Issue(ctx, "a@acme.io", KindPasswordReset, Subject{})
	if _, err := l.Redeem(ctx, "a@acme.io", rec.Token, KindHospitalRegistration); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across kinds, got %v", err)
	}
}

func TestReissueResetsSameRecord(t *testing.T) {
	l, store, clock := newMemoryLedger(t)
	ctx := context.Background()
	rec, _ := l.Issue(ctx, "a@acme.io", KindHospitalRegistration, Subject{TenantID: "HOSP0001"})
	bad := wrongCode(rec.Token)
	for i := 0; i < DefaultMaxAttempts; i++ {
		_, _ = l.Redeem(ctx, "a@acme.io", bad, KindHospitalRegistration)
	}

	clock.Advance(time.Minute)
	next, err := l.Reissue(ctx, "a@acme.io", KindHospitalRegistration)
	if err != nil {
		t.Fatalf("Reissue failed: %v", err)
	}
	if next.ID != rec.ID {
		t.Fatal("reissue must update the same record")
	}
	if next.Attempts != 0 || next.IsBlocked {
		t.Fatalf("expected reset attempts, got %+v", next)
	}
	if !next.ExpiresAt.Equal(clock.now.Add(DefaultTTL)) {
		t.Fatalf("unexpected expiry %v", next.ExpiresAt)
	}

	if _, err := l.Redeem(ctx, "a@acme.io", next.Token, KindHospitalRegistration); err != nil {
		t.Fatalf("redeem after reissue failed: %v", err)
	}
	stored, _ := store.Latest(ctx, "a@acme.io", KindHospitalRegistration)
	if !stored.IsUsed {
		t.Fatal("expected record used")
	}

	if _, err := l.Reissue(ctx, "a@acme.io", KindHospitalRegistration); !errors.Is(err, ErrAlreadyUsed) {
		t.Fatalf("expected ErrAlreadyUsed on reissue of used record, got %v", err)
	}
	if _, err := l.Reissue(ctx, "none@x.io", KindHospitalRegistration); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReleaseAllowsRedeemAgain(t *testing.T) {
	l, _, _ := newMemoryLedger(t)
	ctx := context.Background()
	rec, _ := l.Issue(ctx, "a@acme.io", KindHospitalRegistration, Subject{})

	used, err := l.Redeem(ctx, "a@acme.io", rec.Token, KindHospitalRegistration)
	if err != nil {
		t.Fatalf("Redeem failed: %v", err)
	}
	if err := l.Release(ctx, used); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := l.Redeem(ctx, "a@acme.io", rec.Token, KindHospitalRegistration); err != nil {
		t.Fatalf("expected redeem after release, got %v", err)
	}
}

func TestDiscardIsIdempotent(t *testing.T) {
	l, _, _ := newMemoryLedger(t)
	ctx := context.Background()
	rec, _ := l.Issue(ctx, "a@acme.io", KindHospitalRegistration, Subject{})

	if err := l.Discard(ctx, rec.ID); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}
	if err := l.Discard(ctx, rec.ID); err != nil {
		t.Fatalf("second Discard failed: %v", err)
	}
	if _, err := l.Redeem(ctx, "a@acme.io", rec.Token, KindHospitalRegistration); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after discard, got %v", err)
	}
}

func TestMemoryStoreRetention(t *testing.T) {
	l, store, clock := newMemoryLedger(t)
	ctx := context.Background()
	_, _ = l.Issue(ctx, "a@acme.io", KindHospitalRegistration, Subject{})

	clock.Advance(DefaultRetention + time.Second)
	if _, err := store.Latest(ctx, "a@acme.io", KindHospitalRegistration); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected record pruned after retention, got %v", err)
	}
}

func TestLatestPrefersNewest(t *testing.T) {
	l, store, clock := newMemoryLedger(t)
	ctx := context.Background()
	_, _ = l.Issue(ctx, "a@acme.io", KindHospitalRegistration, Subject{})
	clock.Advance(time.Second)
	second, _ := l.Issue(ctx, "a@acme.io", KindHospitalRegistration, Subject{})

	latest, err := store.Latest(ctx, "a@acme.io", KindHospitalRegistration)
	if err != nil || latest.ID != second.ID {
		t.Fatalf("expected newest record, got %+v %v", latest, err)
	}
}

func TestNewCodeRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := NewCode()
		if err != nil {
			t.Fatalf("NewCode failed: %v", err)
		}
		if !ValidCodeFormat(code) {
			t.Fatalf("code %q out of range", code)
		}
	}
	for _, bad := range []string{"", "12345", "1234567", "012345", "12a456"} {
		if ValidCodeFormat(bad) {
			t.Fatalf("expected %q rejected", bad)
		}
	}
}

func TestNewLedgerValidation(t *testing.T) {
	store := NewMemoryStore(DefaultRetention, nil)
	if _, err := NewLedger(nil, Config{TTL: time.Minute, MaxAttempts: 1}); err == nil {
		t.Fatal("expected nil store rejected")
	}
	if _, err := NewLedger(store, Config{MaxAttempts: 1}); err == nil {
		t.Fatal("expected zero TTL rejected")
	}
	if _, err := NewLedger(store, Config{TTL: time.Minute}); err == nil {
		t.Fatal("expected zero attempts rejected")
	}
}

func TestRedeemableMatchesWholeToken(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	r := &Record{Token: "482913", ExpiresAt: now.Add(time.Minute), MaxAttempts: DefaultMaxAttempts}

	for _, token := range []string{"48291", "4829130", "482914", ""} {
		if r.Redeemable(token, now) {
			t.Fatalf("token %q must not redeem", token)
		}
	}
	if !r.Redeemable("482913", now) {
		t.Fatal("exact token must redeem")
	}
}
