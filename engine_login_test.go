package hmsAuth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/hmsAuth/password"
	"github.com/MrEthical07/hmsAuth/principal"
)

func TestLoginAdminRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.registerVerified(t, acmeRequest())

	ctx := WithClientIP(context.Background(), "10.0.0.7")
	res, err := f.engine.LoginAdmin(ctx, "Admin@Acme.io ", testAdminPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Principal.Kind != principal.KindAdmin || res.Principal.TenantID() != "HOSP0001" {
		t.Fatalf("unexpected principal: %+v", res.Principal)
	}
	if res.Principal.PasswordHash() != "" {
		t.Fatal("login result must not carry the password digest")
	}
	if !res.ExpiresAt.Equal(f.clock.Now().Add(7 * 24 * time.Hour)) {
		t.Fatalf("unexpected expiry %v", res.ExpiresAt)
	}

	sess, err := f.engine.Authenticate(context.Background(), res.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	c := sess.Claims
	if c.Kind != "admin" || c.TenantID != "HOSP0001" || c.PrincipalID != res.Principal.ID() || c.Email != "admin@acme.io" || c.Role != "admin" {
		t.Fatalf("claims mismatch: %+v", c)
	}

	admin, _ := f.store.FindAdminByEmail(context.Background(), "admin@acme.io")
	if admin.Login.LastLoginIP != "10.0.0.7" || admin.Login.LastLoginAt == nil {
		t.Fatalf("last login not recorded: %+v", admin.Login)
	}
}

func TestLoginUnknownEmailAndWrongPasswordLookAlike(t *testing.T) {
	f := newFixture(t)
	f.registerVerified(t, acmeRequest())
	ctx := context.Background()

	_, errUnknown := f.engine.LoginAdmin(ctx, "nobody@acme.io", testAdminPassword)
	_, errWrong := f.engine.LoginAdmin(ctx, "admin@acme.io", "wrong-password")
	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for both, got %v and %v", errUnknown, errWrong)
	}
	if _, err := f.engine.LoginAdmin(ctx, "", ""); !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected validation failure, got %v", err)
	}
}

func TestLoginLocksAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	f.registerVerified(t, acmeRequest())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := f.engine.LoginAdmin(ctx, "admin@acme.io", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i+1, err)
		}
	}

	_, err := f.engine.LoginAdmin(ctx, "admin@acme.io", testAdminPassword)
	var locked *AccountLockedError
	if !errors.As(err, &locked) || !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected account locked with correct password, got %v", err)
	}
	if locked.RemainingMinutes != 120 {
		t.Fatalf("expected 120 minutes remaining, got %d", locked.RemainingMinutes)
	}

	admin, _ := f.store.FindAdminByEmail(ctx, "admin@acme.io")
	if admin.Login.Attempts != 5 || admin.Login.LockUntil == nil {
		t.Fatalf("unexpected lock state: %+v", admin.Login)
	}

	// Locked attempts are rejected before the password compare and do not
	// extend the lock.
	lockUntil := *admin.Login.LockUntil
	f.clock.Advance(30 * time.Minute)
	_, err = f.engine.LoginAdmin(ctx, "admin@acme.io", "wrong-password")
	if !errors.As(err, &locked) || locked.RemainingMinutes != 90 {
		t.Fatalf("expected 90 minutes remaining, got %v", err)
	}
	admin, _ = f.store.FindAdminByEmail(ctx, "admin@acme.io")
	if !admin.Login.LockUntil.Equal(lockUntil) || admin.Login.Attempts != 5 {
		t.Fatalf("locked attempt changed state: %+v", admin.Login)
	}

	f.clock.Advance(90 * time.Minute)
	if _, err := f.engine.LoginAdmin(ctx, "admin@acme.io", testAdminPassword); err != nil {
		t.Fatalf("login after lock lapsed: %v", err)
	}
}

func TestLoginSuccessResetsAttempts(t *testing.T) {
	f := newFixture(t)
	f.registerVerified(t, acmeRequest())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = f.engine.LoginAdmin(ctx, "admin@acme.io", "wrong-password")
	}
	if _, err := f.engine.LoginAdmin(ctx, "admin@acme.io", testAdminPassword); err != nil {
		t.Fatalf("login: %v", err)
	}
	admin, _ := f.store.FindAdminByEmail(ctx, "admin@acme.io")
	if admin.Login.Attempts != 0 || admin.Login.LockUntil != nil {
		t.Fatalf("expected reset login state, got %+v", admin.Login)
	}
}

func TestLoginAdminRequiresVerification(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.RegisterTenant(context.Background(), acmeRequest()); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := f.engine.LoginAdmin(context.Background(), "admin@acme.io", testAdminPassword)
	if !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected inactive before verification, got %v", err)
	}
}

func TestLoginStaffLockoutToggle(t *testing.T) {
	for _, applies := range []bool{true, false} {
		f := newFixture(t, withConfig(func(c *Config) { c.Lockout.ApplyToStaff = applies }))
		admin := f.registerVerified(t, acmeRequest())
		_, temp := f.createStaff(t, admin.Principal, CreateStaffRequest{Name: "Nora", Email: "nora@acme.io", Role: principal.RoleNurse})
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			_, _ = f.engine.LoginStaff(ctx, "nora@acme.io", "wrong-password")
		}
		_, err := f.engine.LoginStaff(ctx, "nora@acme.io", temp)
		if applies && !errors.Is(err, ErrAccountLocked) {
			t.Fatalf("expected staff lockout, got %v", err)
		}
		if !applies && err != nil {
			t.Fatalf("expected login without staff lockout, got %v", err)
		}
	}
}

func TestLoginUpgradesLegacyDigest(t *testing.T) {
	f := newFixture(t)
	res := f.registerVerified(t, acmeRequest())
	ctx := context.Background()

	digest, err := password.HashLegacy(testAdminPassword, password.DefaultLegacyParams())
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := f.store.UpdateAdminPassword(ctx, res.Principal.ID(), digest, f.clock.Now()); err != nil {
		t.Fatalf("seed legacy digest: %v", err)
	}

	if _, err := f.engine.LoginAdmin(ctx, "admin@acme.io", testAdminPassword); err != nil {
		t.Fatalf("login with legacy digest: %v", err)
	}
	admin, _ := f.store.GetAdmin(ctx, res.Principal.ID())
	if admin.PasswordHash == digest || f.engine.vault.NeedsUpgrade(admin.PasswordHash) {
		t.Fatal("expected digest upgraded to bcrypt")
	}
	if got := f.engine.MetricsSnapshot().Counters[MetricPasswordRehashed]; got != 1 {
		t.Fatalf("expected one rehash, got %d", got)
	}
}
