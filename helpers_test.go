package hmsAuth

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/hmsAuth/mailer"
	"github.com/MrEthical07/hmsAuth/principal"
	"github.com/MrEthical07/hmsAuth/store/memory"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	testSecret        = "0123456789abcdef0123456789abcdef"
	testAdminPassword = "correct-horse-9"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	engine *Engine
	store  principal.Store
	mem    *memory.Store
	mail   *mailer.Memory
	clock  *testClock
	logs   *observer.ObservedLogs
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte(testSecret)
	cfg.Password.BcryptCost = 10
	cfg.Email.MaxAttempts = 2
	cfg.Email.InitialBackoff = 0
	cfg.Email.MaxBackoff = 0
	return cfg
}

type fixtureOption func(*Builder, *fixture)

func withConfig(mutate func(*Config)) fixtureOption {
	return func(b *Builder, _ *fixture) {
		cfg := testConfig()
		mutate(&cfg)
		b.WithConfig(cfg)
	}
}

func withStore(wrap func(*memory.Store) principal.Store) fixtureOption {
	return func(b *Builder, f *fixture) {
		f.store = wrap(f.mem)
		b.WithStore(f.store)
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	f := &fixture{
		mem:   memory.New(),
		mail:  &mailer.Memory{},
		clock: newTestClock(),
		logs:  logs,
	}
	f.store = f.mem

	b := New().
		WithConfig(testConfig()).
		WithStore(f.store).
		WithMailer(f.mail).
		WithLogger(zap.New(core)).
		WithClock(f.clock.Now)
	for _, opt := range opts {
		opt(b, f)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	f.engine = engine
	return f
}

func acmeRequest() RegisterTenantRequest {
	return RegisterTenantRequest{
		HospitalName:       "Acme Clinic",
		HospitalEmail:      "a@acme.io",
		RegistrationNumber: "RN1",
		LicenseNumber:      "LN1",
		HospitalNumber:     "HN1",
		AdminName:          "Ada Admin",
		AdminEmail:         "admin@acme.io",
		AdminPassword:      testAdminPassword,
	}
}

func hospitalRequest(n string) RegisterTenantRequest {
	return RegisterTenantRequest{
		HospitalName:       "Hospital " + n,
		HospitalEmail:      "contact" + n + "@hospital.io",
		RegistrationNumber: "RN-" + n,
		LicenseNumber:      "LN-" + n,
		HospitalNumber:     "HN-" + n,
		AdminName:          "Admin " + n,
		AdminEmail:         "admin" + n + "@hospital.io",
		AdminPassword:      testAdminPassword,
	}
}

var (
	codePattern     = regexp.MustCompile(`\b[1-9][0-9]{5}\b`)
	passwordPattern = regexp.MustCompile(`Temporary password: (\S+)`)
)

func (f *fixture) lastCode(t *testing.T, email string) string {
	t.Helper()
	msg, ok := f.mail.Last(email)
	if !ok {
		t.Fatalf("no email sent to %s", email)
	}
	code := codePattern.FindString(msg.Text)
	if code == "" {
		t.Fatalf("no code in email to %s: %q", email, msg.Text)
	}
	return code
}

func (f *fixture) lastTemporaryPassword(t *testing.T, email string) string {
	t.Helper()
	msg, ok := f.mail.Last(email)
	if !ok {
		t.Fatalf("no email sent to %s", email)
	}
	m := passwordPattern.FindStringSubmatch(msg.Text)
	if len(m) != 2 {
		t.Fatalf("no temporary password in email to %s", email)
	}
	return m[1]
}

// registerVerified registers req, verifies it, and returns the signed-in
// administrator.
func (f *fixture) registerVerified(t *testing.T, req RegisterTenantRequest) *LoginResult {
	t.Helper()
	ctx := context.Background()
	if _, err := f.engine.RegisterTenant(ctx, req); err != nil {
		t.Fatalf("register %s: %v", req.HospitalName, err)
	}
	res, err := f.engine.VerifyEmail(ctx, req.AdminEmail, f.lastCode(t, req.AdminEmail))
	if err != nil {
		t.Fatalf("verify %s: %v", req.AdminEmail, err)
	}
	return res
}

// createStaff creates a staff member and returns it with its temporary
// password.
func (f *fixture) createStaff(t *testing.T, actor Principal, req CreateStaffRequest) (*StaffMember, string) {
	t.Helper()
	member, err := f.engine.CreateStaff(context.Background(), actor, req)
	if err != nil {
		t.Fatalf("create staff %s: %v", req.Email, err)
	}
	return member, f.lastTemporaryPassword(t, req.Email)
}
