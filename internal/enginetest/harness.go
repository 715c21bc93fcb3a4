// Package enginetest builds engines over in-memory stores for tests of
// the packages layered on top of hmsAuth.
package enginetest

import (
	"context"
	"regexp"
	"testing"

	hmsAuth "github.com/MrEthical07/hmsAuth"
	"github.com/MrEthical07/hmsAuth/mailer"
	"github.com/MrEthical07/hmsAuth/store/memory"
)

// Secret signs tokens issued by harness engines.
const Secret = "enginetest-secret-0123456789abcd"

// Password is the administrator password used by Request.
const Password = "correct-horse-9"

var (
	codePattern     = regexp.MustCompile(`\b[1-9][0-9]{5}\b`)
	passwordPattern = regexp.MustCompile(`Temporary password: (\S+)`)
)

// Harness is an engine wired to an in-memory store and mailer.
type Harness struct {
	Engine *hmsAuth.Engine
	Store  *memory.Store
	Mail   *mailer.Memory
}

// Config returns a fast, valid configuration for tests.
func Config() hmsAuth.Config {
	cfg := hmsAuth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(Secret)
	cfg.Password.BcryptCost = 10
	cfg.Email.MaxAttempts = 1
	cfg.Email.InitialBackoff = 0
	cfg.Email.MaxBackoff = 0
	return cfg
}

// New builds a harness. configure runs after the defaults are applied.
func New(t testing.TB, configure ...func(*hmsAuth.Builder)) *Harness {
	t.Helper()

	h := &Harness{
		Store: memory.New(),
		Mail:  &mailer.Memory{},
	}
	b := hmsAuth.New().
		WithConfig(Config()).
		WithStore(h.Store).
		WithMailer(h.Mail)
	for _, fn := range configure {
		fn(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	h.Engine = engine
	return h
}

// Request returns a registration whose unique fields are derived from n.
func Request(n string) hmsAuth.RegisterTenantRequest {
	return hmsAuth.RegisterTenantRequest{
		HospitalName:       "Hospital " + n,
		HospitalEmail:      "contact-" + n + "@hospital.io",
		RegistrationNumber: "RN-" + n,
		LicenseNumber:      "LN-" + n,
		HospitalNumber:     "HN-" + n,
		AdminName:          "Admin " + n,
		AdminEmail:         "admin-" + n + "@hospital.io",
		AdminPassword:      Password,
	}
}

// Code returns the last verification code mailed to email.
func (h *Harness) Code(t testing.TB, email string) string {
	t.Helper()
	msg, ok := h.Mail.Last(email)
	if !ok {
		t.Fatalf("no email sent to %s", email)
	}
	code := codePattern.FindString(msg.Text)
	if code == "" {
		t.Fatalf("no code in email to %s", email)
	}
	return code
}

// TemporaryPassword returns the last temporary password mailed to email.
func (h *Harness) TemporaryPassword(t testing.TB, email string) string {
	t.Helper()
	msg, ok := h.Mail.Last(email)
	if !ok {
		t.Fatalf("no email sent to %s", email)
	}
	m := passwordPattern.FindStringSubmatch(msg.Text)
	if len(m) != 2 {
		t.Fatalf("no temporary password in email to %s", email)
	}
	return m[1]
}

// RegisterVerified registers and verifies req and returns the signed-in
// administrator.
func (h *Harness) RegisterVerified(t testing.TB, req hmsAuth.RegisterTenantRequest) *hmsAuth.LoginResult {
	t.Helper()
	ctx := context.Background()
	if _, err := h.Engine.RegisterTenant(ctx, req); err != nil {
		t.Fatalf("register %s: %v", req.HospitalName, err)
	}
	res, err := h.Engine.VerifyEmail(ctx, req.AdminEmail, h.Code(t, req.AdminEmail))
	if err != nil {
		t.Fatalf("verify %s: %v", req.AdminEmail, err)
	}
	return res
}

// CreateStaff creates a staff member as actor and returns its session.
func (h *Harness) CreateStaff(t testing.TB, actor hmsAuth.Principal, req hmsAuth.CreateStaffRequest) *hmsAuth.LoginResult {
	t.Helper()
	ctx := context.Background()
	if _, err := h.Engine.CreateStaff(ctx, actor, req); err != nil {
		t.Fatalf("create staff %s: %v", req.Email, err)
	}
	res, err := h.Engine.LoginStaff(ctx, req.Email, h.TemporaryPassword(t, req.Email))
	if err != nil {
		t.Fatalf("staff login %s: %v", req.Email, err)
	}
	return res
}
