package hmsAuth

import (
	"errors"
	"time"

	"github.com/MrEthical07/hmsAuth/jwt"
	"github.com/MrEthical07/hmsAuth/lockout"
	"github.com/MrEthical07/hmsAuth/mailer"
	"github.com/MrEthical07/hmsAuth/password"
	"github.com/MrEthical07/hmsAuth/verification"
	"golang.org/x/crypto/bcrypt"
)

// Config is the immutable engine configuration. Start from DefaultConfig
// and override fields before handing it to Builder.WithConfig.
type Config struct {
	JWT          JWTConfig
	Password     PasswordConfig
	Lockout      LockoutConfig
	Verification VerificationConfig
	Email        EmailConfig
	Tenant       TenantConfig
	Staff        StaffConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls session token signing.
type JWTConfig struct {
	TTL           time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig controls hashing cost and password rules.
type PasswordConfig struct {
	BcryptCost      int
	MinLength       int
	TemporaryLength int
	UpgradeOnLogin  bool
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls failed-login lockout.
type LockoutConfig struct {
	MaxAttempts  int
	Duration     time.Duration
	ApplyToStaff bool
}

/*
====================================
VERIFICATION CONFIG
====================================
*/

// VerificationConfig controls email verification codes.
type VerificationConfig struct {
	TTL         time.Duration
	MaxAttempts int
	Retention   time.Duration
}

/*
====================================
EMAIL CONFIG
====================================
*/

// EmailConfig bounds delivery of account emails.
type EmailConfig struct {
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	ProductName    string
}

/*
====================================
TENANT / STAFF CONFIG
====================================
*/

// TenantConfig controls tenant id generation.
type TenantConfig struct {
	IDPrefix   string
	IDWidth    int
	MaxRetries int
}

// StaffConfig controls employee id generation.
type StaffConfig struct {
	EmployeeIDWidth int
	MaxRetries      int
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults. JWT.PrivateKey must still
// be set.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			TTL:           jwt.DefaultTTL,
			SigningMethod: string(jwt.MethodHS256),
			Issuer:        jwt.DefaultIssuer,
		},
		Password: PasswordConfig{
			BcryptCost:      password.DefaultCost,
			MinLength:       8,
			TemporaryLength: password.DefaultTemporaryLength,
			UpgradeOnLogin:  true,
		},
		Lockout: LockoutConfig{
			MaxAttempts:  lockout.DefaultMaxAttempts,
			Duration:     lockout.DefaultDuration,
			ApplyToStaff: true,
		},
		Verification: VerificationConfig{
			TTL:         verification.DefaultTTL,
			MaxAttempts: verification.DefaultMaxAttempts,
			Retention:   verification.DefaultRetention,
		},
		Email: EmailConfig{
			Timeout:        mailer.DefaultTimeout,
			MaxAttempts:    mailer.DefaultAttempts,
			InitialBackoff: mailer.DefaultInitialBackoff,
			MaxBackoff:     mailer.DefaultMaxBackoff,
			ProductName:    "Hospital Management System",
		},
		Tenant: TenantConfig{
			IDPrefix:   "HOSP",
			IDWidth:    4,
			MaxRetries: 5,
		},
		Staff: StaffConfig{
			EmployeeIDWidth: 4,
			MaxRetries:      5,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.TTL <= 0 {
		return errors.New("JWT TTL must be > 0")
	}
	if c.JWT.SigningMethod != string(jwt.MethodHS256) && c.JWT.SigningMethod != string(jwt.MethodEd25519) {
		return errors.New("unsupported JWT signing method")
	}
	if len(c.JWT.PrivateKey) == 0 {
		return errors.New("JWT PrivateKey must be set")
	}
	if c.JWT.SigningMethod == string(jwt.MethodEd25519) && len(c.JWT.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Password
	if c.Password.BcryptCost < 10 || c.Password.BcryptCost > bcrypt.MaxCost {
		return errors.New("Password BcryptCost must be between 10 and 31")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}
	if c.Password.TemporaryLength < c.Password.MinLength {
		return errors.New("Password TemporaryLength must be >= MinLength")
	}

	// Lockout
	if err := (lockout.Policy{MaxAttempts: c.Lockout.MaxAttempts, Duration: c.Lockout.Duration}).Validate(); err != nil {
		return err
	}

	// Verification
	if c.Verification.TTL <= 0 {
		return errors.New("Verification TTL must be > 0")
	}
	if c.Verification.MaxAttempts <= 0 {
		return errors.New("Verification MaxAttempts must be > 0")
	}
	if c.Verification.Retention < c.Verification.TTL {
		return errors.New("Verification Retention must be >= TTL")
	}

	// Email
	if c.Email.Timeout <= 0 {
		return errors.New("Email Timeout must be > 0")
	}
	if c.Email.MaxAttempts <= 0 {
		return errors.New("Email MaxAttempts must be > 0")
	}
	if c.Email.InitialBackoff < 0 || c.Email.MaxBackoff < c.Email.InitialBackoff {
		return errors.New("Email backoff must satisfy 0 <= InitialBackoff <= MaxBackoff")
	}

	// Identifiers
	if c.Tenant.IDPrefix == "" {
		return errors.New("Tenant IDPrefix must be set")
	}
	if c.Tenant.IDWidth < 1 || c.Tenant.IDWidth > 12 {
		return errors.New("Tenant IDWidth must be between 1 and 12")
	}
	if c.Tenant.MaxRetries < 1 {
		return errors.New("Tenant MaxRetries must be >= 1")
	}
	if c.Staff.EmployeeIDWidth < 1 || c.Staff.EmployeeIDWidth > 12 {
		return errors.New("Staff EmployeeIDWidth must be between 1 and 12")
	}
	if c.Staff.MaxRetries < 1 {
		return errors.New("Staff MaxRetries must be >= 1")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
