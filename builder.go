package hmsAuth

import (
	"bytes"
	"errors"
	"time"

	internalaudit "github.com/MrEthical07/hmsAuth/internal/audit"
	"github.com/MrEthical07/hmsAuth/jwt"
	"github.com/MrEthical07/hmsAuth/lockout"
	"github.com/MrEthical07/hmsAuth/mailer"
	"github.com/MrEthical07/hmsAuth/password"
	"github.com/MrEthical07/hmsAuth/permission"
	"github.com/MrEthical07/hmsAuth/principal"
	"github.com/MrEthical07/hmsAuth/verification"
	"go.uber.org/zap"
)

// Builder assembles an Engine. A Builder is single use.
type Builder struct {
	config Config

	store             principal.Store
	mailer            mailer.Dispatcher
	verificationStore verification.Store
	denylist          jwt.Denylist
	logger            *zap.Logger
	auditSink         AuditSink
	registry          *permission.Registry
	roleTemplates     []byte
	clock             func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the principal store. Required.
func (b *Builder) WithStore(store principal.Store) *Builder {
	b.store = store
	return b
}

// WithMailer sets the email dispatcher. Required. The engine wraps it with
// the retry and timeout policy from Config.Email.
func (b *Builder) WithMailer(d mailer.Dispatcher) *Builder {
	b.mailer = d
	return b
}

// WithVerificationStore sets where verification records live. Defaults to
// an in-process store.
func (b *Builder) WithVerificationStore(store verification.Store) *Builder {
	b.verificationStore = store
	return b
}

// WithDenylist enables token revocation and Logout.
func (b *Builder) WithDenylist(d jwt.Denylist) *Builder {
	b.denylist = d
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithPermissionRegistry replaces the default module/action registry. The
// registry is frozen during Build.
func (b *Builder) WithPermissionRegistry(r *permission.Registry) *Builder {
	b.registry = r
	return b
}

// WithRoleTemplates replaces the built-in role templates with a YAML
// document in the format accepted by permission.RoleManager.LoadTemplates.
func (b *Builder) WithRoleTemplates(doc []byte) *Builder {
	b.roleTemplates = append([]byte(nil), doc...)
	return b
}

// WithClock overrides time.Now for every component the engine builds.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("principal store required")
	}
	if b.mailer == nil {
		return nil, errors.New("mailer required")
	}

	now := b.clock
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// -------- PERMISSIONS --------
	registry := b.registry
	if registry == nil {
		registry = permission.DefaultRegistry()
	}
	registry.Freeze()

	var roles *permission.RoleManager
	if len(b.roleTemplates) > 0 {
		roles = permission.NewRoleManager(registry)
		if err := roles.LoadTemplates(bytes.NewReader(b.roleTemplates)); err != nil {
			return nil, err
		}
		roles.Freeze()
	} else {
		var err error
		roles, err = permission.DefaultRoleManager(registry)
		if err != nil {
			return nil, err
		}
	}

	// -------- CREDENTIALS --------
	vault, err := password.NewVault(cfg.Password.BcryptCost)
	if err != nil {
		return nil, err
	}

	// -------- VERIFICATION --------
	vstore := b.verificationStore
	if vstore == nil {
		vstore = verification.NewMemoryStore(cfg.Verification.Retention, now)
	}
	ledger, err := verification.NewLedger(vstore, verification.Config{
		TTL:         cfg.Verification.TTL,
		MaxAttempts: cfg.Verification.MaxAttempts,
	}, verification.WithClock(now))
	if err != nil {
		return nil, err
	}

	// -------- SESSIONS --------
	jwtOpts := []jwt.Option{jwt.WithClock(now)}
	if b.denylist != nil {
		jwtOpts = append(jwtOpts, jwt.WithDenylist(b.denylist))
	}
	jm, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.JWT.TTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
	}, jwtOpts...)
	if err != nil {
		return nil, err
	}

	// -------- EMAIL --------
	dispatcher := mailer.NewRetrying(b.mailer, mailer.RetryConfig{
		Attempts:       cfg.Email.MaxAttempts,
		Timeout:        cfg.Email.Timeout,
		InitialBackoff: cfg.Email.InitialBackoff,
		MaxBackoff:     cfg.Email.MaxBackoff,
	}, logger.Named("mailer"))

	engine := &Engine{
		config:     cloneConfig(cfg),
		logger:     logger,
		store:      b.store,
		vault:      vault,
		lockout:    lockout.Policy{MaxAttempts: cfg.Lockout.MaxAttempts, Duration: cfg.Lockout.Duration},
		ledger:     ledger,
		jwtManager: jm,
		mailer:     dispatcher,
		registry:   registry,
		roles:      roles,
		metrics:    NewMetrics(cfg.Metrics),
		now:        now,
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink, logger.Named("audit"))

	b.built = true
	return engine, nil
}
