package hmsAuth

import (
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

// Engine runs the hospital authentication flows. Build one with New and
// share it; every method is safe for concurrent use.
type Engine struct {
	config     Config
	logger     *zap.Logger
	store      principal.Store
	vault      *password.Vault
	lockout    lockout.Policy
	ledger     *verification.Ledger
	jwtManager *jwt.Manager
	mailer     mailer.Dispatcher
	registry   *permission.Registry
	roles      *permission.RoleManager
	audit      *internalaudit.Dispatcher
	metrics    *Metrics
	now        func() time.Time
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Registry returns the frozen module/action registry.
func (e *Engine) Registry() *permission.Registry {
	if e == nil {
		return nil
	}
	return e.registry
}

// RoleTemplate returns the default permission set for a staff role.
func (e *Engine) RoleTemplate(role Role) (permission.Set, bool) {
	if e == nil || e.roles == nil {
		return nil, false
	}
	return e.roles.Template(string(role))
}

// RevocationEnabled reports whether Logout can revoke tokens.
func (e *Engine) RevocationEnabled() bool {
	return e != nil && e.jwtManager != nil && e.jwtManager.RevocationEnabled()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.jwtManager != nil
}

// unexpected logs err with the operation name and hides it behind
// ErrUnexpected.
func (e *Engine) unexpected(op string, err error, fields ...zap.Field) error {
	fields = append(fields, zap.String("op", op), zap.Error(err))
	e.logger.Error("unexpected failure", fields...)
	return ErrUnexpected
}
