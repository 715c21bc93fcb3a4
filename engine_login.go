package hmsAuth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/hmsAuth/jwt"
	"github.com/MrEthical07/hmsAuth/principal"
	"go.uber.org/zap"
)

// loginTarget adapts an administrator or staff record to the shared login
// sequence.
type loginTarget struct {
	principal    Principal
	state        principal.LoginState
	lockable     bool
	saveState    func(ctx context.Context, state principal.LoginState) error
	savePassword func(ctx context.Context, digest string) error
	// gate checks account flags after the password matched.
	gate func(tenant *Tenant) error
}

// LoginAdmin authenticates a tenant administrator by email and password.
//
// A locked account is rejected with *AccountLockedError before the password
// is compared. Unknown emails and wrong passwords both return
// ErrInvalidCredentials.
func (e *Engine) LoginAdmin(ctx context.Context, email, password string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, invalid("", "email and password required")
	}

	admin, err := e.store.FindAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			return nil, e.loginFailed(ctx, auditSubject{Kind: string(principal.KindAdmin)}, ErrInvalidCredentials)
		}
		return nil, e.unexpected("login_admin", err)
	}

	return e.login(ctx, loginTarget{
		principal: principal.FromAdmin(admin),
		state:     admin.Login,
		lockable:  true,
		saveState: func(ctx context.Context, s principal.LoginState) error {
			return e.store.UpdateAdminLogin(ctx, admin.ID, s)
		},
		savePassword: func(ctx context.Context, digest string) error {
			return e.store.UpdateAdminPassword(ctx, admin.ID, digest, e.now())
		},
		gate: func(tenant *Tenant) error {
			switch {
			case !admin.IsActive:
				return ErrAccountInactive
			case !admin.IsEmailVerified:
				return ErrEmailNotVerified
			case !tenant.IsOperational() || !tenant.IsVerified:
				return ErrTenantInactive
			}
			return nil
		},
	}, password)
}

// LoginStaff authenticates a staff member by email and password. Lockout
// applies when Lockout.ApplyToStaff is set.
func (e *Engine) LoginStaff(ctx context.Context, email, password string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, invalid("", "email and password required")
	}

	member, err := e.store.FindStaffByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			return nil, e.loginFailed(ctx, auditSubject{Kind: string(principal.KindStaff)}, ErrInvalidCredentials)
		}
		return nil, e.unexpected("login_staff", err)
	}

	return e.login(ctx, loginTarget{
		principal: principal.FromStaff(member),
		state:     member.Login,
		lockable:  e.config.Lockout.ApplyToStaff,
		saveState: func(ctx context.Context, s principal.LoginState) error {
			return e.store.UpdateStaffLogin(ctx, member.TenantID, member.ID, s)
		},
		savePassword: func(ctx context.Context, digest string) error {
			return e.store.UpdateStaffPassword(ctx, member.TenantID, member.ID, digest, e.now())
		},
		gate: func(tenant *Tenant) error {
			switch {
			case !member.IsActive:
				return ErrAccountInactive
			case !tenant.IsOperational():
				return ErrTenantInactive
			}
			return nil
		},
	}, password)
}

func (e *Engine) login(ctx context.Context, target loginTarget, password string) (*LoginResult, error) {
	p := target.principal
	subject := subjectOf(p)
	now := e.now()

	if target.lockable && target.state.IsLocked(now) {
		e.metricInc(MetricLoginLocked)
		return nil, e.loginFailed(ctx, subject, &AccountLockedError{
			RemainingMinutes: target.state.RemainingMinutes(now),
		})
	}

	digest := p.PasswordHash()
	if !e.vault.Verify(password, digest) {
		if target.lockable {
			return nil, e.registerLoginFailure(ctx, target, now)
		}
		return nil, e.loginFailed(ctx, subject, ErrInvalidCredentials)
	}

	tenant, err := e.store.GetTenant(ctx, p.TenantID())
	if err != nil && !errors.Is(err, principal.ErrNotFound) {
		return nil, e.unexpected("login", err, zap.String("tenant_id", p.TenantID()))
	}
	if err := target.gate(tenant); err != nil {
		return nil, e.loginFailed(ctx, subject, err)
	}

	// The password matched: reset counters even if the write outlives the
	// request.
	wctx := context.WithoutCancel(ctx)
	loginAt := now
	state := principal.LoginState{
		State:       e.lockout.RegisterSuccess(),
		LastLoginAt: &loginAt,
		LastLoginIP: clientIPFromContext(ctx),
	}
	if err := target.saveState(wctx, state); err != nil {
		return nil, e.unexpected("login", err, zap.String("principal_id", p.ID()))
	}
	if p.Admin != nil {
		p.Admin.Login = state
	}
	if p.Staff != nil {
		p.Staff.Login = state
	}

	if e.config.Password.UpgradeOnLogin && e.vault.NeedsUpgrade(digest) {
		e.upgradeDigest(wctx, target, password)
	}

	result, err := e.issueSession(p, tenant)
	if err != nil {
		return nil, e.unexpected("login", err, zap.String("principal_id", p.ID()))
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, subject, nil, nil)
	return result, nil
}

// registerLoginFailure persists the failed attempt on a context detached
// from the request so a disconnecting client cannot skip the count.
func (e *Engine) registerLoginFailure(ctx context.Context, target loginTarget, now time.Time) error {
	p := target.principal
	subject := subjectOf(p)

	next := target.state
	next.State = e.lockout.RegisterFailure(target.state.State, now)
	if err := target.saveState(context.WithoutCancel(ctx), next); err != nil {
		return e.unexpected("login", err, zap.String("principal_id", p.ID()))
	}

	if next.IsLocked(now) {
		e.metricInc(MetricAccountLocked)
		e.emitAudit(ctx, auditEventAccountLocked, false, subject, ErrAccountLocked, func() map[string]string {
			return map[string]string{"lock_until": next.LockUntil.UTC().Format(time.RFC3339)}
		})
	}
	return e.loginFailed(ctx, subject, ErrInvalidCredentials)
}

func (e *Engine) upgradeDigest(ctx context.Context, target loginTarget, password string) {
	digest, err := e.vault.Hash(password)
	if err == nil {
		err = target.savePassword(ctx, digest)
	}
	if err != nil {
		e.logger.Warn("password digest upgrade failed",
			zap.String("principal_id", target.principal.ID()),
			zap.Error(err),
		)
		return
	}
	e.metricInc(MetricPasswordRehashed)
}

func (e *Engine) loginFailed(ctx context.Context, subject auditSubject, err error) error {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, subject, err, nil)
	return err
}

// issueSession mints a token for p.
func (e *Engine) issueSession(p Principal, tenant *Tenant) (*LoginResult, error) {
	token, claims, err := e.jwtManager.Issue(jwt.Identity{
		Kind:        string(p.Kind),
		TenantID:    p.TenantID(),
		PrincipalID: p.ID(),
		Email:       p.Email(),
		Role:        string(p.Role()),
	})
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricSessionIssued)

	result := &LoginResult{
		Token:     token,
		Principal: redacted(p),
		Tenant:    tenant,
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result, nil
}

// redacted returns a copy of p without the password digest.
func redacted(p Principal) Principal {
	switch {
	case p.Kind == principal.KindAdmin && p.Admin != nil:
		a := *p.Admin
		a.PasswordHash = ""
		return principal.FromAdmin(&a)
	case p.Kind == principal.KindStaff && p.Staff != nil:
		m := *p.Staff
		m.PasswordHash = ""
		return principal.FromStaff(&m)
	}
	return p
}
