package hmsAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/hmsAuth/jwt"
	"github.com/MrEthical07/hmsAuth/permission"
	"github.com/MrEthical07/hmsAuth/principal"
	"go.uber.org/zap"
)

// Authenticate validates a session token and resolves it against live
// state. Claims are never trusted on their own: the principal and its
// tenant are reloaded and their current flags decide.
//
// Token failures wrap ErrInvalidToken together with the jwt package error,
// so errors.Is(err, jwt.ErrExpired) also works.
func (e *Engine) Authenticate(ctx context.Context, token string) (*Session, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
		}()
	}

	claims, err := e.jwtManager.Validate(ctx, token)
	if err != nil {
		if errors.Is(err, jwt.ErrDenylistUnavailable) {
			return nil, e.unexpected("authenticate", err)
		}
		return nil, e.authenticateFailed(ctx, auditSubject{}, fmt.Errorf("%w: %w", ErrInvalidToken, err))
	}
	subject := auditSubject{
		PrincipalID: claims.PrincipalID,
		Kind:        claims.Kind,
		TenantID:    claims.TenantID,
		TokenID:     claims.ID,
	}

	p, err := e.loadPrincipal(ctx, claims)
	if err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			return nil, e.authenticateFailed(ctx, subject, ErrInvalidToken)
		}
		return nil, e.unexpected("authenticate", err, zap.String("principal_id", claims.PrincipalID))
	}
	if p.TenantID() != claims.TenantID {
		return nil, e.authenticateFailed(ctx, subject, ErrInvalidToken)
	}

	tenant, err := e.store.GetTenant(ctx, p.TenantID())
	if err != nil && !errors.Is(err, principal.ErrNotFound) {
		return nil, e.unexpected("authenticate", err, zap.String("tenant_id", p.TenantID()))
	}

	switch {
	case !p.IsActive():
		return nil, e.authenticateFailed(ctx, subject, ErrAccountInactive)
	case p.Kind == principal.KindAdmin && !p.Admin.IsEmailVerified:
		return nil, e.authenticateFailed(ctx, subject, ErrEmailNotVerified)
	case !tenant.IsOperational(), p.Kind == principal.KindAdmin && !tenant.IsVerified:
		return nil, e.authenticateFailed(ctx, subject, ErrTenantInactive)
	}

	e.metricInc(MetricAuthenticateSuccess)
	return &Session{
		Principal: redacted(p),
		Tenant:    tenant,
		Claims:    claims,
	}, nil
}

func (e *Engine) loadPrincipal(ctx context.Context, claims *jwt.Claims) (Principal, error) {
	switch principal.Kind(claims.Kind) {
	case principal.KindAdmin:
		admin, err := e.store.GetAdmin(ctx, claims.PrincipalID)
		if err != nil {
			return Principal{}, err
		}
		return principal.FromAdmin(admin), nil
	case principal.KindStaff:
		member, err := e.store.GetStaff(ctx, claims.TenantID, claims.PrincipalID)
		if err != nil {
			return Principal{}, err
		}
		return principal.FromStaff(member), nil
	}
	return Principal{}, principal.ErrNotFound
}

func (e *Engine) authenticateFailed(ctx context.Context, subject auditSubject, err error) error {
	e.metricInc(MetricAuthenticateFailure)
	e.emitAudit(ctx, auditEventAuthenticateFailure, false, subject, err, nil)
	return err
}

// Authorize decides whether p may perform action on module within its own
// tenant. Denials are *permission.ForbiddenError and match ErrForbidden.
func (e *Engine) Authorize(p Principal, module, action string) error {
	return e.AuthorizeInTenant(p, p.TenantID(), module, action)
}

// AuthorizeInTenant is Authorize for a resource owned by tenantID. Tenant
// administrators only bypass module checks inside their own tenant.
func (e *Engine) AuthorizeInTenant(p Principal, tenantID, module, action string) error {
	if !p.Valid() {
		e.metricInc(MetricAuthorizeDenied)
		return &permission.ForbiddenError{Module: module, Action: action}
	}
	if err := permission.Evaluate(p, tenantID, module, action); err != nil {
		e.metricInc(MetricAuthorizeDenied)
		e.emitAudit(context.Background(), auditEventAuthorizationDenied, false, subjectOf(p), err, func() map[string]string {
			return map[string]string{"module": module, "action": action, "tenant_id": tenantID}
		})
		return err
	}
	return nil
}

// Logout revokes token when a deny-list is configured. Without one,
// logout is a client-side discard and the token stays valid until it
// expires.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	claims, err := e.jwtManager.Validate(ctx, token)
	if err != nil {
		if errors.Is(err, jwt.ErrDenylistUnavailable) {
			return e.unexpected("logout", err)
		}
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if e.jwtManager.RevocationEnabled() {
		if err := e.jwtManager.Revoke(context.WithoutCancel(ctx), claims); err != nil {
			return e.unexpected("logout", err, zap.String("token_id", claims.ID))
		}
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, auditSubject{
		PrincipalID: claims.PrincipalID,
		Kind:        claims.Kind,
		TenantID:    claims.TenantID,
		TokenID:     claims.ID,
	}, nil, func() map[string]string {
		return map[string]string{"revoked": fmt.Sprint(e.jwtManager.RevocationEnabled())}
	})
	return nil
}
