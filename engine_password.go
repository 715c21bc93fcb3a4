package hmsAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/hmsAuth/principal"
	"go.uber.org/zap"
)

// ChangePassword replaces the actor's own password after checking the
// current one against the stored digest.
func (e *Engine) ChangePassword(ctx context.Context, actor Principal, current, next string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if !actor.Valid() {
		return invalid("principal", "required")
	}
	if current == "" {
		return invalid("current_password", "required")
	}
	if err := e.checkPassword("new_password", next); err != nil {
		return err
	}
	if current == next {
		return invalid("new_password", "must differ from the current password")
	}

	subject := subjectOf(actor)

	// Reload so a stale actor cannot verify against an old digest.
	var digest string
	var save func(ctx context.Context, digest string) error
	switch actor.Kind {
	case principal.KindAdmin:
		admin, err := e.store.GetAdmin(ctx, actor.ID())
		if err != nil {
			return e.passwordLookupFailed(err)
		}
		digest = admin.PasswordHash
		save = func(ctx context.Context, d string) error {
			return e.store.UpdateAdminPassword(ctx, admin.ID, d, e.now())
		}
	case principal.KindStaff:
		member, err := e.store.GetStaff(ctx, actor.TenantID(), actor.ID())
		if err != nil {
			return e.passwordLookupFailed(err)
		}
		digest = member.PasswordHash
		save = func(ctx context.Context, d string) error {
			return e.store.UpdateStaffPassword(ctx, member.TenantID, member.ID, d, e.now())
		}
	}

	if !e.vault.Verify(current, digest) {
		e.metricInc(MetricPasswordChangeInvalidCurrent)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, subject, ErrInvalidCurrentPassword, nil)
		return ErrInvalidCurrentPassword
	}

	newDigest, err := e.vault.Hash(next)
	if err != nil {
		return e.unexpected("change_password", err)
	}
	if err := save(context.WithoutCancel(ctx), newDigest); err != nil {
		return e.unexpected("change_password", err, zap.String("principal_id", actor.ID()))
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, subject, nil, nil)
	return nil
}

func (e *Engine) passwordLookupFailed(err error) error {
	if errors.Is(err, principal.ErrNotFound) {
		return ErrNotFound
	}
	return e.unexpected("change_password", err)
}
