package hmsAuth

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/hmsAuth/password"
	"github.com/MrEthical07/hmsAuth/permission"
	"github.com/MrEthical07/hmsAuth/principal"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const staffModule = "staff"

// requireAdmin admits only tenant administrators; every staff operation is
// scoped to actor's tenant.
func requireAdmin(actor Principal, action string) error {
	if !actor.Valid() || actor.Kind != principal.KindAdmin || !actor.IsActive() {
		return &permission.ForbiddenError{Module: staffModule, Action: action}
	}
	return nil
}

// CreateStaff adds an active staff member to the actor's tenant and emails
// a temporary password. The password is never returned.
//
// The employee id is the role prefix followed by the next per-tenant,
// per-role sequence number. When the email cannot be delivered the record
// is removed and ErrEmailDispatchFailed is returned.
func (e *Engine) CreateStaff(ctx context.Context, actor Principal, req CreateStaffRequest) (*StaffMember, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if err := requireAdmin(actor, "create"); err != nil {
		return nil, err
	}
	req.normalize()
	switch {
	case req.Name == "":
		return nil, invalid("name", "required")
	case !validEmail(req.Email):
		return nil, invalid("email", "invalid email")
	case !req.Role.IsStaffRole():
		return nil, invalid("role", "unknown staff role")
	}

	perms, err := e.resolvePermissions(req.Role, req.Permissions)
	if err != nil {
		return nil, err
	}

	if _, err := e.store.FindStaffByEmail(ctx, req.Email); err == nil {
		return nil, &ConflictError{Field: ConflictStaffEmail}
	} else if !errors.Is(err, principal.ErrNotFound) {
		return nil, e.unexpected("create_staff", err)
	}

	temp, err := password.GenerateTemporary(e.config.Password.TemporaryLength)
	if err != nil {
		return nil, e.unexpected("create_staff", err)
	}
	digest, err := e.vault.Hash(temp)
	if err != nil {
		return nil, e.unexpected("create_staff", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, e.unexpected("create_staff", err)
	}

	now := e.now()
	member := &principal.StaffMember{
		ID:           id.String(),
		TenantID:     actor.TenantID(),
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Department:   req.Department,
		PasswordHash: digest,
		Role:         req.Role,
		IsActive:     true,
		Permissions:  perms,
		CreatedBy:    actor.ID(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	wctx := context.WithoutCancel(ctx)
	if err := e.createStaffWithEmployeeID(wctx, member); err != nil {
		if field, ok := principal.ConflictField(err); ok {
			if field == principal.FieldEmployeeID {
				return nil, &ConflictError{Field: ConflictEmployeeID}
			}
			return nil, &ConflictError{Field: ConflictStaffEmail}
		}
		return nil, e.unexpected("create_staff", err, zap.String("tenant_id", member.TenantID))
	}

	s := e.newSaga("create_staff", zap.String("tenant_id", member.TenantID), zap.String("staff_id", member.ID))
	s.add("delete_staff", func(ctx context.Context) error {
		return e.store.DeleteStaff(ctx, member.TenantID, member.ID)
	})

	msg := e.staffCredentialsMessage(member.Email, member.Name, member.EmployeeID, temp, false)
	if _, err := e.mailer.Send(wctx, msg); err != nil {
		e.metricInc(MetricEmailDispatchFailure)
		e.logger.Warn("staff credentials email failed, rolling back",
			zap.String("tenant_id", member.TenantID),
			zap.String("staff_id", member.ID),
			zap.Error(err),
		)
		s.rollback(wctx)
		return nil, ErrEmailDispatchFailed
	}

	e.metricInc(MetricStaffCreated)
	e.emitAudit(ctx, auditEventStaffCreated, true, subjectOf(actor), nil, func() map[string]string {
		return map[string]string{
			"staff_id":    member.ID,
			"employee_id": member.EmployeeID,
			"role":        string(member.Role),
		}
	})

	member.PasswordHash = ""
	return member, nil
}

// resolvePermissions validates explicit permissions against the registry
// or falls back to the role template.
func (e *Engine) resolvePermissions(role Role, explicit permission.Set) (permission.Set, error) {
	if len(explicit) == 0 {
		if tmpl, ok := e.roles.Template(string(role)); ok {
			return tmpl, nil
		}
		return permission.Set{}, nil
	}
	perms := explicit.Normalize()
	if err := e.registry.Validate(perms); err != nil {
		return nil, invalid("permissions", err.Error())
	}
	return perms, nil
}

// UpdateStaff changes a staff member of the actor's tenant. Deactivating a
// record that carries the actor's own email is rejected with
// ErrInvalidOperation.
func (e *Engine) UpdateStaff(ctx context.Context, actor Principal, staffID string, req UpdateStaffRequest) (*StaffMember, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if err := requireAdmin(actor, "update"); err != nil {
		return nil, err
	}

	member, err := e.loadStaff(ctx, "update_staff", actor.TenantID(), staffID)
	if err != nil {
		return nil, err
	}

	if req.IsActive != nil && !*req.IsActive && isSelf(actor, member) {
		return nil, ErrInvalidOperation
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, invalid("name", "required")
		}
		member.Name = name
	}
	if req.Phone != nil {
		member.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Department != nil {
		member.Department = strings.TrimSpace(*req.Department)
	}
	if req.Role != nil {
		if !req.Role.IsStaffRole() {
			return nil, invalid("role", "unknown staff role")
		}
		member.Role = *req.Role
	}
	if req.Permissions != nil {
		perms := req.Permissions.Normalize()
		if err := e.registry.Validate(perms); err != nil {
			return nil, invalid("permissions", err.Error())
		}
		member.Permissions = perms
	}
	if req.IsActive != nil {
		member.IsActive = *req.IsActive
	}
	member.UpdatedAt = e.now()

	if err := e.store.UpdateStaff(ctx, member); err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, e.unexpected("update_staff", err, zap.String("staff_id", staffID))
	}

	e.metricInc(MetricStaffUpdated)
	e.emitAudit(ctx, auditEventStaffUpdated, true, subjectOf(actor), nil, func() map[string]string {
		return map[string]string{"staff_id": member.ID}
	})

	member.PasswordHash = ""
	return member, nil
}

// DeleteStaff removes a staff member of the actor's tenant.
func (e *Engine) DeleteStaff(ctx context.Context, actor Principal, staffID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := requireAdmin(actor, "delete"); err != nil {
		return err
	}

	member, err := e.loadStaff(ctx, "delete_staff", actor.TenantID(), staffID)
	if err != nil {
		return err
	}
	if isSelf(actor, member) {
		return ErrInvalidOperation
	}

	if err := e.store.DeleteStaff(ctx, member.TenantID, member.ID); err != nil {
		return e.unexpected("delete_staff", err, zap.String("staff_id", staffID))
	}

	e.metricInc(MetricStaffDeleted)
	e.emitAudit(ctx, auditEventStaffDeleted, true, subjectOf(actor), nil, func() map[string]string {
		return map[string]string{"staff_id": member.ID}
	})
	return nil
}

// ResetStaffPassword replaces a staff member's password with a new
// temporary one, clears any lockout, and emails it. If the email fails the
// previous password and login state are restored.
func (e *Engine) ResetStaffPassword(ctx context.Context, actor Principal, staffID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := requireAdmin(actor, "update"); err != nil {
		return err
	}

	member, err := e.loadStaff(ctx, "reset_staff_password", actor.TenantID(), staffID)
	if err != nil {
		return err
	}

	temp, err := password.GenerateTemporary(e.config.Password.TemporaryLength)
	if err != nil {
		return e.unexpected("reset_staff_password", err)
	}
	digest, err := e.vault.Hash(temp)
	if err != nil {
		return e.unexpected("reset_staff_password", err)
	}

	wctx := context.WithoutCancel(ctx)
	s := e.newSaga("reset_staff_password", zap.String("tenant_id", member.TenantID), zap.String("staff_id", member.ID))

	previousDigest := member.PasswordHash
	if err := e.store.UpdateStaffPassword(wctx, member.TenantID, member.ID, digest, e.now()); err != nil {
		return e.unexpected("reset_staff_password", err, zap.String("staff_id", staffID))
	}
	s.add("restore_password", func(ctx context.Context) error {
		return e.store.UpdateStaffPassword(ctx, member.TenantID, member.ID, previousDigest, e.now())
	})

	previousLogin := member.Login
	cleared := previousLogin
	cleared.State = e.lockout.RegisterSuccess()
	if err := e.store.UpdateStaffLogin(wctx, member.TenantID, member.ID, cleared); err != nil {
		s.rollback(wctx)
		return e.unexpected("reset_staff_password", err, zap.String("staff_id", staffID))
	}
	s.add("restore_login_state", func(ctx context.Context) error {
		return e.store.UpdateStaffLogin(ctx, member.TenantID, member.ID, previousLogin)
	})

	msg := e.staffCredentialsMessage(member.Email, member.Name, member.EmployeeID, temp, true)
	if _, err := e.mailer.Send(wctx, msg); err != nil {
		e.metricInc(MetricEmailDispatchFailure)
		e.logger.Warn("staff password reset email failed, restoring", zap.String("staff_id", member.ID), zap.Error(err))
		s.rollback(wctx)
		return ErrEmailDispatchFailed
	}

	e.metricInc(MetricStaffPasswordReset)
	e.emitAudit(ctx, auditEventStaffPasswordReset, true, subjectOf(actor), nil, func() map[string]string {
		return map[string]string{"staff_id": member.ID}
	})
	return nil
}

func (e *Engine) loadStaff(ctx context.Context, op, tenantID, staffID string) (*principal.StaffMember, error) {
	if staffID == "" {
		return nil, invalid("staff_id", "required")
	}
	member, err := e.store.GetStaff(ctx, tenantID, staffID)
	if err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, e.unexpected(op, err, zap.String("staff_id", staffID))
	}
	return member, nil
}

func isSelf(actor Principal, member *principal.StaffMember) bool {
	return strings.EqualFold(actor.Email(), member.Email)
}
