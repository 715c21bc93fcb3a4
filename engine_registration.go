package hmsAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/hmsAuth/password"
	"github.com/MrEthical07/hmsAuth/permission"
	"github.com/MrEthical07/hmsAuth/principal"
	"github.com/MrEthical07/hmsAuth/verification"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Conflict fields reported by RegisterTenant.
const (
	ConflictHospitalEmail      = "hospital_email"
	ConflictRegistrationNumber = "registration_number"
	ConflictLicenseNumber      = "license_number"
	ConflictHospitalNumber     = "hospital_number"
	ConflictAdminEmail         = "admin_email"
	ConflictStaffEmail         = "email"
	ConflictEmployeeID         = "employee_id"
)

func tenantConflict(field string) error {
	switch field {
	case principal.FieldEmail:
		return &ConflictError{Field: ConflictHospitalEmail}
	case principal.FieldRegistrationNumber:
		return &ConflictError{Field: ConflictRegistrationNumber}
	case principal.FieldLicenseNumber:
		return &ConflictError{Field: ConflictLicenseNumber}
	case principal.FieldHospitalNumber:
		return &ConflictError{Field: ConflictHospitalNumber}
	}
	return &ConflictError{Field: field}
}

// RegisterTenant creates a pending hospital and its inactive administrator
// and emails the administrator a verification code.
//
// Identity conflicts are reported before anything is written. Once the
// first record exists the operation ignores request cancellation and
// either completes or removes everything it created; ErrEmailDispatchFailed
// means the records were rolled back.
func (e *Engine) RegisterTenant(ctx context.Context, req RegisterTenantRequest) (*RegisterTenantResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	req.normalize()
	if err := e.validateRegistration(req); err != nil {
		return nil, err
	}

	field, err := e.store.FindTenantConflict(ctx, principal.TenantIdentity{
		Email:              req.HospitalEmail,
		RegistrationNumber: req.RegistrationNumber,
		LicenseNumber:      req.LicenseNumber,
		HospitalNumber:     req.HospitalNumber,
	})
	if err != nil {
		return nil, e.unexpected("register_tenant", err)
	}
	if field != "" {
		return nil, e.registrationConflict(ctx, tenantConflict(field))
	}
	if _, err := e.store.FindAdminByEmail(ctx, req.AdminEmail); err == nil {
		return nil, e.registrationConflict(ctx, &ConflictError{Field: ConflictAdminEmail})
	} else if !errors.Is(err, principal.ErrNotFound) {
		return nil, e.unexpected("register_tenant", err)
	}

	digest, err := e.vault.Hash(req.AdminPassword)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooLong) || errors.Is(err, password.ErrEmptyPassword) {
			return nil, invalid("admin_password", err.Error())
		}
		return nil, e.unexpected("register_tenant", err)
	}
	adminID, err := uuid.NewV7()
	if err != nil {
		return nil, e.unexpected("register_tenant", err)
	}

	now := e.now()
	tenant := &principal.Tenant{
		Name:               req.HospitalName,
		Email:              req.HospitalEmail,
		Phone:              req.HospitalPhone,
		Address:            req.Address,
		RegistrationNumber: req.RegistrationNumber,
		LicenseNumber:      req.LicenseNumber,
		HospitalNumber:     req.HospitalNumber,
		Status:             principal.TenantPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	wctx := context.WithoutCancel(ctx)
	if err := e.createTenantWithID(wctx, tenant); err != nil {
		if field, ok := principal.ConflictField(err); ok && field != principal.FieldTenantID {
			return nil, e.registrationConflict(ctx, tenantConflict(field))
		}
		return nil, e.unexpected("register_tenant", err)
	}

	s := e.newSaga("register_tenant", zap.String("tenant_id", tenant.ID), zap.String("admin_id", adminID.String()))
	s.add("delete_tenant", func(ctx context.Context) error {
		return e.store.DeleteTenant(ctx, tenant.ID)
	})

	admin := &principal.Administrator{
		ID:           adminID.String(),
		TenantID:     tenant.ID,
		Name:         req.AdminName,
		Email:        req.AdminEmail,
		Phone:        req.AdminPhone,
		PasswordHash: digest,
		Role:         principal.RoleAdmin,
		Permissions:  permission.Set{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.store.CreateAdmin(wctx, admin); err != nil {
		s.rollback(wctx)
		if errors.Is(err, principal.ErrConflict) {
			return nil, e.registrationConflict(ctx, &ConflictError{Field: ConflictAdminEmail})
		}
		return nil, e.unexpected("register_tenant", err, zap.String("tenant_id", tenant.ID))
	}
	s.add("delete_admin", func(ctx context.Context) error {
		return e.store.DeleteAdmin(ctx, admin.ID)
	})

	rec, err := e.ledger.Issue(wctx, admin.Email, verification.KindHospitalRegistration, verification.Subject{
		TenantID: tenant.ID,
		AdminID:  admin.ID,
	})
	if err != nil {
		s.rollback(wctx)
		return nil, e.unexpected("register_tenant", err, zap.String("tenant_id", tenant.ID))
	}
	s.add("discard_code", func(ctx context.Context) error {
		return e.ledger.Discard(ctx, rec.ID)
	})

	msg := e.verificationMessage(admin.Email, admin.Name, tenant.Name, rec.Token, e.config.Verification.TTL)
	if _, err := e.mailer.Send(wctx, msg); err != nil {
		e.metricInc(MetricEmailDispatchFailure)
		e.logger.Warn("verification email failed, rolling back registration",
			zap.String("tenant_id", tenant.ID),
			zap.Error(err),
		)
		s.rollback(wctx)
		e.metricInc(MetricRegistrationRollback)
		e.emitAudit(ctx, auditEventRegistrationRollback, false, auditSubject{
			PrincipalID: admin.ID,
			Kind:        string(principal.KindAdmin),
			TenantID:    tenant.ID,
		}, ErrEmailDispatchFailed, nil)
		return nil, ErrEmailDispatchFailed
	}

	e.metricInc(MetricRegistrationSuccess)
	e.emitAudit(ctx, auditEventRegistrationCreated, true, auditSubject{
		PrincipalID: admin.ID,
		Kind:        string(principal.KindAdmin),
		TenantID:    tenant.ID,
	}, nil, nil)

	return &RegisterTenantResult{
		TenantID:              tenant.ID,
		AdminID:               admin.ID,
		VerificationEmail:     admin.Email,
		VerificationExpiresAt: rec.ExpiresAt,
	}, nil
}

func (e *Engine) registrationConflict(ctx context.Context, err error) error {
	e.metricInc(MetricRegistrationConflict)
	e.emitAudit(ctx, auditEventRegistrationCreated, false, auditSubject{}, err, nil)
	return err
}

// VerifyEmail redeems a registration code, activates the tenant and its
// administrator together, and signs the administrator in.
func (e *Engine) VerifyEmail(ctx context.Context, email, code string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	email = normalizeEmail(email)
	if !validEmail(email) {
		return nil, invalid("email", "invalid email")
	}
	if !verification.ValidCodeFormat(code) {
		return nil, invalid("code", "must be 6 digits")
	}

	rec, err := e.ledger.Redeem(ctx, email, code, verification.KindHospitalRegistration)
	if err != nil {
		mapped := mapVerificationError(err)
		if errors.Is(mapped, ErrUnexpected) {
			return nil, e.unexpected("verify_email", err)
		}
		e.metricInc(MetricVerificationFailure)
		if errors.Is(mapped, ErrTooManyAttempts) {
			e.metricInc(MetricVerificationBlocked)
		}
		e.emitAudit(ctx, auditEventVerificationFailure, false, auditSubject{Kind: string(principal.KindAdmin)}, mapped, nil)
		return nil, mapped
	}

	wctx := context.WithoutCancel(ctx)
	subject := auditSubject{
		PrincipalID: rec.Subject.AdminID,
		Kind:        string(principal.KindAdmin),
		TenantID:    rec.Subject.TenantID,
	}
	if err := e.store.Activate(wctx, rec.Subject.TenantID, rec.Subject.AdminID, e.now()); err != nil {
		s := e.newSaga("verify_email", zap.String("tenant_id", rec.Subject.TenantID), zap.String("admin_id", rec.Subject.AdminID))
		s.add("release_code", func(ctx context.Context) error {
			return e.ledger.Release(ctx, rec)
		})
		s.rollback(wctx)
		if errors.Is(err, principal.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, e.unexpected("verify_email", err, zap.String("tenant_id", rec.Subject.TenantID))
	}

	admin, err := e.store.GetAdmin(wctx, rec.Subject.AdminID)
	if err != nil {
		return nil, e.unexpected("verify_email", err, zap.String("admin_id", rec.Subject.AdminID))
	}
	tenant, err := e.store.GetTenant(wctx, rec.Subject.TenantID)
	if err != nil {
		return nil, e.unexpected("verify_email", err, zap.String("tenant_id", rec.Subject.TenantID))
	}

	result, err := e.issueSession(principal.FromAdmin(admin), tenant)
	if err != nil {
		return nil, e.unexpected("verify_email", err)
	}

	e.metricInc(MetricVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerified, true, subject, nil, nil)
	return result, nil
}

// ResendVerification replaces the pending code for an unverified
// administrator and emails the new one.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	email = normalizeEmail(email)
	if !validEmail(email) {
		return invalid("email", "invalid email")
	}

	admin, err := e.store.FindAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			return ErrNotFound
		}
		return e.unexpected("resend_verification", err)
	}
	if admin.IsEmailVerified {
		return ErrAlreadyVerified
	}

	rec, err := e.ledger.Reissue(ctx, email, verification.KindHospitalRegistration)
	if err != nil {
		switch {
		case errors.Is(err, verification.ErrNotFound):
			return ErrNotFound
		case errors.Is(err, verification.ErrAlreadyUsed):
			return ErrAlreadyVerified
		}
		return e.unexpected("resend_verification", err)
	}

	hospitalName := admin.TenantID
	if tenant, err := e.store.GetTenant(ctx, admin.TenantID); err == nil {
		hospitalName = tenant.Name
	}

	msg := e.verificationMessage(admin.Email, admin.Name, hospitalName, rec.Token, e.config.Verification.TTL)
	if _, err := e.mailer.Send(context.WithoutCancel(ctx), msg); err != nil {
		e.metricInc(MetricEmailDispatchFailure)
		e.logger.Warn("verification resend failed", zap.String("admin_id", admin.ID), zap.Error(err))
		return ErrEmailDispatchFailed
	}

	e.metricInc(MetricVerificationResent)
	e.emitAudit(ctx, auditEventVerificationResent, true, subjectOf(principal.FromAdmin(admin)), nil, nil)
	return nil
}

func mapVerificationError(err error) error {
	switch {
	case errors.Is(err, verification.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, verification.ErrInvalidToken):
		return ErrInvalidToken
	case errors.Is(err, verification.ErrExpired):
		return ErrExpired
	case errors.Is(err, verification.ErrAlreadyUsed):
		return ErrAlreadyUsed
	case errors.Is(err, verification.ErrTooManyAttempts):
		return ErrTooManyAttempts
	}
	return ErrUnexpected
}
