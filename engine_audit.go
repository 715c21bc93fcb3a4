package hmsAuth

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventAccountLocked         = "account_locked"
	auditEventRegistrationCreated   = "registration_created"
	auditEventRegistrationRollback  = "registration_rolled_back"
	auditEventEmailVerified         = "email_verified"
	auditEventVerificationFailure   = "email_verification_failure"
	auditEventVerificationResent    = "email_verification_resent"
	auditEventStaffCreated          = "staff_created"
	auditEventStaffUpdated          = "staff_updated"
	auditEventStaffDeleted          = "staff_deleted"
	auditEventStaffPasswordReset    = "staff_password_reset"
	auditEventPasswordChangeSuccess = "password_change_success"
	auditEventPasswordChangeFailure = "password_change_failure"
	auditEventAuthenticateFailure   = "authenticate_failure"
	auditEventAuthorizationDenied   = "authorization_denied"
	auditEventLogout                = "logout"
	auditEventCompensationFailure   = "compensation_failure"
)

// AuditErrorCode is the stable, detail-free error label written to
// AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrValidation         AuditErrorCode = "validation_failed"
	auditErrConflict           AuditErrorCode = "conflict"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrAccountInactive    AuditErrorCode = "account_inactive"
	auditErrEmailNotVerified   AuditErrorCode = "email_not_verified"
	auditErrTenantInactive     AuditErrorCode = "tenant_inactive"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrExpired            AuditErrorCode = "expired"
	auditErrAlreadyUsed        AuditErrorCode = "already_used"
	auditErrTooManyAttempts    AuditErrorCode = "too_many_attempts"
	auditErrAlreadyVerified    AuditErrorCode = "already_verified"
	auditErrForbidden          AuditErrorCode = "forbidden"
	auditErrInvalidOperation   AuditErrorCode = "invalid_operation"
	auditErrInvalidCurrent     AuditErrorCode = "invalid_current_password"
	auditErrEmailDispatch      AuditErrorCode = "email_dispatch_failed"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// auditSubject identifies who an event is about. Any field may be empty.
type auditSubject struct {
	PrincipalID string
	Kind        string
	TenantID    string
	TokenID     string
}

func subjectOf(p Principal) auditSubject {
	return auditSubject{
		PrincipalID: p.ID(),
		Kind:        string(p.Kind),
		TenantID:    p.TenantID(),
	}
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subject auditSubject,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["user_agent"] = ua
	}

	event := AuditEvent{
		Timestamp:     e.now().UTC(),
		EventType:     eventType,
		PrincipalID:   subject.PrincipalID,
		PrincipalKind: subject.Kind,
		TenantID:      subject.TenantID,
		TokenID:       subject.TokenID,
		IP:            clientIPFromContext(ctx),
		Success:       success,
		Metadata:      metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrValidationFailed):
		return auditErrValidation
	case errors.Is(err, ErrConflict):
		return auditErrConflict
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountInactive):
		return auditErrAccountInactive
	case errors.Is(err, ErrEmailNotVerified):
		return auditErrEmailNotVerified
	case errors.Is(err, ErrTenantInactive):
		return auditErrTenantInactive
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrExpired):
		return auditErrExpired
	case errors.Is(err, ErrAlreadyUsed):
		return auditErrAlreadyUsed
	case errors.Is(err, ErrTooManyAttempts):
		return auditErrTooManyAttempts
	case errors.Is(err, ErrAlreadyVerified):
		return auditErrAlreadyVerified
	case errors.Is(err, ErrForbidden):
		return auditErrForbidden
	case errors.Is(err, ErrInvalidOperation):
		return auditErrInvalidOperation
	case errors.Is(err, ErrInvalidCurrentPassword):
		return auditErrInvalidCurrent
	case errors.Is(err, ErrEmailDispatchFailed):
		return auditErrEmailDispatch
	default:
		return auditErrInternal
	}
}
