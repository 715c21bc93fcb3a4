package internaldefs

import (
	hmsAuth "github.com/MrEthical07/hmsAuth"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   hmsAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for export.
type HistogramDef struct {
	ID   hmsAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in MetricID order.
var CounterDefs = []CounterDef{
	{ID: hmsAuth.MetricLoginSuccess, Name: "hmsauth_login_success_total", Help: "Successful admin and staff logins."},
	{ID: hmsAuth.MetricLoginFailure, Name: "hmsauth_login_failure_total", Help: "Failed login attempts."},
	{ID: hmsAuth.MetricLoginLocked, Name: "hmsauth_login_locked_total", Help: "Login attempts rejected because the account was locked."},
	{ID: hmsAuth.MetricAccountLocked, Name: "hmsauth_account_locked_total", Help: "Accounts that entered the locked state."},
	{ID: hmsAuth.MetricRegistrationSuccess, Name: "hmsauth_registration_success_total", Help: "Tenants registered."},
	{ID: hmsAuth.MetricRegistrationConflict, Name: "hmsauth_registration_conflict_total", Help: "Registrations rejected for a taken identity field."},
	{ID: hmsAuth.MetricRegistrationRollback, Name: "hmsauth_registration_rollback_total", Help: "Registrations rolled back after email failure."},
	{ID: hmsAuth.MetricVerificationSuccess, Name: "hmsauth_verification_success_total", Help: "Successful email verifications."},
	{ID: hmsAuth.MetricVerificationFailure, Name: "hmsauth_verification_failure_total", Help: "Failed email verifications."},
	{ID: hmsAuth.MetricVerificationBlocked, Name: "hmsauth_verification_blocked_total", Help: "Verifications rejected for too many attempts."},
	{ID: hmsAuth.MetricVerificationResent, Name: "hmsauth_verification_resent_total", Help: "Verification codes resent."},
	{ID: hmsAuth.MetricStaffCreated, Name: "hmsauth_staff_created_total", Help: "Staff members created."},
	{ID: hmsAuth.MetricStaffUpdated, Name: "hmsauth_staff_updated_total", Help: "Staff members updated."},
	{ID: hmsAuth.MetricStaffDeleted, Name: "hmsauth_staff_deleted_total", Help: "Staff members deleted."},
	{ID: hmsAuth.MetricStaffPasswordReset, Name: "hmsauth_staff_password_reset_total", Help: "Staff passwords reset by an administrator."},
	{ID: hmsAuth.MetricPasswordChangeSuccess, Name: "hmsauth_password_change_success_total", Help: "Successful password changes."},
	{ID: hmsAuth.MetricPasswordChangeInvalidCurrent, Name: "hmsauth_password_change_invalid_current_total", Help: "Password changes rejected for a wrong current password."},
	{ID: hmsAuth.MetricPasswordRehashed, Name: "hmsauth_password_rehashed_total", Help: "Password digests upgraded on login."},
	{ID: hmsAuth.MetricSessionIssued, Name: "hmsauth_session_issued_total", Help: "Session tokens issued."},
	{ID: hmsAuth.MetricAuthenticateSuccess, Name: "hmsauth_authenticate_success_total", Help: "Session tokens accepted."},
	{ID: hmsAuth.MetricAuthenticateFailure, Name: "hmsauth_authenticate_failure_total", Help: "Session tokens rejected."},
	{ID: hmsAuth.MetricAuthorizeDenied, Name: "hmsauth_authorize_denied_total", Help: "Permission checks that denied access."},
	{ID: hmsAuth.MetricLogout, Name: "hmsauth_logout_total", Help: "Logout operations."},
	{ID: hmsAuth.MetricEmailDispatchFailure, Name: "hmsauth_email_dispatch_failure_total", Help: "Account emails that could not be delivered."},
	{ID: hmsAuth.MetricCompensationFailure, Name: "hmsauth_compensation_failure_total", Help: "Rollback steps that failed and need manual remediation."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: hmsAuth.MetricAuthenticateLatency, Name: "hmsauth_authenticate_latency_seconds", Help: "Authenticate latency."},
}

// AuditDroppedName is the counter for audit events dropped on a full buffer.
const AuditDroppedName = "hmsauth_audit_dropped_total"

// HistogramUpperBounds are the bucket bounds in seconds, excluding +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters
// that cannot carry labels.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero filling when
// the histogram is disabled.
func NormalizeBuckets(raw []uint64) [hmsAuth.HistogramBucketCount]uint64 {
	var out [hmsAuth.HistogramBucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [hmsAuth.HistogramBucketCount]uint64) [hmsAuth.HistogramBucketCount]uint64 {
	var out [hmsAuth.HistogramBucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
