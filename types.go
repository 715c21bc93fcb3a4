package hmsAuth

import (
	"io"
	"time"

	internalaudit "github.com/MrEthical07/hmsAuth/internal/audit"
	"github.com/MrEthical07/hmsAuth/jwt"
	"github.com/MrEthical07/hmsAuth/permission"
	"github.com/MrEthical07/hmsAuth/principal"
	"go.uber.org/zap"
)

// Principal is the authenticated caller, either an administrator or a staff
// member. See principal.Principal.
type Principal = principal.Principal

type (
	Tenant        = principal.Tenant
	Administrator = principal.Administrator
	StaffMember   = principal.StaffMember
	Role          = principal.Role
)

// AuditEvent is one security-relevant record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the asynchronous dispatcher.
// Implementations must be safe for concurrent use.
type AuditSink = internalaudit.Sink

// NoOpSink drops every event.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink forwards events to a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink writes events as structured zap log entries.
type ZapSink = internalaudit.ZapSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewZapSink returns a sink logging through logger.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(logger)
}

// LoginResult is returned by the login and verification flows.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Principal Principal
	Tenant    *Tenant
}

// Session is a validated token resolved against live state.
type Session struct {
	Principal Principal
	Tenant    *Tenant
	Claims    *jwt.Claims
}

// RegisterTenantRequest carries the hospital and its first administrator.
type RegisterTenantRequest struct {
	HospitalName       string
	HospitalEmail      string
	HospitalPhone      string
	Address            string
	RegistrationNumber string
	LicenseNumber      string
	HospitalNumber     string

	AdminName     string
	AdminEmail    string
	AdminPhone    string
	AdminPassword string
}

// RegisterTenantResult describes the pending registration.
type RegisterTenantResult struct {
	TenantID              string
	AdminID               string
	VerificationEmail     string
	VerificationExpiresAt time.Time
}

// CreateStaffRequest describes a new staff member. When Permissions is
// empty the role template is applied.
type CreateStaffRequest struct {
	Name        string
	Email       string
	Phone       string
	Department  string
	Role        Role
	Permissions permission.Set
}

// UpdateStaffRequest holds the fields to change; nil fields are left as is.
type UpdateStaffRequest struct {
	Name        *string
	Phone       *string
	Department  *string
	Role        *Role
	Permissions *permission.Set
	IsActive    *bool
}
