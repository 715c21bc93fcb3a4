package principal

import (
	"context"
	"time"
)

// TenantIdentity holds the tenant fields that must be unique.
type TenantIdentity struct {
	Email              string
	RegistrationNumber string
	LicenseNumber      string
	HospitalNumber     string
}

// TenantStore persists tenants.
type TenantStore interface {
	CountTenants(ctx context.Context) (int, error)
	// FindTenantConflict returns the first identity field already taken, or
	// "" when none is.
	FindTenantConflict(ctx context.Context, id TenantIdentity) (string, error)
	CreateTenant(ctx context.Context, t *Tenant) error
	GetTenant(ctx context.Context, tenantID string) (*Tenant, error)
	SetTenantStatus(ctx context.Context, tenantID string, status TenantStatus, now time.Time) error
	DeleteTenant(ctx context.Context, tenantID string) error
}

// AdminStore persists administrators.
type AdminStore interface {
	CreateAdmin(ctx context.Context, a *Administrator) error
	GetAdmin(ctx context.Context, adminID string) (*Administrator, error)
	FindAdminByEmail(ctx context.Context, email string) (*Administrator, error)
	UpdateAdminLogin(ctx context.Context, adminID string, state LoginState) error
	UpdateAdminPassword(ctx context.Context, adminID, passwordHash string, now time.Time) error
	DeleteAdmin(ctx context.Context, adminID string) error
	// Activate marks the tenant active and verified and the administrator
	// active and email-verified in one step.
	Activate(ctx context.Context, tenantID, adminID string, now time.Time) error
}

// StaffStore persists staff members. Every call is tenant scoped.
type StaffStore interface {
	// MaxEmployeeSeq returns the highest numeric suffix among the tenant's
	// employee ids that start with prefix, whatever the holder's current
	// role, or 0 when there are none.
	MaxEmployeeSeq(ctx context.Context, tenantID, prefix string) (int, error)
	CreateStaff(ctx context.Context, s *StaffMember) error
	GetStaff(ctx context.Context, tenantID, staffID string) (*StaffMember, error)
	FindStaffByEmail(ctx context.Context, email string) (*StaffMember, error)
	// UpdateStaff writes profile fields, role, permissions and the active
	// flag of s, matched on s.TenantID and s.ID.
	UpdateStaff(ctx context.Context, s *StaffMember) error
	UpdateStaffLogin(ctx context.Context, tenantID, staffID string, state LoginState) error
	UpdateStaffPassword(ctx context.Context, tenantID, staffID, passwordHash string, now time.Time) error
	DeleteStaff(ctx context.Context, tenantID, staffID string) error
}

// Store is the full persistence contract used by the engine.
type Store interface {
	TenantStore
	AdminStore
	StaffStore
}
