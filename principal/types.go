package principal

import (
	"time"

	"github.com/MrEthical07/hmsAuth/lockout"
	"github.com/MrEthical07/hmsAuth/permission"
)

// TenantStatus is the lifecycle state of a tenant.
type TenantStatus string

const (
	TenantPending   TenantStatus = "pending"
	TenantActive    TenantStatus = "active"
	TenantSuspended TenantStatus = "suspended"
	TenantInactive  TenantStatus = "inactive"
)

// Valid reports whether s is a known status.
func (s TenantStatus) Valid() bool {
	switch s {
	case TenantPending, TenantActive, TenantSuspended, TenantInactive:
		return true
	}
	return false
}

// Role is an administrator or staff role.
type Role string

const (
	RoleSuperAdmin    Role = "super_admin"
	RoleAdmin         Role = "admin"
	RoleDoctor        Role = "doctor"
	RoleNurse         Role = "nurse"
	RoleReceptionist  Role = "receptionist"
	RoleLabTechnician Role = "lab_technician"
	RolePharmacist    Role = "pharmacist"
	RoleAccountant    Role = "accountant"
)

var staffRolePrefixes = map[Role]string{
	RoleDoctor:        "DR",
	RoleNurse:         "NR",
	RoleReceptionist:  "RC",
	RoleLabTechnician: "LT",
	RolePharmacist:    "PH",
	RoleAccountant:    "AC",
	RoleAdmin:         "AD",
}

// StaffRoles lists the roles a StaffMember may hold.
var StaffRoles = []Role{
	RoleDoctor,
	RoleNurse,
	RoleReceptionist,
	RoleLabTechnician,
	RolePharmacist,
	RoleAccountant,
	RoleAdmin,
}

// IsStaffRole reports whether r may be assigned to a StaffMember.
func (r Role) IsStaffRole() bool {
	_, ok := staffRolePrefixes[r]
	return ok
}

// IsAdminRole reports whether r may be assigned to an Administrator.
func (r Role) IsAdminRole() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// EmployeePrefix returns the two-letter employee id prefix for a staff role.
func (r Role) EmployeePrefix() (string, bool) {
	p, ok := staffRolePrefixes[r]
	return p, ok
}

// LoginState carries lockout counters and the last successful login.
type LoginState struct {
	lockout.State
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	LastLoginIP string     `json:"lastLoginIp,omitempty"`
}

// Tenant is a hospital organization.
type Tenant struct {
	ID                 string       `json:"tenantId"`
	Name               string       `json:"name"`
	Email              string       `json:"email"`
	Phone              string       `json:"phone,omitempty"`
	Address            string       `json:"address,omitempty"`
	RegistrationNumber string       `json:"registrationNumber"`
	LicenseNumber      string       `json:"licenseNumber"`
	HospitalNumber     string       `json:"hospitalNumber"`
	Status             TenantStatus `json:"status"`
	IsVerified         bool         `json:"isVerified"`
	VerifiedAt         *time.Time   `json:"verifiedAt,omitempty"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
}

// IsOperational reports whether principals of the tenant may sign in.
func (t *Tenant) IsOperational() bool {
	return t != nil && t.Status == TenantActive
}

// Administrator is the privileged principal created at registration.
type Administrator struct {
	ID              string         `json:"id"`
	TenantID        string         `json:"tenantId"`
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	Phone           string         `json:"phone,omitempty"`
	PasswordHash    string         `json:"-"`
	Role            Role           `json:"role"`
	IsActive        bool           `json:"isActive"`
	IsEmailVerified bool           `json:"isEmailVerified"`
	EmailVerifiedAt *time.Time     `json:"emailVerifiedAt,omitempty"`
	Permissions     permission.Set `json:"permissions"`
	Login           LoginState     `json:"login"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// StaffMember is a tenant employee with module/action permissions.
type StaffMember struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenantId"`
	EmployeeID   string         `json:"employeeId"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone,omitempty"`
	Department   string         `json:"department,omitempty"`
	PasswordHash string         `json:"-"`
	Role         Role           `json:"role"`
	IsActive     bool           `json:"isActive"`
	Permissions  permission.Set `json:"permissions"`
	CreatedBy    string         `json:"createdBy"`
	Login        LoginState     `json:"login"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}
