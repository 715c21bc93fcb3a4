package postgres

import (
	"encoding/json"
	"time"

	"github.com/MrEthical07/hmsAuth/lockout"
	"github.com/MrEthical07/hmsAuth/permission"
	"github.com/MrEthical07/hmsAuth/principal"
)

type tenantRow struct {
	ID                 string     `db:"id"`
	Name               string     `db:"name"`
	Email              string     `db:"email"`
	Phone              string     `db:"phone"`
	Address            string     `db:"address"`
	RegistrationNumber string     `db:"registration_number"`
	LicenseNumber      string     `db:"license_number"`
	HospitalNumber     string     `db:"hospital_number"`
	Status             string     `db:"status"`
	IsVerified         bool       `db:"is_verified"`
	VerifiedAt         *time.Time `db:"verified_at"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

func tenantToRow(t *principal.Tenant) tenantRow {
	return tenantRow{
		ID:                 t.ID,
		Name:               t.Name,
		Email:              t.Email,
		Phone:              t.Phone,
		Address:            t.Address,
		RegistrationNumber: t.RegistrationNumber,
		LicenseNumber:      t.LicenseNumber,
		HospitalNumber:     t.HospitalNumber,
		Status:             string(t.Status),
		IsVerified:         t.IsVerified,
		VerifiedAt:         t.VerifiedAt,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

func (r tenantRow) toTenant() *principal.Tenant {
	return &principal.Tenant{
		ID:                 r.ID,
		Name:               r.Name,
		Email:              r.Email,
		Phone:              r.Phone,
		Address:            r.Address,
		RegistrationNumber: r.RegistrationNumber,
		LicenseNumber:      r.LicenseNumber,
		HospitalNumber:     r.HospitalNumber,
		Status:             principal.TenantStatus(r.Status),
		IsVerified:         r.IsVerified,
		VerifiedAt:         r.VerifiedAt,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

// loginColumns is embedded by the principal rows.
type loginColumns struct {
	LoginAttempts int        `db:"login_attempts"`
	LockUntil     *time.Time `db:"lock_until"`
	LastLoginAt   *time.Time `db:"last_login_at"`
	LastLoginIP   string     `db:"last_login_ip"`
}

func loginToColumns(l principal.LoginState) loginColumns {
	return loginColumns{
		LoginAttempts: l.Attempts,
		LockUntil:     l.LockUntil,
		LastLoginAt:   l.LastLoginAt,
		LastLoginIP:   l.LastLoginIP,
	}
}

func (c loginColumns) toLogin() principal.LoginState {
	return principal.LoginState{
		State:       lockout.State{Attempts: c.LoginAttempts, LockUntil: c.LockUntil},
		LastLoginAt: c.LastLoginAt,
		LastLoginIP: c.LastLoginIP,
	}
}

type adminRow struct {
	ID              string     `db:"id"`
	TenantID        string     `db:"tenant_id"`
	Name            string     `db:"name"`
	Email           string     `db:"email"`
	Phone           string     `db:"phone"`
	PasswordHash    string     `db:"password_hash"`
	Role            string     `db:"role"`
	IsActive        bool       `db:"is_active"`
	IsEmailVerified bool       `db:"is_email_verified"`
	EmailVerifiedAt *time.Time `db:"email_verified_at"`
	Permissions     []byte     `db:"permissions"`
	loginColumns
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func adminToRow(a *principal.Administrator) (adminRow, error) {
	perms, err := encodePermissions(a.Permissions)
	if err != nil {
		return adminRow{}, err
	}
	return adminRow{
		ID:              a.ID,
		TenantID:        a.TenantID,
		Name:            a.Name,
		Email:           a.Email,
		Phone:           a.Phone,
		PasswordHash:    a.PasswordHash,
		Role:            string(a.Role),
		IsActive:        a.IsActive,
		IsEmailVerified: a.IsEmailVerified,
		EmailVerifiedAt: a.EmailVerifiedAt,
		Permissions:     perms,
		loginColumns:    loginToColumns(a.Login),
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}, nil
}

func (r adminRow) toAdmin() (*principal.Administrator, error) {
	perms, err := decodePermissions(r.Permissions)
	if err != nil {
		return nil, err
	}
	return &principal.Administrator{
		ID:              r.ID,
		TenantID:        r.TenantID,
		Name:            r.Name,
		Email:           r.Email,
		Phone:           r.Phone,
		PasswordHash:    r.PasswordHash,
		Role:            principal.Role(r.Role),
		IsActive:        r.IsActive,
		IsEmailVerified: r.IsEmailVerified,
		EmailVerifiedAt: r.EmailVerifiedAt,
		Permissions:     perms,
		Login:           r.loginColumns.toLogin(),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}, nil
}

type staffRow struct {
	ID           string `db:"id"`
	TenantID     string `db:"tenant_id"`
	EmployeeID   string `db:"employee_id"`
	Name         string `db:"name"`
	Email        string `db:"email"`
	Phone        string `db:"phone"`
	Department   string `db:"department"`
	PasswordHash string `db:"password_hash"`
	Role         string `db:"role"`
	IsActive     bool   `db:"is_active"`
	Permissions  []byte `db:"permissions"`
	CreatedBy    string `db:"created_by"`
	loginColumns
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func staffToRow(m *principal.StaffMember) (staffRow, error) {
	perms, err := encodePermissions(m.Permissions)
	if err != nil {
		return staffRow{}, err
	}
	return staffRow{
		ID:           m.ID,
		TenantID:     m.TenantID,
		EmployeeID:   m.EmployeeID,
		Name:         m.Name,
		Email:        m.Email,
		Phone:        m.Phone,
		Department:   m.Department,
		PasswordHash: m.PasswordHash,
		Role:         string(m.Role),
		IsActive:     m.IsActive,
		Permissions:  perms,
		CreatedBy:    m.CreatedBy,
		loginColumns: loginToColumns(m.Login),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}, nil
}

func (r staffRow) toStaff() (*principal.StaffMember, error) {
	perms, err := decodePermissions(r.Permissions)
	if err != nil {
		return nil, err
	}
	return &principal.StaffMember{
		ID:           r.ID,
		TenantID:     r.TenantID,
		EmployeeID:   r.EmployeeID,
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone,
		Department:   r.Department,
		PasswordHash: r.PasswordHash,
		Role:         principal.Role(r.Role),
		IsActive:     r.IsActive,
		Permissions:  perms,
		CreatedBy:    r.CreatedBy,
		Login:        r.loginColumns.toLogin(),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}, nil
}

func encodePermissions(set permission.Set) ([]byte, error) {
	if set == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(set)
}

func decodePermissions(raw []byte) (permission.Set, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var set permission.Set
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, err
	}
	return set, nil
}
