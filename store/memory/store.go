// Package memory is an in-process principal store used by tests, the load
// generator, and single-node development servers.
package memory

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/hmsAuth/principal"
)

// Store implements principal.Store over maps guarded by a mutex. Records
// are copied on the way in and out.
type Store struct {
	mu      sync.RWMutex
	tenants map[string]*principal.Tenant
	admins  map[string]*principal.Administrator
	staff   map[string]*principal.StaffMember
}

var _ principal.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		tenants: make(map[string]*principal.Tenant),
		admins:  make(map[string]*principal.Administrator),
		staff:   make(map[string]*principal.StaffMember),
	}
}

func (s *Store) CountTenants(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tenants), nil
}

func (s *Store) FindTenantConflict(ctx context.Context, id principal.TenantIdentity) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tenantConflictLocked(id, ""), nil
}

func (s *Store) tenantConflictLocked(id principal.TenantIdentity, skip string) string {
	for _, t := range s.tenants {
		if t.ID == skip {
			continue
		}
		switch {
		case t.Email == id.Email:
			return principal.FieldEmail
		case t.RegistrationNumber == id.RegistrationNumber:
			return principal.FieldRegistrationNumber
		case t.LicenseNumber == id.LicenseNumber:
			return principal.FieldLicenseNumber
		case t.HospitalNumber == id.HospitalNumber:
			return principal.FieldHospitalNumber
		}
	}
	return ""
}

func (s *Store) CreateTenant(ctx context.Context, t *principal.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tenants[t.ID]; exists {
		return &principal.ConflictError{Field: principal.FieldTenantID}
	}
	if field := s.tenantConflictLocked(identityOf(t), t.ID); field != "" {
		return &principal.ConflictError{Field: field}
	}
	cp := *t
	s.tenants[t.ID] = &cp
	return nil
}

func (s *Store) GetTenant(ctx context.Context, tenantID string) (*principal.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, principal.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Store) SetTenantStatus(ctx context.Context, tenantID string, status principal.TenantStatus, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return principal.ErrNotFound
	}
	t.Status = status
	t.UpdatedAt = now
	return nil
}

func (s *Store) DeleteTenant(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tenants, tenantID)
	return nil
}

func (s *Store) CreateAdmin(ctx context.Context, a *principal.Administrator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.admins[a.ID]; exists {
		return &principal.ConflictError{Field: "id"}
	}
	for _, existing := range s.admins {
		if existing.Email == a.Email {
			return &principal.ConflictError{Field: principal.FieldEmail}
		}
	}
	s.admins[a.ID] = cloneAdmin(a)
	return nil
}

func (s *Store) GetAdmin(ctx context.Context, adminID string) (*principal.Administrator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.admins[adminID]
	if !ok {
		return nil, principal.ErrNotFound
	}
	return cloneAdmin(a), nil
}

func (s *Store) FindAdminByEmail(ctx context.Context, email string) (*principal.Administrator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.admins {
		if a.Email == email {
			return cloneAdmin(a), nil
		}
	}
	return nil, principal.ErrNotFound
}

func (s *Store) UpdateAdminLogin(ctx context.Context, adminID string, state principal.LoginState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[adminID]
	if !ok {
		return principal.ErrNotFound
	}
	a.Login = cloneLogin(state)
	return nil
}

func (s *Store) UpdateAdminPassword(ctx context.Context, adminID, passwordHash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[adminID]
	if !ok {
		return principal.ErrNotFound
	}
	a.PasswordHash = passwordHash
	a.UpdatedAt = now
	return nil
}

func (s *Store) DeleteAdmin(ctx context.Context, adminID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.admins, adminID)
	return nil
}

func (s *Store) Activate(ctx context.Context, tenantID, adminID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[tenantID]
	if !ok {
		return principal.ErrNotFound
	}
	a, ok := s.admins[adminID]
	if !ok || a.TenantID != tenantID {
		return principal.ErrNotFound
	}

	verifiedAt := now
	t.Status = principal.TenantActive
	t.IsVerified = true
	t.VerifiedAt = &verifiedAt
	t.UpdatedAt = now

	a.IsActive = true
	a.IsEmailVerified = true
	a.EmailVerifiedAt = &verifiedAt
	a.UpdatedAt = now
	return nil
}

func (s *Store) MaxEmployeeSeq(ctx context.Context, tenantID, prefix string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	highest := 0
	for _, m := range s.staff {
		if m.TenantID != tenantID || !strings.HasPrefix(m.EmployeeID, prefix) {
			continue
		}
		n, err := strconv.Atoi(m.EmployeeID[len(prefix):])
		if err != nil || n < 0 {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest, nil
}

func (s *Store) CreateStaff(ctx context.Context, m *principal.StaffMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.staff[m.ID]; exists {
		return &principal.ConflictError{Field: "id"}
	}
	for _, existing := range s.staff {
		if existing.Email == m.Email {
			return &principal.ConflictError{Field: principal.FieldEmail}
		}
		if existing.TenantID == m.TenantID && existing.EmployeeID == m.EmployeeID {
			return &principal.ConflictError{Field: principal.FieldEmployeeID}
		}
	}
	s.staff[m.ID] = cloneStaff(m)
	return nil
}

func (s *Store) GetStaff(ctx context.Context, tenantID, staffID string) (*principal.StaffMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.staff[staffID]
	if !ok || m.TenantID != tenantID {
		return nil, principal.ErrNotFound
	}
	return cloneStaff(m), nil
}

func (s *Store) FindStaffByEmail(ctx context.Context, email string) (*principal.StaffMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.staff {
		if m.Email == email {
			return cloneStaff(m), nil
		}
	}
	return nil, principal.ErrNotFound
}

func (s *Store) UpdateStaff(ctx context.Context, m *principal.StaffMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.staff[m.ID]
	if !ok || existing.TenantID != m.TenantID {
		return principal.ErrNotFound
	}
	existing.Name = m.Name
	existing.Phone = m.Phone
	existing.Department = m.Department
	existing.Role = m.Role
	existing.IsActive = m.IsActive
	existing.Permissions = m.Permissions.Clone()
	existing.UpdatedAt = m.UpdatedAt
	return nil
}

func (s *Store) UpdateStaffLogin(ctx context.Context, tenantID, staffID string, state principal.LoginState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.staff[staffID]
	if !ok || m.TenantID != tenantID {
		return principal.ErrNotFound
	}
	m.Login = cloneLogin(state)
	return nil
}

func (s *Store) UpdateStaffPassword(ctx context.Context, tenantID, staffID, passwordHash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.staff[staffID]
	if !ok || m.TenantID != tenantID {
		return principal.ErrNotFound
	}
	m.PasswordHash = passwordHash
	m.UpdatedAt = now
	return nil
}

func (s *Store) DeleteStaff(ctx context.Context, tenantID, staffID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.staff[staffID]; ok && m.TenantID == tenantID {
		delete(s.staff, staffID)
	}
	return nil
}

func identityOf(t *principal.Tenant) principal.TenantIdentity {
	return principal.TenantIdentity{
		Email:              t.Email,
		RegistrationNumber: t.RegistrationNumber,
		LicenseNumber:      t.LicenseNumber,
		HospitalNumber:     t.HospitalNumber,
	}
}

func cloneAdmin(a *principal.Administrator) *principal.Administrator {
	cp := *a
	cp.Permissions = a.Permissions.Clone()
	cp.Login = cloneLogin(a.Login)
	return &cp
}

func cloneStaff(m *principal.StaffMember) *principal.StaffMember {
	cp := *m
	cp.Permissions = m.Permissions.Clone()
	cp.Login = cloneLogin(m.Login)
	return &cp
}

func cloneLogin(l principal.LoginState) principal.LoginState {
	out := l
	if l.LockUntil != nil {
		v := *l.LockUntil
		out.LockUntil = &v
	}
	if l.LastLoginAt != nil {
		v := *l.LastLoginAt
		out.LastLoginAt = &v
	}
	return out
}
