package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/hmsAuth/principal"
)

func seedTenant(t *testing.T, s *Store, id string) *principal.Tenant {
	t.Helper()
	tenant := &principal.Tenant{
		ID:                 id,
		Name:               "Clinic " + id,
		Email:              id + "@clinic.io",
		RegistrationNumber: "RN-" + id,
		LicenseNumber:      "LN-" + id,
		HospitalNumber:     "HN-" + id,
		Status:             principal.TenantPending,
	}
	if err := s.CreateTenant(context.Background(), tenant); err != nil {
		t.Fatalf("CreateTenant failed: %v", err)
	}
	return tenant
}

func TestTenantUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedTenant(t, s, "HOSP0001")

	field, err := s.FindTenantConflict(ctx, principal.TenantIdentity{LicenseNumber: "LN-HOSP0001"})
	if err != nil || field != principal.FieldLicenseNumber {
		t.Fatalf("expected license conflict, got %q %v", field, err)
	}

	dup := &principal.Tenant{ID: "HOSP0001", Email: "other@x.io"}
	if f, _ := principal.ConflictField(s.CreateTenant(ctx, dup)); f != principal.FieldTenantID {
		t.Fatalf("expected tenant id conflict, got %q", f)
	}

	dup = &principal.Tenant{ID: "HOSP0002", Email: "HOSP0001@clinic.io"}
	if f, _ := principal.ConflictField(s.CreateTenant(ctx, dup)); f != principal.FieldEmail {
		t.Fatalf("expected email conflict, got %q", f)
	}

	if n, _ := s.CountTenants(ctx); n != 1 {
		t.Fatalf("expected 1 tenant, got %d", n)
	}
}

func TestActivateAppliesBoth(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedTenant(t, s, "HOSP0001")
	if err := s.CreateAdmin(ctx, &principal.Administrator{ID: "a1", TenantID: "HOSP0001", Email: "a@x.io"}); err != nil {
		t.Fatalf("CreateAdmin failed: %v", err)
	}

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Activate(ctx, "HOSP0001", "a1", now); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	tenant, _ := s.GetTenant(ctx, "HOSP0001")
	admin, _ := s.GetAdmin(ctx, "a1")
	if tenant.Status != principal.TenantActive || !tenant.IsVerified || !tenant.VerifiedAt.Equal(now) {
		t.Fatalf("tenant not activated: %+v", tenant)
	}
	if !admin.IsActive || !admin.IsEmailVerified || !admin.EmailVerifiedAt.Equal(now) {
		t.Fatalf("admin not activated: %+v", admin)
	}

	if err := s.Activate(ctx, "HOSP0001", "missing", now); !errors.Is(err, principal.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStaffIsTenantScoped(t *testing.T) {
	s := New()
	ctx := context.Background()

	m := &principal.StaffMember{ID: "s1", TenantID: "HOSP0001", EmployeeID: "DR0001", Email: "d@x.io", Role: principal.RoleDoctor}
	if err := s.CreateStaff(ctx, m); err != nil {
		t.Fatalf("CreateStaff failed: %v", err)
	}

	if _, err := s.GetStaff(ctx, "HOSP0002", "s1"); !errors.Is(err, principal.ErrNotFound) {
		t.Fatalf("expected cross-tenant lookup to miss, got %v", err)
	}
	if err := s.DeleteStaff(ctx, "HOSP0002", "s1"); err != nil {
		t.Fatalf("DeleteStaff failed: %v", err)
	}
	if _, err := s.GetStaff(ctx, "HOSP0001", "s1"); err != nil {
		t.Fatalf("cross-tenant delete must not remove record: %v", err)
	}

	other := &principal.StaffMember{ID: "s2", TenantID: "HOSP0002", EmployeeID: "DR0001", Email: "d2@x.io", Role: principal.RoleDoctor}
	if err := s.CreateStaff(ctx, other); err != nil {
		t.Fatalf("same employee id in other tenant must be allowed: %v", err)
	}

	dup := &principal.StaffMember{ID: "s3", TenantID: "HOSP0001", EmployeeID: "DR0001", Email: "d3@x.io", Role: principal.RoleDoctor}
	if f, _ := principal.ConflictField(s.CreateStaff(ctx, dup)); f != principal.FieldEmployeeID {
		t.Fatalf("expected employee id conflict, got %q", f)
	}

	if n, _ := s.MaxEmployeeSeq(ctx, "HOSP0001", "DR"); n != 1 {
		t.Fatalf("expected highest DR sequence 1 in HOSP0001, got %d", n)
	}
}

func TestMaxEmployeeSeqIgnoresRole(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed := []*principal.StaffMember{
		{ID: "s1", TenantID: "HOSP0001", EmployeeID: "DR0002", Email: "a@x.io", Role: principal.RoleDoctor},
		{ID: "s2", TenantID: "HOSP0001", EmployeeID: "DR0007", Email: "b@x.io", Role: principal.RoleNurse},
		{ID: "s3", TenantID: "HOSP0001", EmployeeID: "NR0009", Email: "c@x.io", Role: principal.RoleNurse},
		{ID: "s4", TenantID: "HOSP0002", EmployeeID: "DR0012", Email: "d@x.io", Role: principal.RoleDoctor},
	}
	for _, m := range seed {
		if err := s.CreateStaff(ctx, m); err != nil {
			t.Fatalf("CreateStaff %s: %v", m.ID, err)
		}
	}

	if n, err := s.MaxEmployeeSeq(ctx, "HOSP0001", "DR"); err != nil || n != 7 {
		t.Fatalf("MaxEmployeeSeq DR = %d, %v", n, err)
	}
	if n, _ := s.MaxEmployeeSeq(ctx, "HOSP0001", "LT"); n != 0 {
		t.Fatalf("expected 0 for unused prefix, got %d", n)
	}
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.CreateAdmin(ctx, &principal.Administrator{ID: "a1", TenantID: "HOSP0001", Email: "a@x.io"}); err != nil {
		t.Fatalf("CreateAdmin failed: %v", err)
	}
	a, _ := s.GetAdmin(ctx, "a1")
	a.Email = "changed@x.io"

	again, _ := s.GetAdmin(ctx, "a1")
	if again.Email != "a@x.io" {
		t.Fatal("store record mutated through returned pointer")
	}
}
