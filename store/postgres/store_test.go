package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/MrEthical07/hmsAuth/permission"
	"github.com/MrEthical07/hmsAuth/principal"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

func verify(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

var staffCols = []string{
	"id", "tenant_id", "employee_id", "name", "email", "phone", "department", "password_hash",
	"role", "is_active", "permissions", "created_by", "login_attempts", "lock_until", "last_login_at",
	"last_login_ip", "created_at", "updated_at",
}

func TestMigrate(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS tenants").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	verify(t, mock)
}

func TestCountTenants(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM tenants").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := s.CountTenants(context.Background())
	if err != nil || n != 7 {
		t.Fatalf("CountTenants = %d, %v", n, err)
	}
	verify(t, mock)
}

func TestCreateTenantMapsUniqueViolation(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO tenants").WillReturnError(&pq.Error{Code: "23505", Constraint: "tenants_license_number_key"})

	err := s.CreateTenant(context.Background(), &principal.Tenant{ID: "HOSP0001", Status: principal.TenantPending})
	if !errors.Is(err, principal.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if field, _ := principal.ConflictField(err); field != principal.FieldLicenseNumber {
		t.Fatalf("unexpected conflict field %q", field)
	}
	verify(t, mock)
}

func TestFindTenantConflict(t *testing.T) {
	s, mock := newMockStore(t)
	id := principal.TenantIdentity{Email: "a@h.io", RegistrationNumber: "R1", LicenseNumber: "L1", HospitalNumber: "H1"}

	mock.ExpectQuery("SELECT email, registration_number").
		WithArgs("a@h.io", "R1", "L1", "H1").
		WillReturnRows(sqlmock.NewRows([]string{"email", "registration_number", "license_number", "hospital_number"}).
			AddRow("other@h.io", "R1", "L9", "H9"))
	field, err := s.FindTenantConflict(context.Background(), id)
	if err != nil || field != principal.FieldRegistrationNumber {
		t.Fatalf("FindTenantConflict = %q, %v", field, err)
	}

	mock.ExpectQuery("SELECT email, registration_number").
		WillReturnRows(sqlmock.NewRows([]string{"email", "registration_number", "license_number", "hospital_number"}))
	field, err = s.FindTenantConflict(context.Background(), id)
	if err != nil || field != "" {
		t.Fatalf("expected no conflict, got %q, %v", field, err)
	}
	verify(t, mock)
}

func TestGetTenantNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("FROM tenants WHERE id").WithArgs("HOSP0404").WillReturnError(sql.ErrNoRows)

	if _, err := s.GetTenant(context.Background(), "HOSP0404"); !errors.Is(err, principal.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	verify(t, mock)
}

func TestActivateCommits(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tenants SET status").WithArgs("HOSP0001", "active", now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE administrators SET is_active=true").WithArgs("a1", "HOSP0001", now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := s.Activate(context.Background(), "HOSP0001", "a1", now); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	verify(t, mock)
}

func TestActivateRollsBackWhenAdminMissing(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tenants SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE administrators SET is_active=true").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	if err := s.Activate(context.Background(), "HOSP0001", "missing", now); !errors.Is(err, principal.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	verify(t, mock)
}

func TestGetStaffDecodesPermissions(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()
	lock := now.Add(time.Hour)

	mock.ExpectQuery("FROM staff WHERE id=\\$1 AND tenant_id=\\$2").
		WithArgs("s1", "HOSP0001").
		WillReturnRows(sqlmock.NewRows(staffCols).AddRow(
			"s1", "HOSP0001", "DR0001", "Dr Who", "dr@h.io", "", "cardio", "hash",
			"doctor", true, []byte(`[{"module":"patients","actions":["read","update"]}]`), "a1",
			5, lock, nil, "", now, now,
		))

	m, err := s.GetStaff(context.Background(), "HOSP0001", "s1")
	if err != nil {
		t.Fatalf("GetStaff: %v", err)
	}
	if !m.Permissions.Allows("patients", "update") || m.Permissions.Allows("billing", "read") {
		t.Fatalf("unexpected permissions %+v", m.Permissions)
	}
	if m.Login.Attempts != 5 || m.Login.LockUntil == nil || !m.Login.LockUntil.Equal(lock) {
		t.Fatalf("unexpected login state %+v", m.Login)
	}
	if m.Role != principal.RoleDoctor || m.EmployeeID != "DR0001" {
		t.Fatalf("unexpected staff %+v", m)
	}
	verify(t, mock)
}

func TestCreateStaffEmployeeConflict(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO staff").WillReturnError(&pq.Error{Code: "23505", Constraint: "staff_tenant_employee_key"})

	err := s.CreateStaff(context.Background(), &principal.StaffMember{
		ID: "s1", TenantID: "HOSP0001", EmployeeID: "DR0001", Role: principal.RoleDoctor,
		Permissions: permission.Set{{Module: "patients", Actions: []string{"read"}}},
	})
	if field, ok := principal.ConflictField(err); !ok || field != principal.FieldEmployeeID {
		t.Fatalf("expected employee id conflict, got %v", err)
	}
	verify(t, mock)
}

func TestUpdateStaffLoginNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("UPDATE staff SET login_attempts").WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateStaffLogin(context.Background(), "HOSP0002", "s1", principal.LoginState{})
	if !errors.Is(err, principal.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	verify(t, mock)
}

func TestMaxEmployeeSeqScopedByTenantAndPrefix(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT COALESCE\\(MAX\\(CAST\\(substring\\(employee_id FROM \\$3\\)").
		WithArgs("HOSP0001", "^NR[0-9]+$", 3).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(7))

	n, err := s.MaxEmployeeSeq(context.Background(), "HOSP0001", "NR")
	if err != nil || n != 7 {
		t.Fatalf("MaxEmployeeSeq = %d, %v", n, err)
	}
	verify(t, mock)
}

func TestDeleteStaffIdempotent(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM staff").WithArgs("s1", "HOSP0001").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.DeleteStaff(context.Background(), "HOSP0001", "s1"); err != nil {
		t.Fatalf("DeleteStaff: %v", err)
	}
	verify(t, mock)
}

func TestDriverFailureWrapped(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("FROM administrators WHERE email").WillReturnError(errors.New("connection reset"))

	if _, err := s.FindAdminByEmail(context.Background(), "a@h.io"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	verify(t, mock)
}
