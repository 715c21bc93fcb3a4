// Package postgres implements principal.Store on PostgreSQL through sqlx and
// lib/pq.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/MrEthical07/hmsAuth/principal"
)

//go:embed schema.sql
var schema string

// ErrUnavailable wraps driver failures that are neither a missing row nor a
// uniqueness violation.
var ErrUnavailable = errors.New("postgres store unavailable")

const uniqueViolation = "23505"

var constraintFields = map[string]string{
	"tenants_pkey":                    principal.FieldTenantID,
	"tenants_email_key":               principal.FieldEmail,
	"tenants_registration_number_key": principal.FieldRegistrationNumber,
	"tenants_license_number_key":      principal.FieldLicenseNumber,
	"tenants_hospital_number_key":     principal.FieldHospitalNumber,
	"administrators_pkey":             "id",
	"administrators_email_key":        principal.FieldEmail,
	"staff_pkey":                      "id",
	"staff_email_key":                 principal.FieldEmail,
	"staff_tenant_employee_key":       principal.FieldEmployeeID,
}

// Store implements principal.Store.
type Store struct {
	db *sqlx.DB
}

var _ principal.Store = (*Store)(nil)

// New wraps db. The caller owns the connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects with the postgres driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return db, nil
}

// Migrate creates the tables and indexes when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: migrate: %v", ErrUnavailable, err)
	}
	return nil
}

// mapError translates driver errors into principal errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return principal.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		field, ok := constraintFields[pqErr.Constraint]
		if !ok {
			field = pqErr.Constraint
		}
		return &principal.ConflictError{Field: field}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func expectRow(res sql.Result, err error) error {
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return principal.ErrNotFound
	}
	return nil
}

const tenantColumns = `id, name, email, phone, address, registration_number, license_number,
	hospital_number, status, is_verified, verified_at, created_at, updated_at`

func (s *Store) CountTenants(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM tenants`); err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

func (s *Store) FindTenantConflict(ctx context.Context, id principal.TenantIdentity) (string, error) {
	const q = `SELECT email, registration_number, license_number, hospital_number
	  FROM tenants
	  WHERE email=$1 OR registration_number=$2 OR license_number=$3 OR hospital_number=$4
	  LIMIT 1`
	var row struct {
		Email              string `db:"email"`
		RegistrationNumber string `db:"registration_number"`
		LicenseNumber      string `db:"license_number"`
		HospitalNumber     string `db:"hospital_number"`
	}
	err := s.db.GetContext(ctx, &row, q, id.Email, id.RegistrationNumber, id.LicenseNumber, id.HospitalNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", mapError(err)
	}
	switch {
	case row.Email == id.Email:
		return principal.FieldEmail, nil
	case row.RegistrationNumber == id.RegistrationNumber:
		return principal.FieldRegistrationNumber, nil
	case row.LicenseNumber == id.LicenseNumber:
		return principal.FieldLicenseNumber, nil
	default:
		return principal.FieldHospitalNumber, nil
	}
}

func (s *Store) CreateTenant(ctx context.Context, t *principal.Tenant) error {
	const q = `INSERT INTO tenants (` + tenantColumns + `)
	  VALUES (:id, :name, :email, :phone, :address, :registration_number, :license_number,
	  :hospital_number, :status, :is_verified, :verified_at, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, tenantToRow(t))
	return mapError(err)
}

func (s *Store) GetTenant(ctx context.Context, tenantID string) (*principal.Tenant, error) {
	var row tenantRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+tenantColumns+` FROM tenants WHERE id=$1`, tenantID); err != nil {
		return nil, mapError(err)
	}
	return row.toTenant(), nil
}

func (s *Store) SetTenantStatus(ctx context.Context, tenantID string, status principal.TenantStatus, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tenants SET status=$2, updated_at=$3 WHERE id=$1`, tenantID, string(status), now)
	return expectRow(res, err)
}

func (s *Store) DeleteTenant(ctx context.Context, tenantID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tenants WHERE id=$1`, tenantID)
	return mapError(err)
}

const adminColumns = `id, tenant_id, name, email, phone, password_hash, role, is_active,
	is_email_verified, email_verified_at, permissions, login_attempts, lock_until,
	last_login_at, last_login_ip, created_at, updated_at`

func (s *Store) CreateAdmin(ctx context.Context, a *principal.Administrator) error {
	row, err := adminToRow(a)
	if err != nil {
		return err
	}
	const q = `INSERT INTO administrators (` + adminColumns + `)
	  VALUES (:id, :tenant_id, :name, :email, :phone, :password_hash, :role, :is_active,
	  :is_email_verified, :email_verified_at, :permissions, :login_attempts, :lock_until,
	  :last_login_at, :last_login_ip, :created_at, :updated_at)`
	_, err = s.db.NamedExecContext(ctx, q, row)
	return mapError(err)
}

func (s *Store) getAdmin(ctx context.Context, where string, arg any) (*principal.Administrator, error) {
	var row adminRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+adminColumns+` FROM administrators WHERE `+where, arg); err != nil {
		return nil, mapError(err)
	}
	return row.toAdmin()
}

func (s *Store) GetAdmin(ctx context.Context, adminID string) (*principal.Administrator, error) {
	return s.getAdmin(ctx, "id=$1", adminID)
}

func (s *Store) FindAdminByEmail(ctx context.Context, email string) (*principal.Administrator, error) {
	return s.getAdmin(ctx, "email=$1", email)
}

func (s *Store) UpdateAdminLogin(ctx context.Context, adminID string, state principal.LoginState) error {
	c := loginToColumns(state)
	res, err := s.db.ExecContext(ctx,
		`UPDATE administrators SET login_attempts=$2, lock_until=$3, last_login_at=$4, last_login_ip=$5 WHERE id=$1`,
		adminID, c.LoginAttempts, c.LockUntil, c.LastLoginAt, c.LastLoginIP,
	)
	return expectRow(res, err)
}

func (s *Store) UpdateAdminPassword(ctx context.Context, adminID, passwordHash string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE administrators SET password_hash=$2, updated_at=$3 WHERE id=$1`,
		adminID, passwordHash, now,
	)
	return expectRow(res, err)
}

func (s *Store) DeleteAdmin(ctx context.Context, adminID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM administrators WHERE id=$1`, adminID)
	return mapError(err)
}

// Activate updates the tenant and its administrator in one transaction.
func (s *Store) Activate(ctx context.Context, tenantID, adminID string, now time.Time) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE tenants SET status=$2, is_verified=true, verified_at=$3, updated_at=$3 WHERE id=$1`,
		tenantID, string(principal.TenantActive), now,
	)
	if err = expectRow(res, err); err != nil {
		return err
	}
	res, err = tx.ExecContext(ctx,
		`UPDATE administrators SET is_active=true, is_email_verified=true, email_verified_at=$3, updated_at=$3 WHERE id=$1 AND tenant_id=$2`,
		adminID, tenantID, now,
	)
	if err = expectRow(res, err); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

const staffColumns = `id, tenant_id, employee_id, name, email, phone, department, password_hash,
	role, is_active, permissions, created_by, login_attempts, lock_until, last_login_at,
	last_login_ip, created_at, updated_at`

func (s *Store) MaxEmployeeSeq(ctx context.Context, tenantID, prefix string) (int, error) {
	const q = `SELECT COALESCE(MAX(CAST(substring(employee_id FROM $3) AS integer)), 0)
	  FROM staff WHERE tenant_id=$1 AND employee_id ~ $2`
	var n int
	pattern := "^" + regexp.QuoteMeta(prefix) + "[0-9]+$"
	if err := s.db.GetContext(ctx, &n, q, tenantID, pattern, len(prefix)+1); err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

func (s *Store) CreateStaff(ctx context.Context, m *principal.StaffMember) error {
	row, err := staffToRow(m)
	if err != nil {
		return err
	}
	const q = `INSERT INTO staff (` + staffColumns + `)
	  VALUES (:id, :tenant_id, :employee_id, :name, :email, :phone, :department, :password_hash,
	  :role, :is_active, :permissions, :created_by, :login_attempts, :lock_until, :last_login_at,
	  :last_login_ip, :created_at, :updated_at)`
	_, err = s.db.NamedExecContext(ctx, q, row)
	return mapError(err)
}

func (s *Store) GetStaff(ctx context.Context, tenantID, staffID string) (*principal.StaffMember, error) {
	var row staffRow
	err := s.db.GetContext(ctx, &row, `SELECT `+staffColumns+` FROM staff WHERE id=$1 AND tenant_id=$2`, staffID, tenantID)
	if err != nil {
		return nil, mapError(err)
	}
	return row.toStaff()
}

func (s *Store) FindStaffByEmail(ctx context.Context, email string) (*principal.StaffMember, error) {
	var row staffRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+staffColumns+` FROM staff WHERE email=$1`, email); err != nil {
		return nil, mapError(err)
	}
	return row.toStaff()
}

func (s *Store) UpdateStaff(ctx context.Context, m *principal.StaffMember) error {
	perms, err := encodePermissions(m.Permissions)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE staff SET name=$3, phone=$4, department=$5, role=$6, is_active=$7, permissions=$8, updated_at=$9
		 WHERE id=$1 AND tenant_id=$2`,
		m.ID, m.TenantID, m.Name, m.Phone, m.Department, string(m.Role), m.IsActive, perms, m.UpdatedAt,
	)
	return expectRow(res, err)
}

func (s *Store) UpdateStaffLogin(ctx context.Context, tenantID, staffID string, state principal.LoginState) error {
	c := loginToColumns(state)
	res, err := s.db.ExecContext(ctx,
		`UPDATE staff SET login_attempts=$3, lock_until=$4, last_login_at=$5, last_login_ip=$6 WHERE id=$1 AND tenant_id=$2`,
		staffID, tenantID, c.LoginAttempts, c.LockUntil, c.LastLoginAt, c.LastLoginIP,
	)
	return expectRow(res, err)
}

func (s *Store) UpdateStaffPassword(ctx context.Context, tenantID, staffID, passwordHash string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE staff SET password_hash=$3, updated_at=$4 WHERE id=$1 AND tenant_id=$2`,
		staffID, tenantID, passwordHash, now,
	)
	return expectRow(res, err)
}

func (s *Store) DeleteStaff(ctx context.Context, tenantID, staffID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM staff WHERE id=$1 AND tenant_id=$2`, staffID, tenantID)
	return mapError(err)
}
