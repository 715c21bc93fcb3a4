package hmsAuth

import (
	"net/mail"
	"strings"
)

const maxPasswordBytes = 72

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func (e *Engine) checkPassword(field, pw string) error {
	if len(pw) < e.config.Password.MinLength {
		return invalid(field, "too short")
	}
	if len(pw) > maxPasswordBytes {
		return invalid(field, "too long")
	}
	return nil
}

func (r *RegisterTenantRequest) normalize() {
	r.HospitalName = strings.TrimSpace(r.HospitalName)
	r.HospitalEmail = normalizeEmail(r.HospitalEmail)
	r.HospitalPhone = strings.TrimSpace(r.HospitalPhone)
	r.Address = strings.TrimSpace(r.Address)
	r.RegistrationNumber = strings.TrimSpace(r.RegistrationNumber)
	r.LicenseNumber = strings.TrimSpace(r.LicenseNumber)
	r.HospitalNumber = strings.TrimSpace(r.HospitalNumber)
	r.AdminName = strings.TrimSpace(r.AdminName)
	r.AdminEmail = normalizeEmail(r.AdminEmail)
	r.AdminPhone = strings.TrimSpace(r.AdminPhone)
}

func (e *Engine) validateRegistration(r RegisterTenantRequest) error {
	switch {
	case r.HospitalName == "":
		return invalid("hospital_name", "required")
	case !validEmail(r.HospitalEmail):
		return invalid("hospital_email", "invalid email")
	case r.RegistrationNumber == "":
		return invalid("registration_number", "required")
	case r.LicenseNumber == "":
		return invalid("license_number", "required")
	case r.HospitalNumber == "":
		return invalid("hospital_number", "required")
	case r.AdminName == "":
		return invalid("admin_name", "required")
	case !validEmail(r.AdminEmail):
		return invalid("admin_email", "invalid email")
	}
	return e.checkPassword("admin_password", r.AdminPassword)
}

func (r *CreateStaffRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = normalizeEmail(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Department = strings.TrimSpace(r.Department)
}
