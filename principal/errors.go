package principal

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("principal: not found")
	// ErrConflict is matched by every uniqueness violation.
	ErrConflict = errors.New("principal: conflict")
)

// Field names reported by ConflictError.
const (
	FieldTenantID           = "tenant_id"
	FieldEmail              = "email"
	FieldRegistrationNumber = "registration_number"
	FieldLicenseNumber      = "license_number"
	FieldHospitalNumber     = "hospital_number"
	FieldEmployeeID         = "employee_id"
)

// ConflictError reports a uniqueness violation on Field.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("principal: conflict on %s", e.Field)
}

// Is reports whether target is ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ConflictField returns the field of a ConflictError inside err, if any.
func ConflictField(err error) (string, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Field, true
	}
	return "", false
}
