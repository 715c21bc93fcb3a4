package permission

import (
	"errors"
	"fmt"
)

// ErrForbidden is matched by every denial returned from [Evaluate].
var ErrForbidden = errors.New("forbidden")

// ForbiddenError names the (module, action) pair that was denied.
type ForbiddenError struct {
	Module string
	Action string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: missing permission %s:%s", e.Module, e.Action)
}

// Is reports whether target is ErrForbidden.
func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

// Subject is the view of a principal needed for a decision.
type Subject interface {
	IsSuperAdmin() bool
	IsTenantAdmin() bool
	TenantID() string
	Permissions() Set
}

// Evaluate decides whether subject may perform action on module inside
// tenantID. A nil error means allowed.
func Evaluate(subject Subject, tenantID, module, action string) error {
	if subject == nil {
		return &ForbiddenError{Module: module, Action: action}
	}
	if subject.IsSuperAdmin() {
		return nil
	}
	if subject.IsTenantAdmin() && tenantID != "" && subject.TenantID() == tenantID {
		return nil
	}
	if subject.TenantID() == tenantID && subject.Permissions().Allows(module, action) {
		return nil
	}
	return &ForbiddenError{Module: module, Action: action}
}
