package principal

import "github.com/MrEthical07/hmsAuth/permission"

// Kind tags which variant a Principal holds.
type Kind string

const (
	KindAdmin Kind = "admin"
	KindStaff Kind = "staff"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindAdmin || k == KindStaff
}

// Principal is the authenticated caller: exactly one of Admin or Staff is
// set, as indicated by Kind.
type Principal struct {
	Kind  Kind
	Admin *Administrator
	Staff *StaffMember
}

// FromAdmin wraps an administrator.
func FromAdmin(a *Administrator) Principal {
	return Principal{Kind: KindAdmin, Admin: a}
}

// FromStaff wraps a staff member.
func FromStaff(s *StaffMember) Principal {
	return Principal{Kind: KindStaff, Staff: s}
}

// Valid reports whether the variant matches Kind.
func (p Principal) Valid() bool {
	switch p.Kind {
	case KindAdmin:
		return p.Admin != nil
	case KindStaff:
		return p.Staff != nil
	}
	return false
}

// ID returns the principal id.
func (p Principal) ID() string {
	switch {
	case p.Kind == KindAdmin && p.Admin != nil:
		return p.Admin.ID
	case p.Kind == KindStaff && p.Staff != nil:
		return p.Staff.ID
	}
	return ""
}

// TenantID returns the owning tenant id.
func (p Principal) TenantID() string {
	switch {
	case p.Kind == KindAdmin && p.Admin != nil:
		return p.Admin.TenantID
	case p.Kind == KindStaff && p.Staff != nil:
		return p.Staff.TenantID
	}
	return ""
}

// Email returns the login email.
func (p Principal) Email() string {
	switch {
	case p.Kind == KindAdmin && p.Admin != nil:
		return p.Admin.Email
	case p.Kind == KindStaff && p.Staff != nil:
		return p.Staff.Email
	}
	return ""
}

// Role returns the principal's role.
func (p Principal) Role() Role {
	switch {
	case p.Kind == KindAdmin && p.Admin != nil:
		return p.Admin.Role
	case p.Kind == KindStaff && p.Staff != nil:
		return p.Staff.Role
	}
	return ""
}

// Permissions returns the principal's explicit permission set.
func (p Principal) Permissions() permission.Set {
	switch {
	case p.Kind == KindAdmin && p.Admin != nil:
		return p.Admin.Permissions
	case p.Kind == KindStaff && p.Staff != nil:
		return p.Staff.Permissions
	}
	return nil
}

// IsActive reports the account's active flag.
func (p Principal) IsActive() bool {
	switch {
	case p.Kind == KindAdmin && p.Admin != nil:
		return p.Admin.IsActive
	case p.Kind == KindStaff && p.Staff != nil:
		return p.Staff.IsActive
	}
	return false
}

// PasswordHash returns the stored digest.
func (p Principal) PasswordHash() string {
	switch {
	case p.Kind == KindAdmin && p.Admin != nil:
		return p.Admin.PasswordHash
	case p.Kind == KindStaff && p.Staff != nil:
		return p.Staff.PasswordHash
	}
	return ""
}

// IsSuperAdmin reports whether the principal is a platform super admin.
func (p Principal) IsSuperAdmin() bool {
	return p.Kind == KindAdmin && p.Admin != nil && p.Admin.Role == RoleSuperAdmin
}

// IsTenantAdmin reports whether the principal administers its tenant.
// Staff holding the admin role do not qualify; their access comes from
// their permission set.
func (p Principal) IsTenantAdmin() bool {
	return p.Kind == KindAdmin && p.Admin != nil
}

var _ permission.Subject = Principal{}
