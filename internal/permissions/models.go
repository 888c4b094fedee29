package permissions

import "time"

// RoleAdmin grants full access to everything the tenant owns, bypassing
// per-table and per-column records.
const RoleAdmin = "admin"

// Principal is the authenticated caller as supplied by the session
// layer. The engine trusts this input.
type Principal struct {
	UserID   string
	TenantID string
	Role     string
}

// IsAdmin reports whether the principal holds the tenant admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Capability is a gated action.
type Capability string

const (
	CapRead   Capability = "read"
	CapEdit   Capability = "edit"
	CapDelete Capability = "delete"
)

// TablePermission grants a user capabilities on one table. At most one
// record exists per (user, table).
type TablePermission struct {
	ID        string
	UserID    string
	TableID   string
	TenantID  string
	CanRead   bool
	CanEdit   bool
	CanDelete bool
	Created   time.Time
	Updated   time.Time
}

// ColumnPermission grants a user capabilities on one column. At most
// one record exists per (user, table, column). There is no column-level
// delete; only whole rows are deleted.
type ColumnPermission struct {
	ID       string
	UserID   string
	TableID  string
	ColumnID string
	TenantID string
	CanRead  bool
	CanEdit  bool
	Created  time.Time
	Updated  time.Time
}

func (p *TablePermission) allows(cap Capability) bool {
	switch cap {
	case CapRead:
		return p.CanRead
	case CapEdit:
		return p.CanEdit
	case CapDelete:
		return p.CanDelete
	default:
		return false
	}
}

func (p *ColumnPermission) allows(cap Capability) bool {
	switch cap {
	case CapRead:
		return p.CanRead
	case CapEdit:
		return p.CanEdit
	default:
		return false
	}
}
