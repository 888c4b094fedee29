package permissions

// Decision is the terminal state of a capability check.
type Decision int

const (
	Denied Decision = iota
	Granted
)

func (d Decision) String() string {
	if d == Granted {
		return "granted"
	}
	return "denied"
}

// resolveTable decides a table capability from the principal's role and
// the permission record, if any. Admins are granted unconditionally;
// absence of a record is a denial.
func resolveTable(p Principal, rec *TablePermission, cap Capability) Decision {
	if p.IsAdmin() {
		return Granted
	}
	if rec == nil {
		return Denied
	}
	if rec.allows(cap) {
		return Granted
	}
	return Denied
}

// resolveColumn decides a column capability. A missing ColumnPermission
// record denies; column access is never inherited from the table grant.
func resolveColumn(p Principal, rec *ColumnPermission, cap Capability) Decision {
	if p.IsAdmin() {
		return Granted
	}
	if rec == nil {
		return Denied
	}
	if rec.allows(cap) {
		return Granted
	}
	return Denied
}
