package auth

// Role is the fixed privilege set understood by the control plane.
type Role string

const (
	// RoleSuperAdmin is the platform-wide operator tier. It never carries a
	// tenant scope of its own.
	RoleSuperAdmin Role = "SUPER_ADMIN"
	// RoleOrgAdmin administers one tenant. Created only via provisioning or
	// impersonation; never through the user directory.
	RoleOrgAdmin Role = "ORG_ADMIN"
	// RoleReadWrite and RoleViewOnly are the two tiers below the tenant admin.
	RoleReadWrite Role = "READ_WRITE"
	RoleViewOnly  Role = "VIEW_ONLY"
	// RoleServiceSupport is the read-only support tier.
	RoleServiceSupport Role = "SERVICE_SUPPORT"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleOrgAdmin, RoleReadWrite, RoleViewOnly, RoleServiceSupport:
		return true
	}
	return false
}

// Assignable reports whether the user directory may assign r to a tenant
// user. ORG_ADMIN is excluded on purpose.
func (r Role) Assignable() bool {
	switch r {
	case RoleReadWrite, RoleViewOnly, RoleServiceSupport:
		return true
	}
	return false
}
