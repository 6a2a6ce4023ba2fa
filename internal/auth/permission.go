package auth

// Permission defines access levels for API tokens.
type Permission string

const (
	// PermissionRead allows reading reports, the island mode and the plugin index.
	PermissionRead Permission = "read"

	// PermissionWrite allows changing the island mode, uploading PBA files and signalling agents.
	PermissionWrite Permission = "write"

	// PermissionAdmin grants every permission.
	PermissionAdmin Permission = "admin"
)

// AllPermissions returns all defined permissions.
func AllPermissions() []Permission {
	return []Permission{
		PermissionRead,
		PermissionWrite,
		PermissionAdmin,
	}
}

// ParsePermission converts a string to a Permission.
// Returns empty string if the permission is invalid.
func ParsePermission(s string) Permission {
	switch s {
	case "read":
		return PermissionRead
	case "write":
		return PermissionWrite
	case "admin":
		return PermissionAdmin
	default:
		return ""
	}
}

// Grants reports whether holding perms satisfies required.
func Grants(perms []Permission, required Permission) bool {
	for _, p := range perms {
		// Admin permission grants all permissions.
		if p == PermissionAdmin || p == required {
			return true
		}
	}
	return false
}
