package auth

// Permission constants define the available permissions in the system.
// These are used for role-based access control (RBAC) to restrict access
// to specific resources and actions.
const (
	// PermSyncRead allows viewing the Status API's read-only sync reports.
	PermSyncRead = "sync.read"

	// PermAdminSettings allows managing application-wide settings.
	PermAdminSettings = "admin.settings"
	// PermAdminUsers allows managing user accounts.
	PermAdminUsers = "admin.users"
	// PermAdminRoles allows managing roles and their permissions.
	PermAdminRoles = "admin.roles"
	// PermAdminGroups allows managing user groups.
	PermAdminGroups = "admin.groups"
	// PermAdminGroupMappings allows managing mappings between external groups and internal roles.
	PermAdminGroupMappings = "admin.group.mappings"
	// PermAdminProviders allows managing AuthenticationProvider bindings.
	PermAdminProviders = "admin.providers"
)
