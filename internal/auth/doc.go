// Package auth provides authentication and authorization for operators of
// the Status API. It is independent of directory reconciliation (see
// internal/reconcile and internal/idp): the engine never authenticates
// through this package, it only ever reads already-normalized SyncUser
// records from the IdP Admin Client's service-account credentials.
//
// This package implements a Role-Based Access Control (RBAC) system with
// two operator-facing authentication sources:
//   - Local database authentication with Argon2id password hashing
//   - LDAP/Active Directory authentication with group synchronization
//
// # Authentication Providers
//
// LocalProvider handles traditional username/password authentication against
// the local database with secure Argon2id password hashing.
//
// LDAPProvider connects to LDAP or Active Directory servers, authenticates
// operators, and synchronizes their group memberships for permission mapping.
//
// # Authorization System
//
// The authorization system uses a flexible permission model:
//   - Users can have a direct role assignment
//   - Users can belong to multiple groups (local or LDAP)
//   - Groups are mapped to roles
//   - Roles contain a set of permissions
//   - Permissions are checked for resource access, e.g. sync.read on the
//     Status API
//
// # Permission Checking
//
// The Service type provides methods for checking user permissions:
//   - HasPermission: Check if user has a specific permission
//   - HasAnyPermission: Check if user has at least one permission from a list
//   - HasAllPermissions: Check if user has all permissions from a list
//   - GetUserPermissions: Retrieve all permissions for a user
//
// # Middleware
//
// Fiber middleware functions are provided for route protection:
//   - RequirePermission: Protect routes requiring a specific permission
//   - RequireAnyPermission: Protect routes requiring any of several permissions
//   - RequireAllPermissions: Protect routes requiring all of several permissions
//
// # Group Synchronization
//
// For LDAP authentication, operator groups are automatically synchronized:
//   - External groups are created or retrieved in the local database
//   - User group memberships are updated to match external groups
//   - Group-to-role mappings determine effective permissions
//   - Old group memberships are removed on each sync
//
// Example usage:
//
//	authService := auth.NewService(db)
//	hasPermission, err := authService.HasPermission(userID, auth.PermSyncRead)
//
//	app.Get("/admin/sync/status",
//	    auth.RequirePermission(authService, auth.PermSyncRead),
//	    handler,
//	)
package auth
