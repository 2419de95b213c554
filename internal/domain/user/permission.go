package user

type Permission string

const (
	// Own time records
	PermissionTimetrackViewOwn Permission = "timetrack.view_own"
	PermissionTimetrackRecord  Permission = "timetrack.record"
	PermissionTimetrackDispute Permission = "timetrack.dispute"

	// Team time records
	PermissionTimetrackViewAll Permission = "timetrack.view_all"
	PermissionTimetrackCorrect Permission = "timetrack.correct"
	PermissionTimetrackApprove Permission = "timetrack.approve"

	// Mass reconciliation
	PermissionTimetrackMassCorrect Permission = "timetrack.mass_correct"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleOwner: {
		// Owner has all permissions
		PermissionTimetrackViewOwn,
		PermissionTimetrackRecord,
		PermissionTimetrackDispute,
		PermissionTimetrackViewAll,
		PermissionTimetrackCorrect,
		PermissionTimetrackApprove,
		PermissionTimetrackMassCorrect,
	},
	RoleManager: {
		PermissionTimetrackViewOwn,
		PermissionTimetrackRecord,
		PermissionTimetrackDispute,
		PermissionTimetrackViewAll,
		PermissionTimetrackCorrect,
		PermissionTimetrackApprove,
		PermissionTimetrackMassCorrect,
	},
	RoleEmployee: {
		// Employee works on their own records only
		PermissionTimetrackViewOwn,
		PermissionTimetrackRecord,
		PermissionTimetrackDispute,
	},
	RolePending: {
		// Pending role has no permissions
	},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}

	return false
}
