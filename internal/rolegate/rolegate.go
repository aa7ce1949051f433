// Package rolegate holds the closed permission table consulted by every
// mutating workflow operation. The gate is pure: role × action in, bool out,
// unknown combinations fail closed.
package rolegate

// Role is one of the four actor roles known to the engine. Roles are issued
// upstream by the identity provider; the engine never authenticates.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleEVMStaff   Role = "EVM_STAFF"
	RoleSCStaff    Role = "SC_STAFF"
	RoleTechnician Role = "SC_TECHNICIAN"
)

// ParseRole validates a role string from a token claim.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleEVMStaff, RoleSCStaff, RoleTechnician:
		return Role(s), true
	}
	return "", false
}

// Action is a workflow action subject to the permission table.
type Action string

const (
	ActionSubmitClaim     Action = "submitClaim"
	ActionApproveClaim    Action = "approveClaim"
	ActionRejectClaim     Action = "rejectClaim"
	ActionMarkSelfService Action = "markSelfService"
	ActionAssignTask      Action = "assignTask"
	ActionStartTask       Action = "startTask"
	ActionCompleteTask    Action = "completeTask"
	ActionMarkDefective   Action = "markDefective"
)

// permissions is the authoritative table. Anything not listed is denied.
// Technician "own assignment only" checks are enforced by the task service
// on top of this table.
var permissions = map[Role]map[Action]bool{
	RoleSCStaff: {
		ActionSubmitClaim:     true,
		ActionMarkSelfService: true,
		ActionAssignTask:      true,
		ActionMarkDefective:   true,
	},
	RoleEVMStaff: {
		ActionApproveClaim: true,
		ActionRejectClaim:  true,
	},
	RoleTechnician: {
		ActionStartTask:    true,
		ActionCompleteTask: true,
	},
}

// CanPerform reports whether the role may perform the action. Unknown roles
// and unknown actions return false.
func CanPerform(role Role, action Action) bool {
	return permissions[role][action]
}
