package auth

import "strings"

// Role is a user's capability level within a family account.
type Role string

// Roles in ascending order of capability. A viewer reads records and
// dashboards, an operator mutates records, an admin may additionally run
// the family-wide destructive operations.
const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// NormalizeRole parses a role claim. Matching is case-insensitive; unknown
// roles are rejected rather than defaulted.
func NormalizeRole(value string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleViewer:
		return RoleViewer, true
	case RoleOperator:
		return RoleOperator, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// RoleAtLeast reports whether role covers the required capability level.
func RoleAtLeast(role, required Role) bool {
	return roleRank(role) >= roleRank(required)
}

func roleRank(role Role) int {
	switch role {
	case RoleViewer:
		return 1
	case RoleOperator:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}
