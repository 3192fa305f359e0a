package access

import "strings"

const (
	RoleStaff            = "staff"
	RoleDepartmentHead   = "department_head"
	RoleHeadOfDepartment = "head_of_department"
	RoleDean             = "dean"
	RolePrincipal        = "principal"
	RoleDirector         = "director"
	RoleHRAdmin          = "hr_admin"
	RoleAdmin            = "admin"
)

// Roles lists the canonical role names. head_of_department is accepted on
// input and normalized to department_head.
var Roles = []string{
	RoleStaff,
	RoleDepartmentHead,
	RoleDean,
	RolePrincipal,
	RoleDirector,
	RoleHRAdmin,
	RoleAdmin,
}

func NormalizeRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == RoleHeadOfDepartment {
		return RoleDepartmentHead
	}
	return role
}

func ValidRole(role string) bool {
	role = NormalizeRole(role)
	for _, candidate := range Roles {
		if candidate == role {
			return true
		}
	}
	return false
}

// MaxApprovalLevels bounds the configurable approval chain.
const MaxApprovalLevels = 3

// LevelCapability returns the capability that authorizes acting on an approval level.
func LevelCapability(level int) (Capability, bool) {
	switch level {
	case 1:
		return CapApproveLevel1, true
	case 2:
		return CapApproveLevel2, true
	case 3:
		return CapApproveLevel3, true
	}
	return "", false
}

// LevelRoles returns the roles designated to act on an approval level,
// in the order an addressee is picked.
func LevelRoles(level int) []string {
	switch level {
	case 1:
		return []string{RoleDepartmentHead}
	case 2:
		return []string{RoleDean, RoleDirector}
	case 3:
		return []string{RolePrincipal}
	}
	return nil
}
