package workflow

import (
	"sort"
	"strings"
)

// Canonical role names used in workflow configuration
const (
	RoleHeadOfDepartment = "HEAD_OF_DEPARTMENT"
	RoleAccountant       = "ACCOUNTANT"
	RoleIT               = "IT"
	RoleITManager        = "IT_MANAGER"
	RoleManager          = "MANAGER"
	RoleFinalApprover    = "FINAL_APPROVER"
	RoleDirector         = "DIRECTOR"
	RoleApprover         = "APPROVER"
	RoleAdmin            = "ADMIN"
	RoleRequester        = "REQUESTER"
)

// roleSynonyms maps a normalized role name to the one canonical role it names
var roleSynonyms = map[string]string{
	"HEAD_OF_DEPARTMENT": RoleHeadOfDepartment,
	"HEAD_OF_DEPT":       RoleHeadOfDepartment,
	"HEADOFDEPT":         RoleHeadOfDepartment,
	"HOD":                RoleHeadOfDepartment,
	"DEPARTMENT_HEAD":    RoleHeadOfDepartment,
	"ACCOUNTANT":         RoleAccountant,
	"ACCOUNT":            RoleAccountant,
	"ACCOUNTING":         RoleAccountant,
	"IT":                 RoleIT,
	"IT_STAFF":           RoleIT,
	"IT_SUPPORT":         RoleIT,
	"IT_MANAGER":         RoleITManager,
	"MANAGER":            RoleManager,
	"FINAL_APPROVER":     RoleFinalApprover,
	"DIRECTOR":           RoleDirector,
	"APPROVER":           RoleApprover,
	"ADMIN":              RoleAdmin,
	"ADMINISTRATOR":      RoleAdmin,
	"USER":               RoleRequester,
	"REQUESTER":          RoleRequester,
	"EMPLOYEE":           RoleRequester,
}

// roleGrants lists the other canonical roles a holder of the key may act as.
// Grants apply to actors only; a required role is never widened.
var roleGrants = map[string][]string{
	RoleITManager: {RoleIT, RoleHeadOfDepartment},
	RoleManager:   {RoleHeadOfDepartment},
	RoleDirector:  {RoleFinalApprover},
	RoleApprover:  {RoleFinalApprover},
}

// NormalizeRoleName upper-cases a role name and joins words with underscores
func NormalizeRoleName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	return strings.Join(strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '-' || r == '.' || r == '_' || r == '/'
	}), "_")
}

// CanonicalRoleNames returns the sorted set of canonical names an actor
// holding the role may act as. Unknown names canonicalize to themselves.
func CanonicalRoleNames(name string) []string {
	canonical := CanonicalRoleName(name)
	if canonical == "" {
		return nil
	}
	names := append([]string{canonical}, roleGrants[canonical]...)
	sort.Strings(names)
	return names
}

// CanonicalRoleName returns the canonical name of a configured role
func CanonicalRoleName(name string) string {
	normalized := NormalizeRoleName(name)
	if canonical, ok := roleSynonyms[normalized]; ok {
		return canonical
	}
	return normalized
}

// RoleMatches reports whether an actor holding actorRole may act as requiredRole
func RoleMatches(actorRole, requiredRole string) bool {
	required := CanonicalRoleName(requiredRole)
	if required == "" {
		return false
	}
	for _, name := range CanonicalRoleNames(actorRole) {
		if name == required {
			return true
		}
	}
	return false
}
