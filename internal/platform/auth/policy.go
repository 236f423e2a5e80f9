package auth

import "context"

// Principal is the authenticated caller.
type Principal struct {
	UserID     string
	Name       string
	Role       string
	Department string
}

// Scope is the set of departments a caller may read and modify. The zero
// Scope is unrestricted; use ScopeFor to derive one from a principal.
type Scope struct {
	restricted bool
	department string
}

// Unrestricted is the scope of administrators and internal callers such
// as the seed command.
var Unrestricted = Scope{}

// DepartmentScope limits access to a single department.
func DepartmentScope(department string) Scope {
	return Scope{restricted: true, department: department}
}

// ScopeFor derives the access scope of p. Admins see every department;
// doctors and nurses only their own. A non-admin without a department
// sees nothing.
func ScopeFor(p Principal) Scope {
	if p.Role == RoleAdmin {
		return Unrestricted
	}
	return DepartmentScope(p.Department)
}

// ScopeFromContext is ScopeFor applied to the principal on ctx.
func ScopeFromContext(ctx context.Context) Scope {
	return ScopeFor(PrincipalFromContext(ctx))
}

func (s Scope) Restricted() bool { return s.restricted }

// Department returns the department a restricted scope is bound to.
func (s Scope) Department() string { return s.department }

// Allows reports whether a record owned by department is visible.
func (s Scope) Allows(department string) bool {
	if !s.restricted {
		return true
	}
	return s.department != "" && s.department == department
}

// Narrow returns the department filter to apply to a list or aggregate
// query. Restricted scopes always filter by their own department regardless
// of what was requested. ok is false when the scope can see nothing, in
// which case the query should not run.
func (s Scope) Narrow(requested string) (department string, ok bool) {
	if !s.restricted {
		return requested, true
	}
	return s.department, s.department != ""
}
