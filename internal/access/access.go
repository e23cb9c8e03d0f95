// Package access decides which employee and department operations a caller may
// perform. Every role check in the service goes through Gate.
package access

import (
	"errors"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	pkgerrors "github.com/pkg/errors"

	"github.com/geocoder89/ems/internal/domain/employee"
)

var ErrForbidden = errors.New("forbidden")

// Caller is the authenticated principal behind a request.
type Caller struct {
	ID    int64
	Email string
	Role  employee.Role
}

func (c Caller) IsAdmin() bool {
	return c.Role == employee.RoleAdmin
}

func CallerFor(e employee.Employee) Caller {
	return Caller{ID: e.ID, Email: e.Email, Role: e.Role}
}

type Operation struct {
	Object string
	Action string
}

var (
	ListEmployees  = Operation{Object: "employee", Action: "list"}
	ViewEmployee   = Operation{Object: "employee", Action: "view"}
	CreateEmployee = Operation{Object: "employee", Action: "create"}
	UpdateEmployee = Operation{Object: "employee", Action: "update"}
	DeleteEmployee = Operation{Object: "employee", Action: "delete"}

	ListDepartments  = Operation{Object: "department", Action: "list"}
	ViewDepartment   = Operation{Object: "department", Action: "view"}
	CreateDepartment = Operation{Object: "department", Action: "create"}
	UpdateDepartment = Operation{Object: "department", Action: "update"}
	DeleteDepartment = Operation{Object: "department", Action: "delete"}

	ViewOrgChart = Operation{Object: "report", Action: "orgchart"}
)

const (
	scopeAny   = "any"
	scopeSelf  = "self"
	scopeOther = "other"
	scopeNone  = "none"
)

const modelText = `
[request_definition]
r = sub, obj, act, scope

[policy_definition]
p = sub, obj, act, scope

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act && (p.scope == "any" || r.scope == p.scope)
`

func defaultPolicy() [][]string {
	admin := string(employee.RoleAdmin)
	staff := string(employee.RoleEmployee)
	guest := string(employee.RoleGuest)

	rules := [][]string{
		{admin, "employee", "list", scopeAny},
		{admin, "employee", "view", scopeAny},
		{admin, "employee", "create", scopeAny},
		{admin, "employee", "update", scopeAny},
		// an admin cannot remove their own account
		{admin, "employee", "delete", scopeOther},
		{admin, "department", "create", scopeAny},
		{admin, "department", "update", scopeAny},
		{admin, "department", "delete", scopeAny},

		{staff, "employee", "list", scopeAny},
		{staff, "employee", "view", scopeSelf},
		{staff, "employee", "update", scopeSelf},

		{guest, "employee", "list", scopeAny},
		{guest, "employee", "view", scopeSelf},
	}

	for _, role := range []string{admin, staff, guest} {
		rules = append(rules,
			[]string{role, "department", "list", scopeAny},
			[]string{role, "department", "view", scopeAny},
			[]string{role, "report", "orgchart", scopeAny},
		)
	}

	return rules
}

type Gate struct {
	enforcer *casbin.Enforcer
}

func NewGate() (*Gate, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "access: parse model")
	}

	enf, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "access: create enforcer")
	}

	if _, err := enf.AddPolicies(defaultPolicy()); err != nil {
		return nil, pkgerrors.Wrap(err, "access: load policy")
	}

	return &Gate{enforcer: enf}, nil
}

// MustNewGate is NewGate for wiring code where the built-in policy failing to
// load is a programming error.
func MustNewGate() *Gate {
	g, err := NewGate()
	if err != nil {
		panic(err)
	}
	return g
}

// Authorize returns ErrForbidden unless the caller's role permits op on
// targetID. targetID is nil for collection operations and creation.
func (g *Gate) Authorize(caller Caller, op Operation, targetID *int64) error {
	ok, err := g.enforcer.Enforce(string(caller.Role), op.Object, op.Action, scopeOf(caller, targetID))
	if err != nil {
		return pkgerrors.Wrap(err, "access: enforce")
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// CanView reports whether the caller may see the employee with the given id.
// Callers that cannot see a record are told it does not exist.
func (g *Gate) CanView(caller Caller, id int64) bool {
	return g.Authorize(caller, ViewEmployee, &id) == nil
}

// Visible narrows a directory to the records the caller may see.
func (g *Gate) Visible(caller Caller, all []employee.Employee) []employee.Employee {
	out := make([]employee.Employee, 0, len(all))
	for _, e := range all {
		if g.CanView(caller, e.ID) {
			out = append(out, e)
		}
	}
	return out
}

// CheckSelfUpdate stops non-admins from changing their own role or active flag.
func (g *Gate) CheckSelfUpdate(caller Caller, current employee.Employee, role employee.Role, active *bool) error {
	if caller.IsAdmin() {
		return nil
	}
	if role != current.Role {
		return ErrForbidden
	}
	if active != nil && *active != current.Active {
		return ErrForbidden
	}
	return nil
}

func scopeOf(caller Caller, targetID *int64) string {
	if targetID == nil {
		return scopeNone
	}
	if *targetID == caller.ID {
		return scopeSelf
	}
	return scopeOther
}
