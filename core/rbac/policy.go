package rbac

import (
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

type Permission string

const (
	PermReadingsView     Permission = "readings.view"
	PermReadingsIngest   Permission = "readings.ingest"
	PermReadingsManual   Permission = "readings.manual_entry"
	PermIncidentsView    Permission = "incidents.view"
	PermIncidentsComment Permission = "incidents.comment"
	PermIncidentsAck     Permission = "incidents.acknowledge"
	PermIncidentsEditOp1 Permission = "incidents.edit_op1"
	PermIncidentsEditOp2 Permission = "incidents.edit_op2"
	PermIncidentsEditOp3 Permission = "incidents.edit_op3"
	PermThresholdsManage Permission = "thresholds.manage"
	PermArchiveView      Permission = "archive.view"
)

type Role struct {
	Name        string
	Permissions []Permission
}

const policyModel = `
[request_definition]
r = sub, perm

[policy_definition]
p = sub, perm

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && (r.perm == p.perm || p.perm == "*")
`

// Policy answers "may any of these roles perform perm". It is immutable after
// construction; route guards share a single instance.
type Policy struct {
	enforcer *casbin.Enforcer
}

func NewPolicy(roles []Role) *Policy {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		panic(err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		panic(err)
	}
	for _, role := range roles {
		for _, perm := range role.Permissions {
			_, _ = e.AddPolicy(role.Name, string(perm))
		}
	}
	return &Policy{enforcer: e}
}

func (p *Policy) Allowed(roles []string, perm Permission) bool {
	if p == nil || p.enforcer == nil {
		return false
	}
	for _, role := range roles {
		ok, err := p.enforcer.Enforce(role, string(perm))
		if err == nil && ok {
			return true
		}
	}
	return false
}

// DefaultRoles is the closed role set of the monitoring station. Operator N
// may edit only corrective operation N; admin may edit all three; visitors
// observe only.
func DefaultRoles() []Role {
	common := []Permission{PermReadingsView, PermIncidentsView, PermArchiveView}
	operator := append([]Permission{PermIncidentsComment, PermIncidentsAck, PermReadingsManual}, common...)
	return []Role{
		{Name: RoleAdmin, Permissions: []Permission{"*"}},
		{Name: RoleOperator1, Permissions: append([]Permission{PermIncidentsEditOp1}, operator...)},
		{Name: RoleOperator2, Permissions: append([]Permission{PermIncidentsEditOp2}, operator...)},
		{Name: RoleOperator3, Permissions: append([]Permission{PermIncidentsEditOp3}, operator...)},
		{Name: RoleVisitor, Permissions: common},
	}
}
