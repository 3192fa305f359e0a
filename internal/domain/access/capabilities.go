package access

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

type Capability string

const (
	CapSubmit           Capability = "submit"
	CapApproveLevel1    Capability = "approve-level-1"
	CapApproveLevel2    Capability = "approve-level-2"
	CapApproveLevel3    Capability = "approve-level-3"
	CapOverride         Capability = "override"
	CapManageSettings   Capability = "manage-settings"
	CapManageLeaveTypes Capability = "manage-leave-types"
	CapManageDirectory  Capability = "manage-directory"
	CapViewReports      Capability = "view-reports"
	CapViewAudit        Capability = "view-audit"
	CapRunJobs          Capability = "run-jobs"
)

var AllCapabilities = []Capability{
	CapSubmit,
	CapApproveLevel1,
	CapApproveLevel2,
	CapApproveLevel3,
	CapOverride,
	CapManageSettings,
	CapManageLeaveTypes,
	CapManageDirectory,
	CapViewReports,
	CapViewAudit,
	CapRunJobs,
}

// DefaultCapabilities is the role -> capability table.
var DefaultCapabilities = map[string][]Capability{
	RoleStaff:          {CapSubmit},
	RoleDepartmentHead: {CapSubmit, CapApproveLevel1, CapViewReports},
	RoleDean:           {CapSubmit, CapApproveLevel2, CapViewReports},
	RoleDirector:       {CapSubmit, CapApproveLevel2, CapViewReports},
	RolePrincipal:      {CapSubmit, CapApproveLevel3, CapViewReports},
	RoleHRAdmin:        {CapManageLeaveTypes, CapManageDirectory, CapViewReports, CapViewAudit},
	RoleAdmin:          AllCapabilities,
}

const modelText = `[request_definition]
r = sub, act

[policy_definition]
p = sub, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.act == p.act
`

// Enforcer answers capability questions for roles.
type Enforcer struct {
	enforcer *casbin.Enforcer
}

func NewEnforcer(table map[string][]Capability) (*Enforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("capability model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("capability enforcer: %w", err)
	}

	if _, err := e.AddGroupingPolicy(RoleHeadOfDepartment, RoleDepartmentHead); err != nil {
		return nil, err
	}

	rules := make([][]string, 0, len(table)*3)
	for role, caps := range table {
		for _, capability := range caps {
			rules = append(rules, []string{NormalizeRole(role), string(capability)})
		}
	}
	if len(rules) > 0 {
		if _, err := e.AddPolicies(rules); err != nil {
			return nil, err
		}
	}
	return &Enforcer{enforcer: e}, nil
}

// MustDefault builds the enforcer for DefaultCapabilities and panics on failure.
func MustDefault() *Enforcer {
	e, err := NewEnforcer(DefaultCapabilities)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Enforcer) Can(role string, capability Capability) bool {
	if e == nil || role == "" {
		return false
	}
	ok, err := e.enforcer.Enforce(role, string(capability))
	return err == nil && ok
}

func (e *Enforcer) CanAny(role string, capabilities ...Capability) bool {
	for _, capability := range capabilities {
		if e.Can(role, capability) {
			return true
		}
	}
	return false
}

// Capabilities lists what a role may do, in AllCapabilities order.
func (e *Enforcer) Capabilities(role string) []Capability {
	var out []Capability
	for _, capability := range AllCapabilities {
		if e.Can(role, capability) {
			out = append(out, capability)
		}
	}
	return out
}
