// Package authz gates workflow actions by organization role. The policy is
// static configuration loaded once at process start into an immutable casbin
// enforcer; there is no runtime mutation and any (role, action) pair not
// explicitly granted is denied.
package authz

import (
	"fmt"
	"sort"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	"github.com/exportflowlabs/exportflow/internal/catalog"
)

// Role is the authorization domain of a caller. Actions are gated by role,
// not by individual identity; ownership checks stay in the engine.
type Role string

const (
	RoleExporter       Role = "exporter"
	RoleECX            Role = "ecx"
	RoleECTA           Role = "ecta"
	RoleCommercialBank Role = "commercial_bank"
	RoleNationalBank   Role = "national_bank"
	RoleCustoms        Role = "customs"
	RoleShippingLine   Role = "shipping_line"
	// RoleAdmin has read-only compliance access and no workflow grants.
	RoleAdmin Role = "admin"
)

var allRoles = map[Role]struct{}{
	RoleExporter: {}, RoleECX: {}, RoleECTA: {}, RoleCommercialBank: {},
	RoleNationalBank: {}, RoleCustoms: {}, RoleShippingLine: {}, RoleAdmin: {},
}

// ParseRole converts a raw string to a Role, rejecting unknown values.
func ParseRole(raw string) (Role, error) {
	r := Role(raw)
	if _, ok := allRoles[r]; !ok {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return r, nil
}

const modelText = `
[request_definition]
r = sub, act

[policy_definition]
p = sub, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.act == p.act
`

// grants is the full role-action matrix. One organization, one block.
var grants = map[Role][]catalog.Action{
	RoleExporter: {
		catalog.ActionSubmit,
		catalog.ActionResubmit,
		catalog.ActionCancel,
		catalog.ActionComplete,
	},
	RoleECX: {
		catalog.ActionApproveLot,
		catalog.ActionRejectLot,
	},
	RoleECTA: {
		catalog.ActionApproveLicense,
		catalog.ActionRejectLicense,
		catalog.ActionApproveQuality,
		catalog.ActionRejectQuality,
		catalog.ActionApproveOrigin,
		catalog.ActionRejectOrigin,
		catalog.ActionApproveContract,
		catalog.ActionRejectContract,
	},
	RoleCommercialBank: {
		catalog.ActionVerifyDocuments,
		catalog.ActionRejectDocuments,
		catalog.ActionSubmitFX,
		catalog.ActionConfirmPayment,
	},
	RoleNationalBank: {
		catalog.ActionApproveFX,
		catalog.ActionRejectFX,
		catalog.ActionConfirmRepatriation,
	},
	RoleCustoms: {
		catalog.ActionClearCustoms,
		catalog.ActionRejectCustoms,
		catalog.ActionClearImportCustoms,
		catalog.ActionRejectImportCustoms,
	},
	RoleShippingLine: {
		catalog.ActionScheduleShipment,
		catalog.ActionRejectShipment,
		catalog.ActionMarkShipped,
		catalog.ActionMarkArrived,
		catalog.ActionConfirmDelivery,
	},
}

// Resolver answers "may this role perform this action" and "which actions are
// available to this role in this status". Safe for concurrent use; read-only
// after construction.
type Resolver struct {
	enforcer *casbin.Enforcer
}

func NewResolver() (*Resolver, error) {
	m, err := casbinmodel.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("authz model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("authz enforcer: %w", err)
	}

	rules := make([][]string, 0, 32)
	for role, actions := range grants {
		for _, a := range actions {
			rules = append(rules, []string{string(role), string(a)})
		}
	}
	if _, err := e.AddPolicies(rules); err != nil {
		return nil, fmt.Errorf("authz policy load: %w", err)
	}
	return &Resolver{enforcer: e}, nil
}

// Can reports whether the role is granted the action at all. Default-deny.
func (r *Resolver) Can(role Role, action catalog.Action) bool {
	ok, err := r.enforcer.Enforce(string(role), string(action))
	if err != nil {
		return false
	}
	return ok
}

// Allowed returns the set of actions the role may apply to an export in the
// given status: the intersection of the role's grants with the catalog's
// outgoing edges. Empty for any pair not explicitly authorized. The result is
// sorted so adapters and UIs see a stable order.
func (r *Resolver) Allowed(role Role, status catalog.Status) []catalog.Action {
	out := make([]catalog.Action, 0, 4)
	for _, a := range catalog.ActionsFrom(status) {
		if r.Can(role, a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
