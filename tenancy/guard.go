// Package tenancy enforces tenant/channel isolation per route.
package tenancy

import (
	errs "github.com/finport/go-oidc-gateway/internal/errors"
)

// Requirement is a route's declared tenancy constraint, attached at route
// registration time and read-only afterwards.
type Requirement int

const (
	// Unspecified routes carry no tenancy constraint.
	Unspecified Requirement = iota
	// Required routes must match the request's tenant context.
	Required
	// Disabled routes are explicitly non-tenant (e.g. a global admin route).
	Disabled
)

func (r Requirement) String() string {
	switch r {
	case Required:
		return "required"
	case Disabled:
		return "disabled"
	default:
		return "unspecified"
	}
}

// Identity is the tenant/channel pair resolved from the authenticated caller.
type Identity struct {
	Tenant  string
	Channel string
}

// RouteParams is the tenant/channel pair addressed by the request path.
type RouteParams struct {
	TenantID    string
	ChannelType string
}

// Guard is the authorization decision point for tenant scoping.
type Guard struct {
	multitenant bool
}

// NewGuard creates a guard for the deployment's tenancy mode.
func NewGuard(multitenant bool) *Guard {
	return &Guard{multitenant: multitenant}
}

// Multitenant reports the deployment mode the guard enforces.
func (g *Guard) Multitenant() bool { return g.multitenant }

// Authorize decides whether the identity may reach the route. nil means
// allow; ErrRouteNotFound means the route does not exist in this deployment
// mode (deliberately indistinguishable from a missing route, so route
// existence never leaks across modes); a *MisdirectedError means the request
// was addressed to the wrong tenant partition and may be retried against the
// right one.
//
// Requests without enforceable tenant context (no identity, no channel
// claim, or no tenant/channel route params) are allowed through; downstream
// business logic owns any further checks. This permissive fallthrough is a
// reviewed policy, not an accident.
func (g *Guard) Authorize(requirement Requirement, identity *Identity, params *RouteParams) error {
	if requirement != Unspecified && (requirement == Required) != g.multitenant {
		return errs.ErrRouteNotFound
	}

	if identity == nil || identity.Channel == "" ||
		params == nil || params.TenantID == "" || params.ChannelType == "" {
		return nil
	}

	if identity.Tenant != "" &&
		identity.Tenant == params.TenantID &&
		identity.Channel == params.ChannelType {
		return nil
	}

	// Echo only the request's own params, never the identity's tenant.
	return &errs.MisdirectedError{
		TenantID:    params.TenantID,
		ChannelType: params.ChannelType,
	}
}
