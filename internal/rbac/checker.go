package rbac

import (
	"context"
	"strings"
)

type Checker struct {
	RolePermissions map[string][]string
}

func NewChecker(rp map[string][]string) *Checker {
	if rp == nil {
		rp = RolePermissions
	}
	return &Checker{RolePermissions: rp}
}

func (c *Checker) Has(role, perm string) bool {
	perms, ok := c.RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if matchPerm(p, perm) {
			return true
		}
	}
	return false
}

// Allowed is true when any of roles (plus the implicit "user") grants perm.
func (c *Checker) Allowed(roles []string, perm string) bool {
	if c.Has("user", perm) {
		return true
	}
	for _, r := range roles {
		if c.Has(r, perm) {
			return true
		}
	}
	return false
}

func (c *Checker) AllowedAny(roles []string, perms ...string) bool {
	for _, p := range perms {
		if c.Allowed(roles, p) {
			return true
		}
	}
	return false
}

func matchPerm(pattern, perm string) bool {
	if pattern == "*" || pattern == perm {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(perm, strings.TrimSuffix(pattern, "*"))
	}
	return false
}

// ---- roles in context ----

type ctxKey struct{}

var ctxKeyRoles = ctxKey{}

// WithRoles marks ctx as authenticated with the given roles.
func WithRoles(ctx context.Context, roles []string) context.Context {
	if roles == nil {
		roles = []string{}
	}
	return context.WithValue(ctx, ctxKeyRoles, roles)
}

// RolesFromContext returns the roles and whether the caller authenticated.
func RolesFromContext(ctx context.Context) ([]string, bool) {
	v, ok := ctx.Value(ctxKeyRoles).([]string)
	return v, ok
}
