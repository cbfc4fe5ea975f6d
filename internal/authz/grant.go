package authz

import (
	"strings"

	"github.com/steelforge/erpauth/internal/models"
)

// GrantKind is the closed set of grant shapes a catalog row can take.
// Wildcards are stored as literal "*" values in the permission columns and
// classified exactly once, here; nothing else in the engine parses wildcard
// strings.
type GrantKind int

const (
	// GrantExact matches a single (module, action, resource) triple.
	GrantExact GrantKind = iota
	// GrantAnyResource matches any resource under a fixed module and action.
	GrantAnyResource
	// GrantAnyInModule matches any action and resource within a module.
	GrantAnyInModule
	// GrantAll matches everything. Superuser.
	GrantAll
)

// Grant is the evaluated form of a catalog permission row.
type Grant struct {
	Kind     GrantKind `json:"kind"`
	Module   string    `json:"module"`
	Action   string    `json:"action"`
	Resource string    `json:"resource"`
}

// Normalize canonicalises a permission triple: trimmed, upper-cased, with an
// empty resource kept as the empty string sentinel.
func Normalize(module, action, resource string) (string, string, string) {
	return normalizePart(module), normalizePart(action), normalizePart(resource)
}

func normalizePart(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

// Classify maps a catalog row onto its grant kind.
func Classify(p models.Permission) Grant {
	module, action, resource := Normalize(p.Module, p.Action, p.Resource)

	switch {
	case module == models.Wildcard:
		return Grant{Kind: GrantAll}
	case action == models.Wildcard:
		return Grant{Kind: GrantAnyInModule, Module: module}
	case resource == models.Wildcard:
		return Grant{Kind: GrantAnyResource, Module: module, Action: action}
	default:
		return Grant{Kind: GrantExact, Module: module, Action: action, Resource: resource}
	}
}

// Matches reports whether the grant covers the requested triple. The triple
// must already be normalized.
func (g Grant) Matches(module, action, resource string) bool {
	switch g.Kind {
	case GrantAll:
		return true
	case GrantAnyInModule:
		return g.Module == module
	case GrantAnyResource:
		return g.Module == module && g.Action == action
	case GrantExact:
		return g.Module == module && g.Action == action && g.Resource == resource
	default:
		return false
	}
}

// match scans grants in precedence order (exact, any-resource, any-in-module,
// global) and returns the first covering grant. Precedence does not change
// the outcome of an additive policy; it exists so logs and metrics attribute
// the decision to the most specific grant.
func match(grants []Grant, module, action, resource string) (Grant, bool) {
	for _, kind := range []GrantKind{GrantExact, GrantAnyResource, GrantAnyInModule, GrantAll} {
		for _, g := range grants {
			if g.Kind == kind && g.Matches(module, action, resource) {
				return g, true
			}
		}
	}
	return Grant{}, false
}
