package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/steelforge/erpauth/internal/cache"
	"github.com/steelforge/erpauth/internal/models"
	"github.com/steelforge/erpauth/pkg/metrics"
)

// Reason explains a decision. DENY reasons are part of the normal result
// type, never errors; only infrastructure failures surface as errors.
type Reason string

const (
	ReasonGranted              Reason = "GRANTED"
	ReasonNoRoleAssigned       Reason = "NO_ROLE_ASSIGNED"
	ReasonPermissionNotGranted Reason = "PERMISSION_NOT_GRANTED"
	ReasonUnknownPermission    Reason = "UNKNOWN_PERMISSION"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason"`
}

func allow() Decision        { return Decision{Allowed: true, Reason: ReasonGranted} }
func deny(r Reason) Decision { return Decision{Allowed: false, Reason: r} }

// Checker resolves a user's effective grants and evaluates permission
// requests against them. It is a pure read path over current assignment,
// role, and catalog state; the result never depends on role evaluation order.
type Checker struct {
	db    *gorm.DB
	cache *decisionCache
}

// CheckerOption customises a Checker.
type CheckerOption func(*Checker)

// WithDecisionCache caches resolved grant sets per (user, branch) in the
// supplied store. TTL bounds how long an entry may serve after the epoch key
// is lost; keep it short.
func WithDecisionCache(store cache.Store, ttl time.Duration) CheckerOption {
	return func(c *Checker) {
		if store != nil {
			c.cache = newDecisionCache(store, ttl)
		}
	}
}

// NewChecker constructs a permission checker backed by the provided database.
func NewChecker(db *gorm.DB, opts ...CheckerOption) (*Checker, error) {
	if db == nil {
		return nil, errors.New("authz: db is required")
	}
	c := &Checker{db: db}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Check decides whether the user may perform (module, action, resource)
// within the supplied branch context. An empty branchID means the global
// context: only globally-scoped assignments apply. A requested triple that
// is not in the catalog is a structured DENY, not an error.
func (c *Checker) Check(ctx context.Context, userID, branchID, module, action, resource string) (Decision, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Decision{}, errors.New("authz: user id is required")
	}
	branchID = strings.TrimSpace(branchID)
	module, action, resource = Normalize(module, action, resource)
	if module == "" || action == "" {
		return Decision{}, errors.New("authz: module and action are required")
	}

	known, err := c.catalogHas(ctx, module, action, resource)
	if err != nil {
		return Decision{}, err
	}
	if !known {
		return c.record(module, deny(ReasonUnknownPermission)), nil
	}

	set, err := c.grantsFor(ctx, userID, branchID)
	if err != nil {
		return Decision{}, err
	}
	if !set.HasRoles {
		return c.record(module, deny(ReasonNoRoleAssigned)), nil
	}

	if _, ok := match(set.Grants, module, action, resource); ok {
		return c.record(module, allow()), nil
	}
	return c.record(module, deny(ReasonPermissionNotGranted)), nil
}

// EffectiveGrants returns the union of grants the user holds in the given
// branch context, resolved the same way Check resolves them.
func (c *Checker) EffectiveGrants(ctx context.Context, userID, branchID string) ([]Grant, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("authz: user id is required")
	}

	set, err := c.grantsFor(ctx, userID, strings.TrimSpace(branchID))
	if err != nil {
		return nil, err
	}
	return set.Grants, nil
}

// Invalidate drops cached grant sets for the supplied users. Must be called
// after any assignment or role-permission mutation affecting them; until it
// runs, staleness can only hide a new grant, never revive a revoked one
// past the cache TTL.
func (c *Checker) Invalidate(ctx context.Context, userIDs ...string) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.invalidate(ensureContext(ctx), userIDs...)
}

// InvalidateRole drops cached grant sets for every user currently assigned
// the role.
func (c *Checker) InvalidateRole(ctx context.Context, roleID string) error {
	if c.cache == nil {
		return nil
	}
	ctx = ensureContext(ctx)

	var userIDs []string
	if err := c.db.WithContext(ctx).
		Model(&models.UserRoleAssignment{}).
		Distinct("user_id").
		Where("role_id = ?", roleID).
		Pluck("user_id", &userIDs).Error; err != nil {
		return fmt.Errorf("authz: resolve role holders: %w", err)
	}
	return c.cache.invalidate(ctx, userIDs...)
}

// grantSet carries resolved grants along with whether the user holds any
// role at all in the context, which distinguishes NO_ROLE_ASSIGNED from
// PERMISSION_NOT_GRANTED.
type grantSet struct {
	HasRoles bool    `json:"has_roles"`
	Grants   []Grant `json:"grants"`
}

func (c *Checker) grantsFor(ctx context.Context, userID, branchID string) (grantSet, error) {
	if c.cache != nil {
		if set, ok := c.cache.get(ctx, userID, branchID); ok {
			metrics.DecisionCacheLookups.WithLabelValues("hit").Inc()
			return set, nil
		}
		metrics.DecisionCacheLookups.WithLabelValues("miss").Inc()
	} else {
		metrics.DecisionCacheLookups.WithLabelValues("bypass").Inc()
	}

	set, err := c.loadGrants(ctx, userID, branchID)
	if err != nil {
		return grantSet{}, err
	}

	if c.cache != nil {
		c.cache.put(ctx, userID, branchID, set)
	}
	return set, nil
}

func (c *Checker) loadGrants(ctx context.Context, userID, branchID string) (grantSet, error) {
	query := c.db.WithContext(ctx).
		Preload("Role.Permissions").
		Where("user_id = ?", userID)

	// Global assignments always apply; branch-scoped ones only within the
	// requested branch. The global context does not inherit branch grants.
	if branchID == models.GlobalScope {
		query = query.Where("branch_id = ?", models.GlobalScope)
	} else {
		query = query.Where("branch_id IN ?", []string{models.GlobalScope, branchID})
	}

	var assignments []models.UserRoleAssignment
	if err := query.Find(&assignments).Error; err != nil {
		return grantSet{}, fmt.Errorf("authz: load assignments: %w", err)
	}

	set := grantSet{HasRoles: len(assignments) > 0}
	seen := make(map[Grant]struct{})
	for _, assignment := range assignments {
		for _, perm := range assignment.Role.Permissions {
			grant := Classify(perm)
			if _, dup := seen[grant]; dup {
				continue
			}
			seen[grant] = struct{}{}
			set.Grants = append(set.Grants, grant)
		}
	}
	return set, nil
}

func (c *Checker) catalogHas(ctx context.Context, module, action, resource string) (bool, error) {
	var count int64
	err := c.db.WithContext(ctx).
		Model(&models.Permission{}).
		Where("module = ? AND action = ? AND resource = ?", module, action, resource).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("authz: catalog lookup: %w", err)
	}
	return count > 0, nil
}

func (c *Checker) record(module string, d Decision) Decision {
	metrics.AuthzDecisions.WithLabelValues(module, string(d.Reason)).Inc()
	return d
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
