package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/steelforge/erpauth/internal/cache"
	"github.com/steelforge/erpauth/internal/models"
	"github.com/steelforge/erpauth/pkg/logger"
)

const (
	defaultGrantTTL = 30 * time.Second
	// Epoch keys outlive grant entries by a wide margin so that an expired
	// epoch can never line up with a still-cached grant set.
	epochTTL = 24 * time.Hour
)

// decisionCache stores resolved grant sets per (user, branch) behind a
// cache.Store. Invalidation bumps a per-user epoch counter, orphaning every
// cached entry for that user at once; orphans age out via their own TTL.
// The bias is DENY-safe: a revoke becomes visible on the next lookup after
// invalidation, while a stale entry can only be absent, never fabricated.
type decisionCache struct {
	store cache.Store
	ttl   time.Duration
	log   *zap.Logger
}

func newDecisionCache(store cache.Store, ttl time.Duration) *decisionCache {
	if ttl <= 0 || ttl > epochTTL/2 {
		ttl = defaultGrantTTL
	}
	return &decisionCache{
		store: store,
		ttl:   ttl,
		log:   logger.WithComponent("authz.cache"),
	}
}

func (c *decisionCache) get(ctx context.Context, userID, branchID string) (grantSet, bool) {
	key, err := c.grantKey(ctx, userID, branchID)
	if err != nil {
		return grantSet{}, false
	}

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache read failed", zap.Error(err))
		return grantSet{}, false
	}
	if !ok {
		return grantSet{}, false
	}

	var set grantSet
	if err := json.Unmarshal(raw, &set); err != nil {
		_ = c.store.Delete(ctx, key)
		return grantSet{}, false
	}
	return set, true
}

func (c *decisionCache) put(ctx context.Context, userID, branchID string, set grantSet) {
	key, err := c.grantKey(ctx, userID, branchID)
	if err != nil {
		return
	}

	raw, err := json.Marshal(set)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		c.log.Warn("cache write failed", zap.Error(err))
	}
}

func (c *decisionCache) invalidate(ctx context.Context, userIDs ...string) error {
	for _, userID := range userIDs {
		if userID == "" {
			continue
		}
		if _, _, err := c.store.IncrementWithTTL(ctx, epochKey(userID), epochTTL); err != nil {
			return fmt.Errorf("authz: bump epoch for %s: %w", userID, err)
		}
	}
	return nil
}

// grantKey embeds the user's current epoch so a single counter bump
// invalidates every branch-scoped entry for that user.
func (c *decisionCache) grantKey(ctx context.Context, userID, branchID string) (string, error) {
	epoch, err := c.epoch(ctx, userID)
	if err != nil {
		return "", err
	}
	scope := branchID
	if scope == models.GlobalScope {
		scope = "global"
	}
	return fmt.Sprintf("authz:grants:%s:%d:%s", userID, epoch, scope), nil
}

func (c *decisionCache) epoch(ctx context.Context, userID string) (int64, error) {
	raw, ok, err := c.store.Get(ctx, epochKey(userID))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	epoch, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, nil
	}
	return epoch, nil
}

func epochKey(userID string) string {
	return "authz:epoch:" + userID
}
