package tracker

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"go.uber.org/zap"
)

// InviteLister fetches the live invite usage counts for a guild.
// Implemented by the Discord adapter.
type InviteLister interface {
	// GuildInviteUses returns code -> use count for every invite currently
	// active in the guild. Requires the Manage Guild permission.
	GuildInviteUses(ctx context.Context, guildID uint64) (map[string]int, error)
}

// UsageCache holds the last-observed invite use counts per guild. Entries are
// rebuilt from upstream whenever missing, so losing one only costs accuracy
// until the next refresh, never correctness elsewhere.
//
// Gateway handlers run on separate goroutines, so all access goes through an
// RWMutex. Readers always get copies; the internal maps never escape.
type UsageCache struct {
	lister InviteLister
	logger *zap.Logger

	mu     sync.RWMutex
	guilds map[uint64]map[string]int
}

// NewUsageCache creates an empty usage cache backed by the given lister.
func NewUsageCache(lister InviteLister, logger *zap.Logger) *UsageCache {
	return &UsageCache{
		lister: lister,
		logger: logger.Named("usage_cache"),
		guilds: make(map[uint64]map[string]int),
	}
}

// Refresh fetches the guild's live invites and replaces its cache entry.
// On any fetch failure the existing entry is dropped so a stale snapshot
// can never be mistaken for current data. Returns a copy of the new entry.
func (c *UsageCache) Refresh(ctx context.Context, guildID uint64) (map[string]int, error) {
	usage, err := c.lister.GuildInviteUses(ctx, guildID)
	if err != nil {
		c.mu.Lock()
		delete(c.guilds, guildID)
		c.mu.Unlock()

		return nil, fmt.Errorf("failed to refresh invite usage: %w", err)
	}

	c.mu.Lock()
	c.guilds[guildID] = maps.Clone(usage)
	c.mu.Unlock()

	c.logger.Debug("Refreshed invite usage cache",
		zap.Uint64("guildID", guildID),
		zap.Int("invites", len(usage)))

	return maps.Clone(usage), nil
}

// Get returns a copy of the guild's cached usage mapping, or false if the
// guild has no entry.
func (c *UsageCache) Get(guildID uint64) (map[string]int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	usage, ok := c.guilds[guildID]
	if !ok {
		return nil, false
	}

	return maps.Clone(usage), true
}

// Ensure returns the guild's cached usage mapping, refreshing once if the
// guild has no entry yet.
func (c *UsageCache) Ensure(ctx context.Context, guildID uint64) (map[string]int, error) {
	if usage, ok := c.Get(guildID); ok {
		return usage, nil
	}

	return c.Refresh(ctx, guildID)
}

// Put replaces the guild's cache entry with a copy of the given mapping.
func (c *UsageCache) Put(guildID uint64, usage map[string]int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.guilds[guildID] = maps.Clone(usage)
}

// Invalidate drops the guild's cache entry. Called on permission loss and
// when the bot leaves the guild.
func (c *UsageCache) Invalidate(guildID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.guilds, guildID)
}

// SetUses records a single code's use count in the guild's entry. No-op when
// the guild has no entry; a full snapshot will be built on the next refresh.
func (c *UsageCache) SetUses(guildID uint64, code string, uses int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if usage, ok := c.guilds[guildID]; ok {
		usage[code] = uses
	}
}

// Forget removes a single code from the guild's entry, if present.
func (c *UsageCache) Forget(guildID uint64, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if usage, ok := c.guilds[guildID]; ok {
		delete(usage, code)
	}
}
