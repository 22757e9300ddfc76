// Package tracker implements invite join attribution: it reconciles live
// invite use counts against cached snapshots to decide which tracked invite
// brought each new member in, and records the outcome for later validation.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vexlio/doorkeep/internal/database/types"
	"github.com/vexlio/doorkeep/internal/discord"
	"github.com/vexlio/doorkeep/internal/setup/config"
	"github.com/vexlio/doorkeep/pkg/utils"
	"go.uber.org/zap"
)

// sweepTimeout bounds each background stale-invite delete.
const sweepTimeout = time.Minute

// InviteStore is the tracked-invite storage surface the tracker consumes.
// Satisfied by *models.InviteModel.
type InviteStore interface {
	GetGuildInvites(ctx context.Context, guildID uint64) ([]*types.TrackedInvite, error)
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
	DeleteByCode(ctx context.Context, guildID uint64, code string) (int64, error)
}

// JoinStore is the join-record storage surface the tracker consumes.
// Satisfied by *models.JoinModel.
type JoinStore interface {
	RecordJoin(ctx context.Context, join *types.MemberJoin) error
	RecordLeave(ctx context.Context, guildID, userID uint64, leftAt time.Time) (int64, error)
}

// GuildPurger removes all stored data for a guild.
// Satisfied by *service.GuildService.
type GuildPurger interface {
	Purge(ctx context.Context, guildID uint64) error
}

// Tracker applies attribution results to storage and keeps the usage cache
// reconciled as gateway events arrive. One instance serves all guilds.
type Tracker struct {
	cache   *UsageCache
	lister  InviteLister
	invites InviteStore
	joins   JoinStore
	purger  GuildPurger
	config  *config.Invites
	logger  *zap.Logger

	sweepCh   chan []int64
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a tracker and starts its background stale-invite sweeper.
func New(
	cache *UsageCache, lister InviteLister, invites InviteStore,
	joins JoinStore, purger GuildPurger, cfg *config.Invites, logger *zap.Logger,
) *Tracker {
	t := &Tracker{
		cache:   cache,
		lister:  lister,
		invites: invites,
		joins:   joins,
		purger:  purger,
		config:  cfg,
		logger:  logger.Named("tracker"),
		sweepCh: make(chan []int64, cfg.SweepQueueSize),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}

	go t.sweepLoop()

	return t
}

// Cache returns the usage cache shared with the event handlers.
func (t *Tracker) Cache() *UsageCache {
	return t.cache
}

// Close stops the sweeper after draining any queued work.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		close(t.closing)
	})

	<-t.done
}

// HandleJoin attributes a member join to a tracked invite and records it.
// Every early return below means the join goes unattributed; the engine
// never credits an inviter from partial data.
func (t *Tracker) HandleJoin(ctx context.Context, guildID, userID uint64) {
	// Uses counters are not immediately consistent after a join; give the
	// platform a moment to settle before trusting them.
	settle := time.Duration(t.config.SettleDelayMS) * time.Millisecond
	if utils.ContextSleep(ctx, settle) == utils.SleepCancelled {
		return
	}

	cached, err := t.cache.Ensure(ctx, guildID)
	if err != nil {
		t.logger.Debug("Skipping join attribution, usage cache unavailable",
			zap.Uint64("guildID", guildID),
			zap.Uint64("userID", userID),
			zap.Error(err))

		return
	}

	live, err := t.lister.GuildInviteUses(ctx, guildID)
	if err != nil {
		if errors.Is(err, discord.ErrMissingAccess) {
			t.cache.Invalidate(guildID)
			t.logger.Debug("Lost invite access, cleared usage cache",
				zap.Uint64("guildID", guildID))

			return
		}

		t.logger.Warn("Failed to fetch live invites for join",
			zap.Uint64("guildID", guildID),
			zap.Uint64("userID", userID),
			zap.Error(err))

		return
	}

	records, err := t.invites.GetGuildInvites(ctx, guildID)
	if err != nil {
		t.logger.Error("Failed to load tracked invites",
			zap.Uint64("guildID", guildID),
			zap.Error(err))

		return
	}

	result := Attribute(live, cached, records)

	if len(result.Ambiguous) > 0 {
		details := make([]string, len(result.Ambiguous))
		for i, c := range result.Ambiguous {
			details[i] = fmt.Sprintf("record=%d inviter=%d code=%s delta=%d",
				c.RecordID, c.InviterID, c.Code, c.Delta)
		}

		t.logger.Warn("Multiple invites increased for one join, crediting first",
			zap.Uint64("guildID", guildID),
			zap.Uint64("userID", userID),
			zap.Strings("candidates", details))
	}

	if result.Attribution != nil {
		t.recordJoin(ctx, guildID, userID, result.Attribution)
	} else {
		t.logger.Debug("Join not attributable to a tracked invite",
			zap.Uint64("guildID", guildID),
			zap.Uint64("userID", userID))
	}

	t.enqueueSweep(result.StaleIDs)
	t.cache.Put(guildID, live)
}

// HandleLeave closes any pending join record for the departing member.
func (t *Tracker) HandleLeave(ctx context.Context, guildID, userID uint64) {
	rows, err := t.joins.RecordLeave(ctx, guildID, userID, time.Now().UTC())
	if err != nil {
		t.logger.Error("Failed to record member leave",
			zap.Uint64("guildID", guildID),
			zap.Uint64("userID", userID),
			zap.Error(err))

		return
	}

	if rows > 0 {
		t.logger.Info("Marked pending join as left early",
			zap.Uint64("guildID", guildID),
			zap.Uint64("userID", userID))
	}
}

// HandleGuildAdd warms the usage cache for a newly joined guild.
func (t *Tracker) HandleGuildAdd(ctx context.Context, guildID uint64) {
	if _, err := t.cache.Refresh(ctx, guildID); err != nil {
		t.logger.Debug("Failed to warm usage cache for new guild",
			zap.Uint64("guildID", guildID),
			zap.Error(err))
	}
}

// HandleGuildRemove drops the guild's cache entry and, when configured,
// purges its stored data.
func (t *Tracker) HandleGuildRemove(ctx context.Context, guildID uint64) {
	t.cache.Invalidate(guildID)

	if !t.config.PurgeOnGuildDelete {
		return
	}

	if err := t.purger.Purge(ctx, guildID); err != nil {
		t.logger.Error("Failed to purge data for removed guild",
			zap.Uint64("guildID", guildID),
			zap.Error(err))
	}
}

// HandleInviteCreate seeds the new code into the guild's cache entry so the
// next join diffs against zero instead of hitting the missing-entry fallback.
func (t *Tracker) HandleInviteCreate(guildID uint64, code string, uses int) {
	t.cache.SetUses(guildID, code, uses)
}

// HandleInviteDelete drops the code from the cache and removes any tracked
// invite that pointed at it.
func (t *Tracker) HandleInviteDelete(ctx context.Context, guildID uint64, code string) {
	t.cache.Forget(guildID, code)

	rows, err := t.invites.DeleteByCode(ctx, guildID, code)
	if err != nil {
		t.logger.Error("Failed to delete tracked invite for revoked code",
			zap.Uint64("guildID", guildID),
			zap.String("code", code),
			zap.Error(err))

		return
	}

	if rows > 0 {
		t.logger.Info("Removed tracked invite for revoked code",
			zap.Uint64("guildID", guildID),
			zap.String("code", code))
	}
}

// recordJoin writes the attributed join, always resetting the record to
// pending with a fresh join time so a rejoin restarts the validation clock.
func (t *Tracker) recordJoin(ctx context.Context, guildID, userID uint64, attr *Attribution) {
	join := &types.MemberJoin{
		GuildID:    guildID,
		UserID:     userID,
		InviterID:  attr.InviterID,
		InviteCode: attr.Code,
		JoinedAt:   time.Now().UTC(),
	}

	if err := t.joins.RecordJoin(ctx, join); err != nil {
		t.logger.Error("Failed to record attributed join",
			zap.Uint64("guildID", guildID),
			zap.Uint64("userID", userID),
			zap.Uint64("inviterID", attr.InviterID),
			zap.Error(err))

		return
	}

	t.logger.Info("Attributed member join",
		zap.Uint64("guildID", guildID),
		zap.Uint64("userID", userID),
		zap.Uint64("inviterID", attr.InviterID),
		zap.String("code", attr.Code))
}

// enqueueSweep hands stale record ids to the background sweeper. The join
// path must never block here: a full queue drops the batch and the next
// join re-detects the same stale records.
func (t *Tracker) enqueueSweep(ids []int64) {
	if len(ids) == 0 {
		return
	}

	select {
	case t.sweepCh <- ids:
	default:
		t.logger.Warn("Stale invite sweep queue full, dropping batch",
			zap.Int("count", len(ids)))
	}
}

// sweepLoop drains the sweep queue until the tracker closes, finishing any
// queued batches before exiting.
func (t *Tracker) sweepLoop() {
	defer close(t.done)

	for {
		select {
		case ids := <-t.sweepCh:
			t.sweep(ids)
		case <-t.closing:
			for {
				select {
				case ids := <-t.sweepCh:
					t.sweep(ids)
				default:
					return
				}
			}
		}
	}
}

// sweep bulk-deletes stale tracked invites. Panics are contained so one bad
// batch cannot kill the sweeper goroutine.
func (t *Tracker) sweep(ids []int64) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Stale invite sweep panicked", zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	rows, err := t.invites.DeleteByIDs(ctx, ids)
	if err != nil {
		t.logger.Error("Failed to delete stale tracked invites",
			zap.Int("count", len(ids)),
			zap.Error(err))

		return
	}

	t.logger.Info("Deleted stale tracked invites",
		zap.Int("count", len(ids)),
		zap.Int64("rowsAffected", rows))
}
