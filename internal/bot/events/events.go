// Package events contains the gateway event handlers for the bot process.
// Handlers are thin: they pull IDs out of the disgo event and delegate to
// the tracker service, so the attribution logic stays testable without a
// live connection.
package events

import (
	"context"
	"sync"

	"github.com/disgoorg/disgo/events"
	"github.com/sourcegraph/conc/pool"
	"github.com/vexlio/doorkeep/internal/setup/config"
	"github.com/vexlio/doorkeep/internal/tracker"
	"go.uber.org/zap"
)

// Handler wires gateway events to the tracker service.
type Handler struct {
	tracker *tracker.Tracker
	config  *config.Invites
	logger  *zap.Logger

	// Guilds announced during the initial READY burst, warmed in one
	// bounded pass once the burst completes.
	mu            sync.Mutex
	pendingGuilds []uint64
}

// NewHandler creates the gateway event handler set.
func NewHandler(trk *tracker.Tracker, cfg *config.Invites, logger *zap.Logger) *Handler {
	return &Handler{
		tracker: trk,
		config:  cfg,
		logger:  logger.Named("events"),
	}
}

// OnGuildReady collects guilds announced while the gateway is connecting.
// The usage cache warm happens in OnGuildsReady once the burst is complete.
func (h *Handler) OnGuildReady(event *events.GuildReady) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.pendingGuilds = append(h.pendingGuilds, uint64(event.GuildID))
}

// OnGuildsReady warms the usage cache for every connected guild with a
// bounded worker pool. Guilds the bot lacks permission in simply stay
// uncached until the permission is granted.
func (h *Handler) OnGuildsReady(*events.GuildsReady) {
	h.mu.Lock()
	guilds := h.pendingGuilds
	h.pendingGuilds = nil
	h.mu.Unlock()

	if len(guilds) == 0 {
		return
	}

	h.logger.Info("Gateway ready, warming invite usage cache",
		zap.Int("guilds", len(guilds)))

	go func() {
		defer h.recoverPanic("guilds ready bootstrap")

		p := pool.New().WithMaxGoroutines(h.config.BootstrapConcurrency)

		for _, guildID := range guilds {
			p.Go(func() {
				h.tracker.HandleGuildAdd(context.Background(), guildID)
			})
		}

		p.Wait()
	}()
}

// OnGuildMemberJoin runs join attribution for new members. Bot accounts are
// ignored; they join through OAuth, never an invite link.
func (h *Handler) OnGuildMemberJoin(event *events.GuildMemberJoin) {
	if event.Member.User.Bot {
		return
	}

	guildID := uint64(event.GuildID)
	userID := uint64(event.Member.User.ID)

	go func() {
		defer h.recoverPanic("member join")

		h.tracker.HandleJoin(context.Background(), guildID, userID)
	}()
}

// OnGuildMemberLeave closes any pending join record for the member.
func (h *Handler) OnGuildMemberLeave(event *events.GuildMemberLeave) {
	if event.User.Bot {
		return
	}

	guildID := uint64(event.GuildID)
	userID := uint64(event.User.ID)

	go func() {
		defer h.recoverPanic("member leave")

		h.tracker.HandleLeave(context.Background(), guildID, userID)
	}()
}

// OnGuildJoin warms the usage cache for a guild the bot was just added to.
func (h *Handler) OnGuildJoin(event *events.GuildJoin) {
	guildID := uint64(event.GuildID)

	h.logger.Info("Joined guild",
		zap.Uint64("guildID", guildID),
		zap.String("name", event.Guild.Name))

	go func() {
		defer h.recoverPanic("guild join")

		h.tracker.HandleGuildAdd(context.Background(), guildID)
	}()
}

// OnGuildLeave drops the guild's cache entry and, when configured, purges
// its stored data.
func (h *Handler) OnGuildLeave(event *events.GuildLeave) {
	guildID := uint64(event.GuildID)

	h.logger.Info("Left guild", zap.Uint64("guildID", guildID))

	go func() {
		defer h.recoverPanic("guild leave")

		h.tracker.HandleGuildRemove(context.Background(), guildID)
	}()
}

// OnInviteCreate seeds the new code into the guild's cache entry. A freshly
// created invite always starts at zero uses.
func (h *Handler) OnInviteCreate(event *events.InviteCreate) {
	if event.GuildID == nil {
		return
	}

	h.tracker.HandleInviteCreate(uint64(*event.GuildID), event.Code, 0)
}

// OnInviteDelete removes the code from the cache and deletes any tracked
// invite that pointed at it.
func (h *Handler) OnInviteDelete(event *events.InviteDelete) {
	if event.GuildID == nil {
		return
	}

	guildID := uint64(*event.GuildID)
	code := event.Code

	go func() {
		defer h.recoverPanic("invite delete")

		h.tracker.HandleInviteDelete(context.Background(), guildID, code)
	}()
}

// recoverPanic keeps one bad event from taking down the gateway loop.
func (h *Handler) recoverPanic(event string) {
	if r := recover(); r != nil {
		h.logger.Error("Panic in event handler",
			zap.String("event", event),
			zap.Any("panic", r))
	}
}
