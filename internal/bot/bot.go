// Package bot wires the Discord client: gateway connection, event handler
// registration, and the slash command surface over the stats and invite
// models.
package bot

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	disgoevents "github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"github.com/vexlio/doorkeep/internal/bot/events"
	"github.com/vexlio/doorkeep/internal/database"
	"github.com/vexlio/doorkeep/internal/discord"
	"github.com/vexlio/doorkeep/internal/setup"
	"github.com/vexlio/doorkeep/internal/tracker"
	"go.uber.org/zap"
)

// Bot owns the Discord client and the invite tracking services behind it.
type Bot struct {
	db      database.Client
	client  bot.Client
	adapter *discord.Adapter
	tracker *tracker.Tracker
	handler *events.Handler
	logger  *zap.Logger
}

// New builds the Discord client with the gateway intents and event
// listeners invite tracking needs, and wires the tracker service on top.
func New(app *setup.App) (*Bot, error) {
	b := &Bot{
		db:     app.DB,
		logger: app.Logger.Named("bot"),
	}

	client, err := disgo.New(app.Config.Bot.Discord.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMembers,
				gateway.IntentGuildInvites,
			),
		),
		bot.WithCacheConfigOpts(
			cache.WithCaches(
				cache.FlagGuilds,
				cache.FlagMembers,
				cache.FlagRoles,
			),
		),
		bot.WithEventListeners(&disgoevents.ListenerAdapter{
			OnGuildReady:       func(e *disgoevents.GuildReady) { b.handler.OnGuildReady(e) },
			OnGuildsReady:      func(e *disgoevents.GuildsReady) { b.handler.OnGuildsReady(e) },
			OnGuildJoin:        func(e *disgoevents.GuildJoin) { b.onGuildJoin(e) },
			OnGuildLeave:       func(e *disgoevents.GuildLeave) { b.handler.OnGuildLeave(e) },
			OnGuildMemberJoin:  func(e *disgoevents.GuildMemberJoin) { b.handler.OnGuildMemberJoin(e) },
			OnGuildMemberLeave: func(e *disgoevents.GuildMemberLeave) { b.handler.OnGuildMemberLeave(e) },
			OnGuildInviteCreate: func(e *disgoevents.InviteCreate) { b.handler.OnInviteCreate(e) },
			OnGuildInviteDelete: func(e *disgoevents.InviteDelete) { b.handler.OnInviteDelete(e) },

			OnApplicationCommandInteraction: b.handleApplicationCommandInteraction,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord client: %w", err)
	}

	b.client = client
	b.adapter = discord.NewAdapter(client, app.Logger)

	usageCache := tracker.NewUsageCache(b.adapter, app.Logger)
	b.tracker = tracker.New(
		usageCache,
		b.adapter,
		app.DB.Model().Invite(),
		app.DB.Model().Join(),
		app.DB.Service().Guild(),
		&app.Config.Bot.Invites,
		app.Logger,
	)
	b.handler = events.NewHandler(b.tracker, &app.Config.Bot.Invites, app.Logger)

	return b, nil
}

// Start registers the slash commands globally and opens the gateway.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Registering commands")

	_, err := b.client.Rest().SetGlobalCommands(b.client.ApplicationID(), commands)
	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	b.logger.Info("Starting bot")

	return b.client.OpenGateway(ctx)
}

// Close shuts down the gateway connection and drains the tracker's
// background work.
func (b *Bot) Close(ctx context.Context) {
	b.logger.Info("Closing bot")
	b.client.Close(ctx)
	b.tracker.Close()
}

// onGuildJoin registers the commands in the new guild before the usual
// cache warm; global registration can take up to an hour to propagate.
func (b *Bot) onGuildJoin(event *disgoevents.GuildJoin) {
	if err := b.registerGuildCommands(event.GuildID); err != nil {
		b.logger.Error("Failed to register guild commands",
			zap.Uint64("guildID", uint64(event.GuildID)),
			zap.Error(err))
	}

	b.handler.OnGuildJoin(event)
}

func (b *Bot) registerGuildCommands(guildID snowflake.ID) error {
	_, err := b.client.Rest().SetGuildCommands(b.client.ApplicationID(), guildID, commands)
	if err != nil {
		return fmt.Errorf("failed to register guild commands: %w", err)
	}

	return nil
}
