package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/vexlio/doorkeep/internal/database/types"
	platform "github.com/vexlio/doorkeep/internal/discord"
	"go.uber.org/zap"
)

const (
	inviteLinkCommandName  = "invite-link"
	invitesCommandName     = "invites"
	leaderboardCommandName = "leaderboard"

	// leaderboardSize is how many inviters the leaderboard embed shows.
	leaderboardSize = 10
	// leaderboardChartDays is the trailing window of the activity chart.
	leaderboardChartDays = 14

	embedColor = 0x5865F2

	genericErrorMessage = "Something went wrong while handling the command. Please try again later."
)

var commands = []discord.ApplicationCommandCreate{
	discord.SlashCommandCreate{
		Name:        inviteLinkCommandName,
		Description: "Get your personal invite link for this server",
	},
	discord.SlashCommandCreate{
		Name:        invitesCommandName,
		Description: "Show invite stats for you or another member",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionUser{
				Name:        "member",
				Description: "Member to look up",
				Required:    false,
			},
		},
	},
	discord.SlashCommandCreate{
		Name:        leaderboardCommandName,
		Description: "Show the server's invite leaderboard",
	},
}

// handleApplicationCommandInteraction defers the response, dispatches to the
// matching handler, and replies with a generic message on failure. Details
// only ever go to the log.
func (b *Bot) handleApplicationCommandInteraction(event *events.ApplicationCommandInteractionCreate) {
	go func() {
		name := event.SlashCommandInteractionData().CommandName()

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in command handler",
					zap.String("command", name),
					zap.Any("panic", r))
				b.respondText(event, genericErrorMessage)
			}

			b.logger.Debug("Command handled",
				zap.String("command", name),
				zap.Duration("duration", time.Since(start)))
		}()

		if err := event.DeferCreateMessage(true); err != nil {
			b.logger.Error("Failed to defer command response", zap.Error(err))
			return
		}

		if event.GuildID() == nil {
			b.respondText(event, "This command only works inside a server.")
			return
		}

		ctx := context.Background()

		var (
			update discord.MessageUpdate
			err    error
		)

		switch name {
		case inviteLinkCommandName:
			update, err = b.handleInviteLink(ctx, event)
		case invitesCommandName:
			update, err = b.handleInvites(ctx, event)
		case leaderboardCommandName:
			update, err = b.handleLeaderboard(ctx, event)
		default:
			b.respondText(event, "This command is not available.")
			return
		}

		if err != nil {
			b.logger.Error("Command failed",
				zap.String("command", name),
				zap.Uint64("guildID", uint64(*event.GuildID())),
				zap.Error(err))

			if errors.Is(err, platform.ErrMissingAccess) {
				b.respondText(event, "I am missing the permissions I need for that. Ask an admin to check my role.")
				return
			}

			b.respondText(event, genericErrorMessage)

			return
		}

		b.respond(event, update)
	}()
}

// handleInviteLink gets or creates the caller's tracked invite. An existing
// record whose code vanished upstream gets a replacement code in place.
func (b *Bot) handleInviteLink(ctx context.Context, event *events.ApplicationCommandInteractionCreate) (discord.MessageUpdate, error) {
	guildID := uint64(*event.GuildID())
	userID := uint64(event.User().ID)
	now := time.Now().UTC()

	invite, err := b.db.Model().Invite().GetByOwner(ctx, guildID, userID)

	switch {
	case err == nil:
		exists, checkErr := b.adapter.InviteExists(ctx, invite.Code)
		if checkErr != nil {
			return discord.MessageUpdate{}, fmt.Errorf("failed to verify invite: %w", checkErr)
		}

		if exists {
			return inviteLinkResponse(invite.Code), nil
		}

		// Code died upstream; mint a replacement on the same record.
		code, mintErr := b.adapter.CreateGuildInvite(ctx, uint64(event.Channel().ID()))
		if mintErr != nil {
			return discord.MessageUpdate{}, fmt.Errorf("failed to replace invite: %w", mintErr)
		}

		invite.Code = code
		invite.UpdatedAt = now

		if err := b.db.Model().Invite().Upsert(ctx, invite); err != nil {
			return discord.MessageUpdate{}, err
		}

		return inviteLinkResponse(code), nil

	case errors.Is(err, types.ErrNoTrackedInvite):
		code, mintErr := b.adapter.CreateGuildInvite(ctx, uint64(event.Channel().ID()))
		if mintErr != nil {
			return discord.MessageUpdate{}, fmt.Errorf("failed to create invite: %w", mintErr)
		}

		invite := &types.TrackedInvite{
			OwnerID:   userID,
			GuildID:   guildID,
			Code:      code,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := b.db.Model().Invite().Upsert(ctx, invite); err != nil {
			return discord.MessageUpdate{}, err
		}

		return inviteLinkResponse(code), nil

	default:
		return discord.MessageUpdate{}, err
	}
}

// handleInvites shows the per-inviter counts and rank for the caller or the
// named member.
func (b *Bot) handleInvites(ctx context.Context, event *events.ApplicationCommandInteractionCreate) (discord.MessageUpdate, error) {
	guildID := uint64(*event.GuildID())

	target := event.User()
	if user, ok := event.SlashCommandInteractionData().OptUser("member"); ok {
		target = user
	}

	stats, rank, err := b.db.Service().Stats().GetInviterOverview(ctx, guildID, uint64(target.ID))
	if err != nil {
		return discord.MessageUpdate{}, err
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("Invite Stats").
		SetDescription(fmt.Sprintf("Stats for %s", userMention(target.ID))).
		SetColor(embedColor).
		AddField("Validated", fmt.Sprintf("%d", stats.Validated), true).
		AddField("Pending", fmt.Sprintf("%d", stats.Pending), true).
		AddField("Left Early", fmt.Sprintf("%d", stats.LeftEarly), true).
		AddField("Total", fmt.Sprintf("%d", stats.Total), true).
		AddField("Rank", formatRank(rank), true).
		Build()

	return discord.NewMessageUpdateBuilder().SetEmbeds(embed).Build(), nil
}

// handleLeaderboard shows the top inviters by validated joins, with a chart
// of the guild's recent join activity when there is any.
func (b *Bot) handleLeaderboard(ctx context.Context, event *events.ApplicationCommandInteractionCreate) (discord.MessageUpdate, error) {
	guildID := uint64(*event.GuildID())
	requesterID := uint64(event.User().ID)

	page, err := b.db.Service().Stats().GetLeaderboardPage(ctx, guildID, requesterID, leaderboardSize)
	if err != nil {
		return discord.MessageUpdate{}, err
	}

	if len(page.Entries) == 0 {
		return discord.NewMessageUpdateBuilder().
			SetContent("Nobody has any tracked invites here yet. Use `/invite-link` to get yours.").
			Build(), nil
	}

	var sb strings.Builder
	for i, entry := range page.Entries {
		fmt.Fprintf(&sb, "%d. %s — **%d** validated (%d total)\n",
			i+1, userMention(snowflake.ID(entry.InviterID)), entry.Validated, entry.Total)
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("Invite Leaderboard").
		SetDescription(sb.String()).
		SetColor(embedColor).
		SetFooterText(fmt.Sprintf("Your rank: %s of %d inviters", formatRank(page.RequesterRank), page.TotalInviters)).
		Build()

	builder := discord.NewMessageUpdateBuilder().SetEmbeds(embed)

	dailyStats, err := b.db.Model().Stats().GetDailyJoinStats(ctx, guildID, leaderboardChartDays)
	if err != nil {
		// The leaderboard is still useful without the chart.
		b.logger.Warn("Failed to load daily join stats for chart",
			zap.Uint64("guildID", guildID),
			zap.Error(err))

		return builder.Build(), nil
	}

	chartBuf, err := NewChartBuilder(dailyStats, leaderboardChartDays).Build()
	if err != nil {
		b.logger.Warn("Failed to render activity chart",
			zap.Uint64("guildID", guildID),
			zap.Error(err))

		return builder.Build(), nil
	}

	if chartBuf != nil {
		builder.AddFile("daily_joins.png", "Daily join activity", chartBuf)
		builder.SetEmbeds(discord.NewEmbedBuilder().
			SetTitle("Invite Leaderboard").
			SetDescription(sb.String()).
			SetColor(embedColor).
			SetFooterText(fmt.Sprintf("Your rank: %s of %d inviters", formatRank(page.RequesterRank), page.TotalInviters)).
			SetImage("attachment://daily_joins.png").
			Build())
	}

	return builder.Build(), nil
}

// respond replaces the deferred response with the final message.
func (b *Bot) respond(event *events.ApplicationCommandInteractionCreate, update discord.MessageUpdate) {
	_, err := b.client.Rest().UpdateInteractionResponse(event.ApplicationID(), event.Token(), update)
	if err != nil {
		b.logger.Error("Failed to update interaction response", zap.Error(err))
	}
}

func (b *Bot) respondText(event *events.ApplicationCommandInteractionCreate, content string) {
	b.respond(event, discord.NewMessageUpdateBuilder().SetContent(content).Build())
}

func inviteLinkResponse(code string) discord.MessageUpdate {
	return discord.NewMessageUpdateBuilder().
		SetContentf("Your invite link: https://discord.gg/%s\nJoins through it are credited to you once the member sticks around.", code).
		Build()
}

func userMention(id snowflake.ID) string {
	return fmt.Sprintf("<@%d>", uint64(id))
}

func formatRank(rank int) string {
	if rank == 0 {
		return "Unranked"
	}

	return fmt.Sprintf("#%d", rank)
}
