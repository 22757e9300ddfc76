package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/json"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// Adapter wraps the disgo client behind the narrow surface the tracker and
// validation worker consume, keeping snowflake conversion and error
// classification in one place.
type Adapter struct {
	client bot.Client
	logger *zap.Logger
}

// NewAdapter creates an adapter over the given disgo client.
func NewAdapter(client bot.Client, logger *zap.Logger) *Adapter {
	return &Adapter{
		client: client,
		logger: logger.Named("discord"),
	}
}

// GuildInviteUses returns code -> use count for every invite currently active
// in the guild. The bot's own Manage Guild permission is checked against the
// gateway cache first so the common no-permission case never costs an API
// call; the REST error path catches the rest.
func (a *Adapter) GuildInviteUses(ctx context.Context, guildID uint64) (map[string]int, error) {
	if !a.canManageGuild(guildID) {
		return nil, fmt.Errorf("%w: manage guild permission not granted", ErrMissingAccess)
	}

	invites, err := a.client.Rest().GetGuildInvites(snowflake.ID(guildID), rest.WithCtx(ctx))
	if err != nil {
		return nil, ClassifyRestError(err)
	}

	usage := make(map[string]int, len(invites))
	for _, invite := range invites {
		usage[invite.Code] = invite.Uses
	}

	return usage, nil
}

// IsMember reports whether the user is currently a member of the guild.
// A confirmed absence (unknown member/user) is (false, nil); any other
// failure returns the error so callers do not mistake an outage for a leave.
func (a *Adapter) IsMember(ctx context.Context, guildID, userID uint64) (bool, error) {
	if _, ok := a.client.Caches().Member(snowflake.ID(guildID), snowflake.ID(userID)); ok {
		return true, nil
	}

	_, err := a.client.Rest().GetMember(snowflake.ID(guildID), snowflake.ID(userID), rest.WithCtx(ctx))
	if err != nil {
		err = ClassifyRestError(err)
		if errors.Is(err, ErrUnknownMember) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// KnownGuild reports whether the bot is still in the guild. The gateway
// cache answers for the bot process; REST answers for processes without a
// gateway connection. A guild the bot cannot see at all is (false, nil).
func (a *Adapter) KnownGuild(ctx context.Context, guildID uint64) (bool, error) {
	if _, ok := a.client.Caches().Guild(snowflake.ID(guildID)); ok {
		return true, nil
	}

	_, err := a.client.Rest().GetGuild(snowflake.ID(guildID), false, rest.WithCtx(ctx))
	if err != nil {
		err = ClassifyRestError(err)
		if errors.Is(err, ErrUnknownGuild) || errors.Is(err, ErrMissingAccess) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// CreateGuildInvite mints a never-expiring, unlimited-use invite for the
// given channel and returns its code.
func (a *Adapter) CreateGuildInvite(ctx context.Context, channelID uint64) (string, error) {
	invite, err := a.client.Rest().CreateInvite(snowflake.ID(channelID), discord.InviteCreate{
		MaxAge:  json.Ptr(0),
		MaxUses: json.Ptr(0),
		Unique:  true,
	}, rest.WithCtx(ctx))
	if err != nil {
		return "", ClassifyRestError(err)
	}

	a.logger.Debug("Created guild invite",
		zap.Uint64("channelID", channelID),
		zap.String("code", invite.Code))

	return invite.Code, nil
}

// InviteExists reports whether the invite code still resolves upstream.
func (a *Adapter) InviteExists(ctx context.Context, code string) (bool, error) {
	_, err := a.client.Rest().GetInvite(code, rest.WithCtx(ctx))
	if err != nil {
		err = ClassifyRestError(err)
		if errors.Is(err, ErrUnknownInvite) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// canManageGuild checks the bot's own permissions from the gateway cache.
// An unpopulated cache defers the decision to the REST call.
func (a *Adapter) canManageGuild(guildID uint64) bool {
	member, ok := a.client.Caches().SelfMember(snowflake.ID(guildID))
	if !ok {
		return true
	}

	perms := a.client.Caches().MemberPermissions(member)

	return perms.Has(discord.PermissionManageGuild) || perms.Has(discord.PermissionAdministrator)
}
