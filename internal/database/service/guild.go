package service

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/vexlio/doorkeep/internal/database/dbretry"
	"github.com/vexlio/doorkeep/internal/database/types"
	"go.uber.org/zap"
)

// GuildService handles guild-scoped maintenance operations.
type GuildService struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewGuild creates a new guild service.
func NewGuild(db *bun.DB, logger *zap.Logger) *GuildService {
	return &GuildService{
		db:     db,
		logger: logger.Named("guild_service"),
	}
}

// Purge removes all join records and tracked invites for a guild.
// Both tables are cleared in a single transaction so a partial purge
// never survives a crash.
func (s *GuildService) Purge(ctx context.Context, guildID uint64) error {
	var joinsDeleted, invitesDeleted int64

	err := dbretry.Transaction(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		joinRes, err := tx.NewDelete().
			Model((*types.MemberJoin)(nil)).
			Where("guild_id = ?", guildID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete member joins: %w", err)
		}

		inviteRes, err := tx.NewDelete().
			Model((*types.TrackedInvite)(nil)).
			Where("guild_id = ?", guildID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete tracked invites: %w", err)
		}

		joinsDeleted, _ = joinRes.RowsAffected()
		invitesDeleted, _ = inviteRes.RowsAffected()

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to purge guild data: %w", err)
	}

	s.logger.Info("Purged guild data",
		zap.Uint64("guildID", guildID),
		zap.Int64("joinsDeleted", joinsDeleted),
		zap.Int64("invitesDeleted", invitesDeleted))

	return nil
}
