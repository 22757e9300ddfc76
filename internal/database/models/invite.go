package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/vexlio/doorkeep/internal/database/dbretry"
	"github.com/vexlio/doorkeep/internal/database/types"
	"go.uber.org/zap"
)

// InviteModel handles database operations for tracked invites.
type InviteModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewInvite creates a new invite model instance.
func NewInvite(db *bun.DB, logger *zap.Logger) *InviteModel {
	return &InviteModel{
		db:     db,
		logger: logger.Named("db_invite"),
	}
}

// GetGuildInvites returns all tracked invites for a guild, ordered by id so
// the attribution engine iterates them deterministically.
func (m *InviteModel) GetGuildInvites(ctx context.Context, guildID uint64) ([]*types.TrackedInvite, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.TrackedInvite, error) {
		var invites []*types.TrackedInvite

		err := m.db.NewSelect().
			Model(&invites).
			Where("guild_id = ?", guildID).
			Order("id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get guild invites: %w", err)
		}

		return invites, nil
	})
}

// GetByOwner returns the tracked invite a member owns in a guild.
// Returns types.ErrNoTrackedInvite if the member has none.
func (m *InviteModel) GetByOwner(ctx context.Context, guildID, ownerID uint64) (*types.TrackedInvite, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.TrackedInvite, error) {
		var invite types.TrackedInvite

		err := m.db.NewSelect().
			Model(&invite).
			Where("guild_id = ? AND owner_id = ?", guildID, ownerID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrNoTrackedInvite
			}

			return nil, fmt.Errorf("failed to get tracked invite: %w", err)
		}

		return &invite, nil
	})
}

// Upsert creates or updates a member's tracked invite. The unique index on
// (owner_id, guild_id) keeps one invite per member per guild; on conflict the
// code is replaced and updated_at bumped.
func (m *InviteModel) Upsert(ctx context.Context, invite *types.TrackedInvite) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(invite).
			On("CONFLICT (owner_id, guild_id) DO UPDATE").
			Set("code = EXCLUDED.code").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to upsert tracked invite: %w", err)
		}

		m.logger.Debug("Upserted tracked invite",
			zap.Uint64("guildID", invite.GuildID),
			zap.Uint64("ownerID", invite.OwnerID),
			zap.String("code", invite.Code))

		return nil
	})
}

// DeleteByIDs removes tracked invites by their row ids. Used by the stale
// sweeper after the attribution engine finds codes that vanished upstream.
func (m *InviteModel) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		res, err := m.db.NewDelete().
			Model((*types.TrackedInvite)(nil)).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to delete tracked invites: %w", err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}

		m.logger.Debug("Deleted stale tracked invites",
			zap.Int("requested", len(ids)),
			zap.Int64("deleted", rows))

		return rows, nil
	})
}

// DeleteByCode removes the tracked invite with the given code in a guild.
// Used when the platform reports the invite deleted.
func (m *InviteModel) DeleteByCode(ctx context.Context, guildID uint64, code string) (int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		res, err := m.db.NewDelete().
			Model((*types.TrackedInvite)(nil)).
			Where("guild_id = ? AND code = ?", guildID, code).
			Exec(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to delete tracked invite by code: %w", err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}

		return rows, nil
	})
}
