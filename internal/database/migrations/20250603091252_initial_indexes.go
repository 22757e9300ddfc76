package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/vexlio/doorkeep/internal/database/types/enum"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			-- Tracked invite indexes
			CREATE UNIQUE INDEX IF NOT EXISTS idx_tracked_invites_owner_guild
			ON tracked_invites (owner_id, guild_id);

			CREATE INDEX IF NOT EXISTS idx_tracked_invites_guild
			ON tracked_invites (guild_id, id ASC);

			CREATE INDEX IF NOT EXISTS idx_tracked_invites_guild_code
			ON tracked_invites (guild_id, code);

			-- Member join indexes
			CREATE INDEX IF NOT EXISTS idx_member_joins_pending_joined
			ON member_joins (joined_at ASC)
			WHERE status = ?;

			CREATE INDEX IF NOT EXISTS idx_member_joins_guild_inviter_status
			ON member_joins (guild_id, inviter_id, status);

			CREATE INDEX IF NOT EXISTS idx_member_joins_guild_joined
			ON member_joins (guild_id, joined_at DESC);
		`, enum.JoinStatusPending).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP INDEX IF EXISTS idx_tracked_invites_owner_guild;
			DROP INDEX IF EXISTS idx_tracked_invites_guild;
			DROP INDEX IF EXISTS idx_tracked_invites_guild_code;
			DROP INDEX IF EXISTS idx_member_joins_pending_joined;
			DROP INDEX IF EXISTS idx_member_joins_guild_inviter_status;
			DROP INDEX IF EXISTS idx_member_joins_guild_joined;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop indexes: %w", err)
		}

		return nil
	})
}
