package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/vexlio/doorkeep/internal/database/dbretry"
	"github.com/vexlio/doorkeep/internal/database/types"
	"github.com/vexlio/doorkeep/internal/database/types/enum"
	"go.uber.org/zap"
)

// StatsModel handles aggregate queries over member join records.
type StatsModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewStats creates a new stats model instance.
func NewStats(db *bun.DB, logger *zap.Logger) *StatsModel {
	return &StatsModel{
		db:     db,
		logger: logger.Named("db_stats"),
	}
}

// GetLeaderboard returns the top inviters of a guild by validated join count.
// Ties break on total joins and then inviter id for deterministic output.
func (m *StatsModel) GetLeaderboard(
	ctx context.Context, guildID uint64, limit int,
) ([]*types.LeaderboardEntry, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.LeaderboardEntry, error) {
		var entries []*types.LeaderboardEntry

		err := m.db.NewSelect().
			Model((*types.MemberJoin)(nil)).
			ColumnExpr("inviter_id").
			ColumnExpr("COUNT(*) FILTER (WHERE status = ?) AS validated", enum.JoinStatusValidated).
			ColumnExpr("COUNT(*) FILTER (WHERE status = ?) AS pending", enum.JoinStatusPending).
			ColumnExpr("COUNT(*) FILTER (WHERE status = ?) AS left_early", enum.JoinStatusLeftEarly).
			ColumnExpr("COUNT(*) AS total").
			Where("guild_id = ?", guildID).
			GroupExpr("inviter_id").
			OrderExpr("validated DESC, total DESC, inviter_id ASC").
			Limit(limit).
			Scan(ctx, &entries)
		if err != nil {
			return nil, fmt.Errorf("failed to get leaderboard: %w", err)
		}

		return entries, nil
	})
}

// GetInviterStats returns the join counts for a single inviter in a guild.
// All-zero counts mean the inviter has no tracked joins.
func (m *StatsModel) GetInviterStats(
	ctx context.Context, guildID, inviterID uint64,
) (*types.InviterStats, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.InviterStats, error) {
		var stats types.InviterStats

		err := m.db.NewSelect().
			Model((*types.MemberJoin)(nil)).
			ColumnExpr("COUNT(*) FILTER (WHERE status = ?) AS validated", enum.JoinStatusValidated).
			ColumnExpr("COUNT(*) FILTER (WHERE status = ?) AS pending", enum.JoinStatusPending).
			ColumnExpr("COUNT(*) FILTER (WHERE status = ?) AS left_early", enum.JoinStatusLeftEarly).
			ColumnExpr("COUNT(*) AS total").
			Where("guild_id = ? AND inviter_id = ?", guildID, inviterID).
			Scan(ctx, &stats)
		if err != nil {
			return nil, fmt.Errorf("failed to get inviter stats: %w", err)
		}

		return &stats, nil
	})
}

// GetInviterRank returns the inviter's rank in a guild by validated join
// count, or 0 when the inviter has no tracked joins at all.
func (m *StatsModel) GetInviterRank(ctx context.Context, guildID, inviterID uint64) (int, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		var rank int

		err := m.db.NewRaw(`
			SELECT rank FROM (
				SELECT inviter_id,
				       RANK() OVER (ORDER BY COUNT(*) FILTER (WHERE status = ?) DESC) AS rank
				FROM member_joins
				WHERE guild_id = ?
				GROUP BY inviter_id
			) ranked
			WHERE inviter_id = ?
		`, enum.JoinStatusValidated, guildID, inviterID).Scan(ctx, &rank)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, nil
			}

			return 0, fmt.Errorf("failed to get inviter rank: %w", err)
		}

		return rank, nil
	})
}

// GetTotalInviters returns the number of distinct inviters with tracked joins
// in a guild.
func (m *StatsModel) GetTotalInviters(ctx context.Context, guildID uint64) (int, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		var count int

		_, err := m.db.NewRaw(`
			SELECT COUNT(DISTINCT inviter_id)
			FROM member_joins
			WHERE guild_id = ?
		`, guildID).Exec(ctx, &count)
		if err != nil {
			return 0, fmt.Errorf("failed to get total inviters: %w", err)
		}

		return count, nil
	})
}

// GetDailyJoinStats returns the per-day join activity of a guild over the
// trailing window, oldest day first. Days without joins produce no row.
func (m *StatsModel) GetDailyJoinStats(
	ctx context.Context, guildID uint64, days int,
) ([]*types.DailyJoinStats, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.DailyJoinStats, error) {
		var stats []*types.DailyJoinStats

		since := time.Now().UTC().AddDate(0, 0, -days)

		err := m.db.NewSelect().
			Model((*types.MemberJoin)(nil)).
			ColumnExpr("DATE_TRUNC('day', joined_at) AS day").
			ColumnExpr("COUNT(*) AS joins").
			ColumnExpr("COUNT(*) FILTER (WHERE status = ?) AS validated", enum.JoinStatusValidated).
			ColumnExpr("COUNT(*) FILTER (WHERE status = ?) AS left_early", enum.JoinStatusLeftEarly).
			Where("guild_id = ?", guildID).
			Where("joined_at >= ?", since).
			GroupExpr("DATE_TRUNC('day', joined_at)").
			OrderExpr("day ASC").
			Scan(ctx, &stats)
		if err != nil {
			return nil, fmt.Errorf("failed to get daily join stats: %w", err)
		}

		return stats, nil
	})
}
