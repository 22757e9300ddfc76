package models

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/vexlio/doorkeep/internal/database/dbretry"
	"github.com/vexlio/doorkeep/internal/database/types"
	"github.com/vexlio/doorkeep/internal/database/types/enum"
	"go.uber.org/zap"
)

// JoinModel handles database operations for member join records.
type JoinModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewJoin creates a new join model instance.
func NewJoin(db *bun.DB, logger *zap.Logger) *JoinModel {
	return &JoinModel{
		db:     db,
		logger: logger.Named("db_join"),
	}
}

// RecordJoin upserts the join record for a member, keyed on (guild_id,
// user_id). The row always comes out pending with a fresh join timestamp and
// cleared outcome timestamps: a member who leaves and rejoins restarts their
// validation clock and is re-attributed to the invite used this time. Safe to
// retry since gateway events are delivered at least once.
func (m *JoinModel) RecordJoin(ctx context.Context, join *types.MemberJoin) error {
	join.Status = enum.JoinStatusPending
	join.ValidatedAt = nil
	join.LeftAt = nil

	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(join).
			On("CONFLICT (guild_id, user_id) DO UPDATE").
			Set("inviter_id = EXCLUDED.inviter_id").
			Set("invite_code = EXCLUDED.invite_code").
			Set("joined_at = EXCLUDED.joined_at").
			Set("status = EXCLUDED.status").
			Set("validated_at = NULL").
			Set("left_at = NULL").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to record member join: %w", err)
		}

		m.logger.Debug("Recorded member join",
			zap.Uint64("guildID", join.GuildID),
			zap.Uint64("userID", join.UserID),
			zap.Uint64("inviterID", join.InviterID),
			zap.String("code", join.InviteCode))

		return nil
	})
}

// RecordLeave transitions all pending join records for a member in a guild to
// left early, returning the number of rows changed. Zero rows is a normal
// outcome (the member was never tracked, or already validated) and is not an
// error. The status filter makes the operation idempotent and keeps terminal
// states terminal.
func (m *JoinModel) RecordLeave(ctx context.Context, guildID, userID uint64, leftAt time.Time) (int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		res, err := m.db.NewUpdate().
			Model((*types.MemberJoin)(nil)).
			Set("status = ?", enum.JoinStatusLeftEarly).
			Set("left_at = ?", leftAt).
			Where("guild_id = ? AND user_id = ?", guildID, userID).
			Where("status = ?", enum.JoinStatusPending).
			Exec(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to record member leave: %w", err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}

		if rows == 0 {
			m.logger.Debug("No pending join to close on leave",
				zap.Uint64("guildID", guildID),
				zap.Uint64("userID", userID))
		}

		return rows, nil
	})
}

// GetValidationCandidates returns pending joins whose join timestamp is at or
// before the cutoff, oldest first. The boundary is inclusive: a join made
// exactly at the cutoff is due for validation.
func (m *JoinModel) GetValidationCandidates(
	ctx context.Context, cutoff time.Time, limit int,
) ([]*types.MemberJoin, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.MemberJoin, error) {
		var joins []*types.MemberJoin

		err := m.db.NewSelect().
			Model(&joins).
			Where("status = ?", enum.JoinStatusPending).
			Where("joined_at <= ?", cutoff).
			Order("joined_at ASC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get validation candidates: %w", err)
		}

		return joins, nil
	})
}

// MarkValidated bulk-transitions the given rows to validated. Each row is
// guarded by a status filter so a concurrent leave wins the race: rows no
// longer pending at write time are left untouched. The returned count lets
// callers detect such races.
func (m *JoinModel) MarkValidated(ctx context.Context, keys []types.JoinKey, at time.Time) (int64, error) {
	return m.transition(ctx, keys, enum.JoinStatusValidated, "validated_at", at)
}

// MarkLeftEarly bulk-transitions the given rows to left early, with the same
// pending-only guard as MarkValidated.
func (m *JoinModel) MarkLeftEarly(ctx context.Context, keys []types.JoinKey, at time.Time) (int64, error) {
	return m.transition(ctx, keys, enum.JoinStatusLeftEarly, "left_at", at)
}

func (m *JoinModel) transition(
	ctx context.Context, keys []types.JoinKey, status enum.JoinStatus, tsColumn string, at time.Time,
) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	pairs := make([][]uint64, len(keys))
	for i, key := range keys {
		pairs[i] = []uint64{key.GuildID, key.UserID}
	}

	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		res, err := m.db.NewUpdate().
			Model((*types.MemberJoin)(nil)).
			Set("status = ?", status).
			Set(tsColumn+" = ?", at).
			Where("(guild_id, user_id) IN (?)", bun.In(pairs)).
			Where("status = ?", enum.JoinStatusPending).
			Exec(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to mark joins %s: %w", status, err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}

		m.logger.Debug("Applied join transitions",
			zap.Stringer("status", status),
			zap.Int("requested", len(keys)),
			zap.Int64("applied", rows))

		return rows, nil
	})
}

// GetAllJoins returns join records for export, ordered for stable output.
// A zero guildID returns every guild.
func (m *JoinModel) GetAllJoins(ctx context.Context, guildID uint64) ([]*types.MemberJoin, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.MemberJoin, error) {
		var joins []*types.MemberJoin

		query := m.db.NewSelect().
			Model(&joins).
			Order("guild_id ASC", "joined_at ASC", "user_id ASC")

		if guildID != 0 {
			query = query.Where("guild_id = ?", guildID)
		}

		if err := query.Scan(ctx); err != nil {
			return nil, fmt.Errorf("failed to get joins for export: %w", err)
		}

		return joins, nil
	})
}
