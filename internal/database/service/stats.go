package service

import (
	"context"
	"fmt"

	"github.com/vexlio/doorkeep/internal/database/models"
	"github.com/vexlio/doorkeep/internal/database/types"
	"go.uber.org/zap"
)

// StatsService handles leaderboard and stat display business logic.
type StatsService struct {
	model  *models.StatsModel
	logger *zap.Logger
}

// NewStats creates a new stats service.
func NewStats(model *models.StatsModel, logger *zap.Logger) *StatsService {
	return &StatsService{
		model:  model,
		logger: logger.Named("stats_service"),
	}
}

// GetLeaderboardPage assembles a guild's leaderboard together with the
// requesting member's own rank and the guild-wide inviter count.
func (s *StatsService) GetLeaderboardPage(
	ctx context.Context, guildID, requesterID uint64, limit int,
) (*types.LeaderboardPage, error) {
	entries, err := s.model.GetLeaderboard(ctx, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard entries: %w", err)
	}

	rank, err := s.model.GetInviterRank(ctx, guildID, requesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to get requester rank: %w", err)
	}

	total, err := s.model.GetTotalInviters(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get inviter count: %w", err)
	}

	return &types.LeaderboardPage{
		Entries:       entries,
		RequesterRank: rank,
		TotalInviters: total,
	}, nil
}

// GetInviterOverview returns the counts and rank for a single inviter.
func (s *StatsService) GetInviterOverview(
	ctx context.Context, guildID, inviterID uint64,
) (*types.InviterStats, int, error) {
	stats, err := s.model.GetInviterStats(ctx, guildID, inviterID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get inviter stats: %w", err)
	}

	rank, err := s.model.GetInviterRank(ctx, guildID, inviterID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get inviter rank: %w", err)
	}

	return stats, rank, nil
}
