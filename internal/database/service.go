package database

import (
	"github.com/uptrace/bun"
	"github.com/vexlio/doorkeep/internal/database/service"
	"go.uber.org/zap"
)

// Service provides access to all business logic services.
type Service struct {
	stats *service.StatsService
	guild *service.GuildService
}

// NewService creates a new service instance with all services.
func NewService(db *bun.DB, repository *Repository, logger *zap.Logger) *Service {
	return &Service{
		stats: service.NewStats(repository.Stats(), logger),
		guild: service.NewGuild(db, logger),
	}
}

// Stats returns the stats service.
func (s *Service) Stats() *service.StatsService {
	return s.stats
}

// Guild returns the guild service.
func (s *Service) Guild() *service.GuildService {
	return s.guild
}
