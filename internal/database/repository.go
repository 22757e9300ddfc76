package database

import (
	"github.com/uptrace/bun"
	"github.com/vexlio/doorkeep/internal/database/models"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	invite *models.InviteModel
	join   *models.JoinModel
	stats  *models.StatsModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		invite: models.NewInvite(db, logger),
		join:   models.NewJoin(db, logger),
		stats:  models.NewStats(db, logger),
	}
}

// Invite returns the tracked invite model repository.
func (r *Repository) Invite() *models.InviteModel {
	return r.invite
}

// Join returns the member join model repository.
func (r *Repository) Join() *models.JoinModel {
	return r.join
}

// Stats returns the stats model repository.
func (r *Repository) Stats() *models.StatsModel {
	return r.stats
}
