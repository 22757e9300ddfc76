package types

import (
	"errors"
	"time"
)

var ErrNoTrackedInvite = errors.New("no tracked invite found")

// TrackedInvite is a bot-issued invite link tied to one member in one guild.
// Each member owns at most one tracked invite per guild; the uniqueness is
// enforced by a unique index on (owner_id, guild_id) at write time.
type TrackedInvite struct {
	ID        int64     `bun:",pk,autoincrement"`
	OwnerID   uint64    `bun:",notnull"` // Discord ID of the member the invite belongs to
	GuildID   uint64    `bun:",notnull"`
	Code      string    `bun:",notnull"` // Upstream invite code, replaced when it vanishes
	CreatedAt time.Time `bun:",notnull"`
	UpdatedAt time.Time `bun:",notnull"`
}
