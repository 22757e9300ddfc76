package types

import (
	"time"

	"github.com/vexlio/doorkeep/internal/database/types/enum"
)

// MemberJoin records the most recent attributed join of a member to a guild
// and tracks its validation lifecycle. A member who leaves and rejoins has
// their row overwritten: new inviter, fresh join timestamp, status back to
// pending. The inviter and invite code are fixed at attribution time and are
// never altered by validation.
type MemberJoin struct {
	GuildID     uint64          `bun:",pk"`
	UserID      uint64          `bun:",pk"`
	InviterID   uint64          `bun:",notnull"`
	InviteCode  string          `bun:",notnull"`
	JoinedAt    time.Time       `bun:",notnull"`
	Status      enum.JoinStatus `bun:",notnull"`
	ValidatedAt *time.Time      `bun:",nullzero"` // Set by the validation worker only
	LeftAt      *time.Time      `bun:",nullzero"` // Set on early leave, by event or worker
}

// JoinKey identifies a member join row. Used for bulk conditional updates
// when the validation worker applies its transitions.
type JoinKey struct {
	GuildID uint64 `bun:"guild_id"`
	UserID  uint64 `bun:"user_id"`
}

// Key returns the row's identifying pair.
func (j *MemberJoin) Key() JoinKey {
	return JoinKey{GuildID: j.GuildID, UserID: j.UserID}
}
