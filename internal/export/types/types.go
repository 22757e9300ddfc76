package types

import "time"

// JoinRecord is one exported member join. Member and inviter identities are
// hashed; only the guild id survives in the clear.
type JoinRecord struct {
	GuildID     uint64
	UserHash    string
	InviterHash string
	Status      string
	JoinedAt    time.Time
	ValidatedAt *time.Time
	LeftAt      *time.Time
}

// LeaderboardRecord is one inviter's aggregate standing in a guild, with the
// inviter identity hashed.
type LeaderboardRecord struct {
	GuildID     uint64
	InviterHash string
	Validated   int64
	Pending     int64
	LeftEarly   int64
	Total       int64
}
