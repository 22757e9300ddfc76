package types

import "time"

// LeaderboardEntry is one inviter's aggregate standing within a guild.
type LeaderboardEntry struct {
	InviterID uint64 `bun:"inviter_id"`
	Validated int64  `bun:"validated"`
	Pending   int64  `bun:"pending"`
	LeftEarly int64  `bun:"left_early"`
	Total     int64  `bun:"total"`
}

// InviterStats holds the join counts for a single inviter in a guild.
// A row with all zero counts means the inviter has no tracked joins yet.
type InviterStats struct {
	Validated int64 `bun:"validated"`
	Pending   int64 `bun:"pending"`
	LeftEarly int64 `bun:"left_early"`
	Total     int64 `bun:"total"`
}

// DailyJoinStats is one day's join activity within a guild.
type DailyJoinStats struct {
	Date      time.Time `bun:"day"`
	Joins     int64     `bun:"joins"`
	Validated int64     `bun:"validated"`
	LeftEarly int64     `bun:"left_early"`
}

// LeaderboardPage bundles everything the leaderboard display needs.
type LeaderboardPage struct {
	Entries       []*LeaderboardEntry
	RequesterRank int
	TotalInviters int
}
