package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbTypes "github.com/vexlio/doorkeep/internal/database/types"
	"github.com/vexlio/doorkeep/internal/database/types/enum"
)

func TestBuildJoinRecords(t *testing.T) {
	t.Parallel()

	joined := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	validated := joined.Add(7 * 24 * time.Hour)

	joins := []*dbTypes.MemberJoin{
		{
			GuildID:     100,
			UserID:      1,
			InviterID:   2,
			InviteCode:  "abc",
			JoinedAt:    joined,
			Status:      enum.JoinStatusValidated,
			ValidatedAt: &validated,
		},
		{
			GuildID:    100,
			UserID:     3,
			InviterID:  2,
			InviteCode: "abc",
			JoinedAt:   joined,
			Status:     enum.JoinStatusPending,
		},
	}
	hashes := map[uint64]string{1: "h1", 2: "h2", 3: "h3"}

	records := buildJoinRecords(joins, hashes)
	require.Len(t, records, 2)

	assert.Equal(t, "h1", records[0].UserHash)
	assert.Equal(t, "h2", records[0].InviterHash)
	assert.Equal(t, enum.JoinStatusValidated.String(), records[0].Status)
	require.NotNil(t, records[0].ValidatedAt)
	assert.Equal(t, validated, *records[0].ValidatedAt)

	assert.Equal(t, "h3", records[1].UserHash)
	assert.Nil(t, records[1].ValidatedAt)
	assert.Nil(t, records[1].LeftAt)
}

func TestBuildLeaderboardRecords(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	joins := []*dbTypes.MemberJoin{
		{GuildID: 100, UserID: 1, InviterID: 10, JoinedAt: now, Status: enum.JoinStatusValidated},
		{GuildID: 100, UserID: 2, InviterID: 10, JoinedAt: now, Status: enum.JoinStatusPending},
		{GuildID: 100, UserID: 3, InviterID: 10, JoinedAt: now, Status: enum.JoinStatusLeftEarly},
		{GuildID: 100, UserID: 4, InviterID: 20, JoinedAt: now, Status: enum.JoinStatusValidated},
		{GuildID: 100, UserID: 5, InviterID: 20, JoinedAt: now, Status: enum.JoinStatusValidated},
		{GuildID: 200, UserID: 6, InviterID: 10, JoinedAt: now, Status: enum.JoinStatusPending},
	}
	hashes := map[uint64]string{10: "inviter-a", 20: "inviter-b"}

	records := buildLeaderboardRecords(joins, hashes)
	require.Len(t, records, 3)

	// Guild 100 first, ordered by validated count descending.
	assert.Equal(t, uint64(100), records[0].GuildID)
	assert.Equal(t, "inviter-b", records[0].InviterHash)
	assert.Equal(t, int64(2), records[0].Validated)
	assert.Equal(t, int64(2), records[0].Total)

	assert.Equal(t, uint64(100), records[1].GuildID)
	assert.Equal(t, "inviter-a", records[1].InviterHash)
	assert.Equal(t, int64(1), records[1].Validated)
	assert.Equal(t, int64(1), records[1].Pending)
	assert.Equal(t, int64(1), records[1].LeftEarly)
	assert.Equal(t, int64(3), records[1].Total)

	assert.Equal(t, uint64(200), records[2].GuildID)
	assert.Equal(t, "inviter-a", records[2].InviterHash)
	assert.Equal(t, int64(1), records[2].Pending)
}

func TestHashIdentitiesDeduplicates(t *testing.T) {
	t.Parallel()

	e := &Exporter{config: &Config{
		Salt:        "test_salt",
		HashType:    string(HashTypeSHA256),
		Iterations:  1,
		Concurrency: 2,
	}}

	now := time.Now().UTC()
	joins := []*dbTypes.MemberJoin{
		// Inviter 10 shows up as both inviter and member.
		{GuildID: 100, UserID: 10, InviterID: 20, JoinedAt: now, Status: enum.JoinStatusValidated},
		{GuildID: 100, UserID: 30, InviterID: 10, JoinedAt: now, Status: enum.JoinStatusPending},
	}

	hashes := e.hashIdentities(joins)
	require.Len(t, hashes, 3)

	assert.Equal(t, HashID(10, "test_salt", HashTypeSHA256, 1, 0), hashes[10])
	assert.Equal(t, HashID(20, "test_salt", HashTypeSHA256, 1, 0), hashes[20])
	assert.Equal(t, HashID(30, "test_salt", HashTypeSHA256, 1, 0), hashes[30])
}
