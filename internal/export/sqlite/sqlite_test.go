package sqlite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vexlio/doorkeep/internal/export/types"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// readJoins reads all rows from a joins database ordered by user hash.
func readJoins(t *testing.T, path string) []*types.JoinRecord {
	t.Helper()

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadOnly)
	require.NoError(t, err)
	defer conn.Close()

	var records []*types.JoinRecord

	err = sqlitex.ExecuteTransient(conn,
		"SELECT guild_id, user_hash, inviter_hash, status, joined_at, validated_at, left_at FROM joins ORDER BY user_hash",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record := &types.JoinRecord{
					GuildID:     uint64(stmt.ColumnInt64(0)),
					UserHash:    stmt.ColumnText(1),
					InviterHash: stmt.ColumnText(2),
					Status:      stmt.ColumnText(3),
				}

				record.JoinedAt, _ = time.Parse(time.RFC3339, stmt.ColumnText(4))

				if stmt.ColumnType(5) != sqlite.TypeNull {
					at, _ := time.Parse(time.RFC3339, stmt.ColumnText(5))
					record.ValidatedAt = &at
				}

				if stmt.ColumnType(6) != sqlite.TypeNull {
					at, _ := time.Parse(time.RFC3339, stmt.ColumnText(6))
					record.LeftAt = &at
				}

				records = append(records, record)

				return nil
			},
		})
	require.NoError(t, err)

	return records
}

func TestExporter_Export(t *testing.T) {
	tempDir := t.TempDir()

	joined := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	validated := joined.Add(7 * 24 * time.Hour)

	joinRecords := []*types.JoinRecord{
		{
			GuildID:     100,
			UserHash:    "aaaa",
			InviterHash: "cccc",
			Status:      "validated",
			JoinedAt:    joined,
			ValidatedAt: &validated,
		},
		{
			GuildID:     100,
			UserHash:    "bbbb",
			InviterHash: "cccc",
			Status:      "pending",
			JoinedAt:    joined,
		},
	}

	leaderboardRecords := []*types.LeaderboardRecord{
		{GuildID: 100, InviterHash: "cccc", Validated: 1, Pending: 1, Total: 2},
	}

	e := New(tempDir)
	require.NoError(t, e.Export(joinRecords, leaderboardRecords))

	got := readJoins(t, filepath.Join(tempDir, "joins.db"))
	require.Len(t, got, 2)

	assert.Equal(t, uint64(100), got[0].GuildID)
	assert.Equal(t, "aaaa", got[0].UserHash)
	assert.Equal(t, "cccc", got[0].InviterHash)
	assert.Equal(t, "validated", got[0].Status)
	assert.Equal(t, joined, got[0].JoinedAt)
	require.NotNil(t, got[0].ValidatedAt)
	assert.Equal(t, validated, *got[0].ValidatedAt)
	assert.Nil(t, got[0].LeftAt)

	assert.Equal(t, "pending", got[1].Status)
	assert.Nil(t, got[1].ValidatedAt)

	// Leaderboard rows land in the second database.
	conn, err := sqlite.OpenConn(filepath.Join(tempDir, "leaderboard.db"), sqlite.OpenReadOnly)
	require.NoError(t, err)
	defer conn.Close()

	var rows int
	err = sqlitex.ExecuteTransient(conn,
		"SELECT validated, pending, total FROM leaderboard WHERE guild_id = 100 AND inviter_hash = 'cccc'",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rows++
				assert.Equal(t, int64(1), stmt.ColumnInt64(0))
				assert.Equal(t, int64(1), stmt.ColumnInt64(1))
				assert.Equal(t, int64(2), stmt.ColumnInt64(2))
				return nil
			},
		})
	require.NoError(t, err)
	assert.Equal(t, 1, rows)
}

func TestExporter_DuplicateUserHash(t *testing.T) {
	tempDir := t.TempDir()
	e := New(tempDir)

	joined := time.Now().UTC()
	joinRecords := []*types.JoinRecord{
		{GuildID: 100, UserHash: "aaaa", InviterHash: "bbbb", Status: "pending", JoinedAt: joined},
		{GuildID: 100, UserHash: "aaaa", InviterHash: "cccc", Status: "pending", JoinedAt: joined},
	}

	// (guild_id, user_hash) is the primary key, so the duplicate must fail.
	assert.Error(t, e.Export(joinRecords, nil))
}

func TestExporter_ExistingFiles(t *testing.T) {
	tempDir := t.TempDir()

	// Create existing files
	files := []string{"joins.db", "leaderboard.db"}
	for _, file := range files {
		err := os.WriteFile(filepath.Join(tempDir, file), []byte("invalid sqlite db"), 0o644)
		require.NoError(t, err)
	}

	e := New(tempDir)

	joinRecords := []*types.JoinRecord{
		{
			GuildID:     100,
			UserHash:    "aaaa",
			InviterHash: "bbbb",
			Status:      "pending",
			JoinedAt:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}

	// Export should overwrite existing files
	require.NoError(t, e.Export(joinRecords, nil))

	got := readJoins(t, filepath.Join(tempDir, "joins.db"))
	require.Len(t, got, 1)
	assert.Equal(t, "aaaa", got[0].UserHash)
}

func TestExporter_DatabaseSchema(t *testing.T) {
	tempDir := t.TempDir()
	e := New(tempDir)

	require.NoError(t, e.Export(nil, nil))

	conn, err := sqlite.OpenConn(filepath.Join(tempDir, "joins.db"), sqlite.OpenReadOnly)
	require.NoError(t, err)
	defer conn.Close()

	var columns []string

	err = sqlitex.ExecuteTransient(conn, "PRAGMA table_info(joins)", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			columns = append(columns, stmt.ColumnText(1)) // Column name is at index 1
			return nil
		},
	})
	require.NoError(t, err)

	expectedColumns := []string{"guild_id", "user_hash", "inviter_hash", "status", "joined_at", "validated_at", "left_at"}
	assert.Equal(t, expectedColumns, columns)
}
