package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vexlio/doorkeep/internal/export/types"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Exporter handles exporting join and leaderboard records to SQLite databases.
type Exporter struct {
	outDir string
}

// New creates a new SQLite exporter instance.
func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// Export writes join and leaderboard records to separate SQLite databases.
func (e *Exporter) Export(joinRecords []*types.JoinRecord, leaderboardRecords []*types.LeaderboardRecord) error {
	// Remove existing files if they exist
	files := []string{"joins.db", "leaderboard.db"}
	for _, file := range files {
		path := filepath.Join(e.outDir, file)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove existing file %s: %w", file, err)
		}
	}

	if err := e.createJoinsDB("joins.db", joinRecords); err != nil {
		return fmt.Errorf("failed to export joins: %w", err)
	}

	if err := e.createLeaderboardDB("leaderboard.db", leaderboardRecords); err != nil {
		return fmt.Errorf("failed to export leaderboard: %w", err)
	}

	return nil
}

// createJoinsDB creates a SQLite database holding the join records.
func (e *Exporter) createJoinsDB(filename string, records []*types.JoinRecord) error {
	conn, err := sqlite.OpenConn(filepath.Join(e.outDir, filename), sqlite.OpenCreate|sqlite.OpenReadWrite)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}
	defer conn.Close()

	err = sqlitex.Execute(conn, `
		CREATE TABLE joins (
			guild_id INTEGER NOT NULL,
			user_hash TEXT NOT NULL,
			inviter_hash TEXT NOT NULL,
			status TEXT NOT NULL,
			joined_at TEXT NOT NULL,
			validated_at TEXT,
			left_at TEXT,
			PRIMARY KEY (guild_id, user_hash)
		)
	`, nil)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	// Insert records in batches
	const batchSize = 1000
	for i := 0; i < len(records); i += batchSize {
		end := min(i+batchSize, len(records))

		err = sqlitex.Execute(conn, "BEGIN TRANSACTION", nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		for _, record := range records[i:end] {
			err = sqlitex.Execute(conn,
				"INSERT INTO joins (guild_id, user_hash, inviter_hash, status, joined_at, validated_at, left_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
				&sqlitex.ExecOptions{
					Args: []any{
						int64(record.GuildID), //nolint:gosec // snowflakes fit in 63 bits
						record.UserHash,
						record.InviterHash,
						record.Status,
						record.JoinedAt.UTC().Format(time.RFC3339),
						optionalTime(record.ValidatedAt),
						optionalTime(record.LeftAt),
					},
				})
			if err != nil {
				return fmt.Errorf("failed to insert record: %w", err)
			}
		}

		err = sqlitex.Execute(conn, "COMMIT", nil)
		if err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
	}

	return nil
}

// createLeaderboardDB creates a SQLite database holding the leaderboard
// records.
func (e *Exporter) createLeaderboardDB(filename string, records []*types.LeaderboardRecord) error {
	conn, err := sqlite.OpenConn(filepath.Join(e.outDir, filename), sqlite.OpenCreate|sqlite.OpenReadWrite)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}
	defer conn.Close()

	err = sqlitex.Execute(conn, `
		CREATE TABLE leaderboard (
			guild_id INTEGER NOT NULL,
			inviter_hash TEXT NOT NULL,
			validated INTEGER NOT NULL,
			pending INTEGER NOT NULL,
			left_early INTEGER NOT NULL,
			total INTEGER NOT NULL,
			PRIMARY KEY (guild_id, inviter_hash)
		)
	`, nil)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	const batchSize = 1000
	for i := 0; i < len(records); i += batchSize {
		end := min(i+batchSize, len(records))

		err = sqlitex.Execute(conn, "BEGIN TRANSACTION", nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		for _, record := range records[i:end] {
			err = sqlitex.Execute(conn,
				"INSERT INTO leaderboard (guild_id, inviter_hash, validated, pending, left_early, total) VALUES (?, ?, ?, ?, ?, ?)",
				&sqlitex.ExecOptions{
					Args: []any{
						int64(record.GuildID), //nolint:gosec // snowflakes fit in 63 bits
						record.InviterHash,
						record.Validated,
						record.Pending,
						record.LeftEarly,
						record.Total,
					},
				})
			if err != nil {
				return fmt.Errorf("failed to insert record: %w", err)
			}
		}

		err = sqlitex.Execute(conn, "COMMIT", nil)
		if err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
	}

	return nil
}

// optionalTime renders a nullable timestamp as RFC3339 or NULL.
func optionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}

	return t.UTC().Format(time.RFC3339)
}
