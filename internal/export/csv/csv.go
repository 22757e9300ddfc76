package csv

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vexlio/doorkeep/internal/export/types"
)

// Exporter handles exporting join and leaderboard records to csv files.
type Exporter struct {
	outDir string
}

// New creates a new csv exporter instance.
func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// Export writes join and leaderboard records to separate csv files.
func (e *Exporter) Export(joinRecords []*types.JoinRecord, leaderboardRecords []*types.LeaderboardRecord) error {
	// Remove existing files if they exist
	files := []string{"joins.csv", "leaderboard.csv"}
	for _, file := range files {
		path := filepath.Join(e.outDir, file)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove existing file %s: %w", file, err)
		}
	}

	if err := e.writeJoins("joins.csv", joinRecords); err != nil {
		return fmt.Errorf("failed to export joins: %w", err)
	}

	if err := e.writeLeaderboard("leaderboard.csv", leaderboardRecords); err != nil {
		return fmt.Errorf("failed to export leaderboard: %w", err)
	}

	return nil
}

// writeJoins writes join records to a csv file.
func (e *Exporter) writeJoins(filename string, records []*types.JoinRecord) error {
	file, err := os.Create(filepath.Join(e.outDir, filename))
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"guild_id", "user_hash", "inviter_hash", "status", "joined_at", "validated_at", "left_at"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, record := range records {
		if err := writer.Write([]string{
			strconv.FormatUint(record.GuildID, 10),
			record.UserHash,
			record.InviterHash,
			record.Status,
			record.JoinedAt.UTC().Format(time.RFC3339),
			formatOptionalTime(record.ValidatedAt),
			formatOptionalTime(record.LeftAt),
		}); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	return nil
}

// writeLeaderboard writes leaderboard records to a csv file.
func (e *Exporter) writeLeaderboard(filename string, records []*types.LeaderboardRecord) error {
	file, err := os.Create(filepath.Join(e.outDir, filename))
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"guild_id", "inviter_hash", "validated", "pending", "left_early", "total"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, record := range records {
		if err := writer.Write([]string{
			strconv.FormatUint(record.GuildID, 10),
			record.InviterHash,
			strconv.FormatInt(record.Validated, 10),
			strconv.FormatInt(record.Pending, 10),
			strconv.FormatInt(record.LeftEarly, 10),
			strconv.FormatInt(record.Total, 10),
		}); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	return nil
}

// formatOptionalTime renders a nullable timestamp as RFC3339 or an empty cell.
func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}

	return t.UTC().Format(time.RFC3339)
}
