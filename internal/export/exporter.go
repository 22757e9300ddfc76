// Package export dumps member join records and per-inviter aggregates to
// portable files, hashing member and inviter identities so the output can be
// shared without exposing raw Discord IDs.
package export

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bytedance/sonic"
	dbTypes "github.com/vexlio/doorkeep/internal/database/types"
	"github.com/vexlio/doorkeep/internal/database/types/enum"
	"github.com/vexlio/doorkeep/internal/export/csv"
	"github.com/vexlio/doorkeep/internal/export/sqlite"
	"github.com/vexlio/doorkeep/internal/export/types"
	"github.com/vexlio/doorkeep/internal/setup"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format represents a supported export format.
type Format string

const (
	FormatSQLite Format = "sqlite"
	FormatCSV    Format = "csv"
)

const (
	// EngineVersion represents the version of the export engine.
	// This should be updated when making breaking changes to the export format.
	EngineVersion = "1.0.0"
)

// Config holds the configuration for exports. The salt never reaches the
// config file written next to the export; holders of the output must not be
// able to reverse the hashes by brute force over known IDs.
type Config struct {
	ExportVersion string `json:"exportVersion"`
	Salt          string `json:"-"`
	Description   string `json:"description"`
	HashType      string `json:"hashType"`
	Iterations    uint32 `json:"iterations"`
	Memory        uint32 `json:"memory,omitempty"`
	GuildID       uint64 `json:"guildID,omitempty"`
	Concurrency   int64  `json:"-"`
}

// Exporter handles exporting member joins and leaderboard standings.
type Exporter struct {
	app     *setup.App
	outDir  string
	config  *Config
	formats []Format
}

// New creates a new exporter instance.
func New(app *setup.App, outDir string, config *Config) *Exporter {
	return &Exporter{
		app:    app,
		outDir: outDir,
		config: config,
		formats: []Format{
			FormatSQLite,
			FormatCSV,
		},
	}
}

// ExportAll exports all data in all supported formats.
func (e *Exporter) ExportAll(ctx context.Context) error {
	// Print export configuration
	fmt.Printf("Starting export with configuration:\n")
	fmt.Printf("  Hash Type: %s\n", e.config.HashType)
	fmt.Printf("  Concurrency: %d workers\n", e.config.Concurrency)
	fmt.Printf("  Iterations: %d\n", e.config.Iterations)

	if e.config.HashType == string(HashTypeArgon2id) {
		fmt.Printf("  Memory: %d MB\n", e.config.Memory)
	}

	if e.config.GuildID != 0 {
		fmt.Printf("  Guild Filter: %d\n", e.config.GuildID)
	}

	fmt.Printf("  Output Directory: %s\n", e.outDir)
	fmt.Printf("  Export Version: %s\n", e.config.ExportVersion)
	fmt.Printf("  Engine Version: %s\n", EngineVersion)
	fmt.Printf("  Description: %s\n\n", e.config.Description)

	// Get the join records to export
	fmt.Printf("Fetching data from database...\n")

	joins, err := e.app.DB.Model().Join().GetAllJoins(ctx, e.config.GuildID)
	if err != nil {
		return fmt.Errorf("failed to get joins: %w", err)
	}

	fmt.Printf("Found %d join records to export\n\n", len(joins))

	// Hash every identity that appears in the output
	fmt.Printf("Hashing member and inviter IDs...\n")

	hashes := e.hashIdentities(joins)

	fmt.Printf("\nCompleted hashing all records\n\n")

	joinRecords := buildJoinRecords(joins, hashes)
	leaderboardRecords := buildLeaderboardRecords(joins, hashes)

	// Save config file
	fmt.Printf("Saving export configuration...\n")

	configPath := filepath.Join(e.outDir, "export_config.json")

	// Create config with engine version for JSON
	jsonConfig := struct {
		*Config

		EngineVersion string `json:"engineVersion"`
	}{
		Config:        e.config,
		EngineVersion: EngineVersion,
	}

	configData, err := sonic.MarshalIndent(jsonConfig, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal export config: %w", err)
	}

	if err := os.WriteFile(configPath, configData, 0o600); err != nil {
		return fmt.Errorf("failed to write export config: %w", err)
	}

	// Export each format
	fmt.Printf("Exporting data in %d formats...\n", len(e.formats))

	for _, format := range e.formats {
		fmt.Printf("  Writing %s format...\n", format)

		if err := e.export(format, joinRecords, leaderboardRecords); err != nil {
			return fmt.Errorf("failed to export %s format: %w", format, err)
		}
	}

	fmt.Printf("\nExport completed successfully\n")
	fmt.Printf("Files written to: %s\n", e.outDir)

	return nil
}

// hashIdentities hashes each distinct member and inviter ID once and returns
// the lookup table. Members who also invited someone get a single hash.
func (e *Exporter) hashIdentities(joins []*dbTypes.MemberJoin) map[uint64]string {
	seen := make(map[uint64]struct{}, len(joins)*2)
	ids := make([]uint64, 0, len(joins)*2)

	for _, join := range joins {
		for _, id := range []uint64{join.UserID, join.InviterID} {
			if _, ok := seen[id]; ok {
				continue
			}

			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	results := hashIDs(ids, e.config.Salt, HashType(e.config.HashType),
		e.config.Concurrency, e.config.Iterations, e.config.Memory)

	hashes := make(map[uint64]string, len(ids))
	for i, id := range ids {
		hashes[id] = results[i]
	}

	return hashes
}

// buildJoinRecords converts database rows to export records using the
// precomputed hash table.
func buildJoinRecords(joins []*dbTypes.MemberJoin, hashes map[uint64]string) []*types.JoinRecord {
	records := make([]*types.JoinRecord, len(joins))
	for i, join := range joins {
		records[i] = &types.JoinRecord{
			GuildID:     join.GuildID,
			UserHash:    hashes[join.UserID],
			InviterHash: hashes[join.InviterID],
			Status:      join.Status.String(),
			JoinedAt:    join.JoinedAt,
			ValidatedAt: join.ValidatedAt,
			LeftAt:      join.LeftAt,
		}
	}

	return records
}

// buildLeaderboardRecords aggregates the joins per (guild, inviter) pair the
// same way the leaderboard query does, ordered by validated count within each
// guild for stable output.
func buildLeaderboardRecords(joins []*dbTypes.MemberJoin, hashes map[uint64]string) []*types.LeaderboardRecord {
	type inviterKey struct {
		guildID   uint64
		inviterID uint64
	}

	counts := make(map[inviterKey]*types.LeaderboardRecord)

	for _, join := range joins {
		key := inviterKey{guildID: join.GuildID, inviterID: join.InviterID}

		record, ok := counts[key]
		if !ok {
			record = &types.LeaderboardRecord{
				GuildID:     join.GuildID,
				InviterHash: hashes[join.InviterID],
			}
			counts[key] = record
		}

		record.Total++

		switch join.Status {
		case enum.JoinStatusValidated:
			record.Validated++
		case enum.JoinStatusPending:
			record.Pending++
		case enum.JoinStatusLeftEarly:
			record.LeftEarly++
		}
	}

	records := make([]*types.LeaderboardRecord, 0, len(counts))
	for _, record := range counts {
		records = append(records, record)
	}

	slices.SortFunc(records, func(a, b *types.LeaderboardRecord) int {
		if c := cmp.Compare(a.GuildID, b.GuildID); c != 0 {
			return c
		}

		if c := cmp.Compare(b.Validated, a.Validated); c != 0 {
			return c
		}

		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}

		return cmp.Compare(a.InviterHash, b.InviterHash)
	})

	return records
}

// export handles exporting data in the specified format.
func (e *Exporter) export(format Format, joinRecords []*types.JoinRecord, leaderboardRecords []*types.LeaderboardRecord) error {
	var exporter interface {
		Export(joinRecords []*types.JoinRecord, leaderboardRecords []*types.LeaderboardRecord) error
	}

	switch format {
	case FormatSQLite:
		exporter = sqlite.New(e.outDir)
	case FormatCSV:
		exporter = csv.New(e.outDir)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return exporter.Export(joinRecords, leaderboardRecords)
}
