// Package validation implements the periodic join validation task: pending
// join records older than the grace period are checked against live guild
// membership and transitioned to validated or left early.
package validation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vexlio/doorkeep/internal/database/types"
	"github.com/vexlio/doorkeep/internal/setup/config"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// JoinStore is the join-record storage surface the validator consumes.
// Satisfied by *models.JoinModel.
type JoinStore interface {
	GetValidationCandidates(ctx context.Context, cutoff time.Time, limit int) ([]*types.MemberJoin, error)
	MarkValidated(ctx context.Context, keys []types.JoinKey, at time.Time) (int64, error)
	MarkLeftEarly(ctx context.Context, keys []types.JoinKey, at time.Time) (int64, error)
}

// PresenceChecker resolves live membership state against the platform.
// Satisfied by *discord.Adapter.
type PresenceChecker interface {
	// KnownGuild reports whether the bot is still in the guild.
	KnownGuild(ctx context.Context, guildID uint64) (bool, error)
	// IsMember reports whether the user is currently in the guild. A
	// confirmed absence is (false, nil); any error means unknown.
	IsMember(ctx context.Context, guildID, userID uint64) (bool, error)
}

// Plan is the set of transitions one tick decided on. Skipped counts
// candidates left pending this tick: unknown guilds and failed lookups.
type Plan struct {
	Validate []types.JoinKey
	Leave    []types.JoinKey
	Skipped  int
}

// Summary reports what one tick actually changed.
type Summary struct {
	Candidates int
	Validated  int64
	LeftEarly  int64
	Skipped    int
	// Mismatch is the number of planned transitions that did not apply
	// because the row was no longer pending at write time. A nonzero value
	// means the leave handler won a race; it is reported, never fatal.
	Mismatch int64
}

// Validator decides and applies join state transitions for one tick.
type Validator struct {
	joins   JoinStore
	checker PresenceChecker
	config  *config.Validation
	logger  *zap.Logger
}

// NewValidator creates a validator over the given store and checker.
func NewValidator(joins JoinStore, checker PresenceChecker, cfg *config.Validation, logger *zap.Logger) *Validator {
	return &Validator{
		joins:   joins,
		checker: checker,
		config:  cfg,
		logger:  logger.Named("validator"),
	}
}

// FindCandidates returns pending joins due for validation at now. The cutoff
// boundary is inclusive: a join made exactly one grace period ago is due.
func (v *Validator) FindCandidates(ctx context.Context, now time.Time) ([]*types.MemberJoin, error) {
	cutoff := now.Add(-time.Duration(v.config.GracePeriodDays) * 24 * time.Hour)

	return v.joins.GetValidationCandidates(ctx, cutoff, v.config.BatchSize)
}

// presence is the resolved membership state for one (guild, user) pair.
type presence int

const (
	presenceSkip presence = iota
	presencePresent
	presenceAbsent
)

// ResolvePresence checks live membership for every candidate and plans the
// resulting transitions. Lookups are memoized per (guild, user) pair within
// the tick and run concurrently, bounded by the configured limit.
//
// A candidate in a guild the bot no longer knows is skipped entirely: it
// stays pending and is only retried if the guild becomes known again. A
// lookup that fails with anything other than a confirmed absence is skipped
// for this tick and retried on the next one.
func (v *Validator) ResolvePresence(ctx context.Context, candidates []*types.MemberJoin) *Plan {
	plan := &Plan{}

	// Resolve guild knowledge once per guild.
	knownGuilds := make(map[uint64]bool)

	for _, candidate := range candidates {
		if _, ok := knownGuilds[candidate.GuildID]; ok {
			continue
		}

		known, err := v.checker.KnownGuild(ctx, candidate.GuildID)
		if err != nil {
			v.logger.Warn("Failed to resolve guild, skipping its candidates this tick",
				zap.Uint64("guildID", candidate.GuildID),
				zap.Error(err))

			known = false
		}

		knownGuilds[candidate.GuildID] = known
	}

	// Resolve membership once per unique (guild, user) pair.
	unique := make([]types.JoinKey, 0, len(candidates))
	seen := make(map[types.JoinKey]struct{}, len(candidates))

	for _, candidate := range candidates {
		key := candidate.Key()
		if _, ok := seen[key]; ok || !knownGuilds[key.GuildID] {
			continue
		}

		seen[key] = struct{}{}

		unique = append(unique, key)
	}

	results := make(map[types.JoinKey]presence, len(unique))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	sem := semaphore.NewWeighted(int64(max(v.config.PresenceConcurrency, 1)))

	for _, key := range unique {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)

		go func(key types.JoinKey) {
			defer wg.Done()
			defer sem.Release(1)

			state := v.checkMember(ctx, key)

			mu.Lock()
			results[key] = state
			mu.Unlock()
		}(key)
	}

	wg.Wait()

	for _, candidate := range candidates {
		key := candidate.Key()
		if !knownGuilds[key.GuildID] {
			plan.Skipped++
			continue
		}

		switch results[key] {
		case presencePresent:
			plan.Validate = append(plan.Validate, key)
		case presenceAbsent:
			plan.Leave = append(plan.Leave, key)
		case presenceSkip:
			plan.Skipped++
		}
	}

	return plan
}

// Apply runs the planned transitions as two bulk conditional updates. The
// batches are independent: a failure in one does not block the other. Rows
// that were no longer pending at write time are counted in the summary's
// Mismatch, not treated as errors.
func (v *Validator) Apply(ctx context.Context, plan *Plan, now time.Time) (*Summary, error) {
	summary := &Summary{Skipped: plan.Skipped}

	var errs []error

	validated, err := v.joins.MarkValidated(ctx, plan.Validate, now)
	if err != nil {
		v.logger.Error("Failed to mark joins validated",
			zap.Int("planned", len(plan.Validate)),
			zap.Error(err))

		errs = append(errs, err)
	} else {
		summary.Validated = validated
		summary.Mismatch += int64(len(plan.Validate)) - validated
	}

	leftEarly, err := v.joins.MarkLeftEarly(ctx, plan.Leave, now)
	if err != nil {
		v.logger.Error("Failed to mark joins left early",
			zap.Int("planned", len(plan.Leave)),
			zap.Error(err))

		errs = append(errs, err)
	} else {
		summary.LeftEarly = leftEarly
		summary.Mismatch += int64(len(plan.Leave)) - leftEarly
	}

	return summary, errors.Join(errs...)
}

// RunTick executes one full validation pass at the given time. Re-running on
// the same data changes nothing: the candidate query only selects pending
// rows and every transition is terminal.
func (v *Validator) RunTick(ctx context.Context, now time.Time) (*Summary, error) {
	candidates, err := v.FindCandidates(ctx, now)
	if err != nil {
		return nil, err
	}

	plan := v.ResolvePresence(ctx, candidates)

	summary, err := v.Apply(ctx, plan, now)
	if summary != nil {
		summary.Candidates = len(candidates)
	}

	return summary, err
}

// checkMember resolves one pair's membership state.
func (v *Validator) checkMember(ctx context.Context, key types.JoinKey) presence {
	member, err := v.checker.IsMember(ctx, key.GuildID, key.UserID)
	if err != nil {
		v.logger.Warn("Failed to check member presence, skipping this tick",
			zap.Uint64("guildID", key.GuildID),
			zap.Uint64("userID", key.UserID),
			zap.Error(err))

		return presenceSkip
	}

	if member {
		return presencePresent
	}

	return presenceAbsent
}
