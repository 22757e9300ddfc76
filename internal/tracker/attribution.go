package tracker

import "github.com/vexlio/doorkeep/internal/database/types"

// Attribution identifies the inviter credited for a join.
type Attribution struct {
	InviterID uint64
	Code      string
}

// Candidate is a tracked invite whose use count increased during a join.
type Candidate struct {
	RecordID  int64
	InviterID uint64
	Code      string
	Delta     int
}

// Result carries the effects of one attribution pass.
type Result struct {
	// Attribution is the credited inviter, or nil when no tracked invite
	// registered an increase (untracked invite, vanity link, expired code).
	Attribution *Attribution
	// StaleIDs are tracked invite record ids whose codes no longer exist
	// upstream. Callers queue these for background deletion.
	StaleIDs []int64
	// Ambiguous holds every increased candidate when more than one tracked
	// invite registered an increase in the same pass. The first candidate is
	// still credited; the full set is reported for diagnostics.
	Ambiguous []Candidate
}

// Attribute diffs live invite use counts against the cached snapshot across
// the guild's tracked invite records and decides who gets credit for a join.
//
// Records are visited in slice order; callers fetch them ordered by id so the
// tie-break below is deterministic. A record whose code is missing from live
// is stale: its id goes to StaleIDs and its code is removed from the cached
// mapping in place, so the caller's snapshot no longer carries dead codes.
//
// A missing cached entry counts as zero uses. That deliberately accepts any
// nonzero live count as an increase when the snapshot predates the code,
// which can misattribute a join that raced the cache. Known trade-off: the
// alternative is dropping the attribution entirely.
//
// When several records increased at once the first one wins and all of them
// are reported in Ambiguous; with per-join cache reconciliation the deltas
// are rarely above one, so this stays a diagnostic rather than a failure.
func Attribute(live, cached map[string]int, records []*types.TrackedInvite) Result {
	var (
		result     Result
		candidates []Candidate
	)

	for _, record := range records {
		liveUses, ok := live[record.Code]
		if !ok {
			result.StaleIDs = append(result.StaleIDs, record.ID)
			delete(cached, record.Code)

			continue
		}

		if delta := liveUses - cached[record.Code]; delta > 0 {
			candidates = append(candidates, Candidate{
				RecordID:  record.ID,
				InviterID: record.OwnerID,
				Code:      record.Code,
				Delta:     delta,
			})
		}
	}

	if len(candidates) == 0 {
		return result
	}

	result.Attribution = &Attribution{
		InviterID: candidates[0].InviterID,
		Code:      candidates[0].Code,
	}

	if len(candidates) > 1 {
		result.Ambiguous = candidates
	}

	return result
}
