package tracker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vexlio/doorkeep/internal/database/types"
	"github.com/vexlio/doorkeep/internal/tracker"
)

func record(id int64, owner uint64, code string) *types.TrackedInvite {
	return &types.TrackedInvite{ID: id, OwnerID: owner, GuildID: 1, Code: code}
}

func TestAttribute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		live          map[string]int
		cached        map[string]int
		records       []*types.TrackedInvite
		wantInviter   uint64
		wantCode      string
		wantNoCredit  bool
		wantStaleIDs  []int64
		wantAmbiguous int
	}{
		{
			name:        "single increase wins",
			live:        map[string]int{"alpha": 6},
			cached:      map[string]int{"alpha": 5},
			records:     []*types.TrackedInvite{record(1, 42, "alpha")},
			wantInviter: 42,
			wantCode:    "alpha",
		},
		{
			name:        "unchanged code is ignored",
			live:        map[string]int{"alpha": 5, "bravo": 4},
			cached:      map[string]int{"alpha": 5, "bravo": 3},
			records:     []*types.TrackedInvite{record(1, 42, "alpha"), record(2, 77, "bravo")},
			wantInviter: 77,
			wantCode:    "bravo",
		},
		{
			name:         "no increase means no attribution",
			live:         map[string]int{"alpha": 5},
			cached:       map[string]int{"alpha": 5},
			records:      []*types.TrackedInvite{record(1, 42, "alpha")},
			wantNoCredit: true,
		},
		{
			name:         "untracked join credits nobody",
			live:         map[string]int{"alpha": 5, "vanity": 9},
			cached:       map[string]int{"alpha": 5, "vanity": 8},
			records:      []*types.TrackedInvite{record(1, 42, "alpha")},
			wantNoCredit: true,
		},
		{
			name:          "multiple increases credit first and report all",
			live:          map[string]int{"alpha": 6, "bravo": 5},
			cached:        map[string]int{"alpha": 5, "bravo": 3},
			records:       []*types.TrackedInvite{record(1, 42, "alpha"), record(2, 77, "bravo")},
			wantInviter:   42,
			wantCode:      "alpha",
			wantAmbiguous: 2,
		},
		{
			name:        "missing cache entry falls back to any nonzero use",
			live:        map[string]int{"alpha": 3},
			cached:      map[string]int{},
			records:     []*types.TrackedInvite{record(1, 42, "alpha")},
			wantInviter: 42,
			wantCode:    "alpha",
		},
		{
			name:         "missing cache entry with zero live uses is no signal",
			live:         map[string]int{"alpha": 0},
			cached:       map[string]int{},
			records:      []*types.TrackedInvite{record(1, 42, "alpha")},
			wantNoCredit: true,
		},
		{
			name:         "stale record detected alongside attribution",
			live:         map[string]int{"bravo": 2},
			cached:       map[string]int{"alpha": 5, "bravo": 1},
			records:      []*types.TrackedInvite{record(1, 42, "alpha"), record(2, 77, "bravo")},
			wantInviter:  77,
			wantCode:     "bravo",
			wantStaleIDs: []int64{1},
		},
		{
			name:         "stale record without attribution",
			live:         map[string]int{},
			cached:       map[string]int{"alpha": 5},
			records:      []*types.TrackedInvite{record(1, 42, "alpha")},
			wantNoCredit: true,
			wantStaleIDs: []int64{1},
		},
		{
			name:         "no records yields empty result",
			live:         map[string]int{"alpha": 6},
			cached:       map[string]int{"alpha": 5},
			records:      nil,
			wantNoCredit: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := tracker.Attribute(tt.live, tt.cached, tt.records)

			if tt.wantNoCredit {
				assert.Nil(t, result.Attribution)
			} else {
				require.NotNil(t, result.Attribution)
				assert.Equal(t, tt.wantInviter, result.Attribution.InviterID)
				assert.Equal(t, tt.wantCode, result.Attribution.Code)
			}

			assert.Equal(t, tt.wantStaleIDs, result.StaleIDs)
			assert.Len(t, result.Ambiguous, tt.wantAmbiguous)
		})
	}
}

func TestAttributeRemovesStaleCodesFromCached(t *testing.T) {
	t.Parallel()

	cached := map[string]int{"alpha": 5, "bravo": 3}
	live := map[string]int{"bravo": 4}
	records := []*types.TrackedInvite{record(1, 42, "alpha"), record(2, 77, "bravo")}

	result := tracker.Attribute(live, cached, records)

	require.Equal(t, []int64{1}, result.StaleIDs)
	assert.NotContains(t, cached, "alpha", "stale code must be removed from the cached mapping")
	assert.Contains(t, cached, "bravo")
}

func TestAttributeDeterministicTieBreak(t *testing.T) {
	t.Parallel()

	live := map[string]int{"alpha": 2, "bravo": 2, "charlie": 2}
	records := []*types.TrackedInvite{
		record(3, 10, "charlie"),
		record(5, 20, "alpha"),
		record(9, 30, "bravo"),
	}

	// All three increased; the first record in slice order wins every time.
	for range 10 {
		result := tracker.Attribute(live, map[string]int{"alpha": 1, "bravo": 1, "charlie": 1}, records)

		require.NotNil(t, result.Attribution)
		assert.Equal(t, uint64(10), result.Attribution.InviterID)
		assert.Equal(t, "charlie", result.Attribution.Code)
		assert.Len(t, result.Ambiguous, 3)
	}
}

func TestAttributeAmbiguousIncludesDeltas(t *testing.T) {
	t.Parallel()

	live := map[string]int{"alpha": 7, "bravo": 4}
	cached := map[string]int{"alpha": 5, "bravo": 3}
	records := []*types.TrackedInvite{record(1, 42, "alpha"), record(2, 77, "bravo")}

	result := tracker.Attribute(live, cached, records)

	require.Len(t, result.Ambiguous, 2)
	assert.Equal(t, 2, result.Ambiguous[0].Delta)
	assert.Equal(t, int64(1), result.Ambiguous[0].RecordID)
	assert.Equal(t, 1, result.Ambiguous[1].Delta)
	assert.Equal(t, int64(2), result.Ambiguous[1].RecordID)
}

func TestAttributeFallbackDeltaIsFullLiveCount(t *testing.T) {
	t.Parallel()

	// A code the cached snapshot has never seen counts from zero, so the
	// whole live count becomes the delta.
	live := map[string]int{"alpha": 3}
	records := []*types.TrackedInvite{record(1, 42, "alpha"), record(2, 77, "alpha2")}

	result := tracker.Attribute(live, map[string]int{}, records)

	require.NotNil(t, result.Attribution)
	assert.Equal(t, uint64(42), result.Attribution.InviterID)
	assert.Equal(t, []int64{2}, result.StaleIDs)
}
