package tracker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vexlio/doorkeep/internal/database/types"
	platform "github.com/vexlio/doorkeep/internal/discord"
	"github.com/vexlio/doorkeep/internal/setup/config"
	"github.com/vexlio/doorkeep/internal/tracker"
	"go.uber.org/zap"
)

// fakeInviteStore serves canned tracked invites and records deletions.
type fakeInviteStore struct {
	mu         sync.Mutex
	records    []*types.TrackedInvite
	getErr     error
	deletedIDs [][]int64
	deletedBy  []string
}

func (f *fakeInviteStore) GetGuildInvites(_ context.Context, _ uint64) ([]*types.TrackedInvite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}

	return f.records, nil
}

func (f *fakeInviteStore) DeleteByIDs(_ context.Context, ids []int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deletedIDs = append(f.deletedIDs, ids)

	return int64(len(ids)), nil
}

func (f *fakeInviteStore) DeleteByCode(_ context.Context, _ uint64, code string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deletedBy = append(f.deletedBy, code)

	return 1, nil
}

func (f *fakeInviteStore) allDeletedIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	var ids []int64
	for _, batch := range f.deletedIDs {
		ids = append(ids, batch...)
	}

	return ids
}

type leaveCall struct {
	guildID uint64
	userID  uint64
}

// fakeJoinStore records join and leave writes.
type fakeJoinStore struct {
	mu      sync.Mutex
	joins   []*types.MemberJoin
	leaves  []leaveCall
	joinErr error
}

func (f *fakeJoinStore) RecordJoin(_ context.Context, join *types.MemberJoin) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.joinErr != nil {
		return f.joinErr
	}

	f.joins = append(f.joins, join)

	return nil
}

func (f *fakeJoinStore) RecordLeave(_ context.Context, guildID, userID uint64, _ time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.leaves = append(f.leaves, leaveCall{guildID: guildID, userID: userID})

	return 1, nil
}

// fakePurger records purge calls.
type fakePurger struct {
	mu     sync.Mutex
	purged []uint64
}

func (f *fakePurger) Purge(_ context.Context, guildID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.purged = append(f.purged, guildID)

	return nil
}

type trackerFixture struct {
	tracker *tracker.Tracker
	cache   *tracker.UsageCache
	lister  *fakeLister
	invites *fakeInviteStore
	joins   *fakeJoinStore
	purger  *fakePurger
}

func newTrackerFixture(t *testing.T, cfg *config.Invites) *trackerFixture {
	t.Helper()

	if cfg == nil {
		cfg = &config.Invites{SweepQueueSize: 16}
	}

	f := &trackerFixture{
		lister:  &fakeLister{usage: make(map[uint64]map[string]int)},
		invites: &fakeInviteStore{},
		joins:   &fakeJoinStore{},
		purger:  &fakePurger{},
	}
	f.cache = tracker.NewUsageCache(f.lister, zap.NewNop())
	f.tracker = tracker.New(f.cache, f.lister, f.invites, f.joins, f.purger, cfg, zap.NewNop())

	t.Cleanup(f.tracker.Close)

	return f
}

func TestHandleJoinAttributesAndRecords(t *testing.T) {
	t.Parallel()

	f := newTrackerFixture(t, nil)

	f.cache.Put(100, map[string]int{"abc": 3, "def": 1})
	f.lister.usage[100] = map[string]int{"abc": 4, "def": 1}
	f.invites.records = []*types.TrackedInvite{
		record(1, 10, "abc"),
		record(2, 20, "def"),
	}

	f.tracker.HandleJoin(context.Background(), 100, 55)

	require.Len(t, f.joins.joins, 1)
	join := f.joins.joins[0]
	assert.Equal(t, uint64(100), join.GuildID)
	assert.Equal(t, uint64(55), join.UserID)
	assert.Equal(t, uint64(10), join.InviterID)
	assert.Equal(t, "abc", join.InviteCode)
	assert.False(t, join.JoinedAt.IsZero())

	// The live counts become the new snapshot for the next join.
	got, ok := f.cache.Get(100)
	require.True(t, ok)
	assert.Equal(t, map[string]int{"abc": 4, "def": 1}, got)
}

func TestHandleJoinNoIncreaseNoRecord(t *testing.T) {
	t.Parallel()

	f := newTrackerFixture(t, nil)

	f.cache.Put(100, map[string]int{"abc": 3})
	f.lister.usage[100] = map[string]int{"abc": 3}
	f.invites.records = []*types.TrackedInvite{record(1, 10, "abc")}

	f.tracker.HandleJoin(context.Background(), 100, 55)

	assert.Empty(t, f.joins.joins, "a join with no counter increase must stay unattributed")
}

func TestHandleJoinFetchFailureWritesNothing(t *testing.T) {
	t.Parallel()

	f := newTrackerFixture(t, nil)

	f.cache.Put(100, map[string]int{"abc": 3})
	f.lister.err = errors.New("gateway timeout")
	f.invites.records = []*types.TrackedInvite{record(1, 10, "abc")}

	f.tracker.HandleJoin(context.Background(), 100, 55)

	assert.Empty(t, f.joins.joins)

	// A transient failure keeps the snapshot for the next attempt.
	_, ok := f.cache.Get(100)
	assert.True(t, ok)
}

func TestHandleJoinMissingAccessInvalidatesCache(t *testing.T) {
	t.Parallel()

	f := newTrackerFixture(t, nil)

	f.cache.Put(100, map[string]int{"abc": 3})
	f.lister.err = platform.ErrMissingAccess

	f.tracker.HandleJoin(context.Background(), 100, 55)

	assert.Empty(t, f.joins.joins)

	_, ok := f.cache.Get(100)
	assert.False(t, ok, "losing invite access must drop the snapshot")
}

func TestHandleJoinSweepsStaleRecords(t *testing.T) {
	t.Parallel()

	f := newTrackerFixture(t, nil)

	f.cache.Put(100, map[string]int{"abc": 3, "dead": 7})
	f.lister.usage[100] = map[string]int{"abc": 4}
	f.invites.records = []*types.TrackedInvite{
		record(1, 10, "abc"),
		record(2, 20, "dead"),
	}

	f.tracker.HandleJoin(context.Background(), 100, 55)

	require.Len(t, f.joins.joins, 1)
	assert.Equal(t, uint64(10), f.joins.joins[0].InviterID)

	// Close drains the sweep queue before returning.
	f.tracker.Close()
	assert.Equal(t, []int64{2}, f.invites.allDeletedIDs())
}

func TestHandleJoinSettleDelayRespectsCancellation(t *testing.T) {
	t.Parallel()

	f := newTrackerFixture(t, &config.Invites{SettleDelayMS: 60_000, SweepQueueSize: 16})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.tracker.HandleJoin(ctx, 100, 55)

	assert.Empty(t, f.joins.joins)
	assert.Equal(t, 0, f.lister.callCount(), "a cancelled join must not reach upstream")
}

func TestHandleLeave(t *testing.T) {
	t.Parallel()

	f := newTrackerFixture(t, nil)

	f.tracker.HandleLeave(context.Background(), 100, 55)

	require.Len(t, f.joins.leaves, 1)
	assert.Equal(t, leaveCall{guildID: 100, userID: 55}, f.joins.leaves[0])
}

func TestHandleGuildAddWarmsCache(t *testing.T) {
	t.Parallel()

	f := newTrackerFixture(t, nil)
	f.lister.usage[100] = map[string]int{"abc": 2}

	f.tracker.HandleGuildAdd(context.Background(), 100)

	got, ok := f.cache.Get(100)
	require.True(t, ok)
	assert.Equal(t, map[string]int{"abc": 2}, got)
}

func TestHandleGuildRemove(t *testing.T) {
	t.Parallel()

	t.Run("purge disabled", func(t *testing.T) {
		t.Parallel()

		f := newTrackerFixture(t, &config.Invites{SweepQueueSize: 16})
		f.cache.Put(100, map[string]int{"abc": 1})

		f.tracker.HandleGuildRemove(context.Background(), 100)

		_, ok := f.cache.Get(100)
		assert.False(t, ok)
		assert.Empty(t, f.purger.purged)
	})

	t.Run("purge enabled", func(t *testing.T) {
		t.Parallel()

		f := newTrackerFixture(t, &config.Invites{PurgeOnGuildDelete: true, SweepQueueSize: 16})
		f.cache.Put(100, map[string]int{"abc": 1})

		f.tracker.HandleGuildRemove(context.Background(), 100)

		_, ok := f.cache.Get(100)
		assert.False(t, ok)
		assert.Equal(t, []uint64{100}, f.purger.purged)
	})
}

func TestHandleInviteCreateSeedsCache(t *testing.T) {
	t.Parallel()

	f := newTrackerFixture(t, nil)
	f.cache.Put(100, map[string]int{"abc": 3})

	f.tracker.HandleInviteCreate(100, "new", 0)

	got, ok := f.cache.Get(100)
	require.True(t, ok)
	assert.Equal(t, map[string]int{"abc": 3, "new": 0}, got)
}

func TestHandleInviteDelete(t *testing.T) {
	t.Parallel()

	f := newTrackerFixture(t, nil)
	f.cache.Put(100, map[string]int{"abc": 3, "dead": 1})

	f.tracker.HandleInviteDelete(context.Background(), 100, "dead")

	got, ok := f.cache.Get(100)
	require.True(t, ok)
	assert.Equal(t, map[string]int{"abc": 3}, got)
	assert.Equal(t, []string{"dead"}, f.invites.deletedBy)
}
