package tracker_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vexlio/doorkeep/internal/tracker"
	"go.uber.org/zap"
)

// fakeLister serves canned invite usage per guild and counts fetches.
type fakeLister struct {
	mu    sync.Mutex
	usage map[uint64]map[string]int
	err   error
	calls int
}

func (f *fakeLister) GuildInviteUses(_ context.Context, guildID uint64) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++

	if f.err != nil {
		return nil, f.err
	}

	usage := make(map[string]int, len(f.usage[guildID]))
	for code, uses := range f.usage[guildID] {
		usage[code] = uses
	}

	return usage, nil
}

func (f *fakeLister) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

func TestUsageCacheRefresh(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{usage: map[uint64]map[string]int{
		100: {"abc": 3, "def": 0},
	}}
	cache := tracker.NewUsageCache(lister, zap.NewNop())

	usage, err := cache.Refresh(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"abc": 3, "def": 0}, usage)

	got, ok := cache.Get(100)
	require.True(t, ok)
	assert.Equal(t, map[string]int{"abc": 3, "def": 0}, got)

	// The entry holds exactly the live codes, nothing else.
	lister.usage[100] = map[string]int{"abc": 4}
	usage, err = cache.Refresh(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"abc": 4}, usage)
}

func TestUsageCacheRefreshFailureDropsEntry(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{usage: map[uint64]map[string]int{100: {"abc": 1}}}
	cache := tracker.NewUsageCache(lister, zap.NewNop())

	_, err := cache.Refresh(context.Background(), 100)
	require.NoError(t, err)

	// A failed refresh must not leave the stale snapshot behind.
	lister.err = errors.New("gateway timeout")
	_, err = cache.Refresh(context.Background(), 100)
	require.Error(t, err)

	_, ok := cache.Get(100)
	assert.False(t, ok)
}

func TestUsageCacheEnsureFetchesOnce(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{usage: map[uint64]map[string]int{100: {"abc": 1}}}
	cache := tracker.NewUsageCache(lister, zap.NewNop())

	for range 3 {
		usage, err := cache.Ensure(context.Background(), 100)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"abc": 1}, usage)
	}

	assert.Equal(t, 1, lister.callCount(), "Ensure should only hit upstream on a miss")
}

func TestUsageCacheGetReturnsCopy(t *testing.T) {
	t.Parallel()

	cache := tracker.NewUsageCache(&fakeLister{}, zap.NewNop())
	cache.Put(100, map[string]int{"abc": 1})

	got, ok := cache.Get(100)
	require.True(t, ok)

	got["abc"] = 999
	got["new"] = 1

	fresh, ok := cache.Get(100)
	require.True(t, ok)
	assert.Equal(t, map[string]int{"abc": 1}, fresh)
}

func TestUsageCachePutCopiesInput(t *testing.T) {
	t.Parallel()

	cache := tracker.NewUsageCache(&fakeLister{}, zap.NewNop())

	usage := map[string]int{"abc": 1}
	cache.Put(100, usage)
	usage["abc"] = 42

	got, ok := cache.Get(100)
	require.True(t, ok)
	assert.Equal(t, 1, got["abc"])
}

func TestUsageCacheSetUsesAndForget(t *testing.T) {
	t.Parallel()

	cache := tracker.NewUsageCache(&fakeLister{}, zap.NewNop())

	// Without an entry both are no-ops; the next refresh builds the snapshot.
	cache.SetUses(100, "abc", 1)
	cache.Forget(100, "abc")

	_, ok := cache.Get(100)
	assert.False(t, ok)

	cache.Put(100, map[string]int{"abc": 1})
	cache.SetUses(100, "def", 0)
	cache.Forget(100, "abc")

	got, ok := cache.Get(100)
	require.True(t, ok)
	assert.Equal(t, map[string]int{"def": 0}, got)
}

func TestUsageCacheInvalidate(t *testing.T) {
	t.Parallel()

	cache := tracker.NewUsageCache(&fakeLister{}, zap.NewNop())
	cache.Put(100, map[string]int{"abc": 1})
	cache.Put(200, map[string]int{"def": 2})

	cache.Invalidate(100)

	_, ok := cache.Get(100)
	assert.False(t, ok)

	got, ok := cache.Get(200)
	require.True(t, ok)
	assert.Equal(t, map[string]int{"def": 2}, got)
}
