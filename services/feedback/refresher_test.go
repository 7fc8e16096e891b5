package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefresherInitialSnapshotNeverNil(t *testing.T) {
	store := openTestStore(t)
	r, err := NewRefresher(store, time.Hour, "", nil)
	require.NoError(t, err)

	require.NotNil(t, r.Current())
	assert.Equal(t, 0, r.Current().Len())
}

func TestRefresherManualRebuild(t *testing.T) {
	store := openTestStore(t)
	r, err := NewRefresher(store, time.Hour, "", nil)
	require.NoError(t, err)

	key := PatternKey{Kind: "passive_voice", Lemma: "review", ContentType: "technical"}
	require.NoError(t, store.RecordDecision(key, true))
	assert.Equal(t, 0, r.Current().Len(), "rebuild must be explicit, not implicit on write")

	r.Rebuild()
	stats, ok := r.Current().Lookup(key)
	require.True(t, ok)
	assert.Equal(t, 1, stats.Accepted)
}

func TestRefresherWatcherCoalescesWriteBursts(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(DefaultStoreConfig(dir))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	r, err := NewRefresher(store, time.Hour, dir, nil)
	require.NoError(t, err)
	r.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go r.Run(ctx)

	keys := []PatternKey{
		{Kind: "passive_voice", Lemma: "flush", ContentType: "technical"},
		{Kind: "wordiness", Lemma: "utilize", ContentType: "general"},
		{Kind: "weak_wording", Lemma: "very", ContentType: "general"},
	}
	for _, key := range keys {
		require.NoError(t, store.RecordDecision(key, true))
	}
	lastWrite := time.Now()

	// All three decisions must land in one watcher-triggered rebuild.
	require.Eventually(t, func() bool {
		return r.Current().Len() == len(keys)
	}, 5*time.Second, 10*time.Millisecond)

	// The rebuild cannot have run before the directory went quiet for a
	// full debounce window after the final write.
	assert.False(t, r.Current().BuiltAt().Before(lastWrite.Add(r.debounce)),
		"rebuild ran before the debounce window elapsed")
}
