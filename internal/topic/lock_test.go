package topic

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogger-agent/pkg/logger"
)

func newTestLock(t *testing.T) *LockService {
	t.Helper()
	return NewLockService(DefaultLockTTL, DefaultThreshold, logger.Default())
}

func TestTryLockGrantsFirstCaller(t *testing.T) {
	lock := newTestLock(t)
	assert.True(t, lock.TryLock("GPT-5 Launch Stuns Developers", 1, "https://example.com/gpt5"))
	assert.Equal(t, 1, lock.Len())
}

func TestTryLockDeniesSimilarTitleForOtherAccount(t *testing.T) {
	lock := newTestLock(t)
	require.True(t, lock.TryLock("OpenAI launches GPT-5 with reasoning upgrades", 1, ""))

	// Same story, different wording, different account
	assert.False(t, lock.TryLock("GPT-5 launches with huge reasoning upgrades from OpenAI", 2, ""))
}

func TestTryLockDeniesSameSourceURL(t *testing.T) {
	lock := newTestLock(t)
	require.True(t, lock.TryLock("Completely unrelated headline about cooking", 1, "https://example.com/story"))

	// Different title but identical source URL
	assert.False(t, lock.TryLock("Stock markets hit record high today", 2, "https://example.com/story"))
}

func TestTryLockAllowsSameAccountRepeat(t *testing.T) {
	lock := newTestLock(t)
	require.True(t, lock.TryLock("GPT-5 Launch Stuns Developers", 1, ""))

	// The holding account is never blocked by its own entry
	assert.True(t, lock.TryLock("GPT-5 Launch Stuns Developers", 1, ""))
}

func TestTryLockAllowsDistinctTopics(t *testing.T) {
	lock := newTestLock(t)
	require.True(t, lock.TryLock("OpenAI launches GPT-5 with reasoning upgrades", 1, ""))
	assert.True(t, lock.TryLock("Fed cuts interest rates for first time since 2024", 2, ""))
	assert.Equal(t, 2, lock.Len())
}

func TestTryLockExpiresAfterTTL(t *testing.T) {
	lock := newTestLock(t)

	now := time.Now()
	lock.now = func() time.Time { return now }
	require.True(t, lock.TryLock("OpenAI launches GPT-5 with reasoning upgrades", 1, ""))

	// Still inside the TTL window: denied
	lock.now = func() time.Time { return now.Add(4 * time.Minute) }
	assert.False(t, lock.TryLock("GPT-5 launches with huge reasoning upgrades from OpenAI", 2, ""))

	// Past the TTL: entry is expired, the same request succeeds
	lock.now = func() time.Time { return now.Add(DefaultLockTTL + time.Second) }
	assert.True(t, lock.TryLock("GPT-5 launches with huge reasoning upgrades from OpenAI", 2, ""))
}

func TestTryLockConcurrentSingleWinner(t *testing.T) {
	lock := newTestLock(t)

	const accounts = 8
	var wg sync.WaitGroup
	results := make([]bool, accounts)
	for i := 0; i < accounts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = lock.TryLock("OpenAI launches GPT-5 with reasoning upgrades", uint(i+1), "")
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, ok := range results {
		if ok {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}
