package topic

import (
	"sync"
	"time"

	"github.com/blogger-agent/pkg/logger"
)

// DefaultLockTTL bounds how long a locked topic stays excluded. Entries
// are intentionally held for the full TTL even after a run completes, to
// cover publish-time races between accounts.
const DefaultLockTTL = 5 * time.Minute

type lockEntry struct {
	lockKey       string
	accountID     uint
	originalTitle string
	sourceURL     string
	timestamp     time.Time
}

// LockService is an in-memory, time-bounded mutual-exclusion map that
// prevents concurrent account runs from selecting near-duplicate topics.
// It is process-local and lost on restart; the TTL window is short enough
// that a miss costs at worst one duplicate article.
type LockService struct {
	mu        sync.Mutex
	entries   map[string]*lockEntry
	ttl       time.Duration
	threshold float64
	now       func() time.Time
	log       *logger.Logger
}

// NewLockService creates a topic lock with the given TTL and similarity
// threshold. Zero values fall back to the defaults.
func NewLockService(ttl time.Duration, threshold float64, log *logger.Logger) *LockService {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &LockService{
		entries:   make(map[string]*lockEntry),
		ttl:       ttl,
		threshold: threshold,
		now:       time.Now,
		log:       log.WithComponent("topiclock"),
	}
}

// TryLock attempts to claim a topic for an account. It fails when another
// account currently holds a lock on the same source URL or a title more
// similar than the threshold. There is no unlock: entries self-expire.
func (s *LockService) TryLock(candidateTitle string, accountID uint, sourceURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()

	for _, entry := range s.entries {
		if entry.accountID == accountID {
			continue
		}
		if sourceURL != "" && entry.sourceURL == sourceURL {
			s.log.Debug().
				Str("title", candidateTitle).
				Uint("held_by", entry.accountID).
				Msg("Topic lock denied: same source URL")
			return false
		}
		if Similarity(candidateTitle, entry.originalTitle) > s.threshold {
			s.log.Debug().
				Str("title", candidateTitle).
				Str("held_title", entry.originalTitle).
				Uint("held_by", entry.accountID).
				Msg("Topic lock denied: similar title")
			return false
		}
	}

	key := sourceURL
	if key == "" {
		key = NormalizedTitle(candidateTitle)
	}
	s.entries[key] = &lockEntry{
		lockKey:       key,
		accountID:     accountID,
		originalTitle: candidateTitle,
		sourceURL:     sourceURL,
		timestamp:     s.now(),
	}

	s.log.Debug().
		Str("key", key).
		Uint("account_id", accountID).
		Msg("Topic locked")
	return true
}

// Len returns the number of live entries (stale ones are expired first)
func (s *LockService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	return len(s.entries)
}

// expireLocked drops entries older than the TTL. Caller must hold mu.
func (s *LockService) expireLocked() {
	cutoff := s.now().Add(-s.ttl)
	for key, entry := range s.entries {
		if entry.timestamp.Before(cutoff) {
			delete(s.entries, key)
		}
	}
}
