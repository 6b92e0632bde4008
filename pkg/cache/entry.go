package cache

import (
	"time"

	"github.com/Sternrassler/beu-results/pkg/result"
)

// Entry represents a cached student result.
type Entry struct {
	// Result is the parsed portal page
	Result *result.StudentResult `json:"result"`

	// Expires is when the entry becomes stale
	Expires time.Time `json:"expires"`

	// CachedAt is when the entry was stored
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry wraps res for storage with the given time to live.
func NewEntry(res *result.StudentResult, ttl time.Duration) *Entry {
	now := time.Now()
	return &Entry{
		Result:   res,
		Expires:  now.Add(ttl),
		CachedAt: now,
	}
}

// IsExpired returns true if the cache entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
