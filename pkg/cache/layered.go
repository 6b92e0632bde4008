package cache

import (
	"context"
	"errors"
	"time"

	"github.com/Sternrassler/beu-results/pkg/result"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Layered chains cache layers, fastest first.
// Lookup errors are logged and treated as misses so a cache outage never
// fails a batch.
type Layered struct {
	layers []Store
	ttl    time.Duration
	logger zerolog.Logger
}

// NewLayered creates a layered cache storing entries for ttl.
func NewLayered(ttl time.Duration, layers ...Store) *Layered {
	return &Layered{
		layers: layers,
		ttl:    ttl,
		logger: log.With().Str("component", "result-cache").Logger(),
	}
}

// Lookup returns the cached result for key.
func (l *Layered) Lookup(ctx context.Context, key Key) (*result.StudentResult, bool) {
	for i, layer := range l.layers {
		entry, err := layer.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, ErrCacheMiss) {
				l.logger.Warn().Err(err).Str("layer", layer.Name()).Str("key", key.String()).Msg("Cache lookup failed")
			}
			continue
		}

		CacheHits.WithLabelValues(layer.Name()).Inc()
		l.logger.Debug().Str("layer", layer.Name()).Str("key", key.String()).Msg("Cache hit")

		// Back-fill faster layers
		for _, faster := range l.layers[:i] {
			if err := faster.Set(ctx, key, entry); err != nil {
				l.logger.Warn().Err(err).Str("layer", faster.Name()).Msg("Cache back-fill failed")
			}
		}
		return entry.Result, true
	}

	CacheMisses.Inc()
	return nil, false
}

// Store writes res to every layer.
func (l *Layered) Store(ctx context.Context, key Key, res *result.StudentResult) {
	if res == nil || l.ttl <= 0 {
		return
	}
	entry := NewEntry(res, l.ttl)
	for _, layer := range l.layers {
		if err := layer.Set(ctx, key, entry); err != nil {
			l.logger.Warn().Err(err).Str("layer", layer.Name()).Str("key", key.String()).Msg("Cache store failed")
			continue
		}
		CacheStores.WithLabelValues(layer.Name()).Inc()
	}
}
