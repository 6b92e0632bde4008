// Package cache stores parsed student results so repeated batch requests do
// not hit the results portal again.
//
// Only successful lookups are cached. "No record" answers and fetch errors
// always go back to the portal, since a result may be published later.
//
// Two layers are provided:
//
//   - MemoryLayer, an in-process expirable LRU
//   - Manager, a Redis backend shared by every replica
//
// Layered chains them, checking the memory layer first and back-filling it
// on a Redis hit.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	results := cache.NewLayered(6*time.Hour,
//		cache.NewMemoryLayer(4096, 6*time.Hour),
//		cache.NewManager(redisClient),
//	)
//
//	key := cache.Key{Year: "2023", Semester: "I", RegNo: "22104134010"}
//	if res, ok := results.Lookup(ctx, key); ok {
//		// served from cache
//	}
//	results.Store(ctx, key, res)
//
// # Metrics
//
//   - beu_cache_hits_total{layer} - Cache hits per layer
//   - beu_cache_misses_total - Lookups that missed every layer
//   - beu_cache_stores_total{layer} - Entries written per layer
//   - beu_cache_errors_total{operation} - Cache operation errors
package cache
