package domain

// CacheStats holds response cache counters.
// Counters only grow for the process lifetime; clearing expired entries
// removes stale entries without resetting them.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Expired int64 `json:"expired"`
	Errors  int64 `json:"errors"`
}
