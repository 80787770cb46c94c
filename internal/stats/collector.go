// Package stats collects engine and enumeration metrics behind a small
// interface so callers never depend on a metrics backend.
package stats

// Metric names.
const (
	MetricCommands        = "chessrelocate_commands_total"
	MetricSearches        = "chessrelocate_searches_total"
	MetricNodes           = "chessrelocate_nodes_total"
	MetricHashFull        = "chessrelocate_hash_full_permille"
	MetricEnumerations    = "chessrelocate_enumerations_total"
	MetricEnumLeaves      = "chessrelocate_enumeration_leaves_total"
	MetricEnumSeconds     = "chessrelocate_enumeration_seconds"
	MetricTBCacheHits     = "chessrelocate_tablebase_cache_hits_total"
	MetricTBCacheMisses   = "chessrelocate_tablebase_cache_misses_total"
	MetricTBProbeFailures = "chessrelocate_tablebase_probe_failures_total"
)

// Collector receives metric updates.
type Collector interface {
	IncCounter(name string, delta int64)
	SetGauge(name string, value int64)
	ObserveHistogram(name string, value float64)
}
