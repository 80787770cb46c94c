package tablebase

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hailam/chessrelocate/internal/board"
	"github.com/hailam/chessrelocate/internal/stats"
)

// CachedProber memoises Probe results by position hash.
type CachedProber struct {
	inner Prober
	cache *lru.Cache[uint64, ProbeResult]
	stats stats.Collector
}

var _ Prober = (*CachedProber)(nil)

// NewCachedProber wraps inner with an LRU cache of size entries.
func NewCachedProber(inner Prober, size int, collector stats.Collector) (*CachedProber, error) {
	c, err := lru.New[uint64, ProbeResult](size)
	if err != nil {
		return nil, err
	}
	if collector == nil {
		collector = stats.Noop{}
	}
	return &CachedProber{inner: inner, cache: c, stats: collector}, nil
}

// Probe implements Prober. Failed probes are not cached.
func (cp *CachedProber) Probe(ctx context.Context, pos *board.Position) (ProbeResult, error) {
	if res, ok := cp.cache.Get(pos.Hash); ok {
		cp.stats.IncCounter(stats.MetricTBCacheHits, 1)
		return res, nil
	}
	cp.stats.IncCounter(stats.MetricTBCacheMisses, 1)
	res, err := cp.inner.Probe(ctx, pos)
	if err != nil {
		return res, err
	}
	cp.cache.Add(pos.Hash, res)
	return res, nil
}

// ProbeRoot implements Prober; root probes are not cached.
func (cp *CachedProber) ProbeRoot(ctx context.Context, pos *board.Position) (RootResult, error) {
	return cp.inner.ProbeRoot(ctx, pos)
}

// MaxPieces implements Prober.
func (cp *CachedProber) MaxPieces() int { return cp.inner.MaxPieces() }

// Len is the number of cached entries.
func (cp *CachedProber) Len() int { return cp.cache.Len() }

// Purge empties the cache.
func (cp *CachedProber) Purge() { cp.cache.Purge() }
