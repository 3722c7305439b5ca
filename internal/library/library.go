// Package library is the single logical owner of the track collection and
// its inverted index. Every index mutation and every read funnels through
// one Library, whose RWMutex realises the single-writer contract the index
// itself relies on; the index and planner carry no locking of their own.
//
// The library composes the two independent execution paths over the same
// collection: the indexed path (inverted index + verification, sub-millisecond
// on a warm index) and the strategy path (threshold-gated linear scan, inline
// or delegated). It also wires the optional surroundings: the Postgres store,
// the Redis query cache, and the Prometheus gauges.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cuebase/tracksearch/internal/cache"
	"github.com/cuebase/tracksearch/internal/engine"
	"github.com/cuebase/tracksearch/internal/index"
	"github.com/cuebase/tracksearch/internal/search"
	"github.com/cuebase/tracksearch/internal/store"
	"github.com/cuebase/tracksearch/internal/track"
	pkgerrors "github.com/cuebase/tracksearch/pkg/errors"
	"github.com/cuebase/tracksearch/pkg/metrics"
)

// Stats summarises the library and engine state for the stats endpoint.
type Stats struct {
	Tracks        int          `json:"tracks"`
	Terms         int          `json:"terms"`
	BuildDuration string       `json:"build_duration"`
	Engine        engine.Stats `json:"engine"`
}

// Library owns the collection. Store, query cache, and metrics may each be
// nil; the library then simply runs without persistence, caching, or
// instrumentation (the mode every test uses).
type Library struct {
	mu     sync.RWMutex
	tracks map[string]track.Track
	order  []track.Track

	idx     *index.Index
	engine  *engine.Engine
	store   *store.TrackStore
	cache   *cache.QueryCache
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(eng *engine.Engine, st *store.TrackStore, qc *cache.QueryCache, m *metrics.Metrics) *Library {
	return &Library{
		tracks:  make(map[string]track.Track),
		idx:     index.New(),
		engine:  eng,
		store:   st,
		cache:   qc,
		metrics: m,
		logger:  slog.Default().With("component", "library"),
	}
}

// Load reads the full collection from the store and bulk-builds the index.
func (l *Library) Load(ctx context.Context) error {
	if l.store == nil {
		return fmt.Errorf("library has no store configured")
	}
	tracks, err := l.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("loading library: %w", err)
	}
	l.Build(tracks)
	return nil
}

// Build replaces the collection and rebuilds the index from scratch. Zero
// tracks yields an empty library, not an error.
func (l *Library) Build(tracks []track.Track) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tracks = make(map[string]track.Track, len(tracks))
	for _, t := range tracks {
		l.tracks[t.ID] = t
	}
	l.rebuildOrderLocked()
	l.idx.Build(l.order)
	l.observeIndexLocked()
	l.logger.Info("index built",
		"tracks", l.idx.Len(),
		"terms", l.idx.TermCount(),
		"duration", l.idx.BuildDuration(),
	)
}

// Upsert applies one track edit: persist (when a store is configured), then
// retract-and-reinsert in the index, then drop cached query results.
func (l *Library) Upsert(ctx context.Context, t track.Track) error {
	if t.ID == "" {
		return pkgerrors.New(pkgerrors.ErrInvalidInput, 400, "track id is required")
	}
	if l.store != nil {
		if err := l.store.Upsert(ctx, t); err != nil {
			return err
		}
	}
	l.mu.Lock()
	l.tracks[t.ID] = t
	l.rebuildOrderLocked()
	l.idx.Upsert(t)
	l.observeIndexLocked()
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.TracksUpsertedTotal.Inc()
	}
	l.invalidateCache(ctx)
	return nil
}

// Remove deletes one track. Removing an ID the index has never seen is a
// no-op on the index side; the store's not-found error still propagates so
// the API can answer 404.
func (l *Library) Remove(ctx context.Context, id string) error {
	var storeErr error
	if l.store != nil {
		storeErr = l.store.Delete(ctx, id)
		if storeErr != nil && !errors.Is(storeErr, pkgerrors.ErrTrackNotFound) {
			return storeErr
		}
	}
	l.mu.Lock()
	delete(l.tracks, id)
	l.rebuildOrderLocked()
	l.idx.Remove(id)
	l.observeIndexLocked()
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.TracksRemovedTotal.Inc()
	}
	l.invalidateCache(ctx)
	return storeErr
}

// Search answers the compound question on the indexed path: which tracks'
// text contains query, intersected with the structural predicates. Results
// come back in stable ID order. cached reports whether the response was
// served from the query cache.
func (l *Library) Search(ctx context.Context, query string, playlist []string, missingOnly bool) (tracks []track.Track, cached bool, err error) {
	start := time.Now()
	compute := func() (*cache.CachedResult, error) {
		ids := l.searchIDs(query, playlist, missingOnly)
		return &cache.CachedResult{MatchedIDs: ids, Total: len(ids)}, nil
	}

	var result *cache.CachedResult
	if l.cache != nil {
		result, cached, err = l.cache.GetOrCompute(ctx, query, playlist, missingOnly, compute)
		if err != nil {
			return nil, false, err
		}
	} else {
		result, _ = compute()
	}

	l.mu.RLock()
	tracks = make([]track.Track, 0, len(result.MatchedIDs))
	for _, id := range result.MatchedIDs {
		if t, ok := l.tracks[id]; ok {
			tracks = append(tracks, t)
		}
	}
	l.mu.RUnlock()

	if l.metrics != nil {
		l.metrics.SearchLatency.WithLabelValues("indexed").Observe(time.Since(start).Seconds())
		resultType := "hit"
		if len(tracks) == 0 {
			resultType = "zero_result"
		}
		l.metrics.SearchQueriesTotal.WithLabelValues("indexed", resultType).Inc()
		if l.cache != nil {
			if cached {
				l.metrics.CacheHitsTotal.Inc()
			} else {
				l.metrics.CacheMissesTotal.Inc()
			}
		}
	}
	return tracks, cached, nil
}

// searchIDs runs the indexed path under the read lock and returns matched
// IDs in sorted order.
func (l *Library) searchIDs(query string, playlist []string, missingOnly bool) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids, matchAll := search.SearchIDs(l.idx, query)
	var allowlist map[string]struct{}
	if playlist != nil {
		allowlist = make(map[string]struct{}, len(playlist))
		for _, id := range playlist {
			allowlist[id] = struct{}{}
		}
	}

	matched := make([]string, 0)
	for _, t := range l.order {
		if !matchAll {
			if _, ok := ids[t.ID]; !ok {
				continue
			}
		}
		if missingOnly && !t.Missing {
			continue
		}
		if allowlist != nil {
			if _, ok := allowlist[t.ID]; !ok {
				continue
			}
		}
		matched = append(matched, t.ID)
	}
	return matched
}

// Filter runs the threshold execution strategy over the current collection
// snapshot. The snapshot is taken under the read lock; the engine then works
// on its own copy, so an overlapping edit never races the scan.
func (l *Library) Filter(ctx context.Context, opts engine.Options) (engine.Result, error) {
	l.mu.RLock()
	snapshot := make([]track.Track, len(l.order))
	copy(snapshot, l.order)
	l.mu.RUnlock()

	res, err := l.engine.Filter(ctx, snapshot, opts)
	if err != nil {
		return engine.Result{}, err
	}
	if l.metrics != nil {
		mode := "inline"
		if res.Delegated {
			mode = "delegate"
		}
		l.metrics.FilterRequestsTotal.WithLabelValues(mode).Inc()
		l.metrics.SearchLatency.WithLabelValues(mode).Observe(res.Elapsed.Seconds())
		l.metrics.WorkerPending.Set(float64(l.engine.Pending()))
	}
	return res, nil
}

// Get returns one track by ID.
func (l *Library) Get(id string) (track.Track, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.tracks[id]
	return t, ok
}

// Len reports the collection size.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tracks)
}

// Stats returns a snapshot of library and engine counters.
func (l *Library) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Stats{
		Tracks:        l.idx.Len(),
		Terms:         l.idx.TermCount(),
		BuildDuration: l.idx.BuildDuration().String(),
		Engine:        l.engine.Stats(),
	}
}

// rebuildOrderLocked refreshes the ID-sorted snapshot slice. Called with the
// write lock held.
func (l *Library) rebuildOrderLocked() {
	l.order = make([]track.Track, 0, len(l.tracks))
	for _, t := range l.tracks {
		l.order = append(l.order, t)
	}
	sort.Slice(l.order, func(i, j int) bool { return l.order[i].ID < l.order[j].ID })
}

func (l *Library) observeIndexLocked() {
	if l.metrics == nil {
		return
	}
	l.metrics.IndexedTracks.Set(float64(l.idx.Len()))
	l.metrics.IndexTermCount.Set(float64(l.idx.TermCount()))
	l.metrics.IndexBuildDuration.Set(l.idx.BuildDuration().Seconds())
}

func (l *Library) invalidateCache(ctx context.Context) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Invalidate(ctx); err != nil {
		l.logger.Error("cache invalidation failed", "error", err)
	}
}
