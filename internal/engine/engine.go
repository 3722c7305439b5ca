// Package engine implements the size-gated filter execution strategy. Small
// collections are filtered with a plain linear scan on the calling goroutine;
// at or above the inline threshold the scan is delegated to an isolated
// worker goroutine through a typed request/response channel protocol with
// per-request correlation IDs. The worker shares no mutable state with its
// callers; every request carries its own projection copy.
//
// The engine degrades rather than fails: if the worker was never started,
// has faulted, or a delegated request times out, filtering falls back to the
// inline scan. A worker fault is permanent for the life of the process; all
// pending requests are rejected once and no further delegation is attempted.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cuebase/tracksearch/internal/track"
	"github.com/cuebase/tracksearch/pkg/config"
	pkgerrors "github.com/cuebase/tracksearch/pkg/errors"
)

// Result is the outcome of one Filter call.
type Result struct {
	MatchedIDs []string
	Elapsed    time.Duration
	Delegated  bool
}

// Stats are cumulative execution counters, exported for diagnostics and
// metrics.
type Stats struct {
	InlineRuns   int64
	DelegateRuns int64
	Fallbacks    int64
	Pending      int
	WorkerUp     bool
}

// Engine decides, per invocation, where filtering runs.
type Engine struct {
	threshold      int
	requestTimeout time.Duration
	logger         *slog.Logger

	requests  chan filterRequest
	responses chan filterResult
	failed    chan struct{}
	failOnce  sync.Once

	pendingMu sync.Mutex
	pending   map[string]chan filterResult

	workerUp     atomic.Bool
	inlineRuns   atomic.Int64
	delegateRuns atomic.Int64
	fallbacks    atomic.Int64
}

// New creates an Engine with the worker not yet started; until Start is
// called every Filter executes inline.
func New(cfg config.EngineConfig) *Engine {
	if cfg.InlineThreshold <= 0 {
		cfg.InlineThreshold = 4000
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 2 * time.Second
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 16
	}
	return &Engine{
		threshold:      cfg.InlineThreshold,
		requestTimeout: cfg.RequestTimeout,
		logger:         slog.Default().With("component", "filter-engine"),
		requests:       make(chan filterRequest, cfg.QueueDepth),
		responses:      make(chan filterResult, cfg.QueueDepth),
		failed:         make(chan struct{}),
		pending:        make(map[string]chan filterResult),
	}
}

// Start launches the worker and the response dispatcher. Both exit when ctx
// is cancelled; cancellation is treated like a worker fault for any requests
// still pending.
func (e *Engine) Start(ctx context.Context) {
	select {
	case <-e.failed:
		return
	default:
	}
	e.workerUp.Store(true)
	go e.runWorker(ctx)
	go e.dispatch(ctx)
	e.logger.Info("filter worker started",
		"inline_threshold", e.threshold,
		"request_timeout", e.requestTimeout,
	)
}

// Filter applies opts to tracks and returns the matched IDs with timing.
// Collections below the inline threshold, or any invocation while the worker
// is unavailable, are scanned synchronously on the calling goroutine; larger
// collections are delegated. Delegation failures (fault, timeout, shutdown)
// degrade to the inline scan instead of surfacing an error, so the only
// error returned is caller cancellation.
func (e *Engine) Filter(ctx context.Context, tracks []track.Track, opts Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	start := time.Now()
	m := newMatcher(opts.Query, opts.Playlist, opts.MissingOnly)

	if len(tracks) < e.threshold || !e.workerUp.Load() {
		matched := scanTracks(tracks, m)
		e.inlineRuns.Add(1)
		return Result{MatchedIDs: matched, Elapsed: time.Since(start)}, nil
	}

	res, err := e.delegate(ctx, tracks, opts)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		e.fallbacks.Add(1)
		e.logger.Warn("delegate failed, falling back to inline scan",
			"tracks", len(tracks),
			"error", err,
		)
		matched := scanTracks(tracks, m)
		e.inlineRuns.Add(1)
		return Result{MatchedIDs: matched, Elapsed: time.Since(start)}, nil
	}
	res.Elapsed = time.Since(start)
	return res, nil
}

// Stats returns a snapshot of the execution counters.
func (e *Engine) Stats() Stats {
	return Stats{
		InlineRuns:   e.inlineRuns.Load(),
		DelegateRuns: e.delegateRuns.Load(),
		Fallbacks:    e.fallbacks.Load(),
		Pending:      e.Pending(),
		WorkerUp:     e.workerUp.Load(),
	}
}

// Pending reports how many delegated requests are currently awaiting a
// worker result. After a fault it is always zero.
func (e *Engine) Pending() int {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	return len(e.pending)
}

// Threshold reports the configured inline threshold.
func (e *Engine) Threshold() int {
	return e.threshold
}

func (e *Engine) delegate(ctx context.Context, tracks []track.Track, opts Options) (Result, error) {
	select {
	case <-e.failed:
		return Result{}, pkgerrors.ErrWorkerFailed
	default:
	}
	if !e.workerUp.Load() {
		return Result{}, pkgerrors.ErrWorkerUnavailable
	}

	req := filterRequest{
		Kind:        kindFilterRequest,
		RequestID:   uuid.NewString(),
		Tracks:      track.ProjectAll(tracks),
		Query:       opts.Query,
		Playlist:    opts.Playlist,
		MissingOnly: opts.MissingOnly,
	}

	ch := make(chan filterResult, 1)
	e.pendingMu.Lock()
	if e.pending == nil {
		e.pendingMu.Unlock()
		return Result{}, pkgerrors.ErrWorkerFailed
	}
	e.pending[req.RequestID] = ch
	e.pendingMu.Unlock()
	defer e.unregister(req.RequestID)

	select {
	case e.requests <- req:
	case <-e.failed:
		return Result{}, pkgerrors.ErrWorkerFailed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	timer := time.NewTimer(e.requestTimeout)
	defer timer.Stop()
	select {
	case res, ok := <-ch:
		if !ok {
			return Result{}, pkgerrors.ErrWorkerFailed
		}
		e.delegateRuns.Add(1)
		return Result{MatchedIDs: res.MatchedIDs, Delegated: true}, nil
	case <-timer.C:
		// The entry is unregistered on return, so a late result for this
		// request is dropped rather than leaked.
		return Result{}, pkgerrors.ErrTimeout
	case <-e.failed:
		return Result{}, pkgerrors.ErrWorkerFailed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (e *Engine) unregister(requestID string) {
	e.pendingMu.Lock()
	if e.pending != nil {
		delete(e.pending, requestID)
	}
	e.pendingMu.Unlock()
}

// dispatch resolves worker results against the pending map. Each entry is
// removed before its channel is signalled, so a request resolves exactly
// once even when overlapping requests complete out of submission order.
func (e *Engine) dispatch(ctx context.Context) {
	for {
		select {
		case res := <-e.responses:
			e.pendingMu.Lock()
			ch, ok := e.pending[res.RequestID]
			if ok {
				delete(e.pending, res.RequestID)
			}
			e.pendingMu.Unlock()
			if ok {
				ch <- res
			}
		case <-e.failed:
			return
		case <-ctx.Done():
			e.fail("shutdown")
			return
		}
	}
}

// runWorker is the isolated execution context. It owns nothing but the
// projection copies handed to it per request and accumulates no state across
// requests.
func (e *Engine) runWorker(ctx context.Context) {
	for {
		select {
		case req := <-e.requests:
			e.handle(ctx, req)
		case <-e.failed:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) handle(ctx context.Context, req filterRequest) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("filter worker panicked", "request_id", req.RequestID, "panic", r)
			e.fail("worker panic")
		}
	}()
	start := time.Now()
	m := newMatcher(req.Query, req.Playlist, req.MissingOnly)
	matched := scanProjections(req.Tracks, m)
	res := filterResult{
		Kind:       kindFilterResult,
		RequestID:  req.RequestID,
		MatchedIDs: matched,
		ElapsedMs:  time.Since(start).Milliseconds(),
	}
	select {
	case e.responses <- res:
	case <-e.failed:
	case <-ctx.Done():
	}
}

// fail marks the worker permanently unavailable and rejects every pending
// request. Subsequent Filter calls run inline for the remainder of the
// process; there is no retry loop.
func (e *Engine) fail(reason string) {
	e.failOnce.Do(func() {
		e.workerUp.Store(false)
		close(e.failed)
		e.pendingMu.Lock()
		pending := e.pending
		e.pending = nil
		e.pendingMu.Unlock()
		for _, ch := range pending {
			close(ch)
		}
		e.logger.Warn("filter worker disabled, all filtering now inline",
			"reason", reason,
			"rejected_requests", len(pending),
		)
	})
}
